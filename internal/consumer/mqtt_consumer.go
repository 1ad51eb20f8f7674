package consumer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"healthpulse/internal/config"
	"healthpulse/internal/dispatch"
	"healthpulse/internal/ingest"
	"healthpulse/internal/mqtt"
)

// TelemetryConsumer MQTT遥测消费者
// 回调里只做解码和入队，重活全部交给按设备分片的分发器，
// 保证慢持久化不会反压MQTT订阅
type TelemetryConsumer struct {
	config     *config.Config
	mqttClient *mqtt.Client
	decoder    *ingest.TopicDecoder
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger
}

// NewTelemetryConsumer 创建遥测消费者
func NewTelemetryConsumer(
	cfg *config.Config,
	mqttClient *mqtt.Client,
	decoder *ingest.TopicDecoder,
	dispatcher *dispatch.Dispatcher,
	logger *zap.Logger,
) *TelemetryConsumer {
	return &TelemetryConsumer{
		config:     cfg,
		mqttClient: mqttClient,
		decoder:    decoder,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Start 订阅遥测主题
func (c *TelemetryConsumer) Start(ctx context.Context) error {
	if err := c.mqttClient.Subscribe(c.config.Ingest.Topic, c.config.MQTT.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to telemetry topic: %w", err)
	}

	c.logger.Info("Telemetry consumer started",
		zap.String("topic", c.config.Ingest.Topic),
	)
	return nil
}

// Stop 取消订阅
func (c *TelemetryConsumer) Stop(ctx context.Context) error {
	if err := c.mqttClient.Unsubscribe(c.config.Ingest.Topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("Telemetry consumer stopped")
	return nil
}

// handleMessage 处理单条MQTT消息
// 畸形主题或报文一律丢弃并记录，错误不会传到传输客户端
func (c *TelemetryConsumer) handleMessage(topic string, payload []byte) error {
	// 1. 从主题中提取设备ID；主题空间可能承载无关流量，不匹配直接忽略
	deviceID, ok := c.decoder.DeviceID(topic)
	if !ok {
		return nil
	}

	// 2. 校验并规范化报文
	measurement, err := ingest.Normalize(deviceID, payload)
	if err != nil {
		c.logger.Warn("Invalid telemetry payload",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return nil
	}

	// 3. 入队到设备所属分片
	if !c.dispatcher.Enqueue(measurement) {
		c.logger.Warn("Measurement dropped, dispatcher unavailable or backlogged",
			zap.String("device_id", deviceID),
		)
	}

	return nil
}
