package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"healthpulse/internal/models"
)

// redisChannelPrefix 跨实例桥接用的 Redis 发布频道前缀
const redisChannelPrefix = "realtime:"

// Broadcaster 实时扇出
// 每个事件推给设备所有者的私有频道和管理员频道（无主设备只推管理员）；
// 同时发布到 Redis，供水平扩展的其它实例桥接给各自的订阅者。
// 全部投递都是 fire-and-forget，失败只记录日志。
type Broadcaster struct {
	hub         *Hub
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewBroadcaster 创建扇出器
func NewBroadcaster(hub *Hub, redisClient *redis.Client, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		hub:         hub,
		redisClient: redisClient,
		logger:      logger,
	}
}

// BroadcastTelemetry 扇出一条规范化测量
func (b *Broadcaster) BroadcastTelemetry(ctx context.Context, device *models.Device, m *models.Measurement) {
	event := &Event{
		Event:     EventTelemetry,
		DeviceID:  m.DeviceID,
		Data:      m,
		Timestamp: time.Now(),
	}
	b.fanOut(ctx, device, event)
}

// BroadcastAlert 扇出一条已触发的报警事件
func (b *Broadcaster) BroadcastAlert(ctx context.Context, device *models.Device, e *models.AlertEvent) {
	event := &Event{
		Event:     EventAlert,
		DeviceID:  e.DeviceID,
		Data:      e,
		Timestamp: time.Now(),
	}
	b.fanOut(ctx, device, event)
}

func (b *Broadcaster) fanOut(ctx context.Context, device *models.Device, event *Event) {
	channels := []string{ChannelAdmins}
	if device.OwnerUserID != nil {
		channels = append(channels, UserChannel(*device.OwnerUserID))
	}

	for _, channel := range channels {
		b.hub.Broadcast(channel, event)
	}

	if b.redisClient == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event for redis publish", zap.Error(err))
		return
	}
	for _, channel := range channels {
		if err := b.redisClient.Publish(ctx, redisChannelPrefix+channel, payload).Err(); err != nil {
			b.logger.Warn("Failed to publish event to redis",
				zap.String("channel", channel),
				zap.Error(err),
			)
		}
	}
}
