package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"healthpulse/internal/config"
	"healthpulse/internal/consumer"
	"healthpulse/internal/database"
	"healthpulse/internal/dispatch"
	"healthpulse/internal/evaluator"
	"healthpulse/internal/httpapi"
	"healthpulse/internal/ingest"
	"healthpulse/internal/mqtt"
	"healthpulse/internal/pipeline"
	"healthpulse/internal/realtime"
	"healthpulse/internal/rediscache"
	"healthpulse/internal/repository"
	"healthpulse/internal/sweeper"
)

// IngestService 遥测接入服务
type IngestService struct {
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	mqttClient *mqtt.Client
	hub        *realtime.Hub
	dispatcher *dispatch.Dispatcher
	consumer   *consumer.TelemetryConsumer
	sweeper    *sweeper.Sweeper
	httpServer *http.Server
}

// NewIngestService 创建接入服务
func NewIngestService(cfg *config.Config, logger *zap.Logger) (*IngestService, error) {
	// 初始化数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 初始化Redis
	redisClient := rediscache.NewRedisClient(&cfg.Redis)
	if err := rediscache.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 初始化MQTT
	mqttClient, err := mqtt.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	// 创建Repository
	deviceRepo := repository.NewDeviceRepository(db, logger)
	measurementRepo := repository.NewMeasurementRepository(db, logger)
	sessionRepo := repository.NewSessionRepository(db, logger)
	ruleRepo := repository.NewAlertRuleRepository(db, logger)
	eventRepo := repository.NewAlertEventRepository(db, logger)

	offlineTimeout := time.Duration(cfg.Ingest.OfflineTimeoutSec) * time.Second
	sweepInterval := time.Duration(cfg.Ingest.SweepIntervalMs) * time.Millisecond

	// 管线的有状态组件
	downsampler := ingest.NewDownsampler(time.Duration(cfg.Ingest.DownsampleSec) * time.Second)
	sessionTracker := ingest.NewSessionTracker()
	ruleStates := evaluator.NewStateStore()
	eval := evaluator.NewEvaluator(ruleRepo, ruleStates, logger)

	// 实时扇出
	hub := realtime.NewHub(logger)
	broadcaster := realtime.NewBroadcaster(hub, redisClient, logger)
	latestCache := rediscache.NewLatestCache(redisClient, offlineTimeout, logger)

	// 管线与分发器
	pipe := pipeline.New(
		deviceRepo,
		measurementRepo,
		sessionRepo,
		eventRepo,
		latestCache,
		broadcaster,
		eval,
		downsampler,
		sessionTracker,
		logger,
	)
	dispatcher := dispatch.NewDispatcher(cfg.Ingest.DispatchShards, cfg.Ingest.DispatchQueueSize, pipe.Process, logger)

	// 遥测消费者
	decoder, err := ingest.NewTopicDecoder(cfg.Ingest.Topic)
	if err != nil {
		return nil, fmt.Errorf("invalid telemetry topic pattern: %w", err)
	}
	telemetryConsumer := consumer.NewTelemetryConsumer(cfg, mqttClient, decoder, dispatcher, logger)

	// 离线巡检 + 状态清理
	swp := sweeper.NewSweeper(
		deviceRepo,
		[]sweeper.Pruner{downsampler, sessionTracker, ruleStates},
		sweepInterval,
		offlineTimeout,
		cfg.Ingest.StateTTLSweeps,
		logger,
	)

	// HTTP查询面
	wsHandler := httpapi.NewWSHandler(hub, logger)
	handler := httpapi.NewHandler(deviceRepo, measurementRepo, sessionRepo, eventRepo, latestCache, wsHandler, logger)
	router := httpapi.NewRouter(handler, logger)
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	return &IngestService{
		config:     cfg,
		logger:     logger,
		db:         db,
		redis:      redisClient,
		mqttClient: mqttClient,
		hub:        hub,
		dispatcher: dispatcher,
		consumer:   telemetryConsumer,
		sweeper:    swp,
		httpServer: httpServer,
	}, nil
}

// Start 启动服务
func (s *IngestService) Start(ctx context.Context) error {
	s.logger.Info("Starting ingest service components")

	go s.hub.Run()
	s.dispatcher.Start(ctx)

	go func() {
		if err := s.sweeper.Start(ctx); err != nil {
			s.logger.Error("Sweeper exited", zap.Error(err))
		}
	}()

	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start telemetry consumer: %w", err)
	}

	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.config.HTTP.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	s.logger.Info("Ingest service started successfully")
	return nil
}

// Stop 停止服务
func (s *IngestService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping ingest service")

	// 先停消费者，再排空分发器队列
	if s.consumer != nil {
		if err := s.consumer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping consumer", zap.Error(err))
		}
	}
	if s.dispatcher != nil {
		s.dispatcher.Stop()
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("Error shutting down HTTP server", zap.Error(err))
		}
	}

	if s.hub != nil {
		s.hub.Stop()
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if s.redis != nil {
		rediscache.Close(s.redis)
	}

	if s.db != nil {
		database.Close(s.db)
	}

	s.logger.Info("Ingest service stopped")
	return nil
}
