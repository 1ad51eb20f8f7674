package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"healthpulse/internal/evaluator"
	"healthpulse/internal/ingest"
	"healthpulse/internal/models"
)

// DeviceStore 设备在线状态写入口
type DeviceStore interface {
	UpsertSeen(ctx context.Context, deviceID string, seenAt time.Time) (*models.Device, error)
}

// MeasurementStore 测量记录写入口
type MeasurementStore interface {
	Insert(ctx context.Context, m *models.Measurement) error
}

// SessionStore 测量会话写入口
type SessionStore interface {
	Insert(ctx context.Context, s *models.MeasurementSession) error
}

// EventStore 报警事件写入口
type EventStore interface {
	Insert(ctx context.Context, e *models.AlertEvent) error
}

// Broadcaster 实时扇出接口
type Broadcaster interface {
	BroadcastTelemetry(ctx context.Context, device *models.Device, m *models.Measurement)
	BroadcastAlert(ctx context.Context, device *models.Device, e *models.AlertEvent)
}

// LatestCache 最新读数缓存接口
type LatestCache interface {
	SetLatest(ctx context.Context, m *models.Measurement) error
}

// Pipeline 单条测量的处理管线
//
// 处理顺序：在线状态更新 → 最新读数缓存 → 遥测扇出 → 规则评估（事件持久化+扇出）
// → 会话跟踪（关闭时持久化） → 降采样（窗口关闭时持久化）。
// 持久化失败只记录日志，已推进的内存状态不回滚（至多一次写入）。
type Pipeline struct {
	devices        DeviceStore
	measurements   MeasurementStore
	sessions       SessionStore
	events         EventStore
	cache          LatestCache
	broadcaster    Broadcaster
	evaluator      *evaluator.Evaluator
	downsampler    *ingest.Downsampler
	sessionTracker *ingest.SessionTracker
	logger         *zap.Logger
}

// New 创建处理管线
func New(
	devices DeviceStore,
	measurements MeasurementStore,
	sessions SessionStore,
	events EventStore,
	cache LatestCache,
	broadcaster Broadcaster,
	eval *evaluator.Evaluator,
	downsampler *ingest.Downsampler,
	sessionTracker *ingest.SessionTracker,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		devices:        devices,
		measurements:   measurements,
		sessions:       sessions,
		events:         events,
		cache:          cache,
		broadcaster:    broadcaster,
		evaluator:      eval,
		downsampler:    downsampler,
		sessionTracker: sessionTracker,
		logger:         logger,
	}
}

// Process 处理一条规范化测量
// 任何失败都不会中断后续消息的处理
func (p *Pipeline) Process(ctx context.Context, m *models.Measurement) {
	// 1. 在线状态：首次出现的设备用默认名创建
	device, err := p.devices.UpsertSeen(ctx, m.DeviceID, m.Timestamp)
	if err != nil {
		p.logger.Error("Failed to update device presence",
			zap.String("device_id", m.DeviceID),
			zap.Error(err),
		)
		return
	}

	// 2. 最新读数缓存（尽力而为）
	if p.cache != nil {
		if err := p.cache.SetLatest(ctx, m); err != nil {
			p.logger.Warn("Failed to cache latest measurement",
				zap.String("device_id", m.DeviceID),
				zap.Error(err),
			)
		}
	}

	// 3. 原始遥测扇出
	p.broadcaster.BroadcastTelemetry(ctx, device, m)

	// 4. 规则评估
	events, err := p.evaluator.Evaluate(ctx, device, m)
	if err != nil {
		p.logger.Error("Failed to evaluate alert rules",
			zap.String("device_id", m.DeviceID),
			zap.Error(err),
		)
	}
	for i := range events {
		event := &events[i]
		if err := p.events.Insert(ctx, event); err != nil {
			// 冷却状态已推进，该事件按至多一次语义丢失
			p.logger.Error("Failed to persist alert event",
				zap.String("rule_id", event.RuleID),
				zap.String("device_id", event.DeviceID),
				zap.Error(err),
			)
		}
		p.broadcaster.BroadcastAlert(ctx, device, event)
	}

	// 5. 会话跟踪
	if session := p.sessionTracker.Track(m); session != nil {
		if err := p.sessions.Insert(ctx, session); err != nil {
			p.logger.Error("Failed to persist measurement session",
				zap.String("device_id", session.DeviceID),
				zap.Error(err),
			)
		} else {
			p.logger.Info("Measurement session closed",
				zap.String("device_id", session.DeviceID),
				zap.Int("duration_sec", session.DurationSec),
				zap.Int("sample_count", session.SampleCount),
			)
		}
	}

	// 6. 降采样：只有窗口产出的记录才进长期存储
	if record := p.downsampler.Add(m); record != nil {
		if err := p.measurements.Insert(ctx, record); err != nil {
			p.logger.Error("Failed to persist measurement",
				zap.String("device_id", record.DeviceID),
				zap.Error(err),
			)
		}
	}
}
