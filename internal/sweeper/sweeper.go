package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DeviceOffliner 离线标记入口（由设备仓库实现）
type DeviceOffliner interface {
	MarkOffline(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner 可清理的按键状态存储（降采样窗口、进行中会话、规则状态）
type Pruner interface {
	Prune(maxIdle time.Duration) int
}

// Sweeper 周期巡检
// 每个周期：把静默超时的在线设备标记为离线，并清理长期未更新的内存状态键。
// 巡检独立于消息到达运行，永远不修改 last_seen_at。
type Sweeper struct {
	devices        DeviceOffliner
	pruners        []Pruner
	interval       time.Duration
	offlineTimeout time.Duration
	stateTTL       time.Duration
	logger         *zap.Logger
}

// NewSweeper 创建巡检器
// stateTTLSweeps 表示状态条目多少个巡检周期未更新后清除
func NewSweeper(
	devices DeviceOffliner,
	pruners []Pruner,
	interval time.Duration,
	offlineTimeout time.Duration,
	stateTTLSweeps int,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		devices:        devices,
		pruners:        pruners,
		interval:       interval,
		offlineTimeout: offlineTimeout,
		stateTTL:       time.Duration(stateTTLSweeps) * interval,
		logger:         logger,
	}
}

// Start 启动巡检循环（阻塞直到 ctx 取消）
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("Presence sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("offline_timeout", s.offlineTimeout),
		zap.Duration("state_ttl", s.stateTTL),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// 立即执行一次
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Presence sweeper stopped")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.offlineTimeout)
	affected, err := s.devices.MarkOffline(ctx, cutoff)
	if err != nil {
		// 下个周期重试，不中断
		s.logger.Error("Failed to mark devices offline", zap.Error(err))
	} else if affected > 0 {
		s.logger.Info("Marked devices offline", zap.Int64("count", affected))
	}

	pruned := 0
	for _, p := range s.pruners {
		pruned += p.Prune(s.stateTTL)
	}
	if pruned > 0 {
		s.logger.Info("Pruned idle pipeline state", zap.Int("count", pruned))
	}
}
