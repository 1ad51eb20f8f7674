package ingest

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"healthpulse/internal/models"
)

// metricStats 会话内单个指标的累计值
type metricStats struct {
	sum   float64
	count int
}

// activeSession 进行中的测量会话（每设备至多一个）
type activeSession struct {
	startedAt   time.Time
	lastTS      time.Time
	stats       map[models.Metric]*metricStats
	sampleCount int
	touchedAt   time.Time
}

func newActiveSession(ts time.Time) *activeSession {
	stats := make(map[models.Metric]*metricStats, len(models.Metrics))
	for _, metric := range models.Metrics {
		stats[metric] = &metricStats{}
	}
	return &activeSession{
		startedAt: ts,
		lastTS:    ts,
		stats:     stats,
	}
}

func (s *activeSession) fold(m *models.Measurement) {
	s.lastTS = m.Timestamp
	s.touchedAt = time.Now()
	for _, metric := range models.Metrics {
		if v := metric.ValueOf(m); v != nil {
			s.stats[metric].sum += *v
			s.stats[metric].count++
		}
	}
	s.sampleCount++
}

// average 指标均值，保留两位小数；会话内无观测返回 nil
func (s *activeSession) average(metric models.Metric) *float64 {
	st := s.stats[metric]
	if st.count == 0 {
		return nil
	}
	avg := math.Round(st.sum/float64(st.count)*100) / 100
	return &avg
}

// SessionTracker 按设备检测接触开始/结束，接触结束时产出完整会话记录
//
// 状态机（每设备）：
//   - 无会话 → 进行中：contact == true 的测量开启会话并立即计入该样本
//   - 进行中 → 进行中：后续 contact == true 的测量继续累计
//   - 进行中 → 无会话：contact 为 false 或缺失的测量关闭会话；
//     缺失的 contact 会结束会话，但永远不会开启会话
type SessionTracker struct {
	mu       sync.Mutex
	sessions map[string]*activeSession
}

// NewSessionTracker 创建会话跟踪器
func NewSessionTracker() *SessionTracker {
	return &SessionTracker{
		sessions: make(map[string]*activeSession),
	}
}

// Track 处理一条测量，会话关闭时返回待持久化的会话记录，否则返回 nil
func (t *SessionTracker) Track(m *models.Measurement) *models.MeasurementSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	active := t.sessions[m.DeviceID]

	if m.HasContact() {
		if active == nil {
			active = newActiveSession(m.Timestamp)
			t.sessions[m.DeviceID] = active
		}
		active.fold(m)
		return nil
	}

	if active == nil {
		return nil
	}

	delete(t.sessions, m.DeviceID)
	if active.sampleCount == 0 {
		// 防御单样本毛刺会话
		return nil
	}

	endedAt := m.Timestamp
	durationSec := int(math.Round(endedAt.Sub(active.startedAt).Seconds()))
	if durationSec < 1 {
		durationSec = 1
	}

	return &models.MeasurementSession{
		SessionID:      uuid.NewString(),
		DeviceID:       m.DeviceID,
		StartedAt:      active.startedAt,
		EndedAt:        endedAt,
		DurationSec:    durationSec,
		AvgHR:          active.average(models.MetricHeartRate),
		AvgSpO2:        active.average(models.MetricSpO2),
		AvgBodyTemp:    active.average(models.MetricBodyTemp),
		AvgAmbientTemp: active.average(models.MetricAmbientTemp),
		SampleCount:    active.sampleCount,
	}
}

// Prune 丢弃超过 maxIdle 未更新的进行中会话（设备下线后不再占用内存）
func (t *SessionTracker) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for deviceID, s := range t.sessions {
		if s.touchedAt.Before(cutoff) {
			delete(t.sessions, deviceID)
			removed++
		}
	}
	return removed
}
