package ingest

import (
	"sync"
	"time"

	"healthpulse/internal/models"
)

// bucket 单设备的降采样窗口（每设备同一时刻至多一个）
// 每个指标单独计数，因为任何指标都可能在任意样本上缺失
type bucket struct {
	windowStart time.Time
	lastTS      time.Time
	sums        map[models.Metric]float64
	counts      map[models.Metric]int
	sampleCount int
	touchedAt   time.Time // 墙钟时间，供状态清理使用
}

func newBucket(m *models.Measurement) *bucket {
	b := &bucket{
		windowStart: m.Timestamp,
		lastTS:      m.Timestamp,
		sums:        make(map[models.Metric]float64, len(models.Metrics)),
		counts:      make(map[models.Metric]int, len(models.Metrics)),
	}
	b.add(m)
	return b
}

func (b *bucket) add(m *models.Measurement) {
	b.lastTS = m.Timestamp
	b.sampleCount++
	b.touchedAt = time.Now()
	for _, metric := range models.Metrics {
		if v := metric.ValueOf(m); v != nil {
			b.sums[metric] += *v
			b.counts[metric]++
		}
	}
}

// aggregate 生成聚合记录：时间戳取窗口内最后一个样本，
// 各指标取窗口内均值，窗口内无观测的指标省略（与零值区分）
func (b *bucket) aggregate(deviceID string) *models.Measurement {
	out := &models.Measurement{
		DeviceID:  deviceID,
		Timestamp: b.lastTS,
		Window: &models.AggregateWindow{
			SampleCount: b.sampleCount,
			Start:       b.windowStart,
			End:         b.lastTS,
		},
	}
	for _, metric := range models.Metrics {
		if count := b.counts[metric]; count > 0 {
			avg := b.sums[metric] / float64(count)
			switch metric {
			case models.MetricHeartRate:
				out.HR = &avg
			case models.MetricSpO2:
				out.SpO2 = &avg
			case models.MetricBodyTemp:
				out.BodyTemp = &avg
			case models.MetricAmbientTemp:
				out.AmbientTemp = &avg
			}
		}
	}
	return out
}

// Downsampler 按设备把高频遥测聚合为固定宽度时间窗内的均值记录
// 窗口宽度 <= 0 时禁用聚合，每条测量原样透传
type Downsampler struct {
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewDownsampler 创建降采样器
func NewDownsampler(window time.Duration) *Downsampler {
	return &Downsampler{
		window:  window,
		buckets: make(map[string]*bucket),
	}
}

// Add 向设备的当前窗口追加一条测量
// 返回需要持久化的记录：禁用时为测量本身；窗口关闭时为聚合记录；否则为 nil
func (d *Downsampler) Add(m *models.Measurement) *models.Measurement {
	if d.window <= 0 {
		return m
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buckets[m.DeviceID]
	if !ok {
		d.buckets[m.DeviceID] = newBucket(m)
		return nil
	}

	if m.Timestamp.Sub(b.windowStart) >= d.window {
		// 关闭当前窗口，触发样本作为新窗口的种子
		aggregated := b.aggregate(m.DeviceID)
		d.buckets[m.DeviceID] = newBucket(m)
		return aggregated
	}

	b.add(m)
	return nil
}

// Prune 清除超过 maxIdle 未更新的窗口，返回清除数量
// 被清除窗口中缓冲的样本随之丢弃（进程内聚合状态不保证持久）
func (d *Downsampler) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for deviceID, b := range d.buckets {
		if b.touchedAt.Before(cutoff) {
			delete(d.buckets, deviceID)
			removed++
		}
	}
	return removed
}
