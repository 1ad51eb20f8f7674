package dispatch

import (
	"context"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"healthpulse/internal/models"
)

// ProcessFunc 单条测量的处理函数
type ProcessFunc func(ctx context.Context, m *models.Measurement)

// Dispatcher 按设备键的顺序分发器
// 同一设备的测量总是落在同一分片，由单个 goroutine 顺序处理，
// 保证每设备的观测顺序；不同设备可并行。
// 队列有界：分片积压时丢弃新消息而不是阻塞传输层回调。
type Dispatcher struct {
	shards  []chan *models.Measurement
	process ProcessFunc
	logger  *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher 创建分发器
func NewDispatcher(shardCount, queueSize int, process ProcessFunc, logger *zap.Logger) *Dispatcher {
	shards := make([]chan *models.Measurement, shardCount)
	for i := range shards {
		shards[i] = make(chan *models.Measurement, queueSize)
	}
	return &Dispatcher{
		shards:  shards,
		process: process,
		logger:  logger,
	}
}

// Start 启动分片工作协程
func (d *Dispatcher) Start(ctx context.Context) {
	for i, shard := range d.shards {
		d.wg.Add(1)
		go func(idx int, ch chan *models.Measurement) {
			defer d.wg.Done()
			for m := range ch {
				// 每条被接受的消息都运行到完成，没有单条超时
				d.process(ctx, m)
			}
		}(i, shard)
	}

	d.logger.Info("Dispatcher started",
		zap.Int("shards", len(d.shards)),
	)
}

// Enqueue 将测量入队到所属分片
// 分片队列已满时丢弃并返回 false（慢持久化不能反压传输订阅）
func (d *Dispatcher) Enqueue(m *models.Measurement) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return false
	}

	shard := d.shards[d.shardFor(m.DeviceID)]
	select {
	case shard <- m:
		return true
	default:
		d.logger.Warn("Shard queue full, dropping measurement",
			zap.String("device_id", m.DeviceID),
		)
		return false
	}
}

// Stop 停止接收并排空全部分片队列
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	for _, shard := range d.shards {
		close(shard)
	}
	d.wg.Wait()

	d.logger.Info("Dispatcher stopped")
}

func (d *Dispatcher) shardFor(deviceID string) int {
	h := fnv.New32a()
	h.Write([]byte(deviceID))
	return int(h.Sum32() % uint32(len(d.shards)))
}
