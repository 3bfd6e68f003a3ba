package consumer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/topic"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// ErrDispatcherClosed 分发器已停止
var ErrDispatcherClosed = errors.New("dispatcher closed")

// HandleFunc 在 worker 中处理单个事件，receivedAt 为事件进入分发器的时间
type HandleFunc func(ctx context.Context, topic string, payload []byte, receivedAt time.Time)

type event struct {
	topic      string
	payload    []byte
	receivedAt time.Time
}

// Dispatcher 按实体分片的 worker 池
// 同一 (gateway, tag) 的事件总是进入同一个 worker，保证按到达顺序串行处理
type Dispatcher struct {
	decoder *topic.Decoder
	handle  HandleFunc
	queues  []chan event
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewDispatcher 创建分发器
func NewDispatcher(decoder *topic.Decoder, workers, queueSize int, handle HandleFunc, logger *zap.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	queues := make([]chan event, workers)
	for i := range queues {
		queues[i] = make(chan event, queueSize)
	}

	return &Dispatcher{
		decoder: decoder,
		handle:  handle,
		queues:  queues,
		logger:  logger,
		now:     time.Now,
	}
}

// Start 启动 worker
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}
	d.started = true

	for i, q := range d.queues {
		d.wg.Add(1)
		go d.run(i, q)
	}

	d.logger.Info("Dispatcher started", zap.Int("workers", len(d.queues)))
}

// run 已接收的事件总是处理完成，不受调用方 ctx 影响
func (d *Dispatcher) run(worker int, q <-chan event) {
	defer d.wg.Done()

	for ev := range q {
		d.handle(context.Background(), ev.topic, ev.payload, ev.receivedAt)
	}

	d.logger.Debug("Dispatcher worker stopped", zap.Int("worker", worker))
}

// Submit 将事件放入对应分片，队列满时阻塞直到有空位或 ctx 取消
// 到达时间在入队前记录，排队等待不影响 submitTime
func (d *Dispatcher) Submit(ctx context.Context, topicName string, payload []byte) error {
	receivedAt := d.now()

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queues[d.shard(topicName)] <- event{topic: topicName, payload: payload, receivedAt: receivedAt}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shard 无法解码的主题进入 0 号分片，由处理器丢弃
func (d *Dispatcher) shard(topicName string) int {
	if len(d.queues) == 1 {
		return 0
	}
	t, err := d.decoder.Decode(topicName)
	if err != nil {
		return 0
	}
	h := xxhash.Sum64String(t.Source + "/" + t.Entity)
	return int(h % uint64(len(d.queues)))
}

// Workers worker 数量
func (d *Dispatcher) Workers() int {
	return len(d.queues)
}

// Stop 停止接收新事件并等待队列中的事件处理完
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("Dispatcher stopped")
}
