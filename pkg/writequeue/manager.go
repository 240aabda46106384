// Package writequeue serialises writes per key.
// Every note (or scene) gets its own FIFO queue and a lazily started worker, so mutations targeting the
// same key are applied one at a time and in submission order, while different keys proceed independently.
// Package writequeue 按 key 串行化写操作，同一笔记的修改按 FIFO 顺序逐一执行
package writequeue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrWriteQueueFull returned when the key's queue is full
	// ErrWriteQueueFull 队列已满
	ErrWriteQueueFull = errors.New("write queue is full")
	// ErrWriteQueueClosed returned after Shutdown
	// ErrWriteQueueClosed 写队列管理器已关闭
	ErrWriteQueueClosed = errors.New("write queue is closed")
	// ErrWriteTimeout returned when the write did not finish within WriteTimeout
	// ErrWriteTimeout 写操作超时
	ErrWriteTimeout = errors.New("write operation timeout")
)

// Config write queue configuration
// Config 写队列配置
type Config struct {
	// QueueCapacity per-key queue capacity, default 100
	QueueCapacity int `yaml:"queue-capacity" default:"100"`
	// WriteTimeout default 30 seconds
	WriteTimeout time.Duration `yaml:"write-timeout" default:"30s"`
	// IdleTimeout idle queues are reclaimed after this, default 10 minutes
	IdleTimeout time.Duration `yaml:"idle-timeout" default:"10m"`
}

// DefaultConfig returns default configuration
// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		QueueCapacity: 100,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   10 * time.Minute,
	}
}

type writeOp struct {
	ctx    context.Context
	fn     func() error
	result chan error
}

// keyQueue FIFO of one key
type keyQueue struct {
	key      string
	ch       chan writeOp
	lastUsed atomic.Int64
	closed   atomic.Bool
	workerWg sync.WaitGroup
	stopCh   chan struct{}
}

// Manager owns the queues of all keys.
// Manager 管理所有 key 的写队列
type Manager struct {
	config Config
	logger *zap.Logger

	queues sync.Map // map[string]*keyQueue

	executed atomic.Int64
	rejected atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool

	cleanupWg   sync.WaitGroup
	cleanupDone chan struct{}
}

// New creates a write queue manager. A nil cfg means DefaultConfig, a nil logger means zap.NewNop.
// New 创建写队列管理器
func New(cfg *Config, logger *zap.Logger) *Manager {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.QueueCapacity > 0 {
			c.QueueCapacity = cfg.QueueCapacity
		}
		if cfg.WriteTimeout > 0 {
			c.WriteTimeout = cfg.WriteTimeout
		}
		if cfg.IdleTimeout > 0 {
			c.IdleTimeout = cfg.IdleTimeout
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:      c,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		cleanupDone: make(chan struct{}),
	}

	m.cleanupWg.Add(1)
	go m.cleanupIdleQueues()

	m.logger.Info("write queue manager started",
		zap.Int("queueCapacity", c.QueueCapacity),
		zap.Duration("writeTimeout", c.WriteTimeout),
		zap.Duration("idleTimeout", c.IdleTimeout))

	return m
}

// Execute runs fn on the worker of key and waits for its result.
// Writes for the same key never overlap and run in FIFO order.
// Execute 在 key 对应的 worker 上执行 fn 并等待结果
func (m *Manager) Execute(ctx context.Context, key string, fn func() error) error {
	if m.IsClosed() {
		return ErrWriteQueueClosed
	}

	queue := m.getOrCreateQueue(key)
	if queue == nil {
		return ErrWriteQueueClosed
	}

	op := writeOp{ctx: ctx, fn: fn, result: make(chan error, 1)}

	select {
	case queue.ch <- op:
	default:
		m.rejected.Add(1)
		m.logger.Warn("write queue full", zap.String("key", key), zap.Int("capacity", m.config.QueueCapacity))
		return ErrWriteQueueFull
	}

	timeout := m.config.WriteTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-op.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrWriteTimeout
	case <-m.ctx.Done():
		return ErrWriteQueueClosed
	}
}

func (m *Manager) getOrCreateQueue(key string) *keyQueue {
	if v, ok := m.queues.Load(key); ok {
		q := v.(*keyQueue)
		if !q.closed.Load() {
			q.lastUsed.Store(time.Now().UnixNano())
			return q
		}
	}

	if m.IsClosed() {
		return nil
	}

	q := &keyQueue{
		key:    key,
		ch:     make(chan writeOp, m.config.QueueCapacity),
		stopCh: make(chan struct{}),
	}
	q.lastUsed.Store(time.Now().UnixNano())

	// only one queue per key may win
	actual, loaded := m.queues.LoadOrStore(key, q)
	if loaded {
		existing := actual.(*keyQueue)
		if !existing.closed.Load() {
			existing.lastUsed.Store(time.Now().UnixNano())
			return existing
		}
		m.queues.Store(key, q)
	}

	q.workerWg.Add(1)
	go m.worker(q)

	m.logger.Debug("created write queue", zap.String("key", key))
	return q
}

func (m *Manager) worker(q *keyQueue) {
	defer q.workerWg.Done()
	defer q.closed.Store(true)

	for {
		select {
		case <-m.ctx.Done():
			m.drain(q)
			return
		case <-q.stopCh:
			m.drain(q)
			return
		case op := <-q.ch:
			m.run(q, op)
		}
	}
}

func (m *Manager) run(q *keyQueue, op writeOp) {
	q.lastUsed.Store(time.Now().UnixNano())

	if err := op.ctx.Err(); err != nil {
		op.result <- err
		return
	}

	err := op.fn()
	m.executed.Add(1)
	op.result <- err
}

func (m *Manager) drain(q *keyQueue) {
	for {
		select {
		case op := <-q.ch:
			m.run(q, op)
		default:
			return
		}
	}
}

func (m *Manager) cleanupIdleQueues() {
	defer m.cleanupWg.Done()

	ticker := time.NewTicker(m.config.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.cleanupDone:
			return
		case <-ticker.C:
			m.reclaimIdle(time.Now())
		}
	}
}

// reclaimIdle stops empty queues unused for longer than IdleTimeout.
func (m *Manager) reclaimIdle(now time.Time) int {
	threshold := m.config.IdleTimeout.Nanoseconds()
	reclaimed := 0

	m.queues.Range(func(k, v any) bool {
		q := v.(*keyQueue)
		idle := now.UnixNano() - q.lastUsed.Load()
		if idle > threshold && len(q.ch) == 0 && q.closed.CompareAndSwap(false, true) {
			close(q.stopCh)
			m.queues.Delete(k)
			reclaimed++
			m.logger.Debug("reclaimed idle write queue",
				zap.String("key", q.key),
				zap.Duration("idleTime", time.Duration(idle)))
		}
		return true
	})
	return reclaimed
}

// Shutdown stops accepting writes, drains every queue and waits for the workers, bounded by ctx.
// Shutdown 关闭写队列管理器，等待所有操作完成
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.logger.Info("write queue manager shutting down")
	close(m.cleanupDone)

	done := make(chan struct{})
	go func() {
		m.queues.Range(func(_, v any) bool {
			q := v.(*keyQueue)
			if q.closed.CompareAndSwap(false, true) {
				close(q.stopCh)
			}
			return true
		})
		m.queues.Range(func(_, v any) bool {
			v.(*keyQueue).workerWg.Wait()
			return true
		})
		m.cleanupWg.Wait()
		close(done)
	}()

	defer m.cancel()

	select {
	case <-done:
		m.logger.Info("write queue manager shutdown completed")
		return nil
	case <-ctx.Done():
		m.logger.Warn("write queue manager shutdown timeout, forcing cancellation")
		return ctx.Err()
	}
}

// QueueCount number of live queues
func (m *Manager) QueueCount() int {
	count := 0
	m.queues.Range(func(_, v any) bool {
		if !v.(*keyQueue).closed.Load() {
			count++
		}
		return true
	})
	return count
}

// QueuedCount operations waiting on key
func (m *Manager) QueuedCount(key string) int {
	if v, ok := m.queues.Load(key); ok {
		return len(v.(*keyQueue).ch)
	}
	return 0
}

// IsClosed reports whether Shutdown has been called
func (m *Manager) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Stats write queue snapshot
// Stats 写队列状态快照
type Stats struct {
	QueueCapacity int   `json:"queueCapacity"`
	ActiveQueues  int   `json:"activeQueues"`
	Executed      int64 `json:"executed"`
	Rejected      int64 `json:"rejected"`
	IsClosed      bool  `json:"isClosed"`
}

// Stats returns the current counters.
func (m *Manager) Stats() Stats {
	return Stats{
		QueueCapacity: m.config.QueueCapacity,
		ActiveQueues:  m.QueueCount(),
		Executed:      m.executed.Load(),
		Rejected:      m.rejected.Load(),
		IsClosed:      m.IsClosed(),
	}
}
