// Package safe_close coordinates the shutdown of long running goroutines: every attached worker
// gets the same close signal, and WaitClosed returns once all of them called done.
package safe_close

import "sync"

// SafeClose 优雅关闭协调器
type SafeClose struct {
	once    sync.Once
	closeCh chan struct{}
	wg      sync.WaitGroup

	mu  sync.Mutex
	err error
}

// NewSafeClose 创建关闭协调器
func NewSafeClose() *SafeClose {
	return &SafeClose{closeCh: make(chan struct{})}
}

// Attach runs fn on its own goroutine. fn must call done when it returns and should return once
// closeSignal is closed.
func (s *SafeClose) Attach(fn func(done func(), closeSignal <-chan struct{})) {
	s.wg.Add(1)
	var once sync.Once
	go fn(func() { once.Do(s.wg.Done) }, s.closeCh)
}

// SendCloseSignal closes the signal channel; the first non-nil err is kept for WaitClosed
func (s *SafeClose) SendCloseSignal(err error) {
	if err != nil {
		s.mu.Lock()
		if s.err == nil {
			s.err = err
		}
		s.mu.Unlock()
	}
	s.once.Do(func() { close(s.closeCh) })
}

// Closing 关闭信号
func (s *SafeClose) Closing() <-chan struct{} {
	return s.closeCh
}

// WaitClosed blocks until every attached worker finished
func (s *SafeClose) WaitClosed() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
