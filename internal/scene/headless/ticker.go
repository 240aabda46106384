package headless

import (
	"sync"
	"time"
)

// DefaultFrameInterval about 60 frames per second
const DefaultFrameInterval = 16 * time.Millisecond

// Ticker runs registered callbacks every frame. The frame goroutine exists only while at least
// one callback is registered.
// Ticker 帧回调
type Ticker struct {
	interval time.Duration

	mu     sync.Mutex
	fns    map[int]func(time.Duration)
	nextID int
	stop   chan struct{}
	frames int
}

// NewTicker interval <= 0 means DefaultFrameInterval
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Ticker{interval: interval, fns: map[int]func(time.Duration){}}
}

// Add registers fn; the returned func removes it
func (t *Ticker) Add(fn func(delta time.Duration)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.fns[id] = fn
	if t.stop == nil {
		t.stop = make(chan struct{})
		go t.loop(t.stop)
	}
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(id) })
	}
}

func (t *Ticker) remove(id int) {
	t.mu.Lock()
	delete(t.fns, id)
	if len(t.fns) == 0 && t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.mu.Unlock()
}

// Len 已注册回调数量
func (t *Ticker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.fns)
}

// Running reports whether the frame goroutine is active
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

// Frames number of frames delivered so far
func (t *Ticker) Frames() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

// Step delivers one frame synchronously
func (t *Ticker) Step() {
	t.fire(t.interval)
}

// Stop removes every callback
func (t *Ticker) Stop() {
	t.mu.Lock()
	ids := make([]int, 0, len(t.fns))
	for id := range t.fns {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	for _, id := range ids {
		t.remove(id)
	}
}

func (t *Ticker) loop(stop chan struct{}) {
	tk := time.NewTicker(t.interval)
	defer tk.Stop()
	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-tk.C:
			t.fire(now.Sub(last))
			last = now
		}
	}
}

func (t *Ticker) fire(delta time.Duration) {
	t.mu.Lock()
	ids := make([]int, 0, len(t.fns))
	for id := 0; id < t.nextID; id++ {
		if _, ok := t.fns[id]; ok {
			ids = append(ids, id)
		}
	}
	fns := make([]func(time.Duration), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, t.fns[id])
	}
	t.frames++
	t.mu.Unlock()

	for _, fn := range fns {
		fn(delta)
	}
}
