package headless

import (
	"context"
	"sync"
	"time"

	"github.com/haierkeys/evidence-board-service/internal/broker"
)

// AudioPlayer silent player; sounds report playing for their nominal duration
type AudioPlayer struct {
	// Duration given to every sound, zero means unknown
	Duration time.Duration

	mu     sync.Mutex
	played []string
}

var _ broker.AudioPlayer = (*AudioPlayer)(nil)

func (p *AudioPlayer) Play(_ context.Context, path string, _ float64, _ bool) (broker.Sound, error) {
	p.mu.Lock()
	p.played = append(p.played, path)
	p.mu.Unlock()
	return &sound{start: time.Now(), duration: p.Duration}, nil
}

// Played paths played so far
func (p *AudioPlayer) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

type sound struct {
	mu       sync.Mutex
	start    time.Time
	duration time.Duration
	stopped  bool
}

func (s *sound) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	return s.duration <= 0 || time.Since(s.start) < s.duration
}

func (s *sound) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

func (s *sound) Duration() time.Duration { return s.duration }
