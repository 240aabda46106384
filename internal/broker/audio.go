package broker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/pkg/logger"
)

const (
	// GlobalVolume volume of broadcast playback
	GlobalVolume = 0.8
	// cleanupGrace added to the sound duration before the reference is dropped
	cleanupGrace = time.Second
	// cleanupFallback used when the duration is unknown
	cleanupFallback = 5 * time.Second
)

// Sound 宿主播放中的声音
type Sound interface {
	Playing() bool
	Stop()
	// Duration zero when unknown
	Duration() time.Duration
}

// AudioPlayer host audio output. The tape effect is applied by the host when applyEffect is set.
type AudioPlayer interface {
	Play(ctx context.Context, path string, volume float64, applyEffect bool) (Sound, error)
}

// AudioRegistry local references to globally broadcast sounds, keyed by path
// AudioRegistry 全局广播音频的本地引用
type AudioRegistry struct {
	player AudioPlayer
	logger *zap.Logger

	mu     sync.Mutex
	sounds map[string]Sound
	timers map[string]*time.Timer
	// starting paths whose player call is in flight; true once Stop or Close cancelled them
	starting map[string]bool
	// after is time.AfterFunc, replaceable in tests
	after func(d time.Duration, f func()) *time.Timer
}

// NewAudioRegistry 创建音频注册表
func NewAudioRegistry(player AudioPlayer, lg *zap.Logger) *AudioRegistry {
	return &AudioRegistry{
		player: player,
		logger: logger.OrNop(lg),
		sounds:   map[string]Sound{},
		timers:   map[string]*time.Timer{},
		starting: map[string]bool{},
		after:    time.AfterFunc,
	}
}

// Play starts path unless it is already playing or starting. Reports whether playback started.
// A finished sound still referenced for path is stopped and replaced.
func (r *AudioRegistry) Play(ctx context.Context, path string, applyEffect bool) (bool, error) {
	if r == nil || r.player == nil || path == "" {
		return false, nil
	}

	r.mu.Lock()
	if _, busy := r.starting[path]; busy {
		r.mu.Unlock()
		return false, nil
	}
	if s, ok := r.sounds[path]; ok && s.Playing() {
		r.mu.Unlock()
		return false, nil
	}
	r.starting[path] = false
	r.mu.Unlock()

	sound, err := r.player.Play(ctx, path, GlobalVolume, applyEffect)

	r.mu.Lock()
	cancelled := r.starting[path]
	delete(r.starting, path)
	if err != nil || sound == nil {
		r.mu.Unlock()
		if err != nil {
			r.logger.Warn("play global audio failed", zap.String(logger.FieldPath, path), zap.Error(err))
		}
		return false, err
	}
	if cancelled {
		r.mu.Unlock()
		sound.Stop()
		r.logger.Info("global audio stopped while starting", zap.String(logger.FieldPath, path))
		return false, nil
	}

	wait := cleanupFallback
	if d := sound.Duration(); d > 0 {
		wait = d + cleanupGrace
	}
	prev := r.sounds[path]
	r.sounds[path] = sound
	if t, ok := r.timers[path]; ok {
		t.Stop()
	}
	r.timers[path] = r.after(wait, func() { r.expire(path, sound) })
	r.mu.Unlock()

	if prev != nil && prev != sound {
		prev.Stop()
	}
	r.logger.Info("playing global audio", zap.String(logger.FieldPath, path), zap.Duration(logger.FieldDuration, wait))
	return true, nil
}

// Stop 停止并移除引用
func (r *AudioRegistry) Stop(path string) bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	if _, busy := r.starting[path]; busy {
		r.starting[path] = true
	}
	sound, ok := r.sounds[path]
	delete(r.sounds, path)
	if t, found := r.timers[path]; found {
		t.Stop()
		delete(r.timers, path)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	sound.Stop()
	r.logger.Info("stopped global audio", zap.String(logger.FieldPath, path))
	return true
}

// Playing reports whether path has a live reference
func (r *AudioRegistry) Playing(path string) bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sounds[path]
	return ok && s.Playing()
}

// Len 当前引用数量
func (r *AudioRegistry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sounds)
}

// Close stops every sound and pending cleanup timer
func (r *AudioRegistry) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	sounds := r.sounds
	for _, t := range r.timers {
		t.Stop()
	}
	r.sounds = map[string]Sound{}
	r.timers = map[string]*time.Timer{}
	for path := range r.starting {
		r.starting[path] = true
	}
	r.mu.Unlock()

	for _, s := range sounds {
		s.Stop()
	}
}

// expire drops the reference once playback has ended, unless a newer sound replaced it
func (r *AudioRegistry) expire(path string, sound Sound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sounds[path] == sound && !sound.Playing() {
		delete(r.sounds, path)
		delete(r.timers, path)
	}
}
