package writequeue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestManager(t *testing.T, cfg *Config) *Manager {
	t.Helper()
	m := New(cfg, nil)
	t.Cleanup(func() {
		_ = m.Shutdown(context.Background())
	})
	return m
}

func TestExecuteReturnsResult(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := New(nil, nil)
	want := errors.New("boom")

	assert.NoError(t, m.Execute(context.Background(), "note-1", func() error { return nil }))
	assert.ErrorIs(t, m.Execute(context.Background(), "note-1", func() error { return want }), want)
	assert.Equal(t, 1, m.QueueCount())

	require.NoError(t, m.Shutdown(context.Background()))
	assert.ErrorIs(t, m.Execute(context.Background(), "note-1", func() error { return nil }), ErrWriteQueueClosed)
	assert.True(t, m.Stats().IsClosed)
}

func TestExecuteSameKeyNeverOverlaps(t *testing.T) {
	m := newTestManager(t, nil)

	var running, maxRunning atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Execute(context.Background(), "same", func() error {
				n := running.Add(1)
				for {
					cur := maxRunning.Load()
					if n <= cur || maxRunning.CompareAndSwap(cur, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxRunning.Load())
	assert.Equal(t, int64(50), m.Stats().Executed)
}

func TestExecuteQueueFull(t *testing.T) {
	m := newTestManager(t, &Config{QueueCapacity: 1})

	block := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = m.Execute(context.Background(), "k", func() error {
			close(started)
			<-block
			return nil
		})
	}()
	<-started

	// fills the single slot
	go func() { _ = m.Execute(context.Background(), "k", func() error { return nil }) }()
	require.Eventually(t, func() bool { return m.QueuedCount("k") == 1 }, time.Second, time.Millisecond)

	err := m.Execute(context.Background(), "k", func() error { return nil })
	assert.ErrorIs(t, err, ErrWriteQueueFull)
	assert.Equal(t, int64(1), m.Stats().Rejected)

	close(block)
}

func TestExecuteTimeout(t *testing.T) {
	m := newTestManager(t, &Config{WriteTimeout: 20 * time.Millisecond})

	release := make(chan struct{})
	err := m.Execute(context.Background(), "slow", func() error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, ErrWriteTimeout)
	close(release)
}

func TestReclaimIdle(t *testing.T) {
	m := newTestManager(t, &Config{IdleTimeout: time.Hour})

	require.NoError(t, m.Execute(context.Background(), "a", func() error { return nil }))
	require.NoError(t, m.Execute(context.Background(), "b", func() error { return nil }))
	assert.Equal(t, 2, m.QueueCount())

	assert.Equal(t, 0, m.reclaimIdle(time.Now()))
	assert.Equal(t, 2, m.reclaimIdle(time.Now().Add(2*time.Hour)))
	assert.Equal(t, 0, m.QueueCount())

	// a reclaimed key gets a fresh queue
	assert.NoError(t, m.Execute(context.Background(), "a", func() error { return nil }))
}

// 同一 key 的写操作按提交顺序执行

func TestExecuteKeepsFIFOPerKey(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("writes on one key apply in submission order", prop.ForAll(
		func(n int) bool {
			m := New(nil, nil)
			defer m.Shutdown(context.Background())

			var got []int
			for i := 0; i < n; i++ {
				i := i
				if err := m.Execute(context.Background(), "note", func() error {
					got = append(got, i)
					return nil
				}); err != nil {
					return false
				}
			}
			for i, v := range got {
				if v != i {
					return false
				}
			}
			return len(got) == n
		},
		gen.IntRange(1, 40),
	))

	properties.TestingRun(t)
}
