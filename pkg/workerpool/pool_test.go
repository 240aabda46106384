package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSubmit(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New(&Config{MaxWorkers: 2, QueueSize: 4}, nil)

	want := errors.New("decode failed")
	assert.NoError(t, p.Submit(context.Background(), func(context.Context) error { return nil }))
	assert.ErrorIs(t, p.Submit(context.Background(), func(context.Context) error { return want }), want)
	assert.Equal(t, int64(1), p.Stats().Failed)

	require.NoError(t, p.Shutdown(context.Background()))
	assert.ErrorIs(t, p.SubmitAsync(context.Background(), func(context.Context) error { return nil }), ErrWorkerPoolClosed)
}

func TestSubmitAsyncDrainsOnShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New(&Config{MaxWorkers: 1, QueueSize: 16}, nil)

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.SubmitAsync(context.Background(), func(context.Context) error {
			time.Sleep(time.Millisecond)
			n.Add(1)
			return nil
		}))
	}

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(10), n.Load())
}

func TestQueueFull(t *testing.T) {
	p := New(&Config{MaxWorkers: 1, QueueSize: 1}, nil)
	defer p.Shutdown(context.Background())

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.SubmitAsync(context.Background(), func(context.Context) error {
		close(started)
		<-block
		return nil
	}))
	<-started
	require.NoError(t, p.SubmitAsync(context.Background(), func(context.Context) error { return nil }))

	assert.ErrorIs(t, p.SubmitAsync(context.Background(), func(context.Context) error { return nil }), ErrWorkerPoolFull)
	close(block)
}

func TestCancelledTaskSkipped(t *testing.T) {
	p := New(&Config{MaxWorkers: 1, QueueSize: 2}, nil)
	defer p.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	_ = p.SubmitAsync(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, p.Shutdown(context.Background()))
	assert.False(t, ran)
}
