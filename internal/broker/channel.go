package broker

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/pkg/logger"
)

// ErrChannelUnavailable 消息通道不可用
var ErrChannelUnavailable = errors.New("message channel unavailable")

// Channel process-wide broadcast primitive. Emit never delivers back to the emitting endpoint.
// Channel 消息通道
type Channel interface {
	Emit(ctx context.Context, m Message) error
	On(fn func(Message)) (cancel func())
}

// FrameTransport carries encoded frames, e.g. a websocket connection
type FrameTransport interface {
	Send(frame []byte) error
	OnFrame(fn func(frame []byte)) (cancel func())
}

// frameChannel adapts a FrameTransport to Channel using the action|json codec
type frameChannel struct {
	transport FrameTransport
	logger    *zap.Logger
}

// NewFrameChannel 基于帧传输的消息通道；transport 为 nil 时 Emit 返回 ErrChannelUnavailable
func NewFrameChannel(t FrameTransport, lg *zap.Logger) Channel {
	return &frameChannel{transport: t, logger: logger.OrNop(lg)}
}

func (c *frameChannel) Emit(_ context.Context, m Message) error {
	if c.transport == nil {
		return ErrChannelUnavailable
	}
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	if err := c.transport.Send(frame); err != nil {
		return errors.Wrap(ErrChannelUnavailable, err.Error())
	}
	return nil
}

func (c *frameChannel) On(fn func(Message)) func() {
	if c.transport == nil {
		return func() {}
	}
	return c.transport.OnFrame(func(frame []byte) {
		m, err := Decode(frame)
		if err != nil {
			c.logger.Error("drop undecodable frame", zap.Error(err), zap.Int(logger.FieldCount, len(frame)))
			return
		}
		fn(m)
	})
}

// LocalBus in-process channel. Every endpoint created by Endpoint receives what the other
// endpoints emit. Messages pass through the wire codec so receivers never share memory with
// the sender.
// LocalBus 进程内消息总线
type LocalBus struct {
	mu        sync.RWMutex
	endpoints map[int]*busEndpoint
	nextID    int
	closed    bool
	logger    *zap.Logger
}

// NewLocalBus 创建进程内总线
func NewLocalBus(lg *zap.Logger) *LocalBus {
	return &LocalBus{endpoints: map[int]*busEndpoint{}, logger: logger.OrNop(lg)}
}

// Endpoint 新建一个端点
func (b *LocalBus) Endpoint() Channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	ep := &busEndpoint{bus: b, id: b.nextID, handlers: map[int]func(Message){}}
	b.endpoints[ep.id] = ep
	b.nextID++
	return ep
}

// Close makes every later Emit fail with ErrChannelUnavailable
func (b *LocalBus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

func (b *LocalBus) deliver(from int, frame []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrChannelUnavailable
	}
	var targets []func(Message)
	for id := 0; id < b.nextID; id++ {
		ep, ok := b.endpoints[id]
		if !ok || id == from {
			continue
		}
		targets = append(targets, ep.snapshot()...)
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		m, err := Decode(frame)
		if err != nil {
			return err
		}
		fn(m)
	}
	return nil
}

type busEndpoint struct {
	bus *LocalBus
	id  int

	mu       sync.Mutex
	handlers map[int]func(Message)
	next     int
}

func (e *busEndpoint) Emit(_ context.Context, m Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	return e.bus.deliver(e.id, frame)
}

func (e *busEndpoint) On(fn func(Message)) func() {
	e.mu.Lock()
	id := e.next
	e.next++
	e.handlers[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.handlers, id)
		e.mu.Unlock()
	}
}

func (e *busEndpoint) snapshot() []func(Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]func(Message), 0, len(e.handlers))
	for id := 0; id < e.next; id++ {
		if fn, ok := e.handlers[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}
