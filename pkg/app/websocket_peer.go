package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/lxzan/gws"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/pkg/logger"
)

var (
	// ErrPeerClosed 连接已关闭
	ErrPeerClosed = errors.New("websocket peer closed")
	// ErrAuthorizationRejected 服务端拒绝授权
	ErrAuthorizationRejected = errors.New("websocket authorization rejected")
)

// WebsocketPeerConfig 客户端连接配置
type WebsocketPeerConfig struct {
	Addr         string
	Token        string
	PingInterval time.Duration
	Logger       *zap.Logger
}

// WebsocketPeer the client side of the frame hub. It carries board frames for one actor;
// frames the hub reserves (Authorization, Error) never reach OnFrame handlers.
// WebsocketPeer 客户端帧传输
type WebsocketPeer struct {
	gws.BuiltinEventHandler

	conn   *gws.Conn
	logger *zap.Logger
	authCh chan Res

	mu       sync.RWMutex
	handlers map[int]func([]byte)
	next     int
	closed   bool
	done     chan struct{}
}

// DialWebsocket connects to the hub and, when a token is set, waits for the authorization reply.
func DialWebsocket(ctx context.Context, cfg WebsocketPeerConfig) (*WebsocketPeer, error) {
	if cfg.PingInterval == 0 {
		cfg.PingInterval = WebSocketServerPingInterval
	}
	p := &WebsocketPeer{
		logger:   logger.OrNop(cfg.Logger).Named("ws-peer"),
		authCh:   make(chan Res, 1),
		handlers: make(map[int]func([]byte)),
		done:     make(chan struct{}),
	}

	conn, _, err := gws.NewClient(p, &gws.ClientOption{
		Addr:          cfg.Addr,
		RequestHeader: http.Header{},
	})
	if err != nil {
		return nil, errors.Wrap(err, "dial websocket")
	}
	p.conn = conn
	go conn.ReadLoop()

	if cfg.Token != "" {
		if err := conn.WriteMessage(gws.OpcodeText, joinFrame(ActionAuthorization, []byte(cfg.Token))); err != nil {
			p.Close()
			return nil, errors.Wrap(err, "send authorization")
		}
		select {
		case res := <-p.authCh:
			if !res.Status {
				p.Close()
				return nil, errors.Wrapf(ErrAuthorizationRejected, "code %d", res.Code)
			}
		case <-p.done:
			return nil, ErrAuthorizationRejected
		case <-ctx.Done():
			p.Close()
			return nil, ctx.Err()
		}
	}

	go p.pingLoop(cfg.PingInterval)
	return p, nil
}

// Send 发送一帧
func (p *WebsocketPeer) Send(frame []byte) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPeerClosed
	}
	return p.conn.WriteMessage(gws.OpcodeText, frame)
}

// OnFrame 注册帧处理函数
func (p *WebsocketPeer) OnFrame(fn func(frame []byte)) func() {
	p.mu.Lock()
	id := p.next
	p.next++
	p.handlers[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.handlers, id)
		p.mu.Unlock()
	}
}

// Done is closed once the connection is gone
func (p *WebsocketPeer) Done() <-chan struct{} {
	return p.done
}

// Close 关闭连接并等待读循环退出
func (p *WebsocketPeer) Close() {
	p.mu.Lock()
	already := p.closed
	p.closed = true
	p.mu.Unlock()
	if !already {
		_ = p.conn.WriteClose(1000, []byte("bye"))
	}
	<-p.done
}

func (p *WebsocketPeer) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if err := p.conn.WritePing(nil); err != nil {
				return
			}
		}
	}
}

func (p *WebsocketPeer) OnClose(_ *gws.Conn, err error) {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	close(p.done)
	p.logger.Debug("websocket peer closed", zap.NamedError("reason", err))
}

func (p *WebsocketPeer) OnPing(socket *gws.Conn, _ []byte) {
	_ = socket.WritePong(nil)
}

func (p *WebsocketPeer) OnMessage(_ *gws.Conn, message *gws.Message) {
	defer message.Close()
	if message.Opcode != gws.OpcodeText {
		return
	}
	frame := append([]byte(nil), message.Data.Bytes()...)
	action, payload, ok := SplitFrame(frame)
	if !ok {
		return
	}

	switch action {
	case ActionAuthorization:
		var res Res
		if err := sonic.Unmarshal(payload, &res); err != nil {
			res = Res{}
		}
		select {
		case p.authCh <- res:
		default:
		}
		return
	case ActionError:
		p.logger.Warn("websocket hub reported an error", zap.ByteString("payload", payload))
		return
	}

	p.mu.RLock()
	fns := make([]func([]byte), 0, len(p.handlers))
	for id := 0; id < p.next; id++ {
		if fn, ok := p.handlers[id]; ok {
			fns = append(fns, fn)
		}
	}
	p.mu.RUnlock()
	for _, fn := range fns {
		fn(frame)
	}
}
