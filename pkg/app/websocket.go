package app

import (
	"bytes"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/lxzan/gws"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/pkg/code"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
)

const (
	WebSocketServerPingInterval = 25 * time.Second
	WebSocketServerPingWait     = 40 * time.Second

	// 服务端保留的帧类型
	ActionAuthorization = "Authorization"
	ActionError         = "Error"
	ActionClose         = "close"
)

// ErrHubClosed 服务已关闭
var ErrHubClosed = errors.New("websocket hub closed")

type WebsocketServerConfig struct {
	GWSOption    gws.ServerOption
	PingInterval time.Duration
	PingWait     time.Duration
	// Tokens 为空时连接无需授权
	Tokens TokenManager
	// Verify rejects a client frame before it is relayed; nil accepts everything.
	Verify func(c *WebsocketClient, frame []byte) error
	// OnJoin / OnLeave 客户端完成授权、授权后断开
	OnJoin  func(c *WebsocketClient)
	OnLeave func(c *WebsocketClient)
	Logger  *zap.Logger
}

// WebsocketClient 每个 WebSocket 连接及其状态
type WebsocketClient struct {
	conn       *gws.Conn
	done       chan struct{}
	closeOnce  sync.Once
	authorized bool
	Ctx        *gin.Context
	Actor      *ActorEntity
}

// ActorID 授权的参与者，匿名连接为空
func (c *WebsocketClient) ActorID() string {
	if c.Actor == nil {
		return ""
	}
	return c.Actor.ActorID
}

// 定期发送 Ping 消息
func (c *WebsocketClient) pingLoop(interval time.Duration, lg *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WritePing(nil); err != nil {
				lg.Warn("websocket ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *WebsocketClient) stop() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ToResponse 将结果转换为 "action|json" 帧发送给客户端
func (c *WebsocketClient) ToResponse(codeObj *code.Code, action string) {
	body, err := sonic.Marshal(NewRes(codeObj))
	if err != nil {
		return
	}
	_ = c.conn.WriteMessage(gws.OpcodeText, joinFrame(action, body))
}

func joinFrame(action string, body []byte) []byte {
	frame := make([]byte, 0, len(action)+1+len(body))
	frame = append(frame, action...)
	frame = append(frame, '|')
	return append(frame, body...)
}

// SplitFrame 拆分 "action|payload" 帧
func SplitFrame(frame []byte) (action string, payload []byte, ok bool) {
	i := bytes.IndexByte(frame, '|')
	if i <= 0 {
		return "", nil, false
	}
	return string(frame[:i]), frame[i+1:], true
}

// ------------------------------------> WebsocketServer

type ConnStorage = map[*gws.Conn]*WebsocketClient

// WebsocketServer is a frame hub. Every frame an authorized client sends is broadcast to the
// other authorized clients and handed to the local frame handlers, which makes the server process
// one more peer on the board channel.
// WebsocketServer 帧转发中心
type WebsocketServer struct {
	mu       sync.RWMutex
	clients  ConnStorage
	handlers map[int]func([]byte)
	next     int
	closed   bool
	up       *gws.Upgrader
	config   *WebsocketServerConfig
	logger   *zap.Logger
}

func NewWebsocketServer(c WebsocketServerConfig) *WebsocketServer {
	if c.PingInterval == 0 {
		c.PingInterval = WebSocketServerPingInterval
	}
	if c.PingWait == 0 {
		c.PingWait = WebSocketServerPingWait
	}
	w := &WebsocketServer{
		clients:  make(ConnStorage),
		handlers: make(map[int]func([]byte)),
		config:   &c,
		logger:   logger.OrNop(c.Logger).Named("ws"),
	}
	w.up = gws.NewUpgrader(w, &w.config.GWSOption)
	return w
}

func (w *WebsocketServer) Run() gin.HandlerFunc {
	return func(c *gin.Context) {
		socket, err := w.up.Upgrade(c.Writer, c.Request)
		if err != nil {
			w.logger.Error("websocket upgrade failed", zap.Error(err))
			return
		}
		client := &WebsocketClient{conn: socket, done: make(chan struct{}), Ctx: c, authorized: w.config.Tokens == nil}
		if !w.AddClient(client) {
			_ = socket.WriteClose(1001, []byte("ServerClosing"))
			return
		}
		if client.authorized {
			w.joined(client)
		}
		go socket.ReadLoop()
	}
}

// Send broadcasts a frame to every authorized client
func (w *WebsocketServer) Send(frame []byte) error {
	if w.isClosed() {
		return ErrHubClosed
	}
	w.broadcast(frame, nil)
	return nil
}

// OnFrame registers a local frame handler; frames from every client reach it
func (w *WebsocketServer) OnFrame(fn func(frame []byte)) func() {
	w.mu.Lock()
	id := w.next
	w.next++
	w.handlers[id] = fn
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		delete(w.handlers, id)
		w.mu.Unlock()
	}
}

// Count 已授权的连接数
func (w *WebsocketServer) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	n := 0
	for _, c := range w.clients {
		if c.authorized {
			n++
		}
	}
	return n
}

// Close 关闭所有连接，之后 Send 返回 ErrHubClosed
func (w *WebsocketServer) Close() {
	w.mu.Lock()
	w.closed = true
	conns := make([]*gws.Conn, 0, len(w.clients))
	for conn := range w.clients {
		conns = append(conns, conn)
	}
	w.mu.Unlock()
	for _, conn := range conns {
		_ = conn.WriteClose(1001, []byte("ServerClosing"))
	}
}

func (w *WebsocketServer) isClosed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.closed
}

func (w *WebsocketServer) broadcast(frame []byte, exclude *gws.Conn) {
	w.mu.RLock()
	targets := make([]*gws.Conn, 0, len(w.clients))
	for conn, c := range w.clients {
		if c.authorized && conn != exclude {
			targets = append(targets, conn)
		}
	}
	w.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b := gws.NewBroadcaster(gws.OpcodeText, frame)
	defer b.Close()
	for _, conn := range targets {
		_ = b.Broadcast(conn)
	}
}

func (w *WebsocketServer) deliver(frame []byte) {
	w.mu.RLock()
	fns := make([]func([]byte), 0, len(w.handlers))
	for id := 0; id < w.next; id++ {
		if fn, ok := w.handlers[id]; ok {
			fns = append(fns, fn)
		}
	}
	w.mu.RUnlock()
	for _, fn := range fns {
		fn(frame)
	}
}

func (w *WebsocketServer) authorize(c *WebsocketClient, token []byte) {
	actor, err := w.config.Tokens.Parse(string(token))
	if err != nil {
		w.logger.Warn("websocket authorization failed", zap.Error(err))
		c.ToResponse(code.ErrorInvalidAuthToken, ActionAuthorization)
		_ = c.conn.WriteClose(1000, []byte("AuthorizationFailed"))
		return
	}

	w.mu.Lock()
	already := c.authorized
	c.Actor = actor
	c.authorized = true
	w.mu.Unlock()

	w.logger.Info("websocket actor enters",
		zap.String(logger.FieldActor, actor.ActorID),
		zap.Int(logger.FieldCount, w.Count()))
	c.ToResponse(code.Success.WithData(actor.ActorID), ActionAuthorization)
	if !already {
		w.joined(c)
	}
}

func (w *WebsocketServer) joined(c *WebsocketClient) {
	go c.pingLoop(w.config.PingInterval, w.logger)
	if w.config.OnJoin != nil {
		w.config.OnJoin(c)
	}
}

func (w *WebsocketServer) GetClient(conn *gws.Conn) *WebsocketClient {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.clients[conn]
}

func (w *WebsocketServer) AddClient(c *WebsocketClient) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.clients[c.conn] = c
	return true
}

func (w *WebsocketServer) RemoveClient(conn *gws.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.clients, conn)
}

func (w *WebsocketServer) OnOpen(conn *gws.Conn) {
	_ = conn.SetDeadline(time.Now().Add(w.config.PingWait))
}

func (w *WebsocketServer) OnClose(conn *gws.Conn, err error) {
	c := w.GetClient(conn)
	w.RemoveClient(conn)
	if c == nil {
		return
	}
	c.stop()
	if c.authorized && w.config.OnLeave != nil {
		w.config.OnLeave(c)
	}
	w.logger.Info("websocket client leaves", zap.String(logger.FieldActor, c.ActorID()), zap.NamedError("reason", err))
}

func (w *WebsocketServer) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.SetDeadline(time.Now().Add(w.config.PingWait))
	_ = socket.WritePong(nil)
}

func (w *WebsocketServer) OnPong(socket *gws.Conn, payload []byte) {
	_ = socket.SetDeadline(time.Now().Add(w.config.PingWait))
}

func (w *WebsocketServer) OnMessage(conn *gws.Conn, message *gws.Message) {
	defer message.Close()
	if message.Opcode != gws.OpcodeText {
		return
	}
	_ = conn.SetDeadline(time.Now().Add(w.config.PingWait))

	c := w.GetClient(conn)
	if c == nil {
		return
	}

	// gws 复用读缓冲，拷贝后再转发
	frame := append([]byte(nil), message.Data.Bytes()...)
	if string(frame) == ActionClose {
		_ = conn.WriteClose(1000, []byte("ClientClose"))
		return
	}

	action, payload, ok := SplitFrame(frame)
	if !ok {
		w.logger.Warn("websocket drops malformed frame", zap.String(logger.FieldActor, c.ActorID()), zap.Int(logger.FieldCount, len(frame)))
		return
	}

	switch action {
	case ActionAuthorization:
		if w.config.Tokens != nil {
			w.authorize(c, payload)
		}
		return
	case ActionError:
		return
	}

	w.mu.RLock()
	authorized := c.authorized
	w.mu.RUnlock()
	if !authorized {
		c.ToResponse(code.ErrorNotAuthorized, ActionError)
		return
	}

	if w.config.Verify != nil {
		if err := w.config.Verify(c, frame); err != nil {
			w.logger.Warn("websocket frame rejected",
				zap.String(logger.FieldActor, c.ActorID()),
				zap.String(logger.FieldAction, action),
				zap.Error(err))
			c.ToResponse(code.ErrorPermissionDenied.WithDetails(err.Error()), ActionError)
			return
		}
	}

	w.broadcast(frame, conn)
	w.deliver(frame)
}
