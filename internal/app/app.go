// Package app 提供应用容器，封装所有依赖和服务
package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/lxzan/gws"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/haierkeys/evidence-board-service/internal/assets"
	"github.com/haierkeys/evidence-board-service/internal/board"
	"github.com/haierkeys/evidence-board-service/internal/broker"
	"github.com/haierkeys/evidence-board-service/internal/dao"
	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/internal/metrics"
	pkgapp "github.com/haierkeys/evidence-board-service/pkg/app"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
	"github.com/haierkeys/evidence-board-service/pkg/workerpool"
	"github.com/haierkeys/evidence-board-service/pkg/writequeue"
)

var (
	// ErrImpersonation a peer sent a relay request on behalf of another actor
	ErrImpersonation = errors.New("requesting actor does not match the authorized actor")
	// ErrAnonymousMutation an unauthenticated peer asked for a write
	ErrAnonymousMutation = errors.New("anonymous peers may not change the board")
)

// App 应用容器，封装所有依赖和服务
type App struct {
	// 基础设施（注入的依赖）
	config *AppConfig
	logger *zap.Logger
	DB     *gorm.DB

	// 并发控制组件
	workerPool    *workerpool.Pool
	writeQueueMgr *writequeue.Manager

	Store   domain.DocumentStore
	Metrics *metrics.Metrics
	Assets  *assets.Loader

	// 消息通道：websocket 帧中心 + 特权端中继
	Hub    *pkgapp.WebsocketServer
	Tokens pkgapp.TokenManager
	Relay  *broker.Relay
	Broker *broker.Broker

	StartTime time.Time

	// 关闭控制
	stopMu     sync.Mutex
	stops      []func()
	shutdownCh chan struct{}
}

// NewApp 创建应用容器实例
// cfg: 应用配置（必须）
// logger: zap 日志器（必须）
// db: 数据库连接（必须）
func NewApp(cfg *AppConfig, lg *zap.Logger, db *gorm.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if lg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	a := &App{
		config:     cfg,
		logger:     lg,
		DB:         db,
		Metrics:    metrics.New(),
		StartTime:  time.Now(),
		shutdownCh: make(chan struct{}),
	}

	poolCfg := cfg.Assets.Pool
	a.workerPool = workerpool.New(&poolCfg, lg)
	queueCfg := cfg.Relay.Queue
	a.writeQueueMgr = writequeue.New(&queueCfg, lg)

	a.Store = dao.NewDocumentRepository(db, a.writeQueueMgr, lg)
	a.Assets = assets.NewLoader(assets.NewFs(cfg.Assets.Root), cfg.Assets.Config, a.workerPool, lg, a.Metrics)

	if tc, ok := cfg.TokenConfig(); ok {
		a.Tokens = pkgapp.NewTokenManager(tc)
	}

	a.Hub = pkgapp.NewWebsocketServer(pkgapp.WebsocketServerConfig{
		GWSOption: gws.ServerOption{
			CheckUtf8Enabled:  true,
			Recovery:          gws.Recovery,
			PermessageDeflate: gws.PermessageDeflate{Enabled: true},
		},
		Tokens:  a.Tokens,
		Verify:  a.verifyFrame,
		OnJoin:  func(*pkgapp.WebsocketClient) { a.Metrics.PeerConnected() },
		OnLeave: func(*pkgapp.WebsocketClient) { a.Metrics.PeerDisconnected() },
		Logger:  lg,
	})

	actor := cfg.RelayActor()
	a.Relay = broker.NewRelay(a.Store, a.writeQueueMgr, actor, cfg.Board, lg, a.Metrics)
	a.Broker = broker.New(broker.Options{
		Store:    a.Store,
		Channel:  broker.NewFrameChannel(a.Hub, lg),
		Actor:    actor,
		Defaults: cfg.Board,
		Relay:    a.Relay,
		Logger:   lg,
		Metrics:  a.Metrics,
	})

	lg.Info("App container initialized successfully",
		zap.String(logger.FieldActor, actor.ID),
		zap.Int("assetWorkers", poolCfg.MaxWorkers),
		zap.Int("writeQueueCapacity", queueCfg.QueueCapacity))
	return a, nil
}

// verifyFrame rejects change notifications from peers, relay requests sent in someone else's
// name, and any write from a peer without an actor. Anonymous peers only watch and play audio.
func (a *App) verifyFrame(c *pkgapp.WebsocketClient, frame []byte) error {
	m, err := broker.Decode(frame)
	if err != nil {
		return err
	}
	var requester string
	switch m := m.(type) {
	case *broker.UpdateRequest:
		requester = m.RequestingActor
	case *broker.CreateRequest:
		requester = m.RequestingActor
	case *broker.DeleteRequest:
		requester = m.RequestingActor
	case *broker.DocumentChanged:
		return errors.New("only the store host publishes changes")
	default:
		return nil
	}
	if c.Actor == nil {
		return errors.Wrapf(ErrAnonymousMutation, "as %s", requester)
	}
	if requester != c.Actor.ActorID {
		return errors.Wrapf(ErrImpersonation, "%s as %s", c.Actor.ActorID, requester)
	}
	return nil
}

// Start 开始监听中继请求并向远端广播存储变更
func (a *App) Start(ctx context.Context) {
	a.stopMu.Lock()
	defer a.stopMu.Unlock()
	a.stops = append(a.stops, a.Broker.Listen(ctx), a.Broker.PublishChanges(ctx))
}

// SnapshotOptions SVG 快照参数，画布大小取自配置
func (a *App) SnapshotOptions() board.SnapshotOptions {
	return board.SnapshotOptions{
		Store:    a.Store,
		Defaults: a.config.Board,
		Loader:   a.Assets,
		Width:    a.config.Server.RenderWidth,
		Height:   a.config.Server.RenderHeight,
		Logger:   a.logger,
		Metrics:  a.Metrics,
	}
}

// RenderScene writes the scene's board as SVG
func (a *App) RenderScene(ctx context.Context, sceneID string, w io.Writer) (int, error) {
	return board.RenderSVG(ctx, sceneID, a.SnapshotOptions(), w)
}

// Config 获取应用配置
func (a *App) Config() *AppConfig {
	return a.config
}

// Logger 获取日志器
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Version 获取版本信息
func (a *App) Version() pkgapp.VersionInfo {
	return pkgapp.VersionInfo{
		Version:   Version,
		GitTag:    GitTag,
		BuildTime: BuildTime,
	}
}

// IsProductionMode 是否为生产模式
func (a *App) IsProductionMode() bool {
	return a.config.Log.Production
}

// WorkerPool 获取 Worker Pool
func (a *App) WorkerPool() *workerpool.Pool {
	return a.workerPool
}

// WriteQueueManager 获取 Write Queue Manager
func (a *App) WriteQueueManager() *writequeue.Manager {
	return a.writeQueueMgr
}

// DefaultShutdownTimeout 默认关闭超时时间
const DefaultShutdownTimeout = 30 * time.Second

// Shutdown 优雅关闭应用容器
// 按顺序关闭：Hub -> 订阅 -> Worker Pool -> Write Queue Manager -> Database
func (a *App) Shutdown(ctx context.Context) error {
	select {
	case <-a.shutdownCh:
		return nil
	default:
		close(a.shutdownCh)
	}
	a.logger.Info("App container shutting down...")

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
	}

	a.Hub.Close()

	a.stopMu.Lock()
	for _, stop := range a.stops {
		stop()
	}
	a.stops = nil
	a.stopMu.Unlock()

	var errs []error
	if err := a.workerPool.Shutdown(ctx); err != nil {
		a.logger.Warn("Worker pool shutdown error", zap.Error(err))
		errs = append(errs, fmt.Errorf("worker pool shutdown: %w", err))
	}
	if err := a.writeQueueMgr.Shutdown(ctx); err != nil {
		a.logger.Warn("write queue manager shutdown error", zap.Error(err))
		errs = append(errs, fmt.Errorf("write queue manager shutdown: %w", err))
	}

	if sqlDB, err := a.DB.DB(); err != nil {
		errs = append(errs, fmt.Errorf("failed to get sql.DB: %w", err))
	} else if err := sqlDB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}

	if len(errs) > 0 {
		a.logger.Warn("App container shutdown completed with errors", zap.Int(logger.FieldCount, len(errs)))
		return fmt.Errorf("shutdown completed with %d errors: %v", len(errs), errs)
	}
	a.logger.Info("App container shutdown completed successfully")
	return nil
}

// IsShuttingDown 检查应用是否正在关闭
func (a *App) IsShuttingDown() bool {
	select {
	case <-a.shutdownCh:
		return true
	default:
		return false
	}
}
