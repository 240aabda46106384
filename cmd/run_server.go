package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	internalApp "github.com/haierkeys/evidence-board-service/internal/app"
	"github.com/haierkeys/evidence-board-service/internal/dao"
	"github.com/haierkeys/evidence-board-service/internal/routers"
	"github.com/haierkeys/evidence-board-service/internal/task"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
	"github.com/haierkeys/evidence-board-service/pkg/safe_close"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// defaultSecretKeys 需要提示更换的默认密钥
var defaultSecretKeys = []string{
	"evidence-board-Auth-Token",
}

type Server struct {
	logger            *zap.Logger
	config            *internalApp.AppConfig
	httpServer        *http.Server
	privateHttpServer *http.Server
	sc                *safe_close.SafeClose
	app               *internalApp.App
}

// checkSecurityConfigWithConfig 检查安全配置，未授权或使用默认密钥时输出警告
func checkSecurityConfigWithConfig(cfg *internalApp.AppConfig, lg *zap.Logger) {
	if cfg.Security.AuthTokenKey == "" {
		lg.Warn("security.auth-token-key is empty, any websocket peer may join the board unauthenticated")
		return
	}
	for _, key := range defaultSecretKeys {
		if cfg.Security.AuthTokenKey != key {
			continue
		}
		fmt.Println()
		fmt.Println(strings.Repeat("=", 60))
		fmt.Println("SECURITY WARNING: Using default secret key!")
		fmt.Println()
		fmt.Println("Please modify 'security.auth-token-key' in config.yaml")
		fmt.Println("Generate a secure key with:")
		fmt.Println("  openssl rand -base64 32")
		fmt.Println(strings.Repeat("=", 60))
		fmt.Println()
		lg.Warn("Using default secret key - please change security.auth-token-key in config.yaml")
		return
	}
}

// bootApp loads the config and builds the logger, database and App Container.
// bootApp 加载配置并创建 App Container
func bootApp(configFile, runMode string) (*internalApp.App, string, error) {
	appConfig, configRealpath, err := internalApp.LoadConfig(configFile)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	if runMode != "" {
		appConfig.Server.RunMode = runMode
	}
	gin.SetMode(appConfig.Server.RunMode)

	lg, err := logger.NewLogger(appConfig.LoggerConfig())
	if err != nil {
		return nil, "", fmt.Errorf("failed to init logger: %w", err)
	}

	if err := initStorageWithConfig(appConfig); err != nil {
		return nil, "", fmt.Errorf("initStorage: %w", err)
	}

	db, err := dao.NewDBEngine(appConfig.Database, lg)
	if err != nil {
		return nil, "", fmt.Errorf("initDatabase: %w", err)
	}

	a, err := internalApp.NewApp(appConfig, lg, db)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create app container: %w", err)
	}
	return a, configRealpath, nil
}

func NewServer(runEnv *runFlags) (*Server, error) {
	a, configRealpath, err := bootApp(runEnv.config, runEnv.runMode)
	if err != nil {
		return nil, err
	}
	appConfig := a.Config()
	if runEnv.port != "" {
		appConfig.Server.HttpPort = ":" + strings.TrimPrefix(runEnv.port, ":")
	}

	s := &Server{
		logger: a.Logger(),
		config: appConfig,
		sc:     safe_close.NewSafeClose(),
		app:    a,
	}

	checkSecurityConfigWithConfig(appConfig, s.logger)

	// 中继监听 + 变更广播，随关闭信号停止
	ctx, cancel := context.WithCancel(context.Background())
	a.Start(ctx)

	initScheduler(s)

	banner := `
    ______      _     __                        ____                       __
   / ____/   __(_)___/ /__  ____  ________     / __ )____  ____ __________/ /
  / __/ | | / / / __  / _ \/ __ \/ ___/ _ \   / __  / __ \/ __ '/ ___/ __  /
 / /___ | |/ / / /_/ /  __/ / / / /__/  __/  / /_/ / /_/ / /_/ / /  / /_/ /
/_____/ |___/_/\__,_/\___/_/ /_/\___/\___/  /_____/\____/\__,_/_/   \__,_/  `
	s.logger.Warn(fmt.Sprintf("%s\n\n%s v%s\nGit: %s\nBuildTime: %s\n", banner, internalApp.Name, internalApp.Version, internalApp.GitTag, internalApp.BuildTime))
	s.logger.Warn("config loaded", zap.String(logger.FieldPath, configRealpath))

	if httpAddr := appConfig.Server.HttpPort; len(httpAddr) > 0 {
		s.logger.Warn("api_router", zap.String("config.server.HttpPort", httpAddr))
		s.httpServer = &http.Server{
			Addr:           httpAddr,
			Handler:        routers.NewRouter(a),
			ReadTimeout:    appConfig.Server.ReadTimeout,
			WriteTimeout:   appConfig.Server.WriteTimeout,
			MaxHeaderBytes: 1 << 20,
		}
		s.attachHTTP(s.httpServer, "api service")
	}

	if httpAddr := appConfig.Server.PrivateHttpListen; len(httpAddr) > 0 {
		s.logger.Info("api_router", zap.String("config.server.PrivateHttpListen", httpAddr))
		s.privateHttpServer = &http.Server{
			Addr:           httpAddr,
			Handler:        routers.NewPrivateRouterWithLogger(appConfig.Server.RunMode, s.logger, a.Metrics),
			ReadTimeout:    appConfig.Server.ReadTimeout,
			WriteTimeout:   appConfig.Server.WriteTimeout,
			MaxHeaderBytes: 1 << 20,
		}
		s.attachHTTP(s.privateHttpServer, "private api service")
	}

	// App Container 的优雅关闭
	s.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
		defer done()
		<-closeSignal
		cancel()
		ctx, cancelShutdown := context.WithTimeout(context.Background(), internalApp.DefaultShutdownTimeout)
		defer cancelShutdown()

		if err := s.app.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown app container", zap.Error(err))
		} else {
			s.logger.Info("App container shutdown gracefully")
		}
	})

	return s, nil
}

func (s *Server) attachHTTP(srv *http.Server, name string) {
	s.sc.Attach(func(done func(), closeSignal <-chan struct{}) {
		defer done()
		errChan := make(chan error, 1)
		go func() {
			errChan <- srv.ListenAndServe()
		}()
		select {
		case err := <-errChan:
			s.logger.Error(name+" err", zap.Error(err))
			s.sc.SendCloseSignal(err)
		case <-closeSignal:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// 停止HTTP服务器
			if err := srv.Shutdown(ctx); err != nil {
				s.logger.Error(name+" shutdown error", zap.Error(err))
			}
		}
	})
}

func initScheduler(s *Server) {
	cfg := s.app.Config()
	manager := task.NewManager(task.Deps{
		Store:    s.app.Store,
		Updater:  s.app.Broker,
		Defaults: cfg.Board,
		Render:   s.app.RenderScene,
		Config:   cfg.Tasks,
		Logger:   s.logger,
	}, s.sc)

	if err := manager.RegisterTasks(); err != nil {
		s.logger.Error("failed to register tasks", zap.Error(err))
		return
	}
	manager.Start()
}

// initStorageWithConfig 初始化存储目录
func initStorageWithConfig(cfg *internalApp.AppConfig) error {
	dirs := []string{
		filepath.Dir(cfg.Log.File),
		cfg.Assets.Root,
	}
	if cfg.Database.Type == "" || cfg.Database.Type == "sqlite" {
		dirs = append(dirs, filepath.Dir(cfg.Database.Path))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0754); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetApp 获取 App Container
func (s *Server) GetApp() *internalApp.App {
	return s.app
}
