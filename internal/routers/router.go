package routers

import (
	"github.com/gin-gonic/gin"

	"github.com/haierkeys/evidence-board-service/internal/app"
	"github.com/haierkeys/evidence-board-service/internal/middleware"
	"github.com/haierkeys/evidence-board-service/internal/routers/api_router"
)

// NewRouter 公共路由：websocket 帧中心 + 只读看板 API
func NewRouter(appContainer *app.App) *gin.Engine {
	cfg := appContainer.Config()

	r := gin.New()

	// 看板频道，授权在帧内完成
	r.GET("/board/ws", appContainer.Hub.Run())

	api := r.Group("/api")
	{
		api.Use(middleware.AppInfoWithConfig(app.Name, appContainer.Version().Version))
		api.Use(middleware.TraceMiddlewareWithConfig(cfg.Server.TraceEnabled, cfg.Server.TraceHeader))
		api.Use(middleware.ContextTimeout(cfg.Server.ContextTimeout))
		api.Use(middleware.Lang())
		api.Use(middleware.AccessLogWithLogger(appContainer.Logger()))
		api.Use(middleware.RecoveryWithLogger(appContainer.Logger()))

		healthHandler := api_router.NewHealthHandler(appContainer)
		versionHandler := api_router.NewVersionHandler(appContainer)
		sceneHandler := api_router.NewSceneHandler(appContainer)

		api.GET("/health", healthHandler.Check)
		api.GET("/version", versionHandler.ServerVersion)

		scenes := api.Group("/scenes", middleware.ActorAuthToken(appContainer.Tokens))
		scenes.GET("", sceneHandler.List)
		scenes.GET("/:scene/notes", sceneHandler.Notes)
		scenes.GET("/:scene/board.svg", middleware.RateLimiter(middleware.NewRouteLimiter(middleware.BucketRule{
			FillInterval: cfg.Server.RenderRefill,
			Capacity:     int64(cfg.Server.RenderBurst),
		})), sceneHandler.BoardSVG)
	}

	r.NoRoute(middleware.NoFound())

	return r
}
