package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/haierkeys/evidence-board-service/pkg/app"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
)

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTraceMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddlewareWithConfig(true, ""))
	r.GET("/", func(c *gin.Context) {
		assert.Equal(t, GetTraceIDFromGin(c), GetTraceID(c.Request.Context()))
		c.String(http.StatusOK, GetTraceIDFromGin(c))
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(DefaultTraceIDHeader))
	assert.Equal(t, w.Header().Get(DefaultTraceIDHeader), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DefaultTraceIDHeader, "abc")
	w = serve(r, req)
	assert.Equal(t, "abc", w.Body.String())

	off := gin.New()
	off.Use(TraceMiddlewareWithConfig(false, ""))
	off.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetTraceIDFromGin(c)) })
	w = serve(off, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, w.Body.String())
	assert.Empty(t, w.Header().Get(DefaultTraceIDHeader))
}

func TestRecoveryWithLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.ErrorLevel)
	r := gin.New()
	r.Use(RecoveryWithLogger(zap.New(core)))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "kaboom")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "/boom", logs.All()[0].ContextMap()[logger.FieldPath])
}

func TestActorAuthToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tm := app.NewTokenManager(app.TokenConfig{SecretKey: "k", Expiry: time.Hour})
	token, err := tm.Generate(app.ActorEntity{ActorID: "alice"})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/", ActorAuthToken(tm), func(c *gin.Context) {
		actor := app.GetActor(c)
		require.NotNil(t, actor)
		c.String(http.StatusOK, actor.ActorID)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodGet, "/?token=garbage", nil)).Code)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	open := gin.New()
	open.GET("/", ActorAuthToken(nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	assert.Equal(t, http.StatusNoContent, serve(open, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/a", RateLimiter(NewRouteLimiter(BucketRule{FillInterval: time.Hour, Capacity: 2})), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/b", RateLimiter(nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	get := func(p string) int { return serve(r, httptest.NewRequest(http.MethodGet, p, nil)).Code }
	assert.Equal(t, http.StatusNoContent, get("/a"))
	assert.Equal(t, http.StatusNoContent, get("/a"))
	assert.Equal(t, http.StatusTooManyRequests, get("/a"))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNoContent, get("/b"))
	}
}

func TestNoFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.NoRoute(NoFound())
	assert.Equal(t, http.StatusNotFound, serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil)).Code)
}
