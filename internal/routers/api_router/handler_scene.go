package api_router

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/internal/app"
	"github.com/haierkeys/evidence-board-service/internal/board"
	"github.com/haierkeys/evidence-board-service/internal/domain"
	pkgapp "github.com/haierkeys/evidence-board-service/pkg/app"
	"github.com/haierkeys/evidence-board-service/pkg/code"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
)

// SceneHandler 场景看板只读接口
type SceneHandler struct {
	*Handler
}

// NewSceneHandler 创建 SceneHandler 实例
func NewSceneHandler(a *app.App) *SceneHandler {
	return &SceneHandler{Handler: NewHandler(a)}
}

// List scenes that hold board notes
// @Summary 场景列表
// @Tags Board
// @Produce json
// @Router /api/scenes [get]
func (h *SceneHandler) List(c *gin.Context) {
	scenes, err := h.App.Store.Scenes(c.Request.Context())
	if err != nil {
		h.fail(c, err, code.ErrorServerInternal)
		return
	}
	pkgapp.NewResponse(c).ToResponse(code.Success.WithData(scenes))
}

// Notes 场景内的看板笔记，按 page / pageSize 分页
// @Summary 场景笔记
// @Tags Board
// @Produce json
// @Param scene path string true "scene id"
// @Router /api/scenes/{scene}/notes [get]
func (h *SceneHandler) Notes(c *gin.Context) {
	notes, err := board.LoadScene(c.Request.Context(), h.App.Store, c.Param("scene"), h.App.Config().Board)
	if err != nil {
		h.fail(c, err, code.ErrorServerInternal)
		return
	}
	start, end := pkgapp.PageWindow(c, len(notes))
	pkgapp.NewResponse(c).ToResponseList(code.Success, notes[start:end], len(notes))
}

// BoardSVG 场景看板的 SVG 快照
// @Summary 看板快照
// @Tags Board
// @Produce image/svg+xml
// @Param scene path string true "scene id"
// @Router /api/scenes/{scene}/board.svg [get]
func (h *SceneHandler) BoardSVG(c *gin.Context) {
	opts := h.App.SnapshotOptions()
	opts.Width = floatQuery(c, "width", opts.Width)
	opts.Height = floatQuery(c, "height", opts.Height)

	var buf bytes.Buffer
	curves, err := board.RenderSVG(c.Request.Context(), c.Param("scene"), opts, &buf)
	if err != nil {
		h.fail(c, err, code.ErrorRenderFailed)
		return
	}
	c.Header("X-Board-Curves", strconv.Itoa(curves))
	c.Data(http.StatusOK, "image/svg+xml; charset=utf-8", buf.Bytes())
}

func floatQuery(c *gin.Context, key string, def float64) float64 {
	if s, ok := c.GetQuery(key); ok {
		if v, err := strconv.ParseFloat(s, 64); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func (h *SceneHandler) fail(c *gin.Context, err error, fallback *code.Code) {
	response := pkgapp.NewResponse(c)
	if errors.Is(err, domain.ErrSceneNotFound) {
		response.ToResponse(code.ErrorSceneNotFound.WithDetails(c.Param("scene")))
		return
	}
	h.App.Logger().Error("scene request failed",
		zap.String(logger.FieldSceneID, c.Param("scene")),
		zap.String(logger.FieldPath, c.Request.URL.Path),
		zap.Error(err))
	response.ToResponse(fallback.WithDetails(err.Error()))
}
