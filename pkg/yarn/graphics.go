package yarn

// Graphics is the vector path surface strokes are drawn through.
// It mirrors the host renderer's line-style state machine: LineStyle sets the pen used by every
// following path segment until the next LineStyle call.
// Graphics 线条绘制接口，对应宿主渲染器的线型状态机
type Graphics interface {
	LineStyle(width float64, color Color, alpha float64)
	MoveTo(x, y float64)
	LineTo(x, y float64)
	QuadraticCurveTo(cx, cy, x, y float64)
	DrawRect(x, y, w, h float64)
	Clear()
}
