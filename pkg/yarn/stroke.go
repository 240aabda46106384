package yarn

import "math"

const (
	shadowOffset = 3.0
	shadowAlpha  = 0.25

	// DashLength and GapLength form one marching-ants cycle.
	DashLength = 30.0
	GapLength  = 20.0
	// OffsetStep is how far the ants move per animation tick.
	OffsetStep = 4.0

	animatedSteps = 100
)

// AdvanceOffset moves the marching-ants phase one tick forward, wrapping at one dash cycle.
// The direction is always the same so the flow reads source -> target.
func AdvanceOffset(offset float64) float64 {
	offset += OffsetStep
	if offset > DashLength+GapLength {
		offset = 0
	}
	return offset
}

func drawShadow(g Graphics, p1, ctrl, p2 Point, width float64) {
	g.LineStyle(width+2, Black, shadowAlpha)
	g.MoveTo(p1.X+shadowOffset, p1.Y+shadowOffset)
	g.QuadraticCurveTo(ctrl.X+shadowOffset, ctrl.Y+shadowOffset, p2.X+shadowOffset, p2.Y+shadowOffset)
}

func drawPolyline(g Graphics, pts []Point) {
	g.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		g.LineTo(p.X, p.Y)
	}
}

// RenderStaticStroke draws the textured yarn between p1 and p2.
// Layers, in order: drop shadow, solid base polyline, darker twist ticks at regular arc-length
// intervals, a light fiber highlight on alternating segments and frayed dangling ends at both pins.
// Identical inputs always issue identical draw calls.
// RenderStaticStroke 绘制静态毛线
func RenderStaticStroke(g Graphics, p1, p2 Point, color Color, width float64) {
	if width <= 0 {
		width = 1
	}
	ctrl := ComputeYarnPath(p1, p2)
	dist := p1.Dist(p2)

	drawShadow(g, p1, ctrl, p2, width)

	segments := int(math.Max(20, math.Floor(dist/5)))
	pts := QuadraticPoints(p1, ctrl, p2, segments)

	// base
	g.LineStyle(width, color, 1)
	drawPolyline(g, pts)

	drawTwist(g, pts, color, width)
	drawFiberHighlight(g, pts, width)
	drawDanglingEnds(g, pts, color, width)
}

func drawTwist(g Graphics, pts []Point, color Color, width float64) {
	g.LineStyle(math.Max(1, width/2), color.Darken(0.6), 0.9)

	step := math.Max(3, width*1.5)
	length := width * 1.2
	travelled := 0.0
	tick := 0

	for i := 0; i < len(pts)-1; i++ {
		a, b := pts[i], pts[i+1]
		segLen := a.Dist(b)
		if segLen == 0 {
			continue
		}
		subSteps := int(math.Ceil(segLen / 2))
		angle := math.Atan2(b.Y-a.Y, b.X-a.X)

		for j := 0; j < subSteps; j++ {
			travelled += segLen / float64(subSteps)
			if travelled < step {
				continue
			}
			travelled = 0

			t := float64(j) / float64(subSteps)
			p := Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}

			// jitter of +-15% of the tick length, seeded by tick index and position
			jitter := (seedHash(tick, p.X, p.Y) - 0.5) * 0.3 * length
			half := (length + jitter) / 2
			twist := angle + math.Pi/4

			g.MoveTo(p.X-math.Cos(twist)*half, p.Y-math.Sin(twist)*half)
			g.LineTo(p.X+math.Cos(twist)*half, p.Y+math.Sin(twist)*half)
			tick++
		}
	}
}

func drawFiberHighlight(g Graphics, pts []Point, width float64) {
	g.LineStyle(math.Max(1, width/4), White, 0.2)
	for i := 0; i < len(pts)-1; i += 2 {
		g.MoveTo(pts[i].X, pts[i].Y)
		g.LineTo(pts[i+1].X, pts[i+1].Y)
	}
}

func drawDanglingEnds(g Graphics, pts []Point, color Color, width float64) {
	g.LineStyle(math.Max(1, width/3), color, 0.8)
	n := len(pts)
	ends := [2]struct {
		at, toward Point
	}{
		{pts[0], pts[1]},
		{pts[n-1], pts[n-2]},
	}

	length := width * 1.6
	for e, end := range ends {
		// away from the curve
		base := math.Atan2(end.at.Y-end.toward.Y, end.at.X-end.toward.X)
		for k := 0; k < 2; k++ {
			spread := (seedHash(e*2+k, end.at.X, end.at.Y) - 0.5) * math.Pi / 2
			a := base + spread
			if k == 1 {
				a = base - spread
			}
			g.MoveTo(end.at.X, end.at.Y)
			g.LineTo(end.at.X+math.Cos(a)*length, end.at.Y+math.Sin(a)*length)
		}
	}
}

// RenderAnimatedStroke draws the highlighted "marching ants" yarn: a dimmed base curve and a bright
// 30/20 dash pattern shifted by offset.
// RenderAnimatedStroke 绘制动画虚线（行军蚁）
func RenderAnimatedStroke(g Graphics, p1, p2 Point, color Color, width, offset float64) {
	if width <= 0 {
		width = 1
	}
	ctrl := ComputeYarnPath(p1, p2)

	drawShadow(g, p1, ctrl, p2, width)

	// dimmed original
	g.LineStyle(width, color, 0.3)
	g.MoveTo(p1.X, p1.Y)
	g.QuadraticCurveTo(ctrl.X, ctrl.Y, p2.X, p2.Y)

	pts := QuadraticPoints(p1, ctrl, p2, animatedSteps)
	cycle := DashLength + GapLength
	current := -offset

	for i := 0; i < len(pts)-1; i++ {
		a, b := pts[i], pts[i+1]
		start := current
		end := current + a.Dist(b)
		current = end

		startMod := math.Mod(math.Mod(start, cycle)+cycle, cycle)
		endMod := math.Mod(math.Mod(end, cycle)+cycle, cycle)
		if !(startMod < DashLength || endMod < DashLength || startMod > endMod) {
			continue
		}

		g.LineStyle(width*2.5, White, 0.8)
		g.MoveTo(a.X, a.Y)
		g.LineTo(b.X, b.Y)

		g.LineStyle(width*2, color, 1)
		g.MoveTo(a.X, a.Y)
		g.LineTo(b.X, b.Y)
	}
}
