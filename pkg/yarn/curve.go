// Package yarn draws the sagging "yarn" connector curves of the evidence board.
// Every output is a pure function of its inputs so that two clients rendering the same board produce
// the same draw calls.
// Package yarn 绘制证据板上的毛线连线，输出只取决于输入坐标
package yarn

import "math"

const (
	sagRatio    = 0.15
	skewRatio   = 0.05
	wobbleRange = 20.0
)

// Point world coordinate
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

func (p Point) Scale(f float64) Point { return Point{X: p.X * f, Y: p.Y * f} }

// Dist euclidean distance between p and q
func (p Point) Dist(q Point) float64 { return math.Hypot(q.X-p.X, q.Y-p.Y) }

// Wobble returns the stable horizontal jitter of the curve between p1 and p2, in [-10, 10).
// The seed is derived from the endpoint coordinates only, never from global randomness.
func Wobble(p1, p2 Point) float64 {
	seed := math.Mod(math.Abs(p1.X)+math.Abs(p1.Y)+math.Abs(p2.X)+math.Abs(p2.Y), 100)
	return (seed/100)*wobbleRange - wobbleRange/2
}

// ComputeYarnPath returns the quadratic bezier control point for the yarn between p1 and p2:
// the midpoint, sagged down by 15% of the length, skewed by 5% of dx, plus the stable wobble.
// ComputeYarnPath 计算两点间毛线的二次贝塞尔控制点
func ComputeYarnPath(p1, p2 Point) Point {
	mid := Point{X: (p1.X + p2.X) / 2, Y: (p1.Y + p2.Y) / 2}
	dist := p1.Dist(p2)
	dx := p2.X - p1.X

	return Point{
		X: mid.X + dx*skewRatio + Wobble(p1, p2),
		Y: mid.Y + dist*sagRatio,
	}
}

// QuadraticPoints samples the quadratic bezier p0 -> p1 with control c into segments+1 points.
func QuadraticPoints(p0, c, p1 Point, segments int) []Point {
	if segments < 1 {
		segments = 1
	}
	pts := make([]Point, 0, segments+1)
	for i := 0; i <= segments; i++ {
		t := float64(i) / float64(segments)
		inv := 1 - t
		pts = append(pts, Point{
			X: inv*inv*p0.X + 2*inv*t*c.X + t*t*p1.X,
			Y: inv*inv*p0.Y + 2*inv*t*c.Y + t*t*p1.Y,
		})
	}
	return pts
}

// seedHash is a small positional hash in the (h<<5)-h style, mapped to [0, 1).
func seedHash(i int, x, y float64) float64 {
	var h int32
	for _, v := range [3]int32{int32(i), int32(math.Round(x * 16)), int32(math.Round(y * 16))} {
		h = (h << 5) - h + v
		h ^= h >> 7
	}
	u := uint32(h) * 2654435761
	return float64(u%10000) / 10000
}
