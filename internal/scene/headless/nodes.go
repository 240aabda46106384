// Package headless is an in-memory scene host. It keeps every draw call, tracks node lifetimes
// and can write the stage as SVG. Used by the server peer, the render command and tests.
package headless

import (
	"sync"

	"github.com/haierkeys/evidence-board-service/internal/scene"
	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

// parented nodes know their container so AddChild can move them
type parented interface {
	scene.Node
	setParent(c *Container)
	getParent() *Container
}

type node struct {
	mu        sync.Mutex
	host      *Host
	destroyed bool
	parent    *Container
}

func (n *node) Destroyed() bool {
	if n == nil {
		return true
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.destroyed
}

// markDestroyed detaches self from its parent; false when it was already destroyed
func (n *node) markDestroyed(self scene.Node) bool {
	n.mu.Lock()
	if n.destroyed {
		n.mu.Unlock()
		return false
	}
	n.destroyed = true
	parent := n.parent
	n.parent = nil
	n.mu.Unlock()

	if parent != nil {
		parent.RemoveChild(self)
	}
	if n.host != nil {
		n.host.releasedNode()
	}
	return true
}

func (n *node) setParent(c *Container) {
	n.mu.Lock()
	n.parent = c
	n.mu.Unlock()
}

func (n *node) getParent() *Container {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.parent
}

// Graphics records draw calls
type Graphics struct {
	node
	rec yarn.Recorder
}

var _ scene.Graphics = (*Graphics)(nil)

func (g *Graphics) LineStyle(width float64, color yarn.Color, alpha float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rec.LineStyle(width, color, alpha)
}

func (g *Graphics) MoveTo(x, y float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rec.MoveTo(x, y)
}

func (g *Graphics) LineTo(x, y float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rec.LineTo(x, y)
}

func (g *Graphics) QuadraticCurveTo(cx, cy, x, y float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rec.QuadraticCurveTo(cx, cy, x, y)
}

func (g *Graphics) DrawRect(x, y, w, h float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rec.DrawRect(x, y, w, h)
}

func (g *Graphics) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rec.Clear()
}

// Snapshot copy of the recorded commands
func (g *Graphics) Snapshot() *yarn.Recorder {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := yarn.NewRecorder()
	for _, c := range g.rec.Commands() {
		replay(out, c)
	}
	return out
}

func (g *Graphics) Destroy() {
	if g.markDestroyed(g) {
		g.mu.Lock()
		g.rec.Clear()
		g.mu.Unlock()
	}
}

func replay(g yarn.Graphics, c yarn.Command) {
	switch c.Op {
	case yarn.OpLineStyle:
		g.LineStyle(c.Args[0], c.Color, c.Alpha)
	case yarn.OpMoveTo:
		g.MoveTo(c.Args[0], c.Args[1])
	case yarn.OpLineTo:
		g.LineTo(c.Args[0], c.Args[1])
	case yarn.OpQuadTo:
		g.QuadraticCurveTo(c.Args[0], c.Args[1], c.Args[2], c.Args[3])
	case yarn.OpRect:
		g.DrawRect(c.Args[0], c.Args[1], c.Args[2], c.Args[3])
	}
}

// Container 容器节点
type Container struct {
	node
	z        int
	children []scene.Node
}

var _ scene.Container = (*Container)(nil)

func (c *Container) AddChild(n scene.Node) {
	if p, ok := n.(parented); ok {
		if old := p.getParent(); old != nil {
			old.RemoveChild(n)
		}
		p.setParent(c)
	}
	c.mu.Lock()
	c.children = append(c.children, n)
	c.mu.Unlock()
}

func (c *Container) RemoveChild(n scene.Node) {
	c.mu.Lock()
	for i, child := range c.children {
		if child == n {
			c.children = append(c.children[:i:i], c.children[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	if p, ok := n.(parented); ok && p.getParent() == c {
		p.setParent(nil)
	}
}

// Children live children in insertion order
func (c *Container) Children() []scene.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]scene.Node, 0, len(c.children))
	for _, child := range c.children {
		if !child.Destroyed() {
			out = append(out, child)
		}
	}
	return out
}

func (c *Container) ZIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.z
}

func (c *Container) SetZIndex(z int) {
	c.mu.Lock()
	c.z = z
	c.mu.Unlock()
}

// Destroy destroys the container and its children
func (c *Container) Destroy() {
	if !c.markDestroyed(c) {
		return
	}
	c.mu.Lock()
	children := c.children
	c.children = nil
	c.mu.Unlock()
	for _, child := range children {
		scene.Release(child)
	}
}

// Sprite 精灵节点
type Sprite struct {
	node
	pos     yarn.Point
	w, h    float64
	texture scene.Texture
	tint    yarn.Color
	tinted  bool
}

var _ scene.Sprite = (*Sprite)(nil)

func (s *Sprite) SetPosition(p yarn.Point) {
	s.mu.Lock()
	s.pos = p
	s.mu.Unlock()
}

func (s *Sprite) Position() yarn.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *Sprite) SetSize(w, h float64) {
	s.mu.Lock()
	s.w, s.h = w, h
	s.mu.Unlock()
}

// Size 尺寸
func (s *Sprite) Size() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w, s.h
}

func (s *Sprite) SetTexture(t scene.Texture) {
	s.mu.Lock()
	s.texture = t
	s.mu.Unlock()
}

func (s *Sprite) Texture() scene.Texture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.texture
}

func (s *Sprite) SetTint(c yarn.Color) {
	s.mu.Lock()
	s.tint, s.tinted = c, true
	s.mu.Unlock()
}

// Tint 色调，未设置时为白色
func (s *Sprite) Tint() yarn.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tinted {
		return yarn.White
	}
	return s.tint
}

func (s *Sprite) Destroy() { s.markDestroyed(s) }

// Label 文本节点
type Label struct {
	node
	text  string
	pos   yarn.Point
	style scene.LabelStyle
}

var _ scene.Label = (*Label)(nil)

func (l *Label) SetText(s string) {
	l.mu.Lock()
	l.text = s
	l.mu.Unlock()
}

func (l *Label) Text() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.text
}

func (l *Label) SetPosition(p yarn.Point) {
	l.mu.Lock()
	l.pos = p
	l.mu.Unlock()
}

func (l *Label) Position() yarn.Point {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pos
}

func (l *Label) Style() scene.LabelStyle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.style
}

func (l *Label) Destroy() { l.markDestroyed(l) }
