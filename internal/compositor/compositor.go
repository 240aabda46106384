// Package compositor keeps the canvas in step with the note graph: note bodies on the base layer,
// yarn curves on the line layer, pins on a shared top layer, plus the transient preview line,
// selection highlight and connection number overlays.
package compositor

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/internal/metrics"
	"github.com/haierkeys/evidence-board-service/internal/scene"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

const (
	highlightWidth = 4
	highlightColor = yarn.Green
	overlayMinFont = 48
)

// TextureLoader asynchronous texture source. done runs on another goroutine, never inside LoadAsync.
type TextureLoader interface {
	LoadAsync(ctx context.Context, path string, done func(scene.Texture))
}

// slot the sprite of a note a texture load is meant for
type slot int

const (
	slotBody slot = iota
	slotPhoto
	slotPin
	slotCount
)

// noteVisual the canvas objects of one note
type noteVisual struct {
	kind      domain.Kind
	tree      scene.Container
	sprites   [slotCount]scene.Sprite
	paths     [slotCount]string
	text      scene.Label
	textStyle scene.LabelStyle
	// generations invalidate texture loads started before the latest change
	gens [slotCount]uint64
}

// State the compositor's mutable state. It is owned by one Compositor and reset on teardown.
type State struct {
	notes    scene.Container
	lines    scene.Container
	preview  scene.Container
	pins     scene.Container
	controls scene.Container
	overlay  scene.Container

	lineGfx      scene.Graphics
	previewGfx   scene.Graphics
	highlightGfx scene.Graphics

	visuals  map[string]*noteVisual
	numbers  []scene.Label
	numbered string

	activeID   string
	offset     float64
	removeTick func()
}

// Compositor 渲染合成器
type Compositor struct {
	host     scene.Host
	defaults domain.Defaults
	loader   TextureLoader
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu    sync.Mutex
	graph *domain.Graph
	state State
	// seq feeds the texture generations
	seq uint64
}

// New 创建合成器；loader 为 nil 时不加载纹理
func New(host scene.Host, d domain.Defaults, loader TextureLoader, lg *zap.Logger, m *metrics.Metrics) *Compositor {
	return &Compositor{
		host:     host,
		defaults: d,
		loader:   loader,
		logger:   logger.OrNop(lg),
		metrics:  m,
		graph:    domain.NewGraph(nil),
		state:    State{visuals: map[string]*noteVisual{}},
	}
}

// ensureLayer returns c, or a fresh layer at z when c is missing or was destroyed elsewhere
func (c *Compositor) ensureLayer(l scene.Container, z int) scene.Container {
	if scene.Alive(l) {
		return l
	}
	l = c.host.NewContainer()
	l.SetZIndex(z)
	c.host.Stage().AddChild(l)
	return l
}

func (c *Compositor) ensureLayers() {
	s := &c.state
	s.notes = c.ensureLayer(s.notes, scene.ZNotes)
	s.lines = c.ensureLayer(s.lines, scene.ZLines)
	s.preview = c.ensureLayer(s.preview, scene.ZPreview)
	s.pins = c.ensureLayer(s.pins, scene.ZPins)
	s.controls = c.ensureLayer(s.controls, scene.ZControls)
	s.overlay = c.ensureLayer(s.overlay, scene.ZOverlay)
}

// ensureGraphics returns g, or a new graphics in layer when g is unusable
func (c *Compositor) ensureGraphics(g scene.Graphics, layer scene.Container) scene.Graphics {
	if scene.Alive(g) {
		return g
	}
	g = c.host.NewGraphics()
	layer.AddChild(g)
	return g
}

// Sync replaces the graph snapshot, brings note sprites in line with it and repaints.
// Safe to call redundantly; the result depends only on g.
func (c *Compositor) Sync(g *domain.Graph) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if g == nil {
		g = domain.NewGraph(nil)
	}
	c.graph = g
	c.ensureLayers()

	s := &c.state
	if s.activeID != "" && !g.Has(s.activeID) {
		c.stopAnimationLocked()
	}
	if s.numbered != "" {
		if g.Has(s.numbered) {
			c.showNumbersLocked(s.numbered)
		} else {
			c.clearNumbersLocked()
		}
	}
	return c.redrawLocked(s.offset)
}

// Graph the current snapshot
func (c *Compositor) Graph() *domain.Graph {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph
}

func (c *Compositor) syncVisualsLocked() {
	s := &c.state
	for id, v := range s.visuals {
		if !c.graph.Has(id) {
			c.releaseVisual(v)
			delete(s.visuals, id)
		}
	}

	for _, n := range c.graph.All() {
		v := s.visuals[n.ID]
		if v != nil && v.kind != n.Kind {
			c.releaseVisual(v)
			v = nil
		}
		if v != nil && !scene.Alive(v.tree) {
			// tree went with a destroyed layer; pins may still live on theirs
			c.releaseVisual(v)
			v = nil
		}
		if v == nil {
			v = &noteVisual{kind: n.Kind}
			s.visuals[n.ID] = v
		}
		c.syncVisual(n, v)
	}
}

func (c *Compositor) syncVisual(n *domain.Note, v *noteVisual) {
	s := &c.state
	if !scene.Alive(v.tree) {
		v.tree = c.host.NewContainer()
		s.notes.AddChild(v.tree)
	}

	if body := c.syncSprite(n, v, slotBody, c.defaults.BodyTexture(n)); body != nil {
		body.SetPosition(n.Position)
		body.SetSize(n.Size.Width, n.Size.Height)
		body.SetTint(yarn.ParseColorOr(c.defaults.ResolveStyle(n.Kind, n.Style).Tint, yarn.White))
	}
	if photo := c.syncSprite(n, v, slotPhoto, c.defaults.PhotoImage(n)); photo != nil {
		layoutPhoto(n, photo, photo.Texture())
	}
	c.syncText(n, v)
	if pin := c.syncSprite(n, v, slotPin, c.defaults.PinTexture(n)); pin != nil {
		// pins start in the note's own tree; redraw moves them to the shared layer
		pin.SetSize(c.defaults.PinSize, c.defaults.PinSize)
	}
}

// syncSprite keeps the sprite of slot in line with texture path p; "" removes it
func (c *Compositor) syncSprite(n *domain.Note, v *noteVisual, k slot, p string) scene.Sprite {
	if p == "" {
		scene.Release(v.sprites[k])
		v.sprites[k], v.paths[k] = nil, ""
		return nil
	}
	if !scene.Alive(v.sprites[k]) {
		v.sprites[k] = c.host.NewSprite()
		v.tree.AddChild(v.sprites[k])
		v.paths[k] = ""
	}
	if p != v.paths[k] {
		v.paths[k] = p
		c.seq++
		v.gens[k] = c.seq
		c.requestTexture(n.ID, v.kind, p, v.gens[k], k)
	}
	return v.sprites[k]
}

// syncText 同步笔记文字；样式变化时重建标签
func (c *Compositor) syncText(n *domain.Note, v *noteVisual) {
	block, ok := domain.NoteText(n, c.defaults)
	if !ok {
		scene.Release(v.text)
		v.text = nil
		return
	}
	style := scene.LabelStyle{
		FontFamily: block.Font,
		FontSize:   block.FontSize,
		Fill:       block.Ink,
		WrapWidth:  block.WrapWidth,
	}
	if scene.Alive(v.text) && v.textStyle != style {
		scene.Release(v.text)
	}
	if !scene.Alive(v.text) {
		v.text = c.host.NewLabel(block.Text, style)
		v.textStyle = style
		v.tree.AddChild(v.text)
	}
	v.text.SetText(block.Text)
	v.text.SetPosition(block.Center)
}

// layoutPhoto places the picture in the frame window, fitted to the texture once it is known
func layoutPhoto(n *domain.Note, sprite scene.Sprite, t scene.Texture) {
	r := domain.FitPhoto(domain.PhotoFrame(n), t.Width, t.Height)
	sprite.SetPosition(r.TopLeft())
	sprite.SetSize(r.Width, r.Height)
}

func (c *Compositor) releaseVisual(v *noteVisual) {
	for k := range v.sprites {
		scene.Release(v.sprites[k])
		v.sprites[k] = nil
	}
	scene.Release(v.text)
	scene.Release(v.tree)
	v.text, v.tree = nil, nil
}

func (c *Compositor) requestTexture(id string, kind domain.Kind, path string, gen uint64, k slot) {
	if c.loader == nil {
		return
	}
	c.loader.LoadAsync(context.Background(), path, func(t scene.Texture) {
		c.applyTexture(id, kind, gen, k, t)
	})
}

// applyTexture sets a loaded texture unless the note went away, changed kind or requested a
// newer texture while this one was loading
func (c *Compositor) applyTexture(id string, kind domain.Kind, gen uint64, k slot, t scene.Texture) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.state.visuals[id]
	n := c.graph.Get(id)
	if v == nil || v.kind != kind || n == nil {
		c.logger.Debug("discard texture for stale note", zap.String(logger.FieldNoteID, id), zap.String(logger.FieldPath, t.Key))
		return
	}
	sprite := v.sprites[k]
	if v.gens[k] != gen || !scene.Alive(sprite) {
		return
	}
	sprite.SetTexture(t)
	if k == slotPhoto {
		layoutPhoto(n, sprite, t)
	}
}

// RedrawAll repaints every curve and repositions every pin. Idempotent.
// RedrawAll 全量重绘连线与图钉
func (c *Compositor) RedrawAll(offset float64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLayers()
	return c.redrawLocked(offset)
}

func (c *Compositor) redrawLocked(offset float64) int {
	s := &c.state
	c.syncVisualsLocked()
	s.lineGfx = c.ensureGraphics(s.lineGfx, s.lines)
	s.lineGfx.Clear()

	for _, n := range c.graph.All() {
		v := s.visuals[n.ID]
		if v == nil || !scene.Alive(v.sprites[slotPin]) {
			continue
		}
		pin := v.sprites[slotPin]
		s.pins.AddChild(pin)
		pin.SetPosition(domain.PinSpritePosition(n, c.defaults))
	}

	curves := 0
	for _, n := range c.graph.All() {
		if len(n.Connections) == 0 {
			continue
		}
		p1 := domain.PinAnchor(n, c.defaults)
		for _, conn := range n.Connections {
			target := c.graph.Get(conn.TargetID)
			if target == nil || target.ID == n.ID {
				// stale: the delete cleanup may still be on its way
				continue
			}
			p2 := domain.PinAnchor(target, c.defaults)
			color, width := c.defaults.LineStyle(conn)
			if n.ID == s.activeID {
				yarn.RenderAnimatedStroke(s.lineGfx, p1, p2, color, width, offset)
			} else {
				yarn.RenderStaticStroke(s.lineGfx, p1, p2, color, width)
			}
			curves++
		}
	}

	c.metrics.Redraw(curves)
	return curves
}

// StartAnimation animates the outgoing connections of id until StopAnimation. Starting another
// note replaces the current one.
func (c *Compositor) StartAnimation(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLayers()

	c.state.activeID = id
	if c.state.removeTick == nil {
		c.state.removeTick = c.host.Ticker().Add(c.tick)
	}
	c.redrawLocked(c.state.offset)
}

func (c *Compositor) tick(time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.activeID == "" || c.state.removeTick == nil {
		return
	}
	c.ensureLayers()
	c.state.offset = yarn.AdvanceOffset(c.state.offset)
	c.redrawLocked(c.state.offset)
}

// StopAnimation removes the ticker and repaints statically
func (c *Compositor) StopAnimation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopAnimationLocked()
	c.ensureLayers()
	c.redrawLocked(0)
}

func (c *Compositor) stopAnimationLocked() {
	if c.state.removeTick != nil {
		c.state.removeTick()
		c.state.removeTick = nil
	}
	c.state.activeID = ""
	c.state.offset = 0
}

// ActiveID 当前动画笔记
func (c *Compositor) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.activeID
}

// Animating reports whether the frame ticker is registered
func (c *Compositor) Animating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.removeTick != nil
}

// ShowConnectionNumbers labels each target of sourceID with its 1-based position in the source's
// connection list
func (c *Compositor) ShowConnectionNumbers(sourceID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLayers()
	return c.showNumbersLocked(sourceID)
}

func (c *Compositor) showNumbersLocked(sourceID string) int {
	c.clearNumbersLocked()
	src := c.graph.Get(sourceID)
	if src == nil {
		return 0
	}
	c.state.numbered = sourceID

	for i, conn := range src.Connections {
		target := c.graph.Get(conn.TargetID)
		if target == nil {
			continue
		}
		center, w := domain.OverlayCenter(target, c.defaults)
		label := c.host.NewLabel(strconv.Itoa(i+1), scene.LabelStyle{
			FontFamily: "Arial",
			FontSize:   math.Max(overlayMinFont, w/4),
			Bold:       true,
			Fill:       yarn.White,
			Stroke:     yarn.Black,
			StrokeSize: 6,
		})
		label.SetPosition(center)
		c.state.overlay.AddChild(label)
		c.state.numbers = append(c.state.numbers, label)
	}
	return len(c.state.numbers)
}

// ClearConnectionNumbers destroys every number overlay
func (c *Compositor) ClearConnectionNumbers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearNumbersLocked()
}

func (c *Compositor) clearNumbersLocked() {
	for _, l := range c.state.numbers {
		scene.Release(l)
	}
	c.state.numbers = nil
	c.state.numbered = ""
}

// Numbers texts of the visible number overlays
func (c *Compositor) Numbers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.state.numbers))
	for _, l := range c.state.numbers {
		if scene.Alive(l) {
			out = append(out, l.Text())
		}
	}
	return out
}

// DrawPreview draws the static curve from a note's pin to the pointer
func (c *Compositor) DrawPreview(from, to yarn.Point, color yarn.Color, width float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLayers()
	s := &c.state
	s.previewGfx = c.ensureGraphics(s.previewGfx, s.preview)
	s.previewGfx.Clear()
	yarn.RenderStaticStroke(s.previewGfx, from, to, color, width)
}

// ClearPreview destroys the preview line
func (c *Compositor) ClearPreview() {
	c.mu.Lock()
	defer c.mu.Unlock()
	scene.Release(c.state.previewGfx)
	c.state.previewGfx = nil
}

// Highlight outlines the bounds of n
func (c *Compositor) Highlight(n *domain.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLayers()
	s := &c.state
	s.highlightGfx = c.ensureGraphics(s.highlightGfx, s.controls)
	s.highlightGfx.Clear()
	s.highlightGfx.LineStyle(highlightWidth, highlightColor, 1)
	x, y, w, h := n.Bounds()
	s.highlightGfx.DrawRect(x, y, w, h)
}

// ClearHighlight destroys the highlight
func (c *Compositor) ClearHighlight() {
	c.mu.Lock()
	defer c.mu.Unlock()
	scene.Release(c.state.highlightGfx)
	c.state.highlightGfx = nil
}

// PinAt the id of the note whose pin covers p, topmost first
func (c *Compositor) PinAt(p yarn.Point) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	notes := c.graph.All()
	size := c.defaults.PinSize
	for i := len(notes) - 1; i >= 0; i-- {
		n := notes[i]
		if c.defaults.PinTexture(n) == "" {
			continue
		}
		tl := domain.PinSpritePosition(n, c.defaults)
		if p.X >= tl.X && p.X <= tl.X+size && p.Y >= tl.Y && p.Y <= tl.Y+size {
			return n.ID
		}
	}
	return ""
}

// Teardown stops the animation and destroys every layer. It assumes nothing about the prior
// state; the compositor can be used again afterwards.
// Teardown 释放全部画布资源
func (c *Compositor) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopAnimationLocked()
	c.clearNumbersLocked()
	s := &c.state
	for _, v := range s.visuals {
		c.releaseVisual(v)
	}
	for _, n := range []scene.Node{s.previewGfx, s.highlightGfx, s.lineGfx,
		s.notes, s.lines, s.preview, s.pins, s.controls, s.overlay} {
		scene.Release(n)
	}
	c.state = State{visuals: map[string]*noteVisual{}}
	c.graph = domain.NewGraph(nil)
}
