package headless

import (
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/haierkeys/evidence-board-service/internal/scene"
	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

// Host in-memory scene host
type Host struct {
	stage  *Container
	ticker *Ticker

	mu     sync.Mutex
	center yarn.Point

	created  atomic.Int64
	released atomic.Int64
}

var _ scene.Host = (*Host)(nil)

// Option host option
type Option func(*Host)

// WithTicker uses t as the frame ticker
func WithTicker(t *Ticker) Option {
	return func(h *Host) { h.ticker = t }
}

// WithViewCenter sets the initial viewport centre
func WithViewCenter(p yarn.Point) Option {
	return func(h *Host) { h.center = p }
}

// NewHost 创建无界面宿主
func NewHost(opts ...Option) *Host {
	h := &Host{}
	h.stage = &Container{node: node{host: h}}
	for _, o := range opts {
		o(h)
	}
	if h.ticker == nil {
		h.ticker = NewTicker(0)
	}
	return h
}

func (h *Host) Stage() scene.Container { return h.stage }

func (h *Host) NewContainer() scene.Container {
	h.created.Add(1)
	return &Container{node: node{host: h}}
}

func (h *Host) NewGraphics() scene.Graphics {
	h.created.Add(1)
	return &Graphics{node: node{host: h}}
}

func (h *Host) NewSprite() scene.Sprite {
	h.created.Add(1)
	return &Sprite{node: node{host: h}}
}

func (h *Host) NewLabel(text string, style scene.LabelStyle) scene.Label {
	h.created.Add(1)
	return &Label{node: node{host: h}, text: text, style: style}
}

func (h *Host) Ticker() scene.Ticker { return h.ticker }

// FrameTicker the concrete ticker, for manual stepping
func (h *Host) FrameTicker() *Ticker { return h.ticker }

func (h *Host) ViewCenter() yarn.Point {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.center
}

// SetViewCenter 移动视口
func (h *Host) SetViewCenter(p yarn.Point) {
	h.mu.Lock()
	h.center = p
	h.mu.Unlock()
}

// Live number of created nodes not yet destroyed
func (h *Host) Live() int {
	return int(h.created.Load() - h.released.Load())
}

// released is called once per destroyed node
func (h *Host) releasedNode() {
	h.released.Add(1)
}

// Layers stage children ordered by z index
func (h *Host) Layers() []*Container {
	var out []*Container
	for _, n := range h.stage.Children() {
		if c, ok := n.(*Container); ok {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZIndex() < out[j].ZIndex() })
	return out
}

// Layer the stage child with z index z, or nil
func (h *Host) Layer(z int) *Container {
	for _, c := range h.Layers() {
		if c.ZIndex() == z {
			return c
		}
	}
	return nil
}

// WriteSVG renders the stage: sprites as outlined boxes, graphics as recorded
func (h *Host) WriteSVG(w io.Writer, width, height float64) error {
	var layers []*yarn.Recorder
	for _, layer := range h.Layers() {
		layers = append(layers, collect(layer)...)
	}
	return yarn.WriteSVG(w, width, height, layers...)
}

const (
	spriteOutline   yarn.Color = 0x555555
	placeholderFill yarn.Color = 0xcccccc
)

func collect(c *Container) []*yarn.Recorder {
	var out []*yarn.Recorder
	for _, n := range c.Children() {
		switch v := n.(type) {
		case *Graphics:
			out = append(out, v.Snapshot())
		case *Sprite:
			r := yarn.NewRecorder()
			color := spriteOutline
			if v.Texture().Placeholder {
				color = placeholderFill
			}
			p := v.Position()
			sw, sh := v.Size()
			r.LineStyle(1, color, 1)
			r.DrawRect(p.X, p.Y, sw, sh)
			out = append(out, r)
		case *Container:
			out = append(out, collect(v)...)
		}
	}
	return out
}
