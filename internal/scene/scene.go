// Package scene is the contract between the board and the canvas host that draws it.
// The board never subclasses host objects; it creates nodes through Host and releases them
// explicitly with Destroy.
package scene

import (
	"time"

	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

// Z orders of the shared layers
const (
	ZNotes    = 0
	ZLines    = 10
	ZPreview  = 15
	ZPins     = 20
	ZControls = 50
	ZOverlay  = 100
)

// Node a canvas object with an explicit lifetime
type Node interface {
	Destroy()
	Destroyed() bool
}

// Graphics vector path node
type Graphics interface {
	Node
	yarn.Graphics
}

// Container groups child nodes; children are drawn in insertion order
type Container interface {
	Node
	AddChild(n Node)
	RemoveChild(n Node)
	Children() []Node
	ZIndex() int
	SetZIndex(z int)
}

// Texture a loaded image. Placeholder textures stand in for images that failed to load.
type Texture struct {
	Key         string
	Width       int
	Height      int
	Placeholder bool
}

// Sprite textured quad in world coordinates
type Sprite interface {
	Node
	SetPosition(p yarn.Point)
	Position() yarn.Point
	SetSize(w, h float64)
	SetTexture(t Texture)
	Texture() Texture
	// SetTint multiplies the texture colour; white leaves it unchanged
	SetTint(c yarn.Color)
	Tint() yarn.Color
}

// LabelStyle text style of a label
type LabelStyle struct {
	FontFamily string
	FontSize   float64
	Bold       bool
	Fill       yarn.Color
	Stroke     yarn.Color
	StrokeSize float64
	// WrapWidth wraps lines longer than this; 0 never wraps
	WrapWidth float64
}

// Label text node, anchored at its centre
type Label interface {
	Node
	SetText(s string)
	Text() string
	SetPosition(p yarn.Point)
	Position() yarn.Point
	Style() LabelStyle
}

// Ticker per-frame callback registration
type Ticker interface {
	Add(fn func(delta time.Duration)) (remove func())
}

// Host the canvas the board renders through
type Host interface {
	// Stage root container; shared layers are added to it
	Stage() Container
	NewContainer() Container
	NewGraphics() Graphics
	NewSprite() Sprite
	NewLabel(text string, style LabelStyle) Label
	Ticker() Ticker
	// ViewCenter world point at the centre of the viewport
	ViewCenter() yarn.Point
}

// Alive reports whether n is usable
func Alive(n Node) bool {
	return n != nil && !n.Destroyed()
}

// Release destroys n unless it is already gone
func Release(n Node) {
	if Alive(n) {
		n.Destroy()
	}
}
