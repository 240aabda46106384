package domain

import "github.com/haierkeys/evidence-board-service/pkg/yarn"

const (
	pinTopOffset = 23
	// handout pins sit 5% down the note plus half a pin
	handoutPinRatio  = 0.05
	handoutPinOffset = 20
	pinSpriteTop     = 3
)

// PinAnchor the world point a note's connections attach to, also the click hotspot.
// Handout and media notes follow their current size; other kinds use the class default width.
// PinAnchor 计算笔记图钉锚点
func PinAnchor(n *Note, d Defaults) yarn.Point {
	switch n.Kind {
	case KindHandout:
		w, h := n.Size.Width, n.Size.Height
		if w <= 0 {
			w = d.HandoutWidth
		}
		if h <= 0 {
			h = d.HandoutHeight
		}
		return yarn.Point{X: n.Position.X + w/2, Y: n.Position.Y + h*handoutPinRatio + handoutPinOffset}
	case KindMedia:
		w := n.Size.Width
		if w <= 0 {
			w = d.MediaWidth
		}
		return yarn.Point{X: n.Position.X + w/2, Y: n.Position.Y + pinTopOffset}
	}
	return yarn.Point{X: n.Position.X + d.ClassWidth(n.Kind)/2, Y: n.Position.Y + pinTopOffset}
}

// PinSpritePosition top-left of the pin sprite in world coordinates
func PinSpritePosition(n *Note, d Defaults) yarn.Point {
	anchor := PinAnchor(n, d)
	half := d.PinSize / 2
	if n.Kind == KindHandout {
		return yarn.Point{X: anchor.X - half, Y: anchor.Y - handoutPinOffset}
	}
	return yarn.Point{X: anchor.X - half, Y: n.Position.Y + pinSpriteTop}
}

// OverlayCenter centre of the class default box of n, where connection numbers are drawn
func OverlayCenter(n *Note, d Defaults) (yarn.Point, float64) {
	w := d.ClassWidth(n.Kind)
	size := d.DefaultSize(n.Kind)
	if n.Kind.Resizable() {
		w, size = n.Size.Width, n.Size
	}
	return yarn.Point{X: n.Position.X + w/2, Y: n.Position.Y + size.Height/2}, w
}
