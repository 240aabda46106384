package domain

import (
	"path"

	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

// Board themes
const (
	ThemeClassic    = "classic"
	ThemeFuturistic = "futuristic"
	ThemeCustom     = "custom"
)

// BodyTexture the texture drawn behind a note. Handouts and media show their own image.
func (d Defaults) BodyTexture(n *Note) string {
	switch n.Kind {
	case KindHandout:
		if n.ImagePath != "" {
			return n.ImagePath
		}
		return d.HandoutImage
	case KindMedia:
		if n.ImagePath != "" {
			return n.ImagePath
		}
		return d.CassetteImage
	case KindPin:
		return ""
	}

	prefix := ""
	switch d.Theme {
	case ThemeFuturistic:
		prefix = "futuristic_"
	case ThemeCustom:
		prefix = "custom_"
	}
	name := "note_white.webp"
	switch n.Kind {
	case KindPhoto:
		name = "photoFrame.webp"
	case KindIndex:
		name = "note_index.webp"
	}
	return path.Join(d.AssetDir, prefix+name)
}

// PinTexture the pin sprite texture of n, "" when pins are disabled
func (d Defaults) PinTexture(n *Note) string {
	c := d.ResolvePinColor(n)
	if c == "" {
		return ""
	}
	return path.Join(d.AssetDir, c+"Pin.webp")
}

// PhotoImage the picture shown inside a photo frame, "" for other kinds
func (d Defaults) PhotoImage(n *Note) string {
	if n.Kind != KindPhoto {
		return ""
	}
	if n.ImagePath != "" {
		return n.ImagePath
	}
	return path.Join(d.AssetDir, "placeholder.webp")
}

// Rect 矩形
type Rect struct {
	X, Y, Width, Height float64
}

// PhotoFrame the window of a photo note the picture is drawn into
func PhotoFrame(n *Note) Rect {
	wo := n.Size.Width * 0.13333
	ho := n.Size.Height * 0.30246
	return Rect{
		X:      n.Position.X + wo/2,
		Y:      n.Position.Y + ho/2,
		Width:  n.Size.Width - wo,
		Height: n.Size.Height - ho,
	}
}

// FitPhoto scales a texW x texH picture to cover frame without stretching. Wide pictures fit the
// height and are centred horizontally; tall ones fit the width and stay top aligned.
func FitPhoto(frame Rect, texW, texH int) Rect {
	if texW <= 0 || texH <= 0 || frame.Width <= 0 || frame.Height <= 0 {
		return frame
	}
	ratio := float64(texW) / float64(texH)
	if ratio > frame.Width/frame.Height {
		w := frame.Height * ratio
		return Rect{X: frame.X + (frame.Width-w)/2, Y: frame.Y, Width: w, Height: frame.Height}
	}
	return Rect{X: frame.X, Y: frame.Y, Width: frame.Width, Height: frame.Width / ratio}
}

// TopLeft 左上角
func (r Rect) TopLeft() yarn.Point { return yarn.Point{X: r.X, Y: r.Y} }
