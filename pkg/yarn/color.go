package yarn

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color packed 0xRRGGBB colour value
// Color 打包的 0xRRGGBB 颜色值
type Color uint32

const (
	Black Color = 0x000000
	White Color = 0xFFFFFF
	Green Color = 0x00FF00
	// DefaultLineColor fallback connection colour when neither the connection nor the actor carry one
	DefaultLineColor Color = 0xFF0000
)

// ParseColor parses "#rrggbb" or "rrggbb"
// ParseColor 解析 "#rrggbb" 或 "rrggbb" 格式颜色
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty color")
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return 0, err
	}
	return fromColorful(c), nil
}

// ParseColorOr parses s and falls back to def when it is empty or malformed.
func ParseColorOr(s string, def Color) Color {
	c, err := ParseColor(s)
	if err != nil {
		return def
	}
	return c
}

// RGB returns the 8-bit channels.
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Hex returns the "#rrggbb" form.
func (c Color) Hex() string {
	return fmt.Sprintf("#%06x", uint32(c)&0xFFFFFF)
}

func (c Color) colorful() colorful.Color {
	r, g, b := c.RGB()
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

func fromColorful(c colorful.Color) Color {
	r, g, b := c.Clamped().RGB255()
	return Color(uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// Darken scales the RGB channels by factor (0..1).
func (c Color) Darken(factor float64) Color {
	cf := c.colorful()
	return fromColorful(colorful.Color{R: cf.R * factor, G: cf.G * factor, B: cf.B * factor})
}

// DeriveDisplayColor adjusts a user-chosen base colour so the yarn stays legible on bright notes.
// Very light colours are darkened hard, mid tones moderately, and near-black is lifted to a floor
// lightness of 0.15. Saturation gets a small boost for non-grey colours so darkening does not turn muddy.
// DeriveDisplayColor 根据用户基础色计算连线显示色
func DeriveDisplayColor(base Color) Color {
	h, s, l := base.colorful().Hsl()

	switch {
	case l >= 0.6:
		l *= 0.5
	case l >= 0.2:
		l *= 0.7
	default:
		l = math.Max(l, 0.15)
	}

	if s > 0.1 {
		s = math.Min(1, s*1.2)
	}

	return fromColorful(colorful.Hsl(h, s, l))
}
