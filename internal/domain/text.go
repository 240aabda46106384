package domain

import (
	"math"
	"strings"

	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

// referenceFontSize the font size the base character limits were measured at
const referenceFontSize = 15

// CharLimits per-kind character limits for one font
type CharLimits struct {
	Sticky int `yaml:"sticky" json:"sticky"`
	Photo  int `yaml:"photo" json:"photo"`
	Index  int `yaml:"index" json:"index"`
}

// BaseCharacterLimits limits per font family
var BaseCharacterLimits = map[string]CharLimits{
	"Rock Salt":       {Sticky: 90, Photo: 20, Index: 210},
	"Caveat":          {Sticky: 150, Photo: 25, Index: 400},
	"Courier New":     {Sticky: 250, Photo: 30, Index: 580},
	"Times New Roman": {Sticky: 200, Photo: 30, Index: 800},
	"Signika":         {Sticky: 200, Photo: 30, Index: 650},
	"Arial":           {Sticky: 200, Photo: 30, Index: 650},
}

var fallbackLimits = CharLimits{Sticky: 60, Photo: 15, Index: 200}

// RenderFontSize the on-canvas font size: the style size scaled with the note width
func RenderFontSize(n *Note, d Defaults) float64 {
	return n.Size.Width / 200 * d.ResolveStyle(n.Kind, n.Style).FontSize
}

// TextBlock the text drawn on a note, anchored at Center
type TextBlock struct {
	Text      string
	Font      string
	FontSize  float64
	Ink       yarn.Color
	Center    yarn.Point
	WrapWidth float64
}

// ShowsText sticky, photo and index notes carry text on the board; media and handouts keep it
// for the editor only
func (k Kind) ShowsText() bool {
	return k == KindSticky || k == KindPhoto || k == KindIndex
}

// NoteText lays out the board text of n: truncated to the kind's limit at the rendered font size,
// centred on the note, or above the bottom edge of a photo frame.
func NoteText(n *Note, d Defaults) (TextBlock, bool) {
	if !n.Kind.ShowsText() {
		return TextBlock{}, false
	}
	style := d.ResolveStyle(n.Kind, n.Style)
	size := RenderFontSize(n, d)
	text := n.Text
	if text == "" {
		text = d.DefaultText(n.Kind)
	}

	w, h := n.Size.Width, n.Size.Height
	cy := h / 2
	if n.Kind == KindPhoto {
		cy = h - 25
	}
	return TextBlock{
		Text:      Truncate(text, n.Kind, style.Font, size),
		Font:      style.Font,
		FontSize:  size,
		Ink:       yarn.ParseColorOr(style.Ink, yarn.Black),
		Center:    yarn.Point{X: n.Position.X + w/2, Y: n.Position.Y + cy},
		WrapWidth: w - 15,
	}, true
}

// CharacterLimit number of characters shown for kind at fontSize. Larger fonts show fewer characters.
func CharacterLimit(kind Kind, font string, fontSize float64) int {
	limits, ok := BaseCharacterLimits[font]
	if !ok {
		limits = fallbackLimits
	}
	var base int
	switch kind {
	case KindSticky:
		base = limits.Sticky
	case KindPhoto:
		base = limits.Photo
	case KindIndex:
		base = limits.Index
	default:
		return 100
	}
	if fontSize <= 0 {
		return base
	}
	return int(math.Round(float64(base) * referenceFontSize / fontSize))
}

// Truncate shortens text to the character limit, ending with "..."
func Truncate(text string, kind Kind, font string, fontSize float64) string {
	limit := CharacterLimit(kind, font, fontSize)
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return strings.TrimSpace(string(r[:limit])) + "..."
}
