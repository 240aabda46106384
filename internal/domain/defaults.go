package domain

import (
	"hash/fnv"
	"math"

	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

// Pin colours
const (
	PinRandom = "random"
	PinNone   = "none"
)

// PinColors the pin images shipped with the board
var PinColors = []string{"red", "blue", "yellow", "green"}

// Defaults process-wide note defaults, built from the board config section.
// Defaults 全局笔记默认值
type Defaults struct {
	StickyWidth   float64 `yaml:"sticky-width" default:"200"`
	PhotoWidth    float64 `yaml:"photo-width" default:"225"`
	IndexWidth    float64 `yaml:"index-width" default:"600"`
	HandoutWidth  float64 `yaml:"handout-width" default:"400"`
	HandoutHeight float64 `yaml:"handout-height" default:"400"`
	MediaWidth    float64 `yaml:"media-width" default:"400"`
	PinSize       float64 `yaml:"pin-size" default:"40"`

	StickyText string `yaml:"sticky-text" default:"Clue"`
	PhotoText  string `yaml:"photo-text" default:"Suspect/Place"`
	IndexText  string `yaml:"index-text" default:"Notes"`
	MediaText  string `yaml:"media-text" default:"Audio Recording"`

	LineWidth float64 `yaml:"line-width" default:"7"`
	LineColor string  `yaml:"line-color" default:"#FF0000"`
	PinColor  string  `yaml:"pin-color" default:"random"`

	Font          string  `yaml:"font" default:"Rock Salt"`
	BaseFontSize  float64 `yaml:"base-font-size" default:"16"`
	IndexFontSize float64 `yaml:"index-font-size" default:"9"`
	Tint          string  `yaml:"tint" default:"#ffffff"`
	Ink           string  `yaml:"ink" default:"#000000"`

	HandoutImage string `yaml:"handout-image" default:"assets/newhandout.webp"`
	// CassetteImage media notes without an image
	CassetteImage string `yaml:"cassette-image" default:"assets/cassette1.webp"`
	// AssetDir holds the board textures
	AssetDir string `yaml:"asset-dir" default:"assets"`
	// Theme classic, futuristic or custom
	Theme string `yaml:"theme" default:"classic"`
	// DefaultPermission applied to new notes; owner lets every player edit directly
	DefaultPermission Permission `yaml:"default-permission" default:"3"`
}

// StandardDefaults the shipped defaults
func StandardDefaults() Defaults {
	return Defaults{
		StickyWidth:       200,
		PhotoWidth:        225,
		IndexWidth:        600,
		HandoutWidth:      400,
		HandoutHeight:     400,
		MediaWidth:        400,
		PinSize:           40,
		StickyText:        "Clue",
		PhotoText:         "Suspect/Place",
		IndexText:         "Notes",
		MediaText:         "Audio Recording",
		LineWidth:         7,
		LineColor:         "#FF0000",
		PinColor:          PinRandom,
		Font:              "Rock Salt",
		BaseFontSize:      16,
		IndexFontSize:     9,
		Tint:              "#ffffff",
		Ink:               "#000000",
		HandoutImage:      "assets/newhandout.webp",
		CassetteImage:     "assets/cassette1.webp",
		AssetDir:          "assets",
		Theme:             ThemeClassic,
		DefaultPermission: PermissionOwner,
	}
}

// ClassWidth the configured width of kind, used to anchor pins of fixed-layout notes
func (d Defaults) ClassWidth(kind Kind) float64 {
	switch kind {
	case KindPhoto:
		return d.PhotoWidth
	case KindIndex:
		return d.IndexWidth
	case KindHandout:
		return d.HandoutWidth
	case KindMedia:
		return d.MediaWidth
	case KindPin:
		return d.PinSize
	}
	return d.StickyWidth
}

// DefaultSize the size a new note of kind gets
// DefaultSize 新建笔记的默认尺寸
func (d Defaults) DefaultSize(kind Kind) Size {
	switch kind {
	case KindPhoto:
		return Size{Width: d.PhotoWidth, Height: math.Round(d.PhotoWidth / (225.0 / 290.0))}
	case KindIndex:
		return Size{Width: d.IndexWidth, Height: math.Round(d.IndexWidth / (600.0 / 400.0))}
	case KindHandout:
		return Size{Width: d.HandoutWidth, Height: d.HandoutHeight}
	case KindMedia:
		return Size{Width: d.MediaWidth, Height: math.Round(d.MediaWidth * 0.74)}
	case KindPin:
		return Size{Width: d.PinSize, Height: d.PinSize}
	}
	return Size{Width: d.StickyWidth, Height: d.StickyWidth}
}

// DefaultText the text a new note of kind gets
func (d Defaults) DefaultText(kind Kind) string {
	switch kind {
	case KindSticky:
		return d.StickyText
	case KindPhoto:
		return d.PhotoText
	case KindIndex:
		return d.IndexText
	case KindMedia:
		return d.MediaText
	}
	return ""
}

// ResolveStyle fills the unset fields of s from the defaults
func (d Defaults) ResolveStyle(kind Kind, s Style) Style {
	if s.Font == "" {
		s.Font = d.Font
	}
	if s.FontSize <= 0 {
		s.FontSize = d.BaseFontSize
		if kind == KindIndex {
			s.FontSize = d.IndexFontSize
		}
	}
	if s.Tint == "" {
		s.Tint = d.Tint
	}
	if s.Ink == "" {
		s.Ink = d.Ink
	}
	return s
}

// ConnectionColor the colour of a new connection drawn by actor
func (d Defaults) ConnectionColor(actor Actor) string {
	if actor.Color != "" {
		return actor.Color
	}
	if d.LineColor != "" {
		return d.LineColor
	}
	return yarn.DefaultLineColor.Hex()
}

// LineStyle resolves the display colour and width of c
func (d Defaults) LineStyle(c Connection) (yarn.Color, float64) {
	color := yarn.ParseColorOr(c.Color, yarn.ParseColorOr(d.LineColor, yarn.DefaultLineColor))
	width := c.Width
	if width <= 0 {
		width = d.LineWidth
	}
	if width <= 0 {
		width = 6
	}
	return yarn.DeriveDisplayColor(color), width
}

// ResolvePinColor returns the pin colour name of n, or "" when pins are disabled.
// A note without a stored colour under the random setting gets one derived from its id, so every
// client picks the same colour before the choice is persisted.
// ResolvePinColor 解析笔记的图钉颜色
func (d Defaults) ResolvePinColor(n *Note) string {
	if d.PinColor == PinNone {
		return ""
	}
	if n.Style.PinColor != "" {
		return n.Style.PinColor
	}
	if d.PinColor != "" && d.PinColor != PinRandom {
		return d.PinColor
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(n.ID))
	return PinColors[h.Sum32()%uint32(len(PinColors))]
}

// NewNoteAtViewCenter builds a note of kind centred on the viewport centre.
// NewNoteAtViewCenter 在视口中心创建笔记
func NewNoteAtViewCenter(kind Kind, center yarn.Point, d Defaults) *Note {
	size := d.DefaultSize(kind)
	n := &Note{
		Kind:        kind,
		Size:        size,
		Position:    yarn.Point{X: center.X - size.Width/2, Y: center.Y - size.Height/2},
		Text:        d.DefaultText(kind),
		Connections: []Connection{},
	}
	switch kind {
	case KindIndex:
		n.Style.FontSize = d.IndexFontSize
	case KindHandout:
		n.ImagePath = d.HandoutImage
	}
	return n
}

// CapNaturalSize scales an image's natural size down to at most 2000 wide and 1000 high.
func CapNaturalSize(w, h float64) Size {
	if h > 1000 {
		w = math.Round(w * (1000 / h))
		h = 1000
	}
	if w > 2000 {
		h = math.Round(h * (2000 / w))
		w = 2000
	}
	return Size{Width: w, Height: h}
}
