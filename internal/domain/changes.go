package domain

import (
	"time"

	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

// Changes typed partial update of a note. Nil fields are left alone, so updates touching
// disjoint fields compose in any order.
// Changes 笔记的部分更新，nil 字段不修改
type Changes struct {
	Position      *yarn.Point `json:"position,omitempty"`
	Size          *Size       `json:"size,omitempty"`
	LockedForMove *bool       `json:"lockedForMove,omitempty"`

	Kind         *Kind   `json:"kind,omitempty"`
	Text         *string `json:"text,omitempty"`
	ImagePath    *string `json:"imagePath,omitempty"`
	AudioPath    *string `json:"audioPath,omitempty"`
	IdentityName *string `json:"identityName,omitempty"`
	LinkedObject *string `json:"linkedObject,omitempty"`
	Unknown      *bool   `json:"unknown,omitempty"`

	Font     *string  `json:"font,omitempty"`
	FontSize *float64 `json:"fontSize,omitempty"`
	Tint     *string  `json:"tint,omitempty"`
	Ink      *string  `json:"ink,omitempty"`
	PinColor *string  `json:"pinColor,omitempty"`

	Connections *[]Connection `json:"connections,omitempty" validate:"omitempty,dive"`
}

// Empty reports whether no field is set
func (c Changes) Empty() bool {
	return c == Changes{}
}

// Fields names of the set fields, for logging
func (c Changes) Fields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(c.Position != nil, "position")
	add(c.Size != nil, "size")
	add(c.LockedForMove != nil, "lockedForMove")
	add(c.Kind != nil, "kind")
	add(c.Text != nil, "text")
	add(c.ImagePath != nil, "imagePath")
	add(c.AudioPath != nil, "audioPath")
	add(c.IdentityName != nil, "identityName")
	add(c.LinkedObject != nil, "linkedObject")
	add(c.Unknown != nil, "unknown")
	add(c.Font != nil, "font")
	add(c.FontSize != nil, "fontSize")
	add(c.Tint != nil, "tint")
	add(c.Ink != nil, "ink")
	add(c.PinColor != nil, "pinColor")
	add(c.Connections != nil, "connections")
	return out
}

// Apply merges the set fields into doc.
func (c Changes) Apply(doc *Document) {
	if c.Position != nil {
		doc.Position = *c.Position
	}
	if c.Size != nil {
		doc.Size = *c.Size
	}
	if c.LockedForMove != nil {
		doc.Locked = *c.LockedForMove
	}
	if doc.Flags == nil {
		doc.Flags = Flags{}
	}
	f := doc.Flags
	setString := func(key string, v *string) {
		if v != nil {
			f[key] = *v
		}
	}
	if c.Kind != nil {
		f[flagType] = string(*c.Kind)
	}
	setString(flagText, c.Text)
	setString(flagImage, c.ImagePath)
	setString(flagAudio, c.AudioPath)
	setString(flagIdentityName, c.IdentityName)
	setString(flagLinkedObject, c.LinkedObject)
	if c.Unknown != nil {
		f[flagUnknown] = *c.Unknown
	}
	setString(flagFont, c.Font)
	if c.FontSize != nil {
		f[flagFontSize] = *c.FontSize
	}
	setString(flagTint, c.Tint)
	setString(flagInk, c.Ink)
	setString(flagPinColor, c.PinColor)
	if c.Connections != nil {
		f[flagConnections] = encodeConnections(*c.Connections)
	}
	doc.UpdatedAt = time.Now()
}

// Merge returns c with every field set in later overriding it; last writer per field wins.
func (c Changes) Merge(later Changes) Changes {
	out := c
	if later.Position != nil {
		out.Position = later.Position
	}
	if later.Size != nil {
		out.Size = later.Size
	}
	if later.LockedForMove != nil {
		out.LockedForMove = later.LockedForMove
	}
	if later.Kind != nil {
		out.Kind = later.Kind
	}
	if later.Text != nil {
		out.Text = later.Text
	}
	if later.ImagePath != nil {
		out.ImagePath = later.ImagePath
	}
	if later.AudioPath != nil {
		out.AudioPath = later.AudioPath
	}
	if later.IdentityName != nil {
		out.IdentityName = later.IdentityName
	}
	if later.LinkedObject != nil {
		out.LinkedObject = later.LinkedObject
	}
	if later.Unknown != nil {
		out.Unknown = later.Unknown
	}
	if later.Font != nil {
		out.Font = later.Font
	}
	if later.FontSize != nil {
		out.FontSize = later.FontSize
	}
	if later.Tint != nil {
		out.Tint = later.Tint
	}
	if later.Ink != nil {
		out.Ink = later.Ink
	}
	if later.PinColor != nil {
		out.PinColor = later.PinColor
	}
	if later.Connections != nil {
		out.Connections = later.Connections
	}
	return out
}

// SetConnections change of the connection list only
func SetConnections(conns []Connection) Changes {
	if conns == nil {
		conns = []Connection{}
	}
	return Changes{Connections: &conns}
}

// MoveTo change of the position only
func MoveTo(p yarn.Point) Changes {
	return Changes{Position: &p}
}

// Ptr returns a pointer to v, for building Changes literals
func Ptr[T any](v T) *T {
	return &v
}
