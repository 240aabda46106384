package domain

import (
	"encoding/json"
	"strconv"
)

// flag bag keys
const (
	flagType         = "type"
	flagText         = "text"
	flagImage        = "image"
	flagAudio        = "audioPath"
	flagIdentityName = "identityName"
	flagLinkedObject = "linkedObject"
	flagUnknown      = "unknown"
	flagFont         = "font"
	flagFontSize     = "fontSize"
	flagTint         = "tint"
	flagInk          = "ink"
	flagPinColor     = "pinColor"
	flagConnections  = "connections"
)

// IsManaged reports whether doc carries board note data
func IsManaged(doc *Document) bool {
	if doc == nil || doc.Flags == nil {
		return false
	}
	k, _ := doc.Flags[flagType].(string)
	return Kind(k).Valid()
}

// LoadNote is the single typed view over a document's flag bag. Every default policy is applied
// here: missing sizes, texts and style fields are filled from d. Returns ErrNotManaged for
// documents that are not board notes.
// LoadNote 将文档转换为笔记并填充默认值
func LoadNote(doc *Document, d Defaults) (*Note, error) {
	if !IsManaged(doc) {
		return nil, ErrNotManaged
	}
	f := doc.Flags
	kind := Kind(f.str(flagType))

	n := &Note{
		ID:            doc.ID,
		SceneID:       doc.SceneID,
		OwnerID:       doc.OwnerID,
		Position:      doc.Position,
		Size:          doc.Size,
		Kind:          kind,
		Text:          f.str(flagText),
		ImagePath:     f.str(flagImage),
		AudioPath:     f.str(flagAudio),
		IdentityName:  f.str(flagIdentityName),
		LinkedObject:  f.str(flagLinkedObject),
		Unknown:       f.boolean(flagUnknown),
		Connections:   decodeConnections(f[flagConnections]),
		LockedForMove: doc.Locked,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
		Style: Style{
			Font:     f.str(flagFont),
			FontSize: f.float(flagFontSize),
			Tint:     f.str(flagTint),
			Ink:      f.str(flagInk),
			PinColor: f.str(flagPinColor),
		},
	}

	if n.Size.Width <= 0 || n.Size.Height <= 0 {
		n.Size = d.DefaultSize(kind)
	}
	if _, ok := f[flagText]; !ok {
		n.Text = d.DefaultText(kind)
	}
	if n.Kind == KindHandout && n.ImagePath == "" {
		n.ImagePath = d.HandoutImage
	}
	n.Style = d.ResolveStyle(kind, n.Style)

	return n, nil
}

// ToDocument converts n back into a store document. Only explicitly set style fields are written,
// so notes keep following the defaults until overridden.
// ToDocument 笔记转换为存储文档
func (n *Note) ToDocument() *Document {
	f := Flags{
		flagType:         string(n.Kind),
		flagText:         n.Text,
		flagLinkedObject: n.LinkedObject,
		flagConnections:  encodeConnections(n.Connections),
	}
	if n.ImagePath != "" {
		f[flagImage] = n.ImagePath
	}
	if n.Kind == KindMedia || n.AudioPath != "" {
		f[flagAudio] = n.AudioPath
	}
	if n.IdentityName != "" {
		f[flagIdentityName] = n.IdentityName
	}
	if n.Unknown {
		f[flagUnknown] = true
	}
	if n.Style.Font != "" {
		f[flagFont] = n.Style.Font
	}
	if n.Style.FontSize > 0 {
		f[flagFontSize] = n.Style.FontSize
	}
	if n.Style.Tint != "" {
		f[flagTint] = n.Style.Tint
	}
	if n.Style.Ink != "" {
		f[flagInk] = n.Style.Ink
	}
	if n.Style.PinColor != "" {
		f[flagPinColor] = n.Style.PinColor
	}

	return &Document{
		ID:       n.ID,
		SceneID:  n.SceneID,
		OwnerID:  n.OwnerID,
		Position: n.Position,
		Size:     n.Size,
		Locked:   n.LockedForMove,
		Flags:    f,
	}
}

// LoadNotes loads every managed document, skipping the rest.
func LoadNotes(docs []*Document, d Defaults) []*Note {
	notes := make([]*Note, 0, len(docs))
	for _, doc := range docs {
		if n, err := LoadNote(doc, d); err == nil {
			notes = append(notes, n)
		}
	}
	return notes
}

func (f Flags) str(key string) string {
	v, _ := f[key].(string)
	return v
}

func (f Flags) boolean(key string) bool {
	v, _ := f[key].(bool)
	return v
}

func (f Flags) float(key string) float64 {
	return toFloat(f[key])
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		x, _ := n.Float64()
		return x
	case string:
		x, _ := strconv.ParseFloat(n, 64)
		return x
	}
	return 0
}

func encodeConnections(conns []Connection) []any {
	out := make([]any, 0, len(conns))
	for _, c := range conns {
		m := map[string]any{"targetId": c.TargetID}
		if c.Color != "" {
			m["color"] = c.Color
		}
		if c.Width > 0 {
			m["width"] = c.Width
		}
		out = append(out, m)
	}
	return out
}

func decodeConnections(v any) []Connection {
	var out []Connection
	add := func(m map[string]any) {
		id, _ := m["targetId"].(string)
		if id == "" {
			return
		}
		color, _ := m["color"].(string)
		out = append(out, Connection{TargetID: id, Color: color, Width: toFloat(m["width"])})
	}

	switch list := v.(type) {
	case []Connection:
		out = append(out, list...)
	case []map[string]any:
		for _, m := range list {
			add(m)
		}
	case []any:
		for _, item := range list {
			switch c := item.(type) {
			case map[string]any:
				add(c)
			case Connection:
				out = append(out, c)
			}
		}
	}
	if out == nil {
		out = []Connection{}
	}
	return out
}
