// Package domain 定义证据板的领域模型：笔记、连线、文档存储契约
package domain

import (
	"sort"
	"time"

	"github.com/jinzhu/copier"

	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

// Kind 笔记类型
type Kind string

const (
	KindSticky  Kind = "sticky"
	KindPhoto   Kind = "photo"
	KindIndex   Kind = "index"
	KindHandout Kind = "handout"
	KindMedia   Kind = "media"
	KindPin     Kind = "pin"
)

// Kinds every known kind, in toolbar order
var Kinds = []Kind{KindSticky, KindPhoto, KindIndex, KindHandout, KindMedia, KindPin}

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

// HasText 是否显示文字
func (k Kind) HasText() bool {
	return k == KindSticky || k == KindPhoto || k == KindIndex || k == KindMedia
}

// HasImage 是否有图片
func (k Kind) HasImage() bool {
	return k == KindPhoto || k == KindHandout || k == KindMedia
}

// Resizable handout and media notes follow their current size, others use the class default box.
func (k Kind) Resizable() bool {
	return k == KindHandout || k == KindMedia
}

// Size 宽高
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Connection 有向连线，属于源笔记
type Connection struct {
	TargetID string  `json:"targetId" validate:"required"`
	Color    string  `json:"color,omitempty"`
	Width    float64 `json:"width,omitempty"`
}

// Style 笔记样式，空值表示继承默认值
type Style struct {
	Font     string  `json:"font,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`
	Tint     string  `json:"tint,omitempty"`
	Ink      string  `json:"ink,omitempty"`
	PinColor string  `json:"pinColor,omitempty"`
}

// Note 证据板笔记
type Note struct {
	ID      string `json:"id"`
	SceneID string `json:"sceneId"`
	OwnerID string `json:"ownerId,omitempty"`

	Position yarn.Point `json:"position"`
	Size     Size       `json:"size"`
	Kind     Kind       `json:"kind"`

	Text         string `json:"text"`
	ImagePath    string `json:"imagePath,omitempty"`
	AudioPath    string `json:"audioPath,omitempty"`
	IdentityName string `json:"identityName,omitempty"`
	LinkedObject string `json:"linkedObject,omitempty"`
	Unknown      bool   `json:"unknown,omitempty"`

	Style         Style        `json:"style"`
	Connections   []Connection `json:"connections" validate:"dive"`
	LockedForMove bool         `json:"lockedForMove,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone deep copy, connections included
func (n *Note) Clone() *Note {
	out := *n
	out.Connections = nil
	if len(n.Connections) > 0 {
		if err := copier.CopyWithOption(&out.Connections, n.Connections, copier.Option{DeepCopy: true}); err != nil {
			// Connection holds only values, a slice copy is already deep
			out.Connections = append([]Connection(nil), n.Connections...)
		}
	}
	return &out
}

// Bounds top-left and size
func (n *Note) Bounds() (x, y, w, h float64) {
	return n.Position.X, n.Position.Y, n.Size.Width, n.Size.Height
}

// ConnectedTo reports whether n has an outgoing connection to id
func (n *Note) ConnectedTo(id string) bool {
	for _, c := range n.Connections {
		if c.TargetID == id {
			return true
		}
	}
	return false
}

// Graph is a read-only snapshot of the notes of one scene.
// It is rebuilt from the store on every change notification and never mutated in place.
// Graph 场景内笔记的只读快照
type Graph struct {
	notes map[string]*Note
	order []string
}

// NewGraph builds a graph; later notes with a duplicate id replace earlier ones.
func NewGraph(notes []*Note) *Graph {
	g := &Graph{notes: make(map[string]*Note, len(notes))}
	for _, n := range notes {
		if n == nil || n.ID == "" {
			continue
		}
		g.notes[n.ID] = n
	}
	g.order = make([]string, 0, len(g.notes))
	for id := range g.notes {
		g.order = append(g.order, id)
	}
	sort.Strings(g.order)
	return g
}

// Get returns the note with id, or nil
func (g *Graph) Get(id string) *Note {
	if g == nil {
		return nil
	}
	return g.notes[id]
}

// Has reports whether id exists
func (g *Graph) Has(id string) bool {
	return g.Get(id) != nil
}

// Len number of notes
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.notes)
}

// All returns notes ordered by id
func (g *Graph) All() []*Note {
	if g == nil {
		return nil
	}
	out := make([]*Note, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.notes[id])
	}
	return out
}

// Incoming returns the notes holding a connection that targets id.
// Always a fresh scan.
func (g *Graph) Incoming(id string) []*Note {
	var out []*Note
	for _, n := range g.All() {
		if n.ID != id && n.ConnectedTo(id) {
			out = append(out, n)
		}
	}
	return out
}

// ConnectionStrip replacement connection list for one source note
type ConnectionStrip struct {
	SourceID    string
	Connections []Connection
}

// CascadeDeleteCleanup returns, for every other note connected to deletedID, its connection list
// without the entries targeting deletedID. The deleted note's own outgoing list goes with it.
// CascadeDeleteCleanup 删除笔记前需要清理的其他笔记连线
func (g *Graph) CascadeDeleteCleanup(deletedID string) []ConnectionStrip {
	var strips []ConnectionStrip
	for _, n := range g.Incoming(deletedID) {
		strips = append(strips, ConnectionStrip{
			SourceID:    n.ID,
			Connections: withoutTarget(n.Connections, deletedID),
		})
	}
	return strips
}

// DetachAll returns the strips removing every connection touching id, incoming and outgoing.
func (g *Graph) DetachAll(id string) []ConnectionStrip {
	var strips []ConnectionStrip
	if n := g.Get(id); n != nil && len(n.Connections) > 0 {
		strips = append(strips, ConnectionStrip{SourceID: id, Connections: []Connection{}})
	}
	return append(strips, g.CascadeDeleteCleanup(id)...)
}

// AddConnection returns source's connection list with c appended.
// A self-loop is ErrSelfConnection; a duplicate target returns added=false and the list unchanged.
// AddConnection 追加连线，自连接报错，重复连线忽略
func AddConnection(source *Note, c Connection) (next []Connection, added bool, err error) {
	if c.TargetID == "" {
		return source.Connections, false, ErrInvalidConnection
	}
	if c.TargetID == source.ID {
		return source.Connections, false, ErrSelfConnection
	}
	if source.ConnectedTo(c.TargetID) {
		return source.Connections, false, nil
	}
	next = make([]Connection, 0, len(source.Connections)+1)
	next = append(next, source.Connections...)
	return append(next, c), true, nil
}

// RemoveConnections returns the list without the entries at the given indices. Out of range indices are ignored.
func RemoveConnections(conns []Connection, indices ...int) []Connection {
	drop := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		drop[i] = struct{}{}
	}
	out := make([]Connection, 0, len(conns))
	for i, c := range conns {
		if _, ok := drop[i]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// PruneStale returns n's connections without stale, self and duplicate targets, and whether anything was dropped.
func (g *Graph) PruneStale(n *Note) ([]Connection, bool) {
	seen := make(map[string]struct{}, len(n.Connections))
	out := make([]Connection, 0, len(n.Connections))
	for _, c := range n.Connections {
		if c.TargetID == n.ID || !g.Has(c.TargetID) {
			continue
		}
		if _, dup := seen[c.TargetID]; dup {
			continue
		}
		seen[c.TargetID] = struct{}{}
		out = append(out, c)
	}
	return out, len(out) != len(n.Connections)
}

func withoutTarget(conns []Connection, id string) []Connection {
	out := make([]Connection, 0, len(conns))
	for _, c := range conns {
		if c.TargetID != id {
			out = append(out, c)
		}
	}
	return out
}
