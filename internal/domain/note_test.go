package domain

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

func note(id string, targets ...string) *Note {
	n := &Note{ID: id, Kind: KindSticky, Connections: []Connection{}}
	for _, t := range targets {
		n.Connections = append(n.Connections, Connection{TargetID: t})
	}
	return n
}

func TestAddConnection(t *testing.T) {
	a := note("a", "b")

	_, _, err := AddConnection(a, Connection{TargetID: "a"})
	assert.ErrorIs(t, err, ErrSelfConnection)

	next, added, err := AddConnection(a, Connection{TargetID: "b", Color: "#00ff00"})
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, next, 1)

	next, added, err = AddConnection(a, Connection{TargetID: "c", Width: 7})
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []Connection{{TargetID: "b"}, {TargetID: "c", Width: 7}}, next)
	// source untouched
	assert.Len(t, a.Connections, 1)

	_, _, err = AddConnection(a, Connection{})
	assert.ErrorIs(t, err, ErrInvalidConnection)
}

func TestGraphIncomingAndCleanup(t *testing.T) {
	g := NewGraph([]*Note{
		note("a", "b", "c"),
		note("b", "c"),
		note("c", "a"),
		note("d"),
	})

	incoming := g.Incoming("c")
	require.Len(t, incoming, 2)
	assert.Equal(t, "a", incoming[0].ID)
	assert.Equal(t, "b", incoming[1].ID)

	strips := g.CascadeDeleteCleanup("c")
	assert.Equal(t, []ConnectionStrip{
		{SourceID: "a", Connections: []Connection{{TargetID: "b"}}},
		{SourceID: "b", Connections: []Connection{}},
	}, strips)

	detach := g.DetachAll("c")
	require.Len(t, detach, 3)
	assert.Equal(t, "c", detach[0].SourceID)
	assert.Empty(t, detach[0].Connections)

	assert.Empty(t, g.CascadeDeleteCleanup("d"))
}

func TestPruneStale(t *testing.T) {
	g := NewGraph([]*Note{note("a", "b", "gone", "b", "a"), note("b")})

	conns, changed := g.PruneStale(g.Get("a"))
	assert.True(t, changed)
	assert.Equal(t, []Connection{{TargetID: "b"}}, conns)

	_, changed = g.PruneStale(g.Get("b"))
	assert.False(t, changed)
}

func TestRemoveConnections(t *testing.T) {
	conns := note("a", "b", "c", "d").Connections
	assert.Equal(t, []Connection{{TargetID: "c"}}, RemoveConnections(conns, 0, 2, 9))
}

func TestClone(t *testing.T) {
	a := note("a", "b")
	c := a.Clone()
	c.Connections[0].TargetID = "z"
	c.Text = "changed"

	assert.Equal(t, "b", a.Connections[0].TargetID)
	assert.Equal(t, "", a.Text)

	// every connection comes across, in a separate backing array
	many := note("m", "x", "y", "z")
	cp := many.Clone()
	require.Equal(t, many.Connections, cp.Connections)
	cp.Connections = append(cp.Connections[:1], cp.Connections[2:]...)
	assert.Equal(t, []string{"x", "y", "z"}, []string{many.Connections[0].TargetID, many.Connections[1].TargetID, many.Connections[2].TargetID})

	empty := note("e")
	assert.Nil(t, empty.Clone().Connections)
}

// 连线图不变量：无自环、无重复、删除后无残留

func TestGraph_NoSelfLoopNoDuplicateAfterCascade(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	genEdges := gen.SliceOf(gen.Struct(reflect.TypeOf(genEdge{}), map[string]gopter.Gen{
		"From": gen.IntRange(0, 5),
		"To":   gen.IntRange(0, 5),
	}))

	properties.Property("adding arbitrary edges never yields a self loop or a duplicate, and delete cleanup leaves no dangling target", prop.ForAll(
		func(edges []genEdge, victim int) bool {
			notes := make([]*Note, 6)
			for i := range notes {
				notes[i] = note(fmt.Sprintf("n%d", i))
			}
			for _, e := range edges {
				src := notes[e.From]
				next, _, err := AddConnection(src, Connection{TargetID: notes[e.To].ID})
				if err != nil && e.From != e.To {
					return false
				}
				src.Connections = next
			}

			for _, n := range notes {
				seen := map[string]bool{}
				for _, c := range n.Connections {
					if c.TargetID == n.ID || seen[c.TargetID] {
						return false
					}
					seen[c.TargetID] = true
				}
			}

			g := NewGraph(notes)
			deleted := notes[victim].ID
			for _, s := range g.CascadeDeleteCleanup(deleted) {
				g.Get(s.SourceID).Connections = s.Connections
			}
			for _, n := range g.All() {
				if n.ID != deleted && n.ConnectedTo(deleted) {
					return false
				}
			}
			return true
		},
		genEdges,
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}

type genEdge struct {
	From int
	To   int
}

func TestNewNoteAtViewCenter(t *testing.T) {
	d := StandardDefaults()
	n := NewNoteAtViewCenter(KindSticky, yarn.Point{X: 1000, Y: 800}, d)

	assert.Equal(t, Size{Width: 200, Height: 200}, n.Size)
	assert.Equal(t, yarn.Point{X: 900, Y: 700}, n.Position)
	assert.Equal(t, "Clue", n.Text)
	assert.Empty(t, n.Connections)
	assert.NotNil(t, n.Connections)

	idx := NewNoteAtViewCenter(KindIndex, yarn.Point{}, d)
	assert.Equal(t, Size{Width: 600, Height: 400}, idx.Size)
	assert.Equal(t, 9.0, idx.Style.FontSize)
}

func TestDefaultSize(t *testing.T) {
	d := StandardDefaults()
	tests := []struct {
		kind Kind
		want Size
	}{
		{KindSticky, Size{200, 200}},
		{KindPhoto, Size{225, 290}},
		{KindIndex, Size{600, 400}},
		{KindHandout, Size{400, 400}},
		{KindMedia, Size{400, 296}},
		{KindPin, Size{40, 40}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, d.DefaultSize(tt.kind))
		})
	}
}

func TestPinAnchor(t *testing.T) {
	d := StandardDefaults()
	at := yarn.Point{X: 100, Y: 50}

	tests := []struct {
		name string
		note *Note
		want yarn.Point
	}{
		{"sticky uses class width", &Note{Kind: KindSticky, Position: at, Size: Size{500, 500}}, yarn.Point{X: 200, Y: 73}},
		{"photo", &Note{Kind: KindPhoto, Position: at}, yarn.Point{X: 212.5, Y: 73}},
		{"index", &Note{Kind: KindIndex, Position: at}, yarn.Point{X: 400, Y: 73}},
		{"handout follows size", &Note{Kind: KindHandout, Position: at, Size: Size{300, 600}}, yarn.Point{X: 250, Y: 100}},
		{"handout unsized", &Note{Kind: KindHandout, Position: at}, yarn.Point{X: 300, Y: 90}},
		{"media follows width", &Note{Kind: KindMedia, Position: at, Size: Size{200, 148}}, yarn.Point{X: 200, Y: 73}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PinAnchor(tt.note, d))
		})
	}
}

func TestCapNaturalSize(t *testing.T) {
	assert.Equal(t, Size{800, 600}, CapNaturalSize(800, 600))
	assert.Equal(t, Size{500, 1000}, CapNaturalSize(1000, 2000))
	assert.Equal(t, Size{2000, 500}, CapNaturalSize(4000, 1000))
	assert.Equal(t, Size{2000, 500}, CapNaturalSize(8000, 2000))
}

func TestResolvePinColor(t *testing.T) {
	d := StandardDefaults()
	n := &Note{ID: "01HXYZ"}

	c := d.ResolvePinColor(n)
	assert.Contains(t, PinColors, c)
	assert.Equal(t, c, d.ResolvePinColor(n))

	n.Style.PinColor = "blue"
	assert.Equal(t, "blue", d.ResolvePinColor(n))

	d.PinColor = PinNone
	assert.Equal(t, "", d.ResolvePinColor(n))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, 90, CharacterLimit(KindSticky, "Rock Salt", 15))
	assert.Equal(t, 45, CharacterLimit(KindSticky, "Rock Salt", 30))
	assert.Equal(t, 15, CharacterLimit(KindPhoto, "Unknown Font", 15))
	assert.Equal(t, 100, CharacterLimit(KindMedia, "Arial", 15))

	assert.Equal(t, "short", Truncate("short", KindPhoto, "Arial", 15))
	long := "The butler was seen near the library"
	assert.Equal(t, "The butler was seen near the l...", Truncate(long, KindPhoto, "Arial", 15))
}

func TestDefaults_Textures(t *testing.T) {
	d := StandardDefaults()
	tests := []struct {
		name string
		note Note
		want string
	}{
		{"sticky", Note{Kind: KindSticky}, "assets/note_white.webp"},
		{"photo", Note{Kind: KindPhoto}, "assets/photoFrame.webp"},
		{"index", Note{Kind: KindIndex}, "assets/note_index.webp"},
		{"handout default", Note{Kind: KindHandout}, "assets/newhandout.webp"},
		{"handout image", Note{Kind: KindHandout, ImagePath: "journal/page1.png"}, "journal/page1.png"},
		{"media default", Note{Kind: KindMedia}, "assets/cassette1.webp"},
		{"pin only", Note{Kind: KindPin}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.BodyTexture(&tt.note))
		})
	}

	d.Theme = ThemeFuturistic
	assert.Equal(t, "assets/futuristic_photoFrame.webp", d.BodyTexture(&Note{Kind: KindPhoto}))

	assert.Equal(t, "assets/bluePin.webp", d.PinTexture(&Note{Style: Style{PinColor: "blue"}}))
	d.PinColor = PinNone
	assert.Equal(t, "", d.PinTexture(&Note{ID: "x"}))
}

func TestNoteText(t *testing.T) {
	d := StandardDefaults()

	sticky := &Note{Kind: KindSticky, Position: yarn.Point{X: 10, Y: 20}, Size: d.DefaultSize(KindSticky), Text: "Butler"}
	block, ok := NoteText(sticky, d)
	require.True(t, ok)
	assert.Equal(t, "Butler", block.Text)
	assert.Equal(t, "Rock Salt", block.Font)
	assert.Equal(t, float64(16), block.FontSize)
	assert.Equal(t, yarn.Black, block.Ink)
	assert.Equal(t, yarn.Point{X: 110, Y: 120}, block.Center)
	assert.Equal(t, float64(185), block.WrapWidth)

	// photo text sits above the bottom edge, default text when empty
	photo := &Note{Kind: KindPhoto, Size: d.DefaultSize(KindPhoto), Style: Style{Ink: "#112233"}}
	block, ok = NoteText(photo, d)
	require.True(t, ok)
	assert.Equal(t, d.PhotoText, block.Text)
	assert.Equal(t, yarn.Color(0x112233), block.Ink)
	assert.Equal(t, photo.Size.Height-25, block.Center.Y)
	assert.InDelta(t, 18, block.FontSize, 1e-9)

	// long text is cut at the limit for the rendered size
	photo.Text = "The butler was seen near the library at midnight"
	block, _ = NoteText(photo, d)
	assert.Equal(t, Truncate(photo.Text, KindPhoto, "Rock Salt", 18), block.Text)
	assert.True(t, len(block.Text) < len(photo.Text))

	for _, k := range []Kind{KindMedia, KindHandout, KindPin} {
		_, ok := NoteText(&Note{Kind: k, Text: "x"}, d)
		assert.False(t, ok, k)
	}
}

func TestPhotoLayout(t *testing.T) {
	d := StandardDefaults()
	n := &Note{Kind: KindPhoto, Position: yarn.Point{X: 100, Y: 0}, Size: Size{Width: 300, Height: 400}}
	assert.Equal(t, "assets/placeholder.webp", d.PhotoImage(n))
	n.ImagePath = "portraits/maid.webp"
	assert.Equal(t, "portraits/maid.webp", d.PhotoImage(n))
	assert.Equal(t, "", d.PhotoImage(&Note{Kind: KindSticky, ImagePath: "x.webp"}))

	frame := PhotoFrame(n)
	assert.InDelta(t, 100+300*0.13333/2, frame.X, 1e-9)
	assert.InDelta(t, 400*0.30246/2, frame.Y, 1e-9)
	assert.InDelta(t, 300-300*0.13333, frame.Width, 1e-9)
	assert.InDelta(t, 400-400*0.30246, frame.Height, 1e-9)

	// wide picture: fits the height, centred horizontally
	wide := FitPhoto(Rect{X: 0, Y: 0, Width: 100, Height: 100}, 200, 100)
	assert.Equal(t, Rect{X: -50, Y: 0, Width: 200, Height: 100}, wide)
	// tall picture: fits the width, top aligned
	tall := FitPhoto(Rect{X: 10, Y: 10, Width: 100, Height: 100}, 100, 200)
	assert.Equal(t, Rect{X: 10, Y: 10, Width: 100, Height: 200}, tall)
	// unknown size keeps the frame
	assert.Equal(t, frame, FitPhoto(frame, 0, 0))
}
