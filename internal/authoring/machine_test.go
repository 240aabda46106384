package authoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haierkeys/evidence-board-service/internal/broker"
	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/pkg/code"
	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

type canvas struct {
	highlighted []string
	previews    int
	cleared     int
	lastFrom    yarn.Point
	lastColor   yarn.Color
}

func (c *canvas) Highlight(n *domain.Note) { c.highlighted = append(c.highlighted, n.ID) }
func (c *canvas) ClearHighlight()          { c.cleared++ }
func (c *canvas) ClearPreview()            {}
func (c *canvas) DrawPreview(from, _ yarn.Point, color yarn.Color, _ float64) {
	c.previews++
	c.lastFrom, c.lastColor = from, color
}

// board applies updates to an in-memory graph
type board struct {
	notes   map[string]*domain.Note
	updates int
	err     error
}

func (b *board) ApplyUpdate(_ context.Context, id string, changes domain.Changes) (broker.Route, error) {
	if b.err != nil {
		return broker.RouteNone, b.err
	}
	b.updates++
	b.notes[id].Connections = *changes.Connections
	return broker.RouteDirect, nil
}

func (b *board) graph() *domain.Graph {
	notes := make([]*domain.Note, 0, len(b.notes))
	for _, n := range b.notes {
		notes = append(notes, n)
	}
	return domain.NewGraph(notes)
}

type harness struct {
	m       *Machine
	canvas  *canvas
	board   *board
	notices []*code.Code
	armed   bool
}

var alice = domain.Actor{ID: "alice", Role: domain.RolePlayer, Color: "#00ff00"}

func newHarness(ids ...string) *harness {
	h := &harness{canvas: &canvas{}, board: &board{notes: map[string]*domain.Note{}}, armed: true}
	for i, id := range ids {
		h.board.notes[id] = &domain.Note{ID: id, Kind: domain.KindSticky, Position: yarn.Point{X: float64(i) * 300}}
	}
	h.m = New(Deps{
		Canvas:   h.canvas,
		Updater:  h.board,
		Notifier: NotifierFunc(func(c *code.Code) { h.notices = append(h.notices, c) }),
		Armed:    func() bool { return h.armed },
		Graph:    h.board.graph,
		Actor:    alice,
		Defaults: domain.StandardDefaults(),
	})
	return h
}

func (h *harness) click(t *testing.T, id string) Outcome {
	t.Helper()
	out, _ := h.m.OnPinClick(context.Background(), h.board.notes[id])
	return out
}

func TestMachine_ConnectsTwoNotes(t *testing.T) {
	h := newHarness("a", "b")

	assert.Equal(t, Selected, h.click(t, "a"))
	state, src := h.m.State()
	assert.Equal(t, FirstSelected, state)
	assert.Equal(t, "a", src)
	assert.Equal(t, []string{"a"}, h.canvas.highlighted)

	assert.Equal(t, Connected, h.click(t, "b"))
	state, _ = h.m.State()
	assert.Equal(t, Idle, state)
	assert.Equal(t, []domain.Connection{{TargetID: "b", Color: "#00ff00", Width: 7}}, h.board.notes["a"].Connections)
	assert.Equal(t, 1, h.canvas.cleared)
	assert.Equal(t, []*code.Code{code.SuccessConnected}, h.notices)
}

func TestMachine_SelfClickKeepsSelection(t *testing.T) {
	h := newHarness("a", "b")
	h.click(t, "a")

	assert.Equal(t, SelfRejected, h.click(t, "a"))
	state, src := h.m.State()
	assert.Equal(t, FirstSelected, state)
	assert.Equal(t, "a", src)
	assert.Empty(t, h.board.notes["a"].Connections)
	require.Len(t, h.notices, 1)
	assert.True(t, code.WarnSelfConnection.Is(h.notices[0]))

	// a different second note still works
	assert.Equal(t, Connected, h.click(t, "b"))
}

func TestMachine_DuplicateIgnored(t *testing.T) {
	h := newHarness("a", "b")
	h.board.notes["a"].Connections = []domain.Connection{{TargetID: "b"}}

	h.click(t, "a")
	assert.Equal(t, Duplicate, h.click(t, "b"))
	assert.Zero(t, h.board.updates)
	assert.Empty(t, h.notices)
	state, _ := h.m.State()
	assert.Equal(t, Idle, state)
}

func TestMachine_CommitDropsStaleTargets(t *testing.T) {
	h := newHarness("a", "b")
	h.board.notes["a"].Connections = []domain.Connection{{TargetID: "gone"}}

	h.click(t, "a")
	assert.Equal(t, Connected, h.click(t, "b"))
	require.Len(t, h.board.notes["a"].Connections, 1)
	assert.Equal(t, "b", h.board.notes["a"].Connections[0].TargetID)
}

func TestMachine_DisarmedIgnoresClicks(t *testing.T) {
	h := newHarness("a", "b")
	h.armed = false
	assert.Equal(t, Ignored, h.click(t, "a"))
	state, _ := h.m.State()
	assert.Equal(t, Idle, state)
	assert.Empty(t, h.canvas.highlighted)
}

func TestMachine_PreviewFollowsPointer(t *testing.T) {
	h := newHarness("a", "b")
	h.m.OnPointerMove(yarn.Point{X: 5, Y: 5})
	assert.Zero(t, h.canvas.previews)

	h.click(t, "a")
	h.m.OnPointerMove(yarn.Point{X: 50, Y: 60})
	h.m.OnPointerMove(yarn.Point{X: 70, Y: 80})
	assert.Equal(t, 2, h.canvas.previews)
	assert.Equal(t, domain.PinAnchor(h.board.notes["a"], domain.StandardDefaults()), h.canvas.lastFrom)
	assert.Equal(t, yarn.Color(0x00ff00), h.canvas.lastColor)

	h.m.Cancel()
	h.m.OnPointerMove(yarn.Point{X: 90, Y: 90})
	assert.Equal(t, 2, h.canvas.previews)
	assert.Equal(t, 1, h.canvas.cleared)
}

func TestMachine_ChannelUnavailable(t *testing.T) {
	h := newHarness("a", "b")
	h.board.err = broker.ErrChannelUnavailable

	h.click(t, "a")
	out, err := h.m.OnPinClick(context.Background(), h.board.notes["b"])
	assert.Equal(t, Failed, out)
	assert.ErrorIs(t, err, broker.ErrChannelUnavailable)
	require.Len(t, h.notices, 1)
	assert.True(t, code.ErrorChannelUnavailable.Is(h.notices[0]))
	state, _ := h.m.State()
	assert.Equal(t, Idle, state)
}

func TestMachine_SourceDeletedWhileSelected(t *testing.T) {
	h := newHarness("a", "b")
	h.click(t, "a")
	b := h.board.notes["b"]
	delete(h.board.notes, "a")

	out, err := h.m.OnPinClick(context.Background(), b)
	assert.Equal(t, Failed, out)
	assert.ErrorIs(t, err, domain.ErrNoteNotFound)
}
