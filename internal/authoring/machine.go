// Package authoring holds the two-click connection state machine: the first pin click selects a
// source note, the second commits a connection from it to the clicked note.
package authoring

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/internal/broker"
	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/pkg/code"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
	"github.com/haierkeys/evidence-board-service/pkg/writequeue"
	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

// State 连线状态
type State int

const (
	Idle State = iota
	FirstSelected
)

func (s State) String() string {
	if s == FirstSelected {
		return "firstSelected"
	}
	return "idle"
}

// Outcome what a pin click did
type Outcome int

const (
	// Ignored board mode is off or the note is unknown
	Ignored Outcome = iota
	Selected
	SelfRejected
	Duplicate
	Connected
	Failed
)

// Canvas the drawing the machine needs while a source is selected
type Canvas interface {
	Highlight(n *domain.Note)
	ClearHighlight()
	DrawPreview(from, to yarn.Point, color yarn.Color, width float64)
	ClearPreview()
}

// Updater persists the new connection list
type Updater interface {
	ApplyUpdate(ctx context.Context, id string, changes domain.Changes) (broker.Route, error)
}

// Notifier shows transient messages to the local user
// Notifier 提示消息
type Notifier interface {
	Notify(c *code.Code)
}

// NotifierFunc adapts a func to Notifier
type NotifierFunc func(c *code.Code)

func (f NotifierFunc) Notify(c *code.Code) { f(c) }

// Deps collaborators of a Machine
type Deps struct {
	Canvas   Canvas
	Updater  Updater
	Notifier Notifier
	// Armed reports whether board editing mode is active
	Armed func() bool
	// Graph the current note snapshot
	Graph    func() *domain.Graph
	Actor    domain.Actor
	Defaults domain.Defaults
	Logger   *zap.Logger
}

// Machine 连线状态机
type Machine struct {
	deps   Deps
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	sourceID string
}

// New creates an idle machine
func New(d Deps) *Machine {
	if d.Notifier == nil {
		d.Notifier = NotifierFunc(func(*code.Code) {})
	}
	return &Machine{deps: d, logger: logger.OrNop(d.Logger)}
}

// State current state and the selected source id
func (m *Machine) State() (State, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.sourceID
}

func (m *Machine) armed() bool {
	return m.deps.Armed == nil || m.deps.Armed()
}

func (m *Machine) graph() *domain.Graph {
	if m.deps.Graph == nil {
		return domain.NewGraph(nil)
	}
	return m.deps.Graph()
}

func (m *Machine) previewStyle() (yarn.Color, float64) {
	color := yarn.ParseColorOr(m.deps.Defaults.ConnectionColor(m.deps.Actor), yarn.DefaultLineColor)
	width := m.deps.Defaults.LineWidth
	if width <= 0 {
		width = 6
	}
	return color, width
}

// OnPinClick advances the machine for a click on note's pin.
// Clicking the selected note again keeps it selected and warns; clicking an already connected
// target resets silently.
func (m *Machine) OnPinClick(ctx context.Context, note *domain.Note) (Outcome, error) {
	if note == nil || !m.armed() {
		return Ignored, nil
	}

	m.mu.Lock()
	if m.state == Idle {
		m.state, m.sourceID = FirstSelected, note.ID
		m.mu.Unlock()
		m.deps.Canvas.Highlight(note)
		m.logger.Debug("connection source selected", zap.String(logger.FieldNoteID, note.ID))
		return Selected, nil
	}

	sourceID := m.sourceID
	if note.ID == sourceID {
		m.mu.Unlock()
		m.deps.Notifier.Notify(code.WarnSelfConnection)
		return SelfRejected, nil
	}
	m.state, m.sourceID = Idle, ""
	m.mu.Unlock()
	// the store write may call back into the session, so the lock is released first
	m.clearCanvas()

	return m.commit(ctx, sourceID, note.ID)
}

func (m *Machine) commit(ctx context.Context, sourceID, targetID string) (Outcome, error) {
	g := m.graph()
	source := g.Get(sourceID)
	if source == nil {
		m.deps.Notifier.Notify(code.ErrorNoteNotFound)
		return Failed, domain.ErrNoteNotFound
	}

	base := source.Clone()
	pruned, stale := g.PruneStale(base)
	base.Connections = pruned

	conn := domain.Connection{
		TargetID: targetID,
		Color:    m.deps.Defaults.ConnectionColor(m.deps.Actor),
		Width:    m.deps.Defaults.LineWidth,
	}
	next, added, err := domain.AddConnection(base, conn)
	if err != nil {
		m.deps.Notifier.Notify(code.WarnSelfConnection)
		return Failed, err
	}
	if !added && !stale {
		return Duplicate, nil
	}

	route, err := m.deps.Updater.ApplyUpdate(ctx, sourceID, domain.SetConnections(next))
	if err != nil {
		m.deps.Notifier.Notify(notice(err))
		m.logger.Warn("connection not saved", zap.String(logger.FieldNoteID, sourceID),
			zap.String(logger.FieldTargetID, targetID), zap.Error(err))
		return Failed, err
	}
	m.logger.Debug("connection committed", zap.String(logger.FieldNoteID, sourceID),
		zap.String(logger.FieldTargetID, targetID), zap.String("route", string(route)))
	if !added {
		return Duplicate, nil
	}
	m.deps.Notifier.Notify(code.SuccessConnected)
	return Connected, nil
}

// OnPointerMove redraws the preview curve to p while a source is selected
func (m *Machine) OnPointerMove(p yarn.Point) {
	m.mu.Lock()
	state, sourceID := m.state, m.sourceID
	m.mu.Unlock()
	if state != FirstSelected {
		return
	}
	source := m.graph().Get(sourceID)
	if source == nil {
		m.Cancel()
		return
	}
	color, width := m.previewStyle()
	m.deps.Canvas.DrawPreview(domain.PinAnchor(source, m.deps.Defaults), p, color, width)
}

// Cancel returns to Idle without committing. Used for Escape, view changes and mode exit.
func (m *Machine) Cancel() {
	m.mu.Lock()
	wasSelected := m.state == FirstSelected
	m.state, m.sourceID = Idle, ""
	m.mu.Unlock()
	if wasSelected {
		m.clearCanvas()
	}
}

func (m *Machine) clearCanvas() {
	m.deps.Canvas.ClearHighlight()
	m.deps.Canvas.ClearPreview()
}

// notice maps a commit error to the message shown to the user
func notice(err error) *code.Code {
	switch {
	case errors.Is(err, broker.ErrChannelUnavailable):
		return code.ErrorChannelUnavailable
	case errors.Is(err, domain.ErrNotManaged):
		return code.WarnNotManagedObject
	case errors.Is(err, domain.ErrNoteNotFound):
		return code.ErrorNoteNotFound
	case errors.Is(err, writequeue.ErrWriteQueueFull):
		return code.ErrorWriteQueueFull
	}
	return code.ErrorStoreWrite.WithDetails(err.Error())
}
