// Package board wires the broker, compositor and authoring machine into one board session for a
// scene. The session owns every piece of local state; shared note data is always re-read from the
// store after a change notification.
package board

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/internal/authoring"
	"github.com/haierkeys/evidence-board-service/internal/broker"
	"github.com/haierkeys/evidence-board-service/internal/compositor"
	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/internal/metrics"
	"github.com/haierkeys/evidence-board-service/internal/scene"
	"github.com/haierkeys/evidence-board-service/pkg/code"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
	"github.com/haierkeys/evidence-board-service/pkg/writequeue"
	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

// Notifier toast messages for the local user
type Notifier = authoring.Notifier

// Confirm asks the user to confirm a destructive action
type Confirm func(ctx context.Context, title, message string) bool

// AlwaysConfirm accepts every confirmation, for callers that confirmed out of band
func AlwaysConfirm(context.Context, string, string) bool { return true }

// Assets the texture source of a session
type Assets interface {
	compositor.TextureLoader
	NaturalSize(ctx context.Context, p string) (int, int, error)
	PickCassette(seed string) string
}

// Options 会话依赖
type Options struct {
	SceneID  string
	Store    domain.DocumentStore
	Broker   *broker.Broker
	Audio    *broker.AudioRegistry
	Host     scene.Host
	Assets   Assets
	Defaults domain.Defaults
	Notifier Notifier
	Confirm  Confirm
	// OpenEditor is called for notes this actor created, unless the create asked to skip it.
	// It runs on the store's commit goroutine and must not write to the store synchronously.
	OpenEditor func(noteID string)
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Session 看板会话
type Session struct {
	sceneID  string
	store    domain.DocumentStore
	broker   *broker.Broker
	audio    *broker.AudioRegistry
	host     scene.Host
	assets   Assets
	defaults domain.Defaults
	notifier Notifier
	confirm  Confirm
	opener   func(string)
	logger   *zap.Logger

	comp    *compositor.Compositor
	machine *authoring.Machine
	mode    atomic.Bool

	mu          sync.Mutex
	editing     string
	unsubscribe func()
	closed      bool
}

// NewSession builds the session and subscribes it to the store. Call Refresh to draw the
// current state.
func NewSession(o Options) *Session {
	s := &Session{
		sceneID:  o.SceneID,
		store:    o.Store,
		broker:   o.Broker,
		audio:    o.Audio,
		host:     o.Host,
		assets:   o.Assets,
		defaults: o.Defaults,
		notifier: o.Notifier,
		confirm:  o.Confirm,
		opener:   o.OpenEditor,
		logger:   logger.OrNop(o.Logger).With(zap.String(logger.FieldSceneID, o.SceneID)),
	}
	if s.notifier == nil {
		s.notifier = authoring.NotifierFunc(func(*code.Code) {})
	}

	s.comp = compositor.New(o.Host, o.Defaults, o.Assets, s.logger, o.Metrics)
	s.machine = authoring.New(authoring.Deps{
		Canvas:   s.comp,
		Updater:  o.Broker,
		Notifier: s.notifier,
		Armed:    s.mode.Load,
		Graph:    s.comp.Graph,
		Actor:    o.Broker.Actor(),
		Defaults: o.Defaults,
		Logger:   s.logger,
	})
	s.unsubscribe = o.Store.Subscribe(s.onChange)
	return s
}

// SceneID 会话场景
func (s *Session) SceneID() string { return s.sceneID }

// Graph the note snapshot currently drawn
func (s *Session) Graph() *domain.Graph { return s.comp.Graph() }

// Refresh re-reads the scene from the store and redraws it
func (s *Session) Refresh(ctx context.Context) error {
	docs, err := s.store.List(ctx, s.sceneID)
	if err != nil {
		return errors.Wrap(err, "list scene")
	}
	s.comp.Sync(domain.NewGraph(domain.LoadNotes(docs, s.defaults)))
	return nil
}

// onChange runs on the store's commit goroutine
func (s *Session) onChange(ev domain.ChangeEvent) {
	if ev.Document.SceneID != s.sceneID || !domain.IsManaged(&ev.Document) {
		return
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	if err := s.Refresh(context.Background()); err != nil {
		s.logger.Error("refresh after change failed", zap.String(logger.FieldNoteID, ev.Document.ID), zap.Error(err))
		return
	}

	switch ev.Kind {
	case domain.ChangeDeleted:
		if _, src := s.machine.State(); src == ev.Document.ID {
			s.machine.Cancel()
		}
		s.mu.Lock()
		editing := s.editing == ev.Document.ID
		s.mu.Unlock()
		if editing {
			s.CloseEditor()
		}
	case domain.ChangeCreated:
		if ev.Options.RequestingActor == s.broker.Actor().ID && !ev.Options.SkipAutoOpen {
			s.OpenEditor(ev.Document.ID)
		}
	}
}

// HandleRemoteChange feeds a change fanned out by a remote store host
func (s *Session) HandleRemoteChange(_ context.Context, ev domain.ChangeEvent) {
	s.onChange(ev)
}

// SetBoardMode arms or disarms connection authoring. Leaving the mode drops a half-made connection.
func (s *Session) SetBoardMode(on bool) {
	s.mode.Store(on)
	if !on {
		s.machine.Cancel()
	}
	s.logger.Debug("board mode", zap.Bool("active", on))
}

// BoardMode 是否处于看板编辑模式
func (s *Session) BoardMode() bool { return s.mode.Load() }

// OnPinClick feeds a pin click on noteID to the authoring machine
func (s *Session) OnPinClick(ctx context.Context, noteID string) (authoring.Outcome, error) {
	return s.machine.OnPinClick(ctx, s.Graph().Get(noteID))
}

// OnPointerDown treats a press over a pin as a pin click
func (s *Session) OnPointerDown(ctx context.Context, p yarn.Point) (authoring.Outcome, error) {
	id := s.comp.PinAt(p)
	if id == "" {
		return authoring.Ignored, nil
	}
	return s.OnPinClick(ctx, id)
}

// OnPointerMove 更新连线预览
func (s *Session) OnPointerMove(p yarn.Point) { s.machine.OnPointerMove(p) }

// CancelConnection drops the selected source, bound to Escape
func (s *Session) CancelConnection() { s.machine.Cancel() }

// AuthoringState 连线状态
func (s *Session) AuthoringState() (authoring.State, string) { return s.machine.State() }

func (s *Session) RedrawAll() int { return s.comp.RedrawAll(0) }

func (s *Session) StartAnimation(noteID string) { s.comp.StartAnimation(noteID) }

func (s *Session) StopAnimation() { s.comp.StopAnimation() }

func (s *Session) ShowConnectionNumbers(noteID string) int {
	return s.comp.ShowConnectionNumbers(noteID)
}

func (s *Session) ClearConnectionNumbers() { s.comp.ClearConnectionNumbers() }

// Compositor 渲染合成器
func (s *Session) Compositor() *compositor.Compositor { return s.comp }

// OpenEditor animates noteID's connections and numbers its targets while its editor is open.
// Opening another note's editor replaces the previous one.
func (s *Session) OpenEditor(noteID string) {
	if !s.Graph().Has(noteID) {
		return
	}
	s.mu.Lock()
	s.editing = noteID
	s.mu.Unlock()

	s.comp.StartAnimation(noteID)
	s.comp.ShowConnectionNumbers(noteID)
	if s.opener != nil {
		s.opener(noteID)
	}
}

// CloseEditor 关闭编辑器并停止动画
func (s *Session) CloseEditor() {
	s.mu.Lock()
	s.editing = ""
	s.mu.Unlock()
	s.comp.StopAnimation()
	s.comp.ClearConnectionNumbers()
}

// Editing the note whose editor is open
func (s *Session) Editing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editing
}

// ViewChanged resets local state when the viewed scene changes or reloads
func (s *Session) ViewChanged(ctx context.Context) error {
	s.machine.Cancel()
	s.CloseEditor()
	s.comp.ClearPreview()
	s.comp.ClearHighlight()
	return s.Refresh(ctx)
}

// Teardown unsubscribes and releases every canvas object. Safe to call more than once.
func (s *Session) Teardown() {
	s.mu.Lock()
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.editing = ""
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.machine.Cancel()
	s.comp.Teardown()
}

func (s *Session) fail(err error) error {
	s.notifier.Notify(notice(err))
	return err
}

// notice maps an error to the message shown to the user
func notice(err error) *code.Code {
	var c *code.Code
	switch {
	case errors.As(err, &c):
		return c
	case errors.Is(err, broker.ErrChannelUnavailable):
		return code.ErrorChannelUnavailable
	case errors.Is(err, domain.ErrNoteNotFound):
		return code.ErrorNoteNotFound
	case errors.Is(err, domain.ErrSceneNotFound):
		return code.ErrorSceneNotFound
	case errors.Is(err, domain.ErrNotManaged):
		return code.WarnNotManagedObject
	case errors.Is(err, domain.ErrNoteLocked):
		return code.WarnNoteLocked
	case errors.Is(err, domain.ErrPermissionDenied):
		return code.ErrorPermissionDenied
	case errors.Is(err, writequeue.ErrWriteQueueFull):
		return code.ErrorWriteQueueFull
	}
	return code.ErrorStoreWrite.WithDetails(err.Error())
}
