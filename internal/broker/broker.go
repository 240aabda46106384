package broker

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/internal/metrics"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
)

// Route how a mutation left this process
type Route string

const (
	RouteNone    Route = "none"
	RouteDirect  Route = "direct"
	RouteRelayed Route = "relayed"
)

var _ Handler = (*Broker)(nil)

// Options 构造依赖
type Options struct {
	Store    domain.DocumentStore
	Channel  Channel
	Actor    domain.Actor
	Defaults domain.Defaults
	// Relay executes requests from other peers; only honoured for a privileged actor
	Relay   *Relay
	Audio   *AudioRegistry
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// OnRemoteChange receives store commits fanned out by a remote store host
	OnRemoteChange func(ctx context.Context, ev domain.ChangeEvent)
}

// Broker the only mutation path for shared notes. Writes go straight to the store when the
// local actor may write, otherwise they are sent to the privileged peer over the channel.
// Broker 变更代理
type Broker struct {
	store    domain.DocumentStore
	channel  Channel
	actor    domain.Actor
	defaults domain.Defaults
	relay    *Relay
	audio    *AudioRegistry
	logger   *zap.Logger
	metrics  *metrics.Metrics
	remote   func(ctx context.Context, ev domain.ChangeEvent)
}

// New 创建 Broker
func New(o Options) *Broker {
	b := &Broker{
		store:    o.Store,
		channel:  o.Channel,
		actor:    o.Actor,
		defaults: o.Defaults,
		audio:    o.Audio,
		logger:   logger.OrNop(o.Logger).With(zap.String(logger.FieldActor, o.Actor.ID)),
		metrics:  o.Metrics,
		remote:   o.OnRemoteChange,
	}
	if o.Relay != nil {
		if o.Actor.Privileged() {
			b.relay = o.Relay
		} else {
			b.logger.Warn("relay ignored for unprivileged actor", zap.String("role", o.Actor.Role.String()))
		}
	}
	return b
}

// Actor 本地操作者
func (b *Broker) Actor() domain.Actor {
	return b.actor
}

func (b *Broker) canModify(doc *domain.Document) bool {
	return b.actor.Privileged() || b.store.CanModify(b.actor, doc)
}

func (b *Broker) emit(ctx context.Context, m Message) error {
	if b.channel == nil {
		b.metrics.BrokerRoute(string(m.Action()), "failed")
		b.logger.Error("relay needed but no channel", zap.String(logger.FieldAction, string(m.Action())))
		return ErrChannelUnavailable
	}
	if err := b.channel.Emit(ctx, m); err != nil {
		b.metrics.BrokerRoute(string(m.Action()), "failed")
		b.logger.Error("relay emit failed", zap.String(logger.FieldAction, string(m.Action())), zap.Error(err))
		if !errors.Is(err, ErrChannelUnavailable) {
			err = errors.Wrap(ErrChannelUnavailable, err.Error())
		}
		return err
	}
	b.metrics.BrokerRoute(string(m.Action()), string(RouteRelayed))
	return nil
}

func (b *Broker) managed(ctx context.Context, noteID string) (*domain.Document, error) {
	doc, err := b.store.Get(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if !domain.IsManaged(doc) {
		b.logger.Warn("not a board note, skipped", zap.String(logger.FieldNoteID, noteID))
		return nil, domain.ErrNotManaged
	}
	return doc, nil
}

// ApplyUpdate merges changes into the note, directly or through the relay
func (b *Broker) ApplyUpdate(ctx context.Context, noteID string, changes domain.Changes) (Route, error) {
	doc, err := b.managed(ctx, noteID)
	if err != nil {
		return RouteNone, err
	}

	if b.canModify(doc) {
		if _, err := b.store.Update(ctx, noteID, changes, b.actor.ID); err != nil {
			return RouteNone, err
		}
		b.metrics.BrokerRoute(string(ActionUpdate), string(RouteDirect))
		return RouteDirect, nil
	}

	req := &UpdateRequest{
		SceneID:         doc.SceneID,
		NoteID:          noteID,
		Changes:         changes,
		RequestingActor: b.actor.ID,
		TraceID:         uuid.NewString(),
	}
	if err := b.emit(ctx, req); err != nil {
		return RouteNone, err
	}
	b.logger.Info("update relayed", zap.String(logger.FieldNoteID, noteID), zap.String(logger.FieldTraceID, req.TraceID))
	return RouteRelayed, nil
}

// ApplyCreate creates the note. A relayed create returns a nil document; the note shows up through
// the store's change notification once the relay has run it.
func (b *Broker) ApplyCreate(ctx context.Context, note *domain.Note, opts domain.CreateOptions) (*domain.Document, Route, error) {
	if note == nil || note.SceneID == "" {
		return nil, RouteNone, domain.ErrSceneNotFound
	}
	if opts.RequestingActor == "" {
		opts.RequestingActor = b.actor.ID
	}

	if b.actor.Privileged() || b.store.CanCreate(b.actor, note.SceneID) {
		doc, err := b.store.Create(ctx, newDocument(note, b.actor.ID, b.defaults.DefaultPermission), b.actor.ID, opts)
		if err != nil {
			return nil, RouteNone, err
		}
		b.metrics.BrokerRoute(string(ActionCreate), string(RouteDirect))
		return doc, RouteDirect, nil
	}

	req := &CreateRequest{
		SceneID:         note.SceneID,
		Note:            *note.Clone(),
		Options:         opts,
		RequestingActor: b.actor.ID,
		TraceID:         uuid.NewString(),
	}
	if err := b.emit(ctx, req); err != nil {
		return nil, RouteNone, err
	}
	return nil, RouteRelayed, nil
}

// ApplyDelete deletes the note. When executed here, connections targeting it are stripped first.
func (b *Broker) ApplyDelete(ctx context.Context, noteID string) (Route, error) {
	doc, err := b.managed(ctx, noteID)
	if err != nil {
		return RouteNone, err
	}

	if b.canModify(doc) {
		cascadeCleanup(ctx, b.store, b.defaults, doc, b.logger, func(ctx context.Context, id string, c domain.Changes) error {
			_, err := b.ApplyUpdate(ctx, id, c)
			return err
		})
		if err := b.store.Delete(ctx, noteID, b.actor.ID); err != nil {
			return RouteNone, err
		}
		b.metrics.BrokerRoute(string(ActionDelete), string(RouteDirect))
		return RouteDirect, nil
	}

	req := &DeleteRequest{
		SceneID:         doc.SceneID,
		NoteID:          noteID,
		RequestingActor: b.actor.ID,
		TraceID:         uuid.NewString(),
	}
	if err := b.emit(ctx, req); err != nil {
		return RouteNone, err
	}
	return RouteRelayed, nil
}

// BroadcastPlay plays path here and asks every peer to do the same. Any actor may broadcast.
func (b *Broker) BroadcastPlay(ctx context.Context, path string, applyEffect bool) error {
	if _, err := b.audio.Play(ctx, path, applyEffect); err != nil {
		b.logger.Warn("local playback failed", zap.String(logger.FieldPath, path), zap.Error(err))
	}
	return b.emit(ctx, &PlayAudio{AudioPath: path, ApplyEffect: applyEffect})
}

// BroadcastStop 停止所有端的播放
func (b *Broker) BroadcastStop(ctx context.Context, path string) error {
	b.audio.Stop(path)
	return b.emit(ctx, &StopAudio{AudioPath: path})
}

// Listen dispatches every message arriving on the channel to b
func (b *Broker) Listen(ctx context.Context) (cancel func()) {
	if b.channel == nil {
		return func() {}
	}
	return b.channel.On(func(m Message) {
		if err := Dispatch(ctx, b, m); err != nil {
			b.logger.Error("handle message failed", zap.String(logger.FieldAction, string(m.Action())), zap.Error(err))
		}
	})
}

// HandleUpdate runs a relayed update when this process is the relay
func (b *Broker) HandleUpdate(ctx context.Context, m *UpdateRequest) error {
	if b.relay == nil {
		return nil
	}
	return b.relay.Update(ctx, m)
}

func (b *Broker) HandleCreate(ctx context.Context, m *CreateRequest) error {
	if b.relay == nil {
		return nil
	}
	return b.relay.Create(ctx, m)
}

func (b *Broker) HandleDelete(ctx context.Context, m *DeleteRequest) error {
	if b.relay == nil {
		return nil
	}
	return b.relay.Delete(ctx, m)
}

func (b *Broker) HandlePlayAudio(ctx context.Context, m *PlayAudio) error {
	_, err := b.audio.Play(ctx, m.AudioPath, m.ApplyEffect)
	return err
}

func (b *Broker) HandleStopAudio(_ context.Context, m *StopAudio) error {
	b.audio.Stop(m.AudioPath)
	return nil
}

func (b *Broker) HandleDocumentChanged(ctx context.Context, m *DocumentChanged) error {
	if b.remote != nil {
		b.remote(ctx, m.Event)
	}
	return nil
}

// PublishChanges fans every local store commit out to the remote peers as DocumentChanged.
// Only the process hosting the store runs it.
// PublishChanges 将本地存储提交广播给远端
func (b *Broker) PublishChanges(ctx context.Context) (cancel func()) {
	if b.channel == nil {
		return func() {}
	}
	return b.store.Subscribe(func(ev domain.ChangeEvent) {
		if err := b.channel.Emit(ctx, &DocumentChanged{Event: ev}); err != nil {
			b.logger.Warn("publish change failed",
				zap.String(logger.FieldNoteID, ev.Document.ID),
				zap.String(logger.FieldKind, string(ev.Kind)),
				zap.Error(err))
		}
	})
}
