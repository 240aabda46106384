package broker

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/internal/metrics"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
	"github.com/haierkeys/evidence-board-service/pkg/writequeue"
)

// ErrInvalidRequest 中继请求校验失败
var ErrInvalidRequest = errors.New("invalid relay request")

// relay outcomes, used as metric labels
const (
	outcomeApplied  = "applied"
	outcomeMissing  = "missing"
	outcomeRejected = "rejected"
	outcomeInvalid  = "invalid"
	outcomeFailed   = "failed"
	// merged into an update already waiting for the same note
	outcomeCoalesced = "coalesced"
)

// pendingUpdate an update queued for one note that later requests may still merge into
type pendingUpdate struct {
	sceneID string
	changes domain.Changes
	merged  int
	done    chan struct{}
	err     error
}

// Relay executes mutations on behalf of peers that may not write directly. Only the privileged
// peer runs one. Requests for the same note are serialised so the existence check and the write
// it guards cannot interleave with another request for that note. Content is applied as sent;
// only the target is checked.
// Relay 特权端代为执行的变更
type Relay struct {
	store    domain.DocumentStore
	queue    *writequeue.Manager
	validate *validator.Validate
	defaults domain.Defaults
	actor    domain.Actor
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	pending map[string]*pendingUpdate
}

// NewRelay 创建中继执行器
func NewRelay(store domain.DocumentStore, queue *writequeue.Manager, actor domain.Actor, d domain.Defaults, lg *zap.Logger, m *metrics.Metrics) *Relay {
	return &Relay{
		store:    store,
		queue:    queue,
		validate: validator.New(),
		defaults: d,
		actor:    actor,
		logger:   logger.OrNop(lg),
		metrics:  m,
		pending:  map[string]*pendingUpdate{},
	}
}

// relayKey keeps relay serialisation apart from the store's own write keys
func relayKey(id string) string {
	return "relay:" + id
}

func (r *Relay) check(action Action, req any) error {
	if err := r.validate.Struct(req); err != nil {
		r.metrics.RelayRequest(string(action), outcomeInvalid)
		r.logger.Warn("relay request rejected", zap.String(logger.FieldAction, string(action)), zap.Error(err))
		return errors.Wrap(ErrInvalidRequest, err.Error())
	}
	return nil
}

// target loads the managed note a request refers to. A nil document with nil error means the
// request is a no-op.
func (r *Relay) target(ctx context.Context, action Action, sceneID, noteID string) (*domain.Document, error) {
	doc, err := r.store.Get(ctx, noteID)
	if errors.Is(err, domain.ErrNoteNotFound) || (err == nil && doc.SceneID != sceneID) {
		r.metrics.RelayRequest(string(action), outcomeMissing)
		r.logger.Info("relay target missing, ignored",
			zap.String(logger.FieldAction, string(action)),
			zap.String(logger.FieldSceneID, sceneID),
			zap.String(logger.FieldNoteID, noteID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !domain.IsManaged(doc) {
		r.metrics.RelayRequest(string(action), outcomeRejected)
		r.logger.Warn("relay rejected, not a board note",
			zap.String(logger.FieldAction, string(action)),
			zap.String(logger.FieldNoteID, noteID))
		return nil, nil
	}
	return doc, nil
}

func (r *Relay) done(action Action, err error) error {
	if err != nil {
		r.metrics.RelayRequest(string(action), outcomeFailed)
		return err
	}
	r.metrics.RelayRequest(string(action), outcomeApplied)
	return nil
}

// Update applies a relayed partial update. Requests that arrive while an earlier update for the
// same note is still waiting in the queue are merged into it, later fields winning, and share
// its single write and its result.
func (r *Relay) Update(ctx context.Context, req *UpdateRequest) error {
	if err := r.check(ActionUpdate, req); err != nil {
		return err
	}

	r.mu.Lock()
	if p := r.pending[req.NoteID]; p != nil && p.sceneID == req.SceneID {
		p.changes = p.changes.Merge(req.Changes)
		p.merged++
		r.mu.Unlock()
		r.metrics.RelayRequest(string(ActionUpdate), outcomeCoalesced)
		r.logger.Debug("relay update coalesced",
			zap.String(logger.FieldNoteID, req.NoteID),
			zap.String(logger.FieldActor, req.RequestingActor),
			zap.String(logger.FieldTraceID, req.TraceID))
		// the merged fields are written even if this caller stops waiting
		select {
		case <-p.done:
			return p.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p := &pendingUpdate{sceneID: req.SceneID, changes: req.Changes, done: make(chan struct{})}
	r.pending[req.NoteID] = p
	r.mu.Unlock()

	p.err = r.queue.Execute(ctx, relayKey(req.NoteID), func() error {
		changes := r.take(req.NoteID, p)
		doc, err := r.target(ctx, ActionUpdate, req.SceneID, req.NoteID)
		if err != nil || doc == nil {
			return err
		}
		r.logger.Info("relay update",
			zap.String(logger.FieldNoteID, req.NoteID),
			zap.String(logger.FieldActor, req.RequestingActor),
			zap.Strings("fields", changes.Fields()),
			zap.String(logger.FieldTraceID, req.TraceID))
		if changes.Empty() {
			return r.done(ActionUpdate, nil)
		}
		_, err = r.store.Update(ctx, req.NoteID, changes, r.actor.ID)
		return r.done(ActionUpdate, err)
	})
	// the queue may refuse the job without running it
	r.take(req.NoteID, p)
	close(p.done)
	return p.err
}

// take closes p to further merges and returns the changes gathered so far
func (r *Relay) take(id string, p *pendingUpdate) domain.Changes {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending[id] == p {
		delete(r.pending, id)
	}
	return p.changes
}

// Create applies a relayed creation. The requester is recorded in the options so its own
// client can recognise the new note.
func (r *Relay) Create(ctx context.Context, req *CreateRequest) error {
	if err := r.check(ActionCreate, req); err != nil {
		return err
	}
	note := req.Note
	note.SceneID = req.SceneID
	if !note.Kind.Valid() {
		r.metrics.RelayRequest(string(ActionCreate), outcomeInvalid)
		return errors.Wrapf(ErrInvalidRequest, "kind %q", note.Kind)
	}

	opts := req.Options
	opts.RequestingActor = req.RequestingActor

	return r.queue.Execute(ctx, relayKey("create:"+req.SceneID), func() error {
		doc := newDocument(&note, req.RequestingActor, r.defaults.DefaultPermission)
		created, err := r.store.Create(ctx, doc, r.actor.ID, opts)
		if err == nil {
			r.logger.Info("relay create",
				zap.String(logger.FieldNoteID, created.ID),
				zap.String(logger.FieldKind, string(note.Kind)),
				zap.String(logger.FieldActor, req.RequestingActor),
				zap.String(logger.FieldTraceID, req.TraceID))
		}
		return r.done(ActionCreate, err)
	})
}

// Delete applies a relayed deletion, cleaning the connections that target the note first
func (r *Relay) Delete(ctx context.Context, req *DeleteRequest) error {
	if err := r.check(ActionDelete, req); err != nil {
		return err
	}
	return r.queue.Execute(ctx, relayKey(req.NoteID), func() error {
		doc, err := r.target(ctx, ActionDelete, req.SceneID, req.NoteID)
		if err != nil || doc == nil {
			return err
		}
		r.logger.Info("relay delete",
			zap.String(logger.FieldNoteID, req.NoteID),
			zap.String(logger.FieldActor, req.RequestingActor),
			zap.String(logger.FieldTraceID, req.TraceID))

		cascadeCleanup(ctx, r.store, r.defaults, doc, r.logger, func(ctx context.Context, id string, c domain.Changes) error {
			_, err := r.store.Update(ctx, id, c, r.actor.ID)
			return err
		})
		err = r.store.Delete(ctx, req.NoteID, r.actor.ID)
		if errors.Is(err, domain.ErrNoteNotFound) {
			err = nil
		}
		return r.done(ActionDelete, err)
	})
}

// cascadeCleanup strips every connection targeting doc from the other notes of its scene. The
// writes are separate from the delete; a failed strip is logged and left for render-time
// tolerance and the stale sweep.
// cascadeCleanup 删除前清理指向该笔记的连线
func cascadeCleanup(ctx context.Context, store domain.DocumentStore, d domain.Defaults, doc *domain.Document, lg *zap.Logger,
	update func(ctx context.Context, id string, c domain.Changes) error) int {

	docs, err := store.List(ctx, doc.SceneID)
	if err != nil {
		lg.Warn("cascade cleanup: list scene failed", zap.String(logger.FieldSceneID, doc.SceneID), zap.Error(err))
		return 0
	}
	g := domain.NewGraph(domain.LoadNotes(docs, d))

	cleaned := 0
	for _, strip := range g.CascadeDeleteCleanup(doc.ID) {
		if err := update(ctx, strip.SourceID, domain.SetConnections(strip.Connections)); err != nil {
			lg.Warn("cascade cleanup failed",
				zap.String(logger.FieldNoteID, strip.SourceID),
				zap.String(logger.FieldTargetID, doc.ID),
				zap.Error(err))
			continue
		}
		cleaned++
	}
	return cleaned
}

// newDocument converts a note into a store document owned by owner
func newDocument(n *domain.Note, owner string, perm domain.Permission) *domain.Document {
	doc := n.ToDocument()
	doc.ID = ""
	if doc.OwnerID == "" {
		doc.OwnerID = owner
	}
	doc.DefaultPermission = perm
	return doc
}
