package dao

import (
	"context"
	"crypto/rand"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/internal/model"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
	"github.com/haierkeys/evidence-board-service/pkg/writequeue"
	"github.com/haierkeys/evidence-board-service/pkg/yarn"
)

// documentRepository 基于 gorm 的 domain.DocumentStore 实现
// Writes for one document go through the write queue keyed by its id, and subscribers are
// notified from inside the queued write, so per-document notifications follow commit order.
type documentRepository struct {
	db     *gorm.DB
	queue  *writequeue.Manager
	logger *zap.Logger

	canCreate func(domain.Actor, string) bool

	mu     sync.RWMutex
	subs   map[int]func(domain.ChangeEvent)
	nextID int

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// RepositoryOption 可选配置
type RepositoryOption func(*documentRepository)

// WithCreatePolicy overrides who may create documents directly
func WithCreatePolicy(fn func(domain.Actor, string) bool) RepositoryOption {
	return func(r *documentRepository) { r.canCreate = fn }
}

// NewDocumentRepository 创建文档仓储
func NewDocumentRepository(db *gorm.DB, queue *writequeue.Manager, lg *zap.Logger, opts ...RepositoryOption) domain.DocumentStore {
	r := &documentRepository{
		db:        db,
		queue:     queue,
		logger:    logger.OrNop(lg),
		canCreate: domain.DefaultCanCreate,
		subs:      map[int]func(domain.ChangeEvent){},
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *documentRepository) newID() string {
	r.entropyMu.Lock()
	defer r.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), r.entropy).String()
}

// toDomain 将数据库模型转换为领域文档
func (r *documentRepository) toDomain(m *model.Document) (*domain.Document, error) {
	doc := &domain.Document{
		ID:                m.ID,
		SceneID:           m.SceneID,
		OwnerID:           m.OwnerID,
		DefaultPermission: domain.Permission(m.DefaultPermission),
		Position:          yarn.Point{X: m.X, Y: m.Y},
		Size:              domain.Size{Width: m.Width, Height: m.Height},
		Locked:            m.Locked,
		Flags:             domain.Flags{},
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if m.Flags != "" {
		if err := sonic.UnmarshalString(m.Flags, &doc.Flags); err != nil {
			return nil, errors.Wrapf(err, "decode flags of %s", m.ID)
		}
	}
	return doc, nil
}

// toModel 将领域文档转换为数据库模型
func (r *documentRepository) toModel(doc *domain.Document) (*model.Document, error) {
	flags, err := sonic.MarshalString(doc.Flags)
	if err != nil {
		return nil, errors.Wrapf(err, "encode flags of %s", doc.ID)
	}
	return &model.Document{
		ID:                doc.ID,
		SceneID:           doc.SceneID,
		OwnerID:           doc.OwnerID,
		DefaultPermission: int(doc.DefaultPermission),
		X:                 doc.Position.X,
		Y:                 doc.Position.Y,
		Width:             doc.Size.Width,
		Height:            doc.Size.Height,
		Locked:            doc.Locked,
		Flags:             flags,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}, nil
}

func (r *documentRepository) find(ctx context.Context, id string) (*model.Document, error) {
	var m model.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNoteNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query document")
	}
	return &m, nil
}

// Get 根据ID获取文档
func (r *documentRepository) Get(ctx context.Context, id string) (*domain.Document, error) {
	m, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.toDomain(m)
}

// List 获取场景内全部文档
func (r *documentRepository) List(ctx context.Context, sceneID string) ([]*domain.Document, error) {
	var ms []*model.Document
	if err := r.db.WithContext(ctx).Where("scene_id = ?", sceneID).Order("id").Find(&ms).Error; err != nil {
		return nil, errors.Wrap(err, "list documents")
	}
	docs := make([]*domain.Document, 0, len(ms))
	for _, m := range ms {
		doc, err := r.toDomain(m)
		if err != nil {
			r.logger.Warn("skip undecodable document", zap.String(logger.FieldNoteID, m.ID), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Scenes 获取所有场景 ID
func (r *documentRepository) Scenes(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.Document{}).Distinct("scene_id").Order("scene_id").Pluck("scene_id", &ids).Error; err != nil {
		return nil, errors.Wrap(err, "list scenes")
	}
	return ids, nil
}

// Create 创建文档
func (r *documentRepository) Create(ctx context.Context, doc *domain.Document, actorID string, opts domain.CreateOptions) (*domain.Document, error) {
	if doc.SceneID == "" {
		return nil, domain.ErrSceneNotFound
	}
	created := *doc
	if created.ID == "" {
		created.ID = r.newID()
	}
	if created.Flags == nil {
		created.Flags = domain.Flags{}
	}
	now := time.Now()
	created.CreatedAt, created.UpdatedAt = now, now

	err := r.queue.Execute(ctx, created.ID, func() error {
		m, err := r.toModel(&created)
		if err != nil {
			return err
		}
		if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
			return errors.Wrap(err, "insert document")
		}
		r.publish(domain.ChangeEvent{Kind: domain.ChangeCreated, Document: created, ActorID: actorID, Options: opts})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Update 合并部分更新
func (r *documentRepository) Update(ctx context.Context, id string, changes domain.Changes, actorID string) (*domain.Document, error) {
	var updated *domain.Document

	err := r.queue.Execute(ctx, id, func() error {
		m, err := r.find(ctx, id)
		if err != nil {
			return err
		}
		doc, err := r.toDomain(m)
		if err != nil {
			return err
		}

		changes.Apply(doc)
		doc.UpdatedAt = time.Now()

		next, err := r.toModel(doc)
		if err != nil {
			return err
		}
		next.Version = m.Version + 1
		if err := r.db.WithContext(ctx).Save(next).Error; err != nil {
			return errors.Wrap(err, "update document")
		}

		updated = doc
		c := changes
		r.publish(domain.ChangeEvent{Kind: domain.ChangeUpdated, Document: *doc, Changes: &c, ActorID: actorID})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete 删除文档
func (r *documentRepository) Delete(ctx context.Context, id string, actorID string) error {
	return r.queue.Execute(ctx, id, func() error {
		m, err := r.find(ctx, id)
		if err != nil {
			return err
		}
		doc, err := r.toDomain(m)
		if err != nil {
			return err
		}
		if err := r.db.WithContext(ctx).Delete(&model.Document{}, "id = ?", id).Error; err != nil {
			return errors.Wrap(err, "delete document")
		}
		r.publish(domain.ChangeEvent{Kind: domain.ChangeDeleted, Document: *doc, ActorID: actorID})
		return nil
	})
}

// CanModify 是否可直接修改
func (r *documentRepository) CanModify(actor domain.Actor, doc *domain.Document) bool {
	return domain.DefaultCanModify(actor, doc)
}

// CanCreate 是否可直接创建
func (r *documentRepository) CanCreate(actor domain.Actor, sceneID string) bool {
	return r.canCreate(actor, sceneID)
}

// Subscribe 注册变更通知；回调在写队列内同步执行，不得同步写入同一文档
func (r *documentRepository) Subscribe(fn func(domain.ChangeEvent)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

func (r *documentRepository) publish(ev domain.ChangeEvent) {
	r.mu.RLock()
	ids := make([]int, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	fns := make([]func(domain.ChangeEvent), 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, r.subs[id])
	}
	r.mu.RUnlock()

	r.logger.Debug("document committed",
		zap.String(logger.FieldAction, string(ev.Kind)),
		zap.String(logger.FieldNoteID, ev.Document.ID),
		zap.String(logger.FieldSceneID, ev.Document.SceneID),
		zap.String(logger.FieldActor, ev.ActorID))

	for _, fn := range fns {
		r.safeCall(fn, ev)
	}
}

func (r *documentRepository) safeCall(fn func(domain.ChangeEvent), ev domain.ChangeEvent) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("change subscriber panicked", zap.Any("panic", p), zap.String(logger.FieldNoteID, ev.Document.ID))
		}
	}()
	fn(ev)
}
