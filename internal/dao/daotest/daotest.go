// Package daotest provides an in-memory sqlite document store for tests.
package daotest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/internal/dao"
	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/pkg/writequeue"
)

var seq atomic.Int64

// NewStore opens a fresh in-memory store closed at test cleanup
func NewStore(t testing.TB) domain.DocumentStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := dao.NewDBEngine(dao.DatabaseConfig{
		Type:        "sqlite",
		Path:        fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1)),
		AutoMigrate: true,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	q := writequeue.New(&writequeue.Config{QueueCapacity: 64}, zap.NewNop())
	t.Cleanup(func() {
		_ = q.Shutdown(context.Background())
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return dao.NewDocumentRepository(db, q, zap.NewNop())
}

// Spy wraps a store and counts the direct writes made through it
type Spy struct {
	domain.DocumentStore
	Creates atomic.Int64
	Updates atomic.Int64
	Deletes atomic.Int64
}

// NewSpy 包装 store
func NewSpy(s domain.DocumentStore) *Spy {
	return &Spy{DocumentStore: s}
}

func (s *Spy) Create(ctx context.Context, doc *domain.Document, actorID string, opts domain.CreateOptions) (*domain.Document, error) {
	s.Creates.Add(1)
	return s.DocumentStore.Create(ctx, doc, actorID, opts)
}

func (s *Spy) Update(ctx context.Context, id string, c domain.Changes, actorID string) (*domain.Document, error) {
	s.Updates.Add(1)
	return s.DocumentStore.Update(ctx, id, c, actorID)
}

func (s *Spy) Delete(ctx context.Context, id string, actorID string) error {
	s.Deletes.Add(1)
	return s.DocumentStore.Delete(ctx, id, actorID)
}

// Writes total direct writes
func (s *Spy) Writes() int64 {
	return s.Creates.Load() + s.Updates.Load() + s.Deletes.Load()
}
