package task

import (
	"context"

	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/internal/broker"
	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
)

// Updater writes the swept connection lists
type Updater interface {
	ApplyUpdate(ctx context.Context, id string, changes domain.Changes) (broker.Route, error)
}

// ConnectionSweepTask removes connections whose target note no longer exists. Cascade cleanup on
// delete is a separate write from the delete itself, so a crash in between can leave stale entries.
type ConnectionSweepTask struct {
	store    domain.DocumentStore
	updater  Updater
	defaults domain.Defaults
	spec     string
	startup  bool
	logger   *zap.Logger
}

// NewConnectionSweepTask returns nil when no schedule is configured and the startup run is off
func NewConnectionSweepTask(d Deps) (Task, error) {
	if d.Config.SweepCron == "" && !d.Config.SweepOnStartup {
		return nil, nil
	}
	return &ConnectionSweepTask{
		store:    d.Store,
		updater:  d.Updater,
		defaults: d.Defaults,
		spec:     d.Config.SweepCron,
		startup:  d.Config.SweepOnStartup,
		logger:   logger.OrNop(d.Logger),
	}, nil
}

func (t *ConnectionSweepTask) Name() string       { return "ConnectionSweep" }
func (t *ConnectionSweepTask) Schedule() string   { return t.spec }
func (t *ConnectionSweepTask) IsStartupRun() bool { return t.startup }

// Run sweeps every scene; a failing note is logged and skipped
func (t *ConnectionSweepTask) Run(ctx context.Context) error {
	scenes, err := t.store.Scenes(ctx)
	if err != nil {
		return err
	}
	swept := 0
	for _, sceneID := range scenes {
		n, err := t.sweepScene(ctx, sceneID)
		if err != nil {
			return err
		}
		swept += n
	}
	if swept > 0 {
		t.logger.Info("stale connections swept", zap.Int(logger.FieldCount, swept))
	}
	return nil
}

func (t *ConnectionSweepTask) sweepScene(ctx context.Context, sceneID string) (int, error) {
	docs, err := t.store.List(ctx, sceneID)
	if err != nil {
		return 0, err
	}
	g := domain.NewGraph(domain.LoadNotes(docs, t.defaults))

	swept := 0
	for _, n := range g.All() {
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		conns, stale := g.PruneStale(n)
		if !stale {
			continue
		}
		if _, err := t.updater.ApplyUpdate(ctx, n.ID, domain.SetConnections(conns)); err != nil {
			t.logger.Warn("sweep note failed", zap.String(logger.FieldSceneID, sceneID),
				zap.String(logger.FieldNoteID, n.ID), zap.Error(err))
			continue
		}
		swept++
	}
	return swept, nil
}

func init() {
	Register(NewConnectionSweepTask)
}
