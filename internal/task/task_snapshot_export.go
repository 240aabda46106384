package task

import (
	"bytes"
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
	"github.com/haierkeys/evidence-board-service/pkg/storage"
)

const snapshotContentType = "image/svg+xml"

// SnapshotExportTask renders every scene's board to SVG and uploads it: <scene>/latest.svg, plus
// <scene>/<UTC timestamp>.svg when history is kept.
type SnapshotExportTask struct {
	store   domain.DocumentStore
	render  RenderFunc
	storage storage.Storager
	spec    string
	history bool
	now     func() time.Time
	logger  *zap.Logger
}

// NewSnapshotExportTask returns nil unless a schedule and a storage target are configured
func NewSnapshotExportTask(d Deps) (Task, error) {
	if d.Config.SnapshotCron == "" || d.Render == nil {
		return nil, nil
	}
	st := d.Snapshots
	if st == nil {
		if !d.Config.SnapshotStorage.Enabled() {
			return nil, nil
		}
		var err error
		if st, err = storage.NewClient(&d.Config.SnapshotStorage, d.Logger); err != nil {
			return nil, errors.Wrap(err, "snapshot storage")
		}
	}
	return &SnapshotExportTask{
		store:   d.Store,
		render:  d.Render,
		storage: st,
		spec:    d.Config.SnapshotCron,
		history: d.Config.SnapshotKeepHistory,
		now:     time.Now,
		logger:  logger.OrNop(d.Logger),
	}, nil
}

func (t *SnapshotExportTask) Name() string       { return "SnapshotExport" }
func (t *SnapshotExportTask) Schedule() string   { return t.spec }
func (t *SnapshotExportTask) IsStartupRun() bool { return false }

// Run exports every scene; a scene that fails to render or upload is logged and skipped
func (t *SnapshotExportTask) Run(ctx context.Context) error {
	scenes, err := t.store.Scenes(ctx)
	if err != nil {
		return err
	}
	now := t.now().UTC()
	exported := 0
	for _, sceneID := range scenes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.export(ctx, sceneID, now); err != nil {
			t.logger.Warn("snapshot export failed", zap.String(logger.FieldSceneID, sceneID), zap.Error(err))
			continue
		}
		exported++
	}
	t.logger.Info("board snapshots exported", zap.Int(logger.FieldCount, exported))
	return nil
}

func (t *SnapshotExportTask) export(ctx context.Context, sceneID string, now time.Time) error {
	var buf bytes.Buffer
	if _, err := t.render(ctx, sceneID, &buf); err != nil {
		if errors.Is(err, domain.ErrSceneNotFound) {
			return nil
		}
		return err
	}

	keys := []string{storage.ObjectKey(sceneID, "latest.svg")}
	if t.history {
		keys = append(keys, storage.ObjectKey(sceneID, now.Format("20060102T150405Z")+".svg"))
	}
	for _, key := range keys {
		saved, err := t.storage.Put(ctx, key, buf.Bytes(), snapshotContentType, now)
		if err != nil {
			return err
		}
		t.logger.Debug("snapshot uploaded", zap.String(logger.FieldSceneID, sceneID), zap.String(logger.FieldPath, saved))
	}
	return nil
}

func init() {
	Register(NewSnapshotExportTask)
}
