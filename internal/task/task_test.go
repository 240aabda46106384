package task

import (
	"context"
	"io"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haierkeys/evidence-board-service/internal/broker"
	"github.com/haierkeys/evidence-board-service/internal/dao/daotest"
	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/pkg/safe_close"
	"github.com/haierkeys/evidence-board-service/pkg/storage"
	"github.com/haierkeys/evidence-board-service/pkg/storage/local_fs"
)

var gm = domain.Actor{ID: "gm", Role: domain.RoleGamemaster}

func TestConnectionSweep_RemovesStaleTargets(t *testing.T) {
	ctx := context.Background()
	store := daotest.NewStore(t)
	d := domain.StandardDefaults()

	create := func(scene string, conns ...domain.Connection) string {
		n := &domain.Note{SceneID: scene, Kind: domain.KindSticky, Connections: conns}
		doc, err := store.Create(ctx, n.ToDocument(), gm.ID, domain.CreateOptions{})
		require.NoError(t, err)
		return doc.ID
	}
	b := create("s1")
	a := create("s1", domain.Connection{TargetID: b}, domain.Connection{TargetID: "gone"})
	c := create("s2", domain.Connection{TargetID: "also-gone"})

	b2 := broker.New(broker.Options{Store: store, Actor: gm, Defaults: d})
	task, err := NewConnectionSweepTask(Deps{Store: store, Updater: b2, Defaults: d, Config: Config{SweepCron: "@every 1h"}})
	require.NoError(t, err)
	require.NoError(t, task.Run(ctx))

	load := func(id string) *domain.Note {
		doc, err := store.Get(ctx, id)
		require.NoError(t, err)
		n, err := domain.LoadNote(doc, d)
		require.NoError(t, err)
		return n
	}
	assert.Equal(t, []domain.Connection{{TargetID: b}}, load(a).Connections)
	assert.Empty(t, load(c).Connections)
}

func TestConnectionSweep_Disabled(t *testing.T) {
	task, err := NewConnectionSweepTask(Deps{})
	require.NoError(t, err)
	assert.Nil(t, task)
}

type countTask struct {
	runs atomic.Int32
	spec string
}

func (c *countTask) Name() string              { return "count" }
func (c *countTask) Run(context.Context) error { c.runs.Add(1); return nil }
func (c *countTask) Schedule() string          { return c.spec }
func (c *countTask) IsStartupRun() bool        { return true }

func TestScheduler_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(nil, safe_close.NewSafeClose(), 0)
	assert.Error(t, s.AddTask(&countTask{spec: "every now and then"}))
	assert.NoError(t, s.AddTask(&countTask{spec: "*/5 * * * *"}))
}

func TestScheduler_StartupRunAndShutdown(t *testing.T) {
	sc := safe_close.NewSafeClose()
	s := NewScheduler(nil, sc, time.Second)
	task := &countTask{spec: "@every 1h"}
	require.NoError(t, s.AddTask(task))
	s.Start()

	assert.Eventually(t, func() bool { return task.runs.Load() == 1 }, time.Second, 10*time.Millisecond)
	sc.SendCloseSignal(nil)
	assert.NoError(t, sc.WaitClosed())
}

func TestSnapshotExport_UploadsEveryScene(t *testing.T) {
	ctx := context.Background()
	store := daotest.NewStore(t)
	for _, scene := range []string{"s1", "s2"} {
		_, err := store.Create(ctx, (&domain.Note{SceneID: scene, Kind: domain.KindSticky}).ToDocument(), gm.ID, domain.CreateOptions{})
		require.NoError(t, err)
	}

	fs := afero.NewMemMapFs()
	render := func(_ context.Context, sceneID string, w io.Writer) (int, error) {
		if sceneID == "s2" {
			return 0, errors.New("boom")
		}
		_, err := io.WriteString(w, "<svg>"+sceneID+"</svg>")
		return 1, err
	}
	task, err := NewSnapshotExportTask(Deps{
		Store:     store,
		Render:    render,
		Snapshots: local_fs.NewClient(local_fs.Config{SavePath: "/snap"}, fs),
		Config:    Config{SnapshotCron: "@daily", SnapshotKeepHistory: true},
	})
	require.NoError(t, err)
	require.NotNil(t, task)
	export := task.(*SnapshotExportTask)
	export.now = func() time.Time { return time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC) }

	require.NoError(t, task.Run(ctx))

	latest, err := afero.ReadFile(fs, filepath.Join("/snap", "s1", "latest.svg"))
	require.NoError(t, err)
	assert.Equal(t, "<svg>s1</svg>", string(latest))
	ok, _ := afero.Exists(fs, filepath.Join("/snap", "s1", "20240301T083000Z.svg"))
	assert.True(t, ok)

	// 渲染失败的场景被跳过
	ok, _ = afero.Exists(fs, filepath.Join("/snap", "s2", "latest.svg"))
	assert.False(t, ok)
}

func TestSnapshotExport_Disabled(t *testing.T) {
	render := func(context.Context, string, io.Writer) (int, error) { return 0, nil }

	task, err := NewSnapshotExportTask(Deps{Render: render})
	require.NoError(t, err)
	assert.Nil(t, task)

	task, err = NewSnapshotExportTask(Deps{Render: render, Config: Config{SnapshotCron: "@daily"}})
	require.NoError(t, err)
	assert.Nil(t, task, "no storage configured")

	_, err = NewSnapshotExportTask(Deps{Render: render, Config: Config{
		SnapshotCron:    "@daily",
		SnapshotStorage: storage.Config{Type: "ftp"},
	}})
	assert.Error(t, err)
}
