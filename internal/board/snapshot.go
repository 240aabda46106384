package board

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/internal/compositor"
	"github.com/haierkeys/evidence-board-service/internal/domain"
	"github.com/haierkeys/evidence-board-service/internal/metrics"
	"github.com/haierkeys/evidence-board-service/internal/scene"
	"github.com/haierkeys/evidence-board-service/internal/scene/headless"
)

// SnapshotOptions 场景快照参数
type SnapshotOptions struct {
	Store    domain.DocumentStore
	Defaults domain.Defaults
	Loader   compositor.TextureLoader
	Width    float64
	Height   float64
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// LoadScene returns the board notes of a scene, ErrSceneNotFound when it has none
func LoadScene(ctx context.Context, store domain.DocumentStore, sceneID string, d domain.Defaults) ([]*domain.Note, error) {
	docs, err := store.List(ctx, sceneID)
	if err != nil {
		return nil, errors.Wrap(err, "list scene")
	}
	notes := domain.LoadNotes(docs, d)
	if len(notes) == 0 {
		return nil, domain.ErrSceneNotFound
	}
	return notes, nil
}

// awaitLoader tracks the loads a snapshot starts so they land before the canvas is written
type awaitLoader struct {
	inner compositor.TextureLoader
	wg    sync.WaitGroup
}

func (l *awaitLoader) LoadAsync(ctx context.Context, path string, done func(scene.Texture)) {
	l.wg.Add(1)
	l.inner.LoadAsync(ctx, path, func(t scene.Texture) {
		defer l.wg.Done()
		done(t)
	})
}

// wait blocks until every started load has been applied or ctx ends
func (l *awaitLoader) wait(ctx context.Context) error {
	ch := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "await textures")
	}
}

// RenderSVG composites the scene on a headless canvas and writes it as SVG. Texture loads are
// awaited before writing, so photos are laid out at their natural size. Without a loader sprites
// show as outlined boxes. Returns the number of curves drawn.
// RenderSVG 渲染场景看板为 SVG
func RenderSVG(ctx context.Context, sceneID string, o SnapshotOptions, w io.Writer) (int, error) {
	notes, err := LoadScene(ctx, o.Store, sceneID, o.Defaults)
	if err != nil {
		return 0, err
	}

	var loader *awaitLoader
	var tl compositor.TextureLoader
	if o.Loader != nil {
		loader = &awaitLoader{inner: o.Loader}
		tl = loader
	}

	host := headless.NewHost()
	comp := compositor.New(host, o.Defaults, tl, o.Logger, o.Metrics)
	defer comp.Teardown()

	curves := comp.Sync(domain.NewGraph(notes))
	if loader != nil {
		if err := loader.wait(ctx); err != nil {
			return curves, err
		}
	}
	if err := host.WriteSVG(w, o.Width, o.Height); err != nil {
		return curves, errors.Wrap(err, "write svg")
	}
	return curves, nil
}
