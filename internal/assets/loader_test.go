package assets

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/haierkeys/evidence-board-service/internal/metrics"
	"github.com/haierkeys/evidence-board-service/internal/scene"
	"github.com/haierkeys/evidence-board-service/pkg/workerpool"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

// countingFs counts file opens
type countingFs struct {
	afero.Fs
	mu    sync.Mutex
	opens int
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.mu.Lock()
	c.opens++
	c.mu.Unlock()
	return c.Fs.Open(name)
}

func newFs(t *testing.T) *countingFs {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "assets/note_white.webp", []byte("not really webp"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "journal/page.png", pngBytes(t, 1200, 3000), 0o644))
	require.NoError(t, afero.WriteFile(fs, "assets/cassette1.webp", []byte{}, 0o644))
	require.NoError(t, afero.WriteFile(fs, "assets/cassette3.webp", []byte{}, 0o644))
	require.NoError(t, afero.WriteFile(fs, "assets/cassette2.webp", []byte{}, 0o644))
	require.NoError(t, afero.WriteFile(fs, "assets/redPin.webp", []byte{}, 0o644))
	return &countingFs{Fs: fs}
}

func TestLoader_LoadDecodesSize(t *testing.T) {
	l := NewLoader(newFs(t), Config{}, nil, nil, nil)

	tex := l.Load(context.Background(), "journal/page.png")
	assert.False(t, tex.Placeholder)
	assert.Equal(t, 1200, tex.Width)
	assert.Equal(t, 3000, tex.Height)

	w, h, err := l.NaturalSize(context.Background(), "/journal/../journal/page.png")
	require.NoError(t, err)
	assert.Equal(t, [2]int{1200, 3000}, [2]int{w, h})
}

func TestLoader_FailuresDegradeToPlaceholder(t *testing.T) {
	m := metrics.New()
	l := NewLoader(newFs(t), Config{}, nil, nil, m)

	assert.Equal(t, Placeholder(), l.Load(context.Background(), "missing.webp"))
	assert.Equal(t, Placeholder(), l.Load(context.Background(), "assets/note_white.webp"))
	assert.Equal(t, Placeholder(), l.Load(context.Background(), ""))

	_, _, err := l.NaturalSize(context.Background(), "missing.webp")
	assert.Error(t, err)
}

func TestLoader_CachesAndDedupes(t *testing.T) {
	fs := newFs(t)
	l := NewLoader(fs, Config{}, nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Load(context.Background(), "journal/page.png")
		}()
	}
	wg.Wait()
	l.Load(context.Background(), "journal/page.png")

	fs.mu.Lock()
	opens := fs.opens
	fs.mu.Unlock()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, l.Cached())

	l.Forget("journal/page.png")
	assert.Equal(t, 0, l.Cached())
}

func TestLoader_LoadAsync(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := workerpool.New(&workerpool.Config{MaxWorkers: 2, QueueSize: 4}, nil)
	l := NewLoader(newFs(t), Config{}, pool, nil, nil)

	got := make(chan scene.Texture, 1)
	l.LoadAsync(context.Background(), "journal/page.png", func(tex scene.Texture) { got <- tex })

	select {
	case tex := <-got:
		assert.Equal(t, 1200, tex.Width)
	case <-time.After(time.Second):
		t.Fatal("async load never completed")
	}
	require.NoError(t, pool.Shutdown(context.Background()))

	// a closed pool falls back to a goroutine
	l.LoadAsync(context.Background(), "missing.webp", func(tex scene.Texture) { got <- tex })
	select {
	case tex := <-got:
		assert.True(t, tex.Placeholder)
	case <-time.After(time.Second):
		t.Fatal("fallback load never completed")
	}
}

func TestLoader_Cassettes(t *testing.T) {
	l := NewLoader(newFs(t), Config{CassetteGlob: "assets/cassette*.webp"}, nil, nil, nil)
	assert.Equal(t, []string{"assets/cassette1.webp", "assets/cassette2.webp", "assets/cassette3.webp"}, l.Cassettes())

	pick := l.PickCassette("note-1")
	assert.Contains(t, l.Cassettes(), pick)
	assert.Equal(t, pick, l.PickCassette("note-1"))

	empty := NewLoader(afero.NewMemMapFs(), Config{CassetteGlob: "assets/cassette*.webp"}, nil, nil, nil)
	assert.Equal(t, "assets/cassette1.webp", empty.PickCassette("x"))
}
