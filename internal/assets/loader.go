// Package assets loads board textures from the asset filesystem.
// A load never fails: a missing or undecodable image yields the placeholder texture.
package assets

import (
	"context"
	"hash/fnv"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"

	"github.com/haierkeys/evidence-board-service/internal/metrics"
	"github.com/haierkeys/evidence-board-service/internal/scene"
	"github.com/haierkeys/evidence-board-service/pkg/logger"
	"github.com/haierkeys/evidence-board-service/pkg/workerpool"
)

// PlaceholderKey key of the placeholder texture
const PlaceholderKey = "placeholder"

// Config 资源配置
type Config struct {
	// Root directory the asset paths are relative to
	Root string `yaml:"root" default:"storage"`
	// CassetteGlob media note images picked at random
	CassetteGlob string `yaml:"cassette-glob" default:"assets/cassette*.webp"`
	// DefaultCassette used when the glob matches nothing
	DefaultCassette string `yaml:"default-cassette" default:"assets/cassette1.webp"`
}

// Placeholder the texture substituted for failed loads
func Placeholder() scene.Texture {
	return scene.Texture{Key: PlaceholderKey, Width: 1, Height: 1, Placeholder: true}
}

// Loader 纹理加载器，按路径缓存，并发加载同一路径只读一次
type Loader struct {
	fs      afero.Fs
	config  Config
	pool    *workerpool.Pool
	logger  *zap.Logger
	metrics *metrics.Metrics

	sf    singleflight.Group
	mu    sync.RWMutex
	cache map[string]scene.Texture
}

// NewLoader fs is rooted at the asset root, see NewFs
func NewLoader(fs afero.Fs, cfg Config, pool *workerpool.Pool, lg *zap.Logger, m *metrics.Metrics) *Loader {
	if cfg.DefaultCassette == "" {
		cfg.DefaultCassette = "assets/cassette1.webp"
	}
	return &Loader{
		fs:      fs,
		config:  cfg,
		pool:    pool,
		logger:  logger.OrNop(lg),
		metrics: m,
		cache:   map[string]scene.Texture{},
	}
}

// NewFs 以 root 为根的只读文件系统
func NewFs(root string) afero.Fs {
	return afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), root))
}

func clean(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// Load returns the texture at p, loading it on first use
func (l *Loader) Load(ctx context.Context, p string) scene.Texture {
	if p == "" {
		return Placeholder()
	}
	key := clean(p)

	l.mu.RLock()
	t, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		return t
	}

	v, _, _ := l.sf.Do(key, func() (any, error) {
		l.mu.RLock()
		cached, ok := l.cache[key]
		l.mu.RUnlock()
		if ok {
			return cached, nil
		}

		t, err := l.decode(key)
		if err != nil {
			l.logger.Warn("texture load failed, using placeholder", zap.String(logger.FieldPath, key), zap.Error(err))
			l.metrics.AssetLoad(false)
			t = Placeholder()
		} else {
			l.metrics.AssetLoad(true)
		}
		// failures are cached too; Forget clears them once the file is fixed
		l.mu.Lock()
		l.cache[key] = t
		l.mu.Unlock()
		return t, nil
	})
	if ctx.Err() != nil {
		return Placeholder()
	}
	return v.(scene.Texture)
}

// LoadAsync loads p on the worker pool and hands the result to done.
// When the pool cannot take the task, the load runs on its own goroutine.
func (l *Loader) LoadAsync(ctx context.Context, p string, done func(scene.Texture)) {
	task := func(ctx context.Context) error {
		done(l.Load(ctx, p))
		return nil
	}
	if l.pool != nil {
		err := l.pool.SubmitAsync(ctx, task)
		if err == nil {
			return
		}
		l.logger.Debug("worker pool rejected texture load", zap.String(logger.FieldPath, p), zap.Error(err))
	}
	go func() { _ = task(ctx) }()
}

// Forget drops p from the cache
func (l *Loader) Forget(p string) {
	l.mu.Lock()
	delete(l.cache, clean(p))
	l.mu.Unlock()
}

// Cached number of cached textures
func (l *Loader) Cached() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}

func (l *Loader) decode(key string) (scene.Texture, error) {
	f, err := l.fs.Open(key)
	if err != nil {
		return scene.Texture{}, errors.Wrap(err, "open texture")
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return scene.Texture{}, errors.Wrap(err, "decode texture")
	}
	l.logger.Debug("texture loaded", zap.String(logger.FieldPath, key), zap.String("format", format),
		zap.Int("width", cfg.Width), zap.Int("height", cfg.Height))
	return scene.Texture{Key: key, Width: cfg.Width, Height: cfg.Height}, nil
}

// NaturalSize pixel size of the image at p
func (l *Loader) NaturalSize(ctx context.Context, p string) (int, int, error) {
	t := l.Load(ctx, p)
	if t.Placeholder {
		return 0, 0, errors.Errorf("texture %s unavailable", p)
	}
	return t.Width, t.Height, nil
}

// Cassettes the cassette images available, sorted
func (l *Loader) Cassettes() []string {
	matches, err := doublestar.Glob(afero.NewIOFS(l.fs), clean(l.config.CassetteGlob))
	if err != nil {
		l.logger.Warn("cassette glob failed", zap.String("pattern", l.config.CassetteGlob), zap.Error(err))
		return nil
	}
	sort.Strings(matches)
	return matches
}

// PickCassette chooses a cassette image for a new media note. The choice is derived from seed so
// repeated calls with the same seed agree.
func (l *Loader) PickCassette(seed string) string {
	all := l.Cassettes()
	if len(all) == 0 {
		return l.config.DefaultCassette
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return all[h.Sum32()%uint32(len(all))]
}
