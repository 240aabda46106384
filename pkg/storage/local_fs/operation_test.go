package local_fs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS_Put(t *testing.T) {
	fs := afero.NewMemMapFs()
	client := NewClient(Config{SavePath: "/snap", CustomPath: "boards"}, fs)
	modTime := time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC)

	saved, err := client.Put(context.Background(), "s1/latest.svg", []byte("<svg/>"), "image/svg+xml", modTime)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/snap", "boards", "s1", "latest.svg"), saved)

	content, err := afero.ReadFile(fs, saved)
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(content))

	info, err := fs.Stat(saved)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(modTime))

	// 覆盖写入
	_, err = client.Put(context.Background(), "s1/latest.svg", []byte("<svg></svg>"), "", time.Time{})
	require.NoError(t, err)
	content, _ = afero.ReadFile(fs, saved)
	assert.Equal(t, "<svg></svg>", string(content))
}

func TestLocalFS_KeysStayInsideSavePath(t *testing.T) {
	fs := afero.NewMemMapFs()
	client := NewClient(Config{SavePath: "/snap"}, fs)

	saved, err := client.Put(context.Background(), "../../etc/passwd", []byte("x"), "", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/snap", "etc", "passwd"), saved)

	_, err = client.Put(context.Background(), "/", []byte("x"), "", time.Time{})
	assert.Error(t, err)
}

func TestLocalFS_Delete(t *testing.T) {
	fs := afero.NewMemMapFs()
	client := NewClient(Config{SavePath: "/snap"}, fs)
	ctx := context.Background()

	saved, err := client.Put(ctx, "a.svg", []byte("x"), "", time.Time{})
	require.NoError(t, err)
	require.NoError(t, client.Delete(ctx, "a.svg"))
	ok, _ := afero.Exists(fs, saved)
	assert.False(t, ok)

	assert.NoError(t, client.Delete(ctx, "missing.svg"))
}

func TestLocalFS_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(Config{SavePath: "/snap"}, afero.NewMemMapFs()).Put(ctx, "a.svg", nil, "", time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
}
