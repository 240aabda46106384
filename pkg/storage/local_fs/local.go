// Package local_fs stores objects below a local directory.
package local_fs

import (
	"context"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

type Config struct {
	SavePath   string
	CustomPath string
}

type LocalFS struct {
	fs     afero.Fs
	config Config
}

// NewClient writes through fs; a nil fs is the operating system's file system
func NewClient(c Config, fs afero.Fs) *LocalFS {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &LocalFS{fs: fs, config: c}
}

func (l *LocalFS) filePath(key string) (string, error) {
	clean := path.Clean("/" + path.Join(l.config.CustomPath, key))
	if clean == "/" || strings.HasSuffix(key, "/") {
		return "", errors.Errorf("local_fs: invalid key %q", key)
	}
	return filepath.Join(l.config.SavePath, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Put 写入文件并设置修改时间
func (l *LocalFS) Put(ctx context.Context, key string, content []byte, _ string, modTime time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := l.filePath(key)
	if err != nil {
		return "", err
	}
	if err := l.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", errors.Wrap(err, "local_fs")
	}
	if err := afero.WriteFile(l.fs, p, content, 0o644); err != nil {
		return "", errors.Wrap(err, "local_fs")
	}
	if !modTime.IsZero() {
		if err := l.fs.Chtimes(p, modTime, modTime); err != nil {
			return "", errors.Wrap(err, "local_fs")
		}
	}
	return p, nil
}

// Delete 删除文件，不存在时忽略
func (l *LocalFS) Delete(_ context.Context, key string) error {
	p, err := l.filePath(key)
	if err != nil {
		return err
	}
	if err := l.fs.Remove(p); err != nil {
		if ok, _ := afero.Exists(l.fs, p); ok {
			return errors.Wrap(err, "local_fs")
		}
	}
	return nil
}
