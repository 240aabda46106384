// Package webdav stores objects on a WebDAV server.
package webdav

import (
	"bytes"
	"context"
	"os"
	"path"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/studio-b12/gowebdav"
)

// Config WebDAV 连接信息
type Config struct {
	Endpoint   string
	User       string
	Password   string
	CustomPath string
}

// WebDAV 客户端；目录按需创建并缓存
type WebDAV struct {
	client *gowebdav.Client
	config Config

	mu   sync.Mutex
	dirs map[string]bool
}

// NewClient 创建 WebDAV 客户端，首次写入时才连接
func NewClient(c Config) *WebDAV {
	return &WebDAV{
		client: gowebdav.NewClient(c.Endpoint, c.User, c.Password),
		config: c,
		dirs:   make(map[string]bool),
	}
}

func (w *WebDAV) key(k string) string {
	return path.Join("/", w.config.CustomPath, k)
}

func (w *WebDAV) ensureDir(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirs[dir] {
		return nil
	}
	if err := w.client.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w.dirs[dir] = true
	return nil
}

// Put 上传文件；WebDAV 不保存修改时间和类型
func (w *WebDAV) Put(ctx context.Context, key string, content []byte, _ string, _ time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := w.key(key)
	if err := w.ensureDir(path.Dir(p)); err != nil {
		return "", errors.Wrap(err, "webdav")
	}
	if err := w.client.WriteStream(p, bytes.NewReader(content), os.ModePerm); err != nil {
		return "", errors.Wrap(err, "webdav")
	}
	return p, nil
}

// Delete 删除文件
func (w *WebDAV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Wrap(w.client.Remove(w.key(key)), "webdav")
}
