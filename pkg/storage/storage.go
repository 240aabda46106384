// Package storage uploads rendered artifacts to a local directory or a remote object store.
package storage

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/haierkeys/evidence-board-service/pkg/storage/aliyun_oss"
	"github.com/haierkeys/evidence-board-service/pkg/storage/aws_s3"
	"github.com/haierkeys/evidence-board-service/pkg/storage/local_fs"
	"github.com/haierkeys/evidence-board-service/pkg/storage/webdav"
)

type Type = string

const (
	LOCAL  Type = "localfs"
	OSS    Type = "oss"
	R2     Type = "r2"
	S3     Type = "s3"
	MinIO  Type = "minio"
	WebDAV Type = "webdav"
)

// ErrInvalidType 未知的存储类型
var ErrInvalidType = errors.New("invalid storage type")

// Config 统一存储配置，Type 为空表示不启用
type Config struct {
	Type Type `yaml:"type"`
	// CustomPath 对象键前缀
	CustomPath string `yaml:"custom-path"`

	// S3 / OSS / MinIO / R2
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	BucketName      string `yaml:"bucket-name"`
	AccessKeyID     string `yaml:"access-key-id"`
	AccessKeySecret string `yaml:"access-key-secret"`
	AccountID       string `yaml:"account-id"` // Cloudflare R2

	// WebDAV
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// Local FS
	SavePath string `yaml:"save-path" default:"storage/snapshots"`
}

// Enabled 是否配置了存储
func (c *Config) Enabled() bool {
	return c != nil && c.Type != ""
}

// Storager stores objects under keys relative to the configured prefix
type Storager interface {
	// Put writes content and returns where it ended up
	Put(ctx context.Context, key string, content []byte, contentType string, modTime time.Time) (string, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey joins the prefix and key with forward slashes
func ObjectKey(prefix, key string) string {
	return strings.TrimPrefix(path.Join(prefix, key), "/")
}

// NewClient 按类型创建存储客户端
func NewClient(c *Config, lg *zap.Logger) (Storager, error) {
	if !c.Enabled() {
		return nil, ErrInvalidType
	}
	prefix := strings.Trim(c.CustomPath, "/")

	switch strings.ToLower(c.Type) {
	case LOCAL:
		return local_fs.NewClient(local_fs.Config{SavePath: c.SavePath, CustomPath: prefix}, nil), nil
	case S3:
		return aws_s3.NewClient(context.Background(), aws_s3.Config{
			Region:          c.Region,
			BucketName:      c.BucketName,
			AccessKeyID:     c.AccessKeyID,
			AccessKeySecret: c.AccessKeySecret,
			CustomPath:      prefix,
		}, lg)
	case R2:
		return aws_s3.NewClient(context.Background(), aws_s3.Config{
			Region:          "auto",
			Endpoint:        aws_s3.R2Endpoint(c.AccountID),
			BucketName:      c.BucketName,
			AccessKeyID:     c.AccessKeyID,
			AccessKeySecret: c.AccessKeySecret,
			CustomPath:      prefix,
		}, lg)
	case MinIO:
		return aws_s3.NewClient(context.Background(), aws_s3.Config{
			Region:          c.Region,
			Endpoint:        c.Endpoint,
			PathStyle:       true,
			BucketName:      c.BucketName,
			AccessKeyID:     c.AccessKeyID,
			AccessKeySecret: c.AccessKeySecret,
			CustomPath:      prefix,
		}, lg)
	case OSS:
		return aliyun_oss.NewClient(aliyun_oss.Config{
			Endpoint:        c.Endpoint,
			BucketName:      c.BucketName,
			AccessKeyID:     c.AccessKeyID,
			AccessKeySecret: c.AccessKeySecret,
			CustomPath:      prefix,
		})
	case WebDAV:
		return webdav.NewClient(webdav.Config{
			Endpoint:   c.Endpoint,
			User:       c.User,
			Password:   c.Password,
			CustomPath: prefix,
		}), nil
	}
	return nil, errors.Wrap(ErrInvalidType, c.Type)
}
