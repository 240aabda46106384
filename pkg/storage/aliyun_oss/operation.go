// Package aliyun_oss stores objects in Aliyun OSS.
package aliyun_oss

import (
	"bytes"
	"context"
	"path"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"
)

type Config struct {
	Endpoint        string
	BucketName      string
	AccessKeyID     string
	AccessKeySecret string
	CustomPath      string
}

type OSS struct {
	bucket *oss.Bucket
	config Config
}

// NewClient 创建 OSS 客户端并绑定 bucket
func NewClient(c Config) (*OSS, error) {
	client, err := oss.New(c.Endpoint, c.AccessKeyID, c.AccessKeySecret)
	if err != nil {
		return nil, errors.Wrap(err, "aliyun_oss")
	}
	bucket, err := client.Bucket(c.BucketName)
	if err != nil {
		return nil, errors.Wrap(err, "aliyun_oss")
	}
	return &OSS{bucket: bucket, config: c}, nil
}

func (p *OSS) key(k string) string {
	return strings.TrimPrefix(path.Join(p.config.CustomPath, k), "/")
}

// Put 上传对象
func (p *OSS) Put(ctx context.Context, key string, content []byte, contentType string, modTime time.Time) (string, error) {
	objectKey := p.key(key)
	options := []oss.Option{oss.WithContext(ctx)}
	if contentType != "" {
		options = append(options, oss.ContentType(contentType))
	}
	if !modTime.IsZero() {
		options = append(options, oss.Meta("modification-time", modTime.Format(time.RFC3339)))
	}
	if err := p.bucket.PutObject(objectKey, bytes.NewReader(content), options...); err != nil {
		return "", errors.Wrap(err, "aliyun_oss")
	}
	return path.Join(p.config.BucketName, objectKey), nil
}

// Delete 删除对象
func (p *OSS) Delete(ctx context.Context, key string) error {
	return errors.Wrap(p.bucket.DeleteObject(p.key(key), oss.WithContext(ctx)), "aliyun_oss")
}
