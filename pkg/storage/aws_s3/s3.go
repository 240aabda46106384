// Package aws_s3 stores objects in S3 or an S3 compatible service (Cloudflare R2, MinIO).
package aws_s3

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Config struct {
	Region          string
	Endpoint        string // 为空时使用 AWS 默认端点
	PathStyle       bool   // MinIO 需要 path-style 地址
	BucketName      string
	AccessKeyID     string
	AccessKeySecret string
	CustomPath      string
}

// R2Endpoint Cloudflare R2 账户端点
func R2Endpoint(accountID string) string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
}

type S3 struct {
	client *s3.Client
	config Config
	logger *zap.Logger
}

// NewClient builds the client from static credentials; nothing is sent until the first call
func NewClient(ctx context.Context, c Config, lg *zap.Logger) (*S3, error) {
	if c.BucketName == "" {
		return nil, errors.New("aws_s3: bucket name is required")
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.AccessKeySecret, "")),
		config.WithRegion(c.Region),
	)
	if err != nil {
		return nil, errors.Wrap(err, "aws_s3")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = c.PathStyle
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
	})
	return &S3{client: client, config: c, logger: lg}, nil
}

func (p *S3) key(k string) string {
	return strings.TrimPrefix(path.Join(p.config.CustomPath, k), "/")
}

// Put 上传对象，返回 bucket/key
func (p *S3) Put(ctx context.Context, key string, content []byte, contentType string, modTime time.Time) (string, error) {
	objectKey := p.key(key)
	input := &s3.PutObjectInput{
		Bucket: aws.String(p.config.BucketName),
		Key:    aws.String(objectKey),
		Body:   bytes.NewReader(content),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if !modTime.IsZero() {
		input.Metadata = map[string]string{
			"modification-time": modTime.Format(time.RFC3339),
		}
	}

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return "", errors.Wrap(err, "aws_s3")
	}
	p.logger.Debug("object uploaded", zap.String("bucket", p.config.BucketName), zap.String("key", objectKey))
	return path.Join(p.config.BucketName, objectKey), nil
}

// Delete 删除对象
func (p *S3) Delete(ctx context.Context, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.config.BucketName),
		Key:    aws.String(p.key(key)),
	})
	return errors.Wrap(err, "aws_s3")
}
