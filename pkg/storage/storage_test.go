package storage_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haierkeys/evidence-board-service/pkg/storage"
	"github.com/haierkeys/evidence-board-service/pkg/storage/aws_s3"
	"github.com/haierkeys/evidence-board-service/pkg/storage/local_fs"
	"github.com/haierkeys/evidence-board-service/pkg/storage/webdav"
)

func TestNewClient_Local(t *testing.T) {
	client, err := storage.NewClient(&storage.Config{Type: storage.LOCAL, SavePath: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &local_fs.LocalFS{}, client)
}

func TestNewClient_S3Compatible(t *testing.T) {
	for _, typ := range []storage.Type{storage.S3, storage.R2, storage.MinIO} {
		client, err := storage.NewClient(&storage.Config{
			Type:            typ,
			Region:          "us-east-1",
			Endpoint:        "http://127.0.0.1:9000",
			AccountID:       "acc",
			BucketName:      "boards",
			AccessKeyID:     "id",
			AccessKeySecret: "secret",
		}, nil)
		require.NoError(t, err, typ)
		assert.IsType(t, &aws_s3.S3{}, client, typ)
	}

	_, err := storage.NewClient(&storage.Config{Type: storage.S3}, nil)
	assert.Error(t, err)
}

func TestNewClient_WebDAV(t *testing.T) {
	client, err := storage.NewClient(&storage.Config{Type: storage.WebDAV, Endpoint: "http://127.0.0.1:8080"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &webdav.WebDAV{}, client)
}

func TestNewClient_Invalid(t *testing.T) {
	_, err := storage.NewClient(&storage.Config{Type: "invalid"}, nil)
	assert.True(t, errors.Is(err, storage.ErrInvalidType))

	_, err = storage.NewClient(&storage.Config{}, nil)
	assert.True(t, errors.Is(err, storage.ErrInvalidType))
	assert.False(t, (*storage.Config)(nil).Enabled())
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "boards/s1/latest.svg", storage.ObjectKey("boards", "s1/latest.svg"))
	assert.Equal(t, "s1/latest.svg", storage.ObjectKey("", "/s1/latest.svg"))
}
