package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/heirkeeper-server/internal/model"
)

// fakeMinio implements minioAPI for testing without network.
type fakeMinio struct {
	bucketExists    bool
	bucketExistsErr error
	makeBucketErr   error
	madeBucket      string

	putInfo    minioLib.UploadInfo
	putErr     error
	putKey     string
	putSize    int64
	putOptions minioLib.PutObjectOptions
	putData    []byte

	getRC  io.ReadCloser
	getErr error

	removeErr error
	removed   string

	statErr error
}

func (f *fakeMinio) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, f.bucketExistsErr
}

func (f *fakeMinio) MakeBucket(_ context.Context, bucket string, _ minioLib.MakeBucketOptions) error {
	f.madeBucket = bucket
	return f.makeBucketErr
}

func (f *fakeMinio) PutObject(_ context.Context, _ string, key string, reader io.Reader, size int64, opts minioLib.PutObjectOptions) (minioLib.UploadInfo, error) {
	f.putKey, f.putSize, f.putOptions = key, size, opts
	f.putData, _ = io.ReadAll(reader)
	return f.putInfo, f.putErr
}

func (f *fakeMinio) GetObject(_ context.Context, _ string, _ string, _ minioLib.GetObjectOptions) (io.ReadCloser, error) {
	return f.getRC, f.getErr
}

func (f *fakeMinio) RemoveObject(_ context.Context, _ string, key string, _ minioLib.RemoveObjectOptions) error {
	f.removed = key
	return f.removeErr
}

func (f *fakeMinio) StatObject(_ context.Context, _ string, _ string, _ minioLib.StatObjectOptions) (minioLib.ObjectInfo, error) {
	return minioLib.ObjectInfo{}, f.statErr
}

func TestNewClientWithAPI(t *testing.T) {
	tests := []struct {
		name       string
		api        *fakeMinio
		wantErr    bool
		wantCreate bool
	}{
		{name: "bucket exists", api: &fakeMinio{bucketExists: true}},
		{name: "bucket created", api: &fakeMinio{}, wantCreate: true},
		{name: "bucket created concurrently", api: &fakeMinio{makeBucketErr: minioLib.ErrorResponse{Code: "BucketAlreadyOwnedByYou"}}, wantCreate: true},
		{name: "exists check fails", api: &fakeMinio{bucketExistsErr: errors.New("boom")}, wantErr: true},
		{name: "create fails", api: &fakeMinio{makeBucketErr: errors.New("fail")}, wantErr: true, wantCreate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClientWithAPI(context.Background(), tt.api, "heirkeeper-assets")

			if tt.wantErr {
				assert.Nil(t, c)
				require.Error(t, err)
				assert.Contains(t, err.Error(), "failed to ensure bucket exists")
			} else {
				require.NoError(t, err)
				assert.Equal(t, "heirkeeper-assets", c.bucket)
			}
			if tt.wantCreate {
				assert.Equal(t, "heirkeeper-assets", tt.api.madeBucket)
			} else {
				assert.Empty(t, tt.api.madeBucket)
			}
		})
	}
}

func TestClient_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		api := &fakeMinio{putInfo: minioLib.UploadInfo{Size: 4}}
		c := &Client{api: api, bucket: "b"}

		err := c.Upload(ctx, "vaults/v/assets/a", bytes.NewReader([]byte("data")), 4)
		require.NoError(t, err)
		assert.Equal(t, "vaults/v/assets/a", api.putKey)
		assert.Equal(t, int64(4), api.putSize)
		assert.Equal(t, []byte("data"), api.putData)
		assert.Equal(t, blobContentType, api.putOptions.ContentType)
	})

	t.Run("short write", func(t *testing.T) {
		api := &fakeMinio{putInfo: minioLib.UploadInfo{Size: 2}}
		c := &Client{api: api, bucket: "b"}

		err := c.Upload(ctx, "k", bytes.NewReader([]byte("data")), 4)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "short upload")
	})

	t.Run("error", func(t *testing.T) {
		api := &fakeMinio{putErr: errors.New("put-fail")}
		c := &Client{api: api, bucket: "b"}

		err := c.Upload(ctx, "k", bytes.NewReader([]byte("data")), 4)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to upload object")
	})
}

func TestClient_Download(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		api := &fakeMinio{getRC: io.NopCloser(bytes.NewReader([]byte("abc")))}
		c := &Client{api: api, bucket: "b"}

		rc, err := c.Download(ctx, "k")
		require.NoError(t, err)
		defer rc.Close()

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), data)
	})

	t.Run("missing object", func(t *testing.T) {
		api := &fakeMinio{statErr: minioLib.ErrorResponse{Code: "NoSuchKey"}}
		c := &Client{api: api, bucket: "b"}

		rc, err := c.Download(ctx, "absent")
		assert.Nil(t, rc)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("stat error", func(t *testing.T) {
		api := &fakeMinio{statErr: errors.New("stat-fail")}
		c := &Client{api: api, bucket: "b"}

		_, err := c.Download(ctx, "k")
		require.Error(t, err)
		assert.NotErrorIs(t, err, model.ErrNotFound)
		assert.Contains(t, err.Error(), "failed to stat object")
	})

	t.Run("get error", func(t *testing.T) {
		api := &fakeMinio{getErr: errors.New("get-fail")}
		c := &Client{api: api, bucket: "b"}

		rc, err := c.Download(ctx, "k")
		assert.Nil(t, rc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get object")
	})
}

func TestClient_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		api := &fakeMinio{}
		c := &Client{api: api, bucket: "b"}

		require.NoError(t, c.Delete(ctx, "k"))
		assert.Equal(t, "k", api.removed)
	})

	t.Run("missing object", func(t *testing.T) {
		api := &fakeMinio{removeErr: minioLib.ErrorResponse{Code: "NoSuchKey"}}
		c := &Client{api: api, bucket: "b"}

		assert.NoError(t, c.Delete(ctx, "k"))
	})

	t.Run("error", func(t *testing.T) {
		api := &fakeMinio{removeErr: errors.New("remove-fail")}
		c := &Client{api: api, bucket: "b"}

		err := c.Delete(ctx, "k")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to delete object")
	})
}
