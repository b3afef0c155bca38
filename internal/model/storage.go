package model

import (
	"context"
	"io"
)

// BlobStorage stores encrypted asset ciphertext by key.
type BlobStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
