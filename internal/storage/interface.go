package storage

import (
	"context"
	"io"
)

// ObjectStorage stores generated images and serves them by public URL.
type ObjectStorage interface {
	// EnsureBucket creates the target bucket when the backend allows it.
	EnsureBucket(ctx context.Context) error

	// Upload writes an object under key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// GetURL returns the public URL of key.
	GetURL(key string) string

	// Delete removes the object under key.
	Delete(ctx context.Context, key string) error
}
