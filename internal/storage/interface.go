package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Download when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage stores caption image blobs under flat keys such as
// "<image_id>.jpg".
type ObjectStorage interface {
	// EnsureBucket prepares the backing location (bucket or directory).
	EnsureBucket(ctx context.Context) error

	// Upload writes an object, replacing any existing one with the same key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens an object for reading.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the path or URL recorded for an object.
	GetURL(key string) string

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}
