// Package blob provides key-addressable binary storage for warranty
// documents.
//
// The lifecycle services treat keys as opaque strings chosen at upload time
// and never interpret their structure. Two backends are provided: S3 (or any
// S3-compatible store such as MinIO) for production and a filesystem store
// for local development and tests.
package blob

import (
	"context"
	"errors"
	"io"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get when no object exists under the key, and by
// Delete when there was nothing to delete. Callers running best-effort
// cleanup treat it as success.
var ErrNotFound = errors.New("object not found")

// Store is the blob store contract
type Store interface {
	// Put uploads content under key with the given MIME type
	Put(ctx context.Context, key string, content io.Reader, contentType string) error

	// Get retrieves the content stored under key
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object under key. Returns ErrNotFound if absent.
	Delete(ctx context.Context, key string) error
}

// Deleter is the subset of Store needed by cascade cleanup
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// NewKey generates an upload key for an original filename: a collision
// resistant prefix plus the original extension.
// Format: uploads/<uuid><ext>
func NewKey(filename string) string {
	return "uploads/" + uuid.NewString() + filepath.Ext(filename)
}
