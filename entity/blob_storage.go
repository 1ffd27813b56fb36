package entity

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by an ArtifactStore when the key does not resolve.
var ErrNotFound = errors.New("artifact not found")

// StoredRef describes an artifact after a successful Put.
type StoredRef struct {
	Key  string
	Size int64
}

// ArtifactInfo is one entry of a List call.
type ArtifactInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Artifact is a readable stored object. Body must be closed by the caller.
type Artifact struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
	ModTime     time.Time
}

// ArtifactStore persists input and output byte streams under a key.
//
// Put overwrites an existing key (last write wins). Delete on a missing key is
// not an error. PublicURL returns "" when the backend has no directly
// fetchable URL for the key.
type ArtifactStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (StoredRef, error)
	Get(ctx context.Context, key string) (*Artifact, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ArtifactInfo, error)
	PublicURL(ctx context.Context, key string) (string, error)
}
