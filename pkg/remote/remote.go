// Package remote defines the narrow object store interface the sync engine talks to.
//
// Paths are slash separated. A collection is a directory-like prefix and a data
// object is a single stored file addressed by its full path.
package remote

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Stat and Checksum when no data object exists at the path
var ErrNotFound = errors.New("object not found")

// ErrChecksumUnsupported is returned by Checksum when the store cannot produce a checksum for the object
var ErrChecksumUnsupported = errors.New("checksum not available")

type ObjectInfo struct {
	Path     string
	Size     int64
	Checksum string // As reported by the store; may be empty
}

type Store interface {
	List(ctx context.Context, path string) ([]ObjectInfo, error)
	Stat(ctx context.Context, path string) (*ObjectInfo, error)
	Upload(ctx context.Context, localPath, remotePath string) (int64, error)
	Checksum(ctx context.Context, path string) (string, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// CollectionMaker is implemented by stores that need collections created before
// data objects can be placed in them
type CollectionMaker interface {
	MakeCollection(ctx context.Context, path string) error
}

// Pinger is implemented by stores that can check connectivity without touching objects
type Pinger interface {
	Ping(ctx context.Context) error
}
