package repository

import (
	"context"
	"io"
)

// StorageBackend abstracts where sources and rendition artifacts live.
// One implementation is selected at process startup.
type StorageBackend interface {
	// Put stores the file at localPath under key and returns its public URL.
	Put(ctx context.Context, localPath, key, contentType string) (string, error)

	// Open returns a reader for a stored object.
	// Caller is responsible for closing the returned ReadCloser.
	// Returns ErrObjectNotFound if the key does not exist.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URLFor builds the public URL of a key without touching the backend.
	URLFor(key string) string

	// Remote reports whether objects live outside the local filesystem.
	// Local copies of uploaded artifacts are removed only for remote backends.
	Remote() bool
}

// LocalPather is implemented by backends that can expose a filesystem path
// for a key, letting producers write artifacts in place.
type LocalPather interface {
	LocalPath(key string) (string, error)
}
