package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hszk-dev/footage/internal/domain/repository"
)

// ErrInvalidKey is returned when a key escapes the storage root.
var ErrInvalidKey = errors.New("invalid storage key")

// LocalBackend stores objects on the filesystem under a root directory.
type LocalBackend struct {
	root       string
	publicBase string
}

// NewLocalBackend creates the root directory if needed.
func NewLocalBackend(root, publicBase string) (*LocalBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalBackend{root: abs, publicBase: publicBase}, nil
}

// LocalPath maps key to a path inside the root.
func (b *LocalBackend) LocalPath(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	p := filepath.Join(b.root, filepath.FromSlash(key))
	if p != b.root && !strings.HasPrefix(p, b.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}
	return p, nil
}

// Put copies localPath into the tree under key. A file already at its
// destination is left in place. The caller keeps ownership of localPath.
func (b *LocalBackend) Put(ctx context.Context, localPath, key, contentType string) (string, error) {
	dest, err := b.LocalPath(key)
	if err != nil {
		return "", err
	}

	src, err := filepath.Abs(localPath)
	if err != nil {
		return "", fmt.Errorf("resolve source: %w", err)
	}
	if src == dest {
		return b.URLFor(key), nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}

	if err := copyFile(src, dest); err != nil {
		return "", err
	}

	return b.URLFor(key), nil
}

// Open returns the file stored under key.
func (b *LocalBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := b.LocalPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

// Delete removes the file stored under key.
func (b *LocalBackend) Delete(ctx context.Context, key string) error {
	p, err := b.LocalPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// URLFor returns the public URL of key.
func (b *LocalBackend) URLFor(key string) string {
	return joinURL(b.publicBase, key)
}

// Remote is false: objects already live on the local filesystem.
func (b *LocalBackend) Remote() bool { return false }

// Root returns the absolute storage root.
func (b *LocalBackend) Root() string { return b.root }

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("copy object: %w", err)
	}
	return out.Close()
}

// Compile-time verification that LocalBackend implements the storage contracts.
var (
	_ repository.StorageBackend = (*LocalBackend)(nil)
	_ repository.LocalPather    = (*LocalBackend)(nil)
)
