package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/hszk-dev/footage/internal/domain/repository"
)

func newTestLocalBackend(t *testing.T) *LocalBackend {
	t.Helper()
	b, err := NewLocalBackend(t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("NewLocalBackend() error = %v", err)
	}
	return b
}

func TestLocalBackend_LocalPath(t *testing.T) {
	b := newTestLocalBackend(t)

	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "a1b2_720p.mp4", want: filepath.Join(b.Root(), "a1b2_720p.mp4")},
		{key: "renditions/7/a1b2_240p.mp4", want: filepath.Join(b.Root(), "renditions", "7", "a1b2_240p.mp4")},
		{key: "../escape.mp4", wantErr: true},
		{key: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := b.LocalPath(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKey) {
					t.Errorf("LocalPath(%q) error = %v, want ErrInvalidKey", tt.key, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LocalPath(%q) unexpected error = %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("LocalPath(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestLocalBackend_PutInPlace(t *testing.T) {
	b := newTestLocalBackend(t)
	ctx := context.Background()

	dest, _ := b.LocalPath("a1b2_480p.mp4")
	if err := os.WriteFile(dest, []byte("in place"), 0644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	url, err := b.Put(ctx, dest, "a1b2_480p.mp4", "video/mp4")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if url != "/media/a1b2_480p.mp4" {
		t.Errorf("Put() url = %q", url)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("in-place file should remain: %v", err)
	}
}

func TestLocalBackend_PutCopiesFile(t *testing.T) {
	b := newTestLocalBackend(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "scratch.mp4")
	if err := os.WriteFile(src, []byte("payload"), 0644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	if _, err := b.Put(ctx, src, "renditions/scratch.mp4", "video/mp4"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	rc, err := b.Open(ctx, "renditions/scratch.mp4")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "payload" {
		t.Errorf("content = %q, want payload", data)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source should be left for the caller: %v", err)
	}
}

func TestLocalBackend_OpenMissing(t *testing.T) {
	b := newTestLocalBackend(t)

	_, err := b.Open(context.Background(), "nope.mp4")
	if !errors.Is(err, repository.ErrObjectNotFound) {
		t.Errorf("Open() error = %v, want ErrObjectNotFound", err)
	}
}

func TestLocalBackend_Delete(t *testing.T) {
	b := newTestLocalBackend(t)
	ctx := context.Background()

	p, _ := b.LocalPath("gone.mp4")
	if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	if err := b.Delete(ctx, "gone.mp4"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Error("file should be deleted")
	}
	if err := b.Delete(ctx, "gone.mp4"); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
	if b.Remote() {
		t.Error("Remote() should be false")
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, key, want string
	}{
		{"https://cdn.example.com", "a.mp4", "https://cdn.example.com/a.mp4"},
		{"https://cdn.example.com/", "/r/a.mp4", "https://cdn.example.com/r/a.mp4"},
		{"", "a.mp4", "/a.mp4"},
		{"/media", "r//a.mp4", "/media/r/a.mp4"},
	}

	for _, tt := range tests {
		if got := joinURL(tt.base, tt.key); got != tt.want {
			t.Errorf("joinURL(%q, %q) = %q, want %q", tt.base, tt.key, got, tt.want)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	if got := ContentTypeFor("x.unknownext"); got != "application/octet-stream" {
		t.Errorf("ContentTypeFor(unknown) = %q", got)
	}
	if got := ContentTypeFor("x.MP4"); got != "video/mp4" {
		t.Errorf("ContentTypeFor(mp4) = %q", got)
	}
}
