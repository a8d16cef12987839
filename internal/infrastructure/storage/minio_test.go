package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"

	"github.com/hszk-dev/footage/internal/domain/repository"
)

// mockObjectReader implements objectReader interface for testing.
type mockObjectReader struct {
	closeFunc func() error
	statFunc  func() (minio.ObjectInfo, error)
	data      []byte
	offset    int
}

func (m *mockObjectReader) Read(p []byte) (n int, err error) {
	if m.offset >= len(m.data) {
		return 0, io.EOF
	}
	n = copy(p, m.data[m.offset:])
	m.offset += n
	return n, nil
}

func (m *mockObjectReader) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func (m *mockObjectReader) Stat() (minio.ObjectInfo, error) {
	if m.statFunc != nil {
		return m.statFunc()
	}
	return minio.ObjectInfo{}, nil
}

// mockMinioClient implements minioClient interface for testing.
type mockMinioClient struct {
	bucketExistsFunc func(ctx context.Context, bucketName string) (bool, error)
	putObjectFunc    func(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	getObjectFunc    func(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error)
	removeObjectFunc func(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

func (m *mockMinioClient) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	if m.bucketExistsFunc != nil {
		return m.bucketExistsFunc(ctx, bucketName)
	}
	return true, nil
}

func (m *mockMinioClient) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if m.putObjectFunc != nil {
		return m.putObjectFunc(ctx, bucketName, objectName, reader, objectSize, opts)
	}
	return minio.UploadInfo{}, nil
}

func (m *mockMinioClient) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error) {
	if m.getObjectFunc != nil {
		return m.getObjectFunc(ctx, bucketName, objectName, opts)
	}
	return nil, nil
}

func (m *mockMinioClient) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	if m.removeObjectFunc != nil {
		return m.removeObjectFunc(ctx, bucketName, objectName, opts)
	}
	return nil
}

func TestNewMinIOBackend(t *testing.T) {
	tests := []struct {
		name       string
		bucket     string
		mockClient *mockMinioClient
		wantErr    error
	}{
		{
			name:   "successful initialization",
			bucket: "footage",
			mockClient: &mockMinioClient{
				bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
					return true, nil
				},
			},
		},
		{
			name:   "bucket does not exist",
			bucket: "missing",
			mockClient: &mockMinioClient{
				bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
					return false, nil
				},
			},
			wantErr: repository.ErrBucketNotFound,
		},
		{
			name:   "bucket check error",
			bucket: "footage",
			mockClient: &mockMinioClient{
				bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
					return false, errors.New("connection refused")
				},
			},
			wantErr: errors.New("failed to check bucket existence"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := newMinIOBackend(context.Background(), tt.mockClient, tt.bucket, "")

			if tt.wantErr != nil {
				if err == nil {
					t.Errorf("newMinIOBackend() expected error, got nil")
					return
				}
				if !errors.Is(err, tt.wantErr) && !strings.Contains(err.Error(), tt.wantErr.Error()) {
					t.Errorf("newMinIOBackend() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("newMinIOBackend() unexpected error = %v", err)
			}
			if backend.bucket != tt.bucket {
				t.Errorf("backend.bucket = %v, want %v", backend.bucket, tt.bucket)
			}
		})
	}
}

func TestMinIOBackend_Put(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "a1b2_720p.mp4")
	if err := os.WriteFile(artifact, []byte("rendition"), 0644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}

	tests := []struct {
		name       string
		mockClient *mockMinioClient
		wantURL    string
		wantErr    bool
	}{
		{
			name: "successful upload",
			mockClient: &mockMinioClient{
				putObjectFunc: func(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
					if opts.ContentType != "video/mp4" {
						t.Errorf("expected content type video/mp4, got %s", opts.ContentType)
					}
					if objectSize != int64(len("rendition")) {
						t.Errorf("objectSize = %d, want %d", objectSize, len("rendition"))
					}
					if objectName != "renditions/a1b2_720p.mp4" {
						t.Errorf("objectName = %s", objectName)
					}
					return minio.UploadInfo{Bucket: bucketName, Key: objectName}, nil
				},
			},
			wantURL: "https://cdn.example.com/footage/renditions/a1b2_720p.mp4",
		},
		{
			name: "upload error",
			mockClient: &mockMinioClient{
				putObjectFunc: func(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
					return minio.UploadInfo{}, errors.New("upload failed")
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &MinIOBackend{
				client:     tt.mockClient,
				bucket:     "footage",
				publicBase: "https://cdn.example.com/footage/",
			}

			got, err := backend.Put(context.Background(), artifact, "renditions/a1b2_720p.mp4", "video/mp4")

			if (err != nil) != tt.wantErr {
				t.Fatalf("Put() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.wantURL {
				t.Errorf("Put() = %v, want %v", got, tt.wantURL)
			}
		})
	}
}

func TestMinIOBackend_Put_MissingFile(t *testing.T) {
	backend := &MinIOBackend{client: &mockMinioClient{}, bucket: "footage"}

	if _, err := backend.Put(context.Background(), "/non/existent.mp4", "k", "video/mp4"); err == nil {
		t.Error("expected error for missing local file")
	}
}

func TestMinIOBackend_Open(t *testing.T) {
	tests := []struct {
		name        string
		mockClient  *mockMinioClient
		wantContent string
		wantErr     error
	}{
		{
			name: "successful download",
			mockClient: &mockMinioClient{
				getObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error) {
					return &mockObjectReader{data: []byte("source bytes")}, nil
				},
			},
			wantContent: "source bytes",
		},
		{
			name: "object not found",
			mockClient: &mockMinioClient{
				getObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error) {
					return &mockObjectReader{
						statFunc: func() (minio.ObjectInfo, error) {
							return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"}
						},
					}, nil
				},
			},
			wantErr: repository.ErrObjectNotFound,
		},
		{
			name: "get object error",
			mockClient: &mockMinioClient{
				getObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error) {
					return nil, errors.New("network error")
				},
			},
			wantErr: errors.New("failed to get object"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &MinIOBackend{client: tt.mockClient, bucket: "footage"}

			rc, err := backend.Open(context.Background(), "sources/a1b2.mp4")

			if tt.wantErr != nil {
				if err == nil {
					t.Fatal("Open() expected error, got nil")
				}
				if !errors.Is(err, tt.wantErr) && !strings.Contains(err.Error(), tt.wantErr.Error()) {
					t.Errorf("Open() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() unexpected error = %v", err)
			}
			defer rc.Close()

			data, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("failed to read: %v", err)
			}
			if string(data) != tt.wantContent {
				t.Errorf("content = %q, want %q", data, tt.wantContent)
			}
		})
	}
}

func TestMinIOBackend_Delete(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "successful delete"},
		{name: "missing key is not an error", err: minio.ErrorResponse{Code: "NoSuchKey"}},
		{name: "delete error", err: errors.New("access denied"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &MinIOBackend{
				client: &mockMinioClient{
					removeObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
						return tt.err
					},
				},
				bucket: "footage",
			}

			err := backend.Delete(context.Background(), "sources/a1b2.mp4")
			if (err != nil) != tt.wantErr {
				t.Errorf("Delete() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMinIOBackend_Ping(t *testing.T) {
	backend := &MinIOBackend{
		client: &mockMinioClient{
			bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
				return false, errors.New("connection refused")
			},
		},
		bucket: "footage",
	}

	if err := backend.Ping(context.Background()); err == nil {
		t.Error("Ping() expected error")
	}
	if !backend.Remote() {
		t.Error("Remote() should be true")
	}
}
