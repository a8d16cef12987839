package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hszk-dev/footage/internal/domain/repository"
)

// objectReader abstracts minio.Object for testability.
// *minio.Object satisfies this interface.
type objectReader interface {
	io.ReadCloser
	Stat() (minio.ObjectInfo, error)
}

// minioClient defines the subset of MinIO operations the backend uses.
type minioClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// minioClientAdapter wraps *minio.Client to implement minioClient interface.
// This is necessary because *minio.Client.GetObject returns *minio.Object,
// but our interface returns objectReader for testability.
type minioClientAdapter struct {
	client *minio.Client
}

func (a *minioClientAdapter) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return a.client.BucketExists(ctx, bucketName)
}

func (a *minioClientAdapter) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return a.client.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

func (a *minioClientAdapter) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error) {
	return a.client.GetObject(ctx, bucketName, objectName, opts)
}

func (a *minioClientAdapter) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return a.client.RemoveObject(ctx, bucketName, objectName, opts)
}

// MinIOConfig holds configuration for the MinIO backend.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL prefixes keys in URLFor, e.g. "https://cdn.example.com/footage".
	PublicBaseURL string
	// PartSize is the multipart chunk size in bytes; 0 lets minio-go decide.
	PartSize uint64
}

// MinIOBackend stores objects in a MinIO (or S3-compatible) bucket.
type MinIOBackend struct {
	client     minioClient
	bucket     string
	publicBase string
	partSize   uint64
}

// NewMinIOBackend creates a new MinIO backend.
// It verifies the bucket exists during initialization to fail fast on misconfiguration.
func NewMinIOBackend(ctx context.Context, cfg MinIOConfig) (*MinIOBackend, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	b, err := newMinIOBackend(ctx, &minioClientAdapter{client: client}, cfg.Bucket, cfg.PublicBaseURL)
	if err != nil {
		return nil, err
	}
	b.partSize = cfg.PartSize
	return b, nil
}

// newMinIOBackend creates a backend with a given minioClient implementation.
// This is used for dependency injection in tests.
func newMinIOBackend(ctx context.Context, client minioClient, bucket, publicBase string) (*MinIOBackend, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", repository.ErrBucketNotFound, bucket)
	}

	return &MinIOBackend{
		client:     client,
		bucket:     bucket,
		publicBase: publicBase,
	}, nil
}

// Put uploads the file at localPath. minio-go switches to multipart
// upload on its own once the object exceeds one part.
func (b *MinIOBackend) Put(ctx context.Context, localPath, key, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat artifact: %w", err)
	}

	_, err = b.client.PutObject(ctx, b.bucket, key, f, info.Size(), minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    b.partSize,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	return b.URLFor(key), nil
}

// Open retrieves an object from the bucket.
// Caller is responsible for closing the returned ReadCloser.
func (b *MinIOBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	// GetObject returns a lazy reader that doesn't fail until read.
	_, err = obj.Stat()
	if err != nil {
		_ = obj.Close() // Best effort close on error path
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, repository.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	return obj, nil
}

// Delete removes an object from the bucket.
func (b *MinIOBackend) Delete(ctx context.Context, key string) error {
	err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// URLFor returns the public URL of key.
func (b *MinIOBackend) URLFor(key string) string {
	return joinURL(b.publicBase, key)
}

// Remote is true: artifacts leave the host after Put.
func (b *MinIOBackend) Remote() bool { return true }

// Ping verifies the MinIO connection is alive by checking bucket access.
func (b *MinIOBackend) Ping(ctx context.Context) error {
	if _, err := b.client.BucketExists(ctx, b.bucket); err != nil {
		return fmt.Errorf("failed to ping minio: %w", err)
	}
	return nil
}

// Compile-time verification that MinIOBackend implements repository.StorageBackend.
var _ repository.StorageBackend = (*MinIOBackend)(nil)
