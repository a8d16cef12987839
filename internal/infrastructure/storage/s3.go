package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hszk-dev/footage/internal/domain/repository"
)

// s3API is the subset of *s3.Client used by the backend.
type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// s3Uploader is satisfied by *manager.Uploader.
type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config holds configuration for the S3 backend.
type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// Endpoint overrides the AWS endpoint for S3-compatible services.
	Endpoint     string
	UsePathStyle bool
	// PublicBaseURL prefixes keys in URLFor.
	PublicBaseURL string
	// PartSize is the multipart chunk size in bytes; 0 uses the SDK default.
	PartSize int64
	// Concurrency is the number of parts uploaded in parallel.
	Concurrency int
}

// S3Backend stores objects in an S3 bucket using explicit multipart uploads.
type S3Backend struct {
	client     s3API
	uploader   s3Uploader
	bucket     string
	publicBase string
}

// NewS3Backend creates a new S3 backend and verifies the bucket is reachable.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.AccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	client := s3.New(opts)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
	})

	return newS3Backend(ctx, client, uploader, cfg.Bucket, cfg.PublicBaseURL)
}

func newS3Backend(ctx context.Context, client s3API, uploader s3Uploader, bucket, publicBase string) (*S3Backend, error) {
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", repository.ErrBucketNotFound, bucket)
		}
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	return &S3Backend{
		client:     client,
		uploader:   uploader,
		bucket:     bucket,
		publicBase: publicBase,
	}, nil
}

// Put uploads the file at localPath through the multipart uploader.
func (b *S3Backend) Put(ctx context.Context, localPath, key, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	_, err = b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s to bucket %s: %w", key, b.bucket, err)
	}

	return b.URLFor(key), nil
}

// Open retrieves an object body.
// Caller is responsible for closing the returned ReadCloser.
func (b *S3Backend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return out.Body, nil
}

// Delete removes an object. S3 does not report missing keys on delete.
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// URLFor returns the public URL of key.
func (b *S3Backend) URLFor(key string) string {
	return joinURL(b.publicBase, key)
}

// Remote is true: artifacts leave the host after Put.
func (b *S3Backend) Remote() bool { return true }

// Ping checks that the bucket is still reachable.
func (b *S3Backend) Ping(ctx context.Context) error {
	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)}); err != nil {
		return fmt.Errorf("failed to ping s3: %w", err)
	}
	return nil
}

// Compile-time verification that S3Backend implements repository.StorageBackend.
var _ repository.StorageBackend = (*S3Backend)(nil)
