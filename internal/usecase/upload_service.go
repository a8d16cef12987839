package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hszk-dev/footage/internal/domain/model"
	"github.com/hszk-dev/footage/internal/domain/repository"
	"github.com/hszk-dev/footage/internal/transcoder"
)

// UploadServiceConfig holds configuration for UploadService.
type UploadServiceConfig struct {
	// UploadDir receives raw uploads and normalized sources.
	UploadDir string
}

// UploadInput is a single uploaded video.
type UploadInput struct {
	Title string
	// Filename is the client-side file name; only its extension is kept.
	Filename string
	Content  io.Reader
}

// UploadService accepts uploads and hands them to the rendition pipeline.
type UploadService interface {
	// Upload stores and normalizes the file, creates the catalog row and
	// starts the renditions without waiting for them.
	// Returns ErrNormalizationFailed when the file cannot be made playable;
	// no catalog row is created in that case.
	Upload(ctx context.Context, input UploadInput) (*model.Footage, error)
}

type uploadService struct {
	repo       repository.FootageRepository
	transcoder transcoder.Transcoder
	strategy   RenditionStrategy
	uploadDir  string
}

// NewUploadService creates a new UploadService instance.
func NewUploadService(
	repo repository.FootageRepository,
	tc transcoder.Transcoder,
	strategy RenditionStrategy,
	cfg UploadServiceConfig,
) UploadService {
	return &uploadService{
		repo:       repo,
		transcoder: tc,
		strategy:   strategy,
		uploadDir:  cfg.UploadDir,
	}
}

func (s *uploadService) Upload(ctx context.Context, input UploadInput) (*model.Footage, error) {
	uploadPath, err := s.save(input)
	if err != nil {
		return nil, err
	}

	sourcePath, err := s.transcoder.Normalize(ctx, uploadPath)
	if err != nil {
		_ = os.Remove(uploadPath)
		return nil, fmt.Errorf("%w: %w", ErrNormalizationFailed, err)
	}

	var duration float64
	info, err := s.transcoder.Probe(ctx, sourcePath)
	if err != nil {
		slog.Warn("failed to probe duration, progress will not be reported",
			"path", sourcePath,
			"error", err,
		)
	} else {
		duration = info.DurationSeconds
	}

	title := input.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(input.Filename), filepath.Ext(input.Filename))
	}

	footage, err := model.NewFootage(title, filepath.Base(sourcePath), duration)
	if err != nil {
		_ = os.Remove(sourcePath)
		return nil, fmt.Errorf("invalid footage: %w", err)
	}

	if err := s.repo.Create(ctx, footage); err != nil {
		_ = os.Remove(sourcePath)
		return nil, fmt.Errorf("create footage: %w", err)
	}

	job := RenditionJob{
		FootageID:       footage.ID,
		SourcePath:      sourcePath,
		SourceFilename:  footage.SourceFilename,
		DurationSeconds: footage.DurationSeconds,
	}

	// The pipeline must outlive the request.
	if err := s.strategy.Start(context.WithoutCancel(ctx), job); err != nil {
		slog.Error("failed to start renditions",
			"footage_id", footage.ID,
			"error", err,
		)
		if err := s.repo.UpdateStatus(ctx, footage.ID, model.StatusFailed); err != nil {
			slog.Error("failed to mark footage failed",
				"footage_id", footage.ID,
				"error", err,
			)
		}
		footage.Status = model.StatusFailed
	}

	return footage, nil
}

// save writes the upload as <uuid><ext> inside the upload directory.
func (s *uploadService) save(input UploadInput) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(input.Filename))
	uploadPath := filepath.Join(s.uploadDir, uuid.NewString()+ext)

	file, err := os.Create(uploadPath)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(file, input.Content); err != nil {
		_ = file.Close()
		_ = os.Remove(uploadPath)
		return "", fmt.Errorf("write upload: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(uploadPath)
		return "", fmt.Errorf("close upload file: %w", err)
	}

	return uploadPath, nil
}
