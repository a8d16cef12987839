package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/hszk-dev/footage/internal/domain/model"
	"github.com/hszk-dev/footage/internal/domain/repository"
	"github.com/hszk-dev/footage/internal/infrastructure/metrics"
	"github.com/hszk-dev/footage/internal/infrastructure/storage"
	"github.com/hszk-dev/footage/internal/transcoder"
)

// CallbackSender delivers the summary of a remote run.
type CallbackSender interface {
	Send(ctx context.Context, payload model.WebhookPayload) error
}

// RemoteWorkerConfig holds configuration for RemoteWorker.
type RemoteWorkerConfig struct {
	// TempDir is the base directory for per-job scratch space.
	TempDir string
}

// DefaultRemoteWorkerConfig returns the default configuration.
func DefaultRemoteWorkerConfig() RemoteWorkerConfig {
	return RemoteWorkerConfig{TempDir: os.TempDir()}
}

// RemoteWorker processes RemoteJobs away from the API process. It has no
// access to the progress store and reports once per job through the callback.
type RemoteWorker interface {
	// Handle processes one job and sends exactly one callback.
	// The returned error is the callback delivery error, if any.
	Handle(ctx context.Context, job model.RemoteJob) error
}

type remoteWorker struct {
	transcoder transcoder.Transcoder
	storage    repository.StorageBackend
	callback   CallbackSender
	tempDir    string
}

// NewRemoteWorker creates a new RemoteWorker instance.
func NewRemoteWorker(
	tc transcoder.Transcoder,
	storage repository.StorageBackend,
	callback CallbackSender,
	cfg RemoteWorkerConfig,
) RemoteWorker {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &remoteWorker{
		transcoder: tc,
		storage:    storage,
		callback:   callback,
		tempDir:    cfg.TempDir,
	}
}

func (w *remoteWorker) Handle(ctx context.Context, job model.RemoteJob) error {
	payload := w.process(ctx, job)

	if err := w.callback.Send(ctx, payload); err != nil {
		slog.Error("failed to deliver rendition callback",
			"footage_id", job.FootageID,
			"status", payload.Status,
			"error", err,
		)
		return fmt.Errorf("send callback: %w", err)
	}

	slog.Info("remote rendition run reported",
		"footage_id", job.FootageID,
		"status", payload.Status,
	)
	return nil
}

// process runs every preset and builds the callback payload.
func (w *remoteWorker) process(ctx context.Context, job model.RemoteJob) model.WebhookPayload {
	payload := model.WebhookPayload{
		FootageID:         job.FootageID,
		Status:            model.WebhookFailed,
		PerQualityResults: make(map[string]model.RenditionResult),
	}

	workDir, err := os.MkdirTemp(w.tempDir, fmt.Sprintf("footage-%d-*", job.FootageID))
	if err != nil {
		payload.Error = fmt.Sprintf("create work directory: %v", err)
		return payload
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	sourcePath, err := w.download(ctx, job.SourceStorageKey, workDir)
	if err != nil {
		slog.Error("failed to download source",
			"footage_id", job.FootageID,
			"key", job.SourceStorageKey,
			"error", err,
		)
		payload.Error = fmt.Sprintf("download source: %v", err)
		return payload
	}

	renditions := make(map[string]string)
	for _, preset := range model.ProcessingOrder() {
		key, err := w.renderOne(ctx, job, sourcePath, workDir, preset)
		if err != nil {
			metrics.RenditionsTotal.WithLabelValues(preset.Label, metrics.ResultFailure).Inc()
			slog.Error("remote rendition failed",
				"footage_id", job.FootageID,
				"quality", preset.Label,
				"error", err,
			)
			payload.PerQualityResults[preset.Label] = model.RenditionResult{Error: err.Error()}
			continue
		}

		metrics.RenditionsTotal.WithLabelValues(preset.Label, metrics.ResultSuccess).Inc()
		renditions[preset.Label] = key
		payload.PerQualityResults[preset.Label] = model.RenditionResult{Success: true, Filename: key}
		_ = payload.SetQualityFilename(preset.Label, key)
	}

	mainFilename := model.SelectMainFilename(renditions, job.SourceStorageKey)
	payload.MainFilename = &mainFilename

	if len(renditions) > 0 {
		payload.Status = model.WebhookCompleted
	} else {
		payload.Error = "all renditions failed"
	}

	if job.DeleteOriginal {
		if err := w.storage.Delete(ctx, job.SourceStorageKey); err != nil {
			slog.Warn("failed to delete source object",
				"footage_id", job.FootageID,
				"key", job.SourceStorageKey,
				"error", err,
			)
		}
	}

	return payload
}

func (w *remoteWorker) renderOne(ctx context.Context, job model.RemoteJob, sourcePath, workDir string, preset model.QualityPreset) (string, error) {
	name := renditionName(job.SourceStorageKey, preset.Label)
	outputPath := filepath.Join(workDir, name)
	defer func() { _ = os.Remove(outputPath) }()

	if err := w.transcoder.EncodeRendition(ctx, sourcePath, outputPath, preset, 0, nil); err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}

	key := path.Join(job.OutputBasePath, name)
	if _, err := w.storage.Put(ctx, outputPath, key, storage.ContentTypeFor(key)); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	return key, nil
}

// download copies the source object into workDir.
func (w *remoteWorker) download(ctx context.Context, key, workDir string) (string, error) {
	reader, err := w.storage.Open(ctx, key)
	if err != nil {
		return "", fmt.Errorf("storage open: %w", err)
	}
	defer func() { _ = reader.Close() }()

	filename := path.Base(key)
	if filename == "." || filename == "/" {
		filename = "source.mp4"
	}

	localPath := filepath.Join(workDir, filename)
	file, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create local file: %w", err)
	}

	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("copy to local file: %w", err)
	}

	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close local file: %w", err)
	}

	return localPath, nil
}
