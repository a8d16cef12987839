package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hszk-dev/footage/internal/domain/model"
	"github.com/hszk-dev/footage/internal/domain/repository"
	"github.com/hszk-dev/footage/internal/infrastructure/metrics"
	"github.com/hszk-dev/footage/internal/infrastructure/storage"
	"github.com/hszk-dev/footage/internal/transcoder"
)

const (
	// DefaultProgressGracePeriod is how long terminal progress entries stay
	// readable after a run before they are cleared.
	DefaultProgressGracePeriod = 30 * time.Second

	// DefaultRenditionPrefix is the storage prefix of rendition artifacts.
	DefaultRenditionPrefix = "renditions"

	clearTimeout = 10 * time.Second
)

// errRunAborted marks a run stopped by an unexpected failure in the loop.
var errRunAborted = errors.New("rendition run aborted")

// RenditionJob describes one footage item ready for the rendition pipeline.
type RenditionJob struct {
	FootageID int64
	// SourcePath is the normalized source on the local filesystem.
	SourcePath string
	// SourceFilename is the catalog fallback main filename.
	SourceFilename  string
	DurationSeconds float64
}

// RenditionWorkerConfig holds configuration for the local rendition worker.
type RenditionWorkerConfig struct {
	// WorkDir receives artifacts when the storage backend cannot expose a
	// local path for a key.
	WorkDir string
	// KeyPrefix is prepended to every artifact key.
	KeyPrefix string
	// GracePeriod delays clearing progress entries after a run.
	GracePeriod time.Duration
}

// DefaultRenditionWorkerConfig returns the default configuration.
func DefaultRenditionWorkerConfig() RenditionWorkerConfig {
	return RenditionWorkerConfig{
		WorkDir:     os.TempDir(),
		KeyPrefix:   DefaultRenditionPrefix,
		GracePeriod: DefaultProgressGracePeriod,
	}
}

// RenditionWorker produces every quality preset of one footage item in-process.
type RenditionWorker interface {
	// Run encodes the presets sequentially in processing order. A failed
	// quality never stops the loop. It returns an error when the run had to
	// be aborted or the final status could not be written after a retry.
	Run(ctx context.Context, job RenditionJob) error
}

type renditionWorker struct {
	transcoder transcoder.Transcoder
	storage    repository.StorageBackend
	reconciler CatalogReconciler
	notifier   ProgressNotifier

	workDir     string
	keyPrefix   string
	gracePeriod time.Duration
	afterFunc   func(d time.Duration, f func()) *time.Timer
}

// NewRenditionWorker creates a new RenditionWorker instance.
func NewRenditionWorker(
	tc transcoder.Transcoder,
	storage repository.StorageBackend,
	reconciler CatalogReconciler,
	notifier ProgressNotifier,
	cfg RenditionWorkerConfig,
) RenditionWorker {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultRenditionPrefix
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &renditionWorker{
		transcoder:  tc,
		storage:     storage,
		reconciler:  reconciler,
		notifier:    notifier,
		workDir:     cfg.WorkDir,
		keyPrefix:   cfg.KeyPrefix,
		gracePeriod: cfg.GracePeriod,
		afterFunc:   time.AfterFunc,
	}
}

// runState tracks what one run has done so an abort can undo it.
type runState struct {
	current  string
	produced []string
}

func (w *renditionWorker) Run(ctx context.Context, job RenditionJob) (err error) {
	if err := w.reconciler.Begin(ctx, job.FootageID); err != nil {
		return err
	}

	footage := &model.Footage{
		ID:             job.FootageID,
		SourceFilename: job.SourceFilename,
		Filename:       job.SourceFilename,
		Renditions:     make(map[string]string),
	}

	state := &runState{}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", errRunAborted, r)
		}
		if errors.Is(err, errRunAborted) {
			w.abort(ctx, job, footage, state, err)
		}
	}()

	succeeded := 0
	for _, preset := range model.ProcessingOrder() {
		state.current = preset.Label

		key, ok := w.renderOne(ctx, job, preset)
		if !ok {
			state.current = ""
			continue
		}
		state.produced = append(state.produced, key)

		if err := w.reconciler.ApplyRendition(ctx, footage, preset.Label, key); err != nil {
			return fmt.Errorf("%w: %w", errRunAborted, err)
		}
		w.notifier.Notify(ctx, job.FootageID, preset.Label, 100, model.ProgressCompleted)
		state.current = ""
		succeeded++
	}

	w.removeSource(job)
	w.removeWorkDir(job.FootageID)
	w.scheduleClear(job.FootageID)

	status, err := w.reconciler.Finish(ctx, job.FootageID, succeeded)
	if err != nil {
		slog.Warn("retrying final status",
			"footage_id", job.FootageID,
			"status", status,
			"error", err,
		)
		if status, err = w.reconciler.Finish(ctx, job.FootageID, succeeded); err != nil {
			return fmt.Errorf("set final status %s: %w", status, err)
		}
	}

	slog.Info("rendition run finished",
		"footage_id", job.FootageID,
		"status", status,
		"succeeded", succeeded,
		"main_filename", footage.Filename,
	)
	return nil
}

// renderOne encodes and stores a single preset. It reports the artifact key
// and whether the quality succeeded; failures are recorded, never returned.
func (w *renditionWorker) renderOne(ctx context.Context, job RenditionJob, preset model.QualityPreset) (string, bool) {
	id, label := job.FootageID, preset.Label
	w.notifier.Notify(ctx, id, label, 0, model.ProgressProcessing)

	key := path.Join(renditionBasePath(w.keyPrefix, id), renditionName(job.SourceFilename, label))

	fail := func(stage string, err error) (string, bool) {
		metrics.RenditionsTotal.WithLabelValues(label, metrics.ResultFailure).Inc()
		w.notifier.Notify(ctx, id, label, 0, model.ProgressFailed)

		attrs := []any{"footage_id", id, "quality", label, "stage", stage, "error", err}
		var exitErr *transcoder.ExitError
		if errors.As(err, &exitErr) {
			attrs = append(attrs, "stderr_tail", exitErr.Diagnostic())
		}
		slog.Error("rendition failed", attrs...)
		return "", false
	}

	outputPath, inPlace, err := w.outputPath(id, key)
	if err != nil {
		return fail("prepare", err)
	}

	last := -1
	onProgress := func(percent int) {
		if percent == last {
			return
		}
		last = percent
		w.notifier.Notify(ctx, id, label, percent, model.ProgressProcessing)
	}

	start := time.Now()
	err = w.transcoder.EncodeRendition(ctx, job.SourcePath, outputPath, preset, job.DurationSeconds, onProgress)
	metrics.EncodeDurationSeconds.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		return fail("encode", err)
	}

	_, err = w.storage.Put(ctx, outputPath, key, storage.ContentTypeFor(key))
	if !inPlace && (err != nil || w.storage.Remote()) {
		_ = os.Remove(outputPath)
	}
	if err != nil {
		return fail("upload", err)
	}

	metrics.RenditionsTotal.WithLabelValues(label, metrics.ResultSuccess).Inc()
	return key, true
}

// outputPath picks where the encoder writes key. Backends exposing local
// paths receive the artifact in place.
func (w *renditionWorker) outputPath(footageID int64, key string) (string, bool, error) {
	if lp, ok := w.storage.(repository.LocalPather); ok {
		p, err := lp.LocalPath(key)
		if err != nil {
			return "", false, err
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return "", false, fmt.Errorf("create output directory: %w", err)
		}
		return p, true, nil
	}

	dir := w.itemWorkDir(footageID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", false, fmt.Errorf("create work directory: %w", err)
	}
	return filepath.Join(dir, path.Base(key)), false, nil
}

// abort undoes a run that stopped unexpectedly: artifacts from this run are
// deleted, the catalog filenames are reset and the footage is marked failed.
// Progress entries keep their last state, except the quality in flight which
// is marked failed.
func (w *renditionWorker) abort(ctx context.Context, job RenditionJob, footage *model.Footage, state *runState, cause error) {
	slog.Error("rendition run aborted",
		"footage_id", job.FootageID,
		"quality", state.current,
		"error", cause,
	)

	if state.current != "" {
		w.notifier.Notify(ctx, job.FootageID, state.current, 0, model.ProgressFailed)
	}

	for _, key := range state.produced {
		if err := w.storage.Delete(ctx, key); err != nil {
			slog.Warn("failed to delete artifact after abort",
				"footage_id", job.FootageID,
				"key", key,
				"error", err,
			)
		}
	}

	w.removeWorkDir(job.FootageID)

	if err := w.reconciler.Abort(ctx, footage); err != nil {
		slog.Error("failed to roll back catalog",
			"footage_id", job.FootageID,
			"error", err,
		)
	}
}

func (w *renditionWorker) removeSource(job RenditionJob) {
	if err := os.Remove(job.SourcePath); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove normalized source",
			"footage_id", job.FootageID,
			"path", job.SourcePath,
			"error", err,
		)
	}
}

func (w *renditionWorker) itemWorkDir(footageID int64) string {
	return filepath.Join(w.workDir, "footage", strconv.FormatInt(footageID, 10))
}

// removeWorkDir drops the scratch directory used by backends without local
// paths.
func (w *renditionWorker) removeWorkDir(footageID int64) {
	if _, ok := w.storage.(repository.LocalPather); ok {
		return
	}
	dir := w.itemWorkDir(footageID)
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("failed to remove work directory",
			"footage_id", footageID,
			"path", dir,
			"error", err,
		)
	}
}

func (w *renditionWorker) scheduleClear(footageID int64) {
	w.afterFunc(w.gracePeriod, func() {
		ctx, cancel := context.WithTimeout(context.Background(), clearTimeout)
		defer cancel()
		w.notifier.Clear(ctx, footageID)
	})
}

// renditionBasePath is the key prefix holding every artifact of one item.
func renditionBasePath(prefix string, footageID int64) string {
	return path.Join(prefix, strconv.FormatInt(footageID, 10))
}

// renditionName derives the artifact file name, e.g. "abc.mp4" -> "abc_720p.mp4".
func renditionName(source, label string) string {
	base := path.Base(filepath.ToSlash(source))
	return strings.TrimSuffix(base, path.Ext(base)) + "_" + label + ".mp4"
}
