package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/hszk-dev/footage/internal/domain/model"
	"github.com/hszk-dev/footage/internal/domain/repository"
	"github.com/hszk-dev/footage/internal/infrastructure/metrics"
	"github.com/hszk-dev/footage/internal/infrastructure/storage"
)

// DefaultSourcePrefix is the storage prefix for sources handed to the remote path.
const DefaultSourcePrefix = "sources"

// RenditionStrategy starts the rendition pipeline for one footage item.
// Start returns once the work has been handed off; it never waits for the
// renditions themselves.
type RenditionStrategy interface {
	Start(ctx context.Context, job RenditionJob) error
}

// LocalStrategy runs the RenditionWorker in a detached goroutine.
type LocalStrategy struct {
	worker RenditionWorker
	// sem bounds concurrent runs; nil means unbounded.
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewLocalStrategy creates a LocalStrategy. maxConcurrent <= 0 places no
// limit on concurrent runs.
func NewLocalStrategy(worker RenditionWorker, maxConcurrent int64) *LocalStrategy {
	s := &LocalStrategy{worker: worker}
	if maxConcurrent > 0 {
		s.sem = semaphore.NewWeighted(maxConcurrent)
	}
	return s
}

// Start launches the worker. The run outlives ctx's cancellation but keeps
// its values.
func (s *LocalStrategy) Start(ctx context.Context, job RenditionJob) error {
	runCtx := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if s.sem != nil {
			if err := s.sem.Acquire(runCtx, 1); err != nil {
				slog.Error("failed to acquire encode slot",
					"footage_id", job.FootageID,
					"error", err,
				)
				return
			}
			defer s.sem.Release(1)
		}

		if err := s.worker.Run(runCtx, job); err != nil {
			slog.Error("local rendition run failed",
				"footage_id", job.FootageID,
				"error", err,
			)
		}
	}()

	return nil
}

// Wait blocks until every started run has returned.
func (s *LocalStrategy) Wait() {
	s.wg.Wait()
}

// RemoteStrategyConfig holds configuration for RemoteStrategy.
type RemoteStrategyConfig struct {
	// Transport labels dispatch metrics, e.g. "rabbitmq".
	Transport string
	// SourcePrefix is the storage prefix for uploaded sources.
	SourcePrefix string
	// OutputPrefix is the storage prefix for rendition artifacts.
	OutputPrefix string
	// DeleteOriginal asks the remote worker to delete the source object.
	DeleteOriginal bool
}

// RemoteStrategy uploads the source and dispatches a RemoteJob.
type RemoteStrategy struct {
	storage    repository.StorageBackend
	dispatcher repository.Dispatcher
	cfg        RemoteStrategyConfig
}

// NewRemoteStrategy creates a new RemoteStrategy instance.
func NewRemoteStrategy(storage repository.StorageBackend, dispatcher repository.Dispatcher, cfg RemoteStrategyConfig) *RemoteStrategy {
	if cfg.SourcePrefix == "" {
		cfg.SourcePrefix = DefaultSourcePrefix
	}
	if cfg.OutputPrefix == "" {
		cfg.OutputPrefix = DefaultRenditionPrefix
	}
	return &RemoteStrategy{
		storage:    storage,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// Start returns an error wrapping ErrDispatchFailed when the job was not
// handed off. The local source is left in place in that case.
func (s *RemoteStrategy) Start(ctx context.Context, job RenditionJob) error {
	sourceKey := path.Join(s.cfg.SourcePrefix, filepath.Base(job.SourcePath))

	if _, err := s.storage.Put(ctx, job.SourcePath, sourceKey, storage.ContentTypeFor(sourceKey)); err != nil {
		metrics.DispatchTotal.WithLabelValues(s.cfg.Transport, metrics.ResultFailure).Inc()
		return fmt.Errorf("%w: upload source: %w", ErrDispatchFailed, err)
	}

	remoteJob := model.RemoteJob{
		FootageID:        job.FootageID,
		SourceStorageKey: sourceKey,
		OutputBasePath:   renditionBasePath(s.cfg.OutputPrefix, job.FootageID),
		DeleteOriginal:   s.cfg.DeleteOriginal,
	}

	if err := s.dispatcher.Dispatch(ctx, remoteJob); err != nil {
		metrics.DispatchTotal.WithLabelValues(s.cfg.Transport, metrics.ResultFailure).Inc()
		if delErr := s.storage.Delete(ctx, sourceKey); delErr != nil {
			slog.Warn("failed to delete undispatched source",
				"footage_id", job.FootageID,
				"key", sourceKey,
				"error", delErr,
			)
		}
		return fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}
	metrics.DispatchTotal.WithLabelValues(s.cfg.Transport, metrics.ResultSuccess).Inc()

	if err := os.Remove(job.SourcePath); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove local source after dispatch",
			"footage_id", job.FootageID,
			"path", job.SourcePath,
			"error", err,
		)
	}

	slog.Info("rendition job dispatched",
		"footage_id", job.FootageID,
		"transport", s.cfg.Transport,
		"source_key", sourceKey,
	)
	return nil
}

// FallbackStrategy tries Primary and runs Fallback when Primary could not
// start the job.
type FallbackStrategy struct {
	Primary  RenditionStrategy
	Fallback RenditionStrategy
}

// Start runs Fallback at most once per job.
func (s *FallbackStrategy) Start(ctx context.Context, job RenditionJob) error {
	err := s.Primary.Start(ctx, job)
	if err == nil {
		return nil
	}

	metrics.StrategyFallbacksTotal.Inc()
	slog.Warn("primary rendition strategy failed, falling back",
		"footage_id", job.FootageID,
		"error", err,
	)

	if err := s.Fallback.Start(ctx, job); err != nil {
		return fmt.Errorf("fallback strategy: %w", err)
	}
	return nil
}

// Compile-time verification that the strategies implement RenditionStrategy.
var (
	_ RenditionStrategy = (*LocalStrategy)(nil)
	_ RenditionStrategy = (*RemoteStrategy)(nil)
	_ RenditionStrategy = (*FallbackStrategy)(nil)
)
