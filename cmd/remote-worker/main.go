package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hszk-dev/footage/internal/config"
	"github.com/hszk-dev/footage/internal/domain/model"
	"github.com/hszk-dev/footage/internal/domain/repository"
	"github.com/hszk-dev/footage/internal/infrastructure/callback"
	"github.com/hszk-dev/footage/internal/infrastructure/logging"
	"github.com/hszk-dev/footage/internal/infrastructure/queue"
	"github.com/hszk-dev/footage/internal/infrastructure/storage"
	"github.com/hszk-dev/footage/internal/transcoder"
	"github.com/hszk-dev/footage/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if err := os.MkdirAll(cfg.Remote.TempDir, 0755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("storage ready", slog.String("backend", cfg.Storage.Backend))

	consumer, err := newConsumer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	tc := transcoder.NewFFmpegTranscoder(ffmpegConfig(cfg.FFmpeg), logger)
	worker := usecase.NewRemoteWorker(
		tc,
		store,
		callback.NewClient(cfg.Webhook.CallbackURL, cfg.Webhook.Secret, cfg.Webhook.Timeout),
		usecase.RemoteWorkerConfig{TempDir: cfg.Remote.TempDir},
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	handle := func(jobCtx context.Context, job model.RemoteJob) error {
		logger.Info("processing remote job",
			slog.Int64("footage_id", job.FootageID),
			slog.String("source", job.SourceStorageKey),
		)
		// A started job runs to its callback even during shutdown.
		return worker.Handle(context.WithoutCancel(jobCtx), job)
	}

	n := consumerCount(cfg)
	logger.Info("starting remote worker",
		slog.String("transport", cfg.Remote.Transport),
		slog.Int("consumers", n),
	)

	// Tracks consume loops; each returns only after its in-flight job.
	var wg sync.WaitGroup
	errCh := startConsumers(ctx, consumer, n, handle, &wg)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down remote worker", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Remote.ShutdownTimeout)
	defer shutdownCancel()

	// Stop consuming new jobs
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all in-flight jobs completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some jobs may not have completed")
	}

	logger.Info("remote worker stopped")
	return nil
}

// consumerCount is the number of consume loops to run. RabbitMQ handles one
// delivery per loop, so REMOTE_CONCURRENCY loops share the channel. Asynq
// runs its own worker pool sized by the same setting.
func consumerCount(cfg *config.Config) int {
	if cfg.Remote.Transport == config.TransportAsynq {
		return 1
	}
	return max(1, cfg.Remote.Concurrency)
}

// startConsumers runs n consume loops. wg is released as each loop returns.
// The returned channel receives loop failures that were not caused by ctx.
func startConsumers(
	ctx context.Context,
	consumer repository.JobConsumer,
	n int,
	handle func(ctx context.Context, job model.RemoteJob) error,
	wg *sync.WaitGroup,
) <-chan error {
	errCh := make(chan error, n)
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			if err := consumer.ConsumeRemoteJobs(ctx, handle); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("consumer error: %w", err)
			}
		}()
	}
	return errCh
}

func newStorage(ctx context.Context, cfg *config.Config) (repository.StorageBackend, error) {
	switch cfg.Storage.Backend {
	case config.StorageMinIO:
		b, err := storage.NewMinIOBackend(ctx, storage.MinIOConfig{
			Endpoint:      cfg.MinIO.Endpoint,
			AccessKey:     cfg.MinIO.AccessKey,
			SecretKey:     cfg.MinIO.SecretKey,
			Bucket:        cfg.MinIO.Bucket,
			UseSSL:        cfg.MinIO.UseSSL,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
			PartSize:      cfg.MinIO.PartSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MinIO: %w", err)
		}
		return b, nil
	case config.StorageS3:
		b, err := storage.NewS3Backend(ctx, storage.S3Config{
			Region:        cfg.S3.Region,
			Bucket:        cfg.S3.Bucket,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			Endpoint:      cfg.S3.Endpoint,
			UsePathStyle:  cfg.S3.UsePathStyle,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
			PartSize:      cfg.S3.PartSize,
			Concurrency:   cfg.S3.Concurrency,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to S3: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("remote worker needs shared storage, got STORAGE_BACKEND=%s", cfg.Storage.Backend)
	}
}

func newConsumer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.JobConsumer, error) {
	if cfg.Remote.Transport == config.TransportAsynq {
		return queue.NewAsynqConsumer(queue.AsynqConfig{
			RedisAddr:     cfg.Redis.Addr(),
			RedisPassword: cfg.Redis.Password,
			RedisDB:       cfg.Redis.DB,
			Concurrency:   cfg.Remote.Concurrency,
		}, logger), nil
	}

	// Prefetch stays per consumer; concurrency comes from consumerCount.
	cfgMQ := queue.DefaultClientConfig(cfg.RabbitMQ.URL())
	client, err := queue.NewClient(ctx, cfgMQ, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	logger.Info("connected to RabbitMQ")
	return client, nil
}

func ffmpegConfig(c config.FFmpegConfig) transcoder.FFmpegConfig {
	tc := transcoder.DefaultFFmpegConfig()
	tc.FFmpegPath = c.FFmpegPath
	tc.FFprobePath = c.FFprobePath
	if c.Preset != "" {
		tc.VideoPreset = c.Preset
	}
	return tc
}
