package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/footage/internal/api/handler"
	"github.com/hszk-dev/footage/internal/api/middleware"
	"github.com/hszk-dev/footage/internal/config"
	"github.com/hszk-dev/footage/internal/domain/repository"
	"github.com/hszk-dev/footage/internal/infrastructure/cache"
	"github.com/hszk-dev/footage/internal/infrastructure/logging"
	"github.com/hszk-dev/footage/internal/infrastructure/metrics"
	"github.com/hszk-dev/footage/internal/infrastructure/postgres"
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

	for _, dir := range []string{cfg.Pipeline.UploadDir, cfg.Pipeline.WorkDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Infrastructure
	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	logger.Info("connected to PostgreSQL")

	if err := pgClient.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare schema: %w", err)
	}

	metrics.RegisterPoolGauges(prometheus.DefaultRegisterer, func() (int32, int32, int32) {
		s := pgClient.Stats()
		return s.AcquiredConns, s.IdleConns, s.TotalConns
	})

	checks := map[string]handler.HealthCheck{"postgres": pgClient.Ping}

	store, storageCheck, err := newStorage(ctx, cfg)
	if err != nil {
		return err
	}
	if storageCheck != nil {
		checks["storage"] = storageCheck
	}
	logger.Info("storage ready", slog.String("backend", cfg.Storage.Backend))

	progressStore, redisCheck, closeProgress, err := newProgressStore(ctx, cfg, pgClient)
	if err != nil {
		return err
	}
	defer closeProgress()
	if redisCheck != nil {
		checks["redis"] = redisCheck
	}

	// Pipeline
	tc := transcoder.NewFFmpegTranscoder(ffmpegConfig(cfg.FFmpeg), logger)
	footageRepo := postgres.NewFootageRepository(pgClient.Pool())
	notifier := usecase.NewProgressNotifier(progressStore)
	reconciler := usecase.NewCatalogReconciler(footageRepo, notifier)

	worker := usecase.NewRenditionWorker(tc, store, reconciler, notifier, usecase.RenditionWorkerConfig{
		WorkDir:     cfg.Pipeline.WorkDir,
		KeyPrefix:   usecase.DefaultRenditionPrefix,
		GracePeriod: cfg.Pipeline.ProgressGracePeriod,
	})
	localStrategy := usecase.NewLocalStrategy(worker, cfg.Pipeline.MaxConcurrentEncodes)

	var strategy usecase.RenditionStrategy = localStrategy
	if cfg.Pipeline.Strategy == config.StrategyRemote {
		dispatcher, err := newDispatcher(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer dispatcher.Close()
		if p, ok := dispatcher.(pinger); ok {
			checks["queue"] = p.Ping
		}

		strategy = &usecase.FallbackStrategy{
			Primary: usecase.NewRemoteStrategy(store, dispatcher, usecase.RemoteStrategyConfig{
				Transport:      cfg.Remote.Transport,
				SourcePrefix:   usecase.DefaultSourcePrefix,
				OutputPrefix:   usecase.DefaultRenditionPrefix,
				DeleteOriginal: cfg.Remote.DeleteOriginal,
			}),
			Fallback: localStrategy,
		}
		logger.Info("remote rendition path enabled", slog.String("transport", cfg.Remote.Transport))
	}

	uploadSvc := usecase.NewUploadService(footageRepo, tc, strategy, usecase.UploadServiceConfig{
		UploadDir: cfg.Pipeline.UploadDir,
	})
	progressSvc := usecase.NewProgressService(footageRepo, progressStore, store)
	webhookSvc := usecase.NewWebhookService(reconciler, cfg.Webhook.Secret)
	if cfg.Webhook.Secret == "" {
		logger.Warn("WEBHOOK_SECRET is empty, rendition callbacks will be rejected")
	}

	r := setupRouter(logger, routes{
		health:   handler.NewHealthHandler(checks),
		footage:  handler.NewFootageHandler(uploadSvc, progressSvc, cfg.Server.MaxUploadBytes),
		webhooks: handler.NewWebhookHandler(webhookSvc),
		mediaDir: localMediaDir(store),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	// Local runs are detached from requests; give them the rest of the
	// shutdown window.
	done := make(chan struct{})
	go func() {
		localStrategy.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all local rendition runs completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some rendition runs may not have completed")
	}

	logger.Info("server stopped")
	return nil
}

type routes struct {
	health   *handler.HealthHandler
	footage  *handler.FootageHandler
	webhooks *handler.WebhookHandler
	// mediaDir is served under /media when artifacts live on local disk.
	mediaDir string
}

func setupRouter(logger *slog.Logger, h routes) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/health", h.health.Health)
	r.Handle("/metrics", promhttp.Handler())

	if h.mediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(h.mediaDir))))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/footage", h.footage.Upload)
		r.Get("/footage/{id}", h.footage.Get)
		r.Get("/footage/{id}/progress", h.footage.Progress)
		r.Post("/webhooks/renditions", h.webhooks.Renditions)
	})

	return r
}

func newStorage(ctx context.Context, cfg *config.Config) (repository.StorageBackend, handler.HealthCheck, error) {
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
			return nil, nil, fmt.Errorf("failed to connect to MinIO: %w", err)
		}
		return b, b.Ping, nil
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
			return nil, nil, fmt.Errorf("failed to connect to S3: %w", err)
		}
		return b, b.Ping, nil
	default:
		b, err := storage.NewLocalBackend(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to prepare local storage: %w", err)
		}
		return b, nil, nil
	}
}

// localMediaDir is the directory served under /media, empty unless the
// backend keeps artifacts on the local filesystem.
func localMediaDir(b repository.StorageBackend) string {
	if lb, ok := b.(*storage.LocalBackend); ok {
		return lb.Root()
	}
	return ""
}

func newProgressStore(ctx context.Context, cfg *config.Config, pg *postgres.Client) (repository.ProgressStore, handler.HealthCheck, func(), error) {
	if cfg.Pipeline.ProgressBackend != config.ProgressRedis {
		return postgres.NewProgressRepository(pg.Pool()), nil, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	slog.Info("connected to Redis")

	check := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return cache.NewRedisProgressStore(client, cfg.Pipeline.ProgressTTL), check, func() { _ = client.Close() }, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

type closingDispatcher interface {
	repository.Dispatcher
	io.Closer
}

func newDispatcher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (closingDispatcher, error) {
	if cfg.Remote.Transport == config.TransportAsynq {
		return queue.NewAsynqDispatcher(asynqConfig(cfg)), nil
	}

	client, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	logger.Info("connected to RabbitMQ")
	return client, nil
}

func asynqConfig(cfg *config.Config) queue.AsynqConfig {
	return queue.AsynqConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Remote.Concurrency,
	}
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
