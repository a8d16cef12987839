package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/hszk-dev/footage/internal/domain/model"
	"github.com/hszk-dev/footage/internal/domain/repository"
)

// TaskRemoteRendition is the asynq task type carrying a RemoteJob.
const TaskRemoteRendition = "footage:renditions"

// AsynqConfig holds configuration for the Redis-backed asynq transport.
type AsynqConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Queue         string
	Concurrency   int
}

func (c AsynqConfig) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

func (c AsynqConfig) queue() string {
	if c.Queue == "" {
		return "footage"
	}
	return c.Queue
}

// enqueuer abstracts *asynq.Client for testability.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// AsynqDispatcher enqueues RemoteJobs as asynq tasks.
type AsynqDispatcher struct {
	client enqueuer
	queue  string
}

// NewAsynqDispatcher creates a dispatcher connected to the configured Redis.
func NewAsynqDispatcher(cfg AsynqConfig) *AsynqDispatcher {
	return &AsynqDispatcher{
		client: asynq.NewClient(cfg.redisOpt()),
		queue:  cfg.queue(),
	}
}

// Dispatch enqueues the job once. Failed tasks are never retried.
func (d *AsynqDispatcher) Dispatch(ctx context.Context, job model.RemoteJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = d.client.EnqueueContext(ctx,
		asynq.NewTask(TaskRemoteRendition, payload),
		asynq.Queue(d.queue),
		asynq.MaxRetry(0),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	return nil
}

// Close releases the Redis connection.
func (d *AsynqDispatcher) Close() error {
	return d.client.Close()
}

// taskServer abstracts *asynq.Server for testability.
type taskServer interface {
	Start(handler asynq.Handler) error
	Shutdown()
}

// AsynqConsumer runs an asynq server that feeds RemoteJobs to a handler.
type AsynqConsumer struct {
	server taskServer
	logger *slog.Logger
}

// NewAsynqConsumer creates a consumer processing at most cfg.Concurrency jobs at once.
func NewAsynqConsumer(cfg AsynqConfig, logger *slog.Logger) *AsynqConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	srv := asynq.NewServer(cfg.redisOpt(), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{cfg.queue(): 1},
	})
	return &AsynqConsumer{server: srv, logger: logger}
}

// ConsumeRemoteJobs starts the server and blocks until ctx is cancelled.
func (c *AsynqConsumer) ConsumeRemoteJobs(ctx context.Context, handler func(ctx context.Context, job model.RemoteJob) error) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskRemoteRendition, c.taskHandler(handler))

	if err := c.server.Start(mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}

	<-ctx.Done()
	c.server.Shutdown()
	return ctx.Err()
}

func (c *AsynqConsumer) taskHandler(handler func(ctx context.Context, job model.RemoteJob) error) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var job model.RemoteJob
		if err := json.Unmarshal(t.Payload(), &job); err != nil {
			c.logger.Error("discarding malformed remote job", slog.String("error", err.Error()))
			return fmt.Errorf("decode job: %v: %w", err, asynq.SkipRetry)
		}

		if err := handler(ctx, job); err != nil {
			c.logger.Error("remote job failed",
				slog.Int64("footage_id", job.FootageID),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		return nil
	}
}

// Close is a no-op; the server stops when the consume context ends.
func (c *AsynqConsumer) Close() error {
	return nil
}

// Compile-time verification of the queue contracts.
var (
	_ repository.Dispatcher  = (*AsynqDispatcher)(nil)
	_ repository.JobConsumer = (*AsynqConsumer)(nil)
)
