package repository

import (
	"context"

	"github.com/hszk-dev/footage/internal/domain/model"
)

// Dispatcher hands a RemoteJob to the remote compute path.
// A returned error means the job was not handed off; processing errors are
// reported later through the webhook.
type Dispatcher interface {
	Dispatch(ctx context.Context, job model.RemoteJob) error
}

// JobConsumer delivers RemoteJobs to a handler on the remote side.
// It blocks until ctx is cancelled or the transport fails.
type JobConsumer interface {
	ConsumeRemoteJobs(ctx context.Context, handler func(ctx context.Context, job model.RemoteJob) error) error
	Close() error
}
