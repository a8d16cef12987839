package usecase

import (
	"context"
	"log/slog"

	"github.com/hszk-dev/footage/internal/domain/model"
	"github.com/hszk-dev/footage/internal/domain/repository"
	"github.com/hszk-dev/footage/internal/infrastructure/metrics"
)

// ProgressNotifier reports encoding progress without ever failing the caller.
type ProgressNotifier interface {
	// Notify upserts the entry for (footageID, quality).
	Notify(ctx context.Context, footageID int64, quality string, percent int, status model.ProgressStatus)

	// Clear removes every entry of a footage item.
	Clear(ctx context.Context, footageID int64)
}

type progressNotifier struct {
	store repository.ProgressStore
}

// NewProgressNotifier wraps store so that write failures are logged and counted.
func NewProgressNotifier(store repository.ProgressStore) ProgressNotifier {
	return &progressNotifier{store: store}
}

func (n *progressNotifier) Notify(ctx context.Context, footageID int64, quality string, percent int, status model.ProgressStatus) {
	if err := n.store.Upsert(ctx, footageID, quality, model.ClampPercent(percent), status); err != nil {
		metrics.ProgressWriteFailuresTotal.Inc()
		slog.Warn("failed to write progress",
			"footage_id", footageID,
			"quality", quality,
			"percent", percent,
			"status", status,
			"error", err,
		)
	}
}

func (n *progressNotifier) Clear(ctx context.Context, footageID int64) {
	if err := n.store.ClearAll(ctx, footageID); err != nil {
		metrics.ProgressWriteFailuresTotal.Inc()
		slog.Warn("failed to clear progress",
			"footage_id", footageID,
			"error", err,
		)
	}
}
