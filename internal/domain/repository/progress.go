package repository

import (
	"context"

	"github.com/hszk-dev/footage/internal/domain/model"
)

// ProgressStore persists per-(footage, quality) encoding progress.
// Writes are last-write-wins per key and never create duplicates.
type ProgressStore interface {
	// Upsert inserts or updates the entry for (footageID, quality).
	Upsert(ctx context.Context, footageID int64, quality string, percent int, status model.ProgressStatus) error

	// ReadAll returns every live entry for a footage item keyed by quality.
	ReadAll(ctx context.Context, footageID int64) (map[string]model.ProgressEntry, error)

	// ClearAll deletes every entry for a footage item.
	ClearAll(ctx context.Context, footageID int64) error
}
