package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/hszk-dev/footage/internal/domain/model"
	"github.com/hszk-dev/footage/internal/domain/repository"
)

// ProgressRepository implements repository.ProgressStore on the
// encoding_progress table.
type ProgressRepository struct {
	db DBTX
}

// NewProgressRepository creates a new ProgressRepository instance.
func NewProgressRepository(db DBTX) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Upsert relies on UNIQUE(footage_id, quality) so concurrent writers for the
// same key collapse into one row, last write wins.
func (r *ProgressRepository) Upsert(ctx context.Context, footageID int64, quality string, percent int, status model.ProgressStatus) error {
	const query = `
		INSERT INTO encoding_progress (footage_id, quality, percent, status, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (footage_id, quality)
		DO UPDATE SET percent = EXCLUDED.percent, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(ctx, query, footageID, quality, model.ClampPercent(percent), status.String(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert progress %s: %w", quality, err)
	}

	return nil
}

// ReadAll returns every progress row of a footage item keyed by quality.
func (r *ProgressRepository) ReadAll(ctx context.Context, footageID int64) (map[string]model.ProgressEntry, error) {
	const query = `
		SELECT quality, percent, status, updated_at
		FROM encoding_progress
		WHERE footage_id = $1
	`

	rows, err := r.db.Query(ctx, query, footageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]model.ProgressEntry)
	for rows.Next() {
		var (
			entry  model.ProgressEntry
			status string
		)
		if err := rows.Scan(&entry.Quality, &entry.Percent, &status, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		entry.FootageID = footageID
		entry.Status = model.ProgressStatus(status)
		entries[entry.Quality] = entry
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress: %w", err)
	}

	return entries, nil
}

// ClearAll deletes every progress row of a footage item.
func (r *ProgressRepository) ClearAll(ctx context.Context, footageID int64) error {
	const query = `DELETE FROM encoding_progress WHERE footage_id = $1`

	if _, err := r.db.Exec(ctx, query, footageID); err != nil {
		return fmt.Errorf("failed to clear progress: %w", err)
	}

	return nil
}

// Compile-time verification that ProgressRepository implements repository.ProgressStore.
var _ repository.ProgressStore = (*ProgressRepository)(nil)
