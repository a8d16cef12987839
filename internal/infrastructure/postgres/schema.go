package postgres

import (
	"context"
	"fmt"
)

const schema = `
	CREATE TABLE IF NOT EXISTS footage (
		id                BIGSERIAL PRIMARY KEY,
		title             TEXT NOT NULL DEFAULT '',
		source_filename   TEXT NOT NULL,
		filename          TEXT NOT NULL,
		filename_240p     TEXT,
		filename_360p     TEXT,
		filename_480p     TEXT,
		filename_720p     TEXT,
		filename_1080p    TEXT,
		processing_status TEXT NOT NULL DEFAULT 'processing',
		duration_seconds  DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_footage_status ON footage(processing_status);

	-- At most one progress row per (footage, quality).
	CREATE TABLE IF NOT EXISTS encoding_progress (
		footage_id BIGINT NOT NULL REFERENCES footage(id) ON DELETE CASCADE,
		quality    TEXT NOT NULL,
		percent    INTEGER NOT NULL DEFAULT 0 CHECK (percent BETWEEN 0 AND 100),
		status     TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (footage_id, quality)
	);
`

// EnsureSchema creates the catalog and progress tables if they do not exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	return ensureSchema(ctx, c.pool)
}

func ensureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
