package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hszk-dev/footage/internal/domain/model"
	"github.com/hszk-dev/footage/internal/domain/repository"
)

// renditionColumns maps quality labels to their filename column.
// Column names are never built from caller input.
var renditionColumns = map[string]string{
	model.Quality240p:  "filename_240p",
	model.Quality360p:  "filename_360p",
	model.Quality480p:  "filename_480p",
	model.Quality720p:  "filename_720p",
	model.Quality1080p: "filename_1080p",
}

const footageColumns = `id, title, source_filename, filename,
	filename_240p, filename_360p, filename_480p, filename_720p, filename_1080p,
	processing_status, duration_seconds, created_at, updated_at`

// FootageRepository implements repository.FootageRepository using PostgreSQL.
type FootageRepository struct {
	db DBTX
}

// NewFootageRepository creates a new FootageRepository instance.
func NewFootageRepository(db DBTX) *FootageRepository {
	return &FootageRepository{db: db}
}

// Create inserts a footage row and stores the generated ID on footage.
func (r *FootageRepository) Create(ctx context.Context, footage *model.Footage) error {
	const query = `
		INSERT INTO footage (title, source_filename, filename, processing_status, duration_seconds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		footage.Title,
		footage.SourceFilename,
		footage.Filename,
		footage.Status.String(),
		footage.DurationSeconds,
		footage.CreatedAt,
		footage.UpdatedAt,
	).Scan(&footage.ID)
	if err != nil {
		return fmt.Errorf("failed to create footage: %w", err)
	}

	return nil
}

// GetByID retrieves a footage row with its rendition filenames.
func (r *FootageRepository) GetByID(ctx context.Context, id int64) (*model.Footage, error) {
	query := `SELECT ` + footageColumns + ` FROM footage WHERE id = $1`

	var (
		f         model.Footage
		status    string
		filenames [5]*string
	)

	err := r.db.QueryRow(ctx, query, id).Scan(
		&f.ID,
		&f.Title,
		&f.SourceFilename,
		&f.Filename,
		&filenames[0],
		&filenames[1],
		&filenames[2],
		&filenames[3],
		&filenames[4],
		&status,
		&f.DurationSeconds,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrFootageNotFound
		}
		return nil, fmt.Errorf("failed to get footage by ID: %w", err)
	}

	f.Status = model.ProcessingStatus(status)
	f.Renditions = make(map[string]string)
	for i, preset := range model.ProcessingOrder() {
		if filenames[i] != nil && *filenames[i] != "" {
			f.Renditions[preset.Label] = *filenames[i]
		}
	}

	return &f, nil
}

// UpdateRendition writes a single quality filename and the main filename.
func (r *FootageRepository) UpdateRendition(ctx context.Context, id int64, quality, filename, mainFilename string) error {
	column, ok := renditionColumns[quality]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrUnknownQuality, quality)
	}

	query := fmt.Sprintf(`
		UPDATE footage
		SET %s = $2, filename = $3, updated_at = $4
		WHERE id = $1
	`, column)

	tag, err := r.db.Exec(ctx, query, id, filename, mainFilename, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update rendition %s: %w", quality, err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrFootageNotFound
	}

	return nil
}

// MergeFilenames writes the given quality filenames in one statement.
// Columns for qualities absent from renditions keep their value.
func (r *FootageRepository) MergeFilenames(ctx context.Context, id int64, renditions map[string]string, mainFilename string) error {
	for label := range renditions {
		if _, ok := renditionColumns[label]; !ok {
			return fmt.Errorf("%w: %s", model.ErrUnknownQuality, label)
		}
	}

	sets := []string{"updated_at = $2"}
	args := []any{id, time.Now()}

	for _, preset := range model.ProcessingOrder() {
		filename, ok := renditions[preset.Label]
		if !ok {
			continue
		}
		args = append(args, filename)
		sets = append(sets, fmt.Sprintf("%s = $%d", renditionColumns[preset.Label], len(args)))
	}

	if mainFilename != "" {
		args = append(args, mainFilename)
		sets = append(sets, fmt.Sprintf("filename = $%d", len(args)))
	}

	query := `UPDATE footage SET ` + strings.Join(sets, ", ") + ` WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to merge filenames: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrFootageNotFound
	}

	return nil
}

// ResetRenditions clears every quality filename and restores mainFilename.
func (r *FootageRepository) ResetRenditions(ctx context.Context, id int64, mainFilename string) error {
	const query = `
		UPDATE footage
		SET filename_240p = NULL, filename_360p = NULL, filename_480p = NULL,
			filename_720p = NULL, filename_1080p = NULL,
			filename = $2, updated_at = $3
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, mainFilename, time.Now())
	if err != nil {
		return fmt.Errorf("failed to reset renditions: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrFootageNotFound
	}

	return nil
}

// UpdateStatus updates only the processing status of a footage row.
func (r *FootageRepository) UpdateStatus(ctx context.Context, id int64, status model.ProcessingStatus) error {
	const query = `
		UPDATE footage
		SET processing_status = $2, updated_at = $3
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, status.String(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to update footage status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrFootageNotFound
	}

	return nil
}

// Compile-time verification that FootageRepository implements repository.FootageRepository.
var _ repository.FootageRepository = (*FootageRepository)(nil)
