package repository

import (
	"context"

	"github.com/hszk-dev/footage/internal/domain/model"
)

// FootageRepository defines the catalog operations the rendition pipeline needs.
// Implementations should be provided by the infrastructure layer (e.g., PostgreSQL).
type FootageRepository interface {
	// Create persists a new footage row and assigns its ID.
	Create(ctx context.Context, footage *model.Footage) error

	// GetByID retrieves a footage item.
	// Returns ErrFootageNotFound if it does not exist.
	GetByID(ctx context.Context, id int64) (*model.Footage, error)

	// UpdateRendition writes one quality filename together with the
	// recomputed main filename.
	UpdateRendition(ctx context.Context, id int64, quality, filename, mainFilename string) error

	// MergeFilenames writes every given quality filename and, when non-empty,
	// the main filename. Qualities not present in the map are left untouched.
	MergeFilenames(ctx context.Context, id int64, renditions map[string]string, mainFilename string) error

	// ResetRenditions clears every quality filename and sets the main
	// filename back to mainFilename.
	ResetRenditions(ctx context.Context, id int64, mainFilename string) error

	// UpdateStatus updates only processing_status.
	UpdateStatus(ctx context.Context, id int64, status model.ProcessingStatus) error
}
