package usecase

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hszk-dev/footage/internal/domain/model"
	"github.com/hszk-dev/footage/internal/domain/repository"
	"github.com/hszk-dev/footage/internal/infrastructure/metrics"
)

// ProgressView is the polling representation of one quality.
type ProgressView struct {
	Progress int    `json:"progress"`
	Status   string `json:"status"`
}

// RenditionView is one produced artifact with its resolved URL.
type RenditionView struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// FootageView is a catalog row with storage keys resolved to URLs.
type FootageView struct {
	ID              int64                    `json:"id"`
	Title           string                   `json:"title"`
	Filename        string                   `json:"filename"`
	URL             string                   `json:"url"`
	Renditions      map[string]RenditionView `json:"renditions"`
	Status          string                   `json:"processing_status"`
	DurationSeconds float64                  `json:"duration_seconds"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// ProgressService answers pollers.
type ProgressService interface {
	// GetProgress returns the live progress entries of a footage item keyed
	// by quality label. Items without entries yield an empty map.
	GetProgress(ctx context.Context, footageID int64) (map[string]ProgressView, error)

	// GetFootage returns the catalog row with URLs resolved.
	// Returns repository.ErrFootageNotFound if it does not exist.
	GetFootage(ctx context.Context, footageID int64) (*FootageView, error)
}

type progressService struct {
	repo    repository.FootageRepository
	store   repository.ProgressStore
	storage repository.StorageBackend

	// sfGroup coalesces concurrent polls for the same item.
	sfGroup singleflight.Group
}

// NewProgressService creates a new ProgressService instance.
func NewProgressService(
	repo repository.FootageRepository,
	store repository.ProgressStore,
	storage repository.StorageBackend,
) ProgressService {
	return &progressService{
		repo:    repo,
		store:   store,
		storage: storage,
	}
}

func (s *progressService) GetProgress(ctx context.Context, footageID int64) (map[string]ProgressView, error) {
	result, err := s.do("progress:"+strconv.FormatInt(footageID, 10), func() (any, error) {
		entries, err := s.store.ReadAll(ctx, footageID)
		if err != nil {
			return nil, fmt.Errorf("read progress: %w", err)
		}

		views := make(map[string]ProgressView, len(entries))
		for label, entry := range entries {
			views[label] = ProgressView{
				Progress: model.ClampPercent(entry.Percent),
				Status:   entry.Status.String(),
			}
		}
		return views, nil
	})
	if err != nil {
		return nil, err
	}

	// Callers sharing a flight must not share the map.
	return maps.Clone(result.(map[string]ProgressView)), nil
}

func (s *progressService) GetFootage(ctx context.Context, footageID int64) (*FootageView, error) {
	result, err := s.do("footage:"+strconv.FormatInt(footageID, 10), func() (any, error) {
		return s.repo.GetByID(ctx, footageID)
	})
	if err != nil {
		return nil, err
	}

	return s.view(result.(*model.Footage)), nil
}

func (s *progressService) do(key string, fn func() (any, error)) (any, error) {
	result, err, shared := s.sfGroup.Do(key, fn)

	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}

	return result, err
}

// view builds a fresh FootageView so shared results are never mutated.
func (s *progressService) view(f *model.Footage) *FootageView {
	v := &FootageView{
		ID:              f.ID,
		Title:           f.Title,
		Filename:        f.Filename,
		Renditions:      make(map[string]RenditionView, len(f.Renditions)),
		Status:          f.Status.String(),
		DurationSeconds: f.DurationSeconds,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
	// The source fallback lives in the upload directory, not in storage.
	if f.Filename != "" && f.Filename != f.SourceFilename {
		v.URL = s.storage.URLFor(f.Filename)
	}
	for _, preset := range model.ProcessingOrder() {
		if key, ok := f.Rendition(preset.Label); ok {
			v.Renditions[preset.Label] = RenditionView{Filename: key, URL: s.storage.URLFor(key)}
		}
	}
	return v
}
