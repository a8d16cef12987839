package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hszk-dev/footage/internal/domain/model"
	"github.com/hszk-dev/footage/internal/domain/repository"
)

// CatalogReconciler applies rendition results to the footage record.
type CatalogReconciler interface {
	// Begin marks the footage as processing.
	Begin(ctx context.Context, footageID int64) error

	// ApplyRendition records one produced artifact on footage and persists
	// it together with the recomputed main filename.
	ApplyRendition(ctx context.Context, footage *model.Footage, quality, key string) error

	// ApplyWebhook applies the summary of a remote run.
	// Repeated deliveries for the same item are applied again.
	ApplyWebhook(ctx context.Context, payload model.WebhookPayload) error

	// Finish sets the terminal status: completed when at least one quality
	// succeeded, failed otherwise.
	Finish(ctx context.Context, footageID int64, succeeded int) (model.ProcessingStatus, error)

	// Abort undoes ApplyRendition for footage: every quality filename is
	// cleared, the main filename returns to the source and the footage is
	// marked failed.
	Abort(ctx context.Context, footage *model.Footage) error
}

type catalogReconciler struct {
	repo     repository.FootageRepository
	notifier ProgressNotifier
}

// NewCatalogReconciler creates a new CatalogReconciler instance.
func NewCatalogReconciler(repo repository.FootageRepository, notifier ProgressNotifier) CatalogReconciler {
	return &catalogReconciler{
		repo:     repo,
		notifier: notifier,
	}
}

func (r *catalogReconciler) Begin(ctx context.Context, footageID int64) error {
	if err := r.repo.UpdateStatus(ctx, footageID, model.StatusProcessing); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return nil
}

func (r *catalogReconciler) ApplyRendition(ctx context.Context, footage *model.Footage, quality, key string) error {
	if err := footage.SetRendition(quality, key); err != nil {
		return fmt.Errorf("set rendition %s: %w", quality, err)
	}

	if err := r.repo.UpdateRendition(ctx, footage.ID, quality, key, footage.Filename); err != nil {
		return fmt.Errorf("update rendition %s: %w", quality, err)
	}

	return nil
}

func (r *catalogReconciler) ApplyWebhook(ctx context.Context, payload model.WebhookPayload) error {
	if payload.FootageID <= 0 {
		return fmt.Errorf("%w: missing item id", ErrInvalidWebhookPayload)
	}

	switch payload.Status {
	case model.WebhookCompleted:
		var main string
		if payload.MainFilename != nil {
			main = *payload.MainFilename
		}

		if err := r.repo.MergeFilenames(ctx, payload.FootageID, payload.QualityFilenames(), main); err != nil {
			return fmt.Errorf("merge filenames: %w", err)
		}
		if err := r.repo.UpdateStatus(ctx, payload.FootageID, model.StatusCompleted); err != nil {
			return fmt.Errorf("mark completed: %w", err)
		}
		r.notifier.Clear(ctx, payload.FootageID)
		return nil

	case model.WebhookFailed:
		slog.Error("remote rendition failed",
			"footage_id", payload.FootageID,
			"error", payload.Error,
		)
		if err := r.repo.UpdateStatus(ctx, payload.FootageID, model.StatusFailed); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidWebhookPayload, payload.Status)
	}
}

func (r *catalogReconciler) Finish(ctx context.Context, footageID int64, succeeded int) (model.ProcessingStatus, error) {
	status := model.StatusCompleted
	if succeeded == 0 {
		status = model.StatusFailed
	}

	if err := r.repo.UpdateStatus(ctx, footageID, status); err != nil {
		return status, fmt.Errorf("mark %s: %w", status, err)
	}

	return status, nil
}

func (r *catalogReconciler) Abort(ctx context.Context, footage *model.Footage) error {
	footage.Renditions = make(map[string]string)
	footage.Filename = footage.SourceFilename

	var errs []error
	if err := r.repo.ResetRenditions(ctx, footage.ID, footage.SourceFilename); err != nil {
		errs = append(errs, fmt.Errorf("reset renditions: %w", err))
	}
	if err := r.repo.UpdateStatus(ctx, footage.ID, model.StatusFailed); err != nil {
		errs = append(errs, fmt.Errorf("mark failed: %w", err))
	}
	return errors.Join(errs...)
}
