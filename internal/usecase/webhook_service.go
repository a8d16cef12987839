package usecase

import (
	"context"
	"crypto/subtle"

	"github.com/hszk-dev/footage/internal/domain/model"
)

// WebhookService authenticates and applies remote rendition callbacks.
type WebhookService interface {
	// Authenticate returns ErrInvalidWebhookSecret unless secret matches.
	Authenticate(secret string) error

	// Receive applies an authenticated payload to the catalog.
	Receive(ctx context.Context, payload model.WebhookPayload) error
}

type webhookService struct {
	reconciler CatalogReconciler
	secret     []byte
}

// NewWebhookService creates a new WebhookService instance. An empty secret
// rejects every request.
func NewWebhookService(reconciler CatalogReconciler, secret string) WebhookService {
	return &webhookService{
		reconciler: reconciler,
		secret:     []byte(secret),
	}
}

func (s *webhookService) Authenticate(secret string) error {
	if len(s.secret) == 0 || subtle.ConstantTimeCompare([]byte(secret), s.secret) != 1 {
		return ErrInvalidWebhookSecret
	}
	return nil
}

func (s *webhookService) Receive(ctx context.Context, payload model.WebhookPayload) error {
	return s.reconciler.ApplyWebhook(ctx, payload)
}
