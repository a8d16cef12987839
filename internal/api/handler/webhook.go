package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hszk-dev/footage/internal/domain/model"
	"github.com/hszk-dev/footage/internal/domain/repository"
	"github.com/hszk-dev/footage/internal/infrastructure/metrics"
	"github.com/hszk-dev/footage/internal/usecase"
)

// maxWebhookBytes bounds a callback body.
const maxWebhookBytes = 1 << 20

type WebhookResponse struct {
	Status string `json:"status"`
}

// WebhookHandler receives rendition callbacks from the remote worker.
type WebhookHandler struct {
	svc usecase.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(svc usecase.WebhookService) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

// Renditions handles POST /v1/webhooks/renditions
func (h *WebhookHandler) Renditions(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Authenticate(r.Header.Get(model.WebhookSecretHeader)); err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues(metrics.WebhookUnauthorized).Inc()
		Error(w, http.StatusUnauthorized, "unauthorized", "Invalid webhook secret")
		return
	}

	var payload model.WebhookPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBytes)).Decode(&payload); err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues(metrics.WebhookBadRequest).Inc()
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := h.svc.Receive(r.Context(), payload); err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidWebhookPayload):
			metrics.WebhookRequestsTotal.WithLabelValues(metrics.WebhookBadRequest).Inc()
			Error(w, http.StatusBadRequest, "invalid_payload", err.Error())
		case errors.Is(err, repository.ErrFootageNotFound):
			metrics.WebhookRequestsTotal.WithLabelValues(metrics.WebhookNotFound).Inc()
			Error(w, http.StatusNotFound, "footage_not_found", "Footage not found")
		default:
			metrics.WebhookRequestsTotal.WithLabelValues(metrics.WebhookError).Inc()
			slog.Error("failed to apply rendition webhook",
				"footage_id", payload.FootageID,
				"error", err,
			)
			Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		}
		return
	}

	metrics.WebhookRequestsTotal.WithLabelValues(metrics.WebhookOK).Inc()
	JSON(w, http.StatusOK, WebhookResponse{Status: "ok"})
}
