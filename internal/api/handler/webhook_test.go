package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hszk-dev/footage/internal/domain/model"
	"github.com/hszk-dev/footage/internal/domain/repository"
	"github.com/hszk-dev/footage/internal/usecase"
)

type mockWebhookService struct {
	secret    string
	receiveFn func(ctx context.Context, payload model.WebhookPayload) error
	received  []model.WebhookPayload
}

func (m *mockWebhookService) Authenticate(secret string) error {
	if secret != m.secret {
		return usecase.ErrInvalidWebhookSecret
	}
	return nil
}

func (m *mockWebhookService) Receive(ctx context.Context, payload model.WebhookPayload) error {
	m.received = append(m.received, payload)
	if m.receiveFn != nil {
		return m.receiveFn(ctx, payload)
	}
	return nil
}

const completedBody = `{
	"itemId": 5,
	"status": "completed",
	"perQualityResults": {"240p": {"success": true, "filename": "renditions/5/a_240p.mp4"}},
	"mainFilename": "renditions/5/a_240p.mp4",
	"filename_240p": "renditions/5/a_240p.mp4",
	"filename_360p": null
}`

func TestWebhookHandler_Renditions(t *testing.T) {
	tests := []struct {
		name           string
		secret         string
		body           string
		receiveErr     error
		wantStatusCode int
		wantReceived   int
	}{
		{"accepted", "s3cret", completedBody, nil, http.StatusOK, 1},
		{"wrong secret", "guess", completedBody, nil, http.StatusUnauthorized, 0},
		{"missing secret", "", completedBody, nil, http.StatusUnauthorized, 0},
		{"malformed body", "s3cret", `{"itemId":`, nil, http.StatusBadRequest, 0},
		{"invalid payload", "s3cret", completedBody, usecase.ErrInvalidWebhookPayload, http.StatusBadRequest, 1},
		{"unknown footage", "s3cret", completedBody, repository.ErrFootageNotFound, http.StatusNotFound, 1},
		{"store failure", "s3cret", completedBody, errors.New("db down"), http.StatusInternalServerError, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockWebhookService{
				secret: "s3cret",
				receiveFn: func(ctx context.Context, payload model.WebhookPayload) error {
					return tt.receiveErr
				},
			}
			h := NewWebhookHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/renditions", strings.NewReader(tt.body))
			if tt.secret != "" {
				req.Header.Set(model.WebhookSecretHeader, tt.secret)
			}
			rec := httptest.NewRecorder()

			h.Renditions(rec, req)

			if rec.Code != tt.wantStatusCode {
				t.Errorf("expected status %d, got %d", tt.wantStatusCode, rec.Code)
			}
			if len(svc.received) != tt.wantReceived {
				t.Errorf("payloads received = %d, want %d", len(svc.received), tt.wantReceived)
			}
		})
	}
}

func TestWebhookHandler_Renditions_DecodesPayload(t *testing.T) {
	svc := &mockWebhookService{secret: "s3cret"}
	h := NewWebhookHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/renditions", strings.NewReader(completedBody))
	req.Header.Set(model.WebhookSecretHeader, "s3cret")
	rec := httptest.NewRecorder()

	h.Renditions(rec, req)

	var resp WebhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Status != "ok" {
		t.Fatalf("response = %s, %v", rec.Body.String(), err)
	}

	p := svc.received[0]
	if p.FootageID != 5 || p.Status != model.WebhookCompleted {
		t.Errorf("payload = %+v", p)
	}
	got := p.QualityFilenames()
	if len(got) != 1 || got[model.Quality240p] != "renditions/5/a_240p.mp4" {
		t.Errorf("filenames = %v, want only 240p", got)
	}
}
