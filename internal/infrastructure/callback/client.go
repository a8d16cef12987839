// Package callback posts remote rendition results back to the API.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hszk-dev/footage/internal/domain/model"
)

// SecretHeader carries the shared webhook secret.
const SecretHeader = model.WebhookSecretHeader

// DefaultTimeout bounds a single callback request.
const DefaultTimeout = 30 * time.Second

// Client sends WebhookPayloads to the configured callback URL.
type Client struct {
	url        string
	secret     string
	httpClient *http.Client
}

// NewClient creates a callback client. A zero timeout uses DefaultTimeout.
func NewClient(url, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:        url,
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send POSTs payload once. Any non-2xx response is an error; there is no retry.
func (c *Client) Send(ctx context.Context, payload model.WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook rejected with status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
