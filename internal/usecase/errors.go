package usecase

import "errors"

var (
	// ErrNormalizationFailed is returned when an upload cannot be converted
	// into a playable file. No catalog row exists for it.
	ErrNormalizationFailed = errors.New("normalization failed")

	// ErrDispatchFailed is returned when a job could not be handed to the
	// remote execution path.
	ErrDispatchFailed = errors.New("remote dispatch failed")

	// ErrInvalidWebhookSecret is returned when a callback carries the wrong secret.
	ErrInvalidWebhookSecret = errors.New("invalid webhook secret")

	// ErrInvalidWebhookPayload is returned for callbacks with an unknown status
	// or a missing item id.
	ErrInvalidWebhookPayload = errors.New("invalid webhook payload")
)
