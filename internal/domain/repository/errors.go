package repository

import "errors"

var (
	// ErrFootageNotFound is returned when a footage item cannot be found.
	ErrFootageNotFound = errors.New("footage not found")

	// ErrObjectNotFound is returned when a storage key does not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrBucketNotFound is returned when the configured bucket is missing.
	ErrBucketNotFound = errors.New("bucket not found")
)
