package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrQuotaExceeded is returned when a write would exceed local storage capacity
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoScope is returned when a scoped operation runs without a resolved tenant scope
	ErrNoScope = errors.New("tenant scope not resolved")
)
