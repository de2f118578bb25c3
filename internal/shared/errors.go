package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates the acting identity lacks the required role.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStaleState indicates an optimistic status update lost the race:
	// the stored status no longer matches the expected prior status.
	ErrStaleState = errors.New("stale state")
	// ErrValidation indicates user-correctable bad input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
