package model

import "errors"

// Error taxonomy shared by the store, the API and the client. Callers match
// with errors.Is; the wrapped message carries the detail.
var (
	// ErrValidation means caller-supplied input violates a precondition.
	// The operation was never attempted.
	ErrValidation = errors.New("validation failed")

	// ErrConflict means a claim lost a race or a referenced entity is in an
	// incompatible state. Re-read fresh state before trying again.
	ErrConflict = errors.New("conflict")

	// ErrNotFound means a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
)
