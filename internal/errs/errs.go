// Package errs defines the error kinds the core surfaces to its callers.
// Callers classify with errors.Is; everything else wraps with %w.
package errs

import "errors"

var (
	// ErrNotFound covers missing words, progress entries, and the absence
	// of an active placement session.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals a concurrent modification. Safe to retry after
	// re-reading the current state.
	ErrConflict = errors.New("conflict")

	// ErrExhausted means placement cannot find any remaining candidate word.
	ErrExhausted = errors.New("exhausted")

	// ErrInvalidArgument is raised at the boundary before any pure
	// component runs (quality outside 0-5, unit out of range, bad limit).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInternal wraps storage failures.
	ErrInternal = errors.New("internal")
)
