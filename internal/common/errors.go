// Package common defines shared constants and sentinel errors used across
// the SapaTrack sync core. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Storage-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrQuotaExceeded is returned by the local cache when a write would
	// exceed the configured capacity ceiling. Persistence is best-effort:
	// callers are expected to ignore it and keep operating in memory.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// Reconciler flow control.
	ErrSyncInProgress = errors.New("sync already in progress")

	// Ingestion flow control. A duplicate event is a benign outcome, not a
	// failure.
	ErrDuplicateEvent = errors.New("duplicate event")
)
