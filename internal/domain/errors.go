package domain

import "errors"

// Error taxonomy shared by the analysis core and its boundaries.
var (
	// ErrNotFound is returned when a symbol was never loaded or an event type
	// has zero occurrences.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed requests (hour outside 0-23,
	// quarter outside 0-3, empty symbol list).
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientData is returned when no occurrence carries enough
	// candles to contribute to an aggregate.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrStorage wraps failures of the underlying fetch or transaction.
	ErrStorage = errors.New("storage failure")
)
