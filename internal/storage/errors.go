package storage

import (
	"errors"
	"fmt"

	"event-impact-lab/internal/domain"
)

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	// It is the domain sentinel so callers need only one errors.Is check.
	ErrNotFound = domain.ErrNotFound

	// ErrDuplicateKey is returned when inserting a record whose key exists
	// into an append-only store (backtest runs).
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = fmt.Errorf("%w: invalid input", domain.ErrValidation)
)
