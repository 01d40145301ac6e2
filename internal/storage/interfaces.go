package storage

import (
	"context"
	"time"

	"event-impact-lab/internal/domain"
)

// CandleStore provides access to candles storage.
type CandleStore interface {
	// UpsertBulk writes candles in one transaction. Idempotent on
	// (symbol, timeframe, time): a repeated row replaces the stored values.
	UpsertBulk(ctx context.Context, candles []*domain.Candle) error

	// GetBySymbol retrieves all M1 candles for a symbol, ordered by time ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.Candle, error)

	// GetByTimeRange retrieves M1 candles for a symbol within [start, end), ordered by time ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.Candle, error)

	// Count returns the number of stored candles for a symbol.
	Count(ctx context.Context, symbol string) (int64, error)

	// Symbols returns every symbol with at least one candle, sorted.
	Symbols(ctx context.Context) ([]string, error)
}

// EventFilter selects calendar events. Zero values do not filter.
// Implementations must bind these as query parameters.
type EventFilter struct {
	Currencies  []string      // match any of these currency codes or symbols
	Description string        // exact event-type key
	CalendarID  string        // source calendar
	MinImpact   domain.Impact // lowest impact tier to include
	From        time.Time     // inclusive
	To          time.Time     // exclusive
}

// Matches reports whether e passes the filter.
func (f EventFilter) Matches(e *domain.CalendarEvent) bool {
	if len(f.Currencies) > 0 {
		found := false
		for _, c := range f.Currencies {
			if c == e.Currency {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Description != "" && f.Description != e.Description {
		return false
	}
	if f.CalendarID != "" && f.CalendarID != e.CalendarID {
		return false
	}
	if f.MinImpact != "" && e.Impact.Rank() < f.MinImpact.Rank() {
		return false
	}
	if !f.From.IsZero() && e.Time.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.Time.Before(f.To) {
		return false
	}
	return true
}

// EventStore provides access to calendar_events storage.
type EventStore interface {
	// UpsertBulk writes events in one transaction. Idempotent on
	// (currency, time, description).
	UpsertBulk(ctx context.Context, events []*domain.CalendarEvent) error

	// Query retrieves events matching filter, ordered by time ASC.
	Query(ctx context.Context, filter EventFilter) ([]*domain.CalendarEvent, error)

	// EventTypes returns the distinct descriptions matching filter, sorted.
	EventTypes(ctx context.Context, filter EventFilter) ([]string, error)
}

// SymbolConfigStore provides access to per-symbol pip overrides.
type SymbolConfigStore interface {
	// PipOverrides returns every stored symbol -> pip value override.
	PipOverrides(ctx context.Context) (map[string]float64, error)

	// SetPipValue stores an override. Returns ErrInvalidInput for pip <= 0.
	SetPipValue(ctx context.Context, symbol string, pip float64) error
}

// BacktestStore provides access to backtest_runs storage (append-only).
type BacktestStore interface {
	// Insert adds a run with its trades. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.BacktestResult) error

	// GetByID retrieves a run with its trades. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestResult, error)

	// ListBySymbol retrieves runs for a symbol (optionally one event type),
	// newest first. Trades are not populated.
	ListBySymbol(ctx context.Context, symbol, eventType string) ([]*domain.BacktestResult, error)
}
