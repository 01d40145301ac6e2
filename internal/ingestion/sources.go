package ingestion

import (
	"context"

	"event-impact-lab/internal/domain"
)

// CandleSource provides raw candles from an external source.
type CandleSource interface {
	// Name identifies the source in logs (file path, feed name).
	Name() string
	// FetchCandles returns every candle the source holds.
	// Rows may be unordered; the importer enforces ordering per batch.
	FetchCandles(ctx context.Context) ([]*domain.Candle, error)
}

// EventSource provides raw calendar events from an external source.
type EventSource interface {
	Name() string
	FetchEvents(ctx context.Context) ([]*domain.CalendarEvent, error)
}
