package ingestion

import (
	"context"
	"fmt"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/storage"
)

// StoreFeed serves the candle index and the analysis layer from storage.
type StoreFeed struct {
	candles storage.CandleStore
	events  storage.EventStore
}

// NewStoreFeed creates a feed over the given stores.
func NewStoreFeed(candles storage.CandleStore, events storage.EventStore) *StoreFeed {
	return &StoreFeed{candles: candles, events: events}
}

// FetchCandles returns all M1 candles for symbol in time order.
func (f *StoreFeed) FetchCandles(ctx context.Context, symbol string) ([]*domain.Candle, error) {
	candles, err := f.candles.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch candles %s: %w", symbol, err)
	}
	return candles, nil
}

// FetchEvents returns events matching filter in time order.
func (f *StoreFeed) FetchEvents(ctx context.Context, filter storage.EventFilter) ([]*domain.CalendarEvent, error) {
	events, err := f.events.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	return events, nil
}

// EventTypes lists the distinct event types matching filter.
func (f *StoreFeed) EventTypes(ctx context.Context, filter storage.EventFilter) ([]string, error) {
	return f.events.EventTypes(ctx, filter)
}
