// Package stub provides fixed in-memory sources for tests.
package stub

import (
	"context"

	"event-impact-lab/internal/domain"
)

// CandleSource returns fixed candles. Rows can be intentionally unordered
// to test sorting. Implements ingestion.CandleSource.
type CandleSource struct {
	name    string
	candles []*domain.Candle
	err     error
}

// NewCandleSource creates a stub candle source.
func NewCandleSource(name string, candles []*domain.Candle) *CandleSource {
	return &CandleSource{name: name, candles: candles}
}

// NewFailingCandleSource creates a source whose fetch always fails.
func NewFailingCandleSource(name string, err error) *CandleSource {
	return &CandleSource{name: name, err: err}
}

// Name returns the configured name.
func (s *CandleSource) Name() string { return s.name }

// FetchCandles returns copies to prevent mutation.
func (s *CandleSource) FetchCandles(_ context.Context) ([]*domain.Candle, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*domain.Candle, 0, len(s.candles))
	for _, c := range s.candles {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// EventSource returns fixed events. Implements ingestion.EventSource.
type EventSource struct {
	name   string
	events []*domain.CalendarEvent
}

// NewEventSource creates a stub event source.
func NewEventSource(name string, events []*domain.CalendarEvent) *EventSource {
	return &EventSource{name: name, events: events}
}

// Name returns the configured name.
func (s *EventSource) Name() string { return s.name }

// FetchEvents returns copies to prevent mutation.
func (s *EventSource) FetchEvents(_ context.Context) ([]*domain.CalendarEvent, error) {
	out := make([]*domain.CalendarEvent, 0, len(s.events))
	for _, e := range s.events {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}
