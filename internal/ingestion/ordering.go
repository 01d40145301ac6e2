package ingestion

import (
	"errors"
	"sort"

	"event-impact-lab/internal/domain"
)

// ErrInvalidOrdering is returned when rows are not in deterministic order.
var ErrInvalidOrdering = errors.New("rows are not in deterministic order")

// SortCandles orders candles by (symbol ASC, time ASC).
func SortCandles(candles []*domain.Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		return compareCandles(candles[i], candles[j]) < 0
	})
}

// SortEvents orders events by (time ASC, currency ASC, description ASC).
func SortEvents(events []*domain.CalendarEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return compareEvents(events[i], events[j]) < 0
	})
}

// ValidateCandleOrdering checks candles are strictly ordered.
// Duplicate (symbol, time) pairs also fail.
func ValidateCandleOrdering(candles []*domain.Candle) error {
	for i := 1; i < len(candles); i++ {
		if compareCandles(candles[i-1], candles[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// DedupeCandles drops repeated (symbol, time) rows from a sorted slice,
// keeping the last occurrence.
func DedupeCandles(candles []*domain.Candle) []*domain.Candle {
	if len(candles) < 2 {
		return candles
	}
	out := candles[:0]
	for i, c := range candles {
		if i+1 < len(candles) && compareCandles(c, candles[i+1]) == 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

func compareCandles(a, b *domain.Candle) int {
	if a.Symbol != b.Symbol {
		if a.Symbol < b.Symbol {
			return -1
		}
		return 1
	}
	return a.Time.Compare(b.Time)
}

func compareEvents(a, b *domain.CalendarEvent) int {
	if c := a.Time.Compare(b.Time); c != 0 {
		return c
	}
	if a.Currency != b.Currency {
		if a.Currency < b.Currency {
			return -1
		}
		return 1
	}
	switch {
	case a.Description < b.Description:
		return -1
	case a.Description > b.Description:
		return 1
	}
	return 0
}
