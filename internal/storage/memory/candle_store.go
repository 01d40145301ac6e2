package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/storage"
)

type candleKey struct {
	timeframe domain.Timeframe
	unixSec   int64
}

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[string]map[candleKey]*domain.Candle // symbol -> (timeframe, time) -> candle
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[string]map[candleKey]*domain.Candle),
	}
}

// UpsertBulk writes candles atomically, replacing rows with the same
// (symbol, timeframe, time).
func (s *CandleStore) UpsertBulk(_ context.Context, candles []*domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	// Validate the whole batch before touching data.
	for _, c := range candles {
		if c == nil || c.Symbol == "" || c.Time.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range candles {
		bySymbol, ok := s.data[c.Symbol]
		if !ok {
			bySymbol = make(map[candleKey]*domain.Candle)
			s.data[c.Symbol] = bySymbol
		}
		cp := *c
		cp.Time = cp.Time.UTC()
		if cp.Timeframe == "" {
			cp.Timeframe = domain.TimeframeM1
		}
		bySymbol[candleKey{timeframe: cp.Timeframe, unixSec: cp.Time.Unix()}] = &cp
	}
	return nil
}

// GetBySymbol retrieves all M1 candles for a symbol, ordered by time ASC.
func (s *CandleStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.Candle, error) {
	return s.GetByTimeRange(ctx, symbol, time.Time{}, time.Time{})
}

// GetByTimeRange retrieves M1 candles within [start, end). Zero bounds are open.
func (s *CandleStore) GetByTimeRange(_ context.Context, symbol string, start, end time.Time) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Candle, 0)
	for k, c := range s.data[symbol] {
		if k.timeframe != domain.TimeframeM1 {
			continue
		}
		if !start.IsZero() && c.Time.Before(start) {
			continue
		}
		if !end.IsZero() && !c.Time.Before(end) {
			continue
		}
		cp := *c
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Time.Before(result[j].Time)
	})
	return result, nil
}

// Count returns the number of candles stored for symbol across timeframes.
func (s *CandleStore) Count(_ context.Context, symbol string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data[symbol])), nil
}

// Symbols returns all symbols with candles, sorted.
func (s *CandleStore) Symbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.data))
	for sym, rows := range s.data {
		if len(rows) > 0 {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out, nil
}

var _ storage.CandleStore = (*CandleStore)(nil)
