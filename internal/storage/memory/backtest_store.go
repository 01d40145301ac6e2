package memory

import (
	"context"
	"sort"
	"sync"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/storage"
)

// BacktestStore is an in-memory implementation of storage.BacktestStore.
type BacktestStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BacktestResult // keyed by run_id
}

// NewBacktestStore creates a new in-memory backtest store.
func NewBacktestStore() *BacktestStore {
	return &BacktestStore{
		data: make(map[string]*domain.BacktestResult),
	}
}

// Insert adds a run. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestStore) Insert(_ context.Context, r *domain.BacktestResult) error {
	if r == nil || r.RunID == "" || r.Symbol == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.RunID] = cloneResult(r, true)
	return nil
}

// GetByID retrieves a run with its trades. Returns ErrNotFound if not exists.
func (s *BacktestStore) GetByID(_ context.Context, runID string) (*domain.BacktestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneResult(r, true), nil
}

// ListBySymbol retrieves runs for symbol, newest first, without trades.
func (s *BacktestStore) ListBySymbol(_ context.Context, symbol, eventType string) ([]*domain.BacktestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.BacktestResult, 0)
	for _, r := range s.data {
		if r.Symbol != symbol {
			continue
		}
		if eventType != "" && r.EventType != eventType {
			continue
		}
		result = append(result, cloneResult(r, false))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

func cloneResult(r *domain.BacktestResult, withTrades bool) *domain.BacktestResult {
	cp := *r
	cp.Trades = nil
	if withTrades && r.Trades != nil {
		cp.Trades = make([]domain.TradeResult, len(r.Trades))
		copy(cp.Trades, r.Trades)
	}
	return &cp
}

var _ storage.BacktestStore = (*BacktestStore)(nil)
