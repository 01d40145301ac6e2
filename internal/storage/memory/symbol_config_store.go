package memory

import (
	"context"
	"strings"
	"sync"

	"event-impact-lab/internal/storage"
)

// SymbolConfigStore is an in-memory implementation of storage.SymbolConfigStore.
type SymbolConfigStore struct {
	mu   sync.RWMutex
	pips map[string]float64
}

// NewSymbolConfigStore creates a new in-memory symbol config store.
func NewSymbolConfigStore() *SymbolConfigStore {
	return &SymbolConfigStore{pips: make(map[string]float64)}
}

// PipOverrides returns a copy of every stored override.
func (s *SymbolConfigStore) PipOverrides(_ context.Context) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(s.pips))
	for k, v := range s.pips {
		out[k] = v
	}
	return out, nil
}

// SetPipValue stores an override.
func (s *SymbolConfigStore) SetPipValue(_ context.Context, symbol string, pip float64) error {
	if symbol == "" || pip <= 0 {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	s.pips[strings.ToUpper(symbol)] = pip
	s.mu.Unlock()
	return nil
}

var _ storage.SymbolConfigStore = (*SymbolConfigStore)(nil)
