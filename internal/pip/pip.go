// Package pip resolves the price size of one pip per symbol.
package pip

import (
	"context"
	"strings"
	"sync"

	"event-impact-lab/internal/storage"
)

// DefaultPip is used for symbols missing from every table.
const DefaultPip = 0.0001

var static = map[string]float64{
	// Metals
	"XAUUSD": 0.1,
	"XAGUSD": 0.01,
	// Indices
	"US30":   1.0,
	"US500":  0.1,
	"NAS100": 1.0,
	"GER40":  1.0,
	"UK100":  1.0,
	"JP225":  10.0,
	// Crypto
	"BTCUSD": 1.0,
	"ETHUSD": 0.1,
	// Energy
	"USOIL": 0.01,
	"UKOIL": 0.01,
}

// Static returns the built-in pip value for symbol.
// FX pairs quoted in JPY use 0.01.
func Static(symbol string) float64 {
	s := strings.ToUpper(symbol)
	if v, ok := static[s]; ok {
		return v
	}
	if len(s) == 6 && strings.HasSuffix(s, "JPY") {
		return 0.01
	}
	return DefaultPip
}

// Table layers overrides on top of the static table. Safe for concurrent use.
type Table struct {
	mu        sync.RWMutex
	overrides map[string]float64
}

// NewTable creates a table with the given overrides (e.g. from YAML config).
func NewTable(overrides map[string]float64) *Table {
	t := &Table{overrides: make(map[string]float64, len(overrides))}
	for k, v := range overrides {
		if v > 0 {
			t.overrides[strings.ToUpper(k)] = v
		}
	}
	return t
}

// Value returns the pip value for symbol.
func (t *Table) Value(symbol string) float64 {
	t.mu.RLock()
	v, ok := t.overrides[strings.ToUpper(symbol)]
	t.mu.RUnlock()
	if ok {
		return v
	}
	return Static(symbol)
}

// Set stores an override in memory.
func (t *Table) Set(symbol string, v float64) {
	if v <= 0 {
		return
	}
	t.mu.Lock()
	t.overrides[strings.ToUpper(symbol)] = v
	t.mu.Unlock()
}

// Refresh merges persisted overrides from store. Persisted values win over
// those passed to NewTable.
func (t *Table) Refresh(ctx context.Context, store storage.SymbolConfigStore) error {
	overrides, err := store.PipOverrides(ctx)
	if err != nil {
		return err
	}
	for k, v := range overrides {
		t.Set(k, v)
	}
	return nil
}
