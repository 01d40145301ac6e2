package postgres

import (
	"context"
	"strings"

	"event-impact-lab/internal/storage"
)

// SymbolConfigStore implements storage.SymbolConfigStore using PostgreSQL.
type SymbolConfigStore struct {
	pool *Pool
}

// NewSymbolConfigStore creates a new SymbolConfigStore.
func NewSymbolConfigStore(pool *Pool) *SymbolConfigStore {
	return &SymbolConfigStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SymbolConfigStore = (*SymbolConfigStore)(nil)

// PipOverrides returns every stored symbol -> pip value override.
func (s *SymbolConfigStore) PipOverrides(ctx context.Context) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx, `SELECT symbol, pip_value FROM symbol_config`)
	if err != nil {
		return nil, wrapErr("query symbol config", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var sym string
		var pip float64
		if err := rows.Scan(&sym, &pip); err != nil {
			return nil, wrapErr("scan symbol config", err)
		}
		out[sym] = pip
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate symbol config", err)
	}
	return out, nil
}

// SetPipValue stores an override.
func (s *SymbolConfigStore) SetPipValue(ctx context.Context, symbol string, pip float64) error {
	if symbol == "" || pip <= 0 {
		return storage.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO symbol_config (symbol, pip_value) VALUES ($1, $2)
		ON CONFLICT (symbol) DO UPDATE SET pip_value = EXCLUDED.pip_value
	`, strings.ToUpper(symbol), pip)
	if err != nil {
		return wrapErr("set pip value", err)
	}
	return nil
}
