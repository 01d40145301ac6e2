package clickhouse

import (
	"context"
	"fmt"
	"time"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/storage"
)

// CandleStore implements storage.CandleStore on a ReplacingMergeTree table.
// Repeated (symbol, timeframe, time) rows collapse on merge; reads use FINAL
// so replaced versions are never observed.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

const candleColumns = `symbol, timeframe, time, open, high, low, close, volume, spread_avg, spread_max, tick_count`

// UpsertBulk sends all candles in a single batch.
func (s *CandleStore) UpsertBulk(ctx context.Context, candles []*domain.Candle) (err error) {
	if len(candles) == 0 {
		return nil
	}
	for _, c := range candles {
		if c == nil || c.Symbol == "" || c.Time.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	start := time.Now()
	defer func() { observe("candles_upsert", start, err) }()

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO candles (`+candleColumns+`, version)`)
	if err != nil {
		return fmt.Errorf("%w: prepare batch: %v", domain.ErrStorage, err)
	}

	version := uint64(time.Now().UnixNano())
	for _, c := range candles {
		tf := c.Timeframe
		if tf == "" {
			tf = domain.TimeframeM1
		}
		var tickCount *uint64
		if c.TickCount != nil {
			v := uint64(*c.TickCount)
			tickCount = &v
		}
		if err = batch.Append(
			c.Symbol, string(tf), c.Time.UTC(),
			c.Open, c.High, c.Low, c.Close, c.Volume,
			c.SpreadAvg, c.SpreadMax, tickCount,
			version,
		); err != nil {
			return fmt.Errorf("%w: append to batch: %v", domain.ErrStorage, err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("%w: send batch: %v", domain.ErrStorage, err)
	}
	return nil
}

// GetBySymbol retrieves all M1 candles for a symbol, ordered by time ASC.
func (s *CandleStore) GetBySymbol(ctx context.Context, symbol string) (_ []*domain.Candle, err error) {
	start := time.Now()
	defer func() { observe("candles_by_symbol", start, err) }()

	query := `
		SELECT ` + candleColumns + `
		FROM candles FINAL
		WHERE symbol = ? AND timeframe = ?
		ORDER BY time ASC
	`
	rows, err := s.conn.Query(ctx, query, symbol, string(domain.TimeframeM1))
	if err != nil {
		return nil, fmt.Errorf("%w: query candles by symbol: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetByTimeRange retrieves M1 candles within [start, end), ordered by time ASC.
func (s *CandleStore) GetByTimeRange(ctx context.Context, symbol string, from, to time.Time) (_ []*domain.Candle, err error) {
	start := time.Now()
	defer func() { observe("candles_by_range", start, err) }()

	query := `
		SELECT ` + candleColumns + `
		FROM candles FINAL
		WHERE symbol = ? AND timeframe = ? AND time >= ? AND time < ?
		ORDER BY time ASC
	`
	rows, err := s.conn.Query(ctx, query, symbol, string(domain.TimeframeM1), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: query candles by time range: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// Count returns the number of distinct candles stored for symbol.
func (s *CandleStore) Count(ctx context.Context, symbol string) (int64, error) {
	var n uint64
	err := s.conn.QueryRow(ctx, `SELECT count() FROM candles FINAL WHERE symbol = ?`, symbol).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count candles: %v", domain.ErrStorage, err)
	}
	return int64(n), nil
}

// Symbols returns every symbol with at least one candle, sorted.
func (s *CandleStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT symbol FROM candles ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("%w: query symbols: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("%w: scan symbol: %v", domain.ErrStorage, err)
		}
		out = append(out, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate symbols: %v", domain.ErrStorage, err)
	}
	return out, nil
}

func scanCandles(rows chRows) ([]*domain.Candle, error) {
	var candles []*domain.Candle

	for rows.Next() {
		var c domain.Candle
		var tf string
		var tickCount *uint64

		err := rows.Scan(
			&c.Symbol, &tf, &c.Time,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume,
			&c.SpreadAvg, &c.SpreadMax, &tickCount,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scan candle row: %v", domain.ErrStorage, err)
		}

		c.Timeframe = domain.Timeframe(tf)
		c.Time = c.Time.UTC()
		if tickCount != nil {
			v := int64(*tickCount)
			c.TickCount = &v
		}
		candles = append(candles, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate candle rows: %v", domain.ErrStorage, err)
	}

	return candles, nil
}
