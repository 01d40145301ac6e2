package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using PostgreSQL.
type CandleStore struct {
	pool *Pool
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(pool *Pool) *CandleStore {
	return &CandleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

const upsertCandleSQL = `
	INSERT INTO candles (
		symbol, timeframe, time, open, high, low, close, volume,
		spread_avg, spread_max, tick_count
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (symbol, timeframe, time) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		spread_avg = EXCLUDED.spread_avg,
		spread_max = EXCLUDED.spread_max,
		tick_count = EXCLUDED.tick_count
`

// UpsertBulk writes all candles in one transaction.
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

	err = s.pool.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, c := range candles {
			tf := c.Timeframe
			if tf == "" {
				tf = domain.TimeframeM1
			}
			batch.Queue(upsertCandleSQL,
				c.Symbol, string(tf), c.Time.UTC(),
				c.Open, c.High, c.Low, c.Close, c.Volume,
				c.SpreadAvg, c.SpreadMax, c.TickCount,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		if isInvalidInputError(err) {
			return storage.ErrInvalidInput
		}
		return wrapErr("upsert candles", err)
	}
	return nil
}

// GetBySymbol retrieves all M1 candles for a symbol, ordered by time ASC.
func (s *CandleStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.Candle, error) {
	query := `
		SELECT symbol, timeframe, time, open, high, low, close, volume,
		       spread_avg, spread_max, tick_count
		FROM candles
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY time ASC
	`
	return s.query(ctx, "candles_by_symbol", query, symbol, string(domain.TimeframeM1))
}

// GetByTimeRange retrieves M1 candles within [start, end), ordered by time ASC.
func (s *CandleStore) GetByTimeRange(ctx context.Context, symbol string, from, to time.Time) ([]*domain.Candle, error) {
	query := `
		SELECT symbol, timeframe, time, open, high, low, close, volume,
		       spread_avg, spread_max, tick_count
		FROM candles
		WHERE symbol = $1 AND timeframe = $2 AND time >= $3 AND time < $4
		ORDER BY time ASC
	`
	return s.query(ctx, "candles_by_range", query, symbol, string(domain.TimeframeM1), from.UTC(), to.UTC())
}

func (s *CandleStore) query(ctx context.Context, op, sql string, args ...any) (_ []*domain.Candle, err error) {
	start := time.Now()
	defer func() { observe(op, start, err) }()

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return candles, nil
}

// Count returns the number of stored candles for a symbol.
func (s *CandleStore) Count(ctx context.Context, symbol string) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM candles WHERE symbol = $1`, symbol).Scan(&n); err != nil {
		return 0, wrapErr("count candles", err)
	}
	return n, nil
}

// Symbols returns every symbol with at least one candle, sorted.
func (s *CandleStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT symbol FROM candles ORDER BY symbol`)
	if err != nil {
		return nil, wrapErr("query symbols", err)
	}
	syms, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrapErr("collect symbols", err)
	}
	return syms, nil
}

func scanCandles(rows pgx.Rows) ([]*domain.Candle, error) {
	var candles []*domain.Candle
	for rows.Next() {
		var c domain.Candle
		var tf string
		if err := rows.Scan(
			&c.Symbol, &tf, &c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume,
			&c.SpreadAvg, &c.SpreadMax, &c.TickCount,
		); err != nil {
			return nil, err
		}
		c.Timeframe = domain.Timeframe(tf)
		c.Time = c.Time.UTC()
		candles = append(candles, &c)
	}
	return candles, rows.Err()
}
