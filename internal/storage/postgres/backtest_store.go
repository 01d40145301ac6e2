package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/storage"
)

// BacktestStore implements storage.BacktestStore using PostgreSQL.
// A run and its trades are written in one transaction.
type BacktestStore struct {
	pool *Pool
}

// NewBacktestStore creates a new BacktestStore.
func NewBacktestStore(pool *Pool) *BacktestStore {
	return &BacktestStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BacktestStore = (*BacktestStore)(nil)

const runColumns = `
	run_id, symbol, event_type, scenario, parameters,
	total_occurrences, entered_trades, wins, losses, whipsaws, timeouts, skipped_occurrences,
	win_rate, whipsaw_frequency, profit_factor,
	total_net_pips, avg_net_pips, median_net_pips, max_drawdown_pips,
	max_consecutive_losses, confidence_score, low_sample_warning, created_at
`

// Insert adds a run with its trades. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestStore) Insert(ctx context.Context, r *domain.BacktestResult) (err error) {
	if r == nil || r.RunID == "" || r.Symbol == "" {
		return storage.ErrInvalidInput
	}

	params, err := json.Marshal(r.Parameters)
	if err != nil {
		return fmt.Errorf("%w: encode parameters: %v", domain.ErrValidation, err)
	}

	start := time.Now()
	defer func() { observe("backtest_insert", start, err) }()

	err = s.pool.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO backtest_runs (`+runColumns+`) VALUES (
				$1, $2, $3, $4, $5,
				$6, $7, $8, $9, $10, $11, $12,
				$13, $14, $15,
				$16, $17, $18, $19,
				$20, $21, $22, $23
			)`,
			r.RunID, r.Symbol, r.EventType, r.Scenario, params,
			r.TotalOccurrences, r.EnteredTrades, r.Wins, r.Losses, r.Whipsaws, r.Timeouts, r.SkippedOccurrences,
			r.WinRate, r.WhipsawFrequency, r.ProfitFactor,
			r.TotalNetPips, r.AvgNetPips, r.MedianNetPips, r.MaxDrawdownPips,
			r.MaxConsecutiveLosses, r.ConfidenceScore, r.LowSampleWarning, r.CreatedAt.UTC(),
		)
		if err != nil {
			return err
		}

		rows := make([][]any, 0, len(r.Trades))
		for _, t := range r.Trades {
			rows = append(rows, []any{
				r.RunID, t.ID, t.EventTime.UTC(), string(t.Side), string(t.Outcome),
				t.EntryPrice, t.FillPrice, t.ExitPrice,
				t.GrossPips, t.NetPips, t.MFEPips, t.MAEPips,
				t.EntryTime.UTC(), nullTime(t.FillTime), nullTime(t.ExitTime),
			})
		}
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"backtest_trades"}, []string{
			"run_id", "trade_id", "event_time", "side", "outcome",
			"entry_price", "fill_price", "exit_price",
			"gross_pips", "net_pips", "mfe_pips", "mae_pips",
			"entry_time", "fill_time", "exit_time",
		}, pgx.CopyFromRows(rows))
		return err
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return wrapErr("insert backtest run", err)
	}
	return nil
}

// GetByID retrieves a run with its trades. Returns ErrNotFound if not exists.
func (s *BacktestStore) GetByID(ctx context.Context, runID string) (*domain.BacktestResult, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM backtest_runs WHERE run_id = $1`, runID)
	r, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, wrapErr("get backtest run", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT trade_id, event_time, side, outcome,
		       entry_price, fill_price, exit_price,
		       gross_pips, net_pips, mfe_pips, mae_pips,
		       entry_time, fill_time, exit_time
		FROM backtest_trades
		WHERE run_id = $1
		ORDER BY event_time ASC, trade_id ASC
	`, runID)
	if err != nil {
		return nil, wrapErr("query backtest trades", err)
	}
	defer rows.Close()

	r.Trades = make([]domain.TradeResult, 0)
	for rows.Next() {
		var t domain.TradeResult
		var side, outcome string
		var fill, exit *time.Time
		if err := rows.Scan(
			&t.ID, &t.EventTime, &side, &outcome,
			&t.EntryPrice, &t.FillPrice, &t.ExitPrice,
			&t.GrossPips, &t.NetPips, &t.MFEPips, &t.MAEPips,
			&t.EntryTime, &fill, &exit,
		); err != nil {
			return nil, wrapErr("scan backtest trade", err)
		}
		t.Side = domain.Side(side)
		t.Outcome = domain.Outcome(outcome)
		t.EventTime = t.EventTime.UTC()
		t.EntryTime = t.EntryTime.UTC()
		if fill != nil {
			t.FillTime = fill.UTC()
		}
		if exit != nil {
			t.ExitTime = exit.UTC()
		}
		r.Trades = append(r.Trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate backtest trades", err)
	}
	return r, nil
}

// ListBySymbol retrieves runs for a symbol, newest first, without trades.
func (s *BacktestStore) ListBySymbol(ctx context.Context, symbol, eventType string) ([]*domain.BacktestResult, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs
		WHERE symbol = $1 AND ($2 = '' OR event_type = $2)
		ORDER BY created_at DESC, run_id ASC`

	rows, err := s.pool.Query(ctx, query, symbol, eventType)
	if err != nil {
		return nil, wrapErr("list backtest runs", err)
	}
	defer rows.Close()

	out := make([]*domain.BacktestResult, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, wrapErr("scan backtest run", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate backtest runs", err)
	}
	return out, nil
}

func scanRun(row pgx.Row) (*domain.BacktestResult, error) {
	var r domain.BacktestResult
	var params []byte
	err := row.Scan(
		&r.RunID, &r.Symbol, &r.EventType, &r.Scenario, &params,
		&r.TotalOccurrences, &r.EnteredTrades, &r.Wins, &r.Losses, &r.Whipsaws, &r.Timeouts, &r.SkippedOccurrences,
		&r.WinRate, &r.WhipsawFrequency, &r.ProfitFactor,
		&r.TotalNetPips, &r.AvgNetPips, &r.MedianNetPips, &r.MaxDrawdownPips,
		&r.MaxConsecutiveLosses, &r.ConfidenceScore, &r.LowSampleWarning, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(params, &r.Parameters); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
