// Package backtest replays straddle parameters over every historical
// occurrence of an event type, bar by bar.
package backtest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/idhash"
	"event-impact-lab/internal/metrics"
)

// Source is the subset of the candle index guard the runner reads.
type Source interface {
	Window(symbol string, from, to time.Time) ([]domain.PricePoint, bool)
}

// Runner executes backtests over event occurrences.
type Runner struct {
	engine *Engine
	agg    metrics.AggregateConfig
	log    zerolog.Logger
	now    func() time.Time
}

// NewRunner creates a new backtest runner.
func NewRunner(cfg Config, agg metrics.AggregateConfig, log zerolog.Logger) *Runner {
	return &Runner{
		engine: NewEngine(cfg),
		agg:    agg,
		log:    log,
		now:    time.Now,
	}
}

// Run simulates params on symbol around every occurrence.
// Occurrences without a reference bar are skipped. Returns ErrNotFound when
// there are no occurrences or the symbol is not loaded.
func (r *Runner) Run(src Source, symbol, eventType string, occurrences []*domain.CalendarEvent, params domain.StraddleParameters, costs domain.CostScenario) (*domain.BacktestResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(occurrences) == 0 {
		return nil, fmt.Errorf("%w: no occurrences of %q", domain.ErrNotFound, eventType)
	}

	key := idhash.ParamsKey(string(params.Mode), params.OffsetPips, params.StopLossPips,
		params.TrailingStopPips, params.TimeoutMinutes, params.EntryLeadMinutes)

	result := &domain.BacktestResult{
		RunID:      uuid.NewString(),
		Symbol:     symbol,
		EventType:  eventType,
		Scenario:   costs.ScenarioID,
		Parameters: params,
		Trades:     make([]domain.TradeResult, 0, len(occurrences)),
		CreatedAt:  r.now().UTC(),
	}

	seen := make(map[int64]struct{}, len(occurrences))
	for _, ev := range occurrences {
		at := ev.Time.UTC()
		if _, dup := seen[at.Unix()]; dup {
			continue
		}
		seen[at.Unix()] = struct{}{}

		from := at.Add(-(domain.PreEventMinutes + 1) * time.Minute)
		to := at.Add(time.Duration(params.TimeoutMinutes) * time.Minute)
		points, ok := src.Window(symbol, from, to)
		if !ok {
			return nil, fmt.Errorf("%w: symbol %s not loaded", domain.ErrNotFound, symbol)
		}

		tr, ok := r.engine.Simulate(points, at, params, costs)
		if !ok {
			result.SkippedOccurrences++
			r.log.Debug().
				Str("symbol", symbol).
				Time("event_time", at).
				Msg("occurrence skipped: no reference bar")
			continue
		}
		tr.ID = idhash.ComputeTradeID(symbol, eventType, key, costs.ScenarioID, at.UnixMilli())
		result.Trades = append(result.Trades, tr)
	}

	metrics.Aggregate(result, r.agg)
	return result, nil
}
