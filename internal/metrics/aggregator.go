package metrics

import (
	"context"
	"errors"
	"sort"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/storage"
)

// ErrNoTrades is returned when no trades are available for aggregation.
var ErrNoTrades = errors.New("no trades available for aggregation")

// AggregateConfig tunes backtest aggregation.
type AggregateConfig struct {
	ProfitFactorCap     float64 `yaml:"profit_factor_cap" default:"99" validate:"gt=0"`
	ConfidenceReference int     `yaml:"confidence_reference" default:"30" validate:"gt=0"`
	LowSampleThreshold  int     `yaml:"low_sample_threshold" default:"5" validate:"gte=0"`
}

// DefaultAggregateConfig returns the stock aggregation settings.
func DefaultAggregateConfig() AggregateConfig {
	return AggregateConfig{
		ProfitFactorCap:     99,
		ConfidenceReference: 30,
		LowSampleThreshold:  5,
	}
}

// Aggregate fills the summary fields of r from r.Trades.
// Trades are ordered by EventTime ASC, ID ASC before computing
// order-dependent metrics (MaxDrawdown, MaxConsecutiveLosses).
// NoEntry trades count as occurrences but not as entered trades.
func Aggregate(r *domain.BacktestResult, cfg AggregateConfig) {
	sort.SliceStable(r.Trades, func(i, j int) bool {
		a, b := r.Trades[i], r.Trades[j]
		if !a.EventTime.Equal(b.EventTime) {
			return a.EventTime.Before(b.EventTime)
		}
		return a.ID < b.ID
	})

	r.TotalOccurrences = len(r.Trades)
	r.EnteredTrades, r.Wins, r.Losses, r.Whipsaws, r.Timeouts = 0, 0, 0, 0, 0

	outcomes := make([]float64, 0, len(r.Trades))
	for i := range r.Trades {
		t := &r.Trades[i]
		if !t.Entered() {
			continue
		}
		r.EnteredTrades++
		outcomes = append(outcomes, t.NetPips)
		if t.NetPips > 0 {
			r.Wins++
		} else {
			r.Losses++
		}
		switch t.Outcome {
		case domain.OutcomeWhipsaw:
			r.Whipsaws++
		case domain.OutcomeTimeout:
			r.Timeouts++
		}
	}

	n := r.EnteredTrades
	r.WinRate = ratio(r.Wins, n)
	r.WhipsawFrequency = ratio(r.Whipsaws, n)
	r.ProfitFactor = ProfitFactor(outcomes, cfg.ProfitFactorCap)
	r.TotalNetPips = sum(outcomes)
	r.AvgNetPips = Mean(outcomes)
	r.MedianNetPips = PercentileOf(outcomes, 0.50)
	r.MaxDrawdownPips = MaxDrawdown(outcomes)
	r.MaxConsecutiveLosses = MaxConsecutiveLosses(outcomes)
	r.ConfidenceScore = Confidence(n, cfg.ConfidenceReference)
	r.LowSampleWarning = n < cfg.LowSampleThreshold
}

func ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

func sum(values []float64) float64 {
	s := 0.0
	for _, v := range values {
		s += v
	}
	return s
}

// ScenarioSummary is the latest stored run of one cost scenario.
type ScenarioSummary struct {
	Scenario        string
	RunID           string
	EnteredTrades   int
	WinRate         float64
	ProfitFactor    float64
	AvgNetPips      float64
	TotalNetPips    float64
	ConfidenceScore float64
}

// Aggregator compares stored backtest runs.
type Aggregator struct {
	backtests storage.BacktestStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(backtests storage.BacktestStore) *Aggregator {
	return &Aggregator{backtests: backtests}
}

// CompareScenarios returns the newest run per cost scenario for
// (symbol, eventType), ordered by scenario ID.
// Returns ErrNoTrades if no runs are stored.
func (a *Aggregator) CompareScenarios(ctx context.Context, symbol, eventType string) ([]ScenarioSummary, error) {
	runs, err := a.backtests.ListBySymbol(ctx, symbol, eventType)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoTrades
	}

	// ListBySymbol is newest first, so the first run seen per scenario wins.
	latest := make(map[string]*domain.BacktestResult)
	for _, r := range runs {
		if _, ok := latest[r.Scenario]; !ok {
			latest[r.Scenario] = r
		}
	}

	out := make([]ScenarioSummary, 0, len(latest))
	for scenario, r := range latest {
		out = append(out, ScenarioSummary{
			Scenario:        scenario,
			RunID:           r.RunID,
			EnteredTrades:   r.EnteredTrades,
			WinRate:         r.WinRate,
			ProfitFactor:    r.ProfitFactor,
			AvgNetPips:      r.AvgNetPips,
			TotalNetPips:    r.TotalNetPips,
			ConfidenceScore: r.ConfidenceScore,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scenario < out[j].Scenario })
	return out, nil
}
