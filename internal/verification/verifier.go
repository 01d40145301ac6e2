// Package verification replays stored backtest runs and reports every
// trade whose replay differs from what was stored.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/storage"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string `json:"field"`
	Expected any    `json:"expected"` // stored value
	Actual   any    `json:"actual"`   // replayed value
}

// TradeVerification is the result of comparing one trade.
type TradeVerification struct {
	TradeID         string            `json:"trade_id"`
	EventTime       time.Time         `json:"event_time"`
	Match           bool              `json:"match"`
	Divergences     []FieldDivergence `json:"divergences,omitempty"`
	StoredNetPips   float64           `json:"stored_net_pips"`
	ReplayedNetPips float64           `json:"replayed_net_pips"`
}

// Report contains the results of verifying one backtest run.
type Report struct {
	RunID           string              `json:"run_id"`
	TotalTrades     int                 `json:"total_trades"`
	MatchedTrades   int                 `json:"matched_trades"`
	DivergentTrades int                 `json:"divergent_trades"`
	MissingTrades   int                 `json:"missing_trades"` // stored but not replayed
	ExtraTrades     int                 `json:"extra_trades"`   // replayed but not stored
	Results         []TradeVerification `json:"results"`
}

// Match reports whether the replay reproduced the run exactly.
func (r *Report) Match() bool {
	return r.DivergentTrades == 0 && r.MissingTrades == 0 && r.ExtraTrades == 0
}

// ReplayFunc re-executes the simulation of stored with its own parameters
// and cost scenario. The replay must not be persisted.
type ReplayFunc func(ctx context.Context, stored *domain.BacktestResult) (*domain.BacktestResult, error)

// Verifier checks stored runs against fresh replays.
type Verifier struct {
	store  storage.BacktestStore
	replay ReplayFunc
}

// New creates a Verifier.
func New(store storage.BacktestStore, replay ReplayFunc) *Verifier {
	return &Verifier{store: store, replay: replay}
}

// VerifyRun loads runID with its trades, replays it and compares trade by
// trade. Trades are matched on their deterministic ID.
func (v *Verifier) VerifyRun(ctx context.Context, runID string) (*Report, error) {
	stored, err := v.store.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: backtest run %s", domain.ErrNotFound, runID)
		}
		return nil, fmt.Errorf("%w: load backtest run %s: %v", domain.ErrStorage, runID, err)
	}

	replayed, err := v.replay(ctx, stored)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", runID, err)
	}
	return CompareRuns(stored, replayed), nil
}

// CompareRuns compares the trades of two runs of the same parameters.
// Results follow the stored trade order; extra replayed trades come last.
func CompareRuns(stored, replayed *domain.BacktestResult) *Report {
	report := &Report{RunID: stored.RunID, TotalTrades: len(stored.Trades)}

	byID := make(map[string]*domain.TradeResult, len(replayed.Trades))
	for i := range replayed.Trades {
		byID[replayed.Trades[i].ID] = &replayed.Trades[i]
	}

	seen := make(map[string]bool, len(stored.Trades))
	for i := range stored.Trades {
		s := &stored.Trades[i]
		seen[s.ID] = true
		r, ok := byID[s.ID]
		if !ok {
			report.MissingTrades++
			report.Results = append(report.Results, TradeVerification{
				TradeID:       s.ID,
				EventTime:     s.EventTime,
				StoredNetPips: s.NetPips,
				Divergences:   []FieldDivergence{{Field: "ID", Expected: s.ID, Actual: nil}},
			})
			continue
		}

		divergences := CompareTrades(s, r)
		result := TradeVerification{
			TradeID:         s.ID,
			EventTime:       s.EventTime,
			Match:           len(divergences) == 0,
			Divergences:     divergences,
			StoredNetPips:   s.NetPips,
			ReplayedNetPips: r.NetPips,
		}
		if result.Match {
			report.MatchedTrades++
		} else {
			report.DivergentTrades++
		}
		report.Results = append(report.Results, result)
	}

	for i := range replayed.Trades {
		r := &replayed.Trades[i]
		if seen[r.ID] {
			continue
		}
		report.ExtraTrades++
		report.Results = append(report.Results, TradeVerification{
			TradeID:         r.ID,
			EventTime:       r.EventTime,
			ReplayedNetPips: r.NetPips,
			Divergences:     []FieldDivergence{{Field: "ID", Expected: nil, Actual: r.ID}},
		})
	}
	return report
}

// CompareTrades compares two trades and returns divergences.
// Uses FloatTolerance for float64 comparisons.
func CompareTrades(stored, replayed *domain.TradeResult) []FieldDivergence {
	var d []FieldDivergence

	if !stored.EventTime.Equal(replayed.EventTime) {
		d = append(d, FieldDivergence{"EventTime", stored.EventTime, replayed.EventTime})
	}
	if stored.Side != replayed.Side {
		d = append(d, FieldDivergence{"Side", stored.Side, replayed.Side})
	}
	// Outcome must match exactly
	if stored.Outcome != replayed.Outcome {
		d = append(d, FieldDivergence{"Outcome", stored.Outcome, replayed.Outcome})
	}

	floats := []struct {
		name     string
		exp, act float64
	}{
		{"EntryPrice", stored.EntryPrice, replayed.EntryPrice},
		{"FillPrice", stored.FillPrice, replayed.FillPrice},
		{"ExitPrice", stored.ExitPrice, replayed.ExitPrice},
		{"GrossPips", stored.GrossPips, replayed.GrossPips},
		{"NetPips", stored.NetPips, replayed.NetPips},
		{"MFEPips", stored.MFEPips, replayed.MFEPips},
		{"MAEPips", stored.MAEPips, replayed.MAEPips},
	}
	for _, f := range floats {
		if !floatEquals(f.exp, f.act) {
			d = append(d, FieldDivergence{f.name, f.exp, f.act})
		}
	}

	times := []struct {
		name     string
		exp, act time.Time
	}{
		{"EntryTime", stored.EntryTime, replayed.EntryTime},
		{"FillTime", stored.FillTime, replayed.FillTime},
		{"ExitTime", stored.ExitTime, replayed.ExitTime},
	}
	for _, tt := range times {
		if !tt.exp.Equal(tt.act) {
			d = append(d, FieldDivergence{tt.name, tt.exp, tt.act})
		}
	}
	return d
}

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
