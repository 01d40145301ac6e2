package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"event-impact-lab/internal/analysis"
	"event-impact-lab/internal/decision"
	"event-impact-lab/internal/domain"
)

// Source is the analysis surface a report is built from (analysis.Service).
type Source interface {
	ImpactProfile(ctx context.Context, symbol, eventType string) (*domain.ImpactProfile, error)
	Decay(ctx context.Context, symbol, eventType string) (domain.DecayProfile, error)
	StraddleParameters(ctx context.Context, symbol, eventType string, mode domain.StraddleMode) (domain.StraddleParameters, error)
	Backtest(ctx context.Context, req analysis.BacktestRequest) (*domain.BacktestResult, error)
}

// DefaultScenarios are the cost scenarios every report backtests.
var DefaultScenarios = []string{
	domain.ScenarioRealistic,
	domain.ScenarioPessimistic,
	domain.ScenarioDegraded,
}

// MaxSkippedRatio is the largest share of uncovered occurrences a sound
// profile may have.
const MaxSkippedRatio = 0.5

// Generator produces reports from the analysis service.
type Generator struct {
	src            Source
	scenarios      []string
	minOccurrences int
	evaluator      *decision.Evaluator
	now            func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator. Reports flag samples smaller
// than minOccurrences.
func NewGenerator(src Source, minOccurrences int) *Generator {
	return &Generator{
		src:            src,
		scenarios:      DefaultScenarios,
		minOccurrences: minOccurrences,
		evaluator:      decision.NewEvaluator(decision.DefaultThresholds()),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithThresholds sets the decision gate thresholds.
func (g *Generator) WithThresholds(th decision.Thresholds) *Generator {
	g.evaluator = decision.NewEvaluator(th)
	return g
}

// WithScenarios overrides the backtested cost scenarios.
func (g *Generator) WithScenarios(ids ...string) *Generator {
	if len(ids) > 0 {
		g.scenarios = ids
	}
	return g
}

// Generate studies eventType on symbol: profile, decay, parameters for both
// modes, and a backtest per (mode, scenario).
func (g *Generator) Generate(ctx context.Context, symbol, eventType string) (*Report, error) {
	profile, err := g.src.ImpactProfile(ctx, symbol, eventType)
	if err != nil {
		return nil, fmt.Errorf("impact profile: %w", err)
	}
	decay, err := g.src.Decay(ctx, symbol, eventType)
	if err != nil {
		return nil, fmt.Errorf("decay: %w", err)
	}

	r := &Report{
		GeneratedAt: g.now(),
		Symbol:      profile.Symbol,
		EventType:   profile.EventType,
		Profile:     profile,
		Decay:       decay,
	}

	for _, mode := range []domain.StraddleMode{domain.ModeDirectional, domain.ModeSimultaneous} {
		params, err := g.src.StraddleParameters(ctx, symbol, eventType, mode)
		if err != nil {
			return nil, fmt.Errorf("%s parameters: %w", mode, err)
		}
		r.Parameters = append(r.Parameters, params)
		r.PipValue = params.PipValue

		for _, scenario := range g.scenarios {
			p := params
			res, err := g.src.Backtest(ctx, analysis.BacktestRequest{
				Symbol:    symbol,
				EventType: eventType,
				Mode:      mode,
				Params:    &p,
				Scenario:  scenario,
			})
			if err != nil {
				return nil, fmt.Errorf("%s/%s backtest: %w", mode, scenario, err)
			}
			r.Backtests = append(r.Backtests, backtestRow(mode, res))
			if mode == domain.ModeDirectional && scenario == domain.ScenarioRealistic {
				r.TradeReferences = res.Trades
			}
		}
	}

	sortBacktests(r.Backtests)
	r.ScenarioSensitivity = scenarioSensitivity(r.Backtests)
	r.Decisions = g.decisions(r.Backtests)
	r.DataQuality = g.dataQuality(profile, r.Backtests)
	return r, nil
}

func backtestRow(mode domain.StraddleMode, res *domain.BacktestResult) BacktestRow {
	return BacktestRow{
		RunID:                res.RunID,
		Mode:                 mode,
		ScenarioID:           res.Scenario,
		Occurrences:          res.TotalOccurrences,
		EnteredTrades:        res.EnteredTrades,
		Wins:                 res.Wins,
		Whipsaws:             res.Whipsaws,
		Timeouts:             res.Timeouts,
		WinRate:              res.WinRate,
		WhipsawFrequency:     res.WhipsawFrequency,
		ProfitFactor:         res.ProfitFactor,
		TotalNetPips:         res.TotalNetPips,
		AvgNetPips:           res.AvgNetPips,
		MedianNetPips:        res.MedianNetPips,
		MaxDrawdownPips:      res.MaxDrawdownPips,
		MaxConsecutiveLosses: res.MaxConsecutiveLosses,
		ConfidenceScore:      res.ConfidenceScore,
		LowSampleWarning:     res.LowSampleWarning,
	}
}

// sortBacktests orders rows by (mode, scenario_id).
func sortBacktests(rows []BacktestRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Mode != rows[j].Mode {
			return rows[i].Mode < rows[j].Mode
		}
		return rows[i].ScenarioID < rows[j].ScenarioID
	})
}

// scenarioSensitivity builds one row per mode that has a realistic run.
func scenarioSensitivity(rows []BacktestRow) []ScenarioSensitivityRow {
	byMode := make(map[domain.StraddleMode]map[string]BacktestRow)
	for _, row := range rows {
		if byMode[row.Mode] == nil {
			byMode[row.Mode] = make(map[string]BacktestRow)
		}
		byMode[row.Mode][row.ScenarioID] = row
	}

	var out []ScenarioSensitivityRow
	for mode, scenarios := range byMode {
		realistic, ok := scenarios[domain.ScenarioRealistic]
		if !ok {
			continue
		}
		s := ScenarioSensitivityRow{Mode: mode, RealisticAvg: realistic.AvgNetPips}
		if p, ok := scenarios[domain.ScenarioPessimistic]; ok {
			s.PessimisticAvg = p.AvgNetPips
		}
		if d, ok := scenarios[domain.ScenarioDegraded]; ok {
			s.DegradedAvg = d.AvgNetPips
			s.DegradationPips = realistic.AvgNetPips - d.AvgNetPips
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mode < out[j].Mode })
	return out
}

// decisions evaluates the gate for every mode with realistic and degraded runs.
func (g *Generator) decisions(rows []BacktestRow) []*decision.Result {
	var out []*decision.Result
	for _, mode := range []domain.StraddleMode{domain.ModeDirectional, domain.ModeSimultaneous} {
		var realistic, degraded *BacktestRow
		for i := range rows {
			if rows[i].Mode != mode {
				continue
			}
			switch rows[i].ScenarioID {
			case domain.ScenarioRealistic:
				realistic = &rows[i]
			case domain.ScenarioDegraded:
				degraded = &rows[i]
			}
		}
		if realistic == nil || degraded == nil {
			continue
		}
		out = append(out, g.evaluator.Evaluate(decision.Input{
			Mode:             mode,
			EnteredTrades:    realistic.EnteredTrades,
			WinRate:          realistic.WinRate,
			MedianNetPips:    realistic.MedianNetPips,
			ProfitFactor:     realistic.ProfitFactor,
			WhipsawFrequency: realistic.WhipsawFrequency,
			RealisticAvg:     realistic.AvgNetPips,
			DegradedAvg:      degraded.AvgNetPips,
			MinTrades:        g.minOccurrences,
		}))
	}
	return out
}

func (g *Generator) dataQuality(p *domain.ImpactProfile, rows []BacktestRow) DataQualitySection {
	total := p.Occurrences + p.SkippedOccurrences
	skippedRatio := 0.0
	if total > 0 {
		skippedRatio = float64(p.SkippedOccurrences) / float64(total)
	}
	entered := 0
	for _, row := range rows {
		if row.Mode == domain.ModeDirectional && row.ScenarioID == domain.ScenarioRealistic {
			entered = row.EnteredTrades
		}
	}

	checks := []SufficiencyCheckRow{
		{
			Name:      "Occurrences with full coverage",
			Threshold: fmt.Sprintf(">= %d", g.minOccurrences),
			Actual:    fmt.Sprintf("%d", p.Occurrences),
			Pass:      p.Occurrences >= g.minOccurrences,
		},
		{
			Name:      "Skipped occurrences",
			Threshold: fmt.Sprintf("<= %.0f%%", MaxSkippedRatio*100),
			Actual:    fmt.Sprintf("%.0f%% (%d of %d)", skippedRatio*100, p.SkippedOccurrences, total),
			Pass:      skippedRatio <= MaxSkippedRatio,
		},
		{
			Name:      "Entered trades (directional, realistic)",
			Threshold: fmt.Sprintf(">= %d", g.minOccurrences),
			Actual:    fmt.Sprintf("%d", entered),
			Pass:      entered >= g.minOccurrences,
		},
	}
	all := true
	for _, c := range checks {
		all = all && c.Pass
	}
	return DataQualitySection{SufficiencyChecks: checks, AllChecksPassed: all}
}
