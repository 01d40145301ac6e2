package decision

import "fmt"

// Thresholds of the gate.
type Thresholds struct {
	MinWinRate          float64 `yaml:"min_win_rate" default:"0.4" validate:"gte=0,lte=1"`
	MinProfitFactor     float64 `yaml:"min_profit_factor" default:"1.2" validate:"gte=0"`
	MaxWhipsawFrequency float64 `yaml:"max_whipsaw_frequency" default:"0.3" validate:"gte=0,lte=1"`
	MinDegradedRatio    float64 `yaml:"min_degraded_ratio" default:"0.5" validate:"gte=0"`
}

// DefaultThresholds returns the stock gate.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinWinRate:          0.4,
		MinProfitFactor:     1.2,
		MaxWhipsawFrequency: 0.3,
		MinDegradedRatio:    0.5,
	}
}

// Evaluator evaluates decision criteria.
type Evaluator struct {
	th Thresholds
}

// NewEvaluator creates a new decision evaluator.
func NewEvaluator(th Thresholds) *Evaluator {
	return &Evaluator{th: th}
}

// Evaluate produces a Result from in.
// GO if ALL criteria pass and NO NO-GO triggers.
func (e *Evaluator) Evaluate(in Input) *Result {
	goCriteria := e.goCriteria(in)
	nogoChecks := e.nogoTriggers(in)

	decision := DecisionGO
	for _, c := range append(goCriteria, nogoChecks...) {
		if !c.Pass {
			decision = DecisionNOGO
			break
		}
	}
	return &Result{
		Mode:       in.Mode,
		Decision:   decision,
		GOCriteria: goCriteria,
		NOGOChecks: nogoChecks,
	}
}

func (e *Evaluator) goCriteria(in Input) []CriterionResult {
	// Stable under degradation: DegradedAvg > 0 AND DegradedAvg/RealisticAvg >= ratio
	stable := false
	stableActual := fmt.Sprintf("Degraded=%.2f, Realistic=%.2f", in.DegradedAvg, in.RealisticAvg)
	if in.RealisticAvg > 0 {
		ratio := in.DegradedAvg / in.RealisticAvg
		stable = in.DegradedAvg > 0 && ratio >= e.th.MinDegradedRatio
		stableActual = fmt.Sprintf("Degraded=%.2f, Ratio=%.2f", in.DegradedAvg, ratio)
	}

	return []CriterionResult{
		{
			Name:      "Win rate",
			Threshold: fmt.Sprintf(">= %.0f%%", e.th.MinWinRate*100),
			Actual:    fmt.Sprintf("%.1f%%", in.WinRate*100),
			Pass:      in.WinRate >= e.th.MinWinRate,
		},
		{
			Name:      "Median net pips",
			Threshold: "> 0",
			Actual:    fmt.Sprintf("%.2f", in.MedianNetPips),
			Pass:      in.MedianNetPips > 0,
		},
		{
			Name:      "Profit factor",
			Threshold: fmt.Sprintf(">= %.2f", e.th.MinProfitFactor),
			Actual:    fmt.Sprintf("%.2f", in.ProfitFactor),
			Pass:      in.ProfitFactor >= e.th.MinProfitFactor,
		},
		{
			Name:      "Stable under degradation",
			Threshold: fmt.Sprintf("Degraded > 0 AND ratio >= %.2f", e.th.MinDegradedRatio),
			Actual:    stableActual,
			Pass:      stable,
		},
		{
			Name:      "Entered trades",
			Threshold: fmt.Sprintf(">= %d", in.MinTrades),
			Actual:    fmt.Sprintf("%d", in.EnteredTrades),
			Pass:      in.EnteredTrades >= in.MinTrades,
		},
	}
}

func (e *Evaluator) nogoTriggers(in Input) []CriterionResult {
	return []CriterionResult{
		{
			Name:      "Whipsaw prone",
			Threshold: fmt.Sprintf("> %.0f%% of entries", e.th.MaxWhipsawFrequency*100),
			Actual:    fmt.Sprintf("%.1f%%", in.WhipsawFrequency*100),
			Pass:      in.WhipsawFrequency <= e.th.MaxWhipsawFrequency,
		},
		{
			Name:      "Edge disappears under degradation",
			Threshold: "Realistic > 0 AND Degraded <= 0",
			Actual:    fmt.Sprintf("Realistic=%.2f, Degraded=%.2f", in.RealisticAvg, in.DegradedAvg),
			Pass:      !(in.RealisticAvg > 0 && in.DegradedAvg <= 0),
		},
		{
			Name:      "Losing on average",
			Threshold: "Realistic avg <= 0",
			Actual:    fmt.Sprintf("%.2f", in.RealisticAvg),
			Pass:      in.RealisticAvg > 0,
		},
	}
}
