// Package reporting renders the impact, parameter and backtest results of
// one (symbol, event type) pair as Markdown and CSV.
package reporting

import (
	"time"

	"event-impact-lab/internal/decision"
	"event-impact-lab/internal/domain"
)

// Report is the full study of one event type on one symbol.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Symbol      string
	EventType   string
	PipValue    float64

	Profile *domain.ImpactProfile
	Decay   domain.DecayProfile

	// One entry per straddle mode, directional first.
	Parameters []domain.StraddleParameters

	// Data Quality (sufficiency checks)
	DataQuality DataQualitySection

	// Backtests (sorted by mode, scenario)
	Backtests []BacktestRow

	// Comparisons
	ScenarioSensitivity []ScenarioSensitivityRow // realistic vs pessimistic vs degraded

	// One verdict per mode with both a realistic and a degraded run.
	Decisions []*decision.Result

	// Trades of the realistic directional run, for replaying single occurrences.
	TradeReferences []domain.TradeResult
}

// DataQualitySection contains sufficiency checks on the profile's sample.
type DataQualitySection struct {
	SufficiencyChecks []SufficiencyCheckRow
	AllChecksPassed   bool
}

// SufficiencyCheckRow represents one sufficiency criterion.
type SufficiencyCheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// BacktestRow summarizes one backtest run.
type BacktestRow struct {
	RunID                string
	Mode                 domain.StraddleMode
	ScenarioID           string
	Occurrences          int
	EnteredTrades        int
	Wins                 int
	Whipsaws             int
	Timeouts             int
	WinRate              float64
	WhipsawFrequency     float64
	ProfitFactor         float64
	TotalNetPips         float64
	AvgNetPips           float64
	MedianNetPips        float64
	MaxDrawdownPips      float64
	MaxConsecutiveLosses int
	ConfidenceScore      float64
	LowSampleWarning     bool
}

// ScenarioSensitivityRow compares average net pips across cost scenarios.
type ScenarioSensitivityRow struct {
	Mode            domain.StraddleMode
	RealisticAvg    float64
	PessimisticAvg  float64
	DegradedAvg     float64
	DegradationPips float64 // realistic - degraded
}
