// Package decision turns backtest results of one straddle setup into a
// GO/NO-GO verdict with a checklist of the criteria behind it.
package decision

import "event-impact-lab/internal/domain"

// Decision represents the final GO/NO-GO result.
type Decision string

const (
	DecisionGO   Decision = "GO"
	DecisionNOGO Decision = "NO-GO"
)

// Input contains the numbers a verdict is based on. Realistic drives the
// verdict; Degraded checks that the edge survives worse fills.
type Input struct {
	Mode domain.StraddleMode

	// Realistic scenario
	EnteredTrades    int
	WinRate          float64
	MedianNetPips    float64
	ProfitFactor     float64
	WhipsawFrequency float64
	RealisticAvg     float64

	// Degraded scenario
	DegradedAvg float64

	// Sample
	MinTrades int
}

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// Result contains the verdict with its checklist.
type Result struct {
	Mode       domain.StraddleMode
	Decision   Decision
	GOCriteria []CriterionResult
	NOGOChecks []CriterionResult // Pass=false means triggered
}
