package domain

import "fmt"

// CostScenario represents execution cost assumptions for a backtest.
type CostScenario struct {
	ScenarioID   string  `yaml:"id" json:"id"`
	SpreadPips   float64 `yaml:"spread_pips" json:"spread_pips"`     // paid once per trade
	SlippagePips float64 `yaml:"slippage_pips" json:"slippage_pips"` // paid on entry and exit
}

// Scenario ID constants
const (
	ScenarioOptimistic  = "optimistic"
	ScenarioRealistic   = "realistic"
	ScenarioPessimistic = "pessimistic"
	ScenarioDegraded    = "degraded"
)

// Predefined cost scenarios for major pairs around news releases.
var (
	ScenarioOptimisticCosts = CostScenario{
		ScenarioID:   ScenarioOptimistic,
		SpreadPips:   0.5,
		SlippagePips: 0.2,
	}

	ScenarioRealisticCosts = CostScenario{
		ScenarioID:   ScenarioRealistic,
		SpreadPips:   1.5,
		SlippagePips: 0.5,
	}

	ScenarioPessimisticCosts = CostScenario{
		ScenarioID:   ScenarioPessimistic,
		SpreadPips:   3.0,
		SlippagePips: 1.5,
	}

	ScenarioDegradedCosts = CostScenario{
		ScenarioID:   ScenarioDegraded,
		SpreadPips:   6.0,
		SlippagePips: 3.0,
	}
)

// TotalCostPips is the round-trip cost deducted from gross pips.
func (c CostScenario) TotalCostPips() float64 {
	return c.SpreadPips + 2*c.SlippagePips
}

// LookupCostScenario resolves a scenario ID. An empty ID selects realistic.
func LookupCostScenario(id string) (CostScenario, error) {
	switch id {
	case ScenarioOptimistic:
		return ScenarioOptimisticCosts, nil
	case ScenarioRealistic, "":
		return ScenarioRealisticCosts, nil
	case ScenarioPessimistic:
		return ScenarioPessimisticCosts, nil
	case ScenarioDegraded:
		return ScenarioDegradedCosts, nil
	default:
		return CostScenario{}, fmt.Errorf("%w: unknown scenario %q", ErrValidation, id)
	}
}
