package domain

import "time"

// Outcome classifies how a simulated straddle ended.
type Outcome string

// Outcomes.
const (
	OutcomeTakeProfit Outcome = "TakeProfit"
	OutcomeStopLoss   Outcome = "StopLoss"
	OutcomeTimeout    Outcome = "Timeout"
	OutcomeNoEntry    Outcome = "NoEntry"
	OutcomeWhipsaw    Outcome = "Whipsaw"
)

// Side of a filled straddle leg.
type Side string

// Sides.
const (
	SideLong  Side = "long"
	SideShort Side = "short"
	SideNone  Side = ""
)

// TradeResult is one simulated event occurrence.
// Corresponds to the backtest_trades table.
type TradeResult struct {
	ID        string    `json:"id"` // deterministic hash
	EventTime time.Time `json:"event_time"`
	Side      Side      `json:"side"`
	Outcome   Outcome   `json:"outcome"`

	EntryPrice float64 `json:"entry_price"` // reference close before the event
	FillPrice  float64 `json:"fill_price"`
	ExitPrice  float64 `json:"exit_price"`

	GrossPips float64 `json:"gross_pips"`
	NetPips   float64 `json:"net_pips"` // after spread and slippage
	MFEPips   float64 `json:"mfe_pips"`
	MAEPips   float64 `json:"mae_pips"`

	EntryTime time.Time `json:"entry_time"`
	FillTime  time.Time `json:"fill_time,omitempty"`
	ExitTime  time.Time `json:"exit_time,omitempty"`
}

// Entered reports whether a stop order was filled.
func (t *TradeResult) Entered() bool {
	return t.Outcome != OutcomeNoEntry
}

// BacktestResult aggregates a straddle simulation over every occurrence of
// an event type on one symbol.
type BacktestResult struct {
	RunID      string             `json:"run_id"`
	Symbol     string             `json:"symbol"`
	EventType  string             `json:"event_type"`
	Scenario   string             `json:"scenario"`
	Parameters StraddleParameters `json:"parameters"`
	Trades     []TradeResult      `json:"trades"`

	TotalOccurrences int `json:"total_occurrences"`
	EnteredTrades    int `json:"entered_trades"`
	Wins             int `json:"wins"`
	Losses           int `json:"losses"`
	Whipsaws         int `json:"whipsaws"`
	Timeouts         int `json:"timeouts"`

	SkippedOccurrences int `json:"skipped_occurrences"`

	WinRate              float64 `json:"win_rate"`
	WhipsawFrequency     float64 `json:"whipsaw_frequency"`
	ProfitFactor         float64 `json:"profit_factor"`
	TotalNetPips         float64 `json:"total_net_pips"`
	AvgNetPips           float64 `json:"avg_net_pips"`
	MedianNetPips        float64 `json:"median_net_pips"`
	MaxDrawdownPips      float64 `json:"max_drawdown_pips"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	ConfidenceScore      float64 `json:"confidence_score"`
	LowSampleWarning     bool    `json:"low_sample_warning"`

	CreatedAt time.Time `json:"created_at"`
}
