package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// StraddleMode selects which derivation produced a parameter set. The
// backtest simulates both modes with the same order handling.
type StraddleMode string

// Straddle modes.
const (
	// ModeDirectional sizes for one expected breakout.
	ModeDirectional StraddleMode = "directional"
	// ModeSimultaneous inflates noise for two live pending orders and sets
	// an SL recovery distance.
	ModeSimultaneous StraddleMode = "simultaneous"
)

// ParseStraddleMode normalizes a mode label.
func ParseStraddleMode(s string) (StraddleMode, error) {
	switch StraddleMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDirectional, "":
		return ModeDirectional, nil
	case ModeSimultaneous:
		return ModeSimultaneous, nil
	default:
		return "", fmt.Errorf("%w: unknown straddle mode %q", ErrValidation, s)
	}
}

// StraddleParameters holds trade-management numbers derived for one
// (symbol, event type, mode). Distances are in pips.
type StraddleParameters struct {
	Symbol    string       `json:"symbol"`
	EventType string       `json:"event_type"`
	Mode      StraddleMode `json:"mode"`

	OffsetPips       float64 `json:"offset_pips"`
	StopLossPips     float64 `json:"stop_loss_pips"`
	TrailingStopPips float64 `json:"trailing_stop_pips"`
	TimeoutMinutes   int     `json:"timeout_minutes"`
	SLRecoveryPips   float64 `json:"sl_recovery_pips"` // advisory; not simulated
	EntryLeadMinutes int     `json:"entry_lead_minutes"`

	RecentATRPips float64 `json:"recent_atr_pips"`
	NoiseRatio    float64 `json:"noise_ratio"`
	PipValue      float64 `json:"pip_value"`
}

// Validate checks the parameters can drive a simulation.
func (p *StraddleParameters) Validate() error {
	if p.OffsetPips <= 0 {
		return fmt.Errorf("%w: offset must be positive", ErrValidation)
	}
	if p.StopLossPips <= 0 {
		return fmt.Errorf("%w: stop loss must be positive", ErrValidation)
	}
	if p.TrailingStopPips < 0 {
		return fmt.Errorf("%w: trailing stop must not be negative", ErrValidation)
	}
	if p.TimeoutMinutes <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrValidation)
	}
	if p.EntryLeadMinutes < 0 || p.EntryLeadMinutes >= PreEventMinutes {
		return fmt.Errorf("%w: entry lead must be within 0-%d", ErrValidation, PreEventMinutes-1)
	}
	return nil
}

// PointDistances holds straddle distances in broker-native points.
type PointDistances struct {
	Offset       int64 `json:"offset"`
	StopLoss     int64 `json:"stop_loss"`
	TrailingStop int64 `json:"trailing_stop"`
	SLRecovery   int64 `json:"sl_recovery"`
}

// ToPoints converts pip distances to whole points, rounding half away from zero.
func (p *StraddleParameters) ToPoints(pointsPerPip int64) PointDistances {
	if pointsPerPip <= 0 {
		pointsPerPip = 10
	}
	mul := decimal.NewFromInt(pointsPerPip)
	conv := func(pips float64) int64 {
		return decimal.NewFromFloat(pips).Mul(mul).Round(0).IntPart()
	}
	return PointDistances{
		Offset:       conv(p.OffsetPips),
		StopLoss:     conv(p.StopLossPips),
		TrailingStop: conv(p.TrailingStopPips),
		SLRecovery:   conv(p.SLRecoveryPips),
	}
}
