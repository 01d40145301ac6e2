// Package straddle derives straddle trade-management parameters from an
// impact profile.
package straddle

import (
	"fmt"
	"math"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/metrics"
)

// Heuristics are the empirically tuned thresholds of the derivation.
type Heuristics struct {
	// RecentATRMinutes is how many trailing pre-event minutes form the
	// recent ATR and the entry-lead search.
	RecentATRMinutes int `yaml:"recent_atr_minutes" default:"5" validate:"gte=1,lte=30"`

	// Timeout scan: from StartCheck (StartCheckHigh when the volatility
	// increase exceeds StartCheckIncreasePct), the first minute whose
	// trailing RollingWindow-minute ATR average is <= PeakRatio x peak.
	StartCheckLow         int     `yaml:"start_check_low" default:"1" validate:"gte=0"`
	StartCheckHigh        int     `yaml:"start_check_high" default:"5" validate:"gte=0"`
	StartCheckIncreasePct float64 `yaml:"start_check_increase_pct" default:"20"`
	RollingWindow         int     `yaml:"rolling_window" default:"3" validate:"gte=1"`
	PeakRatio             float64 `yaml:"peak_ratio" default:"0.6" validate:"gt=0,lte=1"`

	// Anti-premature-exit floor.
	FloorIncreasePct float64 `yaml:"floor_increase_pct" default:"30"`
	FloorTimeout     int     `yaml:"floor_timeout" default:"15" validate:"gt=0"`

	// Fallbacks when no minute crosses the threshold.
	FallbackHighIncreasePct float64 `yaml:"fallback_high_increase_pct" default:"50"`
	FallbackHighTimeout     int     `yaml:"fallback_high_timeout" default:"45" validate:"gt=0"`
	FallbackLowIncreasePct  float64 `yaml:"fallback_low_increase_pct" default:"10"`
	FallbackLowTimeout      int     `yaml:"fallback_low_timeout" default:"50" validate:"gt=0"`
	FallbackTimeout         int     `yaml:"fallback_timeout" default:"60" validate:"gt=0"`

	// Simultaneous mode.
	SimultaneousNoiseMultiplier float64 `yaml:"simultaneous_noise_multiplier" default:"1.2" validate:"gte=1"`
	RecoveryRangeMultiplier     float64 `yaml:"recovery_range_multiplier" default:"1.5" validate:"gt=0"`
	RecoveryStopMultiplier      float64 `yaml:"recovery_stop_multiplier" default:"1.2" validate:"gt=0"`
}

// DefaultHeuristics returns the stock thresholds.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		RecentATRMinutes:            5,
		StartCheckLow:               1,
		StartCheckHigh:              5,
		StartCheckIncreasePct:       20,
		RollingWindow:               3,
		PeakRatio:                   0.6,
		FloorIncreasePct:            30,
		FloorTimeout:                15,
		FallbackHighIncreasePct:     50,
		FallbackHighTimeout:         45,
		FallbackLowIncreasePct:      10,
		FallbackLowTimeout:          50,
		FallbackTimeout:             60,
		SimultaneousNoiseMultiplier: 1.2,
		RecoveryRangeMultiplier:     1.5,
		RecoveryStopMultiplier:      1.2,
	}
}

// Calculator derives StraddleParameters.
type Calculator struct {
	h     Heuristics
	sizer Sizer
}

// NewCalculator creates a calculator. A nil sizer selects ATRSizer with
// default multipliers.
func NewCalculator(h Heuristics, sizer Sizer) *Calculator {
	if sizer == nil {
		sizer = NewATRSizer(DefaultSizingConfig())
	}
	if h.RecentATRMinutes <= 0 {
		h.RecentATRMinutes = 5
	}
	if h.RollingWindow <= 0 {
		h.RollingWindow = 3
	}
	return &Calculator{h: h, sizer: sizer}
}

// Derive computes parameters for mode from profile.
func (c *Calculator) Derive(p *domain.ImpactProfile, mode domain.StraddleMode, pipValue float64) (domain.StraddleParameters, error) {
	if mode != domain.ModeDirectional && mode != domain.ModeSimultaneous {
		return domain.StraddleParameters{}, fmt.Errorf("%w: unknown straddle mode %q", domain.ErrValidation, mode)
	}
	if pipValue <= 0 {
		return domain.StraddleParameters{}, fmt.Errorf("%w: pip value must be positive", domain.ErrValidation)
	}
	if len(p.ATRPre) == 0 || len(p.ATRPost) == 0 {
		return domain.StraddleParameters{}, fmt.Errorf("%w: profile has empty timelines", domain.ErrInsufficientData)
	}

	recentATR := c.RecentATR(p.ATRPre) / pipValue
	timeout := c.Timeout(p.ATRPost, p.VolatilityIncreasePct)

	noise := p.NoiseDuring
	if mode == domain.ModeSimultaneous {
		noise *= c.h.SimultaneousNoiseMultiplier
	}

	size := c.sizer.Size(SizingInput{
		RecentATRPips: recentATR,
		NoiseRatio:    noise,
		PipValue:      pipValue,
		TimeoutHint:   timeout,
		P95WickPips:   p.P95Wick / pipValue,
	})

	params := domain.StraddleParameters{
		Symbol:           p.Symbol,
		EventType:        p.EventType,
		Mode:             mode,
		OffsetPips:       size.OffsetPips,
		StopLossPips:     size.StopLossPips,
		TrailingStopPips: size.TrailingStopPips,
		TimeoutMinutes:   timeout,
		EntryLeadMinutes: c.BestMoment(p.ATRPre),
		RecentATRPips:    recentATR,
		NoiseRatio:       noise,
		PipValue:         pipValue,
	}
	if mode == domain.ModeSimultaneous {
		params.SLRecoveryPips = c.slRecovery(p.P95Range/pipValue, size.StopLossPips)
	}
	return params, nil
}

// RecentATR is the mean of the last RecentATRMinutes pre-event values.
func (c *Calculator) RecentATR(pre []float64) float64 {
	return metrics.Mean(tail(pre, c.h.RecentATRMinutes))
}

// BestMoment returns the entry lead in minutes before the event: the
// position of the highest ATR among the last RecentATRMinutes pre-event
// minutes, where the final pre-event minute is 0. Ties pick the earliest.
func (c *Calculator) BestMoment(pre []float64) int {
	recent := tail(pre, c.h.RecentATRMinutes)
	if len(recent) == 0 {
		return 0
	}
	best := 0
	for i, v := range recent {
		if v > recent[best] {
			best = i
		}
	}
	return len(recent) - 1 - best
}

// Timeout scans the post-event timeline for the first minute where
// volatility has faded to PeakRatio of its peak.
func (c *Calculator) Timeout(post []float64, increasePct float64) int {
	peak := 0.0
	for _, v := range post {
		peak = math.Max(peak, v)
	}

	start := c.h.StartCheckLow
	if increasePct > c.h.StartCheckIncreasePct {
		start = c.h.StartCheckHigh
	}

	// Only full windows count.
	if start < c.h.RollingWindow-1 {
		start = c.h.RollingWindow - 1
	}

	candidate := -1
	if peak > 0 {
		threshold := peak * c.h.PeakRatio
		for m := start; m < len(post); m++ {
			if metrics.Mean(post[m-c.h.RollingWindow+1:m+1]) <= threshold {
				candidate = m
				break
			}
		}
	}

	switch {
	case candidate >= 0:
		if increasePct > c.h.FloorIncreasePct && candidate < c.h.FloorTimeout {
			return c.h.FloorTimeout
		}
		if candidate == 0 {
			return 1
		}
		return candidate
	case increasePct > c.h.FallbackHighIncreasePct:
		return c.h.FallbackHighTimeout
	case increasePct < c.h.FallbackLowIncreasePct:
		return c.h.FallbackLowTimeout
	default:
		return c.h.FallbackTimeout
	}
}

// slRecovery bounds the recovery distance by both the P95 range and the
// stop loss. Without range data only the stop-loss bound applies.
func (c *Calculator) slRecovery(p95RangePips, stopLossPips float64) float64 {
	r := c.h.RecoveryStopMultiplier * stopLossPips
	if p95RangePips > 0 {
		r = math.Min(r, c.h.RecoveryRangeMultiplier*p95RangePips)
	}
	return roundPips(r)
}

func tail(values []float64, n int) []float64 {
	if n > len(values) {
		n = len(values)
	}
	return values[len(values)-n:]
}
