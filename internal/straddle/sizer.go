package straddle

import (
	"math"

	"github.com/shopspring/decimal"
)

// SizingInput is what a sizer sees when turning volatility into distances.
type SizingInput struct {
	RecentATRPips float64
	NoiseRatio    float64
	PipValue      float64
	TimeoutHint   int     // minutes, 0 when unknown
	P95WickPips   float64 // 0 when unknown
}

// Sizing holds distances in pips.
type Sizing struct {
	OffsetPips       float64
	StopLossPips     float64
	TrailingStopPips float64
}

// Sizer converts volatility statistics into order distances.
type Sizer interface {
	Size(in SizingInput) Sizing
}

// SizingConfig parameterizes ATRSizer.
type SizingConfig struct {
	OffsetMultiplier   float64 `yaml:"offset_multiplier" default:"1.5" validate:"gt=0"`
	StopLossMultiplier float64 `yaml:"stop_loss_multiplier" default:"2.0" validate:"gt=0"`
	TrailingMultiplier float64 `yaml:"trailing_multiplier" default:"1.0" validate:"gt=0"`

	// Noise above 1 widens every distance by (noise-1)*NoiseDampening,
	// never by more than NoiseFactorCap overall.
	NoiseDampening float64 `yaml:"noise_dampening" default:"0.25" validate:"gte=0"`
	NoiseFactorCap float64 `yaml:"noise_factor_cap" default:"2.0" validate:"gte=1"`

	MinOffsetPips   float64 `yaml:"min_offset_pips" default:"3" validate:"gte=0"`
	MinStopLossPips float64 `yaml:"min_stop_loss_pips" default:"5" validate:"gte=0"`
	MinTrailingPips float64 `yaml:"min_trailing_pips" default:"3" validate:"gte=0"`

	// Timeouts longer than TrailingTimeoutRef widen the trailing stop
	// proportionally, up to TrailingWidenCap.
	TrailingTimeoutRef int     `yaml:"trailing_timeout_ref" default:"30" validate:"gt=0"`
	TrailingWidenCap   float64 `yaml:"trailing_widen_cap" default:"1.5" validate:"gte=1"`
}

// DefaultSizingConfig returns the stock multipliers.
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		OffsetMultiplier:   1.5,
		StopLossMultiplier: 2.0,
		TrailingMultiplier: 1.0,
		NoiseDampening:     0.25,
		NoiseFactorCap:     2.0,
		MinOffsetPips:      3,
		MinStopLossPips:    5,
		MinTrailingPips:    3,
		TrailingTimeoutRef: 30,
		TrailingWidenCap:   1.5,
	}
}

// ATRSizer scales recent ATR by fixed multipliers.
type ATRSizer struct {
	cfg SizingConfig
}

// NewATRSizer creates a sizer.
func NewATRSizer(cfg SizingConfig) *ATRSizer {
	return &ATRSizer{cfg: cfg}
}

var _ Sizer = (*ATRSizer)(nil)

// Size implements Sizer.
func (s *ATRSizer) Size(in SizingInput) Sizing {
	nf := s.noiseFactor(in.NoiseRatio)
	atr := in.RecentATRPips

	offset := math.Max(atr*s.cfg.OffsetMultiplier*nf, s.cfg.MinOffsetPips)
	offset = math.Max(offset, in.P95WickPips)

	stop := math.Max(atr*s.cfg.StopLossMultiplier*nf, s.cfg.MinStopLossPips)

	widen := 1.0
	if in.TimeoutHint > s.cfg.TrailingTimeoutRef {
		widen = math.Min(float64(in.TimeoutHint)/float64(s.cfg.TrailingTimeoutRef), s.cfg.TrailingWidenCap)
	}
	trailing := math.Max(atr*s.cfg.TrailingMultiplier*nf*widen, s.cfg.MinTrailingPips)

	return Sizing{
		OffsetPips:       roundPips(offset),
		StopLossPips:     roundPips(stop),
		TrailingStopPips: roundPips(trailing),
	}
}

func (s *ATRSizer) noiseFactor(noise float64) float64 {
	if noise <= 1 {
		return 1
	}
	return math.Min(1+(noise-1)*s.cfg.NoiseDampening, s.cfg.NoiseFactorCap)
}

// roundPips rounds to a tenth of a pip, half away from zero.
func roundPips(v float64) float64 {
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}
