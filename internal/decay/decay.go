// Package decay measures how quickly post-event volatility fades.
package decay

import (
	"fmt"

	"event-impact-lab/internal/domain"
)

// Config holds the speed buckets and the timeout each one recommends.
// A rate above FastRate is fast, above MediumRate medium, otherwise slow.
type Config struct {
	FastRate      float64 `yaml:"fast_rate" default:"1.0" validate:"gtfield=MediumRate"`
	MediumRate    float64 `yaml:"medium_rate" default:"0.3" validate:"gte=0"`
	FastTimeout   int     `yaml:"fast_timeout" default:"15" validate:"gt=0"`
	MediumTimeout int     `yaml:"medium_timeout" default:"30" validate:"gt=0"`
	SlowTimeout   int     `yaml:"slow_timeout" default:"60" validate:"gt=0"`
	// HalfLifeRatio is the fraction of the peak the series must fall to.
	HalfLifeRatio float64 `yaml:"half_life_ratio" default:"0.5" validate:"gt=0,lt=1"`
}

// DefaultConfig returns the stock buckets.
func DefaultConfig() Config {
	return Config{
		FastRate:      1.0,
		MediumRate:    0.3,
		FastTimeout:   15,
		MediumTimeout: 30,
		SlowTimeout:   60,
		HalfLifeRatio: 0.5,
	}
}

// Analyze derives a decay profile from a post-event ATR series expressed
// in pips, index 0 being the event minute.
func Analyze(series []float64, cfg Config) (domain.DecayProfile, error) {
	if len(series) == 0 {
		return domain.DecayProfile{}, fmt.Errorf("%w: empty post-event series", domain.ErrInsufficientData)
	}
	if cfg.HalfLifeRatio <= 0 || cfg.HalfLifeRatio >= 1 {
		cfg.HalfLifeRatio = 0.5
	}

	peakIdx, peak := 0, series[0]
	for i, v := range series {
		if v > peak {
			peakIdx, peak = i, v
		}
	}

	// Walk forward until the series reaches the target or runs out.
	end := len(series) - 1
	target := peak * cfg.HalfLifeRatio
	for i := peakIdx + 1; i < len(series); i++ {
		if series[i] <= target {
			end = i
			break
		}
	}

	rate := 0.0
	if elapsed := end - peakIdx; elapsed > 0 {
		rate = (peak - series[end]) / float64(elapsed)
	}
	if rate < 0 {
		rate = 0
	}

	p := domain.DecayProfile{
		PeakDelay:   peakIdx,
		PeakATRPips: peak,
		DecayRate:   rate,
	}
	switch {
	case rate > cfg.FastRate:
		p.Speed, p.RecommendedTimeout = domain.DecayFast, cfg.FastTimeout
	case rate > cfg.MediumRate:
		p.Speed, p.RecommendedTimeout = domain.DecayMedium, cfg.MediumTimeout
	default:
		p.Speed, p.RecommendedTimeout = domain.DecaySlow, cfg.SlowTimeout
	}
	return p, nil
}

// FromProfile converts the profile's post-event ATR to pips and analyzes it.
func FromProfile(p *domain.ImpactProfile, pipValue float64, cfg Config) (domain.DecayProfile, error) {
	if pipValue <= 0 {
		return domain.DecayProfile{}, fmt.Errorf("%w: pip value must be positive", domain.ErrValidation)
	}
	series := make([]float64, len(p.ATRPost))
	for i, v := range p.ATRPost {
		series[i] = v / pipValue
	}
	d, err := Analyze(series, cfg)
	if err != nil {
		return d, err
	}
	d.Symbol, d.EventType = p.Symbol, p.EventType
	return d, nil
}
