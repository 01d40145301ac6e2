// Package impact builds per-minute impact profiles of an event type by
// averaging every historical occurrence with full candle coverage.
package impact

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/metrics"
)

// Source is the subset of the candle index guard the analyzer reads.
type Source interface {
	Window(symbol string, from, to time.Time) ([]domain.PricePoint, bool)
}

// Config tunes profile construction.
type Config struct {
	// MinCandles is the coverage an occurrence needs to contribute.
	MinCandles int `yaml:"min_candles" default:"120" validate:"gte=1,lte=120"`
	// SurpriseThreshold is the |actual-forecast| above which an occurrence
	// counts as a surprise.
	SurpriseThreshold float64 `yaml:"surprise_threshold" default:"0" validate:"gte=0"`
	// ExtremesFrom and ExtremesTo bound the minutes, relative to the event,
	// whose wicks and ranges feed the P95 statistics: [from, to).
	ExtremesFrom int `yaml:"extremes_from" default:"-5"`
	ExtremesTo   int `yaml:"extremes_to" default:"15"`
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{MinCandles: domain.WindowMinutes, ExtremesFrom: -5, ExtremesTo: 15}
}

// Analyzer builds impact profiles.
type Analyzer struct {
	cfg Config
	log zerolog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(cfg Config, log zerolog.Logger) *Analyzer {
	if cfg.MinCandles <= 0 {
		cfg.MinCandles = domain.WindowMinutes
	}
	if cfg.ExtremesFrom == 0 && cfg.ExtremesTo == 0 {
		cfg.ExtremesFrom, cfg.ExtremesTo = -5, 15
	}
	return &Analyzer{cfg: cfg, log: log}
}

// accumulator holds running sums across occurrences.
type accumulator struct {
	atr, body [domain.WindowMinutes]float64
	count     [domain.WindowMinutes]int

	noiseBefore, noiseDuring, noiseAfter float64

	wicks, ranges []float64

	deviations []float64
	surprises  int
}

// Analyze builds the profile of eventType on symbol from occurrences.
// Returns ErrNotFound when occurrences is empty and ErrInsufficientData when
// no occurrence has enough candles.
func (a *Analyzer) Analyze(src Source, symbol, eventType string, occurrences []*domain.CalendarEvent) (*domain.ImpactProfile, error) {
	if len(occurrences) == 0 {
		return nil, fmt.Errorf("%w: no occurrences of %q", domain.ErrNotFound, eventType)
	}

	acc := &accumulator{}
	contributed, skipped := 0, 0
	for _, ev := range dedupeByTime(occurrences) {
		start := ev.Time.UTC().Add(-domain.PreEventMinutes * time.Minute)
		points, ok := src.Window(symbol, start, start.Add(domain.WindowMinutes*time.Minute))
		if !ok {
			return nil, fmt.Errorf("%w: symbol %s not loaded", domain.ErrNotFound, symbol)
		}
		if len(points) < a.cfg.MinCandles {
			skipped++
			a.log.Debug().
				Str("symbol", symbol).
				Time("event_time", ev.Time).
				Int("candles", len(points)).
				Msg("occurrence skipped")
			continue
		}
		a.accumulate(acc, start, points)
		contributed++

		if d, ok := ev.Deviation(); ok {
			acc.deviations = append(acc.deviations, d)
			if d > a.cfg.SurpriseThreshold {
				acc.surprises++
			}
		}
	}

	if contributed == 0 {
		return nil, fmt.Errorf("%w: none of %d occurrences of %q has %d candles",
			domain.ErrInsufficientData, skipped, eventType, a.cfg.MinCandles)
	}

	p := &domain.ImpactProfile{
		Symbol:             symbol,
		EventType:          eventType,
		ATRPre:             make([]float64, domain.PreEventMinutes),
		ATRPost:            make([]float64, domain.PostEventMinutes),
		BodyPre:            make([]float64, domain.PreEventMinutes),
		BodyPost:           make([]float64, domain.PostEventMinutes),
		Occurrences:        contributed,
		SkippedOccurrences: skipped,
		SurpriseCount:      acc.surprises,
		AvgDeviation:       metrics.Mean(acc.deviations),
	}
	for i := 0; i < domain.WindowMinutes; i++ {
		atr, body := 0.0, 0.0
		if n := acc.count[i]; n > 0 {
			atr = acc.atr[i] / float64(n)
			body = acc.body[i] / float64(n)
		}
		if i < domain.PreEventMinutes {
			p.ATRPre[i], p.BodyPre[i] = atr, body
		} else {
			p.ATRPost[i-domain.PreEventMinutes], p.BodyPost[i-domain.PreEventMinutes] = atr, body
		}
	}

	occ := float64(contributed)
	p.NoiseBefore = acc.noiseBefore / (domain.PreEventMinutes * occ)
	p.NoiseDuring = acc.noiseDuring / occ
	p.NoiseAfter = acc.noiseAfter / ((domain.PostEventMinutes - 1) * occ)

	sort.Float64s(acc.wicks)
	sort.Float64s(acc.ranges)
	p.P95Wick = metrics.Percentile(acc.wicks, 0.95)
	p.P95Range = metrics.Percentile(acc.ranges, 0.95)

	p.VolatilityIncreasePct = VolatilityIncrease(p.ATRPre, p.ATRPost)
	p.PeakMinute, p.PeakATR = argmax(p.ATRPost)
	return p, nil
}

func (a *Analyzer) accumulate(acc *accumulator, start time.Time, points []domain.PricePoint) {
	lo := domain.PreEventMinutes + a.cfg.ExtremesFrom
	hi := domain.PreEventMinutes + a.cfg.ExtremesTo

	for k, pt := range points {
		i := int(pt.Time.Sub(start) / time.Minute)
		if i < 0 || i >= domain.WindowMinutes {
			continue
		}

		tr := pt.Range()
		if k > 0 {
			prev := points[k-1].Close
			tr = math.Max(tr, math.Max(math.Abs(pt.High-prev), math.Abs(pt.Low-prev)))
		}
		body := pt.BodyPct()

		acc.atr[i] += tr
		acc.body[i] += body
		acc.count[i]++

		noise := 1.0
		if body > 0 {
			noise = 100 / body
		}
		switch {
		case i < domain.PreEventMinutes:
			acc.noiseBefore += noise
		case i == domain.PreEventMinutes:
			acc.noiseDuring += noise
		default:
			acc.noiseAfter += noise
		}

		if i >= lo && i < hi {
			acc.wicks = append(acc.wicks, pt.UpperWick(), pt.LowerWick())
			acc.ranges = append(acc.ranges, pt.Range())
		}
	}
}

// VolatilityIncrease returns the percentage change of the post-event mean
// ATR over the pre-event mean, 0 when the pre-event mean is 0.
func VolatilityIncrease(pre, post []float64) float64 {
	preMean := metrics.Mean(pre)
	if preMean == 0 {
		return 0
	}
	return (metrics.Mean(post) - preMean) / preMean * 100
}

func argmax(values []float64) (int, float64) {
	idx, peak := 0, 0.0
	for i, v := range values {
		if v > peak {
			idx, peak = i, v
		}
	}
	return idx, peak
}

// dedupeByTime drops repeated releases at the same instant, which happen
// when an event is matched through both currencies of a pair.
func dedupeByTime(events []*domain.CalendarEvent) []*domain.CalendarEvent {
	seen := make(map[int64]struct{}, len(events))
	out := make([]*domain.CalendarEvent, 0, len(events))
	for _, e := range events {
		key := e.Time.Unix()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}
