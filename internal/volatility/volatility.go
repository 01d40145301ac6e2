// Package volatility compares candle ranges around an event with a
// same-hour historical baseline.
package volatility

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"event-impact-lab/internal/domain"
)

// Source is the subset of the candle index guard the engine reads.
type Source interface {
	Range(symbol string, startDate, endDate time.Time) ([]domain.PricePoint, bool)
	Baseline(symbol string, eventTime time.Time, daysBack int) ([]domain.PricePoint, bool)
}

// Compute returns event and baseline volatility in pips.
// The event window is [eventTime-window, eventTime+window] inclusive.
// Missing data yields zeros, never an error.
func Compute(src Source, symbol string, eventTime time.Time, windowMinutes, baselineDays int, pipValue float64) domain.VolatilityMetrics {
	eventTime = eventTime.UTC()
	m := domain.VolatilityMetrics{
		Symbol:    symbol,
		EventTime: eventTime,
		PipValue:  pipValue,
		Direction: domain.DirectionFlat,
	}
	if pipValue <= 0 {
		return m
	}

	window := time.Duration(windowMinutes) * time.Minute
	from, to := eventTime.Add(-window), eventTime.Add(window)

	if candidates, ok := src.Range(symbol, from, to); ok {
		inWindow := make([]domain.PricePoint, 0, 2*windowMinutes+1)
		for _, p := range candidates {
			if p.Time.Before(from) || p.Time.After(to) {
				continue
			}
			inWindow = append(inWindow, p)
		}
		m.EventVolatility = meanRangePips(inWindow, pipValue)
		m.EventCandles = len(inWindow)
		if len(inWindow) > 0 {
			m.NetChangePips = (inWindow[len(inWindow)-1].Close - inWindow[0].Open) / pipValue
			m.Direction = direction(m.NetChangePips)
		}
	}

	if baseline, ok := src.Baseline(symbol, eventTime, baselineDays); ok {
		m.BaselineVolatility = meanRangePips(baseline, pipValue)
		m.BaselineCandles = len(baseline)
	}

	if m.BaselineVolatility > 0 {
		m.Multiplier = m.EventVolatility / m.BaselineVolatility
	}
	return m
}

// meanRangePips sums ranges in decimal so quoted prices such as
// 1.1050-1.1030 give exactly 20 pips rather than 19.999999999997797.
func meanRangePips(points []domain.PricePoint, pipValue float64) float64 {
	if len(points) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, p := range points {
		sum = sum.Add(decimal.NewFromFloat(p.High).Sub(decimal.NewFromFloat(p.Low)))
	}
	return sum.
		Div(decimal.NewFromInt(int64(len(points)))).
		Div(decimal.NewFromFloat(pipValue)).
		InexactFloat64()
}

// direction labels a net move, treating anything under a tenth of a pip as flat.
func direction(netPips float64) domain.Direction {
	switch {
	case math.Abs(netPips) < 0.1:
		return domain.DirectionFlat
	case netPips > 0:
		return domain.DirectionUp
	default:
		return domain.DirectionDown
	}
}
