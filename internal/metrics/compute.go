package metrics

import (
	"math"
	"sort"
)

// Mean calculates the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Stddev calculates sample standard deviation (n-1 denominator).
func Stddev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0 // Need at least 2 samples for sample stddev
	}
	mean := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// Percentile uses linear interpolation between closest ranks.
// sorted must be pre-sorted ASC.
// p is a fraction (0.95 = 95th percentile).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	if p <= 0 {
		return sorted[0]
	}

	// Index for percentile (0-based, continuous)
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	// Linear interpolation
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// PercentileOf sorts a copy of values and returns the p-th percentile.
func PercentileOf(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return Percentile(sorted, p)
}

// MaxDrawdown calculates worst peak-to-trough on cumulative outcomes.
// max_drawdown = MAX(peak_cumulative - trough_cumulative)
// Outcomes must be in chronological order.
func MaxDrawdown(outcomes []float64) float64 {
	if len(outcomes) == 0 {
		return 0
	}

	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, o := range outcomes {
		cumulative += o
		if cumulative > peak {
			peak = cumulative
		}
		drawdown := peak - cumulative
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// MaxConsecutiveLosses finds longest streak of outcome <= 0.
// Outcomes must be in chronological order.
func MaxConsecutiveLosses(outcomes []float64) int {
	maxStreak := 0
	currentStreak := 0

	for _, o := range outcomes {
		if o <= 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}

// ProfitFactor returns gross gains / gross losses, capped at limit.
// With no losses it returns limit when there were gains and 0 otherwise.
func ProfitFactor(outcomes []float64, limit float64) float64 {
	gains, losses := 0.0, 0.0
	for _, o := range outcomes {
		if o > 0 {
			gains += o
		} else {
			losses -= o
		}
	}
	if losses == 0 {
		if gains > 0 {
			return limit
		}
		return 0
	}
	return math.Min(gains/losses, limit)
}

// Confidence maps a sample size to 0-100, reaching 100 at reference samples.
func Confidence(n, reference int) float64 {
	if n <= 0 || reference <= 0 {
		return 0
	}
	return 100 * math.Min(1, math.Sqrt(float64(n)/float64(reference)))
}
