package lookup

import (
	"errors"
	"sort"
	"time"

	"event-impact-lab/internal/domain"
)

// Errors returned by lookup functions.
var (
	ErrNoPriceData   = errors.New("no price data available")
	ErrNoPriceBefore = errors.New("no price at or before target")
)

// SearchFrom returns the index of the first point with Time >= target.
// Returns len(points) when every point is earlier. Points must be sorted ASC.
func SearchFrom(points []domain.PricePoint, target time.Time) int {
	return sort.Search(len(points), func(i int) bool {
		return !points[i].Time.Before(target)
	})
}

// Between returns the sub-slice with from <= Time < to.
// The result aliases the input.
func Between(points []domain.PricePoint, from, to time.Time) []domain.PricePoint {
	if !from.Before(to) {
		return nil
	}
	lo := SearchFrom(points, from)
	hi := SearchFrom(points, to)
	if lo >= hi {
		return nil
	}
	return points[lo:hi]
}

// IndexAtOrBefore returns the index of the last point with Time <= target,
// or -1 when none exists.
func IndexAtOrBefore(points []domain.PricePoint, target time.Time) int {
	i := sort.Search(len(points), func(i int) bool {
		return points[i].Time.After(target)
	})
	return i - 1
}

// CloseAt returns the close of the last point at or before target.
// Unlike a forward fill, a later price is never used: the caller would
// otherwise see the future.
func CloseAt(points []domain.PricePoint, target time.Time) (domain.PricePoint, error) {
	if len(points) == 0 {
		return domain.PricePoint{}, ErrNoPriceData
	}
	i := IndexAtOrBefore(points, target)
	if i < 0 {
		return domain.PricePoint{}, ErrNoPriceBefore
	}
	return points[i], nil
}
