// Package candleindex keeps per-symbol minute candles in memory, sorted by
// time, and answers range and baseline queries with binary search.
//
// The index has a single lock. Callers take it once with Acquire and issue
// every query of a logical operation through the returned Guard, so that a
// concurrent reload of the same symbol can never interleave with a
// multi-query computation.
package candleindex

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/lookup"
	"event-impact-lab/internal/observability"
)

// Feed supplies the full M1 history of a symbol, ascending by time.
type Feed interface {
	FetchCandles(ctx context.Context, symbol string) ([]*domain.Candle, error)
}

// Index is the lazily populated candle cache.
type Index struct {
	mu     sync.Mutex
	feed   Feed
	series map[string][]domain.PricePoint
	log    zerolog.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the index logger.
func WithLogger(l zerolog.Logger) Option {
	return func(idx *Index) { idx.log = l }
}

// New creates an empty index backed by feed.
func New(feed Feed, opts ...Option) *Index {
	idx := &Index{
		feed:   feed,
		series: make(map[string][]domain.PricePoint),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Acquire blocks until the index lock is free and returns the guard that
// owns it. The caller must Release the guard.
func (idx *Index) Acquire() *Guard {
	start := time.Now()
	idx.mu.Lock()
	observability.RecordLockWait(time.Since(start).Seconds())
	return &Guard{idx: idx}
}

// Guard is exclusive access to the index for one logical operation.
// A Guard is not safe for use by multiple goroutines.
type Guard struct {
	idx      *Index
	released bool
}

// Release unlocks the index. Calling it more than once is a no-op.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.idx.mu.Unlock()
}

func (g *Guard) mustHold() {
	if g.released {
		panic("candleindex: use of released guard")
	}
}

// Load fetches and caches a symbol's candles. It is a no-op once the symbol
// is loaded; an empty history is a valid load.
func (g *Guard) Load(ctx context.Context, symbol string) error {
	g.mustHold()
	if _, ok := g.idx.series[symbol]; ok {
		return nil
	}

	start := time.Now()
	candles, err := g.idx.feed.FetchCandles(ctx, symbol)
	if err != nil {
		observability.RecordIndexLoad(symbol, 0, 0, err)
		return fmt.Errorf("%w: fetch candles for %s: %v", domain.ErrStorage, symbol, err)
	}

	points := make([]domain.PricePoint, 0, len(candles))
	for _, c := range candles {
		if c == nil || c.Symbol != symbol {
			continue
		}
		if c.Timeframe != "" && c.Timeframe != domain.TimeframeM1 {
			continue
		}
		p := c.Point()
		p.Time = p.Time.UTC()
		points = append(points, p)
	}
	// The feed promises ascending order; sort anyway so a misbehaving source
	// cannot break binary search.
	if !sort.SliceIsSorted(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) }) {
		sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	}
	points = dedupe(points)

	g.idx.series[symbol] = points
	elapsed := time.Since(start)
	observability.RecordIndexLoad(symbol, len(points), elapsed.Seconds(), nil)
	g.idx.log.Debug().
		Str("symbol", symbol).
		Int("candles", len(points)).
		Dur("elapsed", elapsed).
		Msg("symbol loaded")
	return nil
}

// dedupe keeps the last point per timestamp. points must be sorted.
func dedupe(points []domain.PricePoint) []domain.PricePoint {
	if len(points) < 2 {
		return points
	}
	out := points[:1]
	for _, p := range points[1:] {
		if p.Time.Equal(out[len(out)-1].Time) {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// Loaded reports whether symbol has been loaded.
func (g *Guard) Loaded(symbol string) bool {
	g.mustHold()
	_, ok := g.idx.series[symbol]
	return ok
}

// Invalidate drops a symbol so the next Load refetches it.
func (g *Guard) Invalidate(symbol string) {
	g.mustHold()
	delete(g.idx.series, symbol)
	observability.RecordIndexEvicted(symbol)
}

// Symbols returns the loaded symbols, sorted.
func (g *Guard) Symbols() []string {
	g.mustHold()
	out := make([]string, 0, len(g.idx.series))
	for s := range g.idx.series {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of candles held for symbol.
func (g *Guard) Len(symbol string) int {
	g.mustHold()
	return len(g.idx.series[symbol])
}

// Range returns candles with startDate <= date(ts) <= endDate, ascending.
// Only the calendar date of startDate and endDate is used.
// ok is false when the symbol was never loaded.
func (g *Guard) Range(symbol string, startDate, endDate time.Time) (points []domain.PricePoint, ok bool) {
	g.mustHold()
	series, ok := g.idx.series[symbol]
	if !ok {
		return nil, false
	}
	from := truncateDay(startDate)
	to := truncateDay(endDate).AddDate(0, 0, 1)
	return clone(lookup.Between(series, from, to)), true
}

// Window returns candles with from <= ts < to, ascending.
// ok is false when the symbol was never loaded.
func (g *Guard) Window(symbol string, from, to time.Time) (points []domain.PricePoint, ok bool) {
	g.mustHold()
	series, ok := g.idx.series[symbol]
	if !ok {
		return nil, false
	}
	return clone(lookup.Between(series, from.UTC(), to.UTC())), true
}

// Baseline returns candles with eventTime-daysBack days <= ts < eventTime
// whose hour equals the event hour, excluding the event's own date.
// ok is false when the symbol was never loaded.
func (g *Guard) Baseline(symbol string, eventTime time.Time, daysBack int) (points []domain.PricePoint, ok bool) {
	g.mustHold()
	series, ok := g.idx.series[symbol]
	if !ok {
		return nil, false
	}
	eventTime = eventTime.UTC()
	hour := eventTime.Hour()
	eventDay := truncateDay(eventTime)

	candidates := lookup.Between(series, eventTime.AddDate(0, 0, -daysBack), eventTime)
	out := make([]domain.PricePoint, 0)
	for _, p := range candidates {
		if p.Time.Hour() != hour {
			continue
		}
		if !p.Time.Before(eventDay) {
			continue
		}
		out = append(out, p)
	}
	return out, true
}

// SliceAllHistory returns every candle whose hour equals hour and whose
// minute lies in [minuteStart, minuteEnd), across the whole loaded history.
// An unloaded symbol yields an empty result.
func (g *Guard) SliceAllHistory(symbol string, hour, minuteStart, minuteEnd int) []domain.PricePoint {
	g.mustHold()
	series := g.idx.series[symbol]
	out := make([]domain.PricePoint, 0)
	if minuteStart < 0 {
		minuteStart = 0
	}
	if minuteEnd > 60 {
		minuteEnd = 60
	}
	if len(series) == 0 || minuteStart >= minuteEnd {
		return out
	}

	// Jump day by day to the requested slot instead of scanning every minute.
	day := truncateDay(series[0].Time)
	last := series[len(series)-1].Time
	for !day.After(last) {
		from := day.Add(time.Duration(hour)*time.Hour + time.Duration(minuteStart)*time.Minute)
		to := day.Add(time.Duration(hour)*time.Hour + time.Duration(minuteEnd)*time.Minute)
		out = append(out, lookup.Between(series, from, to)...)
		day = day.AddDate(0, 0, 1)
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func clone(points []domain.PricePoint) []domain.PricePoint {
	out := make([]domain.PricePoint, len(points))
	copy(out, points)
	return out
}
