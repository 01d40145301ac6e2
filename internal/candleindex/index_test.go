package candleindex

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"event-impact-lab/internal/domain"
)

type stubFeed struct {
	mu      sync.Mutex
	candles map[string][]*domain.Candle
	calls   map[string]int
	err     error
}

func newStubFeed() *stubFeed {
	return &stubFeed{candles: make(map[string][]*domain.Candle), calls: make(map[string]int)}
}

func (f *stubFeed) FetchCandles(_ context.Context, symbol string) ([]*domain.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
	if f.err != nil {
		return nil, f.err
	}
	return f.candles[symbol], nil
}

// addMinutes appends n consecutive M1 candles starting at start.
func (f *stubFeed) addMinutes(symbol string, start time.Time, n int) {
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		f.candles[symbol] = append(f.candles[symbol], &domain.Candle{
			Symbol:    symbol,
			Timeframe: domain.TimeframeM1,
			Time:      ts,
			Open:      1.1000,
			High:      1.1010,
			Low:       1.0990,
			Close:     1.1005,
		})
	}
}

func loaded(t *testing.T, f *stubFeed, symbols ...string) (*Index, *Guard) {
	t.Helper()
	idx := New(f)
	g := idx.Acquire()
	for _, s := range symbols {
		if err := g.Load(context.Background(), s); err != nil {
			t.Fatalf("load %s: %v", s, err)
		}
	}
	return idx, g
}

func TestLoad_Idempotent(t *testing.T) {
	f := newStubFeed()
	f.addMinutes("EURUSD", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 10)

	_, g := loaded(t, f, "EURUSD")
	defer g.Release()

	if err := g.Load(context.Background(), "EURUSD"); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if f.calls["EURUSD"] != 1 {
		t.Errorf("expected 1 fetch, got %d", f.calls["EURUSD"])
	}
	if g.Len("EURUSD") != 10 {
		t.Errorf("expected 10 candles, got %d", g.Len("EURUSD"))
	}
}

func TestLoad_EmptyIsValid(t *testing.T) {
	f := newStubFeed()
	_, g := loaded(t, f, "GBPUSD")
	defer g.Release()

	if !g.Loaded("GBPUSD") {
		t.Fatal("expected symbol to be marked loaded")
	}
	points, ok := g.Range("GBPUSD", time.Now(), time.Now())
	if !ok {
		t.Fatal("expected ok for loaded empty symbol")
	}
	if len(points) != 0 {
		t.Errorf("expected no points, got %d", len(points))
	}
}

func TestLoad_FetchError(t *testing.T) {
	f := newStubFeed()
	f.err = errors.New("disk gone")

	idx := New(f)
	g := idx.Acquire()
	defer g.Release()

	err := g.Load(context.Background(), "EURUSD")
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if g.Loaded("EURUSD") {
		t.Error("failed load must not mark symbol loaded")
	}
}

func TestLoad_SortsAndDedupes(t *testing.T) {
	f := newStubFeed()
	t0 := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	f.candles["EURUSD"] = []*domain.Candle{
		{Symbol: "EURUSD", Time: t0.Add(2 * time.Minute), High: 3},
		{Symbol: "EURUSD", Time: t0, High: 1},
		{Symbol: "EURUSD", Time: t0.Add(time.Minute), High: 2},
		{Symbol: "EURUSD", Time: t0.Add(time.Minute), High: 2.5},
		{Symbol: "USDJPY", Time: t0, High: 150},
	}

	_, g := loaded(t, f, "EURUSD")
	defer g.Release()

	points, _ := g.Window("EURUSD", t0, t0.Add(time.Hour))
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	for i := 1; i < len(points); i++ {
		if !points[i-1].Time.Before(points[i].Time) {
			t.Errorf("points not ascending at %d", i)
		}
	}
	if points[1].High != 2.5 {
		t.Errorf("expected last duplicate to win, got %f", points[1].High)
	}
}

func TestUnloadedSymbol_Unavailable(t *testing.T) {
	idx := New(newStubFeed())
	g := idx.Acquire()
	defer g.Release()

	now := time.Now()
	if _, ok := g.Range("EURUSD", now, now); ok {
		t.Error("Range should report unavailable for unloaded symbol")
	}
	if _, ok := g.Baseline("EURUSD", now, 5); ok {
		t.Error("Baseline should report unavailable for unloaded symbol")
	}
	if _, ok := g.Window("EURUSD", now, now.Add(time.Hour)); ok {
		t.Error("Window should report unavailable for unloaded symbol")
	}
}

func TestRange_DateInclusive(t *testing.T) {
	f := newStubFeed()
	// Jan 1 23:58 through Jan 4 00:01
	f.addMinutes("EURUSD", time.Date(2024, 1, 1, 23, 58, 0, 0, time.UTC), 2*24*60+4)

	_, g := loaded(t, f, "EURUSD")
	defer g.Release()

	start := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 1, 0, 0, 0, time.UTC)
	points, ok := g.Range("EURUSD", start, end)
	if !ok {
		t.Fatal("expected ok")
	}
	if len(points) != 2*24*60 {
		t.Fatalf("expected two full days, got %d", len(points))
	}
	first, last := points[0].Time, points[len(points)-1].Time
	if !first.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected first %v", first)
	}
	if !last.Equal(time.Date(2024, 1, 3, 23, 59, 0, 0, time.UTC)) {
		t.Errorf("unexpected last %v", last)
	}
}

func TestBaseline_ExcludesEventDate(t *testing.T) {
	f := newStubFeed()
	// Five full days of minutes.
	f.addMinutes("EURUSD", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 5*24*60)

	_, g := loaded(t, f, "EURUSD")
	defer g.Release()

	event := time.Date(2024, 1, 5, 14, 30, 0, 0, time.UTC)
	points, ok := g.Baseline("EURUSD", event, 3)
	if !ok {
		t.Fatal("expected ok")
	}
	eventDay := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	for _, p := range points {
		if p.Time.Hour() != 14 {
			t.Fatalf("candle outside event hour: %v", p.Time)
		}
		if !p.Time.Before(eventDay) {
			t.Fatalf("candle on event date: %v", p.Time)
		}
		if p.Time.Before(event.AddDate(0, 0, -3)) {
			t.Fatalf("candle before lookback: %v", p.Time)
		}
	}
	// Jan 2 14:30-14:59 (30), Jan 3 and Jan 4 full hour (60 each)
	if len(points) != 150 {
		t.Errorf("expected 150 baseline candles, got %d", len(points))
	}
}

func TestSliceAllHistory(t *testing.T) {
	f := newStubFeed()
	f.addMinutes("EURUSD", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3*24*60)

	_, g := loaded(t, f, "EURUSD")
	defer g.Release()

	points := g.SliceAllHistory("EURUSD", 8, 15, 30)
	if len(points) != 3*15 {
		t.Fatalf("expected 45 candles, got %d", len(points))
	}
	for _, p := range points {
		if p.Time.Hour() != 8 || p.Time.Minute() < 15 || p.Time.Minute() >= 30 {
			t.Fatalf("candle outside slot: %v", p.Time)
		}
	}
	if got := g.SliceAllHistory("GBPUSD", 8, 0, 15); len(got) != 0 {
		t.Errorf("expected empty for unloaded symbol, got %d", len(got))
	}
}

func TestInvalidate_Refetches(t *testing.T) {
	f := newStubFeed()
	f.addMinutes("EURUSD", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 5)

	_, g := loaded(t, f, "EURUSD")
	defer g.Release()

	g.Invalidate("EURUSD")
	if g.Loaded("EURUSD") {
		t.Fatal("expected symbol to be unloaded")
	}
	if err := g.Load(context.Background(), "EURUSD"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if f.calls["EURUSD"] != 2 {
		t.Errorf("expected 2 fetches, got %d", f.calls["EURUSD"])
	}
	if syms := g.Symbols(); len(syms) != 1 || syms[0] != "EURUSD" {
		t.Errorf("unexpected symbols %v", syms)
	}
}

func TestGuard_ReleaseIdempotentAndExclusive(t *testing.T) {
	idx := New(newStubFeed())
	g := idx.Acquire()

	acquired := make(chan struct{})
	go func() {
		g2 := idx.Acquire()
		close(acquired)
		g2.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("second guard acquired while first held")
	case <-time.After(20 * time.Millisecond):
	}

	g.Release()
	g.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second guard never acquired")
	}
}
