package volatility

import (
	"context"
	"math"
	"testing"
	"time"

	"event-impact-lab/internal/candleindex"
	"event-impact-lab/internal/domain"
)

var event = time.Date(2024, 3, 8, 13, 30, 0, 0, time.UTC)

type feed map[string][]*domain.Candle

func (f feed) FetchCandles(_ context.Context, symbol string) ([]*domain.Candle, error) {
	return f[symbol], nil
}

func candle(ts time.Time, high, low float64) *domain.Candle {
	return &domain.Candle{
		Symbol:    "EURUSD",
		Timeframe: domain.TimeframeM1,
		Time:      ts,
		Open:      low,
		High:      high,
		Low:       low,
		Close:     high,
	}
}

func guardFor(t *testing.T, f feed) *candleindex.Guard {
	t.Helper()
	g := candleindex.New(f).Acquire()
	t.Cleanup(g.Release)
	if err := g.Load(context.Background(), "EURUSD"); err != nil {
		t.Fatalf("load: %v", err)
	}
	return g
}

func TestCompute_SingleCandleExactPips(t *testing.T) {
	g := guardFor(t, feed{"EURUSD": {candle(event.Add(5*time.Minute), 1.1050, 1.1030)}})

	m := Compute(g, "EURUSD", event, 30, 10, 0.0001)

	if m.EventVolatility != 20.0 {
		t.Errorf("expected exactly 20.0 pips, got %v", m.EventVolatility)
	}
	if m.EventCandles != 1 {
		t.Errorf("expected 1 event candle, got %d", m.EventCandles)
	}
	if m.Direction != domain.DirectionUp || math.Abs(m.NetChangePips-20) > 1e-6 {
		t.Errorf("expected up 20 pips, got %s %v", m.Direction, m.NetChangePips)
	}
}

func TestCompute_EmptyWindowIsZero(t *testing.T) {
	g := guardFor(t, feed{"EURUSD": {candle(event.Add(-48*time.Hour), 1.1, 1.09)}})

	m := Compute(g, "EURUSD", event, 30, 10, 0.0001)

	if m.EventVolatility != 0 {
		t.Errorf("expected 0 event volatility, got %v", m.EventVolatility)
	}
	if m.Direction != domain.DirectionFlat {
		t.Errorf("expected flat, got %s", m.Direction)
	}
}

func TestCompute_UnloadedSymbolIsZero(t *testing.T) {
	g := candleindex.New(feed{}).Acquire()
	defer g.Release()

	m := Compute(g, "GBPUSD", event, 30, 10, 0.0001)
	if m.EventVolatility != 0 || m.BaselineVolatility != 0 || m.Multiplier != 0 {
		t.Errorf("expected zeros, got %+v", m)
	}
}

func TestCompute_WindowBoundsInclusive(t *testing.T) {
	g := guardFor(t, feed{"EURUSD": {
		candle(event.Add(-31*time.Minute), 1.2, 1.0), // outside
		candle(event.Add(-30*time.Minute), 1.1002, 1.1000),
		candle(event.Add(30*time.Minute), 1.1004, 1.1000),
		candle(event.Add(31*time.Minute), 1.2, 1.0), // outside
	}})

	m := Compute(g, "EURUSD", event, 30, 10, 0.0001)

	if m.EventCandles != 2 {
		t.Fatalf("expected 2 candles, got %d", m.EventCandles)
	}
	if math.Abs(m.EventVolatility-3) > 1e-9 {
		t.Errorf("expected 3 pips, got %v", m.EventVolatility)
	}
}

func TestCompute_MultiplierZeroWithoutBaseline(t *testing.T) {
	g := guardFor(t, feed{"EURUSD": {candle(event, 1.1050, 1.1030)}})

	m := Compute(g, "EURUSD", event, 30, 10, 0.0001)

	if m.BaselineVolatility != 0 {
		t.Fatalf("expected no baseline, got %v", m.BaselineVolatility)
	}
	if m.Multiplier != 0 {
		t.Errorf("expected multiplier 0, got %v", m.Multiplier)
	}
}

func TestCompute_BaselineAndMultiplier(t *testing.T) {
	f := feed{"EURUSD": {
		candle(event.AddDate(0, 0, -2).Add(-10*time.Minute), 1.1005, 1.1000), // 13:20 two days back
		candle(event.AddDate(0, 0, -1), 1.1005, 1.1000),                      // 13:30 yesterday
		candle(event.Add(-20*time.Minute), 1.1010, 1.1000),                   // same day 13:10: event window only
		candle(event, 1.1020, 1.1000),
	}}
	g := guardFor(t, f)

	m := Compute(g, "EURUSD", event, 30, 5, 0.0001)

	if m.BaselineCandles != 2 {
		t.Fatalf("expected 2 baseline candles, got %d", m.BaselineCandles)
	}
	if math.Abs(m.BaselineVolatility-5) > 1e-9 {
		t.Errorf("expected baseline 5 pips, got %v", m.BaselineVolatility)
	}
	if math.Abs(m.EventVolatility-15) > 1e-9 {
		t.Errorf("expected event 15 pips, got %v", m.EventVolatility)
	}
	if math.Abs(m.Multiplier-3) > 1e-9 {
		t.Errorf("expected multiplier 3, got %v", m.Multiplier)
	}
}

func TestCompute_DoublingPipHalvesVolatility(t *testing.T) {
	f := feed{"EURUSD": {
		candle(event.AddDate(0, 0, -1), 1.10073, 1.10011),
		candle(event.AddDate(0, 0, -1).Add(time.Minute), 1.10131, 1.10017),
		candle(event, 1.10503, 1.10297),
		candle(event.Add(time.Minute), 1.10611, 1.10233),
	}}
	g := guardFor(t, f)

	a := Compute(g, "EURUSD", event, 30, 5, 0.0001)
	b := Compute(g, "EURUSD", event, 30, 5, 0.0002)

	if math.Abs(b.EventVolatility-a.EventVolatility/2) > 1e-9 {
		t.Errorf("event: %v is not half of %v", b.EventVolatility, a.EventVolatility)
	}
	if math.Abs(b.BaselineVolatility-a.BaselineVolatility/2) > 1e-9 {
		t.Errorf("baseline: %v is not half of %v", b.BaselineVolatility, a.BaselineVolatility)
	}
}
