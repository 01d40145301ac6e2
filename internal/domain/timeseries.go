package domain

import (
	"math"
	"time"
)

// Timeframe identifies the candle resolution.
type Timeframe string

// Supported timeframes. Only M1 candles are consumed by the analysis core.
const (
	TimeframeM1 Timeframe = "M1"
)

// Candle represents one OHLC bar for a symbol.
// Immutable once stored; identified by (symbol, timeframe, time).
type Candle struct {
	Symbol    string    // instrument, e.g. EURUSD
	Timeframe Timeframe // bar resolution
	Time      time.Time // bar open time (UTC)
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	SpreadAvg *float64 // average spread over the bar (nullable)
	SpreadMax *float64 // max spread over the bar (nullable)
	TickCount *int64   // ticks aggregated into the bar (nullable)
}

// Range returns high - low.
func (c *Candle) Range() float64 {
	return c.High - c.Low
}

// Body returns |close - open|.
func (c *Candle) Body() float64 {
	return math.Abs(c.Close - c.Open)
}

// UpperWick returns the distance between high and the top of the body.
func (c *Candle) UpperWick() float64 {
	return c.High - math.Max(c.Open, c.Close)
}

// LowerWick returns the distance between the bottom of the body and low.
func (c *Candle) LowerWick() float64 {
	return math.Min(c.Open, c.Close) - c.Low
}

// BodyPct returns body as a percentage of range, 0 when range is 0.
func (c *Candle) BodyPct() float64 {
	r := c.Range()
	if r <= 0 {
		return 0
	}
	return c.Body() / r * 100
}

// PricePoint is the compact per-minute view of a candle kept by the index.
type PricePoint struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Point projects a candle onto its index representation.
func (c *Candle) Point() PricePoint {
	return PricePoint{Time: c.Time, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close}
}

// Range returns high - low.
func (p PricePoint) Range() float64 {
	return p.High - p.Low
}

// BodyPct returns |close-open| as a percentage of range, 0 when range is 0.
func (p PricePoint) BodyPct() float64 {
	r := p.High - p.Low
	if r <= 0 {
		return 0
	}
	return math.Abs(p.Close-p.Open) / r * 100
}

// UpperWick returns high minus the top of the body.
func (p PricePoint) UpperWick() float64 {
	return p.High - math.Max(p.Open, p.Close)
}

// LowerWick returns the bottom of the body minus low.
func (p PricePoint) LowerWick() float64 {
	return math.Min(p.Open, p.Close) - p.Low
}
