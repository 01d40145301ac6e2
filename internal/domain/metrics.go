package domain

import "time"

// Timeline lengths of an impact profile.
const (
	PreEventMinutes  = 30
	PostEventMinutes = 90
	WindowMinutes    = PreEventMinutes + PostEventMinutes
)

// VolatilityMetrics compares an event window against a same-hour baseline.
// Volatilities are mean (high-low) ranges expressed in pips.
type VolatilityMetrics struct {
	Symbol             string    `json:"symbol"`
	EventTime          time.Time `json:"event_time"`
	EventVolatility    float64   `json:"event_volatility"`
	BaselineVolatility float64   `json:"baseline_volatility"`
	Multiplier         float64   `json:"multiplier"`
	EventCandles       int       `json:"event_candles"`
	BaselineCandles    int       `json:"baseline_candles"`
	PipValue           float64   `json:"pip_value"`

	// Direction is taken from the net price change across the event window,
	// never from the volatility ratio.
	NetChangePips float64   `json:"net_change_pips"`
	Direction     Direction `json:"direction"`
}

// Direction of the net price move across an event window.
type Direction string

// Directions.
const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

// ImpactProfile aggregates per-minute behaviour across all historical
// occurrences of one event type on one symbol.
// ATR, wick and range values are in price units.
type ImpactProfile struct {
	Symbol    string `json:"symbol"`
	EventType string `json:"event_type"`

	ATRPre   []float64 `json:"atr_pre"`   // 30 values, minute -30..-1
	ATRPost  []float64 `json:"atr_post"`  // 90 values, minute 0..89
	BodyPre  []float64 `json:"body_pre"`  // body% per pre-event minute
	BodyPost []float64 `json:"body_post"` // body% per post-event minute

	NoiseBefore float64 `json:"noise_before"`
	NoiseDuring float64 `json:"noise_during"`
	NoiseAfter  float64 `json:"noise_after"`

	VolatilityIncreasePct float64 `json:"volatility_increase_pct"`
	P95Wick               float64 `json:"p95_wick"`
	P95Range              float64 `json:"p95_range"`
	PeakATR               float64 `json:"peak_atr"`
	PeakMinute            int     `json:"peak_minute"`

	AvgDeviation  float64 `json:"avg_deviation"`
	SurpriseCount int     `json:"surprise_count"`

	Occurrences        int `json:"occurrences"`
	SkippedOccurrences int `json:"skipped_occurrences"`
}

// DecaySpeed labels how fast post-event volatility fades.
type DecaySpeed string

// Decay speed buckets.
const (
	DecayFast   DecaySpeed = "fast"
	DecayMedium DecaySpeed = "medium"
	DecaySlow   DecaySpeed = "slow"
)

// DecayProfile describes the shape of a post-event ATR series.
type DecayProfile struct {
	Symbol             string     `json:"symbol"`
	EventType          string     `json:"event_type"`
	PeakDelay          int        `json:"peak_delay"` // minutes after the event minute
	PeakATRPips        float64    `json:"peak_atr_pips"`
	DecayRate          float64    `json:"decay_rate"` // pips per minute
	Speed              DecaySpeed `json:"speed"`
	RecommendedTimeout int        `json:"recommended_timeout"`
}

// HeatmapCell is the mean event/baseline multiplier of one event type on one symbol.
type HeatmapCell struct {
	Symbol         string  `json:"symbol"`
	EventType      string  `json:"event_type"`
	Occurrences    int     `json:"occurrences"`
	MeanMultiplier float64 `json:"mean_multiplier"`
	MaxMultiplier  float64 `json:"max_multiplier"`
	MeanEventPips  float64 `json:"mean_event_pips"`
}

// Heatmap is a symbols x event-types grid.
type Heatmap struct {
	Symbols    []string      `json:"symbols"`
	EventTypes []string      `json:"event_types"`
	Cells      []HeatmapCell `json:"cells"`
}

// HourlyVolatility is the mean pip range of a fixed intraday quarter-hour
// across the whole loaded history.
type HourlyVolatility struct {
	Symbol      string  `json:"symbol"`
	Hour        int     `json:"hour"`
	Quarter     int     `json:"quarter"`
	Candles     int     `json:"candles"`
	MeanPips    float64 `json:"mean_pips"`
	MedianPips  float64 `json:"median_pips"`
	P95Pips     float64 `json:"p95_pips"`
	MeanBodyPct float64 `json:"mean_body_pct"`
}
