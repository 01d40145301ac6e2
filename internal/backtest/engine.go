package backtest

import (
	"math"
	"time"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/lookup"
)

// Config tunes the bar-by-bar simulation.
type Config struct {
	// WhipsawLookaheadMinutes is how long after a fill the opposite stop
	// still classifies the trade as a whipsaw.
	WhipsawLookaheadMinutes int `yaml:"whipsaw_lookahead_minutes" default:"5" validate:"gte=1"`
}

// DefaultConfig returns the stock simulation settings.
func DefaultConfig() Config {
	return Config{WhipsawLookaheadMinutes: 5}
}

// state of one simulated straddle.
type state int

const (
	statePending state = iota
	stateLong
	stateShort
	stateClosed
)

// Engine simulates one straddle per event occurrence.
type Engine struct {
	cfg Config
}

// NewEngine creates a new simulation engine.
func NewEngine(cfg Config) *Engine {
	if cfg.WhipsawLookaheadMinutes <= 0 {
		cfg.WhipsawLookaheadMinutes = 5
	}
	return &Engine{cfg: cfg}
}

// trade carries the mutable simulation state.
type trade struct {
	st        state
	fillSide  state
	pip       float64
	buyStop   float64
	sellStop  float64
	fill      float64
	hardStop  float64
	peak      float64 // best price since fill: high for long, low for short
	trailing  float64 // price distance
	mfe, mae  float64 // pips
	fillTime  time.Time
	exit      float64
	exitTime  time.Time
	outcome   domain.Outcome
	lookahead time.Duration
}

// Simulate runs the straddle around eventTime over points, which must be
// ascending and cover [eventTime-lead-1m, eventTime+timeout).
// ok is false when no reference bar exists before the entry time.
//
// Order of checks for an open position on each bar: whipsaw (opposite stop
// inside the lookahead), hard stop, trailing stop, then timeout once the
// bars run out. Both stops inside the fill bar is a whipsaw.
// The mode only matters to the derivation; orders are handled the same way.
func (e *Engine) Simulate(points []domain.PricePoint, eventTime time.Time, p domain.StraddleParameters, costs domain.CostScenario) (domain.TradeResult, bool) {
	eventTime = eventTime.UTC()
	entryTime := eventTime.Add(-time.Duration(p.EntryLeadMinutes) * time.Minute)
	deadline := eventTime.Add(time.Duration(p.TimeoutMinutes) * time.Minute)

	// The bar stamped entryTime-1m closes at entryTime.
	ref, err := lookup.CloseAt(points, entryTime.Add(-time.Minute))
	if err != nil || ref.Time.Before(entryTime.Add(-domain.PreEventMinutes*time.Minute)) {
		return domain.TradeResult{}, false
	}

	pip := p.PipValue
	t := &trade{
		st:        statePending,
		pip:       pip,
		buyStop:   ref.Close + p.OffsetPips*pip,
		sellStop:  ref.Close - p.OffsetPips*pip,
		trailing:  p.TrailingStopPips * pip,
		lookahead: time.Duration(e.cfg.WhipsawLookaheadMinutes) * time.Minute,
	}

	res := domain.TradeResult{
		EventTime:  eventTime,
		EntryPrice: ref.Close,
		EntryTime:  entryTime,
		Outcome:    domain.OutcomeNoEntry,
	}

	var last domain.PricePoint
	for _, bar := range lookup.Between(points, entryTime, deadline) {
		last = bar
		switch t.st {
		case statePending:
			e.onPending(t, bar, p)
		case stateLong:
			e.onLong(t, bar)
		case stateShort:
			e.onShort(t, bar)
		}
		if t.st == stateClosed {
			break
		}
	}

	switch t.st {
	case statePending:
		return res, true
	case stateLong, stateShort:
		e.close(t, domain.OutcomeTimeout, last.Close, last.Time.Add(time.Minute))
	}

	res.Side = sideOf(t)
	res.Outcome = t.outcome
	res.FillPrice = t.fill
	res.FillTime = t.fillTime
	res.ExitPrice = t.exit
	res.ExitTime = t.exitTime
	res.MFEPips = t.mfe
	res.MAEPips = t.mae
	if res.Side == domain.SideLong {
		res.GrossPips = (t.exit - t.fill) / pip
	} else {
		res.GrossPips = (t.fill - t.exit) / pip
	}
	res.NetPips = res.GrossPips - costs.TotalCostPips()
	return res, true
}

func (e *Engine) onPending(t *trade, bar domain.PricePoint, p domain.StraddleParameters) {
	buyHit := bar.High >= t.buyStop
	sellHit := bar.Low <= t.sellStop
	if !buyHit && !sellHit {
		return
	}

	t.fillTime = bar.Time
	slDist := p.StopLossPips * t.pip

	if buyHit && sellHit {
		// Both levels inside one bar: assume the one nearer the open filled first.
		loss := math.Min(slDist, t.buyStop-t.sellStop)
		if t.buyStop-bar.Open <= bar.Open-t.sellStop {
			t.st = stateLong
			t.fill = t.buyStop
			t.exit = t.fill - loss
		} else {
			t.st = stateShort
			t.fill = t.sellStop
			t.exit = t.fill + loss
		}
		t.mae = loss / t.pip
		e.close(t, domain.OutcomeWhipsaw, t.exit, bar.Time.Add(time.Minute))
		return
	}

	if buyHit {
		t.st = stateLong
		t.fill = math.Max(t.buyStop, bar.Open)
		t.hardStop = t.fill - slDist
	} else {
		t.st = stateShort
		t.fill = math.Min(t.sellStop, bar.Open)
		t.hardStop = t.fill + slDist
	}
	e.onFillBar(t, bar)
}

// onFillBar measures the remainder of the fill bar from the fill price.
// The intrabar order is unknown, so the hard stop only triggers when the
// bar closes beyond it and the trailing stop waits for the next bar.
func (e *Engine) onFillBar(t *trade, bar domain.PricePoint) {
	exitAt := bar.Time.Add(time.Minute)
	if t.st == stateLong {
		t.mfe = math.Max(0, (bar.High-t.fill)/t.pip)
		t.mae = math.Max(0, (t.fill-bar.Low)/t.pip)
		t.peak = math.Max(t.fill, bar.High)
		if bar.Close <= t.hardStop {
			e.close(t, domain.OutcomeStopLoss, t.hardStop, exitAt)
		}
		return
	}
	t.mfe = math.Max(0, (t.fill-bar.Low)/t.pip)
	t.mae = math.Max(0, (bar.High-t.fill)/t.pip)
	t.peak = math.Min(t.fill, bar.Low)
	if bar.Close >= t.hardStop {
		e.close(t, domain.OutcomeStopLoss, t.hardStop, exitAt)
	}
}

func (e *Engine) onLong(t *trade, bar domain.PricePoint) {
	t.mfe = math.Max(t.mfe, (bar.High-t.fill)/t.pip)
	t.mae = math.Max(t.mae, (t.fill-bar.Low)/t.pip)
	exitAt := bar.Time.Add(time.Minute)

	if bar.Time.Before(t.fillTime.Add(t.lookahead)) && bar.Low <= t.sellStop {
		e.close(t, domain.OutcomeWhipsaw, math.Max(t.hardStop, t.sellStop), exitAt)
		return
	}
	if bar.Low <= t.hardStop {
		e.close(t, domain.OutcomeStopLoss, math.Min(t.hardStop, bar.Open), exitAt)
		return
	}
	if t.trailing > 0 && t.peak-t.fill >= t.trailing {
		if level := t.peak - t.trailing; bar.Low <= level {
			e.close(t, domain.OutcomeTakeProfit, math.Min(level, bar.Open), exitAt)
			return
		}
	}
	t.peak = math.Max(t.peak, bar.High)
}

func (e *Engine) onShort(t *trade, bar domain.PricePoint) {
	t.mfe = math.Max(t.mfe, (t.fill-bar.Low)/t.pip)
	t.mae = math.Max(t.mae, (bar.High-t.fill)/t.pip)
	exitAt := bar.Time.Add(time.Minute)

	if bar.Time.Before(t.fillTime.Add(t.lookahead)) && bar.High >= t.buyStop {
		e.close(t, domain.OutcomeWhipsaw, math.Min(t.hardStop, t.buyStop), exitAt)
		return
	}
	if bar.High >= t.hardStop {
		e.close(t, domain.OutcomeStopLoss, math.Max(t.hardStop, bar.Open), exitAt)
		return
	}
	if t.trailing > 0 && t.fill-t.peak >= t.trailing {
		if level := t.peak + t.trailing; bar.High >= level {
			e.close(t, domain.OutcomeTakeProfit, math.Max(level, bar.Open), exitAt)
			return
		}
	}
	t.peak = math.Min(t.peak, bar.Low)
}

func (e *Engine) close(t *trade, outcome domain.Outcome, price float64, at time.Time) {
	t.side()
	t.outcome = outcome
	t.exit = price
	t.exitTime = at
	t.st = stateClosed
}

// side freezes the filled side before the state moves to closed.
func (t *trade) side() {
	if t.st == stateLong || t.st == stateShort {
		t.fillSide = t.st
	}
}

func sideOf(t *trade) domain.Side {
	switch t.fillSide {
	case stateLong:
		return domain.SideLong
	case stateShort:
		return domain.SideShort
	default:
		return domain.SideNone
	}
}
