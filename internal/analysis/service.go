// Package analysis is the single entry point of the command boundary.
// It coordinates: candle index → metrics / impact profile → straddle
// parameters → backtest, holding one index guard per logical operation.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"event-impact-lab/internal/backtest"
	"event-impact-lab/internal/cache"
	"event-impact-lab/internal/candleindex"
	"event-impact-lab/internal/config"
	"event-impact-lab/internal/decay"
	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/impact"
	"event-impact-lab/internal/metrics"
	"event-impact-lab/internal/observability"
	"event-impact-lab/internal/pip"
	"event-impact-lab/internal/storage"
	"event-impact-lab/internal/straddle"
	"event-impact-lab/internal/verification"
	"event-impact-lab/internal/volatility"
)

// EventFeed supplies calendar events (ingestion.StoreFeed).
type EventFeed interface {
	FetchEvents(ctx context.Context, filter storage.EventFilter) ([]*domain.CalendarEvent, error)
	EventTypes(ctx context.Context, filter storage.EventFilter) ([]string, error)
}

// Options for creating Service.
type Options struct {
	// Required
	Index  *candleindex.Index
	Events EventFeed
	Pips   *pip.Table

	// Optional
	Cache     cache.ProfileCache    // nil disables profile caching
	Backtests storage.BacktestStore // nil disables persistence and scenario comparison

	Config config.Analysis
	Logger zerolog.Logger
}

// Service answers every analysis request.
// Results are plain values and never alias index memory.
type Service struct {
	index     *candleindex.Index
	events    EventFeed
	pips      *pip.Table
	cache     cache.ProfileCache
	backtests storage.BacktestStore

	cfg        config.Analysis
	analyzer   *impact.Analyzer
	calculator *straddle.Calculator
	runner     *backtest.Runner
	log        zerolog.Logger
}

// New creates a Service.
func New(opts Options) *Service {
	pc := opts.Cache
	if pc == nil {
		pc = cache.Nop{}
	}
	pips := opts.Pips
	if pips == nil {
		pips = pip.NewTable(nil)
	}
	return &Service{
		index:      opts.Index,
		events:     opts.Events,
		pips:       pips,
		cache:      pc,
		backtests:  opts.Backtests,
		cfg:        opts.Config,
		analyzer:   impact.NewAnalyzer(opts.Config.Impact, opts.Logger),
		calculator: straddle.NewCalculator(opts.Config.Heuristics, straddle.NewATRSizer(opts.Config.Sizing)),
		runner:     backtest.NewRunner(opts.Config.Backtest, opts.Config.Aggregate, opts.Logger),
		log:        opts.Logger,
	}
}

// VolatilityMetrics compares the window around eventTime with the same-hour
// baseline. Zero or negative window and baseline select the configured
// defaults. Missing candles yield zeros, not an error.
func (s *Service) VolatilityMetrics(ctx context.Context, symbol string, eventTime time.Time, windowMinutes, baselineDays int) (m domain.VolatilityMetrics, err error) {
	defer s.observe("volatility", time.Now(), &err)

	symbol, err = normalizeSymbol(symbol)
	if err != nil {
		return m, err
	}
	if eventTime.IsZero() {
		return m, fmt.Errorf("%w: event time is required", domain.ErrValidation)
	}
	windowMinutes, baselineDays = s.windowDefaults(windowMinutes, baselineDays)

	g := s.index.Acquire()
	defer g.Release()
	if err := g.Load(ctx, symbol); err != nil {
		return m, err
	}
	return volatility.Compute(g, symbol, eventTime, windowMinutes, baselineDays, s.pips.Value(symbol)), nil
}

// ImpactProfile builds (or returns the cached) profile of eventType on symbol.
func (s *Service) ImpactProfile(ctx context.Context, symbol, eventType string) (p *domain.ImpactProfile, err error) {
	defer s.observe("impact", time.Now(), &err)

	symbol, eventType, err = normalizeKey(symbol, eventType)
	if err != nil {
		return nil, err
	}
	if p, ok := s.cache.Get(ctx, symbol, eventType); ok {
		observability.RecordProfileCache(true)
		return p, nil
	}
	observability.RecordProfileCache(false)

	occ, err := s.occurrences(ctx, symbol, eventType)
	if err != nil {
		return nil, err
	}

	g := s.index.Acquire()
	defer g.Release()
	return s.buildProfile(ctx, g, symbol, eventType, occ)
}

// StraddleParameters derives trade-management parameters for mode.
func (s *Service) StraddleParameters(ctx context.Context, symbol, eventType string, mode domain.StraddleMode) (params domain.StraddleParameters, err error) {
	defer s.observe("straddle", time.Now(), &err)

	if mode, err = domain.ParseStraddleMode(string(mode)); err != nil {
		return params, err
	}
	p, err := s.ImpactProfile(ctx, symbol, eventType)
	if err != nil {
		return params, err
	}
	return s.calculator.Derive(p, mode, s.pips.Value(p.Symbol))
}

// BacktestRequest selects what Backtest simulates.
type BacktestRequest struct {
	Symbol    string
	EventType string
	Mode      domain.StraddleMode
	// Params overrides the derived parameters when set.
	Params *domain.StraddleParameters
	// Scenario is a cost scenario ID; empty selects the configured default.
	Scenario string
}

// Backtest replays straddle parameters over every occurrence of the event
// type. The result is persisted when a BacktestStore is configured and
// persistence is enabled.
func (s *Service) Backtest(ctx context.Context, req BacktestRequest) (res *domain.BacktestResult, err error) {
	defer s.observe("backtest", time.Now(), &err)

	symbol, eventType, err := normalizeKey(req.Symbol, req.EventType)
	if err != nil {
		return nil, err
	}
	mode, err := domain.ParseStraddleMode(string(req.Mode))
	if err != nil {
		return nil, err
	}
	scenario := req.Scenario
	if scenario == "" {
		scenario = s.cfg.Scenario
	}
	costs, err := domain.LookupCostScenario(scenario)
	if err != nil {
		return nil, err
	}

	occ, err := s.occurrences(ctx, symbol, eventType)
	if err != nil {
		return nil, err
	}
	pipValue := s.pips.Value(symbol)

	g := s.index.Acquire()
	defer g.Release()

	var params domain.StraddleParameters
	if req.Params != nil {
		params = *req.Params
		if params.Mode == "" {
			params.Mode = mode
		}
		if err := params.Validate(); err != nil {
			return nil, err
		}
	} else {
		p, err := s.cachedOrBuiltProfile(ctx, g, symbol, eventType, occ)
		if err != nil {
			return nil, err
		}
		if params, err = s.calculator.Derive(p, mode, pipValue); err != nil {
			return nil, err
		}
	}
	params.Symbol, params.EventType, params.PipValue = symbol, eventType, pipValue

	if err := g.Load(ctx, symbol); err != nil {
		return nil, err
	}
	res, err = s.runner.Run(g, symbol, eventType, occ, params, costs)
	if err != nil {
		return nil, err
	}
	observability.RecordSkippedOccurrences(symbol, res.SkippedOccurrences)
	observability.RecordBacktest(string(params.Mode), outcomeCounts(res.Trades))

	if s.backtests != nil && s.cfg.PersistBacktests {
		if err := s.backtests.Insert(ctx, res); err != nil {
			return nil, fmt.Errorf("%w: persist backtest %s: %v", domain.ErrStorage, res.RunID, err)
		}
	}

	s.log.Info().
		Str("symbol", symbol).
		Str("event_type", eventType).
		Str("mode", string(params.Mode)).
		Str("scenario", costs.ScenarioID).
		Int("trades", len(res.Trades)).
		Float64("win_rate", res.WinRate).
		Float64("net_pips", res.TotalNetPips).
		Msg("backtest complete")
	return res, nil
}

// Decay describes how quickly volatility fades after eventType.
func (s *Service) Decay(ctx context.Context, symbol, eventType string) (d domain.DecayProfile, err error) {
	defer s.observe("decay", time.Now(), &err)

	p, err := s.ImpactProfile(ctx, symbol, eventType)
	if err != nil {
		return d, err
	}
	return decay.FromProfile(p, s.pips.Value(p.Symbol), s.cfg.Decay)
}

// HeatmapRequest selects the grid computed by Heatmap. Which calendar and
// which pairs are plain filter values.
type HeatmapRequest struct {
	Symbols    []string
	EventTypes []string // empty selects every type found for each symbol
	MinImpact  domain.Impact
	CalendarID string

	WindowMinutes int
	BaselineDays  int
}

// Heatmap computes the mean volatility multiplier of every (symbol, event
// type) pair. The index guard is held across all N x M computations.
func (s *Service) Heatmap(ctx context.Context, req HeatmapRequest) (hm *domain.Heatmap, err error) {
	defer s.observe("heatmap", time.Now(), &err)

	if len(req.Symbols) == 0 {
		return nil, fmt.Errorf("%w: symbol list is empty", domain.ErrValidation)
	}
	symbols := make([]string, 0, len(req.Symbols))
	for _, sym := range req.Symbols {
		sym, err := normalizeSymbol(sym)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	symbols = uniqueSorted(symbols)
	wanted := make(map[string]bool, len(req.EventTypes))
	for _, t := range req.EventTypes {
		wanted[strings.TrimSpace(t)] = true
	}
	window, baseline := s.windowDefaults(req.WindowMinutes, req.BaselineDays)

	g := s.index.Acquire()
	defer g.Release()

	hm = &domain.Heatmap{Symbols: symbols}
	types := make(map[string]struct{})
	for _, sym := range symbols {
		if err := g.Load(ctx, sym); err != nil {
			return nil, err
		}
		events, err := s.events.FetchEvents(ctx, storage.EventFilter{
			Currencies: currenciesOf(sym),
			CalendarID: req.CalendarID,
			MinImpact:  req.MinImpact,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: fetch events for %s: %v", domain.ErrStorage, sym, err)
		}

		byType := make(map[string][]*domain.CalendarEvent)
		for _, ev := range events {
			if len(wanted) > 0 && !wanted[ev.Description] {
				continue
			}
			byType[ev.Description] = append(byType[ev.Description], ev)
		}

		pipValue := s.pips.Value(sym)
		for eventType, occ := range byType {
			cell := domain.HeatmapCell{Symbol: sym, EventType: eventType, Occurrences: len(occ)}
			multipliers := make([]float64, 0, len(occ))
			eventPips := make([]float64, 0, len(occ))
			for _, ev := range occ {
				m := volatility.Compute(g, sym, ev.Time, window, baseline, pipValue)
				multipliers = append(multipliers, m.Multiplier)
				eventPips = append(eventPips, m.EventVolatility)
				if m.Multiplier > cell.MaxMultiplier {
					cell.MaxMultiplier = m.Multiplier
				}
			}
			cell.MeanMultiplier = metrics.Mean(multipliers)
			cell.MeanEventPips = metrics.Mean(eventPips)
			hm.Cells = append(hm.Cells, cell)
			types[eventType] = struct{}{}
		}
	}

	if len(hm.Cells) == 0 {
		return nil, fmt.Errorf("%w: no events for %s", domain.ErrNotFound, strings.Join(symbols, ","))
	}
	for t := range types {
		hm.EventTypes = append(hm.EventTypes, t)
	}
	sort.Strings(hm.EventTypes)
	sort.Slice(hm.Cells, func(i, j int) bool {
		if hm.Cells[i].Symbol != hm.Cells[j].Symbol {
			return hm.Cells[i].Symbol < hm.Cells[j].Symbol
		}
		return hm.Cells[i].EventType < hm.Cells[j].EventType
	})
	return hm, nil
}

// HourlyVolatility summarizes one quarter-hour of the trading day across the
// symbol's whole history. hour is 0-23, quarter 0-3.
func (s *Service) HourlyVolatility(ctx context.Context, symbol string, hour, quarter int) (h domain.HourlyVolatility, err error) {
	defer s.observe("hourly", time.Now(), &err)

	symbol, err = normalizeSymbol(symbol)
	if err != nil {
		return h, err
	}
	if hour < 0 || hour > 23 {
		return h, fmt.Errorf("%w: hour %d outside 0-23", domain.ErrValidation, hour)
	}
	if quarter < 0 || quarter > 3 {
		return h, fmt.Errorf("%w: quarter %d outside 0-3", domain.ErrValidation, quarter)
	}

	g := s.index.Acquire()
	defer g.Release()
	if err := g.Load(ctx, symbol); err != nil {
		return h, err
	}
	if g.Len(symbol) == 0 {
		return h, fmt.Errorf("%w: no candles for %s", domain.ErrNotFound, symbol)
	}

	points := g.SliceAllHistory(symbol, hour, quarter*15, quarter*15+15)
	h = domain.HourlyVolatility{Symbol: symbol, Hour: hour, Quarter: quarter, Candles: len(points)}
	if len(points) == 0 {
		return h, nil
	}
	pipValue := s.pips.Value(symbol)
	ranges := make([]float64, len(points))
	bodies := make([]float64, len(points))
	for i, p := range points {
		ranges[i] = p.Range() / pipValue
		bodies[i] = p.BodyPct()
	}
	h.MeanPips = metrics.Mean(ranges)
	h.MedianPips = metrics.PercentileOf(ranges, 0.5)
	h.P95Pips = metrics.PercentileOf(ranges, 0.95)
	h.MeanBodyPct = metrics.Mean(bodies)
	return h, nil
}

// CompareScenarios returns the newest stored run per cost scenario.
func (s *Service) CompareScenarios(ctx context.Context, symbol, eventType string) ([]metrics.ScenarioSummary, error) {
	symbol, eventType, err := normalizeKey(symbol, eventType)
	if err != nil {
		return nil, err
	}
	if s.backtests == nil {
		return nil, fmt.Errorf("%w: no backtest store configured", domain.ErrNotFound)
	}
	out, err := metrics.NewAggregator(s.backtests).CompareScenarios(ctx, symbol, eventType)
	if errors.Is(err, metrics.ErrNoTrades) {
		return nil, fmt.Errorf("%w: no stored backtests for %s %q", domain.ErrNotFound, symbol, eventType)
	}
	return out, err
}

// VerifyBacktest replays a stored run with its own parameters and cost
// scenario and compares the trades with what was stored. The replay is
// not persisted.
func (s *Service) VerifyBacktest(ctx context.Context, runID string) (r *verification.Report, err error) {
	defer s.observe("verify_backtest", time.Now(), &err)

	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("%w: run id is required", domain.ErrValidation)
	}
	if s.backtests == nil {
		return nil, fmt.Errorf("%w: no backtest store configured", domain.ErrNotFound)
	}
	r, err = verification.New(s.backtests, s.replay).VerifyRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("run_id", runID).
		Int("matched", r.MatchedTrades).
		Int("divergent", r.DivergentTrades).
		Int("missing", r.MissingTrades).
		Int("extra", r.ExtraTrades).
		Msg("backtest verified")
	return r, nil
}

// replay re-runs stored against the current index without persisting.
func (s *Service) replay(ctx context.Context, stored *domain.BacktestResult) (*domain.BacktestResult, error) {
	costs, err := domain.LookupCostScenario(stored.Scenario)
	if err != nil {
		return nil, err
	}
	occ, err := s.occurrences(ctx, stored.Symbol, stored.EventType)
	if err != nil {
		return nil, err
	}

	g := s.index.Acquire()
	defer g.Release()
	if err := g.Load(ctx, stored.Symbol); err != nil {
		return nil, err
	}
	return s.runner.Run(g, stored.Symbol, stored.EventType, occ, stored.Parameters, costs)
}

// Backtests lists stored runs of symbol, newest first.
func (s *Service) Backtests(ctx context.Context, symbol, eventType string) ([]*domain.BacktestResult, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if s.backtests == nil {
		return nil, nil
	}
	return s.backtests.ListBySymbol(ctx, symbol, strings.TrimSpace(eventType))
}

// EventTypes lists the event types recorded for currencies of symbol.
func (s *Service) EventTypes(ctx context.Context, symbol string, minImpact domain.Impact) ([]string, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	types, err := s.events.EventTypes(ctx, storage.EventFilter{Currencies: currenciesOf(symbol), MinImpact: minImpact})
	if err != nil {
		return nil, fmt.Errorf("%w: event types for %s: %v", domain.ErrStorage, symbol, err)
	}
	return types, nil
}

// Reload drops symbol from the index and the profile cache, then loads it
// again from storage.
func (s *Service) Reload(ctx context.Context, symbol string) error {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return err
	}
	g := s.index.Acquire()
	defer g.Release()
	g.Invalidate(symbol)
	s.cache.InvalidateSymbol(ctx, symbol)
	if err := g.Load(ctx, symbol); err != nil {
		return err
	}
	s.log.Info().Str("symbol", symbol).Int("candles", g.Len(symbol)).Msg("symbol reloaded")
	return nil
}

// cachedOrBuiltProfile consults the cache before building under g.
func (s *Service) cachedOrBuiltProfile(ctx context.Context, g *candleindex.Guard, symbol, eventType string, occ []*domain.CalendarEvent) (*domain.ImpactProfile, error) {
	if p, ok := s.cache.Get(ctx, symbol, eventType); ok {
		observability.RecordProfileCache(true)
		return p, nil
	}
	observability.RecordProfileCache(false)
	return s.buildProfile(ctx, g, symbol, eventType, occ)
}

func (s *Service) buildProfile(ctx context.Context, g *candleindex.Guard, symbol, eventType string, occ []*domain.CalendarEvent) (*domain.ImpactProfile, error) {
	if err := g.Load(ctx, symbol); err != nil {
		return nil, err
	}
	if g.Len(symbol) == 0 {
		return nil, fmt.Errorf("%w: no candles for %s", domain.ErrNotFound, symbol)
	}
	p, err := s.analyzer.Analyze(g, symbol, eventType, occ)
	if err != nil {
		return nil, err
	}
	observability.RecordSkippedOccurrences(symbol, p.SkippedOccurrences)
	s.cache.Set(ctx, p)
	return p, nil
}

// occurrences fetches every release of eventType affecting symbol.
func (s *Service) occurrences(ctx context.Context, symbol, eventType string) ([]*domain.CalendarEvent, error) {
	events, err := s.events.FetchEvents(ctx, storage.EventFilter{
		Currencies:  currenciesOf(symbol),
		Description: eventType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch events: %v", domain.ErrStorage, err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: no occurrences of %q for %s", domain.ErrNotFound, eventType, symbol)
	}
	return events, nil
}

func (s *Service) windowDefaults(window, baseline int) (int, int) {
	if window <= 0 {
		window = s.cfg.WindowMinutes
	}
	if baseline <= 0 {
		baseline = s.cfg.BaselineDays
	}
	return window, baseline
}

func (s *Service) observe(op string, start time.Time, err *error) {
	observability.RecordAnalysis(op, ErrorKind(*err), time.Since(start).Seconds())
	if *err != nil {
		s.log.Debug().Err(*err).Str("op", op).Msg("analysis failed")
	}
}

// ErrorKind maps an error onto the domain taxonomy for metrics and logs.
// Returns "" for nil.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, domain.ErrStorage):
		return "storage"
	default:
		return "internal"
	}
}

func normalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", fmt.Errorf("%w: symbol is required", domain.ErrValidation)
	}
	return s, nil
}

func normalizeKey(symbol, eventType string) (string, string, error) {
	s, err := normalizeSymbol(symbol)
	if err != nil {
		return "", "", err
	}
	t := strings.TrimSpace(eventType)
	if t == "" {
		return "", "", fmt.Errorf("%w: event type is required", domain.ErrValidation)
	}
	return s, t, nil
}

// currenciesOf returns the event currencies relevant to symbol: its FX legs
// plus the symbol itself for events keyed by instrument.
func currenciesOf(symbol string) []string {
	out := domain.PairCurrencies(symbol)
	for _, c := range out {
		if c == symbol {
			return out
		}
	}
	return append(out, symbol)
}

func outcomeCounts(trades []domain.TradeResult) map[string]int {
	out := make(map[string]int)
	for _, t := range trades {
		out[string(t.Outcome)]++
	}
	return out
}

func uniqueSorted(in []string) []string {
	sort.Strings(in)
	out := make([]string, 0, len(in))
	for _, s := range in {
		if len(out) > 0 && out[len(out)-1] == s {
			continue
		}
		out = append(out, s)
	}
	return out
}
