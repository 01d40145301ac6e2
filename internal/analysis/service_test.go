package analysis

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"event-impact-lab/internal/cache"
	"event-impact-lab/internal/candleindex"
	"event-impact-lab/internal/config"
	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/ingestion"
	"event-impact-lab/internal/pip"
	"event-impact-lab/internal/storage/memory"
)

const pipSize = 0.0001

type fixture struct {
	svc       *Service
	candles   *memory.CandleStore
	events    *memory.EventStore
	backtests *memory.BacktestStore
	cache     *cache.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	f := &fixture{
		candles:   memory.NewCandleStore(),
		events:    memory.NewEventStore(),
		backtests: memory.NewBacktestStore(),
		cache:     cache.NewMemory(time.Hour),
	}
	feed := ingestion.NewStoreFeed(f.candles, f.events)
	f.svc = New(Options{
		Index:     candleindex.New(feed),
		Events:    feed,
		Pips:      pip.NewTable(nil),
		Cache:     f.cache,
		Backtests: f.backtests,
		Config:    cfg.Analysis,
		Logger:    zerolog.Nop(),
	})
	return f
}

func nfpTime(week int) time.Time {
	return time.Date(2024, 1, 5+7*week, 13, 30, 0, 0, time.UTC)
}

// seedNFP stores three NFP releases on EURUSD, each surrounded by 120
// flat-bodied candles: 2 pips before the event and about 8 pips after,
// peaking at minute 3.
func seedNFP(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	post := func(i int) float64 {
		switch {
		case i < 3:
			return 7.9
		case i == 3:
			return 8.0
		default:
			return 7.95
		}
	}
	var candles []*domain.Candle
	var events []*domain.CalendarEvent
	for w := 0; w < 3; w++ {
		ev := nfpTime(w)
		start := ev.Add(-30 * time.Minute)
		for i := 0; i < 120; i++ {
			r := 2.0
			if i >= 30 {
				r = post(i - 30)
			}
			candles = append(candles, &domain.Candle{
				Symbol:    "EURUSD",
				Timeframe: domain.TimeframeM1,
				Time:      start.Add(time.Duration(i) * time.Minute),
				Open:      1.1,
				High:      1.1 + r*pipSize/2,
				Low:       1.1 - r*pipSize/2,
				Close:     1.1,
			})
		}
		events = append(events, &domain.CalendarEvent{
			Currency:    "USD",
			Time:        ev,
			Impact:      domain.ImpactHigh,
			Description: "NFP",
		})
	}
	if err := f.candles.UpsertBulk(ctx, candles); err != nil {
		t.Fatalf("upsert candles: %v", err)
	}
	if err := f.events.UpsertBulk(ctx, events); err != nil {
		t.Fatalf("upsert events: %v", err)
	}
}

func TestVolatilityMetrics_SingleCandle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := f.candles.UpsertBulk(ctx, []*domain.Candle{{
		Symbol: "GBPUSD", Time: at, Open: 1.1040, High: 1.1050, Low: 1.1030, Close: 1.1045,
	}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	m, err := f.svc.VolatilityMetrics(ctx, "gbpusd", at, 30, 30)
	if err != nil {
		t.Fatalf("VolatilityMetrics: %v", err)
	}
	if m.EventVolatility != 20.0 {
		t.Errorf("event volatility = %v, want 20", m.EventVolatility)
	}
	if m.BaselineVolatility != 0 || m.Multiplier != 0 {
		t.Errorf("baseline = %v multiplier = %v, want zeros", m.BaselineVolatility, m.Multiplier)
	}
}

func TestVolatilityMetrics_NoCandlesIsZero(t *testing.T) {
	f := newFixture(t)
	m, err := f.svc.VolatilityMetrics(context.Background(), "USDJPY", time.Now(), 0, 0)
	if err != nil {
		t.Fatalf("VolatilityMetrics: %v", err)
	}
	if m.EventVolatility != 0 || m.EventCandles != 0 {
		t.Errorf("got %+v, want zero metrics", m)
	}
	if m.PipValue != 0.01 {
		t.Errorf("pip value = %v, want 0.01 for a JPY pair", m.PipValue)
	}
}

func TestImpactProfile_NFPScenario(t *testing.T) {
	f := newFixture(t)
	seedNFP(t, f)

	p, err := f.svc.ImpactProfile(context.Background(), "EURUSD", "NFP")
	if err != nil {
		t.Fatalf("ImpactProfile: %v", err)
	}
	if p.Occurrences != 3 {
		t.Errorf("occurrences = %d, want 3", p.Occurrences)
	}
	if math.Abs(p.VolatilityIncreasePct-300) > 5 {
		t.Errorf("volatility increase = %.2f%%, want about 300%%", p.VolatilityIncreasePct)
	}
	if p.PeakMinute != 3 {
		t.Errorf("peak minute = %d, want 3", p.PeakMinute)
	}
	if f.cache.Len() != 1 {
		t.Errorf("cache entries = %d, want 1", f.cache.Len())
	}

	// Second call is served from the cache.
	again, err := f.svc.ImpactProfile(context.Background(), "EURUSD", "NFP")
	if err != nil {
		t.Fatalf("cached ImpactProfile: %v", err)
	}
	if again.Occurrences != p.Occurrences {
		t.Errorf("cached occurrences = %d, want %d", again.Occurrences, p.Occurrences)
	}
}

func TestImpactProfile_Errors(t *testing.T) {
	f := newFixture(t)
	seedNFP(t, f)
	ctx := context.Background()

	if _, err := f.svc.ImpactProfile(ctx, "EURUSD", "CPI"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown event type: err = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.ImpactProfile(ctx, "", "NFP"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty symbol: err = %v, want ErrValidation", err)
	}

	// A release with no surrounding candles cannot contribute.
	if err := f.events.UpsertBulk(ctx, []*domain.CalendarEvent{{
		Currency: "EUR", Time: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
		Impact: domain.ImpactHigh, Description: "PMI",
	}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := f.svc.ImpactProfile(ctx, "EURUSD", "PMI"); !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("uncovered release: err = %v, want ErrInsufficientData", err)
	}
}

func TestStraddleParameters_TimeoutFloor(t *testing.T) {
	f := newFixture(t)
	seedNFP(t, f)
	ctx := context.Background()

	for _, mode := range []domain.StraddleMode{domain.ModeDirectional, domain.ModeSimultaneous} {
		p, err := f.svc.StraddleParameters(ctx, "EURUSD", "NFP", mode)
		if err != nil {
			t.Fatalf("%s: %v", mode, err)
		}
		if p.TimeoutMinutes < 15 {
			t.Errorf("%s: timeout = %d, want >= 15", mode, p.TimeoutMinutes)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("%s: derived parameters invalid: %v", mode, err)
		}
		if mode == domain.ModeSimultaneous && p.SLRecoveryPips <= 0 {
			t.Errorf("simultaneous: sl recovery = %v, want > 0", p.SLRecoveryPips)
		}
	}

	if _, err := f.svc.StraddleParameters(ctx, "EURUSD", "NFP", "sideways"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown mode: err = %v, want ErrValidation", err)
	}
}

func TestBacktest_DerivedAndPersisted(t *testing.T) {
	f := newFixture(t)
	seedNFP(t, f)
	ctx := context.Background()

	res, err := f.svc.Backtest(ctx, BacktestRequest{Symbol: "EURUSD", EventType: "NFP"})
	if err != nil {
		t.Fatalf("Backtest: %v", err)
	}
	if got := len(res.Trades) + res.SkippedOccurrences; got != 3 {
		t.Errorf("trades + skipped = %d, want 3", got)
	}
	if res.Scenario != domain.ScenarioRealistic {
		t.Errorf("scenario = %q, want realistic", res.Scenario)
	}
	if res.Parameters.Mode != domain.ModeDirectional {
		t.Errorf("mode = %q, want directional", res.Parameters.Mode)
	}
	if !res.LowSampleWarning {
		t.Error("expected low sample warning for 3 occurrences")
	}

	stored, err := f.backtests.GetByID(ctx, res.RunID)
	if err != nil {
		t.Fatalf("stored run: %v", err)
	}
	if len(stored.Trades) != len(res.Trades) {
		t.Errorf("stored trades = %d, want %d", len(stored.Trades), len(res.Trades))
	}

	summaries, err := f.svc.CompareScenarios(ctx, "EURUSD", "NFP")
	if err != nil {
		t.Fatalf("CompareScenarios: %v", err)
	}
	if len(summaries) != 1 || summaries[0].RunID != res.RunID {
		t.Errorf("summaries = %+v, want the single stored run", summaries)
	}
}

func TestVerifyBacktest(t *testing.T) {
	f := newFixture(t)
	seedNFP(t, f)
	ctx := context.Background()

	res, err := f.svc.Backtest(ctx, BacktestRequest{Symbol: "EURUSD", EventType: "NFP", Mode: domain.ModeSimultaneous})
	if err != nil {
		t.Fatalf("Backtest: %v", err)
	}

	r, err := f.svc.VerifyBacktest(ctx, res.RunID)
	if err != nil {
		t.Fatalf("VerifyBacktest: %v", err)
	}
	if !r.Match() || r.MatchedTrades != len(res.Trades) {
		t.Errorf("report = %+v, want every trade reproduced", r)
	}

	// The replay is not persisted.
	runs, err := f.svc.Backtests(ctx, "EURUSD", "NFP")
	if err != nil {
		t.Fatalf("Backtests: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("stored runs = %d, want 1", len(runs))
	}

	if _, err := f.svc.VerifyBacktest(ctx, "unknown"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown run: err = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.VerifyBacktest(ctx, " "); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank run: err = %v, want ErrValidation", err)
	}
}

func TestBacktest_ExplicitParams(t *testing.T) {
	f := newFixture(t)
	seedNFP(t, f)

	params := &domain.StraddleParameters{
		OffsetPips:       3,
		StopLossPips:     5,
		TrailingStopPips: 2,
		TimeoutMinutes:   20,
		EntryLeadMinutes: 1,
	}
	res, err := f.svc.Backtest(context.Background(), BacktestRequest{
		Symbol: "EURUSD", EventType: "NFP", Params: params, Scenario: domain.ScenarioPessimistic,
	})
	if err != nil {
		t.Fatalf("Backtest: %v", err)
	}
	if res.Parameters.TimeoutMinutes != 20 || res.Parameters.PipValue != pipSize {
		t.Errorf("parameters = %+v, want the supplied ones with pip %v", res.Parameters, pipSize)
	}

	bad := *params
	bad.StopLossPips = 0
	_, err = f.svc.Backtest(context.Background(), BacktestRequest{Symbol: "EURUSD", EventType: "NFP", Params: &bad})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("zero stop loss: err = %v, want ErrValidation", err)
	}
	_, err = f.svc.Backtest(context.Background(), BacktestRequest{Symbol: "EURUSD", EventType: "NFP", Scenario: "free"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown scenario: err = %v, want ErrValidation", err)
	}
}

func TestDecay(t *testing.T) {
	f := newFixture(t)
	seedNFP(t, f)

	d, err := f.svc.Decay(context.Background(), "EURUSD", "NFP")
	if err != nil {
		t.Fatalf("Decay: %v", err)
	}
	if d.PeakDelay != 3 {
		t.Errorf("peak delay = %d, want 3", d.PeakDelay)
	}
	// The series never halves, so the decay is slow.
	if d.Speed != domain.DecaySlow {
		t.Errorf("speed = %q, want slow", d.Speed)
	}
}

func TestHeatmap(t *testing.T) {
	f := newFixture(t)
	seedNFP(t, f)
	ctx := context.Background()

	hm, err := f.svc.Heatmap(ctx, HeatmapRequest{Symbols: []string{"eurusd", "EURUSD"}, MinImpact: domain.ImpactHigh})
	if err != nil {
		t.Fatalf("Heatmap: %v", err)
	}
	if len(hm.Symbols) != 1 || len(hm.Cells) != 1 {
		t.Fatalf("heatmap = %+v, want one symbol and one cell", hm)
	}
	cell := hm.Cells[0]
	if cell.EventType != "NFP" || cell.Occurrences != 3 {
		t.Errorf("cell = %+v, want NFP with 3 occurrences", cell)
	}
	if cell.MeanEventPips <= 0 {
		t.Errorf("mean event pips = %v, want > 0", cell.MeanEventPips)
	}

	if _, err := f.svc.Heatmap(ctx, HeatmapRequest{}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty symbols: err = %v, want ErrValidation", err)
	}
	_, err = f.svc.Heatmap(ctx, HeatmapRequest{Symbols: []string{"EURUSD"}, EventTypes: []string{"CPI"}})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("no matching events: err = %v, want ErrNotFound", err)
	}
}

func TestHourlyVolatility(t *testing.T) {
	f := newFixture(t)
	seedNFP(t, f)
	ctx := context.Background()

	h, err := f.svc.HourlyVolatility(ctx, "EURUSD", 13, 2)
	if err != nil {
		t.Fatalf("HourlyVolatility: %v", err)
	}
	// 13:30-13:44 on three days.
	if h.Candles != 45 {
		t.Errorf("candles = %d, want 45", h.Candles)
	}
	if h.MeanPips < 7.9 || h.MeanPips > 8.0 {
		t.Errorf("mean pips = %v, want within [7.9, 8.0]", h.MeanPips)
	}

	tests := []struct {
		name          string
		hour, quarter int
	}{
		{"hour too large", 24, 0},
		{"negative hour", -1, 0},
		{"quarter too large", 10, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.HourlyVolatility(ctx, "EURUSD", tt.hour, tt.quarter)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}

	if _, err := f.svc.HourlyVolatility(ctx, "AUDUSD", 1, 0); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("symbol without candles: err = %v, want ErrNotFound", err)
	}
}

func TestReload_DropsCachedProfiles(t *testing.T) {
	f := newFixture(t)
	seedNFP(t, f)
	ctx := context.Background()

	if _, err := f.svc.ImpactProfile(ctx, "EURUSD", "NFP"); err != nil {
		t.Fatalf("ImpactProfile: %v", err)
	}
	if err := f.svc.Reload(ctx, "EURUSD"); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if f.cache.Len() != 0 {
		t.Errorf("cache entries after reload = %d, want 0", f.cache.Len())
	}
}

func TestService_ConcurrentOperations(t *testing.T) {
	f := newFixture(t)
	seedNFP(t, f)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 30)
	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, err := f.svc.Heatmap(ctx, HeatmapRequest{Symbols: []string{"EURUSD"}})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			errs <- f.svc.Reload(ctx, "EURUSD")
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.HourlyVolatility(ctx, "EURUSD", 13, 2)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent operation: %v", err)
		}
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{domain.ErrNotFound, "not_found"},
		{errors.Join(errors.New("x"), domain.ErrValidation), "validation"},
		{domain.ErrInsufficientData, "insufficient_data"},
		{domain.ErrStorage, "storage"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
