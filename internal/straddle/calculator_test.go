package straddle

import (
	"errors"
	"math"
	"testing"

	"event-impact-lab/internal/domain"
)

const pipSize = 0.0001

func constant(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// nfpProfile: pre ATR 2 pips, post peaks at 8 pips on minute 3 then decays fast.
func nfpProfile() *domain.ImpactProfile {
	post := make([]float64, 90)
	shape := []float64{5, 6, 7, 8, 6, 4, 3}
	for i := range post {
		v := 2.5
		if i < len(shape) {
			v = shape[i]
		}
		post[i] = v * pipSize
	}
	return &domain.ImpactProfile{
		Symbol:                "EURUSD",
		EventType:             "NFP",
		ATRPre:                constant(30, 2*pipSize),
		ATRPost:               post,
		NoiseDuring:           1,
		VolatilityIncreasePct: 300,
		P95Wick:               2 * pipSize,
		P95Range:              10 * pipSize,
	}
}

func TestTimeout_FloorAfterEarlyDecay(t *testing.T) {
	c := NewCalculator(DefaultHeuristics(), nil)
	p := nfpProfile()

	// Rolling mean first reaches <= 4.8 pips at minute 6 ((6+4+3)/3 = 4.33),
	// which the floor lifts to 15.
	if got := c.Timeout(p.ATRPost, p.VolatilityIncreasePct); got != 15 {
		t.Errorf("expected floor timeout 15, got %d", got)
	}
}

func TestTimeout_NoFloorForSmallIncrease(t *testing.T) {
	c := NewCalculator(DefaultHeuristics(), nil)
	post := []float64{8, 8, 8, 2, 2, 2, 2, 2}

	// increase 15%: start_check 1; rolling at minute 4 = (8+2+2)/3 = 4 <= 4.8
	if got := c.Timeout(post, 15); got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
}

func TestTimeout_StartCheckHigh(t *testing.T) {
	c := NewCalculator(DefaultHeuristics(), nil)
	post := []float64{10, 1, 1, 1, 1, 1, 10, 10, 1, 1, 1}

	// With increase 25% the scan starts at minute 5: rolling (1+1+1)/3 = 1.
	if got := c.Timeout(post, 25); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
	// With increase 5% the first full window ends at minute 2: (10+1+1)/3 = 4.
	if got := c.Timeout(post, 5); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestTimeout_FullRollingWindow(t *testing.T) {
	c := NewCalculator(DefaultHeuristics(), nil)
	post := []float64{10, 2, 9, 9, 9, 1, 1, 1}

	// A two-minute average (10+2)/2 = 6 would stop at minute 1; the first
	// full window at or below 6 ends at minute 6: (9+1+1)/3 = 3.67.
	if got := c.Timeout(post, 5); got != 6 {
		t.Errorf("expected 6, got %d", got)
	}
}

func TestTimeout_Fallbacks(t *testing.T) {
	c := NewCalculator(DefaultHeuristics(), nil)
	flat := constant(90, 5)

	tests := []struct {
		increase float64
		want     int
	}{
		{60, 45},
		{5, 50},
		{30, 60},
	}
	for _, tt := range tests {
		if got := c.Timeout(flat, tt.increase); got != tt.want {
			t.Errorf("increase %v: expected %d, got %d", tt.increase, tt.want, got)
		}
	}
	if got := c.Timeout(constant(90, 0), 0); got != 50 {
		t.Errorf("expected fallback for empty volatility, got %d", got)
	}
}

func TestBestMoment(t *testing.T) {
	c := NewCalculator(DefaultHeuristics(), nil)

	pre := constant(30, 1)
	pre[29] = 5
	if got := c.BestMoment(pre); got != 0 {
		t.Errorf("peak at last minute: expected 0, got %d", got)
	}

	pre = constant(30, 1)
	pre[25] = 5
	if got := c.BestMoment(pre); got != 4 {
		t.Errorf("peak at minute 25: expected 4, got %d", got)
	}

	// Outside the recent window does not count.
	pre = constant(30, 1)
	pre[0] = 100
	pre[27] = 2
	if got := c.BestMoment(pre); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestDerive_Directional(t *testing.T) {
	c := NewCalculator(DefaultHeuristics(), nil)

	params, err := c.Derive(nfpProfile(), domain.ModeDirectional, pipSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(params.RecentATRPips-2) > 1e-9 {
		t.Errorf("expected recent ATR 2 pips, got %v", params.RecentATRPips)
	}
	if params.TimeoutMinutes < 15 {
		t.Errorf("expected timeout >= 15, got %d", params.TimeoutMinutes)
	}
	// 2 pips x 1.5 = 3 (min 3)
	if params.OffsetPips != 3 {
		t.Errorf("expected offset 3, got %v", params.OffsetPips)
	}
	// 2 x 2 = 4 -> min 5
	if params.StopLossPips != 5 {
		t.Errorf("expected stop loss 5, got %v", params.StopLossPips)
	}
	if params.SLRecoveryPips != 0 {
		t.Errorf("directional must not set recovery, got %v", params.SLRecoveryPips)
	}
	if err := params.Validate(); err != nil {
		t.Errorf("derived parameters invalid: %v", err)
	}
}

func TestDerive_SimultaneousInflatesNoiseAndCapsRecovery(t *testing.T) {
	c := NewCalculator(DefaultHeuristics(), nil)
	p := nfpProfile()
	p.NoiseDuring = 3

	dir, err := c.Derive(p, domain.ModeDirectional, pipSize)
	if err != nil {
		t.Fatalf("directional: %v", err)
	}
	sim, err := c.Derive(p, domain.ModeSimultaneous, pipSize)
	if err != nil {
		t.Fatalf("simultaneous: %v", err)
	}

	if math.Abs(sim.NoiseRatio-3.6) > 1e-9 {
		t.Errorf("expected inflated noise 3.6, got %v", sim.NoiseRatio)
	}
	if sim.StopLossPips < dir.StopLossPips {
		t.Errorf("simultaneous stop %v tighter than directional %v", sim.StopLossPips, dir.StopLossPips)
	}
	// min(1.5 x 10, 1.2 x SL)
	want := math.Min(15, 1.2*sim.StopLossPips)
	if math.Abs(sim.SLRecoveryPips-want) > 0.05 {
		t.Errorf("expected recovery %v, got %v", want, sim.SLRecoveryPips)
	}
}

func TestDerive_RecoveryRangeBoundWins(t *testing.T) {
	c := NewCalculator(DefaultHeuristics(), nil)
	p := nfpProfile()
	p.P95Range = 2 * pipSize

	sim, err := c.Derive(p, domain.ModeSimultaneous, pipSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sim.SLRecoveryPips != 3 {
		t.Errorf("expected range bound 3, got %v", sim.SLRecoveryPips)
	}
}

func TestDerive_UnknownMode(t *testing.T) {
	c := NewCalculator(DefaultHeuristics(), nil)
	if _, err := c.Derive(nfpProfile(), "sideways", pipSize); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

type fixedSizer struct{ got SizingInput }

func (f *fixedSizer) Size(in SizingInput) Sizing {
	f.got = in
	return Sizing{OffsetPips: 7, StopLossPips: 11, TrailingStopPips: 5}
}

func TestDerive_UsesSizer(t *testing.T) {
	s := &fixedSizer{}
	c := NewCalculator(DefaultHeuristics(), s)

	params, err := c.Derive(nfpProfile(), domain.ModeDirectional, pipSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.OffsetPips != 7 || params.StopLossPips != 11 || params.TrailingStopPips != 5 {
		t.Errorf("sizer output ignored: %+v", params)
	}
	if s.got.TimeoutHint != params.TimeoutMinutes {
		t.Errorf("expected timeout hint %d, got %d", params.TimeoutMinutes, s.got.TimeoutHint)
	}
	if math.Abs(s.got.P95WickPips-2) > 1e-9 {
		t.Errorf("expected P95 wick 2 pips, got %v", s.got.P95WickPips)
	}
}
