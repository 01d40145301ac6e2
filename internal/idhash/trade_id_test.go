package idhash

import (
	"testing"
)

func TestComputeTradeID(t *testing.T) {
	tests := []struct {
		name        string
		symbol      string
		eventType   string
		paramsKey   string
		scenarioID  string
		eventTimeMs int64
		wantLen     int // hash length should be 64
	}{
		{
			name:        "directional trade",
			symbol:      "EURUSD",
			eventType:   "Non-Farm Employment Change",
			paramsKey:   ParamsKey("directional", 3, 5, 3, 15, 0),
			scenarioID:  "realistic",
			eventTimeMs: 1704461400000,
			wantLen:     64,
		},
		{
			name:        "simultaneous trade",
			symbol:      "USDJPY",
			eventType:   "CPI m/m",
			paramsKey:   ParamsKey("simultaneous", 12.5, 20, 8, 45, 2),
			scenarioID:  "pessimistic",
			eventTimeMs: 1704461400000,
			wantLen:     64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTradeID(tt.symbol, tt.eventType, tt.paramsKey, tt.scenarioID, tt.eventTimeMs)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeTradeID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeTradeID(tt.symbol, tt.eventType, tt.paramsKey, tt.scenarioID, tt.eventTimeMs)
			if got != got2 {
				t.Errorf("ComputeTradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTradeID_DifferentInputs(t *testing.T) {
	base := ComputeTradeID("EURUSD", "NFP", "k", "realistic", 1000)

	variants := []string{
		ComputeTradeID("GBPUSD", "NFP", "k", "realistic", 1000),
		ComputeTradeID("EURUSD", "CPI", "k", "realistic", 1000),
		ComputeTradeID("EURUSD", "NFP", "k2", "realistic", 1000),
		ComputeTradeID("EURUSD", "NFP", "k", "degraded", 1000),
		ComputeTradeID("EURUSD", "NFP", "k", "realistic", 1001),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with base", i)
		}
	}
}

func TestParamsKey_Format(t *testing.T) {
	got := ParamsKey("directional", 3.04, 5, 2.96, 15, 1)
	want := "directional:3.0:5.0:3.0:15:1"
	if got != want {
		t.Errorf("ParamsKey() = %q, want %q", got, want)
	}
}

func TestComputeEventKey(t *testing.T) {
	a := ComputeEventKey("USD", 1704461400000, "NFP")
	b := ComputeEventKey("USD", 1704461400000, "NFP")
	c := ComputeEventKey("EUR", 1704461400000, "NFP")

	if a != b {
		t.Error("event key not deterministic")
	}
	if a == c {
		t.Error("different currencies share a key")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}
