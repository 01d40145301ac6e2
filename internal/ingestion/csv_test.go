package ingestion

import (
	"errors"
	"strings"
	"testing"
	"time"

	"event-impact-lab/internal/domain"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 3, 8, 13, 30, 0, 0, time.UTC)
	for _, in := range []string{
		"2024-03-08T13:30:00Z",
		"2024-03-08 13:30:00",
		"2024-03-08 13:30",
		"2024.03.08 13:30",
		"1709904600",
		"1709904600000",
	} {
		got, err := ParseTime(in)
		if err != nil {
			t.Errorf("ParseTime(%q) failed: %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseTime(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseTime("yesterday"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestReadCandles(t *testing.T) {
	in := `Time,Open,High,Low,Close,Volume,tick_count
2024-03-08 13:30,1.0950,1.0980,1.0940,1.0970,120,55
2024-03-08 13:31,1.0970,1.0975,1.0960,1.0962,,
`
	candles, err := ReadCandles(strings.NewReader(in), "EURUSD")
	if err != nil {
		t.Fatalf("ReadCandles failed: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("Expected 2 candles, got %d", len(candles))
	}
	c := candles[0]
	if c.Symbol != "EURUSD" || c.Timeframe != domain.TimeframeM1 {
		t.Errorf("Unexpected identity %s/%s", c.Symbol, c.Timeframe)
	}
	if c.High != 1.0980 || c.Volume != 120 {
		t.Errorf("Unexpected values high=%v volume=%v", c.High, c.Volume)
	}
	if c.TickCount == nil || *c.TickCount != 55 {
		t.Errorf("Expected tick count 55")
	}
	if candles[1].TickCount != nil || candles[1].SpreadAvg != nil {
		t.Errorf("Expected empty optional columns to stay nil")
	}
}

func TestReadCandles_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"missing column", "time,open,high,close\n2024-03-08 13:30,1,1,1\n"},
		{"bad number", "time,open,high,low,close\n2024-03-08 13:30,x,1,1,1\n"},
		{"high below low", "time,open,high,low,close\n2024-03-08 13:30,1,0.9,1.1,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCandles(strings.NewReader(tt.in), "EURUSD")
			if !errors.Is(err, ErrMalformedRow) {
				t.Errorf("Expected ErrMalformedRow, got %v", err)
			}
		})
	}
}

func TestReadEvents(t *testing.T) {
	in := `time,currency,impact,description,actual,forecast,previous
2024-03-08 13:30,usd,H,Non-Farm Employment Change,275K,200K,229K
2024-03-08 13:30,USD,high,Unemployment Rate,3.9%,3.7%,3.7%
2024-03-07 10:00,EUR,m,ECB Press Conference,,,
`
	events, err := ReadEvents(strings.NewReader(in), "forexfactory")
	if err != nil {
		t.Fatalf("ReadEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}
	nfp := events[0]
	if nfp.Currency != "USD" || nfp.Impact != domain.ImpactHigh {
		t.Errorf("Unexpected currency/impact %s/%s", nfp.Currency, nfp.Impact)
	}
	if nfp.Actual == nil || *nfp.Actual != 275 {
		t.Errorf("Expected actual 275")
	}
	if d, ok := nfp.Deviation(); !ok || d != 75 {
		t.Errorf("Expected deviation 75, got %v %v", d, ok)
	}
	if events[2].Impact != domain.ImpactMedium || events[2].Actual != nil {
		t.Errorf("Unexpected ECB row %+v", events[2])
	}
	if nfp.CalendarID != "forexfactory" {
		t.Errorf("Expected default calendar id, got %q", nfp.CalendarID)
	}
}

func TestReadEvents_BadImpact(t *testing.T) {
	in := "time,currency,impact,description\n2024-03-08 13:30,USD,severe,NFP\n"
	if _, err := ReadEvents(strings.NewReader(in), ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestNewCSVCandleSource_SymbolFromFileName(t *testing.T) {
	src := NewCSVCandleSource("/data/eurusd_M1_2024.csv", "")
	if src.Symbol != "EURUSD" {
		t.Errorf("Expected EURUSD, got %q", src.Symbol)
	}
}
