package domain

import (
	"fmt"
	"strings"
	"time"
)

// Impact is the calendar impact tier of an event.
type Impact string

// Impact tiers.
const (
	ImpactHigh   Impact = "HIGH"
	ImpactMedium Impact = "MEDIUM"
	ImpactLow    Impact = "LOW"
)

// ParseImpact normalizes an impact label. Accepts full names and single-letter
// aliases in any case.
func ParseImpact(s string) (Impact, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIGH", "H":
		return ImpactHigh, nil
	case "MEDIUM", "MED", "M":
		return ImpactMedium, nil
	case "LOW", "L":
		return ImpactLow, nil
	default:
		return "", fmt.Errorf("%w: unknown impact %q", ErrValidation, s)
	}
}

// Rank orders tiers: LOW=1, MEDIUM=2, HIGH=3, unknown=0.
func (i Impact) Rank() int {
	switch i {
	case ImpactHigh:
		return 3
	case ImpactMedium:
		return 2
	case ImpactLow:
		return 1
	default:
		return 0
	}
}

// CalendarEvent represents one economic calendar release.
// Events sharing a Description are occurrences of the same event type.
type CalendarEvent struct {
	ID          int64
	CalendarID  string    // source calendar (nullable in storage)
	Currency    string    // currency code or symbol the event applies to
	Time        time.Time // release time (UTC)
	Impact      Impact
	Description string   // event-type key, e.g. "Non-Farm Employment Change"
	Actual      *float64 // nullable
	Forecast    *float64 // nullable
	Previous    *float64 // nullable
}

// Deviation returns |actual - forecast| when both are present.
func (e *CalendarEvent) Deviation() (float64, bool) {
	if e.Actual == nil || e.Forecast == nil {
		return 0, false
	}
	d := *e.Actual - *e.Forecast
	if d < 0 {
		d = -d
	}
	return d, true
}

// PairCurrencies returns the currencies an instrument is exposed to.
// Six-letter FX pairs split into base and quote; anything else maps to itself.
func PairCurrencies(symbol string) []string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if len(s) == 6 && isAlpha(s) {
		return []string{s[:3], s[3:]}
	}
	return []string{s}
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
