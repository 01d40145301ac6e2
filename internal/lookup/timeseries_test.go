package lookup

import (
	"testing"
	"time"

	"event-impact-lab/internal/domain"
)

var base = time.Date(2024, 3, 8, 13, 0, 0, 0, time.UTC)

func minutes(closes ...float64) []domain.PricePoint {
	points := make([]domain.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = domain.PricePoint{
			Time:  base.Add(time.Duration(i) * time.Minute),
			Open:  c,
			High:  c,
			Low:   c,
			Close: c,
		}
	}
	return points
}

func TestCloseAt_EmptySlice(t *testing.T) {
	_, err := CloseAt(nil, base)
	if err != ErrNoPriceData {
		t.Errorf("expected ErrNoPriceData, got %v", err)
	}
}

func TestCloseAt_ExactMatch(t *testing.T) {
	points := minutes(1.0, 2.0, 3.0)

	p, err := CloseAt(points, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Close != 2.0 {
		t.Errorf("expected 2.0, got %f", p.Close)
	}
}

func TestCloseAt_BetweenPoints(t *testing.T) {
	points := minutes(1.0, 2.0, 3.0)

	// 90 seconds in should resolve to the 1-minute bar
	p, err := CloseAt(points, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Close != 2.0 {
		t.Errorf("expected 2.0, got %f", p.Close)
	}
}

func TestCloseAt_BeforeFirst(t *testing.T) {
	points := minutes(1.0, 2.0)

	_, err := CloseAt(points, base.Add(-time.Minute))
	if err != ErrNoPriceBefore {
		t.Errorf("expected ErrNoPriceBefore, got %v", err)
	}
}

func TestCloseAt_AfterLast(t *testing.T) {
	points := minutes(1.0, 2.0, 3.0)

	p, err := CloseAt(points, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Close != 3.0 {
		t.Errorf("expected 3.0, got %f", p.Close)
	}
}

func TestBetween_HalfOpen(t *testing.T) {
	points := minutes(1, 2, 3, 4, 5)

	got := Between(points, base.Add(time.Minute), base.Add(3*time.Minute))
	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got))
	}
	if got[0].Close != 2 || got[1].Close != 3 {
		t.Errorf("unexpected points: %+v", got)
	}
}

func TestBetween_EmptyAndInverted(t *testing.T) {
	points := minutes(1, 2, 3)

	if got := Between(points, base.Add(time.Hour), base.Add(2*time.Hour)); got != nil {
		t.Errorf("expected nil past the end, got %d points", len(got))
	}
	if got := Between(points, base.Add(2*time.Minute), base); got != nil {
		t.Errorf("expected nil for inverted bounds, got %d points", len(got))
	}
}

func TestIndexAtOrBefore(t *testing.T) {
	points := minutes(1, 2, 3)

	tests := []struct {
		name   string
		target time.Time
		want   int
	}{
		{"before first", base.Add(-time.Second), -1},
		{"first", base, 0},
		{"mid-bar", base.Add(61 * time.Second), 1},
		{"after last", base.Add(time.Hour), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IndexAtOrBefore(points, tt.target); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
