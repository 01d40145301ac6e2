package memory

import (
	"context"
	"testing"
	"time"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/storage"
)

func nfp(t time.Time) *domain.CalendarEvent {
	return &domain.CalendarEvent{
		Currency: "USD", Time: t, Impact: domain.ImpactHigh,
		Description: "Non-Farm Employment Change",
	}
}

func TestEventStore_UpsertKeepsID(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	at := time.Date(2024, 3, 8, 13, 30, 0, 0, time.UTC)

	if err := store.UpsertBulk(ctx, []*domain.CalendarEvent{nfp(at)}); err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}
	actual := 275.0
	updated := nfp(at)
	updated.Actual = &actual
	if err := store.UpsertBulk(ctx, []*domain.CalendarEvent{updated}); err != nil {
		t.Fatalf("Second UpsertBulk failed: %v", err)
	}

	events, err := store.Query(ctx, storage.EventFilter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].ID != 1 {
		t.Errorf("Expected ID 1 to be kept, got %d", events[0].ID)
	}
	if events[0].Actual == nil || *events[0].Actual != 275 {
		t.Errorf("Expected updated actual value")
	}
}

func TestEventStore_QueryFilter(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	at := time.Date(2024, 3, 8, 13, 30, 0, 0, time.UTC)

	eur := &domain.CalendarEvent{Currency: "EUR", Time: at.Add(-time.Hour), Impact: domain.ImpactMedium, Description: "German CPI"}
	low := &domain.CalendarEvent{Currency: "USD", Time: at.Add(time.Hour), Impact: domain.ImpactLow, Description: "Crude Oil Inventories"}
	if err := store.UpsertBulk(ctx, []*domain.CalendarEvent{nfp(at), eur, low}); err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}

	events, _ := store.Query(ctx, storage.EventFilter{
		Currencies: []string{"EUR", "USD"},
		MinImpact:  domain.ImpactMedium,
	})
	if len(events) != 2 {
		t.Fatalf("Expected 2 events at MEDIUM+, got %d", len(events))
	}
	if events[0].Currency != "EUR" {
		t.Errorf("Expected time ordering, first=%s", events[0].Description)
	}

	events, _ = store.Query(ctx, storage.EventFilter{From: at, To: at.Add(time.Hour)})
	if len(events) != 1 || events[0].Description != "Non-Farm Employment Change" {
		t.Errorf("Expected only NFP in [at, at+1h), got %v", events)
	}
}

func TestEventStore_EventTypes(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	at := time.Date(2024, 3, 8, 13, 30, 0, 0, time.UTC)

	_ = store.UpsertBulk(ctx, []*domain.CalendarEvent{
		nfp(at), nfp(at.AddDate(0, 1, 0)),
		{Currency: "USD", Time: at, Impact: domain.ImpactHigh, Description: "CPI m/m"},
	})

	types, err := store.EventTypes(ctx, storage.EventFilter{Currencies: []string{"USD"}})
	if err != nil {
		t.Fatalf("EventTypes failed: %v", err)
	}
	if len(types) != 2 || types[0] != "CPI m/m" {
		t.Errorf("Expected [CPI m/m, Non-Farm Employment Change], got %v", types)
	}
}
