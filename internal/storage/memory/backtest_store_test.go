package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/storage"
)

func TestBacktestStore_InsertAndGet(t *testing.T) {
	store := NewBacktestStore()
	ctx := context.Background()

	run := &domain.BacktestResult{
		RunID: "r1", Symbol: "EURUSD", EventType: "NFP", Scenario: "realistic",
		Trades:    []domain.TradeResult{{ID: "t1", NetPips: 10}},
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(got.Trades) != 1 {
		t.Errorf("Expected 1 trade, got %d", len(got.Trades))
	}

	// mutation of the returned copy must not leak into the store
	got.Trades[0].NetPips = -99
	again, _ := store.GetByID(ctx, "r1")
	if again.Trades[0].NetPips != 10 {
		t.Errorf("Store returned shared trades slice")
	}

	if err := store.Insert(ctx, run); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestBacktestStore_NotFound(t *testing.T) {
	store := NewBacktestStore()
	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestBacktestStore_ListBySymbolNewestFirst(t *testing.T) {
	store := NewBacktestStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		_ = store.Insert(ctx, &domain.BacktestResult{
			RunID: id, Symbol: "EURUSD", EventType: "NFP",
			Trades:    []domain.TradeResult{{ID: id}},
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	_ = store.Insert(ctx, &domain.BacktestResult{RunID: "d", Symbol: "EURUSD", EventType: "CPI", CreatedAt: base})

	runs, err := store.ListBySymbol(ctx, "EURUSD", "NFP")
	if err != nil {
		t.Fatalf("ListBySymbol failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(runs))
	}
	if runs[0].RunID != "c" {
		t.Errorf("Expected newest first, got %s", runs[0].RunID)
	}
	if runs[0].Trades != nil {
		t.Errorf("Expected trades to be omitted from listing")
	}

	all, _ := store.ListBySymbol(ctx, "EURUSD", "")
	if len(all) != 4 {
		t.Errorf("Expected 4 runs without event filter, got %d", len(all))
	}
}

func TestSymbolConfigStore(t *testing.T) {
	store := NewSymbolConfigStore()
	ctx := context.Background()

	if err := store.SetPipValue(ctx, "xauusd", 0.1); err != nil {
		t.Fatalf("SetPipValue failed: %v", err)
	}
	if err := store.SetPipValue(ctx, "EURUSD", 0); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for zero pip, got %v", err)
	}

	pips, _ := store.PipOverrides(ctx)
	if pips["XAUUSD"] != 0.1 {
		t.Errorf("Expected XAUUSD=0.1, got %v", pips)
	}
}
