package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/storage"
)

func TestCandleStore_UpsertAndQuery(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(pool)
	base := time.Date(2024, 3, 8, 13, 0, 0, 0, time.UTC)

	var candles []*domain.Candle
	for i := 0; i < 5; i++ {
		candles = append(candles, &domain.Candle{
			Symbol: "EURUSD", Timeframe: domain.TimeframeM1,
			Time: base.Add(time.Duration(i) * time.Minute),
			Open: 1.1, High: 1.101, Low: 1.099, Close: 1.1005,
			SpreadAvg: ptr(0.8),
		})
	}
	require.NoError(t, store.UpsertBulk(ctx, candles))

	got, err := store.GetBySymbol(ctx, "EURUSD")
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, time.UTC, got[0].Time.Location())
	require.NotNil(t, got[0].SpreadAvg)
	assert.InDelta(t, 0.8, *got[0].SpreadAvg, 1e-9)
	assert.Nil(t, got[0].TickCount)

	window, err := store.GetByTimeRange(ctx, "EURUSD", base.Add(time.Minute), base.Add(4*time.Minute))
	require.NoError(t, err)
	assert.Len(t, window, 3)
}

func TestCandleStore_UpsertIsIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(pool)
	at := time.Date(2024, 3, 8, 13, 0, 0, 0, time.UTC)

	c := &domain.Candle{Symbol: "EURUSD", Time: at, Open: 1.1, High: 1.1, Low: 1.1, Close: 1.1}
	require.NoError(t, store.UpsertBulk(ctx, []*domain.Candle{c}))

	c2 := *c
	c2.Close = 1.2
	require.NoError(t, store.UpsertBulk(ctx, []*domain.Candle{&c2}))

	n, err := store.Count(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.GetBySymbol(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 1.2, got[0].Close)

	syms, err := store.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"EURUSD"}, syms)
}

func TestCandleStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	err := NewCandleStore(pool).UpsertBulk(context.Background(), []*domain.Candle{{Symbol: ""}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
