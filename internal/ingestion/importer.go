package ingestion

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/observability"
	"event-impact-lab/internal/storage"
)

// Default importer settings.
const (
	DefaultBatchSize = 5000
	DefaultWorkers   = 4
)

// Importer moves rows from sources into storage. Every batch is one
// UpsertBulk call, so a failed batch leaves no partial rows behind.
type Importer struct {
	candles   storage.CandleStore
	events    storage.EventStore
	batchSize int
	workers   int
	log       zerolog.Logger
}

// ImporterOptions contains configuration for creating an Importer.
type ImporterOptions struct {
	CandleStore storage.CandleStore
	EventStore  storage.EventStore
	BatchSize   int // Default: 5000
	Workers     int // Default: 4 files in parallel
	Logger      zerolog.Logger
}

// NewImporter creates a new importer.
func NewImporter(opts ImporterOptions) *Importer {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Importer{
		candles:   opts.CandleStore,
		events:    opts.EventStore,
		batchSize: batch,
		workers:   workers,
		log:       opts.Logger,
	}
}

// Summary counts rows written by an import.
type Summary struct {
	Candles int
	Events  int
	Files   int
}

// ImportCandles fetches src, orders and dedupes its rows, and upserts them
// in batches. Returns the number of candles written.
func (im *Importer) ImportCandles(ctx context.Context, src CandleSource) (int, error) {
	if im.candles == nil {
		return 0, fmt.Errorf("%w: no candle store configured", domain.ErrValidation)
	}

	candles, err := src.FetchCandles(ctx)
	if err != nil {
		observability.RecordImportError("candles_read")
		return 0, fmt.Errorf("read %s: %w", src.Name(), err)
	}

	SortCandles(candles)
	candles = DedupeCandles(candles)

	written := 0
	for start := 0; start < len(candles); start += im.batchSize {
		end := min(start+im.batchSize, len(candles))
		if err := im.candles.UpsertBulk(ctx, candles[start:end]); err != nil {
			observability.RecordImportError("candles_write")
			return written, fmt.Errorf("upsert %s rows %d-%d: %w", src.Name(), start, end, err)
		}
		written += end - start
	}

	observability.RecordImport(written, 0)
	im.log.Info().Str("source", src.Name()).Int("candles", written).Msg("imported candles")
	return written, nil
}

// ImportEvents fetches src and upserts its rows in batches.
func (im *Importer) ImportEvents(ctx context.Context, src EventSource) (int, error) {
	if im.events == nil {
		return 0, fmt.Errorf("%w: no event store configured", domain.ErrValidation)
	}

	events, err := src.FetchEvents(ctx)
	if err != nil {
		observability.RecordImportError("events_read")
		return 0, fmt.Errorf("read %s: %w", src.Name(), err)
	}

	SortEvents(events)

	written := 0
	for start := 0; start < len(events); start += im.batchSize {
		end := min(start+im.batchSize, len(events))
		if err := im.events.UpsertBulk(ctx, events[start:end]); err != nil {
			observability.RecordImportError("events_write")
			return written, fmt.Errorf("upsert %s rows %d-%d: %w", src.Name(), start, end, err)
		}
		written += end - start
	}

	observability.RecordImport(0, written)
	im.log.Info().Str("source", src.Name()).Int("events", written).Msg("imported events")
	return written, nil
}

// ImportAll runs every source on a bounded worker group. The first failure
// cancels the remaining imports; batches already committed stay committed.
func (im *Importer) ImportAll(ctx context.Context, candleSrcs []CandleSource, eventSrcs []EventSource) (Summary, error) {
	var candles, events atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.workers)

	// Events first so calendars are present before long candle files finish.
	for _, src := range eventSrcs {
		src := src
		g.Go(func() error {
			n, err := im.ImportEvents(gctx, src)
			events.Add(int64(n))
			return err
		})
	}
	for _, src := range candleSrcs {
		src := src
		g.Go(func() error {
			n, err := im.ImportCandles(gctx, src)
			candles.Add(int64(n))
			return err
		})
	}

	err := g.Wait()
	return Summary{
		Candles: int(candles.Load()),
		Events:  int(events.Load()),
		Files:   len(candleSrcs) + len(eventSrcs),
	}, err
}
