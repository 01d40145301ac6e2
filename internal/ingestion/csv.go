package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"event-impact-lab/internal/domain"
)

// ErrMalformedRow is returned for rows that cannot be parsed.
var ErrMalformedRow = fmt.Errorf("%w: malformed row", domain.ErrValidation)

// timeLayouts are tried in order. MetaTrader exports use dotted dates.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
	"2006-01-02T15:04:05",
}

// ParseTime parses a timestamp as UTC. Bare integers are unix seconds,
// or milliseconds when larger than 1e11.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e11 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable time %q", ErrMalformedRow, s)
}

// CSVCandleSource reads candles for one symbol from a CSV file with a header
// row. Required columns: time, open, high, low, close. Optional: volume,
// spread_avg, spread_max, tick_count. Column names are case-insensitive.
type CSVCandleSource struct {
	Path   string
	Symbol string
}

// NewCSVCandleSource creates a candle source. An empty symbol is derived
// from the file name up to the first '_' or '.', e.g. EURUSD_M1.csv.
func NewCSVCandleSource(path, symbol string) *CSVCandleSource {
	if symbol == "" {
		base := filepath.Base(path)
		if i := strings.IndexAny(base, "_."); i > 0 {
			base = base[:i]
		}
		symbol = base
	}
	return &CSVCandleSource{Path: path, Symbol: strings.ToUpper(symbol)}
}

// Name returns the file path.
func (s *CSVCandleSource) Name() string { return s.Path }

// FetchCandles reads the whole file.
func (s *CSVCandleSource) FetchCandles(_ context.Context) ([]*domain.Candle, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()
	return ReadCandles(f, s.Symbol)
}

// ReadCandles parses candle CSV from r.
func ReadCandles(r io.Reader, symbol string) ([]*domain.Candle, error) {
	rows, cols, err := readTable(r, "time", "open", "high", "low", "close")
	if err != nil {
		return nil, err
	}

	candles := make([]*domain.Candle, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		c := &domain.Candle{Symbol: symbol, Timeframe: domain.TimeframeM1}
		if c.Time, err = ParseTime(row[cols["time"]]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for _, f := range []struct {
			name string
			dst  *float64
		}{{"open", &c.Open}, {"high", &c.High}, {"low", &c.Low}, {"close", &c.Close}} {
			if *f.dst, err = parseFloat(row[cols[f.name]]); err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, f.name, err)
			}
		}
		if c.High < c.Low {
			return nil, fmt.Errorf("line %d: %w: high below low", line, ErrMalformedRow)
		}
		if idx, ok := cols["volume"]; ok && row[idx] != "" {
			if c.Volume, err = parseFloat(row[idx]); err != nil {
				return nil, fmt.Errorf("line %d column volume: %w", line, err)
			}
		}
		if c.SpreadAvg, err = optFloat(row, cols, "spread_avg"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if c.SpreadMax, err = optFloat(row, cols, "spread_max"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if idx, ok := cols["tick_count"]; ok && row[idx] != "" {
			n, err := strconv.ParseInt(strings.TrimSpace(row[idx]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column tick_count: %w", line, ErrMalformedRow)
			}
			c.TickCount = &n
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// CSVEventSource reads calendar events from a CSV file with a header row.
// Required columns: time, currency, impact, description. Optional: actual,
// forecast, previous, calendar_id.
type CSVEventSource struct {
	Path       string
	CalendarID string // applied to rows without a calendar_id column
}

// NewCSVEventSource creates an event source.
func NewCSVEventSource(path, calendarID string) *CSVEventSource {
	return &CSVEventSource{Path: path, CalendarID: calendarID}
}

// Name returns the file path.
func (s *CSVEventSource) Name() string { return s.Path }

// FetchEvents reads the whole file.
func (s *CSVEventSource) FetchEvents(_ context.Context) ([]*domain.CalendarEvent, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()
	return ReadEvents(f, s.CalendarID)
}

// ReadEvents parses calendar CSV from r.
func ReadEvents(r io.Reader, calendarID string) ([]*domain.CalendarEvent, error) {
	rows, cols, err := readTable(r, "time", "currency", "impact", "description")
	if err != nil {
		return nil, err
	}

	events := make([]*domain.CalendarEvent, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		e := &domain.CalendarEvent{
			Currency:    strings.ToUpper(strings.TrimSpace(row[cols["currency"]])),
			Description: strings.TrimSpace(row[cols["description"]]),
			CalendarID:  calendarID,
		}
		if e.Currency == "" || e.Description == "" {
			return nil, fmt.Errorf("line %d: %w: empty currency or description", line, ErrMalformedRow)
		}
		if e.Time, err = ParseTime(row[cols["time"]]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if e.Impact, err = domain.ParseImpact(row[cols["impact"]]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if e.Actual, err = optFloat(row, cols, "actual"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if e.Forecast, err = optFloat(row, cols, "forecast"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if e.Previous, err = optFloat(row, cols, "previous"); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if idx, ok := cols["calendar_id"]; ok && row[idx] != "" {
			e.CalendarID = strings.TrimSpace(row[idx])
		}
		events = append(events, e)
	}
	return events, nil
}

// readTable reads a headed CSV and maps lowercase column names to indexes.
func readTable(r io.Reader, required ...string) ([][]string, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: empty file", ErrMalformedRow)
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, nil, fmt.Errorf("%w: missing column %q", ErrMalformedRow, name)
		}
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	return rows, cols, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad number %q", ErrMalformedRow, s)
	}
	return v, nil
}

// optFloat parses an optional numeric column. Missing columns and empty
// cells yield nil. Calendar values like "275K" or "3.9%" keep their number.
func optFloat(row []string, cols map[string]int, name string) (*float64, error) {
	idx, ok := cols[name]
	if !ok {
		return nil, nil
	}
	s := strings.TrimSpace(row[idx])
	if s == "" {
		return nil, nil
	}
	s = strings.TrimRight(s, "%KMBkmb")
	v, err := parseFloat(s)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", name, err)
	}
	return &v, nil
}
