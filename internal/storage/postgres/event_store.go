package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const upsertEventSQL = `
	INSERT INTO calendar_events (
		calendar_id, currency, time, impact, description, actual, forecast, previous
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (currency, time, description) DO UPDATE SET
		calendar_id = EXCLUDED.calendar_id,
		impact = EXCLUDED.impact,
		actual = EXCLUDED.actual,
		forecast = EXCLUDED.forecast,
		previous = EXCLUDED.previous
`

// UpsertBulk writes all events in one transaction.
func (s *EventStore) UpsertBulk(ctx context.Context, events []*domain.CalendarEvent) (err error) {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e == nil || e.Currency == "" || e.Description == "" || e.Time.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	start := time.Now()
	defer func() { observe("events_upsert", start, err) }()

	err = s.pool.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range events {
			batch.Queue(upsertEventSQL,
				nullString(e.CalendarID), e.Currency, e.Time.UTC(), string(e.Impact), e.Description,
				e.Actual, e.Forecast, e.Previous,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		if isInvalidInputError(err) {
			return storage.ErrInvalidInput
		}
		return wrapErr("upsert events", err)
	}
	return nil
}

// Query retrieves events matching filter, ordered by time ASC.
func (s *EventStore) Query(ctx context.Context, filter storage.EventFilter) (_ []*domain.CalendarEvent, err error) {
	start := time.Now()
	defer func() { observe("events_query", start, err) }()

	where, args := filterClause(filter)
	query := `
		SELECT id, COALESCE(calendar_id, ''), currency, time, impact, description,
		       actual, forecast, previous
		FROM calendar_events` + where + `
		ORDER BY time ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("query events", err)
	}
	defer rows.Close()

	var out []*domain.CalendarEvent
	for rows.Next() {
		var e domain.CalendarEvent
		var impact string
		if err := rows.Scan(
			&e.ID, &e.CalendarID, &e.Currency, &e.Time, &impact, &e.Description,
			&e.Actual, &e.Forecast, &e.Previous,
		); err != nil {
			return nil, wrapErr("scan event", err)
		}
		e.Impact = domain.Impact(impact)
		e.Time = e.Time.UTC()
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate events", err)
	}
	return out, nil
}

// EventTypes returns the distinct descriptions matching filter, sorted.
func (s *EventStore) EventTypes(ctx context.Context, filter storage.EventFilter) ([]string, error) {
	where, args := filterClause(filter)
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT description FROM calendar_events`+where+` ORDER BY description`, args...)
	if err != nil {
		return nil, wrapErr("query event types", err)
	}
	types, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrapErr("collect event types", err)
	}
	return types, nil
}

// filterClause renders filter as a WHERE clause. Values are always bound
// as parameters; only placeholders are formatted into the SQL text.
func filterClause(f storage.EventFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if len(f.Currencies) > 0 {
		add("currency = ANY($%d)", f.Currencies)
	}
	if f.Description != "" {
		add("description = $%d", f.Description)
	}
	if f.CalendarID != "" {
		add("calendar_id = $%d", f.CalendarID)
	}
	if f.MinImpact != "" {
		add("impact = ANY($%d)", impactsAtLeast(f.MinImpact))
	}
	if !f.From.IsZero() {
		add("time >= $%d", f.From.UTC())
	}
	if !f.To.IsZero() {
		add("time < $%d", f.To.UTC())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func impactsAtLeast(min domain.Impact) []string {
	var out []string
	for _, i := range []domain.Impact{domain.ImpactLow, domain.ImpactMedium, domain.ImpactHigh} {
		if i.Rank() >= min.Rank() {
			out = append(out, string(i))
		}
	}
	return out
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
