package memory

import (
	"context"
	"sort"
	"sync"

	"event-impact-lab/internal/domain"
	"event-impact-lab/internal/idhash"
	"event-impact-lab/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.CalendarEvent // keyed by idhash.ComputeEventKey
	nextID int64
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data: make(map[string]*domain.CalendarEvent),
	}
}

func eventKey(e *domain.CalendarEvent) string {
	return idhash.ComputeEventKey(e.Currency, e.Time.UnixMilli(), e.Description)
}

// UpsertBulk writes events atomically. A repeated (currency, time,
// description) keeps its ID and takes the new values.
func (s *EventStore) UpsertBulk(_ context.Context, events []*domain.CalendarEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e == nil || e.Currency == "" || e.Description == "" || e.Time.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		cp := *e
		cp.Time = cp.Time.UTC()
		key := eventKey(&cp)
		if existing, ok := s.data[key]; ok {
			cp.ID = existing.ID
		} else {
			s.nextID++
			cp.ID = s.nextID
		}
		s.data[key] = &cp
	}
	return nil
}

// Query retrieves events matching filter, ordered by time ASC, ID ASC.
func (s *EventStore) Query(_ context.Context, filter storage.EventFilter) ([]*domain.CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.CalendarEvent, 0)
	for _, e := range s.data {
		if !filter.Matches(e) {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Time.Equal(result[j].Time) {
			return result[i].Time.Before(result[j].Time)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// EventTypes returns the distinct descriptions matching filter, sorted.
func (s *EventStore) EventTypes(ctx context.Context, filter storage.EventFilter) ([]string, error) {
	events, err := s.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, e := range events {
		if _, ok := seen[e.Description]; ok {
			continue
		}
		seen[e.Description] = struct{}{}
		out = append(out, e.Description)
	}
	sort.Strings(out)
	return out, nil
}

var _ storage.EventStore = (*EventStore)(nil)
