package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"event-impact-lab/internal/domain"
)

type memoryEntry struct {
	profile *domain.ImpactProfile
	expires time.Time
}

// Memory is an in-process TTL cache.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates a cache whose entries live for ttl. A ttl <= 0 never expires.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

// Get returns a copy of a live entry.
func (m *Memory) Get(_ context.Context, symbol, eventType string) (*domain.ImpactProfile, bool) {
	m.mu.RLock()
	e, ok := m.entries[key(symbol, eventType)]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.ttl > 0 && !m.now().Before(e.expires) {
		m.mu.Lock()
		delete(m.entries, key(symbol, eventType))
		m.mu.Unlock()
		return nil, false
	}
	return cloneProfile(e.profile), true
}

// Set stores a copy of p.
func (m *Memory) Set(_ context.Context, p *domain.ImpactProfile) {
	if p == nil {
		return
	}
	m.mu.Lock()
	m.entries[key(p.Symbol, p.EventType)] = memoryEntry{
		profile: cloneProfile(p),
		expires: m.now().Add(m.ttl),
	}
	m.mu.Unlock()
}

// InvalidateSymbol drops every profile of symbol.
func (m *Memory) InvalidateSymbol(_ context.Context, symbol string) {
	prefix := symbolPrefix(symbol)
	m.mu.Lock()
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	m.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

var _ ProfileCache = (*Memory)(nil)
