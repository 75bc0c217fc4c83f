// Package cache provides time-expiring memoization for resolution results.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/campus-card/backend/internal/metrics"
)

const DefaultTTL = 2 * time.Hour

type entry[V any] struct {
	value     V
	createdAt time.Time
}

// Memory is an unbounded in-process cache. Entries expire TTL after insertion
// and are removed lazily on Get or by PurgeExpired.
type Memory[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	ttl     time.Duration
	now     func() time.Time
}

func NewMemory[V any](ttl time.Duration) *Memory[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (m *Memory[V]) WithClock(now func() time.Time) *Memory[V] {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
	return m
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	e, ok := m.entries[key]
	if !ok {
		metrics.CacheMisses.WithLabelValues("memory").Inc()
		return zero, false
	}

	if m.expired(e) {
		delete(m.entries, key)
		metrics.CacheEvictions.WithLabelValues("memory").Inc()
		metrics.CacheMisses.WithLabelValues("memory").Inc()
		return zero, false
	}

	metrics.CacheHits.WithLabelValues("memory").Inc()
	return e.value, true
}

// Put stores value under key. Concurrent writers race; the last one wins.
func (m *Memory[V]) Put(_ context.Context, key string, value V) {
	m.mu.Lock()
	m.entries[key] = entry[V]{value: value, createdAt: m.now()}
	m.mu.Unlock()
}

// PurgeExpired drops every expired entry and returns how many were removed.
func (m *Memory[V]) PurgeExpired(_ context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, k)
			removed++
		}
	}
	if removed > 0 {
		metrics.CacheEvictions.WithLabelValues("memory").Add(float64(removed))
	}
	return removed
}

func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory[V]) expired(e entry[V]) bool {
	return m.now().Sub(e.createdAt) >= m.ttl
}
