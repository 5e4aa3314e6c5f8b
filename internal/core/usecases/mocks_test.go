package usecases_test

import (
	"context"
	"sync"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/ports"
)

// --- Mock CrimeSource ---

type mockSource struct {
	mu    sync.Mutex
	calls []domain.Polygon

	streetCrimesFn func(ctx context.Context, poly domain.Polygon, month domain.Month) ([]ports.RawCrime, error)
}

func (m *mockSource) StreetCrimes(ctx context.Context, poly domain.Polygon, month domain.Month) ([]ports.RawCrime, error) {
	m.mu.Lock()
	m.calls = append(m.calls, poly)
	m.mu.Unlock()
	if m.streetCrimesFn != nil {
		return m.streetCrimesFn(ctx, poly, month)
	}
	return nil, nil
}

func (m *mockSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// --- Mock CacheStore ---

type mockCache struct {
	mu      sync.Mutex
	entries map[string]*domain.CacheEntry
	puts    int

	putFn func(ctx context.Context, entry *domain.CacheEntry) error
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]*domain.CacheEntry)}
}

func (m *mockCache) Has(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok, nil
}

func (m *mockCache) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, &domain.CacheMissError{Key: key}
	}
	return e, nil
}

func (m *mockCache) Put(ctx context.Context, entry *domain.CacheEntry) error {
	m.mu.Lock()
	m.puts++
	m.mu.Unlock()
	if m.putFn != nil {
		if err := m.putFn(ctx, entry); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Key] = entry
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []*domain.FetchEvent
}

func (m *mockPublisher) PublishFetchCompleted(ctx context.Context, ev *domain.FetchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// --- Mock PolygonSource ---

type mockPolygons struct {
	loadFn func(ctx context.Context, path string) ([]domain.GeoPoint, error)
}

func (m *mockPolygons) LoadPolygon(ctx context.Context, path string) ([]domain.GeoPoint, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, path)
	}
	return nil, nil
}

func rawCrime(category string, lat, lon, month string) ports.RawCrime {
	return ports.RawCrime{
		Category: category,
		Month:    month,
		Location: &ports.RawLocation{
			Latitude:  []byte(`"` + lat + `"`),
			Longitude: []byte(`"` + lon + `"`),
		},
	}
}

func mustMonth(s string) domain.Month {
	m, err := domain.ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}
