package http_test

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/ports"
)

// ---- Mock upstream ----

type mockSource struct {
	mu    sync.Mutex
	calls int

	streetCrimesFn func(ctx context.Context, poly domain.Polygon, month domain.Month) ([]ports.RawCrime, error)
}

func (m *mockSource) StreetCrimes(ctx context.Context, poly domain.Polygon, month domain.Month) ([]ports.RawCrime, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.streetCrimesFn != nil {
		return m.streetCrimesFn(ctx, poly, month)
	}
	return nil, nil
}

func (m *mockSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ---- Mock boundary source ----

type mockPolygons struct {
	loadFn func(ctx context.Context, path string) ([]domain.GeoPoint, error)
}

func (m *mockPolygons) LoadPolygon(ctx context.Context, path string) ([]domain.GeoPoint, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, path)
	}
	return nil, nil
}

// ---- Mock cache pinger ----

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error { return m.err }

func rawCrime(category string, lat, lon string, month string) ports.RawCrime {
	return ports.RawCrime{
		Category: category,
		Month:    month,
		Location: &ports.RawLocation{
			Latitude:  json.RawMessage(`"` + lat + `"`),
			Longitude: json.RawMessage(`"` + lon + `"`),
			Street:    &ports.RawStreet{Name: "On or near High Street"},
		},
	}
}

// london returns a fixed set of records inside the central London test box.
func london(ctx context.Context, poly domain.Polygon, month domain.Month) ([]ports.RawCrime, error) {
	m := month.String()
	return []ports.RawCrime{
		rawCrime("burglary", "51.5010", "-0.1410", m),
		rawCrime("anti-social-behaviour", "51.5020", "-0.1420", m),
		rawCrime("anti-social-behaviour", "51.5030", "-0.1430", m),
		rawCrime("vehicle-crime", "51.5040", "-0.1440", m),
		rawCrime("anti-social-behaviour", "51.5050", "-0.1450", m),
	}, nil
}
