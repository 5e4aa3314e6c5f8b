package ports

import (
	"context"

	"github.com/samirrijal/crimescope/internal/core/domain"
)

// CacheStore persists fetched record sets, one entry per cache key.
// Get returns an error matching domain.ErrCacheMiss for unknown keys.
type CacheStore interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (*domain.CacheEntry, error)
	Put(ctx context.Context, entry *domain.CacheEntry) error
}

// PolygonSource resolves an opaque boundary handle (a KML file path) into
// an ordered ring of vertices.
type PolygonSource interface {
	LoadPolygon(ctx context.Context, path string) ([]domain.GeoPoint, error)
}
