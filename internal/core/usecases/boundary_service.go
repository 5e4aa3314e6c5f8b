package usecases

import (
	"context"
	"fmt"
	"math"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/ports"
	"github.com/samirrijal/crimescope/internal/pkg/geospatial"
)

// BoundaryService turns boundary descriptors into query polygons.
type BoundaryService struct {
	polygons ports.PolygonSource
}

// NewBoundaryService creates a BoundaryService. polygons may be nil when
// KML descriptors are not used.
func NewBoundaryService(polygons ports.PolygonSource) *BoundaryService {
	return &BoundaryService{polygons: polygons}
}

// Resolve returns a validated ring for the descriptor.
func (s *BoundaryService) Resolve(ctx context.Context, d domain.BoundaryDescriptor) (domain.Polygon, error) {
	switch d.Kind {
	case domain.BoundaryBoundingBox:
		if err := validateBox(d.Box); err != nil {
			return nil, err
		}
		return d.Box.Ring(), nil

	case domain.BoundaryPolygon:
		return validatePolygon(d.Polygon)

	case domain.BoundaryKML:
		if s.polygons == nil {
			return nil, &domain.BoundaryResolutionError{Source: d.KMLPath, Err: fmt.Errorf("no KML source configured")}
		}
		points, err := s.polygons.LoadPolygon(ctx, d.KMLPath)
		if err != nil {
			return nil, &domain.BoundaryResolutionError{Source: d.KMLPath, Err: err}
		}
		if len(points) == 0 {
			return nil, &domain.BoundaryResolutionError{Source: d.KMLPath}
		}
		return validatePolygon(domain.Polygon(points))

	default:
		return nil, &domain.InvalidBoundaryError{Reason: fmt.Sprintf("unknown boundary kind %d", d.Kind)}
	}
}

func validateBox(b domain.Bounds) error {
	for _, v := range []float64{b.MinLat, b.MinLon, b.MaxLat, b.MaxLon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &domain.InvalidBoundaryError{Reason: "bounding box has non-finite edge"}
		}
	}
	if b.MinLat < -90 || b.MaxLat > 90 || b.MinLon < -180 || b.MaxLon > 180 {
		return &domain.InvalidBoundaryError{Reason: "bounding box outside valid coordinate range"}
	}
	if b.MinLat >= b.MaxLat || b.MinLon >= b.MaxLon {
		return &domain.InvalidBoundaryError{Reason: "bounding box south/west must be below north/east"}
	}
	return nil
}

func validatePolygon(poly domain.Polygon) (domain.Polygon, error) {
	ring := geospatial.TrimClosure(poly)
	if len(ring) < 3 || geospatial.DistinctVertices(ring) < 3 {
		return nil, &domain.InvalidBoundaryError{Reason: fmt.Sprintf("polygon needs at least 3 distinct vertices, got %d", geospatial.DistinctVertices(ring))}
	}
	for _, p := range ring {
		if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			return nil, &domain.InvalidBoundaryError{Reason: fmt.Sprintf("vertex %.6f,%.6f outside valid coordinate range", p.Lat, p.Lon)}
		}
	}
	out := make(domain.Polygon, len(ring))
	copy(out, ring)
	return out, nil
}
