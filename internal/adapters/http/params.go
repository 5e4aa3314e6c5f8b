package http

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/pkg/geospatial"
)

const (
	maxRadiusMeters = 20000
	maxPageLimit    = 10000
)

// boundaryInput collects the mutually exclusive ways a caller can name an
// area. REST and GraphQL both fill one.
type boundaryInput struct {
	BBox   string
	Poly   string
	KML    string
	Lat    *float64
	Lng    *float64
	Radius float64
}

func (in boundaryInput) descriptor(kmlEnabled bool) (domain.BoundaryDescriptor, error) {
	given := 0
	for _, set := range []bool{in.BBox != "", in.Poly != "", in.KML != "", in.Lat != nil || in.Lng != nil} {
		if set {
			given++
		}
	}
	switch {
	case given == 0:
		return domain.BoundaryDescriptor{}, fmt.Errorf("one of bbox, poly, lat/lng or kml is required")
	case given > 1:
		return domain.BoundaryDescriptor{}, fmt.Errorf("bbox, poly, lat/lng and kml are mutually exclusive")
	}

	switch {
	case in.BBox != "":
		b, err := geospatial.ParseBBox(in.BBox)
		if err != nil {
			return domain.BoundaryDescriptor{}, err
		}
		return domain.BoundingBox(b.MinLat, b.MinLon, b.MaxLat, b.MaxLon), nil

	case in.Poly != "":
		poly, err := geospatial.ParsePoly(in.Poly)
		if err != nil {
			return domain.BoundaryDescriptor{}, err
		}
		return domain.PolygonBoundary(poly), nil

	case in.KML != "":
		if !kmlEnabled {
			return domain.BoundaryDescriptor{}, fmt.Errorf("kml boundaries are not enabled on this server")
		}
		if !filepath.IsLocal(in.KML) {
			return domain.BoundaryDescriptor{}, fmt.Errorf("kml %q must be a relative path inside the boundary directory", in.KML)
		}
		return domain.KMLBoundary(in.KML), nil
	}

	if in.Lat == nil || in.Lng == nil {
		return domain.BoundaryDescriptor{}, fmt.Errorf("lat and lng must be given together")
	}
	radius := in.Radius
	if radius == 0 {
		radius = 1000
	}
	if radius < 0 || radius > maxRadiusMeters {
		return domain.BoundaryDescriptor{}, fmt.Errorf("radius must be between 1 and %d meters", maxRadiusMeters)
	}
	b := geospatial.RadiusBounds(domain.GeoPoint{Lat: *in.Lat, Lon: *in.Lng}, radius)
	return domain.BoundingBox(b.MinLat, b.MinLon, b.MaxLat, b.MaxLon), nil
}

// parseBoundary reads the boundary query parameters.
func parseBoundary(c *fiber.Ctx, kmlEnabled bool) (domain.BoundaryDescriptor, error) {
	in := boundaryInput{
		BBox: strings.TrimSpace(c.Query("bbox")),
		Poly: strings.TrimSpace(c.Query("poly")),
		KML:  strings.TrimSpace(c.Query("kml")),
	}
	if s := c.Query("lat"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.BoundaryDescriptor{}, fmt.Errorf("invalid lat %q", s)
		}
		in.Lat = &v
	}
	if s := c.Query("lng"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.BoundaryDescriptor{}, fmt.Errorf("invalid lng %q", s)
		}
		in.Lng = &v
	}
	if s := c.Query("radius"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.BoundaryDescriptor{}, fmt.Errorf("invalid radius %q", s)
		}
		in.Radius = v
	}
	return in.descriptor(kmlEnabled)
}

// parsePeriod reads a YYYY-MM month or YYYY-MM..YYYY-MM range.
func parsePeriod(s string) (domain.Period, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Period{}, fmt.Errorf("date is required (YYYY-MM or YYYY-MM..YYYY-MM)")
	}
	p, err := domain.ParsePeriod(s)
	if err != nil {
		return domain.Period{}, err
	}
	if len(p.Months) > domain.DataWindowMonths {
		return domain.Period{}, fmt.Errorf("date range spans %d months, at most %d allowed", len(p.Months), domain.DataWindowMonths)
	}
	return p, nil
}

// parsePage reads offset/limit. A zero limit means the whole set.
func parsePage(c *fiber.Ctx) (offset, limit int, err error) {
	offset = c.QueryInt("offset", 0)
	limit = c.QueryInt("limit", 0)
	if offset < 0 {
		return 0, 0, fmt.Errorf("offset must not be negative")
	}
	if limit < 0 || limit > maxPageLimit {
		return 0, 0, fmt.Errorf("limit must be between 1 and %d", maxPageLimit)
	}
	return offset, limit, nil
}
