package geospatial

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samirrijal/crimescope/internal/core/domain"
)

// ParseBBox reads "south,west,north,east".
func ParseBBox(s string) (domain.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.Bounds{}, fmt.Errorf("bbox %q must be south,west,north,east", s)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.Bounds{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		vals[i] = v
	}
	return domain.Bounds{MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3]}, nil
}

// ParsePoly reads the upstream polygon format "lat,lng:lat,lng:...".
func ParsePoly(s string) (domain.Polygon, error) {
	var poly domain.Polygon
	for _, pair := range strings.Split(s, ":") {
		lat, lon, ok := strings.Cut(strings.TrimSpace(pair), ",")
		if !ok {
			return nil, fmt.Errorf("poly vertex %q must be lat,lng", pair)
		}
		la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		if err != nil {
			return nil, fmt.Errorf("poly latitude %q: %w", lat, err)
		}
		lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
		if err != nil {
			return nil, fmt.Errorf("poly longitude %q: %w", lon, err)
		}
		poly = append(poly, domain.GeoPoint{Lat: la, Lon: lo})
	}
	return poly, nil
}
