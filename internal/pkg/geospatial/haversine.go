package geospatial

import (
	"math"

	"github.com/samirrijal/crimescope/internal/core/domain"
)

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// RadiusBounds returns the box enclosing a circle of radiusMeters around
// center, clamped to valid coordinates.
func RadiusBounds(center domain.GeoPoint, radiusMeters float64) domain.Bounds {
	latDelta := radiusMeters / 111320.0
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(center.Lat)))

	return domain.Bounds{
		MinLat: math.Max(center.Lat-latDelta, -90),
		MinLon: math.Max(center.Lon-lonDelta, -180),
		MaxLat: math.Min(center.Lat+latDelta, 90),
		MaxLon: math.Min(center.Lon+lonDelta, 180),
	}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
