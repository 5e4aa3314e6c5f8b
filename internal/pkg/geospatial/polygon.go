package geospatial

import (
	"math"

	"github.com/samirrijal/crimescope/internal/core/domain"
)

// Envelope returns the smallest box containing every vertex.
func Envelope(poly domain.Polygon) domain.Bounds {
	if len(poly) == 0 {
		return domain.Bounds{}
	}
	b := domain.Bounds{MinLat: poly[0].Lat, MinLon: poly[0].Lon, MaxLat: poly[0].Lat, MaxLon: poly[0].Lon}
	for _, p := range poly[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MinLon = math.Min(b.MinLon, p.Lon)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MaxLon = math.Max(b.MaxLon, p.Lon)
	}
	return b
}

// DiagonalMeters is the great-circle length of the box diagonal.
func DiagonalMeters(b domain.Bounds) float64 {
	return Haversine(b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// Quadrants splits a box into NW, NE, SE, SW quarters.
func Quadrants(b domain.Bounds) []domain.Bounds {
	midLat := (b.MinLat + b.MaxLat) / 2
	midLon := (b.MinLon + b.MaxLon) / 2
	return []domain.Bounds{
		{MinLat: midLat, MinLon: b.MinLon, MaxLat: b.MaxLat, MaxLon: midLon},
		{MinLat: midLat, MinLon: midLon, MaxLat: b.MaxLat, MaxLon: b.MaxLon},
		{MinLat: b.MinLat, MinLon: midLon, MaxLat: midLat, MaxLon: b.MaxLon},
		{MinLat: b.MinLat, MinLon: b.MinLon, MaxLat: midLat, MaxLon: midLon},
	}
}

// Grid splits a box into n×n equal cells, row by row from the north-west.
func Grid(b domain.Bounds, n int) []domain.Bounds {
	if n < 1 {
		n = 1
	}
	latStep := (b.MaxLat - b.MinLat) / float64(n)
	lonStep := (b.MaxLon - b.MinLon) / float64(n)
	cells := make([]domain.Bounds, 0, n*n)
	for row := 0; row < n; row++ {
		maxLat := b.MaxLat - float64(row)*latStep
		minLat := maxLat - latStep
		if row == n-1 {
			minLat = b.MinLat
		}
		for col := 0; col < n; col++ {
			minLon := b.MinLon + float64(col)*lonStep
			maxLon := minLon + lonStep
			if col == n-1 {
				maxLon = b.MaxLon
			}
			cells = append(cells, domain.Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon})
		}
	}
	return cells
}

// SignedArea is the shoelace area with lon as x and lat as y. It is
// negative for clockwise rings.
func SignedArea(poly domain.Polygon) float64 {
	var sum float64
	n := len(poly)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += poly[i].Lon*poly[j].Lat - poly[j].Lon*poly[i].Lat
	}
	return sum / 2
}

// IsRectangle reports whether the ring is exactly its own axis-aligned
// envelope (four corners, any rotation or winding).
func IsRectangle(poly domain.Polygon) bool {
	if len(poly) != 4 {
		return false
	}
	env := Envelope(poly)
	seen := make(map[domain.GeoPoint]bool, 4)
	for _, p := range poly {
		if (p.Lat != env.MinLat && p.Lat != env.MaxLat) || (p.Lon != env.MinLon && p.Lon != env.MaxLon) {
			return false
		}
		seen[p] = true
	}
	return len(seen) == 4
}

// Contains reports whether pt is inside poly. Rectangles use an inclusive
// envelope test; other rings use even-odd ray casting.
func Contains(poly domain.Polygon, pt domain.GeoPoint) bool {
	env := Envelope(poly)
	if !env.Contains(pt) {
		return false
	}
	if IsRectangle(poly) {
		return true
	}
	inside := false
	n := len(poly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := poly[i].Lon, poly[i].Lat
		xj, yj := poly[j].Lon, poly[j].Lat
		if (yi > pt.Lat) != (yj > pt.Lat) && pt.Lon < (xj-xi)*(pt.Lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// TrimClosure drops a trailing vertex that repeats the first one.
func TrimClosure(poly domain.Polygon) domain.Polygon {
	if len(poly) > 1 && poly[0] == poly[len(poly)-1] {
		return poly[:len(poly)-1]
	}
	return poly
}

// DistinctVertices counts unique vertices in the ring.
func DistinctVertices(poly domain.Polygon) int {
	seen := make(map[domain.GeoPoint]struct{}, len(poly))
	for _, p := range poly {
		seen[p] = struct{}{}
	}
	return len(seen)
}

// Canonicalize rounds vertices to precision decimal places, removes the
// closing and consecutive duplicate vertices, orients the ring clockwise
// and rotates it to start at the northernmost vertex (westernmost on ties).
// Rings that describe the same shape therefore compare equal.
func Canonicalize(poly domain.Polygon, precision int) domain.Polygon {
	scale := math.Pow(10, float64(precision))
	round := func(v float64) float64 {
		r := math.Round(v*scale) / scale
		if r == 0 {
			return 0 // fold -0
		}
		return r
	}

	out := make(domain.Polygon, 0, len(poly))
	for _, p := range poly {
		q := domain.GeoPoint{Lat: round(p.Lat), Lon: round(p.Lon)}
		if len(out) > 0 && out[len(out)-1] == q {
			continue
		}
		out = append(out, q)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	if len(out) < 3 {
		return out
	}

	if SignedArea(out) > 0 {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	start := 0
	for i, p := range out {
		s := out[start]
		if p.Lat > s.Lat || (p.Lat == s.Lat && p.Lon < s.Lon) {
			start = i
		}
	}
	rotated := make(domain.Polygon, 0, len(out))
	rotated = append(rotated, out[start:]...)
	rotated = append(rotated, out[:start]...)
	return rotated
}
