package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Polygon is an ordered ring of vertices. The ring is implicitly closed:
// the last vertex connects back to the first.
type Polygon []GeoPoint

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Ring returns the four corners of the box as NW, NE, SE, SW, the order
// map viewports use when building a query polygon.
func (b Bounds) Ring() Polygon {
	return Polygon{
		{Lat: b.MaxLat, Lon: b.MinLon},
		{Lat: b.MaxLat, Lon: b.MaxLon},
		{Lat: b.MinLat, Lon: b.MaxLon},
		{Lat: b.MinLat, Lon: b.MinLon},
	}
}

// Contains reports whether p lies inside the box, edges included.
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Intersects reports whether the two boxes overlap.
func (b Bounds) Intersects(o Bounds) bool {
	return b.MinLat <= o.MaxLat && o.MinLat <= b.MaxLat && b.MinLon <= o.MaxLon && o.MinLon <= b.MaxLon
}

// UKBounds is the envelope police.uk publishes data for.
var UKBounds = Bounds{MinLat: 49.9, MinLon: -10.5, MaxLat: 59.5, MaxLon: 2.0}
