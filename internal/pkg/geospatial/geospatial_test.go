package geospatial_test

import (
	"math"
	"testing"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/pkg/geospatial"
)

func TestHaversine(t *testing.T) {
	// London to Paris is roughly 344 km.
	d := geospatial.Haversine(51.5074, -0.1278, 48.8566, 2.3522)
	if math.Abs(d-343_500) > 2_000 {
		t.Errorf("expected ~343.5 km, got %.0f m", d)
	}
}

func TestQuadrantsCoverParent(t *testing.T) {
	b := domain.Bounds{MinLat: 50, MinLon: -2, MaxLat: 52, MaxLon: 0}
	q := geospatial.Quadrants(b)
	if len(q) != 4 {
		t.Fatalf("expected 4 quadrants, got %d", len(q))
	}
	want := []domain.Bounds{
		{MinLat: 51, MinLon: -2, MaxLat: 52, MaxLon: -1},
		{MinLat: 51, MinLon: -1, MaxLat: 52, MaxLon: 0},
		{MinLat: 50, MinLon: -1, MaxLat: 51, MaxLon: 0},
		{MinLat: 50, MinLon: -2, MaxLat: 51, MaxLon: -1},
	}
	for i := range want {
		if q[i] != want[i] {
			t.Errorf("quadrant %d: expected %+v, got %+v", i, want[i], q[i])
		}
	}
}

func TestGridEdgesMatchParent(t *testing.T) {
	b := domain.Bounds{MinLat: 50.1, MinLon: -2.3, MaxLat: 52.7, MaxLon: 0.9}
	cells := geospatial.Grid(b, 3)
	if len(cells) != 9 {
		t.Fatalf("expected 9 cells, got %d", len(cells))
	}
	if cells[0].MaxLat != b.MaxLat || cells[0].MinLon != b.MinLon {
		t.Errorf("first cell should start at the north-west corner, got %+v", cells[0])
	}
	last := cells[8]
	if last.MinLat != b.MinLat || last.MaxLon != b.MaxLon {
		t.Errorf("last cell should end at the south-east corner, got %+v", last)
	}
}

func TestContains(t *testing.T) {
	rect := domain.Bounds{MinLat: 0, MinLon: 0, MaxLat: 1, MaxLon: 1}.Ring()
	if !geospatial.Contains(rect, domain.GeoPoint{Lat: 1, Lon: 0.5}) {
		t.Error("rectangle edges should be inclusive")
	}
	tri := domain.Polygon{{Lat: 0, Lon: 0}, {Lat: 2, Lon: 1}, {Lat: 0, Lon: 2}}
	if !geospatial.Contains(tri, domain.GeoPoint{Lat: 0.5, Lon: 1}) {
		t.Error("expected centroid-ish point inside triangle")
	}
	if geospatial.Contains(tri, domain.GeoPoint{Lat: 1.9, Lon: 0.1}) {
		t.Error("expected point outside triangle")
	}
	if geospatial.Contains(tri, domain.GeoPoint{Lat: 5, Lon: 5}) {
		t.Error("expected point outside envelope")
	}
}

func TestCanonicalize(t *testing.T) {
	cw := domain.Polygon{{Lat: 2, Lon: 0}, {Lat: 2, Lon: 2}, {Lat: 0, Lon: 2}, {Lat: 0, Lon: 0}}
	ccw := domain.Polygon{{Lat: 0, Lon: 2}, {Lat: 2, Lon: 2}, {Lat: 2, Lon: 0}, {Lat: 0, Lon: 0}, {Lat: 0, Lon: 0}, {Lat: 0, Lon: 2}}

	a := geospatial.Canonicalize(cw, 5)
	b := geospatial.Canonicalize(ccw, 5)
	if len(a) != 4 || len(b) != 4 {
		t.Fatalf("expected 4 vertices, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vertex %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
	if a[0] != (domain.GeoPoint{Lat: 2, Lon: 0}) {
		t.Errorf("expected ring to start at the north-west vertex, got %+v", a[0])
	}
	if geospatial.SignedArea(a) > 0 {
		t.Error("expected clockwise orientation")
	}
}

func TestCanonicalizeFoldsNegativeZero(t *testing.T) {
	p := domain.Polygon{{Lat: 1, Lon: -0.000001}, {Lat: 1, Lon: 1}, {Lat: 0, Lon: 1}}
	c := geospatial.Canonicalize(p, 3)
	for _, v := range c {
		if math.Signbit(v.Lon) {
			t.Errorf("expected -0 folded to 0, got %+v", v)
		}
	}
}

func TestParseBBox(t *testing.T) {
	b, err := geospatial.ParseBBox("51.5, -0.13, 51.52, -0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b != (domain.Bounds{MinLat: 51.5, MinLon: -0.13, MaxLat: 51.52, MaxLon: -0.1}) {
		t.Errorf("unexpected bounds %+v", b)
	}
	if _, err := geospatial.ParseBBox("1,2,3"); err == nil {
		t.Error("expected error for three values")
	}
	if _, err := geospatial.ParseBBox("a,b,c,d"); err == nil {
		t.Error("expected error for non-numeric values")
	}
}

func TestParsePoly(t *testing.T) {
	p, err := geospatial.ParsePoly("52.268,0.543:52.794,0.238:52.130,0.478")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p) != 3 || p[1] != (domain.GeoPoint{Lat: 52.794, Lon: 0.238}) {
		t.Errorf("unexpected polygon %+v", p)
	}
	if _, err := geospatial.ParsePoly("52.2:52.7,0.2"); err == nil {
		t.Error("expected error for vertex without comma")
	}
}

func TestRadiusBounds(t *testing.T) {
	center := domain.GeoPoint{Lat: 51.5074, Lon: -0.1278}
	b := geospatial.RadiusBounds(center, 1000)
	if !b.Contains(center) {
		t.Fatal("expected center inside bounds")
	}
	// Half the north-south extent should be ~1 km.
	ns := geospatial.Haversine(center.Lat, center.Lon, b.MaxLat, center.Lon)
	if math.Abs(ns-1000) > 10 {
		t.Errorf("expected ~1000 m to the north edge, got %.1f", ns)
	}
	ew := geospatial.Haversine(center.Lat, center.Lon, center.Lat, b.MaxLon)
	if math.Abs(ew-1000) > 10 {
		t.Errorf("expected ~1000 m to the east edge, got %.1f", ew)
	}
}

func TestDiagonalMeters(t *testing.T) {
	b := domain.Bounds{MinLat: 51.0, MinLon: -1.0, MaxLat: 51.0, MaxLon: -1.0}
	if d := geospatial.DiagonalMeters(b); d != 0 {
		t.Errorf("degenerate box: expected 0, got %f", d)
	}
	b = domain.Bounds{MinLat: 51.0, MinLon: -1.0, MaxLat: 52.0, MaxLon: -1.0}
	d := geospatial.DiagonalMeters(b)
	if d < 110000 || d > 112500 {
		t.Errorf("one degree of latitude: expected ~111 km, got %f", d)
	}
}
