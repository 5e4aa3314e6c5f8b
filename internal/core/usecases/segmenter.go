package usecases

import (
	"math"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/pkg/geospatial"
)

// Segment is one upstream query: a polygon and a single month.
type Segment struct {
	Polygon domain.Polygon
	Month   domain.Month
	// Clip is the requested area when Polygon only approximates it (a grid
	// cell or quadrant of its envelope). Records outside Clip are dropped.
	Clip  domain.Polygon
	Depth int
}

// Bounds returns the envelope of the segment polygon.
func (s Segment) Bounds() domain.Bounds {
	return geospatial.Envelope(s.Polygon)
}

// Bisect splits the segment envelope into four quadrant segments one level
// deeper.
func (s Segment) Bisect() []Segment {
	clip := s.Clip
	if clip == nil && !geospatial.IsRectangle(s.Polygon) {
		clip = s.Polygon
	}
	quads := geospatial.Quadrants(s.Bounds())
	out := make([]Segment, 0, len(quads))
	for _, q := range quads {
		out = append(out, Segment{Polygon: q.Ring(), Month: s.Month, Clip: clip, Depth: s.Depth + 1})
	}
	return out
}

// Keep reports whether a record position belongs to the requested area.
func (s Segment) Keep(p domain.GeoPoint) bool {
	if s.Clip == nil {
		return true
	}
	return geospatial.Contains(s.Clip, p)
}

// Segmenter pre-computes the static split of a request.
type Segmenter struct {
	maxVertices int
}

// NewSegmenter creates a Segmenter. maxVertices <= 0 disables the grid split.
func NewSegmenter(maxVertices int) *Segmenter {
	return &Segmenter{maxVertices: maxVertices}
}

// Segment returns one segment per (area, month). Polygons with more than
// maxVertices vertices are replaced by an n×n grid over their envelope.
func (s *Segmenter) Segment(poly domain.Polygon, period domain.Period) []Segment {
	areas := []domain.Polygon{poly}
	var clip domain.Polygon
	if s.maxVertices > 0 && len(poly) > s.maxVertices {
		n := int(math.Ceil(math.Sqrt(float64(len(poly)) / float64(s.maxVertices))))
		if n < 2 {
			n = 2
		}
		cells := geospatial.Grid(geospatial.Envelope(poly), n)
		areas = make([]domain.Polygon, 0, len(cells))
		for _, c := range cells {
			areas = append(areas, c.Ring())
		}
		clip = poly
	}

	segments := make([]Segment, 0, len(areas)*len(period.Months))
	for _, m := range period.Months {
		for _, a := range areas {
			segments = append(segments, Segment{Polygon: a, Month: m, Clip: clip})
		}
	}
	return segments
}
