// Package kml reads boundary polygons from KML files, such as the
// neighbourhood boundaries published by police.uk.
package kml

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/ports"
)

var (
	ErrNoPolygon     = errors.New("kml: no polygon found")
	ErrNoCoordinates = errors.New("kml: polygon has no outer boundary coordinates")
)

// Element names are matched without namespace so KML 2.1, 2.2 and
// un-namespaced documents all parse.
type polygon struct {
	Outer struct {
		Ring struct {
			Coordinates string `xml:"coordinates"`
		} `xml:"LinearRing"`
	} `xml:"outerBoundaryIs"`
}

// ParsePolygon returns the outer ring of the first Polygon in the document,
// including polygons nested in MultiGeometry. A closing vertex that
// repeats the first one is dropped.
func ParsePolygon(r io.Reader) ([]domain.GeoPoint, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, ErrNoPolygon
		}
		if err != nil {
			return nil, fmt.Errorf("kml: parse: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Polygon" {
			continue
		}
		var p polygon
		if err := dec.DecodeElement(&p, &start); err != nil {
			return nil, fmt.Errorf("kml: decode polygon: %w", err)
		}
		return parseCoordinates(p.Outer.Ring.Coordinates)
	}
}

// parseCoordinates reads whitespace separated "lon,lat[,alt]" tuples.
func parseCoordinates(text string) ([]domain.GeoPoint, error) {
	fields := strings.Fields(text)
	points := make([]domain.GeoPoint, 0, len(fields))
	for _, f := range fields {
		parts := strings.Split(f, ",")
		if len(parts) < 2 {
			continue
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("kml: longitude %q: %w", parts[0], err)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("kml: latitude %q: %w", parts[1], err)
		}
		points = append(points, domain.GeoPoint{Lat: lat, Lon: lon})
	}
	if len(points) == 0 {
		return nil, ErrNoCoordinates
	}
	if len(points) > 1 && points[0] == points[len(points)-1] {
		points = points[:len(points)-1]
	}
	return points, nil
}

// Source implements ports.PolygonSource on the local filesystem. Relative
// paths are resolved against Root when it is set.
type Source struct {
	Root string
}

var _ ports.PolygonSource = (*Source)(nil)

// NewSource creates a Source rooted at root.
func NewSource(root string) *Source {
	return &Source{Root: root}
}

// LoadPolygon opens path and parses its first polygon.
func (s *Source) LoadPolygon(ctx context.Context, path string) ([]domain.GeoPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(s.Root, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePolygon(f)
}
