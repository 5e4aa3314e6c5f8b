package domain

// BoundaryKind tags the variant held by a BoundaryDescriptor.
type BoundaryKind int

const (
	BoundaryBoundingBox BoundaryKind = iota
	BoundaryPolygon
	BoundaryKML
)

func (k BoundaryKind) String() string {
	switch k {
	case BoundaryBoundingBox:
		return "bbox"
	case BoundaryPolygon:
		return "polygon"
	case BoundaryKML:
		return "kml"
	default:
		return "unknown"
	}
}

// BoundaryDescriptor describes the area a caller wants crimes for. Only the
// field matching Kind is meaningful.
type BoundaryDescriptor struct {
	Kind    BoundaryKind `json:"kind"`
	Box     Bounds       `json:"box,omitempty"`
	Polygon Polygon      `json:"polygon,omitempty"`
	KMLPath string       `json:"kml_path,omitempty"`
}

// BoundingBox builds a descriptor from south/west/north/east edges.
func BoundingBox(south, west, north, east float64) BoundaryDescriptor {
	return BoundaryDescriptor{
		Kind: BoundaryBoundingBox,
		Box:  Bounds{MinLat: south, MinLon: west, MaxLat: north, MaxLon: east},
	}
}

// PolygonBoundary builds a descriptor from an explicit ring.
func PolygonBoundary(points []GeoPoint) BoundaryDescriptor {
	return BoundaryDescriptor{Kind: BoundaryPolygon, Polygon: Polygon(points)}
}

// KMLBoundary builds a descriptor resolved from a KML file on disk.
func KMLBoundary(path string) BoundaryDescriptor {
	return BoundaryDescriptor{Kind: BoundaryKML, KMLPath: path}
}
