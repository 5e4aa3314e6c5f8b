package usecases

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/pkg/geospatial"
)

// CacheKey derives the storage key for a (polygon, period) request. Rings
// that differ only in winding, starting vertex, closing vertex or float
// noise below precision share a key. The key is safe as a file name.
func CacheKey(poly domain.Polygon, period domain.Period, precision int) string {
	canon := geospatial.Canonicalize(poly, precision)

	var b strings.Builder
	for i, p := range canon {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strconv.FormatFloat(p.Lat, 'f', precision, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Lon, 'f', precision, 64))
	}
	b.WriteByte('|')
	b.WriteString(period.Label())

	sum := sha256.Sum256([]byte(b.String()))
	label := strings.ReplaceAll(period.Label(), "..", "_")
	return "crimes_" + label + "_" + hex.EncodeToString(sum[:12])
}
