package usecases

import (
	"bytes"
	"math"
	"strconv"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/ports"
)

// NormalizeCrimes converts upstream rows into records. Rows without a usable
// location are dropped; the second return value counts them.
func NormalizeCrimes(raw []ports.RawCrime) (domain.RecordSet, int) {
	out := make(domain.RecordSet, 0, len(raw))
	dropped := 0
	for _, c := range raw {
		if c.Location == nil {
			dropped++
			continue
		}
		lat, okLat := parseCoord(c.Location.Latitude)
		lon, okLon := parseCoord(c.Location.Longitude)
		if !okLat || !okLon {
			dropped++
			continue
		}

		rec := domain.CrimeRecord{
			Category:     c.Category,
			Latitude:     lat,
			Longitude:    lon,
			Month:        c.Month,
			ID:           c.ID,
			PersistentID: c.PersistentID,
		}
		if c.LocationType != nil {
			rec.LocationType = *c.LocationType
		}
		if st := c.Location.Street; st != nil {
			rec.StreetID = st.ID
			if st.Name != "" {
				name := st.Name
				rec.StreetName = &name
			}
		}
		if c.OutcomeStatus != nil && c.OutcomeStatus.Category != "" {
			outcome := c.OutcomeStatus.Category
			rec.Outcome = &outcome
		}
		out = append(out, rec)
	}
	return out, dropped
}

// parseCoord accepts a JSON string or number.
func parseCoord(raw []byte) (float64, bool) {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return 0, false
	}
	v = bytes.Trim(v, `"`)
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
