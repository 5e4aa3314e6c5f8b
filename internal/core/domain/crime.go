package domain

import "time"

// CrimeRecord is the normalized shape of a single street-level crime.
type CrimeRecord struct {
	Category     string  `json:"category"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Month        string  `json:"month"`
	StreetID     *int64  `json:"street_id,omitempty"`
	StreetName   *string `json:"street_name,omitempty"`
	Outcome      *string `json:"outcome,omitempty"`
	ID           int64   `json:"id,omitempty"`
	PersistentID string  `json:"persistent_id,omitempty"`
	LocationType string  `json:"location_type,omitempty"`
}

// Location returns the record position.
func (r CrimeRecord) Location() GeoPoint {
	return GeoPoint{Lat: r.Latitude, Lon: r.Longitude}
}

// DedupKey identifies records that overlapping sub-queries return twice.
type DedupKey struct {
	Category  string
	Latitude  float64
	Longitude float64
	Month     string
}

func (r CrimeRecord) DedupKey() DedupKey {
	return DedupKey{Category: r.Category, Latitude: r.Latitude, Longitude: r.Longitude, Month: r.Month}
}

// RecordSet is the ordered result of one (boundary, period) request.
type RecordSet []CrimeRecord

// SegmentReport describes a sub-request that did not contribute records.
type SegmentReport struct {
	Month  string `json:"month"`
	Bounds Bounds `json:"bounds"`
	Depth  int    `json:"depth"`
	Status int    `json:"status,omitempty"`
	Reason string `json:"reason"`
}

// Coverage tells the caller whether every part of the requested area was
// fetched. Complete is false when any segment was abandoned or failed.
type Coverage struct {
	Complete  bool            `json:"complete"`
	Abandoned []SegmentReport `json:"abandoned,omitempty"`
	Failed    []SegmentReport `json:"failed,omitempty"`
}

// CacheEntry is what a CacheStore persists for one key. Entries are never
// mutated; a refresh replaces the whole entry.
type CacheEntry struct {
	Key       string    `json:"key"`
	Records   RecordSet `json:"records"`
	Coverage  Coverage  `json:"coverage"`
	FetchedAt time.Time `json:"fetched_at"`
}

// FetchResult is returned to renderers.
type FetchResult struct {
	Key    string `json:"key"`
	Period string `json:"period"`
	// Bounds is the envelope of the resolved query polygon.
	Bounds        Bounds    `json:"bounds"`
	Records       RecordSet `json:"records"`
	Coverage      Coverage  `json:"coverage"`
	FromCache     bool      `json:"from_cache"`
	FetchedAt     time.Time `json:"fetched_at"`
	UpstreamCalls int       `json:"upstream_calls"`
}

// FetchEvent is published after a fetch went to the upstream API.
type FetchEvent struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Period    string    `json:"period"`
	Bounds    Bounds    `json:"bounds"`
	Records   int       `json:"records"`
	Complete  bool      `json:"complete"`
	Refreshed bool      `json:"refreshed"`
	At        time.Time `json:"at"`
}
