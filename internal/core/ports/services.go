package ports

import (
	"context"
	"encoding/json"

	"github.com/samirrijal/crimescope/internal/core/domain"
)

// RawCrime is one element of the upstream street-crime array, decoded
// loosely so malformed entries can be dropped individually.
type RawCrime struct {
	ID            int64        `json:"id"`
	PersistentID  string       `json:"persistent_id"`
	Category      string       `json:"category"`
	LocationType  *string      `json:"location_type"`
	Location      *RawLocation `json:"location"`
	Month         string       `json:"month"`
	OutcomeStatus *RawOutcome  `json:"outcome_status"`
}

// RawLocation holds coordinates as the upstream sends them (strings).
type RawLocation struct {
	Latitude  json.RawMessage `json:"latitude"`
	Longitude json.RawMessage `json:"longitude"`
	Street    *RawStreet      `json:"street"`
}

type RawStreet struct {
	ID   *int64 `json:"id"`
	Name string `json:"name"`
}

type RawOutcome struct {
	Category string `json:"category"`
	Date     string `json:"date"`
}

// CrimeSource queries the upstream street-crime endpoint for one polygon
// and one month. Implementations return *domain.OversizedResultError,
// *domain.TimeoutError or *domain.FetchError on failure.
type CrimeSource interface {
	StreetCrimes(ctx context.Context, poly domain.Polygon, month domain.Month) ([]RawCrime, error)
}

// EventPublisher publishes fetch notifications to a message broker.
type EventPublisher interface {
	PublishFetchCompleted(ctx context.Context, event *domain.FetchEvent) error
}
