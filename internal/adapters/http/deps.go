package http

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/crimescope/internal/core/usecases"
)

// Pinger is implemented by cache backends that talk to a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Crimes *usecases.CrimeService
	Hub    *Hub
	NATS   *nats.Conn
	Cache  Pinger
	// KMLEnabled allows the kml query parameter.
	KMLEnabled     bool
	RequestTimeout time.Duration
	// RateLimit is requests per minute per client IP. Zero uses 120.
	RateLimit int
}

func (d *Dependencies) requestTimeout() time.Duration {
	if d.RequestTimeout <= 0 {
		return 120 * time.Second
	}
	return d.RequestTimeout
}
