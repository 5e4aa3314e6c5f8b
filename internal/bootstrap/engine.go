// Package bootstrap assembles the crime acquisition engine from configuration
// for the command binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/crimescope/internal/adapters/filecache"
	"github.com/samirrijal/crimescope/internal/adapters/kml"
	"github.com/samirrijal/crimescope/internal/adapters/policeuk"
	"github.com/samirrijal/crimescope/internal/adapters/redis"
	"github.com/samirrijal/crimescope/internal/adapters/tiered"
	"github.com/samirrijal/crimescope/internal/adapters/valkey"
	"github.com/samirrijal/crimescope/internal/core/ports"
	"github.com/samirrijal/crimescope/internal/core/usecases"
	"github.com/samirrijal/crimescope/internal/pkg/config"
)

// Pinger is implemented by remote cache backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Engine is a ready-to-use CrimeService plus the resources behind it.
type Engine struct {
	Crimes *usecases.CrimeService
	Cache  ports.CacheStore
	// Remote is the shared cache tier, nil when only the file cache is used.
	Remote  Pinger
	closers []func()
}

// Close releases cache connections.
func (e *Engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// NewEngine wires the police.uk client, the configured cache and KML
// boundaries into a CrimeService. events may be nil.
func NewEngine(ctx context.Context, cfg *config.Config, events ports.EventPublisher) (*Engine, error) {
	e := &Engine{}
	if err := e.openCache(ctx, cfg); err != nil {
		return nil, err
	}

	client := policeuk.New(policeuk.Options{
		BaseURL:       cfg.PoliceUK.BaseURL,
		Timeout:       time.Duration(cfg.PoliceUK.Timeout) * time.Second,
		RatePerSecond: cfg.PoliceUK.RatePerSecond,
		Burst:         cfg.PoliceUK.Burst,
		UserAgent:     cfg.PoliceUK.UserAgent,
	})

	var polygons ports.PolygonSource
	if cfg.KML.Dir != "" {
		polygons = kml.NewSource(cfg.KML.Dir)
	}

	e.Crimes = usecases.NewCrimeService(usecases.NewBoundaryService(polygons), client, e.Cache, events, cfg.FetcherConfig())
	return e, nil
}

// openCache picks the CacheStore. A remote backend that cannot be reached
// degrades to the file cache instead of failing startup.
func (e *Engine) openCache(ctx context.Context, cfg *config.Config) error {
	local, err := filecache.New(cfg.Cache.Dir)
	if err != nil {
		return fmt.Errorf("file cache: %w", err)
	}

	var remote ports.CacheStore
	switch cfg.Cache.Backend {
	case "valkey":
		c, err := valkey.New(cfg.Valkey.Addr, cfg.Cache.Prefix, cfg.Cache.TTL())
		if err != nil {
			slog.Warn("valkey unavailable, using file cache", "addr", cfg.Valkey.Addr, "error", err)
			break
		}
		e.closers = append(e.closers, c.Close)
		remote, e.Remote = c, c

	case "redis":
		c := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Cache.Prefix, cfg.Cache.TTL())
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := c.Ping(pingCtx)
		cancel()
		if err != nil {
			slog.Warn("redis unavailable, using file cache", "addr", cfg.Redis.Addr, "error", err)
			_ = c.Close()
			break
		}
		e.closers = append(e.closers, func() { _ = c.Close() })
		remote, e.Remote = c, c
	}

	switch {
	case remote == nil:
		e.Cache = local
	case cfg.Cache.Tiered:
		e.Cache = tiered.New(local, remote)
	default:
		e.Cache = remote
	}
	slog.Info("cache ready", "backend", cfg.Cache.Backend, "tiered", cfg.Cache.Tiered && remote != nil, "dir", local.Dir())
	return nil
}
