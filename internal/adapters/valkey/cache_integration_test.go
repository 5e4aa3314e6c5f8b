//go:build integration
// +build integration

package valkey

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/crimescope/internal/core/domain"
)

// newTestCache connects to VALKEY_ADDR (default localhost:6379) under a
// per-test prefix.
func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	addr := os.Getenv("VALKEY_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	c, err := New(addr, "crimescope-test:"+uuid.NewString()+":", ttl)
	if err != nil {
		t.Skipf("valkey not reachable at %s: %v", addr, err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestCache_MissIsCacheMiss(t *testing.T) {
	c := newTestCache(t, 0)
	ctx := context.Background()

	if ok, err := c.Has(ctx, "absent"); err != nil || ok {
		t.Fatalf("expected Has=false, got %v, %v", ok, err)
	}
	if _, err := c.Get(ctx, "absent"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestCache_PutOverwritesWithoutExpiry(t *testing.T) {
	c := newTestCache(t, 0)
	ctx := context.Background()

	first := &domain.CacheEntry{Key: "k", Records: domain.RecordSet{
		{Category: "burglary", Latitude: 51.51, Longitude: -0.12, Month: "2024-01"},
		{Category: "arson", Latitude: 51.52, Longitude: -0.12, Month: "2024-01"},
	}}
	if err := c.Put(ctx, first); err != nil {
		t.Fatalf("put: %v", err)
	}
	t.Cleanup(func() {
		_ = c.client.Do(context.Background(), c.client.B().Del().Key(c.key("k")).Build()).Error()
	})
	second := &domain.CacheEntry{Key: "k", Records: domain.RecordSet{first.Records[0]}}
	if err := c.Put(ctx, second); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Records) != 1 || got.Records[0].Category != "burglary" {
		t.Errorf("expected overwritten entry, got %+v", got.Records)
	}

	ttl, err := c.client.Do(ctx, c.client.B().Ttl().Key(c.key("k")).Build()).AsInt64()
	if err != nil {
		t.Fatal(err)
	}
	if ttl != -1 {
		t.Errorf("expected no expiry (TTL -1), got %d", ttl)
	}
}

func TestCache_TTL(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	if err := c.Put(ctx, &domain.CacheEntry{Key: "k"}); err != nil {
		t.Fatal(err)
	}
	ttl, err := c.client.Do(ctx, c.client.B().Ttl().Key(c.key("k")).Build()).AsInt64()
	if err != nil {
		t.Fatal(err)
	}
	if ttl <= 0 || ttl > 3600 {
		t.Errorf("expected expiry within an hour, got %d", ttl)
	}
	t.Cleanup(func() {
		_ = c.client.Do(context.Background(), c.client.B().Del().Key(c.key("k")).Build()).Error()
	})
}
