// Package redis is a CacheStore backed by a plain Redis server, for
// deployments that run Redis rather than Valkey.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/ports"
)

// Cache implements ports.CacheStore.
type Cache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

var _ ports.CacheStore = (*Cache)(nil)

// New opens a Redis client. A zero ttl keeps entries until replaced.
func New(addr, password string, db int, prefix string, ttl time.Duration) *Cache {
	return NewWithClient(goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db}), prefix, ttl)
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

// Has reports whether key exists.
func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get retrieves the entry for key.
func (c *Cache) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, &domain.CacheMissError{Key: key}
	}
	if err != nil {
		return nil, err
	}
	var entry domain.CacheEntry
	if err := json.Unmarshal(b, &entry); err != nil {
		return nil, fmt.Errorf("redis decode %s: %w", key, err)
	}
	if entry.Records == nil {
		entry.Records = domain.RecordSet{}
	}
	return &entry, nil
}

// Put stores the entry, replacing any previous value.
func (c *Cache) Put(ctx context.Context, entry *domain.CacheEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", entry.Key, err)
	}
	return c.client.Set(ctx, c.prefix+entry.Key, b, c.ttl).Err()
}

// Ping checks connectivity for readiness probes.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
