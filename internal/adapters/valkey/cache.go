package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/ports"
)

// Cache implements ports.CacheStore using Valkey (Redis-compatible), so
// several API replicas can share fetched results.
type Cache struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

var _ ports.CacheStore = (*Cache)(nil)

// New creates a new Valkey cache client. A zero ttl keeps entries until
// they are replaced.
func New(addr, prefix string, ttl time.Duration) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Cache{client: client, prefix: prefix, ttl: ttl}, nil
}

func (c *Cache) key(k string) string { return c.prefix + k }

// Has reports whether key exists.
func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Do(ctx, c.client.B().Exists().Key(c.key(key)).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get retrieves the entry for key.
func (c *Cache) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(c.key(key)).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, &domain.CacheMissError{Key: key}
	}
	if err != nil {
		return nil, err
	}
	var entry domain.CacheEntry
	if err := json.Unmarshal(b, &entry); err != nil {
		return nil, fmt.Errorf("valkey decode %s: %w", key, err)
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
		return fmt.Errorf("valkey encode %s: %w", entry.Key, err)
	}
	set := c.client.B().Set().Key(c.key(entry.Key)).Value(valkey.BinaryString(b))
	if c.ttl > 0 {
		return c.client.Do(ctx, set.Ex(c.ttl).Build()).Error()
	}
	return c.client.Do(ctx, set.Build()).Error()
}

// Ping checks connectivity for readiness probes.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (c *Cache) Close() {
	c.client.Close()
}
