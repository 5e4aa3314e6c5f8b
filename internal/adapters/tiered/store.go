// Package tiered chains cache stores: reads try each tier in order and
// backfill the faster tiers on a hit further down; writes go to every tier.
package tiered

import (
	"context"
	"errors"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/ports"
	"github.com/samirrijal/crimescope/internal/pkg/logging"
)

// Store implements ports.CacheStore over an ordered list of tiers.
type Store struct {
	tiers []ports.CacheStore
}

var _ ports.CacheStore = (*Store)(nil)

// New builds a Store; nil tiers are skipped.
func New(tiers ...ports.CacheStore) *Store {
	s := &Store{}
	for _, t := range tiers {
		if t != nil {
			s.tiers = append(s.tiers, t)
		}
	}
	return s
}

// Has reports whether any tier holds key. Tier errors are skipped unless
// every tier fails.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	var errs []error
	for _, t := range s.tiers {
		ok, err := t.Has(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return true, nil
		}
	}
	if len(errs) == len(s.tiers) && len(errs) > 0 {
		return false, errors.Join(errs...)
	}
	return false, nil
}

// Get returns the first entry found and copies it into the tiers above.
func (s *Store) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	for i, t := range s.tiers {
		entry, err := t.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, domain.ErrCacheMiss) {
				logging.FromContext(ctx).Warn("cache tier read failed", "tier", i, "key", key, "error", err)
			}
			continue
		}
		for j := 0; j < i; j++ {
			if err := s.tiers[j].Put(ctx, entry); err != nil {
				logging.FromContext(ctx).Warn("cache tier backfill failed", "tier", j, "key", key, "error", err)
			}
		}
		return entry, nil
	}
	return nil, &domain.CacheMissError{Key: key}
}

// Put writes to every tier and joins their errors.
func (s *Store) Put(ctx context.Context, entry *domain.CacheEntry) error {
	var errs []error
	for _, t := range s.tiers {
		if err := t.Put(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
