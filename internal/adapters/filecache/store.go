// Package filecache stores fetch results as one JSON document per key in a
// local directory.
package filecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/ports"
)

// Store implements ports.CacheStore on the local filesystem. Writes go to a
// temporary file that is renamed into place, so readers never observe a
// partial entry.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ ports.CacheStore = (*Store)(nil)

// New returns a Store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("filecache: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filecache: create %s: %w", dir, err)
	}
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("filecache: invalid key %q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

func (s *Store) lock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Has reports whether an entry exists for key.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Get loads the entry for key. A missing or unreadable entry is a cache miss;
// a corrupt file is reported as an error.
func (s *Store) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.CacheMissError{Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("filecache: read %s: %w", key, err)
	}
	var entry domain.CacheEntry
	if err := json.Unmarshal(b, &entry); err != nil {
		return nil, fmt.Errorf("filecache: decode %s: %w", key, err)
	}
	if entry.Records == nil {
		entry.Records = domain.RecordSet{}
	}
	return &entry, nil
}

// Put replaces the entry for entry.Key.
func (s *Store) Put(ctx context.Context, entry *domain.CacheEntry) error {
	p, err := s.path(entry.Key)
	if err != nil {
		return err
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("filecache: encode %s: %w", entry.Key, err)
	}

	l := s.lock(entry.Key)
	l.Lock()
	defer l.Unlock()

	tmp, err := os.CreateTemp(s.dir, entry.Key+".*.tmp")
	if err != nil {
		return fmt.Errorf("filecache: create temp: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("filecache: write %s: %w", entry.Key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filecache: close %s: %w", entry.Key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("filecache: rename %s: %w", entry.Key, err)
	}
	return nil
}
