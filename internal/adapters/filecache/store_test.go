package filecache_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/crimescope/internal/adapters/filecache"
	"github.com/samirrijal/crimescope/internal/core/domain"
)

func entry(key string, n int) *domain.CacheEntry {
	recs := make(domain.RecordSet, 0, n)
	for i := 0; i < n; i++ {
		recs = append(recs, domain.CrimeRecord{Category: "burglary", Latitude: 51.5 + float64(i)*0.001, Longitude: -0.1, Month: "2024-01"})
	}
	return &domain.CacheEntry{
		Key:       key,
		Records:   recs,
		Coverage:  domain.Coverage{Complete: true},
		FetchedAt: time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	s, err := filecache.New(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info, err := os.Stat(s.Dir()); err != nil || !info.IsDir() {
		t.Fatalf("expected cache directory to exist: %v", err)
	}
}

func TestStore_MissThenPutThenGet(t *testing.T) {
	ctx := context.Background()
	s, err := filecache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if ok, err := s.Has(ctx, "crimes_2024-01_abc"); err != nil || ok {
		t.Fatalf("expected no entry, got ok=%v err=%v", ok, err)
	}
	_, err = s.Get(ctx, "crimes_2024-01_abc")
	if !errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}

	if err := s.Put(ctx, entry("crimes_2024-01_abc", 3)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ok, _ := s.Has(ctx, "crimes_2024-01_abc"); !ok {
		t.Error("expected entry after put")
	}
	got, err := s.Get(ctx, "crimes_2024-01_abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Records) != 3 || !got.Coverage.Complete || !got.FetchedAt.Equal(time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected entry %+v", got)
	}
}

func TestStore_EmptyRecordSetRoundTrips(t *testing.T) {
	ctx := context.Background()
	s, _ := filecache.New(t.TempDir())
	if err := s.Put(ctx, entry("empty", 0)); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "empty")
	if err != nil {
		t.Fatal(err)
	}
	if got.Records == nil || len(got.Records) != 0 {
		t.Errorf("expected empty non-nil record set, got %#v", got.Records)
	}
}

func TestStore_OverwriteLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, _ := filecache.New(dir)

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := s.Put(ctx, entry("k", n)); err != nil {
				t.Errorf("put %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get after concurrent puts: %v", err)
	}
	if len(got.Records) < 1 || len(got.Records) > 8 {
		t.Errorf("unexpected record count %d", len(got.Records))
	}
	files, _ := os.ReadDir(dir)
	if len(files) != 1 || files[0].Name() != "k.json" {
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, f.Name())
		}
		t.Errorf("expected only k.json, got %v", names)
	}
}

func TestStore_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	s, _ := filecache.New(dir)
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.Get(context.Background(), "bad")
	if err == nil || errors.Is(err, domain.ErrCacheMiss) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestStore_RejectsPathKeys(t *testing.T) {
	s, _ := filecache.New(t.TempDir())
	for _, key := range []string{"", "../escape", "a/b", ".."} {
		t.Run(fmt.Sprintf("%q", key), func(t *testing.T) {
			if err := s.Put(context.Background(), entry(key, 1)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
