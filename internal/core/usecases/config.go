package usecases

import (
	"time"

	"github.com/samirrijal/crimescope/internal/core/domain"
)

// FetcherConfig holds the knobs of the acquisition engine. It is built once
// by the caller and passed to the constructors; nothing reads globals.
type FetcherConfig struct {
	CacheDir       string
	RequestTimeout time.Duration

	// MaxDepth bounds how many times an oversized segment is bisected.
	MaxDepth int
	// MaxVertices is the largest polygon sent upstream as-is.
	MaxVertices int
	// ResultCeiling is the record count the upstream caps responses at;
	// a response this large is treated as oversized.
	ResultCeiling int
	// KeyPrecision is the number of decimal places vertices are rounded to
	// before computing a cache key.
	KeyPrecision int

	// Coverage, when non-zero, is the envelope the upstream has data for.
	// Requests entirely outside it are answered empty without a network call.
	Coverage domain.Bounds
}

// DefaultFetcherConfig mirrors the documented police.uk limits.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		CacheDir:       "cached_data",
		RequestTimeout: 30 * time.Second,
		MaxDepth:       3,
		MaxVertices:    100,
		ResultCeiling:  10000,
		KeyPrecision:   5,
	}
}
