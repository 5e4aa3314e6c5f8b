package domain

import (
	"errors"
	"fmt"
)

// ErrCacheMiss is returned by CacheStore.Get when no entry exists.
var ErrCacheMiss = errors.New("cache miss")

// ErrEmptyPeriod is returned when a fetch names no months.
var ErrEmptyPeriod = errors.New("period must contain at least one month")

// InvalidBoundaryError reports a malformed boundary supplied by the caller.
type InvalidBoundaryError struct {
	Reason string
}

func (e *InvalidBoundaryError) Error() string {
	return "invalid boundary: " + e.Reason
}

// BoundaryResolutionError reports that an external boundary source (KML)
// could not produce a polygon.
type BoundaryResolutionError struct {
	Source string
	Err    error
}

func (e *BoundaryResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolve boundary %s: no coordinates", e.Source)
	}
	return fmt.Sprintf("resolve boundary %s: %v", e.Source, e.Err)
}

func (e *BoundaryResolutionError) Unwrap() error { return e.Err }

// FetchError is a non-success upstream response that is not retried.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream fetch failed (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("upstream fetch failed (status %d)", e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// OversizedResultError means the upstream refused the query as too large
// (HTTP 503/400) or returned a capped result.
type OversizedResultError struct {
	Status int
	Count  int
}

func (e *OversizedResultError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("query too large: %d records at result ceiling", e.Count)
	}
	return fmt.Sprintf("query too large: upstream status %d", e.Status)
}

// TimeoutError wraps a request that ran past the configured timeout.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	if e.Err != nil {
		return "upstream request timed out: " + e.Err.Error()
	}
	return "upstream request timed out"
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// CacheMissError carries the key that was not found.
type CacheMissError struct {
	Key string
}

func (e *CacheMissError) Error() string { return "cache miss: " + e.Key }

func (e *CacheMissError) Is(target error) bool { return target == ErrCacheMiss }

// CacheWriteError reports a persistence failure. Fetches log it and carry on.
type CacheWriteError struct {
	Key string
	Err error
}

func (e *CacheWriteError) Error() string {
	return fmt.Sprintf("cache write %s: %v", e.Key, e.Err)
}

func (e *CacheWriteError) Unwrap() error { return e.Err }

// IsRetryable reports whether a segment error should be bisected and retried.
func IsRetryable(err error) bool {
	var oversized *OversizedResultError
	var timeout *TimeoutError
	return errors.As(err, &oversized) || errors.As(err, &timeout)
}

// IsBoundaryError reports whether err stems from the caller's boundary.
func IsBoundaryError(err error) bool {
	var invalid *InvalidBoundaryError
	var unresolved *BoundaryResolutionError
	return errors.As(err, &invalid) || errors.As(err, &unresolved)
}
