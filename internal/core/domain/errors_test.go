package domain_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/samirrijal/crimescope/internal/core/domain"
)

func TestErrorMessagesWithoutCause(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", &domain.TimeoutError{}, "upstream request timed out"},
		{"fetch", &domain.FetchError{Status: 500}, "status 500"},
		{"boundary", &domain.BoundaryResolutionError{Source: "met/Camden.kml"}, "no coordinates"},
		{"oversized", &domain.OversizedResultError{Count: 10000}, "10000 records"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); !strings.Contains(got, tt.want) {
				t.Errorf("expected %q in %q", tt.want, got)
			}
		})
	}
}

func TestErrorClassification(t *testing.T) {
	timeout := fmt.Errorf("segment: %w", &domain.TimeoutError{Err: context.DeadlineExceeded})
	if !domain.IsRetryable(timeout) {
		t.Error("expected wrapped timeout to be retryable")
	}
	if !errors.Is(timeout, context.DeadlineExceeded) {
		t.Error("expected timeout to unwrap to its cause")
	}
	if !domain.IsRetryable(&domain.OversizedResultError{Status: 503}) {
		t.Error("expected oversized result to be retryable")
	}
	if domain.IsRetryable(&domain.FetchError{Status: 500}) {
		t.Error("expected fetch error not to be retryable")
	}

	if !domain.IsBoundaryError(&domain.InvalidBoundaryError{Reason: "2 vertices"}) {
		t.Error("expected invalid boundary classified as boundary error")
	}
	if domain.IsBoundaryError(&domain.FetchError{Status: 404}) {
		t.Error("expected fetch error not classified as boundary error")
	}
	if !errors.Is(&domain.CacheMissError{Key: "k"}, domain.ErrCacheMiss) {
		t.Error("expected CacheMissError to match ErrCacheMiss")
	}
}
