package policeuk_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samirrijal/crimescope/internal/adapters/policeuk"
	"github.com/samirrijal/crimescope/internal/core/domain"
)

var (
	box   = domain.Bounds{MinLat: 51.5, MinLon: -0.13, MaxLat: 51.52, MaxLon: -0.1}.Ring()
	month = domain.Month{Year: 2024, Month: time.January}
)

const sampleBody = `[{"category":"burglary","location_type":"Force","location":{"latitude":"51.51","street":{"id":1,"name":"On or near Strand"},"longitude":"-0.12"},"context":"","outcome_status":null,"persistent_id":"p1","id":7,"location_subtype":"","month":"2024-01"}]`

func newClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) *policeuk.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return policeuk.New(policeuk.Options{BaseURL: srv.URL, Timeout: timeout, RatePerSecond: 1000, Burst: 1000})
}

func TestFormatPolygon(t *testing.T) {
	got := policeuk.FormatPolygon(box)
	want := "51.52,-0.13:51.52,-0.1:51.5,-0.1:51.5,-0.13"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestStreetCrimes_Get(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/crimes-street/all-crime" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("date"); got != "2024-01" {
			t.Errorf("expected date 2024-01, got %s", got)
		}
		if got := r.URL.Query().Get("poly"); got != policeuk.FormatPolygon(box) {
			t.Errorf("unexpected poly %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleBody))
	}, time.Second)

	crimes, err := c.StreetCrimes(context.Background(), box, month)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(crimes) != 1 {
		t.Fatalf("expected 1 crime, got %d", len(crimes))
	}
	if crimes[0].Category != "burglary" || crimes[0].Location == nil || string(crimes[0].Location.Latitude) != `"51.51"` {
		t.Errorf("unexpected crime %+v", crimes[0])
	}
}

func TestStreetCrimes_PostForLongPolygon(t *testing.T) {
	long := make(domain.Polygon, 0, 400)
	for i := 0; i < 400; i++ {
		long = append(long, domain.GeoPoint{Lat: 51.5 + float64(i)*0.000123, Lon: -0.1 - float64(i)*0.000321})
	}
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("poly"); got != policeuk.FormatPolygon(long) {
			t.Error("poly form value mismatch")
		}
		if r.PostForm.Get("date") != "2024-01" {
			t.Error("missing date form value")
		}
		_, _ = w.Write([]byte("[]"))
	}, time.Second)

	crimes, err := c.StreetCrimes(context.Background(), long, month)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(crimes) != 0 {
		t.Errorf("expected no crimes, got %d", len(crimes))
	}
}

func TestStreetCrimes_StatusMapping(t *testing.T) {
	cases := []struct {
		status    int
		oversized bool
	}{
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, true},
		{http.StatusInternalServerError, false},
		{http.StatusNotFound, false},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}, time.Second)

			_, err := c.StreetCrimes(context.Background(), box, month)
			var oversized *domain.OversizedResultError
			var fetchErr *domain.FetchError
			switch {
			case tc.oversized:
				if !errors.As(err, &oversized) || oversized.Status != tc.status {
					t.Fatalf("expected OversizedResultError(%d), got %v", tc.status, err)
				}
				if !domain.IsRetryable(err) {
					t.Error("expected retryable")
				}
			default:
				if !errors.As(err, &fetchErr) || fetchErr.Status != tc.status {
					t.Fatalf("expected FetchError(%d), got %v", tc.status, err)
				}
				if domain.IsRetryable(err) {
					t.Error("expected non-retryable")
				}
			}
		})
	}
}

func TestStreetCrimes_Timeout(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 50*time.Millisecond)

	_, err := c.StreetCrimes(context.Background(), box, month)
	var timeout *domain.TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
}

func TestStreetCrimes_RateLimitPastDeadline(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("[]"))
	}))
	t.Cleanup(srv.Close)
	// One token, then the next only after 100s.
	c := policeuk.New(policeuk.Options{BaseURL: srv.URL, Timeout: time.Second, RatePerSecond: 0.01, Burst: 1})

	if _, err := c.StreetCrimes(context.Background(), box, month); err != nil {
		t.Fatalf("first request: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := c.StreetCrimes(ctx, box, month)
	var timeout *domain.TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %T %v", err, err)
	}
	if !domain.IsRetryable(err) {
		t.Error("expected a rate-limit timeout to be retryable")
	}
	if ctx.Err() != nil {
		t.Error("expected the limiter to give up before the deadline passed")
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("expected no second upstream request, got %d hits", n)
	}
}

func TestStreetCrimes_MalformedBody(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"`))
	}, time.Second)

	_, err := c.StreetCrimes(context.Background(), box, month)
	var fetchErr *domain.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if !strings.Contains(err.Error(), "decode") {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestStreetCrimes_Cancelled(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.StreetCrimes(ctx, box, month)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
