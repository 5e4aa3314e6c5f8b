// Package policeuk queries the data.police.uk street-level crime endpoint.
package policeuk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/ports"
	"github.com/samirrijal/crimescope/internal/pkg/logging"
	"github.com/samirrijal/crimescope/internal/pkg/metrics"
)

const (
	DefaultBaseURL = "https://data.police.uk/api"

	streetCrimesPath = "/crimes-street/all-crime"
	// Longer GET URLs are rejected by the upstream proxy; switch to a form POST.
	maxGetURLLength = 4096
)

var tracer = otel.Tracer("github.com/samirrijal/crimescope/internal/adapters/policeuk")

// Options configures a Client.
type Options struct {
	BaseURL string
	// Timeout bounds a single request, including reading the body.
	Timeout time.Duration
	// RatePerSecond and Burst throttle outgoing requests. The upstream
	// allows 15 requests per second with a burst of 30 per client IP.
	RatePerSecond float64
	Burst         int
	UserAgent     string
	HTTPClient    *http.Client
}

// Client implements ports.CrimeSource.
type Client struct {
	baseURL   string
	timeout   time.Duration
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

var _ ports.CrimeSource = (*Client)(nil)

// New creates a police.uk client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 15
	}
	if opts.Burst <= 0 {
		opts.Burst = 30
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "crimescope/1.0"
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		http:      opts.HTTPClient,
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
	}
}

// FormatPolygon renders a ring as the upstream "lat,lng:lat,lng" parameter.
func FormatPolygon(poly domain.Polygon) string {
	var b strings.Builder
	for i, p := range poly {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strconv.FormatFloat(p.Lat, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Lon, 'f', -1, 64))
	}
	return b.String()
}

// StreetCrimes returns the raw crimes inside poly for one month.
//
// 503 and 400 mean the area is too large (or has no coverage) and map to
// *domain.OversizedResultError. Requests running past the timeout, or that
// the rate limit would hold past the caller's deadline, map to
// *domain.TimeoutError. Every other failure is a *domain.FetchError.
func (c *Client) StreetCrimes(ctx context.Context, poly domain.Polygon, month domain.Month) ([]ports.RawCrime, error) {
	ctx, span := tracer.Start(ctx, "policeuk.StreetCrimes", trace.WithAttributes(
		attribute.String("month", month.String()),
		attribute.Int("vertices", len(poly)),
	))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// The next token would arrive after the deadline.
		metrics.UpstreamRequests.WithLabelValues("timeout").Inc()
		span.RecordError(err)
		return nil, &domain.TimeoutError{Err: err}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(reqCtx, poly, month)
	if err != nil {
		return nil, &domain.FetchError{Err: err}
	}

	log := logging.FromContext(ctx)
	start := time.Now()
	crimes, status, err := c.do(req)
	elapsed := time.Since(start)
	metrics.UpstreamDuration.Observe(elapsed.Seconds())
	span.SetAttributes(attribute.Int("http.status_code", status))

	if err != nil {
		err = c.classify(ctx, status, err)
		metrics.UpstreamRequests.WithLabelValues(outcome(err)).Inc()
		log.Debug("policeuk request failed",
			"method", req.Method, "month", month.String(), "status", status,
			"duration_ms", elapsed.Milliseconds(), "error", err)
		span.RecordError(err)
		return nil, err
	}

	metrics.UpstreamRequests.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.Int("records", len(crimes)))
	log.Debug("policeuk request",
		"method", req.Method, "month", month.String(), "status", status,
		"records", len(crimes), "duration_ms", elapsed.Milliseconds())
	return crimes, nil
}

func (c *Client) newRequest(ctx context.Context, poly domain.Polygon, month domain.Month) (*http.Request, error) {
	q := url.Values{}
	q.Set("poly", FormatPolygon(poly))
	q.Set("date", month.String())
	encoded := q.Encode()

	var (
		req *http.Request
		err error
	)
	u := c.baseURL + streetCrimesPath
	if len(u)+1+len(encoded) <= maxGetURLLength {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+encoded, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(encoded))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

// statusError carries a non-200 response.
type statusError struct {
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return "unexpected response"
	}
	return "unexpected response: " + e.body
}

func (c *Client) do(req *http.Request) ([]ports.RawCrime, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, resp.StatusCode, &statusError{body: strings.TrimSpace(string(snippet))}
	}

	var crimes []ports.RawCrime
	if err := json.NewDecoder(resp.Body).Decode(&crimes); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return crimes, resp.StatusCode, nil
}

func (c *Client) classify(ctx context.Context, status int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	switch status {
	case http.StatusServiceUnavailable, http.StatusBadRequest:
		return &domain.OversizedResultError{Status: status}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.TimeoutError{Err: err}
	}
	return &domain.FetchError{Status: status, Err: err}
}

func outcome(err error) string {
	var oversized *domain.OversizedResultError
	var timeout *domain.TimeoutError
	switch {
	case errors.As(err, &oversized):
		return "oversized"
	case errors.As(err, &timeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}
