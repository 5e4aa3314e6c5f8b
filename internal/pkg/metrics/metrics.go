package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crimescope",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "crimescope",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10, 30},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "crimescope",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 7),
	}, []string{"method", "path"})

	// Upstream metrics
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crimescope",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Total police.uk street-crime requests by outcome",
	}, []string{"outcome"})

	UpstreamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "crimescope",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Duration of police.uk street-crime requests",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	// Fetch engine metrics
	FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crimescope",
		Subsystem: "fetch",
		Name:      "total",
		Help:      "Total fetch operations by source (cache or upstream)",
	}, []string{"source"})

	SegmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crimescope",
		Subsystem: "fetch",
		Name:      "segments_total",
		Help:      "Segments processed by outcome (ok, bisected, abandoned, failed)",
	}, []string{"outcome"})

	RecordsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crimescope",
		Subsystem: "fetch",
		Name:      "records_dropped_total",
		Help:      "Records dropped during normalization, clipping or deduplication",
	}, []string{"reason"})

	RecordsReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "crimescope",
		Subsystem: "fetch",
		Name:      "records",
		Help:      "Records per fetch result",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 9),
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "crimescope",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crimescope",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crimescope",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	CacheWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "crimescope",
		Subsystem: "cache",
		Name:      "write_errors_total",
		Help:      "Cache writes that failed and were skipped",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
