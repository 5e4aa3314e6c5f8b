package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/crimescope/internal/pkg/logging"
)

// AccessLogMiddleware logs one line per request through the request-scoped
// logger, so request_id comes from RequestIDLogMiddleware.
func AccessLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		method, path := c.Method(), c.Path()

		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000),
			slog.Int("bytes_out", len(c.Response().Body())),
		}
		// Crime lookups: which boundary and month were asked for, and how it was served.
		if q := string(c.Request().URI().QueryString()); q != "" && len(q) <= 512 {
			attrs = append(attrs, slog.String("query", q))
		}
		if cache := c.GetRespHeader("X-Cache"); cache != "" {
			attrs = append(attrs, slog.String("cache", cache))
		}
		if cov := c.GetRespHeader("X-Coverage"); cov != "" {
			attrs = append(attrs, slog.String("coverage", cov))
		}

		level := slog.LevelInfo
		switch {
		case err != nil || status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}

		ctx := c.UserContext()
		logging.FromContext(ctx).LogAttrs(ctx, level, method+" "+path, attrs...)
		return err
	}
}
