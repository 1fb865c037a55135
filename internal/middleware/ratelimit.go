package middleware

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"ballast-go/internal/ajax"
	"ballast-go/internal/metrics"
)

// RateLimit returns a per-IP rate limiter. Rejected requests get a
// too_many_requests AJAX reply instead of Echo's default error body.
func RateLimit(rps float64, m *metrics.Metrics, logger *slog.Logger) echo.MiddlewareFunc {
	logger = logger.With("component", "rate_limit")

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: echomw.NewRateLimiterMemoryStore(rate.Limit(rps)),
		DenyHandler: func(c echo.Context, identifier string, _ error) error {
			logger.Debug("rate limited", "ip", identifier)
			return ajax.Reply(c, m,
				ajax.WithStatus(ajax.Symbol("too_many_requests")),
				ajax.WithError("rate limit exceeded"),
			)
		},
	})
}
