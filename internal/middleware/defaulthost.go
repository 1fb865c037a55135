package middleware

import (
	"log/slog"
	"net"

	"github.com/labstack/echo/v4"

	"ballast-go/internal/defaulthost"
	"ballast-go/internal/hostmatch"
	"ballast-go/internal/metrics"
)

// HeaderOriginalHost carries the request host as received, before rewriting.
const HeaderOriginalHost = "X-Original-Host"

// ContextKeyOriginalHost is the echo context key holding the original host.
const ContextKeyOriginalHost = "original_host"

// DefaultHost returns an Echo middleware that rewrites requests addressed to
// a bare IP to the default host configured for env. Requests using a name,
// or running in an environment absent from the table, pass through untouched.
// The metrics parameter is optional.
func DefaultHost(table defaulthost.Table, env string, m *metrics.Metrics, logger *slog.Logger) echo.MiddlewareFunc {
	host, ok := table.Lookup(env)
	if !ok {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	logger = logger.With("component", "default_host")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			orig := req.Host
			if net.ParseIP(hostmatch.StripPort(orig)) == nil {
				return next(c)
			}

			req.Host = host
			req.Header.Set(HeaderOriginalHost, orig)
			c.Set(ContextKeyOriginalHost, orig)
			if m != nil {
				m.HostRewrites.Inc()
			}
			logger.Debug("rewrote host", "from", orig, "to", host)

			return next(c)
		}
	}
}
