package middleware

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"ballast-go/internal/ajax"
	"ballast-go/internal/hostmatch"
	"ballast-go/internal/metrics"
)

// ContextKeyFinalHost is the echo context key holding the request host after
// the matcher's substitution.
const ContextKeyFinalHost = "final_host"

// RequireDomain returns an Echo middleware that only lets through requests
// whose host matches m. Other requests get a not_found AJAX reply.
func RequireDomain(m *hostmatch.Matcher, mt *metrics.Metrics, logger *slog.Logger) echo.MiddlewareFunc {
	logger = logger.With("component", "domain_guard")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			host := hostmatch.FromHTTP(c.Request()).Host()
			if !m.MatchesHost(host) {
				observeMatch(mt, "rejected")
				logger.Debug("host not allowed", "host", host)
				return ajax.Reply(c, mt,
					ajax.WithStatus(ajax.Symbol("not_found")),
					ajax.WithError("unknown host"),
				)
			}

			observeMatch(mt, "matched")
			c.Set(ContextKeyFinalHost, m.FinalHost(host))
			return next(c)
		}
	}
}

func observeMatch(mt *metrics.Metrics, result string) {
	if mt != nil {
		mt.DomainMatches.WithLabelValues(result).Inc()
	}
}
