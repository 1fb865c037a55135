package handler

import (
	"github.com/labstack/echo/v4"

	"ballast-go/internal/ajax"
	"ballast-go/internal/hostmatch"
	"ballast-go/internal/metrics"
	"ballast-go/internal/middleware"
)

// HostHandler reports how the request host was resolved.
type HostHandler struct {
	matcher *hostmatch.Matcher
	metrics *metrics.Metrics
}

// NewHostHandler creates a HostHandler.
func NewHostHandler(matcher *hostmatch.Matcher, m *metrics.Metrics) *HostHandler {
	return &HostHandler{matcher: matcher, metrics: m}
}

// Host replies with the final host after substitution, the host the client
// originally sent and whether the request matched the allow-list.
func (h *HostHandler) Host(c echo.Context) error {
	req := c.Request()
	host := hostmatch.FromHTTP(req).Host()

	final, ok := c.Get(middleware.ContextKeyFinalHost).(string)
	if !ok {
		final = h.matcher.FinalHost(host)
	}
	original, ok := c.Get(middleware.ContextKeyOriginalHost).(string)
	if !ok {
		original = req.Host
	}

	return ajax.Reply(c, h.metrics, ajax.WithData(map[string]any{
		"host":          host,
		"final_host":    final,
		"original_host": original,
		"matched":       h.matcher.MatchesHost(host),
	}))
}
