package handler

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"

	"ballast-go/internal/ajax"
	"ballast-go/internal/config"
	"ballast-go/internal/hostmatch"
	"ballast-go/internal/metrics"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HostCounter reads back per-host request counts. A nil HostCounter means
// stats are disabled.
type HostCounter interface {
	HostCounts(ctx context.Context) (map[string]int64, error)
}

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
	matcher *hostmatch.Matcher
	counter HostCounter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version, matcher *hostmatch.Matcher, counter HostCounter, m *metrics.Metrics, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		cfg:     cfg,
		version: v,
		matcher: matcher,
		counter: counter,
		metrics: m,
		logger:  logger.With("component", "health"),
	}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return ajax.Reply(c, h.metrics, ajax.WithData(map[string]any{
		"status": "ok",
	}))
}

// Status returns service status information. Host counts are included when
// stats are enabled and readable; a stats outage does not fail the request.
func (h *HealthHandler) Status(c echo.Context) error {
	data := map[string]any{
		"status":      "ok",
		"version":     string(h.version),
		"environment": h.cfg.App.Environment,
		"domains":     h.matcher.Domains(),
	}

	if h.counter != nil {
		counts, err := h.counter.HostCounts(c.Request().Context())
		if err != nil {
			h.logger.Warn("read host counts", "err", err)
			data["stats"] = "unavailable"
		} else {
			data["hosts"] = counts
		}
	}

	return ajax.Reply(c, h.metrics, ajax.WithData(data))
}
