package handler

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ballast-go/internal/config"
	"ballast-go/internal/hostmatch"
	"ballast-go/internal/metrics"
	"ballast-go/internal/middleware"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(
	e *echo.Echo,
	cfg *config.Config,
	m *metrics.Metrics,
	matcher *hostmatch.Matcher,
	health *HealthHandler,
	host *HostHandler,
	logger *slog.Logger,
) {
	e.GET("/healthz", health.Healthz)
	e.GET("/status", health.Status)

	api := e.Group("/api", middleware.RequireDomain(matcher, m, logger))
	api.GET("/host", host.Host)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
}
