package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"ballast-go/internal/config"
	"ballast-go/internal/defaulthost"
	"ballast-go/internal/handler"
	"ballast-go/internal/hostmatch"
	"ballast-go/internal/metrics"
	"ballast-go/internal/middleware"
	"ballast-go/internal/reactor"
	"ballast-go/internal/stats"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("ballast"),
		kong.Description("Host-aware AJAX response service."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			metrics.New,
			newMatcher,
			newHostTable,
			newPool,
			newStatsStore,
			newEcho,
			handler.NewHealthHandler,
			handler.NewHostHandler,
		),
		fx.Invoke(handler.RegisterRoutes, warnConfigPermissions, startServer),
	).Run()
}

// newLogger builds the process logger. The level was validated by
// config.Load, so an unparsable value cannot reach here.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.Log.Level))

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Log.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts)).With("env", cfg.App.Environment)
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts)).With("env", cfg.App.Environment)
}

func newMatcher(cfg *config.Config) (*hostmatch.Matcher, error) {
	var opts []hostmatch.Option
	if cfg.Domains.Pattern != nil {
		opts = append(opts, hostmatch.WithPattern(*cfg.Domains.Pattern))
	}
	if cfg.Domains.Replacement != "" {
		opts = append(opts, hostmatch.WithReplacement(cfg.Domains.Replacement))
	}

	m, err := hostmatch.New(cfg.Domains.Allowed, opts...)
	if err != nil {
		return nil, fmt.Errorf("domain matcher: %w", err)
	}
	return m, nil
}

func newHostTable(cfg *config.Config) (defaulthost.Table, error) {
	if cfg.App.HostsFile == "" {
		return defaulthost.Table{}, nil
	}
	return defaulthost.LoadTable(cfg.App.HostsFile)
}

func newPool(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *reactor.Pool {
	pool := reactor.NewPool(cfg.Reactor.Workers, cfg.Reactor.QueueSize, logger, m)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			pool.Launch()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("draining deferred work")
			return pool.Shutdown(ctx)
		},
	})
	return pool
}

// newStatsStore returns the store used by the stats middleware and, when
// stats are enabled, the reader behind /status host counts.
func newStatsStore(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (stats.Store, handler.HostCounter) {
	if !cfg.Stats.Enabled {
		return stats.NopStore{}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Stats.RedisAddr,
		Password: cfg.Stats.RedisPassword,
		DB:       cfg.Stats.RedisDB,
	})
	store := stats.NewRedisStore(rdb,
		stats.WithPrefix(cfg.Stats.Prefix),
		stats.WithTTL(time.Duration(cfg.Stats.TTLSeconds)*time.Second),
	)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := store.Ping(ctx); err != nil {
				logger.Warn("stats store unreachable; counters will be dropped", "addr", cfg.Stats.RedisAddr, "err", err)
				return nil
			}
			logger.Info("stats enabled", "addr", cfg.Stats.RedisAddr, "prefix", cfg.Stats.Prefix)
			return nil
		},
		OnStop: func(_ context.Context) error {
			return rdb.Close()
		},
	})
	return store, store
}

// newEcho takes store before pool so the pool's stop hook, which drains
// pending stats writes, runs before the Redis client is closed.
func newEcho(
	cfg *config.Config,
	logger *slog.Logger,
	m *metrics.Metrics,
	matcher *hostmatch.Matcher,
	table defaulthost.Table,
	store stats.Store,
	pool *reactor.Pool,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Inbound timeouts to mitigate slow-client attacks.
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 30 * time.Second
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.MetricsMiddleware(m))
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	e.Use(middleware.SecurityHeaders())

	if cfg.Server.RateLimit.Enabled {
		e.Use(middleware.RateLimit(cfg.Server.RateLimit.RequestsPerSecond, m, logger))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	e.Use(middleware.DefaultHost(table, cfg.App.Environment, m, logger))
	e.Use(middleware.RecordStats(store, pool, matcher, m, logger))

	return e
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server", "addr", addr, "version", version)
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
