package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"ballast-go/internal/hostmatch"
	"ballast-go/internal/metrics"
	"ballast-go/internal/reactor"
	"ballast-go/internal/stats"
)

// statsTimeout bounds a single stats write.
const statsTimeout = 2 * time.Second

// RecordStats returns an Echo middleware that records one stats.Event per
// request. Writes are dispatched through sched, so they leave the request
// path whenever the scheduler is running; failures are logged and counted.
func RecordStats(store stats.Store, sched reactor.Scheduler, m *hostmatch.Matcher, mt *metrics.Metrics, logger *slog.Logger) echo.MiddlewareFunc {
	logger = logger.With("component", "stats")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			host := hostmatch.FromHTTP(c.Request()).Host()
			ev := stats.Event{
				Host:    host,
				Matched: m.MatchesHost(host),
				Status:  responseStatus(c, err),
				At:      time.Now(),
			}

			reactor.InThread(sched, false, func() {
				ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
				defer cancel()
				if err := store.Record(ctx, ev); err != nil {
					if mt != nil {
						mt.StatsErrors.Inc()
					}
					logger.Warn("record stats", "err", err, "host", ev.Host)
				}
			})

			return err
		}
	}
}
