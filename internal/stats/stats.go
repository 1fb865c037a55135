// Package stats records per-host request counters.
package stats

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is one served request as seen by the domain matcher.
type Event struct {
	Host    string
	Matched bool
	Status  int
	At      time.Time
}

// Store persists events. Callers treat errors as best effort.
type Store interface {
	Record(ctx context.Context, ev Event) error
}

// NopStore discards events.
type NopStore struct{}

// Record implements Store.
func (NopStore) Record(context.Context, Event) error { return nil }

// RedisStore keeps counters in Redis:
//
//	<prefix>:total             hash  matched|unmatched -> count
//	<prefix>:hosts             hash  host -> count
//	<prefix>:status            hash  status code -> count
//	<prefix>:minute:<yyyymmddhhmm>  hash  matched|unmatched -> count (expires after ttl)
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithTTL sets the lifetime of per-minute buckets. Zero keeps them forever.
func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = d }
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "ballast:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record implements Store.
func (s *RedisStore) Record(ctx context.Context, ev Event) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "unmatched"
	if ev.Matched {
		field = "matched"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)
	if ev.Host != "" {
		pipe.HIncrBy(ctx, s.prefix+":hosts", ev.Host, 1)
	}
	if ev.Status != 0 {
		pipe.HIncrBy(ctx, s.prefix+":status", strconv.Itoa(ev.Status), 1)
	}

	bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("stats: record: %w", err)
	}
	return nil
}

// HostCounts returns the number of requests seen per host.
func (s *RedisStore) HostCounts(ctx context.Context) (map[string]int64, error) {
	raw, err := s.rdb.HGetAll(ctx, s.prefix+":hosts").Result()
	if err != nil {
		return nil, fmt.Errorf("stats: host counts: %w", err)
	}

	out := make(map[string]int64, len(raw))
	for host, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("stats: host counts: parse %q: %w", host, err)
		}
		out[host] = n
	}
	return out, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
