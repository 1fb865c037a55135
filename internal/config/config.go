// Package config handles TOML configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/ballast/config.toml",
	"configs/config.toml",
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config      string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host        string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port        int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	Environment string `kong:"short='e',help='Application environment (overrides config).',env='APP_ENV'"`
	LogLevel    string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	App     AppConfig     `toml:"app"`
	Domains DomainsConfig `toml:"domains"`
	Reactor ReactorConfig `toml:"reactor"`
	Stats   StatsConfig   `toml:"stats"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8000); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// AppConfig selects the environment and its default host table.
type AppConfig struct {
	Environment string `toml:"environment"`
	HostsFile   string `toml:"hosts_file"` // YAML env -> host table; empty disables host rewriting
}

// DomainsConfig configures the domain matcher guarding /api routes.
type DomainsConfig struct {
	Allowed     []string `toml:"allowed"`
	Pattern     *string  `toml:"pattern"` // nil means the matcher default (`\.dev$`)
	Replacement string   `toml:"replacement"`
}

// ReactorConfig sizes the deferred-work pool.
type ReactorConfig struct {
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

// StatsConfig holds the Redis connection used for per-host counters.
type StatsConfig struct {
	Enabled       bool   `toml:"enabled"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	Prefix        string `toml:"prefix"`
	TTLSeconds    int    `toml:"ttl_seconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/ballast/config.toml then configs/config.toml.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path == "" {
		return nil, fmt.Errorf("config: no config file found (searched %v)", configSearchPaths)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.filePath = path
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.Environment != "" {
		c.App.Environment = cli.Environment
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

// validate checks every section and reports all problems at once.
func (c *Config) validate() error {
	return errors.Join(
		c.Server.validate(),
		c.Reactor.validate(),
		c.Domains.validate(),
		c.Stats.validate(),
		c.Log.validate(),
		c.Metrics.validate(),
	)
}

func (s *ServerConfig) validate() error {
	var errs []error
	if s.Port < 0 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be 0-65535; got %d", s.Port))
	}
	if s.BodyMaxBytes < 0 {
		errs = append(errs, fmt.Errorf("server.body_max_bytes must be non-negative; got %d", s.BodyMaxBytes))
	}
	if s.RateLimit.Enabled && s.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when enabled; got %v", s.RateLimit.RequestsPerSecond))
	}
	return errors.Join(errs...)
}

func (r *ReactorConfig) validate() error {
	var errs []error
	if r.Workers < 0 {
		errs = append(errs, fmt.Errorf("reactor.workers must be non-negative; got %d", r.Workers))
	}
	if r.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("reactor.queue_size must be non-negative; got %d", r.QueueSize))
	}
	return errors.Join(errs...)
}

func (d *DomainsConfig) validate() error {
	var errs []error
	for i, name := range d.Allowed {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("domains.allowed[%d] is empty", i))
		}
	}
	if d.Pattern != nil {
		if _, err := regexp.Compile(*d.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("domains.pattern: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *StatsConfig) validate() error {
	var errs []error
	if s.Enabled && s.RedisAddr == "" {
		errs = append(errs, errors.New("stats.redis_addr is required when stats are enabled"))
	}
	if s.TTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("stats.ttl_seconds must be non-negative; got %d", s.TTLSeconds))
	}
	return errors.Join(errs...)
}

func (l *LogConfig) validate() error {
	var errs []error
	if !oneOf(l.Level, "debug", "info", "warn", "error") {
		errs = append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", l.Level))
	}
	if !oneOf(l.Format, "json", "text") {
		errs = append(errs, fmt.Errorf("log.format must be one of: json, text; got %q", l.Format))
	}
	return errors.Join(errs...)
}

// reservedPaths are route prefixes the metrics endpoint may not shadow.
var reservedPaths = []string{"/api", "/healthz", "/status"}

func (m *MetricsConfig) validate() error {
	if !m.Enabled || m.Path == "" {
		return nil
	}
	if !strings.HasPrefix(m.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/'; got %q", m.Path)
	}
	for _, reserved := range reservedPaths {
		if m.Path == reserved || strings.HasPrefix(m.Path, reserved+"/") {
			return fmt.Errorf("metrics.path %q conflicts with reserved route %q", m.Path, reserved)
		}
	}
	return nil
}

// oneOf reports whether v, case-insensitively, is empty or one of allowed.
func oneOf(v string, allowed ...string) bool {
	if v == "" {
		return true
	}
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// setDefaults fills zero-valued fields. Integer zero means "unset" because
// TOML cannot distinguish an explicit 0 from an omitted key.
func (c *Config) setDefaults() {
	setDefault(&c.Server.Host, "0.0.0.0")
	setDefault(&c.Server.Port, 8000)
	setDefault(&c.Server.BodyMaxBytes, 1<<20)
	setDefault(&c.App.Environment, "development")
	setDefault(&c.Reactor.Workers, 4)
	setDefault(&c.Reactor.QueueSize, 256)
	setDefault(&c.Stats.Prefix, "ballast:stats")
	setDefault(&c.Stats.TTLSeconds, 86400)
	setDefault(&c.Log.Level, "info")
	setDefault(&c.Log.Format, "json")
	setDefault(&c.Metrics.Path, "/metrics")
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others
// while it holds a Redis password.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" || c.Stats.RedisPassword == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
