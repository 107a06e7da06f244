package taskdesk

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config is the client configuration. Build one with [DefaultConfig], adjust
// it, optionally overlay the environment with [LoadEnv], then hand it to
// [Builder.WithConfig].
type Config struct {
	BaseURL string `env:"BASE_URL, overwrite"`

	HTTP    HTTPConfig    `env:", prefix=HTTP_"`
	Refresh RefreshConfig `env:", prefix=REFRESH_"`
	Session SessionConfig `env:", prefix=SESSION_"`
	Events  EventsConfig  `env:", prefix=EVENTS_"`
	Metrics MetricsConfig `env:", prefix=METRICS_"`
	Roles   RolesConfig   `env:", prefix=ROLES_"`
}

// HTTPConfig configures the default transport.
type HTTPConfig struct {
	Timeout   time.Duration `env:"TIMEOUT, overwrite"`
	UserAgent string        `env:"USER_AGENT, overwrite"`
}

// RefreshConfig controls the access-token refresh exchange.
type RefreshConfig struct {
	// Path of the refresh endpoint, relative to BaseURL.
	Path string `env:"PATH, overwrite"`
	// ExchangeTimeout bounds a single refresh exchange, including network retries.
	ExchangeTimeout time.Duration `env:"EXCHANGE_TIMEOUT, overwrite"`
	// WaitTimeout bounds how long a request waits on another request's refresh.
	WaitTimeout time.Duration `env:"WAIT_TIMEOUT, overwrite"`
	// NetworkAttempts is the number of tries for the refresh call when the
	// transport fails. HTTP error responses are never retried.
	NetworkAttempts   uint          `env:"NETWORK_ATTEMPTS, overwrite"`
	NetworkRetryDelay time.Duration `env:"NETWORK_RETRY_DELAY, overwrite"`
	// EarlyRefreshWindow refreshes before sending when the stored token
	// expires within the window. Zero disables it.
	EarlyRefreshWindow time.Duration `env:"EARLY_WINDOW, overwrite"`
}

// SessionConfig configures the Redis-backed credential store used by
// [Builder.WithRedis].
type SessionConfig struct {
	RedisPrefix string        `env:"REDIS_PREFIX, overwrite"`
	Name        string        `env:"NAME, overwrite"`
	DefaultTTL  time.Duration `env:"TTL, overwrite"`
}

// EventsConfig configures asynchronous session-event delivery.
type EventsConfig struct {
	Enabled    bool `env:"ENABLED, overwrite"`
	BufferSize int  `env:"BUFFER_SIZE, overwrite"`
	DropIfFull bool `env:"DROP_IF_FULL, overwrite"`
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED, overwrite"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS, overwrite"`
}

// RolesConfig controls the client-side role guard.
type RolesConfig struct {
	Enforce bool `env:"ENFORCE, overwrite"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "taskdesk-go",
		},
		Refresh: RefreshConfig{
			Path:              "/auth/refresh",
			ExchangeTimeout:   10 * time.Second,
			WaitTimeout:       15 * time.Second,
			NetworkAttempts:   2,
			NetworkRetryDelay: 200 * time.Millisecond,
		},
		Session: SessionConfig{
			RedisPrefix: "taskdesk",
			Name:        "default",
			DefaultTTL:  24 * time.Hour,
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Roles: RolesConfig{
			Enforce: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("BaseURL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" {
		return errors.New("BaseURL must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("BaseURL scheme must be http or https")
	}

	// HTTP
	if c.HTTP.Timeout < 0 {
		return errors.New("HTTP Timeout must be >= 0")
	}

	// Refresh
	if !strings.HasPrefix(c.Refresh.Path, "/") {
		return errors.New("Refresh Path must start with /")
	}
	if c.Refresh.ExchangeTimeout < 0 || c.Refresh.WaitTimeout < 0 {
		return errors.New("Refresh timeouts must be >= 0")
	}
	if c.Refresh.NetworkAttempts == 0 {
		return errors.New("Refresh NetworkAttempts must be >= 1")
	}
	if c.Refresh.NetworkRetryDelay < 0 {
		return errors.New("Refresh NetworkRetryDelay must be >= 0")
	}
	if c.Refresh.EarlyRefreshWindow < 0 {
		return errors.New("Refresh EarlyRefreshWindow must be >= 0")
	}
	if c.Refresh.ExchangeTimeout > 0 && c.Refresh.WaitTimeout > 0 &&
		c.Refresh.WaitTimeout < c.Refresh.ExchangeTimeout {
		return errors.New("Refresh WaitTimeout must be >= ExchangeTimeout")
	}

	// Session
	if c.Session.DefaultTTL < 0 {
		return errors.New("Session DefaultTTL must be >= 0")
	}

	// Events
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
