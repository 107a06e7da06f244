package taskdesk

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/courtregistry/taskdesk/permission"
	"github.com/courtregistry/taskdesk/refresh"
	"github.com/courtregistry/taskdesk/session"
)

// Builder assembles a [Client]. A Builder is single-use: Build fails on the
// second call.
type Builder struct {
	config     Config
	httpClient *http.Client
	redis      redis.UniversalClient
	store      session.Store
	eventSink  EventSink
	logger     *slog.Logger
	roles      *permission.RoleManager
	onEnded    []SessionEndedFunc
	now        func() time.Time

	built bool
}

// New returns a Builder holding the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets Config.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithHTTPClient sets the HTTP client. A client without a cookie jar is
// copied and given one, since the refresh credential is a cookie.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

// WithRedis stores the session in Redis, keyed by Config.Session, and
// mirrors the refresh cookie there unless the HTTP client brings its own
// jar. WithStore takes precedence for the session.
func (b *Builder) WithRedis(rdb redis.UniversalClient) *Builder {
	b.redis = rdb
	return b
}

// WithStore sets the session store. The default is an in-memory store.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithEventSink sets the sink for session events and enables delivery.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	b.config.Events.Enabled = sink != nil
	return b
}

// WithLogger sets the structured logger. The default discards.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithRoleManager replaces the portal's default roles used by the role guard.
func (b *Builder) WithRoleManager(rm *permission.RoleManager) *Builder {
	b.roles = rm
	return b
}

// OnSessionEnded registers a handler for the session-ended signal.
func (b *Builder) OnSessionEnded(fn SessionEndedFunc) *Builder {
	if fn != nil {
		b.onEnded = append(b.onEnded, fn)
	}
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the refresh latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns the Client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	// -------- TRANSPORT --------
	var hc *http.Client
	if b.httpClient != nil {
		copied := *b.httpClient
		hc = &copied
	} else {
		hc = &http.Client{Timeout: cfg.HTTP.Timeout}
	}
	switch {
	case hc.Jar != nil:
	case b.redis != nil:
		jar, err := session.NewRedisJar(b.redis, cfg.Session.RedisPrefix, cfg.Session.Name,
			baseURL.JoinPath(cfg.Refresh.Path), cfg.Session.DefaultTTL)
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
	default:
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
	}

	// -------- SESSION STORE --------
	store := b.store
	if store == nil && b.redis != nil {
		store = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.Name, cfg.Session.DefaultTTL)
	}
	if store == nil {
		store = session.NewMemoryStore()
	}

	// -------- ROLE GUARD --------
	roles := b.roles
	if roles == nil {
		roles, err = permission.NewPortalRoleManager()
		if err != nil {
			return nil, err
		}
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	c := &Client{
		config:  cfg,
		baseURL: baseURL,
		http:    hc,
		store:   store,
		roles:   roles,
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		onEnded: append([]SessionEndedFunc(nil), b.onEnded...),
		now:     now,
	}
	c.events = newEventDispatcher(cfg.Events, b.eventSink)
	c.refresher = refresh.NewCoordinator(c.exchange, refresh.Config{
		ExchangeTimeout: cfg.Refresh.ExchangeTimeout,
		WaitTimeout:     cfg.Refresh.WaitTimeout,
	})

	b.built = true

	return c, nil
}
