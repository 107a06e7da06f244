package taskdesk

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/courtregistry/taskdesk/jwt"
	"github.com/courtregistry/taskdesk/permission"
	"github.com/courtregistry/taskdesk/refresh"
	"github.com/courtregistry/taskdesk/session"
)

// Client is an authenticated client for the task portal API.
//
// A Client is safe for concurrent use. Requests that fail with 401 share a
// single refresh exchange and are replayed at most once.
type Client struct {
	config    Config
	baseURL   *url.URL
	http      *http.Client
	store     session.Store
	refresher *refresh.Coordinator
	roles     *permission.RoleManager
	events    *eventDispatcher
	metrics   *Metrics
	logger    *slog.Logger
	onEnded   []SessionEndedFunc
	now       func() time.Time

	// sessMu serializes load-modify-save of the stored session.
	sessMu sync.Mutex
	closed atomic.Bool
}

// Close stops event delivery, draining buffered events. Requests issued
// after Close fail with [ErrClientNotReady].
func (c *Client) Close() {
	if c == nil {
		return
	}
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if c.events != nil {
		c.events.Close()
	}
}

// EventsDropped returns how many session events were dropped because the
// event buffer was full.
func (c *Client) EventsDropped() uint64 {
	if c == nil || c.events == nil {
		return 0
	}
	return c.events.Dropped()
}

// MetricsSnapshot returns a copy of the client counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// RefreshExchanges returns how many refresh exchanges this client has started.
func (c *Client) RefreshExchanges() uint64 {
	if c == nil {
		return 0
	}
	return c.refresher.Exchanges()
}

// HTTPClient returns the underlying HTTP client. Its cookie jar holds the
// refresh credential.
func (c *Client) HTTPClient() *http.Client {
	if c == nil {
		return nil
	}
	return c.http
}

// Session returns a copy of the stored session.
func (c *Client) Session(ctx context.Context) (*session.Session, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.store.Load(ctx)
}

// SetAccessToken stores token as the current access credential, keeping any
// cached profile. It is meant for resuming a session obtained elsewhere.
func (c *Client) SetAccessToken(ctx context.Context, token string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if token == "" {
		return ErrInvalidRequest
	}
	_, err := c.saveToken(ctx, token, nil)
	return err
}

func (c *Client) ready() error {
	if c == nil || c.closed.Load() {
		return ErrClientNotReady
	}
	return nil
}

func (c *Client) loadSession(ctx context.Context) (*session.Session, error) {
	sess, err := c.store.Load(ctx)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil
	}
	return sess, err
}

// saveToken records token, and user when non-nil, as the current session.
// Without a user the profile already cached is kept; claims readable from the
// token fill an empty profile.
func (c *Client) saveToken(ctx context.Context, token string, user *User) (*session.Session, error) {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()

	sess, err := c.loadSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess = &session.Session{}
	}

	sess.AccessToken = token
	sess.StoredAt = c.now().Unix()
	sess.ExpiresAt = 0

	claims, inspectErr := jwt.Inspect(token)
	if inspectErr == nil {
		if exp := claims.ExpiresAtTime(); !exp.IsZero() {
			sess.ExpiresAt = exp.Unix()
		}
	}

	switch {
	case user != nil:
		sess.UserID = user.ID
		sess.Role = user.Role
		sess.Name = user.Name
		sess.PJNumber = user.PJNumber
	case !sess.HasProfile() && inspectErr == nil && claims.UID != "":
		sess.UserID = claims.UID
		sess.Role = claims.Role
		sess.Name = claims.Name
		sess.PJNumber = claims.PJNumber
	}

	if err := c.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// clearSession drops local credential state and reports what was held.
func (c *Client) clearSession(ctx context.Context) (*session.Session, error) {
	c.sessMu.Lock()
	defer c.sessMu.Unlock()

	sess, err := c.loadSession(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "session load before clear failed", "err", err)
	}
	if err := c.store.Clear(ctx); err != nil {
		return sess, err
	}
	return sess, nil
}

// endSession clears the credential and fires the session-ended signal. The
// signal fires only when a credential was actually held, so concurrent
// terminal paths report one ending.
func (c *Client) endSession(ctx context.Context, reason, requestID string, cause error) {
	ctx = context.WithoutCancel(ctx)

	held, err := c.clearSession(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "session clear failed", "reason", reason, "err", err)
	}
	if held == nil {
		return
	}

	end := SessionEnd{
		Reason: reason,
		UserID: held.UserID,
		At:     c.now(),
		Err:    cause,
	}

	c.metrics.Inc(MetricSessionEnded)
	c.logger.InfoContext(ctx, "session ended", "reason", reason, "request_id", requestID, "err", cause)
	c.emit(ctx, SessionEvent{
		Type:      EventSessionEnded,
		UserID:    held.UserID,
		Role:      held.Role,
		RequestID: requestID,
		Error:     errString(cause),
		Metadata:  map[string]string{"reason": reason},
	})

	for _, fn := range c.onEnded {
		fn(ctx, end)
	}
}

func (c *Client) emit(ctx context.Context, event SessionEvent) {
	if c.events == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = c.now()
	}
	if event.Error == "" {
		event.Success = true
	}
	c.events.Emit(ctx, event)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
