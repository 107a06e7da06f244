package taskdesk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type messageResponse struct {
	Message string `json:"message"`
}

// RequestOTP starts a login for pjNumber. The backend sends a one-time code
// out of band and returns a human-readable message.
func (c *Client) RequestOTP(ctx context.Context, pjNumber string) (string, error) {
	pjNumber = strings.TrimSpace(pjNumber)
	if pjNumber == "" {
		return "", fmt.Errorf("%w: pjNumber is required", ErrInvalidRequest)
	}

	var out messageResponse
	err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		JSON:   map[string]string{"pjNumber": pjNumber},
	}, &out)
	if err != nil {
		return "", err
	}

	c.emit(ctx, SessionEvent{Type: EventOTPRequested, Metadata: map[string]string{"pj_number": pjNumber}})
	return out.Message, nil
}

// ResendOTP asks the backend to send a fresh code for pjNumber.
func (c *Client) ResendOTP(ctx context.Context, pjNumber string) (string, error) {
	pjNumber = strings.TrimSpace(pjNumber)
	if pjNumber == "" {
		return "", fmt.Errorf("%w: pjNumber is required", ErrInvalidRequest)
	}

	var out messageResponse
	err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/auth/resend-otp",
		JSON:   map[string]string{"pjNumber": pjNumber},
	}, &out)
	if err != nil {
		return "", err
	}

	c.emit(ctx, SessionEvent{Type: EventOTPResent, Metadata: map[string]string{"pj_number": pjNumber}})
	return out.Message, nil
}

// VerifyOTP completes the login and stores the access token and profile.
// The refresh cookie set by the response stays in the client's cookie jar.
func (c *Client) VerifyOTP(ctx context.Context, otp string) (*User, error) {
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return nil, fmt.Errorf("%w: otp is required", ErrInvalidRequest)
	}

	var out authResponse
	err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/auth/verify-otp",
		JSON:   map[string]string{"otp": otp},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.AccessToken == "" || out.User == nil {
		return nil, fmt.Errorf("verify otp: %w", ErrRefreshNoToken)
	}

	user := *out.User
	user.Name = user.displayName()
	if _, err := c.saveToken(ctx, out.AccessToken, &user); err != nil {
		return nil, err
	}

	c.metrics.Inc(MetricSessionStarted)
	c.emit(ctx, SessionEvent{Type: EventSessionStarted, UserID: user.ID, Role: user.Role})
	return &user, nil
}

// RestoreSession bootstraps a session from the refresh cookie alone, as on
// application start. It shares the single-flight refresh with any request
// already recovering from a 401. Failure clears local state and returns an
// error matching ErrSessionExpired.
func (c *Client) RestoreSession(ctx context.Context) (*User, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := c.refresher.Refresh(ctx); err != nil {
		return nil, c.refreshError(ctx, err)
	}

	user, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	c.metrics.Inc(MetricSessionStarted)
	c.emit(ctx, SessionEvent{Type: EventSessionRestored, UserID: user.ID, Role: user.Role})
	return user, nil
}

// Logout ends the session on the backend and clears local state whatever
// the backend answered. The backend error, if any, is returned.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	remoteErr := c.Do(ctx, &Request{Method: http.MethodPost, Path: "/auth/logout"}, nil)
	if errors.Is(remoteErr, ErrSessionExpired) {
		// Already ended locally.
		remoteErr = nil
	}

	held, err := c.clearSession(context.WithoutCancel(ctx))
	if err != nil {
		return errors.Join(remoteErr, err)
	}

	c.metrics.Inc(MetricLogout)
	event := SessionEvent{Type: EventLogout, Error: errString(remoteErr)}
	if held != nil {
		event.UserID, event.Role = held.UserID, held.Role
	}
	c.emit(ctx, event)
	return remoteErr
}

// CurrentUser returns the cached profile, or ErrNotAuthenticated.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	sess, err := c.loadSession(ctx)
	if err != nil {
		return nil, err
	}
	if !sess.HasProfile() {
		return nil, ErrNotAuthenticated
	}
	u := &User{ID: sess.UserID, Role: sess.Role, Name: sess.Name, PJNumber: sess.PJNumber}
	u.Name = u.displayName()
	return u, nil
}
