package taskdesk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/courtregistry/taskdesk/refresh"
)

var (
	// ErrSessionExpired is returned when a 401 could not be recovered by a refresh.
	// It is always wrapped together with the underlying cause.
	ErrSessionExpired = errors.New("session expired")
	// ErrRefreshTimeout is returned when the refresh exchange exceeded its budget.
	ErrRefreshTimeout = refresh.ErrExchangeTimeout
	// ErrRefreshWaitTimeout is returned to a request that gave up waiting on
	// another request's refresh.
	ErrRefreshWaitTimeout = refresh.ErrWaitTimeout
	// ErrRefreshNoToken is returned when the refresh endpoint answered 2xx without
	// an access token.
	ErrRefreshNoToken = errors.New("refresh response carried no access token")
	// ErrNotAuthenticated is returned when an operation needs a cached profile
	// and none is held.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrForbidden is returned when the cached role lacks the permission an
	// operation needs. No request is sent.
	ErrForbidden = errors.New("forbidden")
	// ErrClientNotReady is returned by methods on a nil or closed Client.
	ErrClientNotReady = errors.New("client not ready")
	// ErrInvalidRequest is returned for requests rejected before they are sent.
	ErrInvalidRequest = errors.New("invalid request")
)

// RequestError reports a transport failure: no HTTP response was received.
type RequestError struct {
	Method string
	Path   string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// HTTPStatusError reports a non-2xx response. Body holds the raw response body.
type HTTPStatusError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *HTTPStatusError) Error() string {
	msg := e.Message()
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// Message returns the backend's "message" field, if the body carries one.
func (e *HTTPStatusError) Message() string {
	if e == nil || len(e.Body) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return strings.TrimSpace(body.Message)
	}
	return strings.TrimSpace(body.Error)
}

// Unauthorized reports whether the response was a 401.
func (e *HTTPStatusError) Unauthorized() bool {
	return e != nil && e.Status == http.StatusUnauthorized
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status
	}
	return 0
}

func sessionExpired(cause error) error {
	return fmt.Errorf("%w: %w", ErrSessionExpired, cause)
}
