package taskdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/courtregistry/taskdesk/refresh"
)

const maxResponseBytes = 8 << 20

// Request describes one logical API call.
type Request struct {
	Method string
	// Path is relative to Config.BaseURL and must start with "/". Dynamic
	// segments must already be escaped.
	Path  string
	Query url.Values
	// JSON is encoded as the body when non-nil.
	JSON any
	// Multipart is sent as multipart/form-data and takes precedence over JSON.
	// Any Content-Type in Header is ignored so the writer's boundary is used.
	Multipart *Form
	Header    http.Header
}

// Form is a multipart/form-data body.
type Form struct {
	Values url.Values
	Files  []FormFile
}

type FormFile struct {
	Field string
	File  File
}

// Add appends a field value.
func (f *Form) Add(key, value string) {
	if f.Values == nil {
		f.Values = url.Values{}
	}
	f.Values.Add(key, value)
}

// AddFile appends a file part.
func (f *Form) AddFile(field string, file File) {
	f.Files = append(f.Files, FormFile{Field: field, File: file})
}

// call is a logical request across its original attempt and its replay.
type call struct {
	req         *Request
	body        []byte
	contentType string
	requestID   string
	retried     bool
}

type response struct {
	status int
	body   []byte
}

func (c *call) statusError(r *response) *HTTPStatusError {
	return &HTTPStatusError{
		Method: c.req.Method,
		Path:   c.req.Path,
		Status: r.status,
		Body:   r.body,
	}
}

// Do sends req and decodes a 2xx JSON response into out (when non-nil).
//
// A 401 triggers one refresh exchange shared with every other request that
// hits 401 meanwhile; the request is then replayed once with the new token and
// the same X-Request-ID. A 401 on the refresh path or on the replay ends the
// session and returns an error matching [ErrSessionExpired]. Every other
// failure is returned as-is: [*RequestError] for transport failures and
// [*HTTPStatusError] for non-2xx responses.
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	if err := c.ready(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	call, err := newCall(ctx, req)
	if err != nil {
		return err
	}

	c.metrics.Inc(MetricRequest)
	body, err := c.execute(ctx, call)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", call.req.Method, call.req.Path, err)
	}
	return nil
}

func newCall(ctx context.Context, req *Request) (*call, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	r := *req
	if r.Method == "" {
		r.Method = http.MethodGet
	}
	r.Method = strings.ToUpper(r.Method)
	if !strings.HasPrefix(r.Path, "/") {
		return nil, fmt.Errorf("%w: path %q must start with /", ErrInvalidRequest, r.Path)
	}

	cl := &call{req: &r, requestID: requestIDFromContext(ctx)}
	if cl.requestID == "" {
		cl.requestID = uuid.NewString()
	}

	switch {
	case r.Multipart != nil:
		body, contentType, err := encodeMultipart(r.Multipart)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		cl.body, cl.contentType = body, contentType
	case r.JSON != nil:
		body, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		cl.body, cl.contentType = body, "application/json"
	}
	return cl, nil
}

func encodeMultipart(f *Form) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(f.Values))
	for k := range f.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range f.Values[k] {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", err
			}
		}
	}

	for _, ff := range f.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(ff.Field), quoteEscaper.Replace(ff.File.Name)))
		contentType := ff.File.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(ff.File.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (c *Client) execute(ctx context.Context, call *call) ([]byte, error) {
	refreshPath := c.isRefreshPath(call.req.Path)
	if !refreshPath {
		if err := c.refreshEarly(ctx, call); err != nil {
			return nil, err
		}
	}

	for {
		token, err := c.currentToken(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := c.send(ctx, call, token)
		if err != nil {
			return nil, err
		}
		if resp.status >= 200 && resp.status < 300 {
			return resp.body, nil
		}
		if resp.status != http.StatusUnauthorized {
			c.metrics.Inc(MetricHTTPError)
			return nil, call.statusError(resp)
		}

		c.metrics.Inc(MetricUnauthorized)
		statusErr := call.statusError(resp)
		c.logger.DebugContext(ctx, "unauthorized response",
			"method", call.req.Method,
			"path", call.req.Path,
			"status", resp.status,
			"request_id", call.requestID,
			"retried", call.retried,
		)

		if refreshPath {
			c.endSession(ctx, EndRefreshUnauthorized, call.requestID, statusErr)
			return nil, sessionExpired(statusErr)
		}
		if call.retried {
			c.metrics.Inc(MetricRetryExhausted)
			c.endSession(ctx, EndRetryUnauthorized, call.requestID, statusErr)
			return nil, sessionExpired(statusErr)
		}
		call.retried = true

		if err := c.awaitFreshToken(ctx, token); err != nil {
			return nil, err
		}
		c.metrics.Inc(MetricReplay)
	}
}

// awaitFreshToken makes sure the token rejected with 401 has been replaced,
// starting or joining a refresh exchange unless another request already
// stored a newer token.
func (c *Client) awaitFreshToken(ctx context.Context, rejected string) error {
	current, err := c.currentToken(ctx)
	if err == nil && current != "" && current != rejected {
		return nil
	}
	_, err = c.refresher.Refresh(ctx)
	return c.refreshError(ctx, err)
}

func (c *Client) refreshEarly(ctx context.Context, call *call) error {
	window := c.config.Refresh.EarlyRefreshWindow
	if window <= 0 {
		return nil
	}
	sess, err := c.loadSession(ctx)
	if err != nil || !sess.ExpiresWithin(c.now(), window) {
		return nil
	}

	c.metrics.Inc(MetricEarlyRefresh)
	c.logger.DebugContext(ctx, "access token expiring, refreshing early",
		"path", call.req.Path,
		"request_id", call.requestID,
	)
	_, err = c.refresher.Refresh(ctx)
	return c.refreshError(ctx, err)
}

// refreshError maps a coordinator result to what the waiting request returns.
// Giving up on a wait does not end the session; a failed exchange does.
func (c *Client) refreshError(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, refresh.ErrWaitTimeout):
		c.metrics.Inc(MetricRefreshWaitTimeout)
		return err
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return err
	}
	return sessionExpired(err)
}

func (c *Client) currentToken(ctx context.Context) (string, error) {
	sess, err := c.loadSession(ctx)
	if err != nil || sess == nil {
		return "", err
	}
	return sess.AccessToken, nil
}

func (c *Client) isRefreshPath(path string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return strings.TrimRight(path, "/") == strings.TrimRight(c.config.Refresh.Path, "/")
}

func (c *Client) resolve(call *call) (string, error) {
	path := call.req.Path
	rawQuery := ""
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path, rawQuery = path[:i], path[i+1:]
	}

	u := *c.baseURL
	escaped := strings.TrimRight(c.baseURL.EscapedPath(), "/") + path
	unescaped, err := url.PathUnescape(escaped)
	if err != nil {
		return "", err
	}
	u.Path = unescaped
	u.RawPath = escaped

	q := call.req.Query
	switch {
	case len(q) > 0 && rawQuery != "":
		u.RawQuery = rawQuery + "&" + q.Encode()
	case len(q) > 0:
		u.RawQuery = q.Encode()
	default:
		u.RawQuery = rawQuery
	}
	return u.String(), nil
}

func (c *Client) newHTTPRequest(ctx context.Context, call *call, token string) (*http.Request, error) {
	target, err := c.resolve(call)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if call.body != nil {
		body = bytes.NewReader(call.body)
	}
	hr, err := http.NewRequestWithContext(ctx, call.req.Method, target, body)
	if err != nil {
		return nil, err
	}

	for k, vs := range call.req.Header {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}
	if call.req.Multipart != nil {
		hr.Header.Del("Content-Type")
	}
	if call.contentType != "" {
		hr.Header.Set("Content-Type", call.contentType)
	}
	hr.Header.Set("Accept", "application/json")
	hr.Header.Set("X-Request-ID", call.requestID)
	if ua := c.config.HTTP.UserAgent; ua != "" {
		hr.Header.Set("User-Agent", ua)
	}
	if token != "" {
		hr.Header.Set("Authorization", "Bearer "+token)
	} else {
		hr.Header.Del("Authorization")
	}
	return hr, nil
}

func (c *Client) send(ctx context.Context, call *call, token string) (*response, error) {
	hr, err := c.newHTTPRequest(ctx, call, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	resp, err := c.http.Do(hr)
	if err != nil {
		c.metrics.Inc(MetricRequestFailure)
		c.logger.WarnContext(ctx, "request failed",
			"method", call.req.Method,
			"path", call.req.Path,
			"request_id", call.requestID,
			"err", err,
		)
		return nil, &RequestError{Method: call.req.Method, Path: call.req.Path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.Inc(MetricRequestFailure)
		return nil, &RequestError{Method: call.req.Method, Path: call.req.Path, Err: err}
	}

	c.logger.DebugContext(ctx, "response",
		"method", call.req.Method,
		"path", call.req.Path,
		"status", resp.StatusCode,
		"request_id", call.requestID,
	)
	return &response{status: resp.StatusCode, body: body}, nil
}

// authResponse is the body of the verify-otp and refresh endpoints.
type authResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
	User        *User  `json:"user"`
}

// exchange is the refresh exchange run by the coordinator. It posts to the
// refresh path with no Authorization header; the refresh cookie travels in
// the cookie jar. Any failure ends the session before queued requests are
// released.
func (c *Client) exchange(ctx context.Context) (string, error) {
	start := time.Now()
	c.metrics.Inc(MetricRefreshStarted)

	call := &call{
		req:       &Request{Method: http.MethodPost, Path: c.config.Refresh.Path},
		requestID: uuid.NewString(),
	}

	var resp *response
	err := retry.Do(func() error {
		r, err := c.send(ctx, call, "")
		if err != nil {
			return err
		}
		if r.status < 200 || r.status >= 300 {
			return call.statusError(r)
		}
		resp = r
		return nil
	},
		retry.Attempts(c.config.Refresh.NetworkAttempts),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(c.config.Refresh.NetworkRetryDelay),
		retry.RetryIf(func(err error) bool {
			var reqErr *RequestError
			return errors.As(err, &reqErr)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.InfoContext(ctx, "retrying refresh",
				"attempt", n+1,
				"request_id", call.requestID,
				"err", err,
			)
		}),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)

	var out authResponse
	if err == nil {
		if decodeErr := json.Unmarshal(resp.body, &out); decodeErr != nil {
			err = fmt.Errorf("decode refresh response: %w", decodeErr)
		} else if out.AccessToken == "" {
			err = ErrRefreshNoToken
		}
	}

	if err != nil {
		c.metrics.Inc(MetricRefreshFailure)
		c.logger.WarnContext(ctx, "refresh failed", "request_id", call.requestID, "err", err)
		reason := EndRefreshFailed
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.Unauthorized() {
			reason = EndRefreshUnauthorized
		}
		c.endSession(ctx, reason, call.requestID, err)
		return "", err
	}

	if out.User != nil {
		out.User.Name = out.User.displayName()
	}
	sess, err := c.saveToken(ctx, out.AccessToken, out.User)
	if err != nil {
		c.metrics.Inc(MetricRefreshFailure)
		return "", err
	}

	c.metrics.Inc(MetricRefreshSuccess)
	c.metrics.Observe(MetricRefreshLatency, time.Since(start))
	c.logger.DebugContext(ctx, "access token refreshed", "request_id", call.requestID)
	c.emit(ctx, SessionEvent{
		Type:      EventSessionRefreshed,
		UserID:    sess.UserID,
		Role:      sess.Role,
		RequestID: call.requestID,
	})
	return out.AccessToken, nil
}
