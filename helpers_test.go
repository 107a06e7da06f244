package taskdesk

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/courtregistry/taskdesk/internal/registrytest"
)

func testConfig(baseURL string) Config {
	cfg := defaultConfig()
	cfg.BaseURL = baseURL
	cfg.HTTP.Timeout = 5 * time.Second
	cfg.Refresh.NetworkRetryDelay = time.Millisecond
	return cfg
}

func newTestClient(t *testing.T, srv *registrytest.Server, configure ...func(*Builder)) *Client {
	t.Helper()

	b := New().WithConfig(testConfig(srv.URL))
	for _, fn := range configure {
		fn(b)
	}
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

// signIn gives c a valid access token and refresh cookie for userID, as a
// completed OTP login would.
func signIn(t *testing.T, c *Client, srv *registrytest.Server, userID string) string {
	t.Helper()

	if err := srv.GrantRefreshCookie(c.HTTPClient().Jar, userID); err != nil {
		t.Fatalf("GrantRefreshCookie: %v", err)
	}
	token, err := srv.IssueAccess(userID)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if err := c.SetAccessToken(context.Background(), token); err != nil {
		t.Fatalf("SetAccessToken: %v", err)
	}
	return token
}

type endRecorder struct {
	mu   sync.Mutex
	ends []SessionEnd
}

func (r *endRecorder) handle(_ context.Context, end SessionEnd) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ends = append(r.ends, end)
}

func (r *endRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ends)
}

func (r *endRecorder) last() SessionEnd {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ends) == 0 {
		return SessionEnd{}
	}
	return r.ends[len(r.ends)-1]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}
