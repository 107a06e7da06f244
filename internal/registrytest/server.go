package registrytest

import (
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/courtregistry/taskdesk/jwt"
)

const (
	// RefreshCookie is the HTTP-only cookie holding the refresh credential.
	RefreshCookie = "refresh_token"
	// OTPCookie ties a verify-otp call to the login that requested the code.
	OTPCookie = "otp_session"
	// DefaultOTP is the code every login accepts unless Server.SetOTP changes it.
	DefaultOTP = "123456"
)

// Seeded account ids.
const (
	SuperAdminID = "u-superadmin"
	AdminID      = "u-admin"
	ClerkID      = "u-clerk"
)

// Recorded is one request as seen by the fake.
type Recorded struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
	ContentType   string
}

// Server is the fake backend. The zero value is not usable; call [New] or [Start].
type Server struct {
	*httptest.Server

	tokens *jwt.Manager

	mu            sync.Mutex
	otp           string
	accounts      map[string]*Account
	tasks         map[string]*Task
	taskOrder     []string
	categories    map[string]*Category
	accessTokens  map[string]string
	refreshTokens map[string]string
	otpSessions   map[string]string
	nextTokens    []string
	forced        map[string]int
	hangups       map[string]int
	refreshStatus int
	refreshGate   chan struct{}
	calls         map[string]int
	requests      []Recorded
}

// New starts a seeded fake and closes it when t finishes.
func New(t testing.TB) *Server {
	t.Helper()
	s, err := Start()
	if err != nil {
		t.Fatalf("start fake backend: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// Start starts a seeded fake. The caller must Close it.
func Start() (*Server, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	tokens, err := jwt.NewManager(jwt.Config{
		Key:       key,
		AccessTTL: 15 * time.Minute,
		Issuer:    "registrytest",
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		tokens:        tokens,
		otp:           DefaultOTP,
		accounts:      map[string]*Account{},
		tasks:         map[string]*Task{},
		categories:    map[string]*Category{},
		accessTokens:  map[string]string{},
		refreshTokens: map[string]string{},
		otpSessions:   map[string]string{},
		forced:        map[string]int{},
		hangups:       map[string]int{},
		calls:         map[string]int{},
	}
	s.seed()
	s.Server = httptest.NewServer(s.router())
	return s, nil
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.record)

	r.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	r.HandleFunc("/auth/resend-otp", s.handleResendOTP).Methods("POST")
	r.HandleFunc("/auth/verify-otp", s.handleVerifyOTP).Methods("POST")
	r.HandleFunc("/auth/refresh", s.handleRefresh).Methods("POST")
	r.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")

	r.HandleFunc("/tasks/get", s.authed(s.handleMyTasks)).Methods("GET")
	r.HandleFunc("/tasks/{id}", s.authed(s.handleTask)).Methods("GET")
	r.HandleFunc("/tasks/{id}", s.authed(s.handleUpdateTask)).Methods("PATCH")
	r.HandleFunc("/tasks/{id}/time-logs", s.authed(s.handleTimeLog)).Methods("POST")

	r.HandleFunc("/superadmin/tasks", s.role(SuperAdminRole, s.handleAllTasks)).Methods("GET")
	r.HandleFunc("/superadmin/tasks/create", s.role(SuperAdminRole, s.handleCreateTask)).Methods("POST")
	r.HandleFunc("/superadmin/tasks/review/{id}", s.role(SuperAdminRole, s.handleReviewTask)).Methods("PATCH")
	r.HandleFunc("/superadmin/tasks/{id}", s.role(SuperAdminRole, s.handleEditTask)).Methods("PUT")
	r.HandleFunc("/superadmin/tasks/{id}", s.role(SuperAdminRole, s.handleDeleteTask)).Methods("DELETE")

	r.HandleFunc("/users", s.role(AdminRole, s.handleUsers)).Methods("GET")
	r.HandleFunc("/users", s.role(SuperAdminRole, s.handleCreateUser)).Methods("POST")
	r.HandleFunc("/users/{id}", s.role(AdminRole, s.handleUser)).Methods("GET")
	r.HandleFunc("/users/{id}", s.role(SuperAdminRole, s.handleUpdateUser)).Methods("PUT")
	r.HandleFunc("/users/{id}/toggle-status", s.role(SuperAdminRole, s.handleToggleUser)).Methods("PATCH")

	r.HandleFunc("/categories/tree", s.authed(s.handleCategoryTree)).Methods("GET")
	r.HandleFunc("/categories/get", s.authed(s.handleCategories)).Methods("GET")
	r.HandleFunc("/categories/category", s.role(SuperAdminRole, s.handleCreateCategory)).Methods("POST")
	r.HandleFunc("/categories/delete/{id}", s.role(SuperAdminRole, s.handleDeleteCategory)).Methods("DELETE")

	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.requests = append(s.requests, Recorded{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
			ContentType:   r.Header.Get("Content-Type"),
		})
		hangup := s.hangups[r.URL.Path] > 0
		if hangup {
			s.hangups[r.URL.Path]--
		}
		s.mu.Unlock()

		if hangup {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
					return
				}
			}
			panic(http.ErrAbortHandler)
		}
		next.ServeHTTP(w, r)
	})
}

/*
====================================
SCRIPTING HOOKS
====================================
*/

// SetOTP changes the code accepted by verify-otp.
func (s *Server) SetOTP(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otp = code
}

// IssueAccess mints and activates an access token for the account.
func (s *Server) IssueAccess(userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueAccessLocked(userID)
}

// AcceptToken activates an arbitrary token string for the account.
func (s *Server) AcceptToken(token, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTokens[token] = userID
}

// QueueTokens makes the next issued access tokens take these literal values.
func (s *Server) QueueTokens(tokens ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTokens = append(s.nextTokens, tokens...)
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTokens = map[string]string{}
}

// ForceUnauthorized makes the next n requests to path answer 401 whatever
// credential they carry.
func (s *Server) ForceUnauthorized(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced[path] += n
}

// DropConnections makes the next n requests to path lose their connection
// before any response is written.
func (s *Server) DropConnections(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hangups[path] += n
}

// SetRefreshStatus makes every refresh answer status. Zero restores normal
// behavior.
func (s *Server) SetRefreshStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshStatus = status
}

// HoldRefresh blocks refresh requests until the returned release is called.
func (s *Server) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.refreshGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.refreshGate == gate {
				s.refreshGate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// GrantRefreshCookie issues a refresh credential for the account and stores
// it in jar, as a completed OTP login would.
func (s *Server) GrantRefreshCookie(jar http.CookieJar, userID string) error {
	u, err := url.Parse(s.URL)
	if err != nil {
		return err
	}
	value := uuid.NewString()
	s.mu.Lock()
	s.refreshTokens[value] = userID
	s.mu.Unlock()
	jar.SetCookies(u, []*http.Cookie{{Name: RefreshCookie, Value: value, Path: "/", HttpOnly: true}})
	return nil
}

// Calls returns how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// Requests returns the recorded requests to path, oldest first.
func (s *Server) Requests(path string) []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Recorded
	for _, r := range s.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// TaskByID returns a copy of a stored task.
func (s *Server) TaskByID(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return t.clone(), true
}

/*
====================================
INTERNALS
====================================
*/

func (s *Server) issueAccessLocked(userID string) (string, error) {
	var token string
	if len(s.nextTokens) > 0 {
		token, s.nextTokens = s.nextTokens[0], s.nextTokens[1:]
	} else {
		acct := s.accounts[userID]
		sub := jwt.Subject{UserID: userID, SessionID: uuid.NewString()}
		if acct != nil {
			sub.Role, sub.Name, sub.PJNumber = acct.Role, acct.Name, acct.PJNumber
		}
		var err error
		token, err = s.tokens.CreateAccess(sub)
		if err != nil {
			return "", err
		}
	}
	s.accessTokens[token] = userID
	return token, nil
}

// authenticate resolves the bearer token. Forced 401s win over valid tokens.
func (s *Server) authenticate(r *http.Request) (*Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := s.forced[r.URL.Path]; n > 0 {
		s.forced[r.URL.Path] = n - 1
		return nil, false
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return nil, false
	}
	userID, ok := s.accessTokens[token]
	if !ok {
		return nil, false
	}
	acct := s.accounts[userID]
	if acct == nil || !acct.IsActive {
		return nil, false
	}
	copied := *acct
	return &copied, true
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, who *Account)

func (s *Server) authed(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, ok := s.authenticate(r)
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Not authorized, token failed")
			return
		}
		h(w, r, who)
	}
}

// role admits accounts holding min or a higher role.
func (s *Server) role(min string, h handlerFunc) http.HandlerFunc {
	return s.authed(func(w http.ResponseWriter, r *http.Request, who *Account) {
		if roleRank(who.Role) < roleRank(min) {
			writeMessage(w, http.StatusForbidden, "Access denied")
			return
		}
		h(w, r, who)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
