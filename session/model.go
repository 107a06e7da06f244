package session

import "time"

// Session is the credential state the client attaches to outgoing requests.
type Session struct {
	AccessToken string

	UserID   string
	Role     string
	Name     string
	PJNumber string

	StoredAt  int64
	ExpiresAt int64
}

// Clone returns a copy of s. Returns nil when s is nil.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

// HasProfile reports whether a user profile is cached alongside the token.
func (s *Session) HasProfile() bool {
	return s != nil && s.UserID != ""
}

// ExpiresWithin reports whether the access token's known expiry falls
// before now+window. Sessions without a known expiry never do.
func (s *Session) ExpiresWithin(now time.Time, window time.Duration) bool {
	if s == nil || s.ExpiresAt == 0 {
		return false
	}
	return now.Add(window).Unix() >= s.ExpiresAt
}
