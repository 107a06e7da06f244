package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinKeyLength is the shortest HMAC key a [Manager] accepts.
const MinKeyLength = 32

// Config configures a [Manager].
type Config struct {
	Key       []byte
	AccessTTL time.Duration
	Issuer    string
	Leeway    time.Duration
}

// Manager mints and verifies HS256 access tokens the way the registry
// backend does. Safe for concurrent use.
type Manager struct {
	config Config
	parser *jwt.Parser
	now    func() time.Time
}

// NewManager validates cfg and returns a [Manager].
func NewManager(cfg Config) (*Manager, error) {
	switch {
	case len(cfg.Key) < MinKeyLength:
		return nil, fmt.Errorf("signing key must be at least %d bytes", MinKeyLength)
	case cfg.AccessTTL <= 0:
		return nil, errors.New("access ttl must be positive")
	case cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute:
		return nil, errors.New("leeway must be between 0 and 2m")
	}

	m := &Manager{config: cfg, now: time.Now}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	m.parser = jwt.NewParser(options...)
	return m, nil
}

// AccessTTL returns the lifetime of tokens minted by CreateAccess.
func (m *Manager) AccessTTL() time.Duration {
	return m.config.AccessTTL
}

// CreateAccess mints an access token for sub with the configured TTL.
func (m *Manager) CreateAccess(sub Subject) (string, error) {
	return m.CreateAccessWithTTL(sub, m.config.AccessTTL)
}

// CreateAccessWithTTL mints an access token for sub that lives for ttl.
// A non-positive ttl yields an already expired token.
func (m *Manager) CreateAccessWithTTL(sub Subject, ttl time.Duration) (string, error) {
	if sub.UserID == "" {
		return "", errors.New("subject user id required")
	}
	now := m.now()
	claims := AccessClaims{
		UID:      sub.UserID,
		SID:      sub.SessionID,
		Role:     sub.Role,
		Name:     sub.Name,
		PJNumber: sub.PJNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Key)
}

// ParseAccess verifies tokenStr and returns its claims.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := m.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return m.config.Key, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
