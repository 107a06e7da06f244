package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the claim set carried by portal access tokens.
type AccessClaims struct {
	UID      string `json:"uid"`
	SID      string `json:"sid,omitempty"`
	Role     string `json:"role,omitempty"`
	Name     string `json:"name,omitempty"`
	PJNumber string `json:"pj,omitempty"`
	jwt.RegisteredClaims
}

// Subject describes who an access token is minted for.
type Subject struct {
	UserID    string
	SessionID string
	Role      string
	Name      string
	PJNumber  string
}

// ExpiresAtTime returns the exp claim, or the zero time when the token has none.
func (c *AccessClaims) ExpiresAtTime() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
