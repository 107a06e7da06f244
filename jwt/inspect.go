package jwt

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when a token cannot be decoded at all.
var ErrMalformedToken = errors.New("malformed access token")

var inspector = jwt.NewParser()

// Inspect decodes the claims of tokenStr without verifying its signature.
func Inspect(tokenStr string) (*AccessClaims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" || strings.Count(tokenStr, ".") != 2 {
		return nil, ErrMalformedToken
	}

	claims := &AccessClaims{}
	if _, _, err := inspector.ParseUnverified(tokenStr, claims); err != nil {
		return nil, errors.Join(ErrMalformedToken, err)
	}
	return claims, nil
}
