// Package auth inspects session tokens issued by the identity provider.
// Tokens are received directly from the provider over TLS, so claims are read
// without signature verification; they are only used to describe the
// session to the caller, never to authorize anything.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMalformedToken = errors.New("malformed token")

// Claims holds the registered claims plus the provider's user_id claim.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id,omitempty"`
}

// TokenInfo describes a provider session token.
type TokenInfo struct {
	UserID    string
	ExpiresAt time.Time
}

// InspectToken parses tokenString without verifying it and returns the
// subject and expiry. The user id falls back to the sub claim.
func InspectToken(tokenString string) (*TokenInfo, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, errors.Join(ErrMalformedToken, err)
	}

	info := &TokenInfo{UserID: claims.UserID}
	if info.UserID == "" {
		info.UserID = claims.Subject
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
