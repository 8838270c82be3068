// Package auth derives the signed-in user from the remote access token.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmcdole/lifetrack/internal/domain"
)

// Session identifies the signed-in user.
type Session struct {
	UserID    string
	Email     string
	ExpiresAt time.Time // zero when the token carries no expiry
}

// Expired reports whether the token expired before now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// FromToken reads the session out of an access token.
//
// The signature is not checked here. The remote store checks it on
// every request.
func FromToken(token string) (*Session, error) {
	if token == "" {
		return nil, domain.ErrNoSession
	}

	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", domain.ErrNoSession)
	}

	s := &Session{UserID: c.Subject, Email: c.Email}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s, nil
}

// UserID returns the session's user id, or "" when there is no usable
// session. An expired token still yields its user.
func UserID(token string) string {
	s, err := FromToken(token)
	if err != nil {
		return ""
	}
	return s.UserID
}

// IsNoSession reports whether err means nobody is signed in.
func IsNoSession(err error) bool {
	return errors.Is(err, domain.ErrNoSession)
}
