package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no session row matched the lookup.
	ErrNotFound = errors.New("session: not found")
	// ErrInvalidRefresh indicates the refresh token was unknown, expired,
	// revoked, or failed the secret check.
	ErrInvalidRefresh = errors.New("session: invalid refresh token")
)

// Session is one issued login. Lifecycle: created → active → (refreshed →
// active)* → expired | revoked. Expiry and revocation are terminal; no
// operation resurrects a session.
type Session struct {
	ID            string     `json:"id"`
	IdentityID    string     `json:"identity_id"`
	IdentityEmail string     `json:"identity_email"`
	VendorID      string     `json:"vendor_id"`
	TokenHash     string     `json:"-"`
	RefreshHash   string     `json:"-"`
	IssuedAt      time.Time  `json:"issued_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	RefreshExpiry time.Time  `json:"-"`
	RevokedAt     *time.Time `json:"-"`
}

// Revoked reports whether the session was explicitly invalidated.
func (s *Session) Revoked() bool {
	return s != nil && s.RevokedAt != nil
}

// ActiveAt reports whether the session is valid at the given instant.
func (s *Session) ActiveAt(now time.Time) bool {
	return s != nil && !s.Revoked() && now.Before(s.ExpiresAt)
}

// Store describes session persistence. State lives externally; every call is
// one independent round trip and no in-process locking is required.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, id string) (*Session, error)
	FindByTokenHash(ctx context.Context, hash string) (*Session, error)
	// Revoke marks the session invalid. Revoking an unknown or already
	// revoked session is not an error.
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeByTokenHash(ctx context.Context, hash string, at time.Time) error
}
