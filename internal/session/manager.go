package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"vendordesk.org/internal/identity"
	"vendordesk.org/internal/ids"
)

const (
	defaultSessionTTL = 24 * time.Hour
	defaultRefreshTTL = 14 * 24 * time.Hour
)

// Manager issues, validates, refreshes and invalidates sessions. It does not
// re-check vendor approval: approval is checked once, upstream, at login time.
type Manager struct {
	store      Store
	now        func() time.Time
	sessionTTL time.Duration
	refreshTTL time.Duration
}

// Option configures Manager behavior.
type Option func(*Manager)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithSessionTTL configures session token lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.sessionTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.refreshTTL = ttl
		}
	}
}

// NewManager constructs a Manager over the given store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		now:        time.Now,
		sessionTTL: defaultSessionTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Credentials are returned to the client on login and refresh. Both tokens are
// opaque; only their hashes are persisted.
type Credentials struct {
	SessionToken string
	RefreshToken string
	ExpiresAt    time.Time
	Session      *Session
}

// Validation is the outcome of a session check. An expired or unknown token
// yields Valid=false, not an error.
type Validation struct {
	Valid   bool
	Session *Session
}

// Create issues a session for an authenticated (identity, vendor) pair.
// Multiple concurrent sessions per vendor are permitted.
func (m *Manager) Create(ctx context.Context, id identity.Identity, vendorID string) (Credentials, error) {
	now := m.now().UTC()
	return m.issue(ctx, id.ID, id.Email, vendorID, now, now.Add(m.sessionTTL))
}

// Validate checks token existence and expiry.
func (m *Manager) Validate(ctx context.Context, token string) (Validation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Validation{}, nil
	}
	sess, err := m.store.FindByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Validation{}, nil
		}
		return Validation{}, err
	}
	if !sess.ActiveAt(m.now().UTC()) {
		return Validation{}, nil
	}
	return Validation{Valid: true, Session: sess}, nil
}

// Refresh rotates the refresh token: the presented session is revoked and a
// replacement is issued whose expiry is strictly later than its predecessor's.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (Credentials, error) {
	sessionID, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return Credentials{}, ErrInvalidRefresh
	}
	prev, err := m.store.Find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Credentials{}, ErrInvalidRefresh
		}
		return Credentials{}, err
	}
	now := m.now().UTC()
	if prev.Revoked() || now.After(prev.RefreshExpiry) {
		return Credentials{}, ErrInvalidRefresh
	}
	if !secureCompareHash(prev.RefreshHash, secret) {
		// A wrong secret for a live session id smells like token theft;
		// burn the session.
		_ = m.store.Revoke(ctx, prev.ID, now)
		return Credentials{}, ErrInvalidRefresh
	}

	if err := m.store.Revoke(ctx, prev.ID, now); err != nil {
		return Credentials{}, err
	}

	expiresAt := now.Add(m.sessionTTL)
	if !expiresAt.After(prev.ExpiresAt) {
		expiresAt = prev.ExpiresAt.Add(m.sessionTTL)
	}
	return m.issue(ctx, prev.IdentityID, prev.IdentityEmail, prev.VendorID, now, expiresAt)
}

// Invalidate revokes the session for the token. Idempotent: unknown or already
// revoked tokens are not an error.
func (m *Manager) Invalidate(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return m.store.RevokeByTokenHash(ctx, hashToken(token), m.now().UTC())
}

func (m *Manager) issue(ctx context.Context, identityID, email, vendorID string, now, expiresAt time.Time) (Credentials, error) {
	sessionToken, err := newSecret()
	if err != nil {
		return Credentials{}, err
	}
	refreshSecret, err := newSecret()
	if err != nil {
		return Credentials{}, err
	}
	sess := &Session{
		ID:            ids.New(),
		IdentityID:    identityID,
		IdentityEmail: email,
		VendorID:      vendorID,
		TokenHash:     hashToken(sessionToken),
		RefreshHash:   hashToken(refreshSecret),
		IssuedAt:      now,
		ExpiresAt:     expiresAt,
		RefreshExpiry: now.Add(m.refreshTTL),
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return Credentials{}, err
	}
	return Credentials{
		SessionToken: sessionToken,
		RefreshToken: sess.ID + "." + refreshSecret,
		ExpiresAt:    expiresAt,
		Session:      sess,
	}, nil
}

func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func splitRefreshToken(raw string) (id, secret string, err error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return parts[0], parts[1], nil
}

func secureCompareHash(expectedHash, secret string) bool {
	actual := hashToken(secret)
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}
