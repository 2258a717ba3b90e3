package identity

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const defaultAccessTokenTTL = time.Hour

// LocalProvider verifies credentials against the service's own Postgres
// identities table. Used for self-hosted deployments and tests; production
// deployments point at the hosted provider via RemoteProvider instead. The
// choice between the two is made once, at startup.
type LocalProvider struct {
	db       *sql.DB
	codec    *TokenCodec
	tokenTTL time.Duration
}

// LocalOption configures LocalProvider.
type LocalOption func(*LocalProvider)

// WithAccessTokenTTL overrides the lifetime of minted access tokens.
func WithAccessTokenTTL(ttl time.Duration) LocalOption {
	return func(p *LocalProvider) {
		if ttl > 0 {
			p.tokenTTL = ttl
		}
	}
}

// NewLocalProvider constructs a provider over the given database handle.
func NewLocalProvider(db *sql.DB, codec *TokenCodec, opts ...LocalOption) *LocalProvider {
	p := &LocalProvider{
		db:       db,
		codec:    codec,
		tokenTTL: defaultAccessTokenTTL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ Provider = (*LocalProvider)(nil)

// SignInWithPassword checks the credential pair against the identities table.
func (p *LocalProvider) SignInWithPassword(ctx context.Context, email, password string) (Identity, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Identity{}, "", ErrMissingField
	}

	row := p.db.QueryRowContext(ctx,
		`select id, email, password_hash, roles, disabled from identities where email=$1`, email)
	var (
		id       Identity
		hash     string
		roles    string
		disabled bool
	)
	if err := row.Scan(&id.ID, &id.Email, &hash, &roles, &disabled); err != nil {
		if err == sql.ErrNoRows {
			return Identity{}, "", ErrInvalidCredentials
		}
		return Identity{}, "", err
	}
	if disabled {
		return Identity{}, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Identity{}, "", ErrInvalidCredentials
	}
	id.Roles = splitRoles(roles)

	token, err := p.codec.Mint(id, p.tokenTTL)
	if err != nil {
		return Identity{}, "", err
	}
	return id, token, nil
}

// GetUser resolves a previously minted access token.
func (p *LocalProvider) GetUser(ctx context.Context, accessToken string) (Identity, error) {
	return p.codec.Verify(accessToken)
}

// SignOut is a no-op: local access tokens are stateless and expire on their own.
func (p *LocalProvider) SignOut(ctx context.Context, accessToken string) error {
	return nil
}

// HashPassword hashes a plaintext password for storage in the identities table.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrMissingField
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func splitRoles(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return dedupeRoles(strings.Split(raw, ","))
}
