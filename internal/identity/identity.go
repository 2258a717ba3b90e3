package identity

import (
	"context"
	"errors"
)

var (
	// ErrMissingField indicates email or password was empty; no remote call is made.
	ErrMissingField = errors.New("identity: email and password are required")
	// ErrInvalidCredentials indicates the provider rejected the email/password pair.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrInvalidToken indicates the access token failed validation.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrUnavailable indicates the provider could not be reached or failed internally.
	ErrUnavailable = errors.New("identity: provider unavailable")
)

// Identity is the external auth provider's view of a user. Created and owned by
// the provider; read-only here.
type Identity struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles,omitempty"`
}

// Provider wraps the managed auth service. Implementations must fail fast on
// empty credentials before any network or database round trip.
type Provider interface {
	// SignInWithPassword verifies the credential pair and returns the identity
	// together with a provider access token.
	SignInWithPassword(ctx context.Context, email, password string) (Identity, string, error)
	// GetUser resolves an access token back to its identity.
	GetUser(ctx context.Context, accessToken string) (Identity, error)
	// SignOut revokes the provider-side session, if the provider keeps one.
	SignOut(ctx context.Context, accessToken string) error
}
