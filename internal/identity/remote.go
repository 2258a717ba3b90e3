package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultRequestTimeout = 10 * time.Second

// maxProviderResponseBytes guards against an oversized provider response.
const maxProviderResponseBytes = 1 << 20

// RemoteProvider is an HTTP client for the hosted auth service. Every call
// carries an explicit timeout so a hung provider fails the request instead of
// stalling it indefinitely.
type RemoteProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	timeout time.Duration
}

// RemoteOption configures RemoteProvider.
type RemoteOption func(*RemoteProvider)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) RemoteOption {
	return func(p *RemoteProvider) {
		if client != nil {
			p.client = client
		}
	}
}

// WithRequestTimeout overrides the per-call timeout.
func WithRequestTimeout(timeout time.Duration) RemoteOption {
	return func(p *RemoteProvider) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// NewRemoteProvider constructs a client for the provider at baseURL. The API
// key is sent with every request as the provider expects.
func NewRemoteProvider(baseURL, apiKey string, opts ...RemoteOption) *RemoteProvider {
	p := &RemoteProvider{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  &http.Client{},
		timeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ Provider = (*RemoteProvider)(nil)

type remoteSignInResponse struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID    string   `json:"id"`
		Email string   `json:"email"`
		Roles []string `json:"roles"`
	} `json:"user"`
}

type remoteErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"msg"`
}

// SignInWithPassword calls the provider's password-grant endpoint.
func (p *RemoteProvider) SignInWithPassword(ctx context.Context, email, password string) (Identity, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Identity{}, "", ErrMissingField
	}

	body := map[string]string{"email": email, "password": password}
	status, payload, err := p.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", body, "")
	if err != nil {
		return Identity{}, "", err
	}

	switch status {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return Identity{}, "", ErrInvalidCredentials
	default:
		return Identity{}, "", upstreamError(status, payload)
	}

	var signIn remoteSignInResponse
	if err := json.Unmarshal(payload, &signIn); err != nil {
		return Identity{}, "", fmt.Errorf("%w: decode sign-in response: %v", ErrUnavailable, err)
	}
	if signIn.AccessToken == "" || signIn.User.ID == "" {
		return Identity{}, "", fmt.Errorf("%w: incomplete sign-in response", ErrUnavailable)
	}
	return Identity{
		ID:    signIn.User.ID,
		Email: signIn.User.Email,
		Roles: dedupeRoles(signIn.User.Roles),
	}, signIn.AccessToken, nil
}

// GetUser resolves an access token via the provider's user endpoint.
func (p *RemoteProvider) GetUser(ctx context.Context, accessToken string) (Identity, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return Identity{}, ErrInvalidToken
	}
	status, payload, err := p.do(ctx, http.MethodGet, "/auth/v1/user", nil, accessToken)
	if err != nil {
		return Identity{}, err
	}

	switch status {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return Identity{}, ErrInvalidToken
	default:
		return Identity{}, upstreamError(status, payload)
	}

	var id Identity
	if err := json.Unmarshal(payload, &id); err != nil {
		return Identity{}, fmt.Errorf("%w: decode user response: %v", ErrUnavailable, err)
	}
	if id.ID == "" {
		return Identity{}, fmt.Errorf("%w: incomplete user response", ErrUnavailable)
	}
	id.Roles = dedupeRoles(id.Roles)
	return id, nil
}

// SignOut revokes the provider-side session for the token.
func (p *RemoteProvider) SignOut(ctx context.Context, accessToken string) error {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil
	}
	status, payload, err := p.do(ctx, http.MethodPost, "/auth/v1/logout", nil, accessToken)
	if err != nil {
		return err
	}
	if status >= http.StatusInternalServerError {
		return upstreamError(status, payload)
	}
	return nil
}

// do performs one provider round trip and returns the status code with the
// fully read response body, so the per-call timeout can be released before
// callers decode it.
func (p *RemoteProvider) do(ctx context.Context, method, path string, body any, bearer string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	return resp.StatusCode, payload, nil
}

// upstreamError converts a provider failure to ErrUnavailable, carrying only
// the provider's message field for diagnostics.
func upstreamError(status int, payload []byte) error {
	var remote remoteErrorResponse
	_ = json.Unmarshal(payload, &remote)
	msg := remote.Error
	if msg == "" {
		msg = remote.Message
	}
	if msg == "" {
		return fmt.Errorf("%w: status %d", ErrUnavailable, status)
	}
	return fmt.Errorf("%w: status %d: %s", ErrUnavailable, status, msg)
}
