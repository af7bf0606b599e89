// Package idpclient is a typed HTTP façade over the external identity
// provider. The provider is the system of record for credentials, MFA factors
// and sessions; this package only shapes requests, classifies failures and
// never retries.
//
// Two construction modes exist: an unbound Client carrying only the service
// key (primary sign-in), and a UserClient bound to a user's bearer token
// (all per-user MFA operations). Bearer tokens are opaque here and are never
// parsed locally.
package idpclient

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

// DefaultTimeout bounds every outbound provider call. The provider issues no
// long-polling responses, so a stuck call is an upstream failure.
const DefaultTimeout = 10 * time.Second

// Client is an unbound identity-provider client authenticated with the
// service key only. Safe for concurrent use.
type Client struct {
	BaseURL    string
	ServiceKey string
	HTTPClient *http.Client
}

// New creates an unbound client with the default per-call timeout.
func New(baseURL, serviceKey string) *Client {
	return NewWithTimeout(baseURL, serviceKey, DefaultTimeout)
}

// NewWithTimeout creates an unbound client with an explicit per-call timeout.
func NewWithTimeout(baseURL, serviceKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		ServiceKey: serviceKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Bind returns a client that attaches the given bearer token to every call.
// The unbound client is shared; binding allocates no new connections.
func (c *Client) Bind(accessToken string) *UserClient {
	return &UserClient{client: c, accessToken: accessToken}
}

// SignIn submits primary credentials to the provider and returns the issued
// session token together with the provider-side identity.
func (c *Client) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	body, err := json.Marshal(signInRequest{Email: email, Password: password})
	if err != nil {
		return SignInResult{}, fmt.Errorf("idpclient: marshal sign-in request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/token?grant_type=password", bytes.NewReader(body), "")
	if err != nil {
		return SignInResult{}, err
	}

	var out signInResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return SignInResult{}, err
	}

	return SignInResult{
		AccessToken: out.AccessToken,
		ExternalID:  out.User.ID,
		Email:       out.User.Email,
	}, nil
}

// do performs a provider request. The service key is always attached; a
// bearer token is attached when accessToken is non-empty.
func (c *Client) do(
	ctx context.Context,
	method, path string,
	body io.Reader,
	accessToken string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("idpclient: create request: %w", err)
	}

	req.Header.Set("apikey", c.ServiceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("idpclient: send request: %w", err)
	}
	return resp, nil
}
