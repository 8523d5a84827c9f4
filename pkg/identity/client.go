// Package identity signs customers in with email and password through the
// Identity Toolkit REST API, which the Admin SDK does not expose.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/petshop-storefront/pkg/errors"
)

const (
	defaultBaseURL              = "https://identitytoolkit.googleapis.com/v1"
	signInPath                  = "accounts:signInWithPassword"
	requestBodyReadLimit  int64 = 4096
	invalidCredentialsMessage   = "invalid credentials"
)

var errAPIKeyRequired = errors.New("identity toolkit web api key is required")

// Client wraps the password sign-in endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the Identity Toolkit base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient builds the sign-in client for a project's web API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// SignInResult is the account returned by a successful sign-in.
type SignInResult struct {
	UID          string
	Email        string
	DisplayName  string
	IDToken      string
	RefreshToken string
}

// SignInWithPassword verifies an email/password pair. Rejected credentials
// map to CodeUnauthorized; transport and server failures to CodeDependency.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (SignInResult, error) {
	if c == nil {
		return SignInResult{}, pkgerrors.New(pkgerrors.CodeDependency, "identity client not configured")
	}
	if strings.TrimSpace(email) == "" || password == "" {
		return SignInResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	body, err := json.Marshal(map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return SignInResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode sign-in request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(signInPath), bytes.NewReader(body))
	if err != nil {
		return SignInResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build sign-in request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return SignInResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute sign-in request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return SignInResult{}, classify(resp.StatusCode, raw)
	}

	var apiResp struct {
		LocalID      string `json:"localId"`
		Email        string `json:"email"`
		DisplayName  string `json:"displayName"`
		IDToken      string `json:"idToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return SignInResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode sign-in response")
	}
	if apiResp.LocalID == "" {
		return SignInResult{}, pkgerrors.New(pkgerrors.CodeDependency, "sign-in response carried no account id")
	}

	return SignInResult{
		UID:          apiResp.LocalID,
		Email:        apiResp.Email,
		DisplayName:  apiResp.DisplayName,
		IDToken:      apiResp.IDToken,
		RefreshToken: apiResp.RefreshToken,
	}, nil
}

// classify maps an error body such as {"error":{"message":"INVALID_PASSWORD"}}.
func classify(status int, raw []byte) error {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(raw, &apiErr)
	// Messages may carry a suffix, e.g. "TOO_MANY_ATTEMPTS_TRY_LATER : ...".
	reason, _, _ := strings.Cut(strings.TrimSpace(apiErr.Error.Message), " ")

	switch reason {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "INVALID_EMAIL", "MISSING_PASSWORD":
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	case "USER_DISABLED":
		return pkgerrors.New(pkgerrors.CodeForbidden, "account disabled")
	}
	cause := fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(raw)))
	return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "sign-in request failed")
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	return fmt.Sprintf("%s/%s?key=%s", trimmed, strings.TrimLeft(path, "/"), url.QueryEscape(c.apiKey))
}
