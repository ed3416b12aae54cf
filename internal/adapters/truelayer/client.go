// Package truelayer is the adapter for TrueLayer's auth and data APIs:
// token exchange/refresh, account discovery, and cursor-paginated
// transaction fetches. Everything above this package sees normalized
// ledger rows and typed errors, never raw API payloads.
package truelayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	sandboxAuthBase = "https://auth.truelayer-sandbox.com"
	sandboxAPIBase  = "https://api.truelayer-sandbox.com"
	prodAuthBase    = "https://auth.truelayer.com"
	prodAPIBase     = "https://api.truelayer.com"
)

// ErrRateLimited marks a request that was still throttled after the
// bounded retry budget was spent.
var ErrRateLimited = errors.New("provider rate limit exceeded")

// AuthError is any authorization failure: a failed code exchange, a failed
// refresh, or a data call rejected for expired consent. It is never retried
// automatically; the user must re-link the connection.
type AuthError struct {
	Status int
	Code   string
	Detail string
}

func (e *AuthError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("authorization failed (%d %s): %s", e.Status, e.Code, e.Detail)
	}
	return fmt.Sprintf("authorization failed (%d): %s", e.Status, e.Detail)
}

// ReauthRequired reports whether the failure means the stored tokens are
// dead for good (expired consent or revoked grant) rather than transient.
func (e *AuthError) ReauthRequired() bool {
	return e.Code == "invalid_grant" || e.Code == "sca_exceeded"
}

// Config carries the injected provider settings. Environment selects the
// sandbox or production endpoints; explicit base URLs override both and
// exist for tests.
type Config struct {
	ClientID     string
	ClientSecret string
	Environment  string // "sandbox" or "production"
	RedirectURI  string
	Timeout      time.Duration
	RetryMax     int

	AuthBaseURL string
	APIBaseURL  string
}

// Client talks to TrueLayer with a bounded-retry HTTP client: transient
// failures and 429/5xx responses are retried with backoff, authorization
// failures are not.
type Client struct {
	cfg      Config
	authBase string
	apiBase  string
	http     *retryablehttp.Client
}

func NewClient(cfg Config) *Client {
	authBase, apiBase := sandboxAuthBase, sandboxAPIBase
	if cfg.Environment == "production" {
		authBase, apiBase = prodAuthBase, prodAPIBase
	}
	if cfg.AuthBaseURL != "" {
		authBase = cfg.AuthBaseURL
	}
	if cfg.APIBaseURL != "" {
		apiBase = cfg.APIBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	retryMax := cfg.RetryMax
	if retryMax == 0 {
		retryMax = 3
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 10 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil // request URLs can carry account IDs; keep them out of logs
	// Hand back the final 429/5xx response instead of a generic "giving up"
	// error so callers can classify rate limiting.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{cfg: cfg, authBase: authBase, apiBase: apiBase, http: rc}
}

// postForm sends a form-encoded POST to the auth server. Token endpoints
// reject JSON bodies, matching the OAuth2 token spec.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (*tokenResponse, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.authBase+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: token endpoint", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr authErrorBody
		_ = json.Unmarshal(body, &apiErr)
		return nil, &AuthError{Status: resp.StatusCode, Code: apiErr.Error, Detail: apiErr.ErrorDescription}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, &AuthError{Status: resp.StatusCode, Detail: "token response missing access_token"}
	}
	return &token, nil
}

// getJSON performs an authenticated GET against the data API and decodes
// the response into out.
func (c *Client) getJSON(ctx context.Context, rawURL, accessToken string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests:
		// Only reachable once the retry budget is spent.
		return fmt.Errorf("%w: %s", ErrRateLimited, req.URL.Path)
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthError{Status: resp.StatusCode, Detail: "access token rejected"}
	case resp.StatusCode == http.StatusForbidden:
		code := ""
		if strings.Contains(string(body), "sca_exceeded") || len(body) == 0 {
			code = "sca_exceeded"
		}
		return &AuthError{Status: resp.StatusCode, Code: code, Detail: "access forbidden"}
	default:
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Path)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response from %s: %w", req.URL.Path, err)
	}
	return nil
}
