// Package client implements the HTTP auth API client. It is stateless
// apart from its configuration and the injected token store: every
// operation maps one named endpoint to one request.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"go.uber.org/zap"

	"github.com/atinyakov/authflow/internal/config"
	"github.com/atinyakov/authflow/internal/models"
	"github.com/atinyakov/authflow/internal/storage"
)

// APIError is a non-2xx response, carrying the HTTP status and a
// best-effort message extracted from the JSON body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// IsAuthExpired reports whether err is an APIError whose status means
// the session's authorization has expired (401 or 422). 403 is
// deliberately excluded: forbidden is terminal, not refreshable.
func IsAuthExpired(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized ||
		apiErr.Status == http.StatusUnprocessableEntity
}

// Client translates named auth operations into HTTP calls. Cookies are
// always sent (cookie jar); the bearer header is attached only when the
// operation requires auth and the store says fallback mode is active.
type Client struct {
	cfg   config.Config
	store *storage.TokenStore
	http  *http.Client
	log   *zap.Logger
}

// New builds a Client for a loaded config. The cookie jar gives every
// request include-credentials behavior regardless of storage mode.
func New(cfg config.Config, store *storage.TokenStore, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		cfg:   cfg,
		store: store,
		http:  &http.Client{Jar: jar, Timeout: cfg.RequestTimeout},
		log:   log,
	}
}

// Login exchanges credentials for a session. The returned pair is nil
// when the backend relies purely on cookies and returns no tokens.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.TokenPair, error) {
	return c.authRequest(ctx, c.cfg.Endpoints.Login, creds)
}

// Signup registers a new account and logs it in.
func (c *Client) Signup(ctx context.Context, creds models.Credentials) (*models.TokenPair, error) {
	return c.authRequest(ctx, c.cfg.Endpoints.Signup, creds)
}

func (c *Client) authRequest(ctx context.Context, path string, creds models.Credentials) (*models.TokenPair, error) {
	var pair models.TokenPair
	if err := c.do(ctx, http.MethodPost, path, creds, false, &pair); err != nil {
		return nil, err
	}
	if pair.AccessToken == "" && pair.RefreshToken == "" {
		return nil, nil
	}
	return &pair, nil
}

// Logout tells the server to end the session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, c.cfg.Endpoints.Logout, nil, true, nil)
}

// CheckSession asks the server whether the current cookies/tokens carry
// an authenticated session.
func (c *Client) CheckSession(ctx context.Context) (bool, error) {
	var resp models.CheckAuthResponse
	if err := c.do(ctx, http.MethodGet, c.cfg.Endpoints.CheckAuth, nil, true, &resp); err != nil {
		return false, err
	}
	return resp.Authenticated, nil
}

// FetchProfile retrieves the remote user record.
func (c *Client) FetchProfile(ctx context.Context) (models.Profile, error) {
	var profile models.Profile
	if err := c.do(ctx, http.MethodGet, c.cfg.Endpoints.Profile, nil, true, &profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateProfile sends partial profile updates and returns the updated
// record.
func (c *Client) UpdateProfile(ctx context.Context, updates models.Profile) (models.Profile, error) {
	var profile models.Profile
	if err := c.do(ctx, http.MethodPut, c.cfg.Endpoints.Profile, updates, true, &profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdatePassword changes the account password.
func (c *Client) UpdatePassword(ctx context.Context, current, updated string) error {
	body := models.PasswordUpdate{CurrentPassword: current, NewPassword: updated}
	return c.do(ctx, http.MethodPost, c.cfg.Endpoints.PasswordUpdate, body, true, nil)
}

// Refresh rotates the credential pair. It never returns an error: a
// failed refresh is an expected steady-state outcome, so network and
// parse failures and non-2xx responses all resolve to false, with
// logging as the only side effect. In fallback mode the refresh token
// is sent as the bearer (a fresh session may have no access token yet)
// and a rotated pair from the body is persisted.
func (c *Client) Refresh(ctx context.Context) bool {
	req, err := c.newRequest(ctx, http.MethodPost, c.cfg.Endpoints.Refresh, nil)
	if err != nil {
		c.log.Debug("refresh request build failed", zap.Error(err))
		return false
	}
	if c.store.ShouldUseFallback() {
		if rt := c.store.RefreshToken(); rt != "" {
			req.Header.Set("Authorization", "Bearer "+rt)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("refresh request failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Debug("refresh response read failed", zap.Error(err))
		return false
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Debug("refresh rejected", zap.Int("status", resp.StatusCode))
		return false
	}

	var pair models.TokenPair
	if len(body) > 0 {
		if err := json.Unmarshal(body, &pair); err != nil {
			c.log.Debug("refresh response parse failed", zap.Error(err))
			return false
		}
	}
	if c.store.ShouldUseFallback() && pair.AccessToken != "" {
		c.store.SetTokens(pair.AccessToken, pair.RefreshToken)
	}
	return true
}

// OAuthRedirectURL builds the provider redirect URL. Pure string
// building, no network. redirectURI, when non-empty, is appended as a
// url-encoded redirect_uri query parameter.
func (c *Client) OAuthRedirectURL(provider, redirectURI string) (string, error) {
	var path string
	switch provider {
	case "google":
		path = c.cfg.Endpoints.OAuthGoogle
	case "microsoft":
		path = c.cfg.Endpoints.OAuthMicrosoft
	default:
		return "", fmt.Errorf("unknown oauth provider %q", provider)
	}

	u := c.cfg.APIBaseURL + c.cfg.APIPrefix + path
	if redirectURI != "" {
		u += "?redirect_uri=" + url.QueryEscape(redirectURI)
	}
	return u, nil
}

// newRequest builds a request with the JSON content type, custom
// headers, and the resolved endpoint URL.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBaseURL+c.cfg.APIPrefix+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.cfg.CustomHeaders {
		req.Header.Set(k, v)
	}
	return req, nil
}

// do executes one request/response cycle. requiresAuth attaches the
// access-token bearer header when fallback mode is active. out, when
// non-nil, receives the decoded JSON body.
func (c *Client) do(ctx context.Context, method, path string, body any, requiresAuth bool, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if requiresAuth && c.store.ShouldUseFallback() {
		if tok := c.store.AccessToken(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: extractMessage(data, resp.StatusCode)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response %s: %w", path, err)
		}
	}
	return nil
}

// extractMessage pulls a human-readable message out of an error body,
// falling back to a generic one when the body is not JSON or carries no
// message fields.
func extractMessage(body []byte, status int) string {
	var errResp models.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Message != "" {
			return errResp.Message
		}
		if errResp.Error != "" {
			return errResp.Error
		}
	}
	return fmt.Sprintf("request failed: %d", status)
}
