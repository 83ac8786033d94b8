// Package api is the HTTP gateway to the dashboard's auth backend. Its
// cookie jar carries the HTTP-only refresh cookie; the session core never
// reads the cookie itself.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/auxodev/dashclient/internal/ioutil"
	"github.com/auxodev/dashclient/internal/session"
	"github.com/auxodev/dashclient/internal/urlutil"
	"github.com/google/uuid"
)

const defaultTimeout = 30 * time.Second

// Session is the backend's response to login and refresh calls. A refresh
// response without an access token signals "no active session".
type Session struct {
	AccessToken string        `json:"access_token"`
	User        *session.User `json:"user,omitempty"`
}

// Profile is the backend's response to a me() call.
type Profile struct {
	User            *session.User `json:"user"`
	ActiveAccountID int64         `json:"active_account_id,omitempty"`
}

// OAuthStart is the backend's response to an oauth-start call.
type OAuthStart struct {
	RedirectURL  string `json:"redirect_url"`
	State        string `json:"state"`
	CodeVerifier string `json:"code_verifier,omitempty"`
}

// Verification is the backend's response to a verify-token call: a profile
// for email-verification links, a CSRF token for password-reset links.
type Verification struct {
	User       *session.User `json:"user,omitempty"`
	ResetToken string        `json:"reset_csrf_token,omitempty"`
}

// VerificationKind selects which kind of one-time link token is verified.
type VerificationKind string

const (
	VerifyEmail         VerificationKind = "email"
	VerifyPasswordReset VerificationKind = "password_reset"
)

// Client talks to the auth backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client (for testing or for
// a client with a pre-populated cookie jar).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a gateway client with a fresh cookie jar.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Jar exposes the cookie jar so the embedding application can persist the
// ambient refresh credential between runs.
func (c *Client) Jar() http.CookieJar {
	return c.httpClient.Jar
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var out Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and returns the backend's message.
func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", body, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Refresh obtains a new access token from the ambient refresh cookie.
func (c *Client) Refresh(ctx context.Context) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me fetches the profile behind the token.
func (c *Client) Me(ctx context.Context, token string) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout ends the server-side session. Callers clear local state regardless
// of the outcome.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

// OAuthStart asks the backend to begin the redirect flow for a provider.
func (c *Client) OAuthStart(ctx context.Context, provider string) (*OAuthStart, error) {
	var out OAuthStart
	path := "/auth/oauth/" + provider + "/start"
	if err := c.do(ctx, http.MethodPost, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify resolves a one-time link token from a verification email or a
// password-reset email.
func (c *Client) Verify(ctx context.Context, kind VerificationKind, token string) (*Verification, error) {
	var out Verification
	body := map[string]string{"type": string(kind), "token": token}
	if err := c.do(ctx, http.MethodPost, "/auth/verify", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	endpoint, err := urlutil.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("building URL for %s: %w", path, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// readErrorMessage pulls a human-readable message out of an error response,
// tolerating both {"error": ...} and {"message": ...} shapes.
func readErrorMessage(r io.Reader) string {
	data := ioutil.ReadLimited(r, 4096)

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}
