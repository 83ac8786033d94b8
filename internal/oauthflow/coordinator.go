// Package oauthflow drives the two-leg external OAuth flow: Begin hands the
// user off to the provider (directly or via the auth backend), and
// CompleteIfReturning consumes the provider's callback. The anti-forgery
// state nonce is held in a one-shot per-provider store between the legs.
package oauthflow

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/auxodev/dashclient/internal/api"
	"github.com/auxodev/dashclient/internal/crypto"
	"github.com/auxodev/dashclient/internal/idp"
	"github.com/auxodev/dashclient/internal/log"
	"github.com/auxodev/dashclient/internal/storage"
)

const (
	DefaultReturnPath  = "/auth/success"
	DefaultLandingPath = "/dashboard"
)

// Starter is the part of the auth backend that begins a backend-mediated
// flow. api.Client implements it.
type Starter interface {
	OAuthStart(ctx context.Context, provider string) (*api.OAuthStart, error)
}

// Installer receives the token issued by a completed flow. The lifecycle
// controller implements it.
type Installer interface {
	InstallExternalToken(ctx context.Context, token string)
}

// ReturnResult reports what CompleteIfReturning did with a URL.
type ReturnResult struct {
	// Completed is true only when a token was installed. A discarded or
	// off-path URL leaves it false.
	Completed bool

	// CleanURL is the input URL with the sensitive query parameters
	// removed, suitable for replacing the visible history entry.
	CleanURL string

	// LandingPath is where the embedding UI should navigate after a
	// completed flow.
	LandingPath string
}

// Coordinator runs the redirect flow for a single provider.
type Coordinator struct {
	provider   string
	starter    Starter      // backend-mediated mode
	direct     idp.Provider // direct-to-provider mode
	handshakes storage.HandshakeStore
	installer  Installer

	returnPath  string
	landingPath string
	notice      func(message string, isError bool)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithReturnPath overrides the callback path the coordinator reacts to.
func WithReturnPath(path string) Option {
	return func(c *Coordinator) { c.returnPath = path }
}

// WithLandingPath overrides the post-login destination.
func WithLandingPath(path string) Option {
	return func(c *Coordinator) { c.landingPath = path }
}

// WithNoticeFunc registers the user-notice hook.
func WithNoticeFunc(fn func(message string, isError bool)) Option {
	return func(c *Coordinator) { c.notice = fn }
}

// NewBackend builds a coordinator whose Begin leg asks the auth backend for
// the provider redirect. The backend issues the state nonce and, where the
// provider supports PKCE, the code verifier.
func NewBackend(provider string, starter Starter, handshakes storage.HandshakeStore, installer Installer, opts ...Option) *Coordinator {
	c := &Coordinator{
		provider:    provider,
		starter:     starter,
		handshakes:  handshakes,
		installer:   installer,
		returnPath:  DefaultReturnPath,
		landingPath: DefaultLandingPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewDirect builds a coordinator that talks to the identity provider itself:
// it generates the state nonce and PKCE verifier locally and exchanges the
// authorization code on return.
func NewDirect(direct idp.Provider, handshakes storage.HandshakeStore, installer Installer, opts ...Option) *Coordinator {
	c := &Coordinator{
		provider:    direct.Type(),
		direct:      direct,
		handshakes:  handshakes,
		installer:   installer,
		returnPath:  DefaultReturnPath,
		landingPath: DefaultLandingPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the provider this coordinator serves.
func (c *Coordinator) Provider() string {
	return c.provider
}

// Begin starts the flow and returns the provider URL to navigate to. The
// handshake record is persisted before the URL is handed out, so a callback
// can never arrive ahead of its nonce.
func (c *Coordinator) Begin(ctx context.Context) (string, error) {
	if c.direct != nil {
		return c.beginDirect()
	}

	start, err := c.starter.OAuthStart(ctx, c.provider)
	if err != nil {
		return "", fmt.Errorf("starting %s flow: %w", c.provider, err)
	}
	if start.RedirectURL == "" {
		return "", fmt.Errorf("starting %s flow: backend returned no redirect URL", c.provider)
	}

	c.handshakes.Put(c.provider, storage.Handshake{
		State:        start.State,
		CodeVerifier: start.CodeVerifier,
	})
	return start.RedirectURL, nil
}

func (c *Coordinator) beginDirect() (string, error) {
	state, err := crypto.GenerateSecureToken()
	if err != nil {
		return "", fmt.Errorf("generating state nonce: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	c.handshakes.Put(c.provider, storage.Handshake{
		State:        state,
		CodeVerifier: verifier,
	})
	return c.direct.AuthURL(state, verifier), nil
}

// CompleteIfReturning inspects rawURL and finishes the flow when it is the
// provider callback. It is safe to call unconditionally with any URL: off
// the return path it does nothing, and the handshake nonce is consumed on
// first use so replaying the same callback cannot install the token twice.
//
// A callback whose state does not match the persisted nonce is dropped
// without any visible reaction; only a debug log records it.
func (c *Coordinator) CompleteIfReturning(ctx context.Context, rawURL string) (ReturnResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ReturnResult{}, fmt.Errorf("parsing return URL: %w", err)
	}
	if u.Path != c.returnPath {
		return ReturnResult{}, nil
	}

	query := u.Query()
	echoedState := query.Get("state")

	// The credential must be present before the nonce is touched: a
	// malformed callback is a loud failure, and the untouched handshake is
	// simply overwritten by the next attempt.
	token, code := query.Get("token"), query.Get("code")
	if c.direct != nil {
		if code == "" {
			return ReturnResult{}, c.failed("%s sign-in failed: the provider returned no authorization code", nil)
		}
	} else if token == "" {
		return ReturnResult{}, c.failed("%s sign-in failed: no token was returned", nil)
	}

	handshake, ok := c.handshakes.Take(c.provider)
	if !ok || handshake.State != echoedState {
		log.LogDebugWithFields("oauthflow", "Discarding callback with unknown or mismatched state", map[string]any{
			"provider":   c.provider,
			"hasPending": ok,
		})
		return ReturnResult{CleanURL: sanitize(u)}, nil
	}

	if c.direct != nil {
		tok, err := c.direct.Exchange(ctx, code, handshake.CodeVerifier)
		if err != nil {
			return ReturnResult{}, c.failed("%s sign-in failed: the authorization code could not be exchanged", err)
		}
		token = tok.AccessToken
	}

	c.installer.InstallExternalToken(ctx, token)
	if c.notice != nil {
		c.notice(fmt.Sprintf("Signed in with %s.", displayName(c.provider)), false)
	}

	return ReturnResult{
		Completed:   true,
		CleanURL:    sanitize(u),
		LandingPath: c.landingPath,
	}, nil
}

func (c *Coordinator) failed(format string, cause error) error {
	message := fmt.Sprintf(format, displayName(c.provider))
	if c.notice != nil {
		c.notice(message, true)
	}
	if cause != nil {
		return fmt.Errorf("%s: %w", message, cause)
	}
	return fmt.Errorf("%s", message)
}

// sanitize strips the credential-bearing query parameters, leaving the rest
// of the URL intact for history replacement.
func sanitize(u *url.URL) string {
	clean := *u
	query := clean.Query()
	for _, param := range []string{"token", "state", "code"} {
		query.Del(param)
	}
	clean.RawQuery = query.Encode()
	clean.Fragment = ""
	return clean.String()
}

func displayName(provider string) string {
	switch provider {
	case "google":
		return "Google"
	case "github":
		return "GitHub"
	default:
		return strings.ToUpper(provider[:1]) + provider[1:]
	}
}
