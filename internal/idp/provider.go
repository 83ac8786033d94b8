// Package idp implements the direct-provider OAuth mode: when the backend's
// oauth-start endpoint is not configured, the redirect coordinator builds
// the authorization URL and exchanges the returned code itself.
package idp

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// Provider abstracts the provider-specific legs of the redirect flow.
type Provider interface {
	// Type returns the provider identifier (e.g., "google", "github").
	Type() string

	// AuthURL builds the authorization URL carrying the anti-forgery state.
	// verifier is the PKCE verifier; providers without PKCE ignore it.
	AuthURL(state, verifier string) string

	// Exchange trades the authorization code for tokens. verifier must match
	// the one used in AuthURL for PKCE-capable providers.
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
}

// New returns the provider implementation for the given type.
func New(providerType, clientID, clientSecret, redirectURI string) (Provider, error) {
	switch providerType {
	case "google":
		return NewGoogleProvider(clientID, clientSecret, redirectURI), nil
	case "github":
		return NewGitHubProvider(clientID, clientSecret, redirectURI), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}
}
