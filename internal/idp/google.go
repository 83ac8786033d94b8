package idp

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleProvider implements the Provider interface for Google OAuth.
// Google supports PKCE, so the verifier is bound into both legs.
type GoogleProvider struct {
	config oauth2.Config
}

// NewGoogleProvider creates a new Google OAuth provider.
func NewGoogleProvider(clientID, clientSecret, redirectURI string) *GoogleProvider {
	return &GoogleProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
	}
}

// Type returns the provider type.
func (p *GoogleProvider) Type() string {
	return "google"
}

// AuthURL generates the authorization URL with an S256 PKCE challenge.
func (p *GoogleProvider) AuthURL(state, verifier string) string {
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	)
}

// Exchange trades the authorization code for tokens.
func (p *GoogleProvider) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	return p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
}
