package idp

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubProvider implements the Provider interface for GitHub OAuth.
// GitHub uses plain OAuth 2.0 without PKCE; the verifier is ignored.
type GitHubProvider struct {
	config oauth2.Config
}

// NewGitHubProvider creates a new GitHub OAuth provider.
func NewGitHubProvider(clientID, clientSecret, redirectURI string) *GitHubProvider {
	return &GitHubProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

// Type returns the provider type.
func (p *GitHubProvider) Type() string {
	return "github"
}

// AuthURL generates the authorization URL.
func (p *GitHubProvider) AuthURL(state, _ string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades the authorization code for tokens.
func (p *GitHubProvider) Exchange(ctx context.Context, code, _ string) (*oauth2.Token, error) {
	return p.config.Exchange(ctx, code)
}
