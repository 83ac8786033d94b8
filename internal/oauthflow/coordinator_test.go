package oauthflow

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/oauth2"

	"github.com/auxodev/dashclient/internal/api"
	"github.com/auxodev/dashclient/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStarter struct {
	response *api.OAuthStart
	err      error
	calls    int
}

func (s *fakeStarter) OAuthStart(ctx context.Context, provider string) (*api.OAuthStart, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

type fakeInstaller struct {
	tokens []string
}

func (i *fakeInstaller) InstallExternalToken(_ context.Context, token string) {
	i.tokens = append(i.tokens, token)
}

type stubProvider struct {
	exchangeErr  error
	gotCode      string
	gotVerifier  string
	issuedAccess string
}

func (p *stubProvider) Type() string { return "google" }

func (p *stubProvider) AuthURL(state, verifier string) string {
	return "https://provider.example.com/authorize?state=" + state
}

func (p *stubProvider) Exchange(_ context.Context, code, verifier string) (*oauth2.Token, error) {
	p.gotCode = code
	p.gotVerifier = verifier
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &oauth2.Token{AccessToken: p.issuedAccess}, nil
}

func newBackendCoordinator(starter *fakeStarter, opts ...Option) (*Coordinator, *storage.MemoryHandshakeStore, *fakeInstaller) {
	handshakes := storage.NewMemoryHandshakeStore()
	installer := &fakeInstaller{}
	return NewBackend("github", starter, handshakes, installer, opts...), handshakes, installer
}

func TestBegin_PersistsHandshakeAndReturnsURL(t *testing.T) {
	starter := &fakeStarter{response: &api.OAuthStart{
		RedirectURL:  "https://github.com/login/oauth/authorize?state=abc",
		State:        "abc",
		CodeVerifier: "ver",
	}}
	c, handshakes, _ := newBackendCoordinator(starter)

	redirect, err := c.Begin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, starter.response.RedirectURL, redirect)

	h, ok := handshakes.Take("github")
	require.True(t, ok)
	assert.Equal(t, "abc", h.State)
	assert.Equal(t, "ver", h.CodeVerifier)
}

func TestBegin_MissingRedirectURLFailsLoudly(t *testing.T) {
	starter := &fakeStarter{response: &api.OAuthStart{State: "abc"}}
	c, handshakes, _ := newBackendCoordinator(starter)

	_, err := c.Begin(context.Background())
	require.Error(t, err)

	_, ok := handshakes.Take("github")
	assert.False(t, ok, "a failed begin leaves no handshake behind")
}

func TestBegin_BackendError(t *testing.T) {
	starter := &fakeStarter{err: errors.New("boom")}
	c, _, _ := newBackendCoordinator(starter)

	_, err := c.Begin(context.Background())
	assert.Error(t, err)
}

func TestBegin_DirectGeneratesStateAndVerifier(t *testing.T) {
	provider := &stubProvider{}
	handshakes := storage.NewMemoryHandshakeStore()
	installer := &fakeInstaller{}
	c := NewDirect(provider, handshakes, installer)

	redirect, err := c.Begin(context.Background())
	require.NoError(t, err)

	h, ok := handshakes.Take("google")
	require.True(t, ok)
	assert.NotEmpty(t, h.State)
	assert.NotEmpty(t, h.CodeVerifier)
	assert.Contains(t, redirect, h.State)
}

func TestComplete_IgnoresUnrelatedURLs(t *testing.T) {
	c, handshakes, installer := newBackendCoordinator(&fakeStarter{})
	handshakes.Put("github", storage.Handshake{State: "abc"})

	result, err := c.CompleteIfReturning(context.Background(), "https://app.example.com/dashboard")
	require.NoError(t, err)
	assert.False(t, result.Completed)
	assert.Empty(t, installer.tokens)

	_, ok := handshakes.Take("github")
	assert.True(t, ok, "an unrelated URL must not consume the handshake")
}

func TestComplete_MissingTokenLeavesNonceUntouched(t *testing.T) {
	var notices []string
	c, handshakes, installer := newBackendCoordinator(&fakeStarter{}, WithNoticeFunc(func(msg string, isError bool) {
		assert.True(t, isError)
		notices = append(notices, msg)
	}))
	handshakes.Put("github", storage.Handshake{State: "abc"})

	_, err := c.CompleteIfReturning(context.Background(), "https://app.example.com/auth/success?state=abc")
	require.Error(t, err)
	assert.Empty(t, installer.tokens)
	assert.Len(t, notices, 1)

	h, ok := handshakes.Take("github")
	require.True(t, ok, "the next attempt overwrites the handshake; this one must not consume it")
	assert.Equal(t, "abc", h.State)
}

func TestComplete_StateMismatchSilentlyDiscarded(t *testing.T) {
	var notices []string
	c, handshakes, installer := newBackendCoordinator(&fakeStarter{}, WithNoticeFunc(func(msg string, _ bool) {
		notices = append(notices, msg)
	}))
	handshakes.Put("github", storage.Handshake{State: "abc"})

	result, err := c.CompleteIfReturning(context.Background(), "https://app.example.com/auth/success?token=t1&state=xyz")
	require.NoError(t, err, "a forged callback produces no visible reaction")
	assert.False(t, result.Completed)
	assert.Empty(t, installer.tokens)
	assert.Empty(t, notices)
}

func TestComplete_InstallsTokenAndSanitizesURL(t *testing.T) {
	var notices []string
	c, handshakes, installer := newBackendCoordinator(&fakeStarter{}, WithNoticeFunc(func(msg string, isError bool) {
		assert.False(t, isError)
		notices = append(notices, msg)
	}))
	handshakes.Put("github", storage.Handshake{State: "abc"})

	result, err := c.CompleteIfReturning(context.Background(),
		"https://app.example.com/auth/success?token=t1&state=abc&tab=settings")
	require.NoError(t, err)

	assert.True(t, result.Completed)
	assert.Equal(t, []string{"t1"}, installer.tokens)
	assert.Equal(t, "https://app.example.com/auth/success?tab=settings", result.CleanURL)
	assert.Equal(t, DefaultLandingPath, result.LandingPath)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0], "GitHub")
}

func TestComplete_NonceConsumedExactlyOnce(t *testing.T) {
	c, handshakes, installer := newBackendCoordinator(&fakeStarter{})
	handshakes.Put("github", storage.Handshake{State: "abc"})

	callback := "https://app.example.com/auth/success?token=t1&state=abc"

	first, err := c.CompleteIfReturning(context.Background(), callback)
	require.NoError(t, err)
	assert.True(t, first.Completed)

	second, err := c.CompleteIfReturning(context.Background(), callback)
	require.NoError(t, err)
	assert.False(t, second.Completed, "a replayed callback must not reinstall the token")
	assert.Len(t, installer.tokens, 1)
}

func TestComplete_DirectExchangesCode(t *testing.T) {
	provider := &stubProvider{issuedAccess: "provider-token"}
	handshakes := storage.NewMemoryHandshakeStore()
	installer := &fakeInstaller{}
	c := NewDirect(provider, handshakes, installer)
	handshakes.Put("google", storage.Handshake{State: "abc", CodeVerifier: "ver"})

	result, err := c.CompleteIfReturning(context.Background(),
		"https://app.example.com/auth/success?code=authcode&state=abc")
	require.NoError(t, err)

	assert.True(t, result.Completed)
	assert.Equal(t, "authcode", provider.gotCode)
	assert.Equal(t, "ver", provider.gotVerifier)
	assert.Equal(t, []string{"provider-token"}, installer.tokens)
}

func TestComplete_DirectMissingCode(t *testing.T) {
	provider := &stubProvider{}
	handshakes := storage.NewMemoryHandshakeStore()
	c := NewDirect(provider, handshakes, &fakeInstaller{})
	handshakes.Put("google", storage.Handshake{State: "abc"})

	_, err := c.CompleteIfReturning(context.Background(), "https://app.example.com/auth/success?state=abc")
	require.Error(t, err)

	_, ok := handshakes.Take("google")
	assert.True(t, ok)
}

func TestComplete_DirectExchangeFailure(t *testing.T) {
	provider := &stubProvider{exchangeErr: errors.New("invalid_grant")}
	handshakes := storage.NewMemoryHandshakeStore()
	installer := &fakeInstaller{}
	c := NewDirect(provider, handshakes, installer)
	handshakes.Put("google", storage.Handshake{State: "abc", CodeVerifier: "ver"})

	_, err := c.CompleteIfReturning(context.Background(),
		"https://app.example.com/auth/success?code=authcode&state=abc")
	require.Error(t, err)
	assert.Empty(t, installer.tokens)
}

func TestComplete_CustomReturnAndLandingPaths(t *testing.T) {
	starter := &fakeStarter{}
	handshakes := storage.NewMemoryHandshakeStore()
	installer := &fakeInstaller{}
	c := NewBackend("github", starter, handshakes, installer,
		WithReturnPath("/oauth/callback"), WithLandingPath("/home"))
	handshakes.Put("github", storage.Handshake{State: "abc"})

	result, err := c.CompleteIfReturning(context.Background(),
		"https://app.example.com/oauth/callback?token=t1&state=abc")
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, "/home", result.LandingPath)
}
