package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"time"

	"github.com/auxodev/dashclient/internal/api"
	"github.com/auxodev/dashclient/internal/config"
	"github.com/auxodev/dashclient/internal/crypto"
	"github.com/auxodev/dashclient/internal/idp"
	"github.com/auxodev/dashclient/internal/lifecycle"
	"github.com/auxodev/dashclient/internal/log"
	"github.com/auxodev/dashclient/internal/oauthflow"
	"github.com/auxodev/dashclient/internal/session"
	"github.com/auxodev/dashclient/internal/storage"
)

// App is the assembled session client: the gateway to the auth backend, the
// session store, the lifecycle controller, and one OAuth coordinator per
// configured provider.
type App struct {
	config       config.Config
	store        *session.Store
	gateway      *api.Client
	controller   *lifecycle.Controller
	handshakes   *storage.MemoryHandshakeStore
	coordinators map[string]*oauthflow.Coordinator
	creds        storage.CredentialStore
	baseURL      *url.URL
	notice       lifecycle.NoticeFunc
}

// AppOption configures the application.
type AppOption func(*App)

// WithNotices routes user-visible messages (session expiry, OAuth results)
// to the embedding UI.
func WithNotices(fn lifecycle.NoticeFunc) AppOption {
	return func(a *App) {
		a.notice = fn
	}
}

// NewApp builds the application from a validated config.
func NewApp(cfg config.Config, opts ...AppOption) (*App, error) {
	log.LogInfoWithFields("dashclient", "Building session client", map[string]any{
		"baseURL":   cfg.API.BaseURL,
		"providers": len(cfg.Providers),
	})

	baseURL, err := url.Parse(cfg.API.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	a := &App{
		config:     cfg,
		store:      session.NewStore(),
		handshakes: storage.NewMemoryHandshakeStore(),
		baseURL:    baseURL,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.gateway, err = buildGateway(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway: %w", err)
	}

	a.creds, err = setupCredentialStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup credential store: %w", err)
	}

	controllerOpts := []lifecycle.Option{}
	if cfg.Session.RefreshInterval > 0 {
		controllerOpts = append(controllerOpts, lifecycle.WithRefreshInterval(cfg.Session.RefreshInterval))
	}
	if a.notice != nil {
		controllerOpts = append(controllerOpts, lifecycle.WithNoticeFunc(a.notice))
	}
	a.controller = lifecycle.New(a.gateway, a.store, controllerOpts...)

	a.coordinators, err = buildCoordinators(cfg, a.gateway, a.handshakes, a.controller, a.notice)
	if err != nil {
		return nil, fmt.Errorf("failed to build OAuth coordinators: %w", err)
	}

	return a, nil
}

// Start restores the persisted credential, if any, and attempts the boot
// silent refresh. The application is usable either way; a failed refresh
// just means it starts anonymous.
func (a *App) Start(ctx context.Context) {
	a.restoreCredential()
	a.controller.Init(ctx)
	a.persistCredential()
}

// Controller exposes the lifecycle controller.
func (a *App) Controller() *lifecycle.Controller {
	return a.controller
}

// Subscribe registers a session listener; see session.Store.Subscribe.
func (a *App) Subscribe(fn session.Listener) func() {
	return a.store.Subscribe(fn)
}

// Snapshot returns the current session snapshot.
func (a *App) Snapshot() session.State {
	return a.store.Snapshot()
}

// Login authenticates with email and password and persists the resulting
// ambient credential.
func (a *App) Login(ctx context.Context, email, password string) error {
	if err := a.controller.Login(ctx, email, password); err != nil {
		return err
	}
	a.persistCredential()
	return nil
}

// Register creates an account and returns the backend's message.
func (a *App) Register(ctx context.Context, email, password string) (string, error) {
	return a.controller.Register(ctx, email, password)
}

// Logout ends the session and drops the persisted credential.
func (a *App) Logout(ctx context.Context) {
	a.controller.Logout(ctx)
	if a.creds == nil {
		return
	}
	if err := a.creds.Clear(); err != nil {
		log.LogWarnWithFields("dashclient", "Failed to clear persisted credential", map[string]any{
			"error": err.Error(),
		})
	}
}

// Providers lists the configured OAuth providers in stable order.
func (a *App) Providers() []string {
	names := make([]string, 0, len(a.coordinators))
	for name := range a.coordinators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BeginOAuth starts the redirect flow for a provider and returns the URL to
// open in a browser.
func (a *App) BeginOAuth(ctx context.Context, provider string) (string, error) {
	coordinator, ok := a.coordinators[provider]
	if !ok {
		return "", fmt.Errorf("unknown OAuth provider: %s", provider)
	}
	return coordinator.Begin(ctx)
}

// CompleteOAuth finishes a provider's redirect flow from the callback URL
// and persists the credential when a session was established.
func (a *App) CompleteOAuth(ctx context.Context, provider, rawURL string) (oauthflow.ReturnResult, error) {
	coordinator, ok := a.coordinators[provider]
	if !ok {
		return oauthflow.ReturnResult{}, fmt.Errorf("unknown OAuth provider: %s", provider)
	}
	result, err := coordinator.CompleteIfReturning(ctx, rawURL)
	if err != nil {
		return result, err
	}
	if result.Completed {
		a.persistCredential()
	}
	return result, nil
}

// Close releases the controller's timer and listeners.
func (a *App) Close() {
	a.controller.Close()
}

// persistCredential snapshots the gateway's cookie jar into the credential
// store. Only called while a session exists; a missing store is a no-op.
func (a *App) persistCredential() {
	if a.creds == nil || a.store.Snapshot().Token == "" {
		return
	}

	cookies := a.gateway.Jar().Cookies(a.baseURL)
	if len(cookies) == 0 {
		return
	}

	saved := make([]storage.SavedCookie, 0, len(cookies))
	for _, c := range cookies {
		saved = append(saved, storage.SavedCookie{Name: c.Name, Value: c.Value, Path: c.Path})
	}
	if err := a.creds.Save(storage.Credential{Cookies: saved, SavedAt: time.Now()}); err != nil {
		log.LogWarnWithFields("dashclient", "Failed to persist credential", map[string]any{
			"error": err.Error(),
		})
		return
	}
	log.LogDebugWithFields("dashclient", "Persisted ambient credential", map[string]any{
		"cookies": len(saved),
	})
}

func (a *App) restoreCredential() {
	if a.creds == nil {
		return
	}

	cred, err := a.creds.Load()
	if err != nil {
		if !errors.Is(err, storage.ErrCredentialNotFound) {
			log.LogWarnWithFields("dashclient", "Failed to load persisted credential", map[string]any{
				"error": err.Error(),
			})
		}
		return
	}

	cookies := make([]*http.Cookie, 0, len(cred.Cookies))
	for _, c := range cred.Cookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path})
	}
	a.gateway.Jar().SetCookies(a.baseURL, cookies)
	log.LogDebugWithFields("dashclient", "Restored ambient credential", map[string]any{
		"cookies": len(cookies),
		"savedAt": cred.SavedAt,
	})
}

func buildGateway(cfg config.Config) (*api.Client, error) {
	if cfg.API.Timeout <= 0 {
		return api.NewClient(cfg.API.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return api.NewClient(cfg.API.BaseURL, api.WithHTTPClient(&http.Client{
		Jar:     jar,
		Timeout: cfg.API.Timeout,
	}))
}

func setupCredentialStore(cfg config.Config) (storage.CredentialStore, error) {
	if cfg.Session.KeyringService == "" {
		log.LogDebugWithFields("dashclient", "Credential persistence disabled", nil)
		return nil, nil
	}

	encryptor, err := crypto.NewEncryptor([]byte(cfg.Session.EncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}
	return storage.NewKeyringCredentialStore(cfg.Session.KeyringService, encryptor), nil
}

func buildCoordinators(
	cfg config.Config,
	gateway *api.Client,
	handshakes *storage.MemoryHandshakeStore,
	controller *lifecycle.Controller,
	notice lifecycle.NoticeFunc,
) (map[string]*oauthflow.Coordinator, error) {
	coordinatorOpts := []oauthflow.Option{}
	if cfg.Session.ReturnPath != "" {
		coordinatorOpts = append(coordinatorOpts, oauthflow.WithReturnPath(cfg.Session.ReturnPath))
	}
	if cfg.Session.LandingPath != "" {
		coordinatorOpts = append(coordinatorOpts, oauthflow.WithLandingPath(cfg.Session.LandingPath))
	}
	if notice != nil {
		coordinatorOpts = append(coordinatorOpts, oauthflow.WithNoticeFunc(notice))
	}

	coordinators := make(map[string]*oauthflow.Coordinator, len(cfg.Providers))
	for name, provider := range cfg.Providers {
		switch provider.Mode {
		case config.ProviderModeBackend:
			coordinators[name] = oauthflow.NewBackend(name, gateway, handshakes, controller, coordinatorOpts...)
		case config.ProviderModeDirect:
			direct, err := idp.New(name, provider.ClientID, string(provider.ClientSecret), provider.RedirectURI)
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", name, err)
			}
			coordinators[name] = oauthflow.NewDirect(direct, handshakes, controller, coordinatorOpts...)
		default:
			return nil, fmt.Errorf("provider %s has invalid mode: %s", name, provider.Mode)
		}
		log.LogInfoWithFields("dashclient", "Registered OAuth provider", map[string]any{
			"provider": name,
			"mode":     string(provider.Mode),
		})
	}
	return coordinators, nil
}
