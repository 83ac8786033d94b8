// Package lifecycle orchestrates the session state machine: boot-time silent
// refresh, explicit login and logout, scheduled token renewal, and profile
// loading. It is the only component allowed to mutate the session store.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/auxodev/dashclient/internal/api"
	"github.com/auxodev/dashclient/internal/log"
	"github.com/auxodev/dashclient/internal/scheduler"
	"github.com/auxodev/dashclient/internal/session"
	"github.com/auxodev/dashclient/internal/tokeninfo"
	"golang.org/x/sync/singleflight"
)

const (
	// expirySlack is how early a JWT access token is refreshed before its
	// exp claim, when the fixed interval would overshoot it.
	expirySlack = time.Minute

	// minRefreshDelay keeps a nearly-expired token from arming a hot loop.
	minRefreshDelay = 15 * time.Second

	// scheduledRefreshTimeout bounds the network call made by a fired timer.
	scheduledRefreshTimeout = 30 * time.Second
)

// ErrNoSession is returned by operations that require an access token.
var ErrNoSession = errors.New("no active session")

// Phase is the controller's position in the session state machine.
type Phase string

const (
	PhaseAnonymous     Phase = "anonymous"
	PhaseInitializing  Phase = "initializing"
	PhaseAuthenticated Phase = "authenticated"
	PhaseRefreshing    Phase = "refreshing"
	PhaseLoggingOut    Phase = "loggingOut"
)

// Gateway is the surface of the auth backend the controller consumes.
type Gateway interface {
	Login(ctx context.Context, email, password string) (*api.Session, error)
	Register(ctx context.Context, email, password string) (string, error)
	Refresh(ctx context.Context) (*api.Session, error)
	Me(ctx context.Context, token string) (*api.Profile, error)
	Logout(ctx context.Context, token string) error
	Verify(ctx context.Context, kind api.VerificationKind, token string) (*api.Verification, error)
}

// NoticeFunc surfaces a user-visible message to the embedding UI.
type NoticeFunc func(message string, isError bool)

// Controller drives the session lifecycle.
type Controller struct {
	gateway  Gateway
	store    *session.Store
	sched    *scheduler.Scheduler
	interval time.Duration
	notice   NoticeFunc

	mu    sync.Mutex
	phase Phase
	// gen guards against stale async responses: any operation that clears
	// or replaces the session bumps it, and in-flight operations that
	// captured an older value discard their result instead of applying it.
	gen uint64

	group singleflight.Group
}

// Option configures the controller.
type Option func(*Controller, *[]scheduler.Option)

// WithRefreshInterval overrides the fixed silent-refresh period.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Controller, _ *[]scheduler.Option) {
		c.interval = d
	}
}

// WithNoticeFunc registers the user-notice hook.
func WithNoticeFunc(fn NoticeFunc) Option {
	return func(c *Controller, _ *[]scheduler.Option) {
		c.notice = fn
	}
}

// WithTimerFactory substitutes the scheduler's timer factory (for testing).
func WithTimerFactory(factory scheduler.TimerFactory) Option {
	return func(_ *Controller, schedOpts *[]scheduler.Option) {
		*schedOpts = append(*schedOpts, scheduler.WithTimerFactory(factory))
	}
}

// New wires the controller to the store and arms the scheduler hook: a
// present token arms the refresh timer, an absent one disarms it.
func New(gateway Gateway, store *session.Store, opts ...Option) *Controller {
	c := &Controller{
		gateway:  gateway,
		store:    store,
		interval: scheduler.DefaultInterval,
		phase:    PhaseAnonymous,
	}

	var schedOpts []scheduler.Option
	for _, opt := range opts {
		opt(c, &schedOpts)
	}

	c.sched = scheduler.New(c.scheduledRefresh, schedOpts...)
	store.OnTokenChange(c.tokenChanged)

	return c
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Snapshot returns the current session snapshot.
func (c *Controller) Snapshot() session.State {
	return c.store.Snapshot()
}

// Subscribe registers a session listener; see session.Store.Subscribe.
func (c *Controller) Subscribe(fn session.Listener) func() {
	return c.store.Subscribe(fn)
}

// Init attempts a silent refresh from the ambient long-lived credential.
// A failed boot refresh is not an error: the application simply starts
// anonymous.
func (c *Controller) Init(ctx context.Context) {
	c.setPhase(PhaseInitializing)
	c.store.SetLoading(true)
	defer c.store.SetLoading(false)

	gen := c.generation()
	sess, err := c.gateway.Refresh(ctx)
	if err != nil || sess.AccessToken == "" {
		if err != nil {
			log.LogDebugWithFields("lifecycle", "Boot refresh failed, starting anonymous", map[string]any{
				"error": err.Error(),
			})
		}
		c.setPhase(PhaseAnonymous)
		return
	}
	if !c.stillCurrent(gen) {
		return
	}

	c.installSession(ctx, sess)
}

// Login exchanges credentials for a session. The returned error is the user
// notice; no state is changed on failure.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	c.store.SetLoading(true)
	defer c.store.SetLoading(false)

	gen := c.generation()
	sess, err := c.gateway.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if sess.AccessToken == "" {
		return fmt.Errorf("login response carried no access token")
	}
	if !c.stillCurrent(gen) {
		// A logout won the race; the late response must not resurrect
		// the session.
		log.LogDebugWithFields("lifecycle", "Discarding stale login response", nil)
		return nil
	}

	c.installSession(ctx, sess)
	return nil
}

// Register creates an account and returns the backend's message. It does
// not start a session; the user still logs in (or verifies email) first.
func (c *Controller) Register(ctx context.Context, email, password string) (string, error) {
	message, err := c.gateway.Register(ctx, email, password)
	if err != nil {
		return "", fmt.Errorf("registration failed: %w", err)
	}
	return message, nil
}

// SilentRefresh renews the access token without user interaction.
// Concurrent calls are coalesced. Any failure ends the session: refreshes
// are never retried, the next chance to re-authenticate is the user's next
// action or the next timer armed by a successful token install.
func (c *Controller) SilentRefresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		return nil, c.refresh(ctx)
	})
	return err
}

func (c *Controller) refresh(ctx context.Context) error {
	gen := c.generation()

	c.mu.Lock()
	wasAuthenticated := c.phase == PhaseAuthenticated
	if wasAuthenticated {
		c.phase = PhaseRefreshing
	}
	c.mu.Unlock()

	sess, err := c.gateway.Refresh(ctx)
	if !c.stillCurrent(gen) {
		log.LogDebugWithFields("lifecycle", "Discarding stale refresh response", nil)
		return nil
	}
	if err != nil {
		log.LogWarnWithFields("lifecycle", "Silent refresh failed, ending session", map[string]any{
			"error": err.Error(),
		})
		c.clearLocal()
		if wasAuthenticated && c.notice != nil {
			c.notice("Your session has expired. Please sign in again.", true)
		}
		return fmt.Errorf("refresh failed: %w", err)
	}
	if sess.AccessToken == "" {
		// A "successful" refresh without a token is a logout, not a
		// license to keep a stale token around.
		log.LogDebugWithFields("lifecycle", "Refresh returned no token, treating as logout", nil)
		c.clearLocal()
		return nil
	}

	c.installSession(ctx, sess)
	return nil
}

// LoadUser resolves the profile behind the current token. It is idempotent
// and safe to call repeatedly; concurrent calls are coalesced. A failure
// clears the user but never the token: an unauthorized result is the
// caller's signal to attempt a refresh, any other failure leaves the
// session degraded rather than punishing the user for a transient profile
// service error.
func (c *Controller) LoadUser(ctx context.Context) error {
	_, err, _ := c.group.Do("profile", func() (any, error) {
		return nil, c.loadUser(ctx)
	})
	return err
}

func (c *Controller) loadUser(ctx context.Context) error {
	snap := c.store.Snapshot()
	if snap.Token == "" {
		return ErrNoSession
	}

	gen := c.generation()
	profile, err := c.gateway.Me(ctx, snap.Token)
	if !c.stillCurrent(gen) {
		return nil
	}
	if err != nil {
		c.store.SetUser(nil)
		if api.IsUnauthorized(err) {
			return fmt.Errorf("profile fetch: %w", err)
		}
		log.LogDebugWithFields("lifecycle", "Profile fetch failed, session degraded", map[string]any{
			"error": err.Error(),
		})
		return fmt.Errorf("profile fetch: %w", err)
	}

	c.store.SetUser(profile.User)
	if profile.ActiveAccountID != 0 {
		c.store.SetAccount(profile.ActiveAccountID)
	}
	return nil
}

// InstallExternalToken applies a token issued through an OAuth redirect
// flow and resolves its profile. The redirect coordinator is the only
// expected caller.
func (c *Controller) InstallExternalToken(ctx context.Context, token string) {
	c.installSession(ctx, &api.Session{AccessToken: token})
}

// Logout ends the server-side session best-effort and always clears local
// state.
func (c *Controller) Logout(ctx context.Context) {
	c.setPhase(PhaseLoggingOut)

	snap := c.store.Snapshot()
	if snap.Token != "" {
		if err := c.gateway.Logout(ctx, snap.Token); err != nil {
			log.LogWarnWithFields("lifecycle", "Server-side logout failed, clearing local state anyway", map[string]any{
				"error": err.Error(),
			})
		}
	}

	c.clearLocal()
}

// SelectAccount switches the active billing scope.
func (c *Controller) SelectAccount(id int64) {
	c.store.SetAccount(id)
}

// HandleVerification resolves a one-time link token from a verification or
// password-reset email. For email verification of the signed-in user, the
// refreshed profile is applied to the session.
func (c *Controller) HandleVerification(ctx context.Context, kind api.VerificationKind, token string) (*api.Verification, error) {
	result, err := c.gateway.Verify(ctx, kind, token)
	if err != nil {
		return nil, fmt.Errorf("verifying %s token: %w", kind, err)
	}

	if kind == api.VerifyEmail && result.User != nil {
		if snap := c.store.Snapshot(); snap.Token != "" {
			c.store.SetUser(result.User)
		}
	}
	return result, nil
}

// Close disarms the scheduler and drops all session listeners.
func (c *Controller) Close() {
	c.sched.Disarm()
	c.store.Teardown()
}

// installSession makes the session authoritative: it bumps the generation
// so slower in-flight operations discard their results, stores the token
// (which arms the scheduler), and resolves the profile if the backend did
// not include one.
func (c *Controller) installSession(ctx context.Context, sess *api.Session) {
	c.mu.Lock()
	c.gen++
	c.phase = PhaseAuthenticated
	c.mu.Unlock()

	c.store.SetToken(sess.AccessToken)
	if sess.User != nil {
		c.store.SetUser(sess.User)
	} else if err := c.LoadUser(ctx); err != nil {
		log.LogDebugWithFields("lifecycle", "Profile load after token install failed", map[string]any{
			"error": err.Error(),
		})
	}
}

/// clearLocal drops the session: user first, then token so the final
// notification already shows both absent and the scheduler disarms.
func (c *Controller) clearLocal() {
	c.mu.Lock()
	c.gen++
	c.phase = PhaseAnonymous
	c.mu.Unlock()

	c.store.SetUser(nil)
	c.store.SetToken("")
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()

	log.LogTraceWithFields("lifecycle", "Phase changed", map[string]any{
		"phase": string(p),
	})
}

func (c *Controller) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *Controller) stillCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

// tokenChanged is the store hook that keeps exactly one refresh timer
// pending while a token is present.
func (c *Controller) tokenChanged(token string) {
	if token == "" {
		c.sched.Disarm()
		return
	}
	c.sched.Arm(c.refreshDelay(token))
}

// refreshDelay picks the earlier of the fixed interval and the token's own
// expiry (minus slack) when the token is a JWT.
func (c *Controller) refreshDelay(token string) time.Duration {
	d := c.interval
	if ttl, ok := tokeninfo.TimeToExpiry(token, time.Now()); ok {
		if early := ttl - expirySlack; early < d {
			d = early
		}
	}
	if d < minRefreshDelay {
		d = minRefreshDelay
	}
	return d
}

func (c *Controller) scheduledRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledRefreshTimeout)
	defer cancel()

	// Failures already cleared the session and disarmed the scheduler;
	// nothing more to do here.
	_ = c.SilentRefresh(ctx)
}
