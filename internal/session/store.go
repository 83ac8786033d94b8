package session

import (
	"sync"

	"github.com/auxodev/dashclient/internal/log"
)

// Store is the sole owner of the session state. Every mutation recomputes
// the derived LoggedIn flag, then notifies subscribers with a snapshot
// before the mutating call returns. The lifecycle controller is the only
// component that is supposed to call the setters.
type Store struct {
	mu       sync.Mutex
	state    State
	notifier *Notifier

	// onToken is invoked after every token change with the new value.
	// The controller uses it to arm or disarm the refresh scheduler.
	onToken func(token string)
}

func NewStore() *Store {
	return &Store{notifier: NewNotifier()}
}

// OnTokenChange registers the scheduler hook. Only one hook is supported;
// later registrations replace earlier ones.
func (s *Store) OnTokenChange(fn func(token string)) {
	s.mu.Lock()
	s.onToken = fn
	s.mu.Unlock()
}

// SetToken replaces the bearer token. An empty string means logged out.
func (s *Store) SetToken(token string) {
	s.mu.Lock()
	s.state.Token = token
	s.state.LoggedIn = s.state.Token != "" && s.state.User != nil
	snapshot := s.state.clone()
	hook := s.onToken
	s.mu.Unlock()

	log.LogTraceWithFields("session", "Token updated", map[string]any{
		"present":  token != "",
		"loggedIn": snapshot.LoggedIn,
	})

	s.notifier.Notify(snapshot)
	if hook != nil {
		hook(token)
	}
}

// SetUser replaces the resolved identity. Nil means absent.
func (s *Store) SetUser(u *User) {
	s.mu.Lock()
	if u != nil {
		copied := *u
		u = &copied
	}
	s.state.User = u
	s.state.LoggedIn = s.state.Token != "" && s.state.User != nil
	snapshot := s.state.clone()
	s.mu.Unlock()

	s.notifier.Notify(snapshot)
}

// SetAccount replaces the active account scope. Zero means none.
func (s *Store) SetAccount(id int64) {
	s.mu.Lock()
	s.state.AccountID = id
	snapshot := s.state.clone()
	s.mu.Unlock()

	s.notifier.Notify(snapshot)
}

// SetLoading flags an in-flight state-changing auth operation.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	if s.state.Loading == loading {
		s.mu.Unlock()
		return
	}
	s.state.Loading = loading
	snapshot := s.state.clone()
	s.mu.Unlock()

	s.notifier.Notify(snapshot)
}

// Snapshot returns a copy of the current state, never the live object.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers a listener, invokes it immediately with the current
// snapshot, and returns a disposer.
func (s *Store) Subscribe(fn Listener) func() {
	unsubscribe := s.notifier.Subscribe(fn)
	fn(s.Snapshot())
	return unsubscribe
}

// Teardown drops all listeners.
func (s *Store) Teardown() {
	s.notifier.Teardown()
}
