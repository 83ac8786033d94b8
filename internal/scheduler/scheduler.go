// Package scheduler owns the single silent-refresh timer. At most one timer
// is pending at any time: arming always cancels the previous timer first, and
// a fired timer never rearms itself. Rearming happens only as a side effect
// of the controller installing a fresh token.
package scheduler

import (
	"sync"
	"time"

	"github.com/auxodev/dashclient/internal/log"
)

// DefaultInterval is the fixed silent-refresh period.
const DefaultInterval = 10 * time.Minute

// Timer is the cancellable handle produced by a timer factory.
type Timer interface {
	Stop() bool
}

// TimerFactory creates a timer that invokes fn once after d. Tests substitute
// a manual implementation.
type TimerFactory func(d time.Duration, fn func()) Timer

type realTimer struct{ *time.Timer }

func stdTimerFactory(d time.Duration, fn func()) Timer {
	return realTimer{time.AfterFunc(d, fn)}
}

// Scheduler triggers one silent refresh per armed interval.
type Scheduler struct {
	mu       sync.Mutex
	fire     func()
	newTimer TimerFactory
	pending  Timer
	gen      uint64
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithTimerFactory sets a custom timer factory (for testing).
func WithTimerFactory(factory TimerFactory) Option {
	return func(s *Scheduler) {
		s.newTimer = factory
	}
}

// New creates a scheduler that calls fire when an armed timer elapses.
func New(fire func(), opts ...Option) *Scheduler {
	s := &Scheduler{
		fire:     fire,
		newTimer: stdTimerFactory,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Arm schedules a fire after d, cancelling any pending timer first.
func (s *Scheduler) Arm(d time.Duration) {
	s.mu.Lock()
	if s.pending != nil {
		s.pending.Stop()
	}
	s.gen++
	gen := s.gen
	s.pending = s.newTimer(d, func() { s.elapsed(gen) })
	s.mu.Unlock()

	log.LogTraceWithFields("scheduler", "Refresh timer armed", map[string]any{
		"interval": d.String(),
	})
}

// Disarm cancels the pending timer, if any. The scheduler stays idle until
// the next Arm call.
func (s *Scheduler) Disarm() {
	s.mu.Lock()
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.gen++
	s.mu.Unlock()

	log.LogTraceWithFields("scheduler", "Refresh timer disarmed", nil)
}

// Armed reports whether a timer is pending.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// elapsed runs on timer expiry. A stale generation means the timer was
// superseded between firing and acquiring the lock, in which case the
// refresh is suppressed to keep the at-most-one guarantee.
func (s *Scheduler) elapsed(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.pending == nil {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.mu.Unlock()

	s.fire()
}
