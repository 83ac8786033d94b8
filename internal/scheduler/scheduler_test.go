package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTimer lets tests trigger or observe timers without waiting.
type manualTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

type manualClock struct {
	timers []*manualTimer
}

func (c *manualClock) factory(d time.Duration, fn func()) Timer {
	t := &manualTimer{d: d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// fireAll runs every timer that has not been stopped.
func (c *manualClock) fireAll() {
	for _, t := range c.timers {
		if !t.stopped {
			t.fn()
		}
	}
}

func TestScheduler_FiresOnceAndDoesNotRearm(t *testing.T) {
	clock := &manualClock{}

	var fires int
	s := New(func() { fires++ }, WithTimerFactory(clock.factory))

	s.Arm(time.Minute)
	require.True(t, s.Armed())

	clock.fireAll()
	assert.Equal(t, 1, fires)
	assert.False(t, s.Armed())

	// An elapsed timer never rearms itself
	assert.Len(t, clock.timers, 1)
}

func TestScheduler_RearmCancelsPreviousTimer(t *testing.T) {
	clock := &manualClock{}

	var fires int
	s := New(func() { fires++ }, WithTimerFactory(clock.factory))

	s.Arm(time.Minute)
	s.Arm(time.Minute)

	require.Len(t, clock.timers, 2)
	assert.True(t, clock.timers[0].stopped)

	clock.fireAll()
	assert.Equal(t, 1, fires)
}

func TestScheduler_DisarmPreventsFire(t *testing.T) {
	clock := &manualClock{}

	var fires int
	s := New(func() { fires++ }, WithTimerFactory(clock.factory))

	s.Arm(time.Minute)
	s.Disarm()
	assert.False(t, s.Armed())

	clock.fireAll()
	assert.Zero(t, fires)
}

func TestScheduler_StaleTimerSuppressedAfterRace(t *testing.T) {
	clock := &manualClock{}

	var fires int
	s := New(func() { fires++ }, WithTimerFactory(clock.factory))

	s.Arm(time.Minute)
	first := clock.timers[0]

	// A platform timer can fire concurrently with Arm. Simulate the callback
	// of the first timer running after it was superseded.
	s.Arm(time.Minute)
	first.fn()

	assert.Zero(t, fires)

	clock.fireAll()
	assert.Equal(t, 1, fires)
}

func TestScheduler_RealTimer(t *testing.T) {
	fired := make(chan struct{})
	s := New(func() { close(fired) })

	s.Arm(5 * time.Millisecond)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.False(t, s.Armed())
}
