package session

import (
	"sync"

	"github.com/auxodev/dashclient/internal/log"
	"github.com/google/uuid"
)

// Listener receives a session snapshot on every state change.
type Listener func(State)

type subscriber struct {
	id uuid.UUID
	fn Listener
}

// Notifier fans session snapshots out to registered listeners. Listeners are
// invoked in registration order, and a panicking listener does not prevent
// the remaining listeners from running.
type Notifier struct {
	mu       sync.Mutex
	subs     []subscriber
	tornDown bool
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers a listener and returns a disposer that removes exactly
// that listener. Unsubscribing after Teardown is a no-op.
func (n *Notifier) Subscribe(fn Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.tornDown {
		return func() {}
	}

	id := uuid.New()
	n.subs = append(n.subs, subscriber{id: id, fn: fn})

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, sub := range n.subs {
			if sub.id == id {
				n.subs = append(n.subs[:i], n.subs[i+1:]...)
				return
			}
		}
	}
}

// Notify delivers the snapshot to all current listeners, in order.
func (n *Notifier) Notify(snapshot State) {
	n.mu.Lock()
	subs := make([]subscriber, len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	for _, sub := range subs {
		dispatch(sub, snapshot)
	}
}

func dispatch(sub subscriber, snapshot State) {
	defer func() {
		if r := recover(); r != nil {
			log.LogErrorWithFields("session", "Listener panicked", map[string]any{
				"listener": sub.id.String(),
				"panic":    r,
			})
		}
	}()
	sub.fn(snapshot.clone())
}

// Teardown removes all listeners. Further Notify calls deliver to no one.
func (n *Notifier) Teardown() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = nil
	n.tornDown = true
}
