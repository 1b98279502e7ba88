// Package identity tracks the terminal's signed-in principal. The cart
// engine consumes it as "current identity or none, plus change
// notifications"; session and token handling live in subpackages.
package identity

import (
	"sync"

	"cartsync/pkg/domain"
)

// Notifier holds the current identity and fans out change notifications.
// SignIn and SignOut flip the identity and fire every subscriber
// synchronously, so a subscriber that captures ordering state (the engine's
// reload generation) observes changes in call order.
type Notifier struct {
	mu       sync.RWMutex
	current  domain.IdentityID
	signedIn bool
	nextSub  int
	subs     map[int]func(domain.IdentityID, bool)
}

// NewNotifier constructs a Notifier with no identity signed in.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]func(domain.IdentityID, bool))}
}

// Current returns the signed-in identity, or ok=false when none.
func (n *Notifier) Current() (domain.IdentityID, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.current, n.signedIn
}

// Subscribe registers fn to run on every identity change. The returned func
// removes the subscription.
func (n *Notifier) Subscribe(fn func(domain.IdentityID, bool)) func() {
	n.mu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// SignIn makes id the current identity and notifies subscribers. Signing in
// the already-current identity still notifies; callers decide idempotence.
func (n *Notifier) SignIn(id domain.IdentityID) {
	n.mu.Lock()
	n.current = id
	n.signedIn = true
	subs := n.snapshotLocked()
	n.mu.Unlock()

	for _, fn := range subs {
		fn(id, true)
	}
}

// SignOut clears the current identity and notifies subscribers.
func (n *Notifier) SignOut() {
	n.mu.Lock()
	n.current = ""
	n.signedIn = false
	subs := n.snapshotLocked()
	n.mu.Unlock()

	for _, fn := range subs {
		fn("", false)
	}
}

func (n *Notifier) snapshotLocked() []func(domain.IdentityID, bool) {
	out := make([]func(domain.IdentityID, bool), 0, len(n.subs))
	for _, fn := range n.subs {
		out = append(out, fn)
	}
	return out
}
