package kvo

import (
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/krew-solutions/ascetic-kvo-go/ascetickvo/disposable"
)

type subscription struct {
	id       ulid.ULID
	seq      uint64
	observer entityRef
	binding  *binding
	callback Callback
	active   atomic.Bool
	// replacement is set when the subscription was replaced by re-adding the
	// same (observer, target, path); a firing already holding this record
	// delivers to the replacement instead.
	replacement atomic.Pointer[subscription]
}

// current follows replacements to the subscription that is live now, or
// returns nil if the chain ends in a removed one.
func (s *subscription) current() *subscription {
	for !s.active.Load() {
		if s = s.replacement.Load(); s == nil {
			return nil
		}
	}
	return s
}

// binding groups the subscriptions of one (target, atomic path) pair. They
// share a single primitive registration with the host.
type binding struct {
	id     ulid.ULID
	target entityRef
	path   string
	handle disposable.Disposable
	subs   []*subscription // registration order
}

func (b *binding) find(observerKey any) *subscription {
	for _, s := range b.subs {
		if s.observer.key == observerKey {
			return s
		}
	}
	return nil
}

type targetEntry struct {
	ref   entityRef
	paths map[string]*binding
}

type observerEntry struct {
	ref  entityRef
	subs map[*subscription]struct{}
}

// Subscription is a read-only view of one (observer, target, atomic path)
// observation. It does not keep the observer or the target alive.
type Subscription struct {
	s *subscription
}

func (v Subscription) ID() ulid.ULID { return v.s.id }

func (v Subscription) Path() string { return v.s.binding.path }

func (v Subscription) Callback() Callback { return v.s.callback }

// Active is false once the subscription has been removed.
func (v Subscription) Active() bool { return v.s.active.Load() }

// Observer returns the observer, or nil if it has been collected.
func (v Subscription) Observer() any { return v.s.observer.load() }

// Target returns the target, or nil if it has been collected.
func (v Subscription) Target() any { return v.s.binding.target.load() }

func views(subs []*subscription) []Subscription {
	if len(subs) == 0 {
		return nil
	}
	result := make([]Subscription, len(subs))
	for i, s := range subs {
		result[i] = Subscription{s: s}
	}
	return result
}
