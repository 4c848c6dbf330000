package kvo

import (
	"slices"
)

// Notify dispatches one firing of the host. It implements Sink.
//
// The subscriptions of the binding are snapshotted under the lock and invoked
// in registration order after it is released. A subscription removed while
// the snapshot is being delivered is skipped if it has not been reached yet;
// one already running completes. A subscription replaced by re-adding the
// same triple is delivered through its replacement, at its old position. Subscriptions added during delivery are not
// invoked for this firing. Callback failures are reported and never returned
// to the mutator.
func (r *RegistryImp) Notify(tag Tag, change Change) {
	if tag.Registry != r.id {
		r.logger.Debug().Str("registry", tag.Registry.String()).Msg("kvo: firing for another registry")
		return
	}
	r.mu.Lock()
	b := r.bindings[tag.Binding]
	if b == nil {
		r.mu.Unlock()
		return
	}
	matched := slices.Clone(b.subs)
	r.mu.Unlock()

	if change.Path == "" {
		change.Path = b.path
	}
	if change.Kind == 0 {
		change.Kind = Setting
	}
	for _, s := range matched {
		r.deliver(s, change)
	}
}

func (r *RegistryImp) deliver(s *subscription, change Change) {
	if s = s.current(); s == nil {
		return
	}
	observer := s.observer.load()
	if observer == nil {
		return
	}
	target := s.binding.target.load()
	if target == nil {
		return
	}
	if err := s.callback.invoke(observer, target, change); err != nil {
		r.reporter(&InvocationError{
			SubscriptionID: s.id,
			Path:           s.binding.path,
			Observer:       s.observer.typ,
			Err:            err,
		})
	}
}

func (r *RegistryImp) logFailure(err error) {
	r.logger.Error().Err(err).Msg("kvo: callback failed")
}
