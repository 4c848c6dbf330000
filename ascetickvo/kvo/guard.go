package kvo

import (
	"slices"

	"github.com/krew-solutions/ascetic-kvo-go/ascetickvo/disposable"
)

// newWatchLocked starts tracking the end of life of an entity referenced by
// the registry, as an observer, a target, or both. Disposing the result stops
// tracking.
func (r *RegistryImp) newWatchLocked(key any, entity any, track tracker) (*disposable.CompositeDisposable, error) {
	w := disposable.NewCompositeDisposable()
	if r.trackCleanup {
		w.Add(disposable.NewDisposable(track(r.entityCollected, key).Stop))
	}
	if r.notifier != nil {
		hook, err := r.notifier.OnDestruction(entity, func() {
			r.entityDestroyed(key)
		})
		if err != nil {
			w.Dispose()
			return nil, err
		}
		w.Add(hook)
	}
	return w, nil
}

// releaseLocked stops watching key once nothing in the registry refers to it.
func (r *RegistryImp) releaseLocked(key any) {
	if _, ok := r.targets[key]; ok {
		return
	}
	if _, ok := r.observers[key]; ok {
		return
	}
	w, ok := r.watches[key]
	if !ok {
		return
	}
	delete(r.watches, key)
	w.Dispose()
}

// entityDestroyed runs from the host's destruction hook, before the entity
// becomes invalid. Every subscription naming the entity, as observer or as
// target, is deactivated and unlinked, and every primitive registration on it
// is disposed, before the hook returns.
func (r *RegistryImp) entityDestroyed(key any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardownLocked(key, "destroyed")
}

// entityCollected runs after the garbage collector reclaimed the entity. The
// weak references are already cleared, so no dispatch can reach it; this
// only drops the bookkeeping.
func (r *RegistryImp) entityCollected(key any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardownLocked(key, "collected")
}

func (r *RegistryImp) teardownLocked(key any, reason string) {
	touched := map[any]struct{}{key: {}}
	removed := 0
	typ := ""

	if oe := r.observers[key]; oe != nil {
		typ = oe.ref.typ
		for s := range oe.subs {
			touched[s.binding.target.key] = struct{}{}
			r.detachLocked(s)
			removed++
		}
	}
	if te := r.targets[key]; te != nil {
		typ = te.ref.typ
		for _, b := range te.paths {
			for _, s := range slices.Clone(b.subs) {
				touched[s.observer.key] = struct{}{}
				r.detachLocked(s)
				removed++
			}
		}
	}
	for k := range touched {
		r.releaseLocked(k)
	}
	if removed > 0 {
		r.logger.Debug().
			Str("entity", typ).
			Str("reason", reason).
			Int("removed", removed).
			Msg("kvo: teardown")
	}
}
