package kvo

import (
	"cmp"
	"crypto/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/krew-solutions/ascetic-kvo-go/ascetickvo/disposable"
	"github.com/krew-solutions/ascetic-kvo-go/ascetickvo/keypath"
)

// RegistryImp maps observers to the target properties they observe.
//
// The canonical store is indexed by target, then by atomic path; the
// observer index points into it. Neither index owns observers or targets.
// All structural access goes through mu. Callbacks run without it held, so
// they may add or remove observations.
type RegistryImp struct {
	mu           sync.Mutex
	id           uuid.UUID
	host         Host
	notifier     DestructionNotifier
	logger       zerolog.Logger
	reporter     Reporter
	trackCleanup bool
	entropy      *ulid.MonotonicEntropy
	seq          uint64

	targets   map[any]*targetEntry
	observers map[any]*observerEntry
	bindings  map[ulid.ULID]*binding
	watches   map[any]*disposable.CompositeDisposable
}

func NewRegistry(opts ...Option) *RegistryImp {
	r := &RegistryImp{
		id:           uuid.New(),
		logger:       zerolog.Nop(),
		trackCleanup: true,
		entropy:      ulid.Monotonic(rand.Reader, 0),
		targets:      make(map[any]*targetEntry),
		observers:    make(map[any]*observerEntry),
		bindings:     make(map[ulid.ULID]*binding),
		watches:      make(map[any]*disposable.CompositeDisposable),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.reporter == nil {
		r.reporter = r.logFailure
	}
	return r
}

func (r *RegistryImp) ID() uuid.UUID {
	return r.id
}

// Len returns the number of live subscriptions.
func (r *RegistryImp) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, oe := range r.observers {
		n += len(oe.subs)
	}
	return n
}

// plan is one atomic path to subscribe with an already bound callback.
type plan struct {
	path     string
	callback Callback
}

// Observe subscribes observer to changes of the compound path on target.
// Re-adding an existing (observer, target, path) triple replaces it. On error
// nothing is registered.
func Observe[O, T any](r *RegistryImp, observer *O, target *T, compoundPath string, callback Callback) error {
	if err := checkEntities(observer, target); err != nil {
		return err
	}
	paths, err := keypath.Expand(compoundPath)
	if err != nil {
		return err
	}
	bound, err := callback.bind(observer, target)
	if err != nil {
		return errors.Wrapf(err, "observe %q", compoundPath)
	}
	plans := make([]plan, len(paths))
	for i, path := range paths {
		plans[i] = plan{path: path, callback: bound}
	}
	return r.observe(refOf(observer), trackerOf(observer), observer, refOf(target), trackerOf(target), target, plans)
}

// ObserveAll subscribes observer to every declared path on target. Either all
// declarations are registered or none.
func ObserveAll[O, T any](r *RegistryImp, observer *O, target *T, declarations *Declarations) error {
	if err := checkEntities(observer, target); err != nil {
		return err
	}
	if declarations == nil {
		return errors.Wrap(ErrMalformedDeclaration, "nil declarations")
	}
	if err := declarations.Err(); err != nil {
		return err
	}

	var result *multierror.Error
	var plans []plan
	index := make(map[string]int)
	for _, d := range declarations.Items() {
		bound, err := d.Callback.bind(observer, target)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "observe %q", d.Path))
			continue
		}
		paths, _ := keypath.Expand(d.Path) // validated by Declarations
		for _, path := range paths {
			if i, ok := index[path]; ok {
				plans[i].callback = bound
				continue
			}
			index[path] = len(plans)
			plans = append(plans, plan{path: path, callback: bound})
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	return r.observe(refOf(observer), trackerOf(observer), observer, refOf(target), trackerOf(target), target, plans)
}

// Unobserve removes observer's subscriptions for the compound path on every
// target. The wildcard "*" removes all of them. Missing subscriptions are
// ignored.
func Unobserve[O any](r *RegistryImp, observer *O, compoundPath string) {
	if observer == nil {
		return
	}
	paths, ok := r.removalPaths(compoundPath)
	if !ok {
		return
	}
	ref := refOf(observer)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(ref.key, nil, paths)
}

// UnobserveTarget is Unobserve restricted to one target.
func UnobserveTarget[O, T any](r *RegistryImp, observer *O, target *T, compoundPath string) {
	if observer == nil || target == nil {
		return
	}
	paths, ok := r.removalPaths(compoundPath)
	if !ok {
		return
	}
	observerRef, targetRef := refOf(observer), refOf(target)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(observerRef.key, targetRef.key, paths)
}

// StopObserving removes every subscription of observer.
func StopObserving[O any](r *RegistryImp, observer *O) {
	Unobserve(r, observer, keypath.Wildcard)
}

// StopObservingTarget removes every subscription of observer on target.
func StopObservingTarget[O, T any](r *RegistryImp, observer *O, target *T) {
	UnobserveTarget(r, observer, target, keypath.Wildcard)
}

// Find returns the live subscriptions for one atomic path of target in
// registration order.
func Find[T any](r *RegistryImp, target *T, atomicPath string) []Subscription {
	if target == nil {
		return nil
	}
	key := refOf(target).key
	r.mu.Lock()
	defer r.mu.Unlock()
	te := r.targets[key]
	if te == nil {
		return nil
	}
	b := te.paths[atomicPath]
	if b == nil {
		return nil
	}
	return views(b.subs)
}

// Subscriptions returns every live subscription of observer in the order
// they were added.
func Subscriptions[O any](r *RegistryImp, observer *O) []Subscription {
	if observer == nil {
		return nil
	}
	key := refOf(observer).key
	r.mu.Lock()
	defer r.mu.Unlock()
	oe := r.observers[key]
	if oe == nil {
		return nil
	}
	subs := make([]*subscription, 0, len(oe.subs))
	for s := range oe.subs {
		subs = append(subs, s)
	}
	slices.SortFunc(subs, func(a, b *subscription) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return views(subs)
}

// Observes reports whether target has any subscription at all.
func Observes[T any](r *RegistryImp, target *T) bool {
	if target == nil {
		return false
	}
	key := refOf(target).key
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.targets[key]
	return ok
}

func (r *RegistryImp) removalPaths(compoundPath string) ([]string, bool) {
	if keypath.IsWildcard(compoundPath) {
		return nil, true
	}
	paths, err := keypath.Expand(compoundPath)
	if err != nil {
		r.logger.Debug().Err(err).Str("path", compoundPath).Msg("kvo: ignoring removal")
		return nil, false
	}
	return paths, true
}

// pending is the primitive registration prepared for one plan before commit.
type pending struct {
	plan
	fresh disposable.Disposable // nil when an existing binding is reused
	id    ulid.ULID
}

func (r *RegistryImp) observe(
	observerRef entityRef, observerTracker tracker, observer any,
	targetRef entityRef, targetTracker tracker, target any,
	plans []plan,
) error {
	if r.host == nil {
		return ErrNoHost
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	// Everything acquired before commit is released again on failure.
	rollback := disposable.NewCompositeDisposable()
	watches := make(map[any]*disposable.CompositeDisposable, 2)
	for _, e := range []struct {
		ref    entityRef
		track  tracker
		entity any
	}{{observerRef, observerTracker, observer}, {targetRef, targetTracker, target}} {
		if _, ok := r.watches[e.ref.key]; ok {
			continue
		}
		if _, ok := watches[e.ref.key]; ok {
			continue
		}
		w, err := r.newWatchLocked(e.ref.key, e.entity, e.track)
		if err != nil {
			rollback.Dispose()
			return errors.Wrapf(err, "watch %s", e.ref.typ)
		}
		rollback.Add(w)
		watches[e.ref.key] = w
	}

	prepared := make([]pending, len(plans))
	for i, p := range plans {
		prepared[i].plan = p
		if b := r.lookupLocked(targetRef.key, p.path); b != nil {
			// A binding whose only user is being replaced is torn down and
			// registered again.
			existing := b.find(observerRef.key)
			if existing == nil || len(b.subs) > 1 {
				continue
			}
		}
		id := r.newID()
		handle, err := r.host.Register(target, p.path, Tag{Registry: r.id, Binding: id}, r)
		if err != nil {
			rollback.Dispose()
			return errors.Wrapf(err, "register %s on %s", p.path, targetRef.typ)
		}
		rollback.Add(handle)
		prepared[i].fresh = handle
		prepared[i].id = id
	}

	for key, w := range watches {
		r.watches[key] = w
	}
	for _, p := range prepared {
		b := r.lookupLocked(targetRef.key, p.path)
		var existing *subscription
		if b != nil {
			existing = b.find(observerRef.key)
		}
		if p.fresh != nil {
			b = &binding{id: p.id, target: targetRef, path: p.path, handle: p.fresh}
		}
		r.seq++
		s := &subscription{
			id:       r.newID(),
			seq:      r.seq,
			observer: observerRef,
			binding:  b,
			callback: p.callback,
		}
		s.active.Store(true)
		if existing != nil {
			existing.replacement.Store(s)
			r.detachLocked(existing)
		}
		r.attachLocked(s)
	}

	r.logger.Debug().
		Str("observer", observerRef.typ).
		Str("target", targetRef.typ).
		Str("paths", joinPlans(plans)).
		Msg("kvo: observe")
	return nil
}

func (r *RegistryImp) lookupLocked(targetKey any, path string) *binding {
	if te := r.targets[targetKey]; te != nil {
		return te.paths[path]
	}
	return nil
}

// attachLocked links s into both indexes, installing its binding if the
// binding is new.
func (r *RegistryImp) attachLocked(s *subscription) {
	b := s.binding
	te := r.targets[b.target.key]
	if te == nil {
		te = &targetEntry{ref: b.target, paths: make(map[string]*binding)}
		r.targets[b.target.key] = te
	}
	if te.paths[b.path] != b {
		te.paths[b.path] = b
		r.bindings[b.id] = b
	}
	b.subs = append(b.subs, s)

	oe := r.observers[s.observer.key]
	if oe == nil {
		oe = &observerEntry{ref: s.observer, subs: make(map[*subscription]struct{})}
		r.observers[s.observer.key] = oe
	}
	oe.subs[s] = struct{}{}
}

// removeLocked detaches observer's subscriptions matching targetKey (nil for
// any target) and paths (nil for any path).
func (r *RegistryImp) removeLocked(observerKey, targetKey any, paths []string) {
	oe := r.observers[observerKey]
	if oe == nil {
		return
	}
	var victims []*subscription
	for s := range oe.subs {
		if targetKey != nil && s.binding.target.key != targetKey {
			continue
		}
		if paths != nil && !slices.Contains(paths, s.binding.path) {
			continue
		}
		victims = append(victims, s)
	}
	if len(victims) == 0 {
		return
	}
	touched := map[any]struct{}{observerKey: {}}
	for _, s := range victims {
		touched[s.binding.target.key] = struct{}{}
		r.detachLocked(s)
	}
	for key := range touched {
		r.releaseLocked(key)
	}
	r.logger.Debug().
		Str("observer", oe.ref.typ).
		Int("removed", len(victims)).
		Msg("kvo: unobserve")
}

// detachLocked deactivates s and unlinks it from both indexes. The last
// subscription of a binding takes the primitive registration with it.
func (r *RegistryImp) detachLocked(s *subscription) {
	s.active.Store(false)
	b := s.binding
	if i := slices.Index(b.subs, s); i >= 0 {
		b.subs = slices.Delete(b.subs, i, i+1)
	}
	if oe := r.observers[s.observer.key]; oe != nil {
		delete(oe.subs, s)
		if len(oe.subs) == 0 {
			delete(r.observers, s.observer.key)
		}
	}
	if len(b.subs) == 0 {
		r.unbindLocked(b)
	}
}

func (r *RegistryImp) unbindLocked(b *binding) {
	delete(r.bindings, b.id)
	if te := r.targets[b.target.key]; te != nil && te.paths[b.path] == b {
		delete(te.paths, b.path)
		if len(te.paths) == 0 {
			delete(r.targets, b.target.key)
		}
	}
	b.handle.Dispose()
}

func (r *RegistryImp) newID() ulid.ULID {
	return ulid.MustNew(ulid.Timestamp(time.Now()), r.entropy)
}

func joinPlans(plans []plan) string {
	paths := make([]string, len(plans))
	for i, p := range plans {
		paths[i] = p.path
	}
	return keypath.Join(paths...)
}
