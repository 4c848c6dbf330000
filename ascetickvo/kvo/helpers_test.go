package kvo

import (
	"errors"
	"sync"

	"github.com/krew-solutions/ascetic-kvo-go/ascetickvo/disposable"
)

var (
	errBoom      = errors.New("boom")
	errHost      = errors.New("host refused")
	errDestroyed = errors.New("entity destroyed")
)

type targetObject struct {
	name string
}

type otherTarget struct {
	id int
}

type statelessObserver struct{}

func (statelessObserver) Increment() {}

type observerObject struct {
	flag    bool
	counter int
	target  any
	change  Change
	calls   []string
}

func (o *observerObject) FlipFlag() {
	o.flag = !o.flag
}

func (o *observerObject) Increment() {
	o.counter++
	o.calls = append(o.calls, "increment")
}

func (o *observerObject) OneArg(target any) {
	o.target = target
}

func (o *observerObject) TwoArgs(target any, change Change) {
	o.target = target
	o.change = change
}

func (o *observerObject) Typed(target *targetObject) error {
	o.target = target
	return nil
}

func (o *observerObject) Fail() error {
	return errBoom
}

func (o *observerObject) Explode() {
	panic("exploded")
}

func (o *observerObject) TooMany(target any, change Change, extra int) {}

func (o *observerObject) WrongReturn() int { return 0 }

func (o *observerObject) WrongChange(target any, change int) {}

func (o *observerObject) Variadic(targets ...any) {}

// fakeRegistration is one primitive observation held by fakeHost.
type fakeRegistration struct {
	target   any
	path     string
	tag      Tag
	sink     Sink
	disposed bool
}

type fakeHook struct {
	entity   any
	callback func()
	disposed bool
}

type fakeHost struct {
	mu            sync.Mutex
	registrations []*fakeRegistration
	hooks         []*fakeHook
	destroyed     map[any]bool
	failOn        string
}

func newFakeHost() *fakeHost {
	return &fakeHost{destroyed: make(map[any]bool)}
}

func (h *fakeHost) Register(target any, path string, tag Tag, sink Sink) (disposable.Disposable, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if path == h.failOn {
		return nil, errHost
	}
	if h.destroyed[target] {
		return nil, errDestroyed
	}
	reg := &fakeRegistration{target: target, path: path, tag: tag, sink: sink}
	h.registrations = append(h.registrations, reg)
	return disposable.NewDisposable(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		reg.disposed = true
	}), nil
}

func (h *fakeHost) OnDestruction(entity any, callback func()) (disposable.Disposable, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed[entity] {
		return nil, errDestroyed
	}
	hook := &fakeHook{entity: entity, callback: callback}
	h.hooks = append(h.hooks, hook)
	return disposable.NewDisposable(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		hook.disposed = true
	}), nil
}

// fire delivers one change of path on target to every live registration.
func (h *fakeHost) fire(target any, path string, value any) {
	h.mu.Lock()
	var live []*fakeRegistration
	for _, reg := range h.registrations {
		if !reg.disposed && reg.target == target && reg.path == path {
			live = append(live, reg)
		}
	}
	h.mu.Unlock()
	for _, reg := range live {
		reg.sink.Notify(reg.tag, Change{Path: path, Kind: Setting, New: value})
	}
}

// destroy runs the live destruction hooks of entity. Afterwards the entity
// is refused by Register and OnDestruction.
func (h *fakeHost) destroy(entity any) {
	h.mu.Lock()
	h.destroyed[entity] = true
	var live []*fakeHook
	for _, hook := range h.hooks {
		if !hook.disposed && hook.entity == entity {
			live = append(live, hook)
		}
	}
	h.mu.Unlock()
	for _, hook := range live {
		hook.callback()
	}
}

func (h *fakeHost) active(target any, path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, reg := range h.registrations {
		if !reg.disposed && reg.target == target && (path == "" || reg.path == path) {
			n++
		}
	}
	return n
}

func (h *fakeHost) total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.registrations)
}

func (h *fakeHost) liveHooks(entity any) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, hook := range h.hooks {
		if !hook.disposed && hook.entity == entity {
			n++
		}
	}
	return n
}

// newTestRegistry returns a registry on a fake host that collects reported
// errors.
func newTestRegistry(opts ...Option) (*RegistryImp, *fakeHost, *[]error) {
	host := newFakeHost()
	var mu sync.Mutex
	reported := &[]error{}
	base := []Option{
		WithHost(host),
		WithCleanupTracking(false),
		WithReporter(func(err error) {
			mu.Lock()
			defer mu.Unlock()
			*reported = append(*reported, err)
		}),
	}
	return NewRegistry(append(base, opts...)...), host, reported
}
