// Package property is a reference host for the kvo registry: an embeddable
// Object with named property values that fires one kvo.Change per primitive
// observation whenever a value is set, and that announces its own
// destruction.
package property

import (
	"sync"

	"github.com/krew-solutions/ascetic-kvo-go/ascetickvo/disposable"
	"github.com/krew-solutions/ascetic-kvo-go/ascetickvo/kvo"
	"github.com/krew-solutions/ascetic-kvo-go/ascetickvo/signals"
)

// Observable is implemented by every type embedding Object.
type Observable interface {
	Properties() *Object
}

// Object stores property values and the primitive observations on them.
// Embed it by value; the zero value is ready to use.
type Object struct {
	mu         sync.Mutex
	values     map[string]any
	signals    map[string]signals.Signal[kvo.Change]
	hooks      signals.Signal[struct{}]
	destroying bool // set when Destroy starts running the hooks
	destroyed  bool
}

func (o *Object) Properties() *Object {
	return o
}

func (o *Object) Get(path string) any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.values[path]
}

// Set stores value and notifies the observations of path. Observers run on
// the calling goroutine after the object's lock is released. Setting a
// property of a destroyed object is a no-op.
func (o *Object) Set(path string, value any) {
	o.mu.Lock()
	if o.destroyed {
		o.mu.Unlock()
		return
	}
	if o.values == nil {
		o.values = make(map[string]any)
	}
	old := o.values[path]
	o.values[path] = value
	signal := o.signals[path]
	o.mu.Unlock()

	if signal != nil {
		signal.Notify(kvo.Change{Path: path, Kind: kvo.Setting, Old: old, New: value})
	}
}

// Delete removes the value of path and notifies its observations with a
// Removal change. Deleting an absent property does nothing.
func (o *Object) Delete(path string) {
	o.mu.Lock()
	old, ok := o.values[path]
	if o.destroyed || !ok {
		o.mu.Unlock()
		return
	}
	delete(o.values, path)
	signal := o.signals[path]
	o.mu.Unlock()

	if signal != nil {
		signal.Notify(kvo.Change{Path: path, Kind: kvo.Removal, Old: old})
	}
}

// Observers returns the number of primitive observations on path.
func (o *Object) Observers(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if signal := o.signals[path]; signal != nil {
		return signal.Len()
	}
	return 0
}

// Destroy runs the destruction hooks, then drops every observation. From the
// moment Destroy starts the object refuses new observations; after it returns
// the object no longer fires.
func (o *Object) Destroy() {
	o.mu.Lock()
	if o.destroying {
		o.mu.Unlock()
		return
	}
	o.destroying = true
	hooks := o.hooks
	o.mu.Unlock()

	if hooks != nil {
		hooks.Notify(struct{}{})
	}

	o.mu.Lock()
	o.destroyed = true
	o.signals = nil
	o.hooks = nil
	o.mu.Unlock()
}

func (o *Object) Destroyed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.destroyed
}

func (o *Object) observe(path string, id any, observer signals.Observer[kvo.Change]) (disposable.Disposable, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.destroying {
		return nil, ErrDestroyed
	}
	if o.signals == nil {
		o.signals = make(map[string]signals.Signal[kvo.Change])
	}
	signal := o.signals[path]
	if signal == nil {
		signal = signals.NewSignal[kvo.Change]()
		o.signals[path] = signal
	}
	return signal.Attach(observer, id), nil
}

func (o *Object) onDestruction(callback func()) (disposable.Disposable, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.destroying {
		return nil, ErrDestroyed
	}
	if o.hooks == nil {
		o.hooks = signals.NewSignal[struct{}]()
	}
	return o.hooks.Attach(func(struct{}) { callback() }), nil
}
