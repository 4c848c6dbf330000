package disposable

import "sync"

// Disposable releases a registration. Dispose is idempotent.
type Disposable interface {
	Dispose()
}

type DisposableImp struct {
	once     sync.Once
	callback func()
}

func NewDisposable(callback func()) *DisposableImp {
	return &DisposableImp{callback: callback}
}

func (d *DisposableImp) Dispose() {
	d.once.Do(func() {
		if d.callback != nil {
			d.callback()
		}
	})
}

// CompositeDisposable disposes its delegates in reverse order of registration.
type CompositeDisposable struct {
	mu        sync.Mutex
	delegates []Disposable
	disposed  bool
}

func NewCompositeDisposable(delegates ...Disposable) *CompositeDisposable {
	return &CompositeDisposable{delegates: delegates}
}

// Add appends a delegate. Adding to an already disposed composite disposes the delegate at once.
func (c *CompositeDisposable) Add(delegate Disposable) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		delegate.Dispose()
		return
	}
	c.delegates = append(c.delegates, delegate)
	c.mu.Unlock()
}

func (c *CompositeDisposable) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	delegates := c.delegates
	c.delegates = nil
	c.mu.Unlock()

	for i := len(delegates) - 1; i >= 0; i-- {
		delegates[i].Dispose()
	}
}

// Noop is a Disposable that does nothing.
var Noop Disposable = noop{}

type noop struct{}

func (noop) Dispose() {}
