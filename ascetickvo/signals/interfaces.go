package signals

import (
	"github.com/krew-solutions/ascetic-kvo-go/ascetickvo/disposable"
)

type Observer[E any] func(E)

// Signal delivers events to attached observers in attach order.
//
// Attach with an explicit observerID is idempotent for that ID. Without an ID
// every Attach creates a distinct attachment that can only be removed through
// the returned Disposable.
type Signal[E any] interface {
	Attach(observer Observer[E], observerID ...any) disposable.Disposable
	Detach(observerID any)
	Notify(event E)
	Len() int
}
