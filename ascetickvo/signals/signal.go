package signals

import (
	"sync"

	"github.com/krew-solutions/ascetic-kvo-go/ascetickvo/disposable"
)

type entry[E any] struct {
	id       any
	observer Observer[E]
}

// anonymousID keys attachments made without an explicit observer ID.
type anonymousID struct {
	_ byte
}

type SignalImp[E any] struct {
	mu        sync.Mutex
	observers []entry[E]
}

func NewSignal[E any]() *SignalImp[E] {
	return &SignalImp[E]{}
}

func (s *SignalImp[E]) Attach(observer Observer[E], observerID ...any) disposable.Disposable {
	id := resolveID(observerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.observers {
		if e.id == id {
			return disposable.NewDisposable(func() {
				s.Detach(id)
			})
		}
	}
	s.observers = append(s.observers, entry[E]{id: id, observer: observer})
	return disposable.NewDisposable(func() {
		s.Detach(id)
	})
}

func (s *SignalImp[E]) Detach(observerID any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.observers {
		if e.id == observerID {
			observers := make([]entry[E], 0, len(s.observers)-1)
			observers = append(observers, s.observers[:i]...)
			s.observers = append(observers, s.observers[i+1:]...)
			return
		}
	}
}

// Notify delivers the event to the observers attached when Notify was called.
// Observers may attach or detach from within their callback.
func (s *SignalImp[E]) Notify(event E) {
	s.mu.Lock()
	observers := s.observers
	s.mu.Unlock()
	for _, e := range observers {
		e.observer(event)
	}
}

func (s *SignalImp[E]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

func resolveID(observerID []any) any {
	if len(observerID) > 0 {
		return observerID[0]
	}
	return &anonymousID{}
}
