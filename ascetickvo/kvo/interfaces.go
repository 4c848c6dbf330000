package kvo

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/krew-solutions/ascetic-kvo-go/ascetickvo/disposable"
)

// ChangeKind tells what kind of mutation produced a Change.
type ChangeKind int

const (
	Setting ChangeKind = iota + 1
	Removal
)

func (k ChangeKind) String() string {
	switch k {
	case Setting:
		return "setting"
	case Removal:
		return "removal"
	default:
		return "unknown"
	}
}

// Change is the payload of one firing.
type Change struct {
	Path string
	Kind ChangeKind
	Old  any
	New  any // nil for Removal
}

// Tag is handed to the Host with every primitive registration and handed back
// with every firing. It routes the firing to the registry and to the
// (target, path) binding the registration belongs to.
type Tag struct {
	Registry uuid.UUID
	Binding  ulid.ULID
}

// Sink receives raw firings from a Host.
type Sink interface {
	Notify(tag Tag, change Change)
}

// Host is the primitive single-path observation mechanism.
//
// Register starts delivering changes of one atomic path of target to sink,
// passing tag back unchanged. Disposing the returned handle stops delivery.
// Register must not call back into the registry synchronously, and must
// refuse a target that can no longer fire.
type Host interface {
	Register(target any, path string, tag Tag, sink Sink) (disposable.Disposable, error)
}

// DestructionNotifier is implemented by hosts that can announce the end of an
// entity's life. The callback must run before the entity's state becomes
// inaccessible; disposing the returned handle cancels it. An entity that is
// already being destroyed must be refused with an error.
type DestructionNotifier interface {
	OnDestruction(entity any, callback func()) (disposable.Disposable, error)
}

// Reporter receives failures of individual callbacks during dispatch.
type Reporter func(err error)
