package property

import (
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-kvo-go/ascetickvo/disposable"
	"github.com/krew-solutions/ascetic-kvo-go/ascetickvo/kvo"
)

var (
	ErrNotObservable = errors.New("property: entity does not embed property.Object")
	ErrDestroyed     = errors.New("property: object is destroyed")
)

// Host registers primitive observations on Observable entities.
type Host struct{}

var (
	_ kvo.Host                = Host{}
	_ kvo.DestructionNotifier = Host{}
)

func (Host) Register(target any, path string, tag kvo.Tag, sink kvo.Sink) (disposable.Disposable, error) {
	o, ok := target.(Observable)
	if !ok {
		return nil, errors.Wrapf(ErrNotObservable, "%T", target)
	}
	// The tag identifies the registration, so registering it twice attaches once.
	handle, err := o.Properties().observe(path, tag, func(change kvo.Change) {
		sink.Notify(tag, change)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%T", target)
	}
	return handle, nil
}

// OnDestruction hooks Observable entities only; for anything else the registry
// falls back to garbage collection tracking.
func (Host) OnDestruction(entity any, callback func()) (disposable.Disposable, error) {
	o, ok := entity.(Observable)
	if !ok {
		return disposable.Noop, nil
	}
	handle, err := o.Properties().onDestruction(callback)
	if err != nil {
		return nil, errors.Wrapf(err, "%T", entity)
	}
	return handle, nil
}

// NewRegistry returns a registry using Host.
func NewRegistry(opts ...kvo.Option) *kvo.RegistryImp {
	return kvo.NewRegistry(append([]kvo.Option{kvo.WithHost(Host{})}, opts...)...)
}
