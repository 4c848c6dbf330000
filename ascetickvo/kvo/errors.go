package kvo

import (
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/krew-solutions/ascetic-kvo-go/ascetickvo/keypath"
)

var (
	ErrMalformedPath        = keypath.ErrMalformedPath
	ErrMalformedDeclaration = keypath.ErrMalformedDeclaration
	ErrUnsupportedCallback  = errors.New("kvo: unsupported callback")
	ErrInvocation           = errors.New("kvo: callback invocation failed")
	ErrNilEntity            = errors.New("kvo: observer and target must not be nil")
	ErrZeroSizeEntity       = errors.New("kvo: observer and target must not be zero-size")
	ErrNoHost               = errors.New("kvo: registry has no host")
)

// InvocationError describes a callback that failed during dispatch.
type InvocationError struct {
	SubscriptionID ulid.ULID
	Path           string
	Observer       string // observer type
	Err            error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("kvo: callback of %s for %q (subscription %s) failed: %v", e.Observer, e.Path, e.SubscriptionID, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

func (e *InvocationError) Is(target error) bool {
	return target == ErrInvocation
}

// PanicError is the cause of an InvocationError raised by a panicking callback.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
