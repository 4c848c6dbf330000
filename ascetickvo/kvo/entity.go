package kvo

import (
	"reflect"
	"runtime"
	"weak"

	"github.com/pkg/errors"
)

// entityRef is a non-owning, type-erased reference to an observer or target.
// key is the weak.Pointer itself, so two refs to the same object compare equal.
type entityRef struct {
	key  any
	load func() any
	typ  string
}

func refOf[X any](p *X) entityRef {
	wp := weak.Make(p)
	return entityRef{
		key: wp,
		load: func() any {
			if v := wp.Value(); v != nil {
				return v
			}
			return nil
		},
		typ: reflect.TypeFor[*X]().String(),
	}
}

// tracker arranges for collected to run once the entity is unreachable.
// It holds the entity strongly and must not outlive the call that made it.
type tracker func(collected func(key any), key any) runtime.Cleanup

func trackerOf[X any](p *X) tracker {
	return func(collected func(key any), key any) runtime.Cleanup {
		return runtime.AddCleanup(p, collected, key)
	}
}

// checkEntities rejects nil pointers and pointers to zero-size types. Distinct
// zero-size allocations may share an address, so they have no identity.
func checkEntities[O, T any](observer *O, target *T) error {
	if observer == nil || target == nil {
		return ErrNilEntity
	}
	if reflect.TypeFor[O]().Size() == 0 {
		return errors.Wrapf(ErrZeroSizeEntity, "observer %T", observer)
	}
	if reflect.TypeFor[T]().Size() == 0 {
		return errors.Wrapf(ErrZeroSizeEntity, "target %T", target)
	}
	return nil
}
