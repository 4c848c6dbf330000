package kvo

import (
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/pkg/errors"
)

// Kind is the arity a callback is invoked with.
type Kind int

const (
	NoArgs          Kind = iota // ()
	TargetOnly                  // (target)
	TargetAndChange             // (target, change)
)

func (k Kind) String() string {
	switch k {
	case NoArgs:
		return "no-args"
	case TargetOnly:
		return "target-only"
	case TargetAndChange:
		return "target-and-change"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Form tells how a callback is reached.
type Form int

const (
	MessageForm Form = iota // method looked up on the observer by name
	ClosureForm             // function value captured at subscription time
)

func (f Form) String() string {
	if f == ClosureForm {
		return "closure"
	}
	return "message"
}

// ClosureFunc receives the observer explicitly, so the closure itself never
// has to capture it.
type ClosureFunc func(self, target any, change Change)

// Callback describes how to invoke an observer. The zero value is unusable.
type Callback struct {
	form    Form
	kind    Kind
	name    string
	closure ClosureFunc
	method  int
	bound   bool
}

// Method refers to a method of the observer by name. The method may take
// (target, Change), (target) or nothing, and may return nothing or an error.
// The arity is resolved once, when the observation is added.
func Method(name string) Callback {
	return Callback{form: MessageForm, name: name, method: -1}
}

// Closure is a callback invoked with (self, target, change).
func Closure(fn ClosureFunc) Callback {
	return Callback{form: ClosureForm, kind: TargetAndChange, closure: fn, bound: fn != nil}
}

// ClosureTarget is a callback invoked with (self, target).
func ClosureTarget(fn func(self, target any)) Callback {
	if fn == nil {
		return Callback{form: ClosureForm, kind: TargetOnly}
	}
	return Callback{form: ClosureForm, kind: TargetOnly, bound: true, closure: func(self, target any, _ Change) {
		fn(self, target)
	}}
}

// ClosureNoArgs is a callback invoked with the observer only.
func ClosureNoArgs(fn func(self any)) Callback {
	if fn == nil {
		return Callback{form: ClosureForm, kind: NoArgs}
	}
	return Callback{form: ClosureForm, kind: NoArgs, bound: true, closure: func(self, _ any, _ Change) {
		fn(self)
	}}
}

// Func adapts a typed closure. A firing whose observer or target is not of the
// declared type is reported as an invocation error.
func Func[O, T any](fn func(self *O, target *T, change Change)) Callback {
	if fn == nil {
		return Closure(nil)
	}
	return Closure(func(self, target any, change Change) {
		fn(self.(*O), target.(*T), change)
	})
}

func (c Callback) Form() Form { return c.form }

// Kind is meaningful only after the callback is bound to an observer.
func (c Callback) Kind() Kind { return c.kind }

// Name is the method name of a message callback.
func (c Callback) Name() string { return c.name }

func (c Callback) String() string {
	if c.form == MessageForm {
		return fmt.Sprintf("message %s (%s)", c.name, c.kind)
	}
	return fmt.Sprintf("closure (%s)", c.kind)
}

var (
	errorType  = reflect.TypeFor[error]()
	changeType = reflect.TypeFor[Change]()
)

// bind resolves a message callback against the observer's method set and
// checks that target can be passed to it.
func (c Callback) bind(observer, target any) (Callback, error) {
	if c.form == ClosureForm {
		if c.closure == nil {
			return c, errors.Wrap(ErrUnsupportedCallback, "nil closure")
		}
		return c, nil
	}
	if c.name == "" {
		return c, errors.Wrap(ErrUnsupportedCallback, "empty method name")
	}
	m, ok := reflect.TypeOf(observer).MethodByName(c.name)
	if !ok {
		return c, errors.Wrapf(ErrUnsupportedCallback, "%T has no method %s", observer, c.name)
	}
	ft := m.Type // receiver is In(0)
	if ft.IsVariadic() || ft.NumOut() > 1 || (ft.NumOut() == 1 && ft.Out(0) != errorType) {
		return c, errors.Wrapf(ErrUnsupportedCallback, "%T.%s has signature %s", observer, c.name, ft)
	}
	switch ft.NumIn() - 1 {
	case 2:
		if ft.In(2) != changeType {
			return c, errors.Wrapf(ErrUnsupportedCallback, "%T.%s second parameter must be kvo.Change", observer, c.name)
		}
		c.kind = TargetAndChange
	case 1:
		c.kind = TargetOnly
	case 0:
		c.kind = NoArgs
	default:
		return c, errors.Wrapf(ErrUnsupportedCallback, "%T.%s takes %d parameters", observer, c.name, ft.NumIn()-1)
	}
	if c.kind != NoArgs && !reflect.TypeOf(target).AssignableTo(ft.In(1)) {
		return c, errors.Wrapf(ErrUnsupportedCallback, "%T.%s cannot accept target %T", observer, c.name, target)
	}
	c.method = m.Index
	c.bound = true
	return c, nil
}

// invoke calls the callback. It never panics.
func (c Callback) invoke(observer, target any, change Change) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	if !c.bound {
		return errors.Wrap(ErrUnsupportedCallback, "callback is not bound")
	}
	if c.form == ClosureForm {
		c.closure(observer, target, change)
		return nil
	}

	fn := reflect.ValueOf(observer).Method(c.method)
	var args []reflect.Value
	switch c.kind {
	case TargetAndChange:
		args = []reflect.Value{reflect.ValueOf(target), reflect.ValueOf(change)}
	case TargetOnly:
		args = []reflect.Value{reflect.ValueOf(target)}
	}
	out := fn.Call(args)
	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}
