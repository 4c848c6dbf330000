package kvo

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-kvo-go/ascetickvo/keypath"
)

// Declaration pairs a compound path with its callback.
type Declaration struct {
	Path     string
	Callback Callback
}

// Declarations is an ordered list of path/callback pairs built before a call
// to ObserveAll. Problems are collected as the list is built and returned by
// Err; ObserveAll refuses a list with problems.
type Declarations struct {
	items []Declaration
	err   *multierror.Error
}

func NewDeclarations() *Declarations {
	return &Declarations{}
}

// Message declares a method callback for the compound path.
func (d *Declarations) Message(compoundPath, method string) *Declarations {
	return d.Add(compoundPath, Method(method))
}

// Closure declares a closure callback for the compound path.
func (d *Declarations) Closure(compoundPath string, fn ClosureFunc) *Declarations {
	return d.Add(compoundPath, Closure(fn))
}

func (d *Declarations) Add(compoundPath string, callback Callback) *Declarations {
	if _, err := keypath.Expand(compoundPath); err != nil {
		d.err = multierror.Append(d.err, errors.Wrapf(err, "declaration %d", len(d.items)))
		return d
	}
	d.items = append(d.items, Declaration{Path: compoundPath, Callback: callback})
	return d
}

func (d *Declarations) Items() []Declaration {
	return d.items
}

func (d *Declarations) Len() int {
	return len(d.items)
}

func (d *Declarations) Err() error {
	return d.err.ErrorOrNil()
}

// ParseDeclarations reads a flat list alternating tagged compound paths and
// callbacks:
//
//	":name|title", "Refresh",
//	"?owner.name", kvo.ClosureFunc(func(self, target any, change kvo.Change) {...}),
//
// A ':' path is followed by a method name (string or Method callback). A '?'
// path is followed by a closure: a ClosureFunc, one of the function shapes
// accepted by Closure, ClosureTarget and ClosureNoArgs, or a closure Callback.
// Every entry is checked; all problems are returned together.
func ParseDeclarations(entries ...any) (*Declarations, error) {
	if len(entries)%2 != 0 {
		return nil, errors.Wrapf(ErrMalformedDeclaration, "odd number of entries (%d)", len(entries))
	}
	d := NewDeclarations()
	for i := 0; i < len(entries); i += 2 {
		tagged, ok := entries[i].(string)
		if !ok {
			d.err = multierror.Append(d.err, errors.Wrapf(ErrMalformedDeclaration, "entry %d: expected a tagged path, got %T", i, entries[i]))
			continue
		}
		tag, compound, err := keypath.SplitTag(tagged)
		if err != nil {
			d.err = multierror.Append(d.err, errors.Wrapf(err, "entry %d", i))
			continue
		}
		callback, err := callbackFor(tag, entries[i+1])
		if err != nil {
			d.err = multierror.Append(d.err, errors.Wrapf(err, "entry %d (%q)", i+1, tagged))
			continue
		}
		d.items = append(d.items, Declaration{Path: compound, Callback: callback})
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

func callbackFor(tag keypath.Tag, value any) (Callback, error) {
	switch tag {
	case keypath.MessageTag:
		switch v := value.(type) {
		case string:
			return Method(v), nil
		case Callback:
			if v.form == MessageForm {
				return v, nil
			}
		}
	case keypath.ClosureTag:
		switch v := value.(type) {
		case ClosureFunc:
			return Closure(v), nil
		case func(self, target any, change Change):
			return Closure(v), nil
		case func(self, target any):
			return ClosureTarget(v), nil
		case func(self any):
			return ClosureNoArgs(v), nil
		case Callback:
			if v.form == ClosureForm {
				return v, nil
			}
		}
	}
	return Callback{}, errors.Wrapf(ErrMalformedDeclaration, "%s tag followed by %T", tag, value)
}
