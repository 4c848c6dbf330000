package property

import (
	"github.com/krew-solutions/ascetic-kvo-go/ascetickvo/kvo"
)

type targetObject struct {
	Object
}

func (t *targetObject) SetBoolVar(v bool) { t.Set("boolVar", v) }
func (t *targetObject) SetIntVar(v int) { t.Set("intVar", v) }
func (t *targetObject) SetFloatVar(v float32) { t.Set("floatVar", v) }
func (t *targetObject) SetMessage(v string) { t.Set("message", v) }

type observerObject struct {
	flag      bool
	counter   int
	target    any
	changeMap kvo.Change
}

func (o *observerObject) FlipFlag() {
	o.flag = !o.flag
}

func (o *observerObject) Increment() {
	o.counter++
}

func (o *observerObject) Onearg(target any) {
	o.target = target
}

func (o *observerObject) FirstSecond(target any, change kvo.Change) {
	o.target = target
	o.changeMap = change
}

// observableObserver observes and is observable itself, so its destruction is
// announced through the host.
type observableObserver struct {
	Object
	counter int
}

func (o *observableObserver) Increment() {
	o.counter++
}
