package property

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"weak"

	"github.com/icrowley/fake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-kvo-go/ascetickvo/kvo"
)

func TestRegistry_MessageCallbacks(t *testing.T) {
	r := NewRegistry()
	target := &targetObject{}
	observer := &observerObject{}

	require.NoError(t, kvo.Observe(r, observer, target, "boolVar", kvo.Method("FlipFlag")))
	require.NoError(t, kvo.Observe(r, observer, target, "intVar|floatVar", kvo.Method("Increment")))
	require.NoError(t, kvo.Observe(r, observer, target, "message", kvo.Method("FirstSecond")))

	target.SetBoolVar(true)
	assert.True(t, observer.flag)

	target.SetIntVar(1)
	target.SetFloatVar(1.5)
	assert.Equal(t, 2, observer.counter)

	message := fake.Sentence()
	target.SetMessage(message)
	assert.Same(t, target, observer.target)
	assert.Equal(t, "message", observer.changeMap.Path)
	assert.Nil(t, observer.changeMap.Old)
	assert.Equal(t, message, observer.changeMap.New)
}

func TestRegistry_ClosureDeclaration(t *testing.T) {
	r := NewRegistry()
	target := &targetObject{}
	observer := &observerObject{}

	decls, err := kvo.ParseDeclarations(
		":intVar", "Onearg",
		"?message|boolVar", kvo.ClosureFunc(func(self, target any, change kvo.Change) {
			o := self.(*observerObject)
			o.counter++
			o.changeMap = change
		}),
	)
	require.NoError(t, err)
	require.NoError(t, kvo.ObserveAll(r, observer, target, decls))

	target.SetIntVar(3)
	assert.Same(t, target, observer.target)
	target.SetMessage("hi")
	target.SetBoolVar(true)
	assert.Equal(t, 2, observer.counter)
	assert.Equal(t, "boolVar", observer.changeMap.Path)
}

func TestRegistry_TargetDestruction(t *testing.T) {
	r := NewRegistry()
	target := &targetObject{}
	observer := &observerObject{}
	require.NoError(t, kvo.Observe(r, observer, target, "intVar|message", kvo.Method("Increment")))

	target.Destroy()

	target.SetIntVar(1)
	target.SetMessage("gone")
	assert.Equal(t, 0, observer.counter)
	assert.False(t, kvo.Observes(r, target))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, target.Observers("intVar"))
}

func TestRegistry_DestroyedEntitiesCannotBeObserved(t *testing.T) {
	r := NewRegistry(kvo.WithCleanupTracking(false))
	target := &targetObject{}
	observer := &observerObject{}
	target.Destroy()

	err := kvo.Observe(r, observer, target, "intVar", kvo.Method("Increment"))
	assert.ErrorIs(t, err, ErrDestroyed)
	assert.False(t, kvo.Observes(r, target))
	assert.Equal(t, 0, r.Len())

	live := &targetObject{}
	gone := &observableObserver{}
	gone.Destroy()
	err = kvo.Observe(r, gone, live, "intVar", kvo.Method("Increment"))
	assert.ErrorIs(t, err, ErrDestroyed)
	assert.Equal(t, 0, live.Observers("intVar"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_RemovalChange(t *testing.T) {
	r := NewRegistry()
	target := &targetObject{}
	observer := &observerObject{}
	require.NoError(t, kvo.Observe(r, observer, target, "message", kvo.Method("FirstSecond")))

	target.SetMessage("hello")
	target.Delete("message")
	assert.Equal(t, kvo.Removal, observer.changeMap.Kind)
	assert.Equal(t, "hello", observer.changeMap.Old)
	assert.Nil(t, observer.changeMap.New)
}

func TestRegistry_ObserverDestruction(t *testing.T) {
	r := NewRegistry()
	target := &targetObject{}
	observer := &observableObserver{}
	require.NoError(t, kvo.Observe(r, observer, target, "intVar", kvo.Method("Increment")))

	target.SetIntVar(1)
	observer.Destroy()
	target.SetIntVar(2)

	assert.Equal(t, 1, observer.counter)
	assert.Equal(t, 0, target.Observers("intVar"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ObservingEachOther(t *testing.T) {
	r := NewRegistry()
	a, b := &observableObserver{}, &observableObserver{}
	require.NoError(t, kvo.Observe(r, a, b, "x", kvo.Method("Increment")))
	require.NoError(t, kvo.Observe(r, b, a, "x", kvo.Method("Increment")))

	a.Set("x", 1)
	b.Set("x", 1)
	assert.Equal(t, 1, a.counter)
	assert.Equal(t, 1, b.counter)

	a.Destroy()
	b.Set("x", 2)
	assert.Equal(t, 1, a.counter)
	assert.Equal(t, 0, r.Len())
}

// observeWithClosure subscribes an observer reachable only through the
// registry and returns a weak pointer to it.
func observeWithClosure(t *testing.T, r *kvo.RegistryImp, target *targetObject) weak.Pointer[observerObject] {
	observer := &observerObject{}
	decls, err := kvo.ParseDeclarations("?intVar", kvo.ClosureFunc(func(self, target any, change kvo.Change) {
		self.(*observerObject).counter++
	}))
	require.NoError(t, err)
	require.NoError(t, kvo.ObserveAll(r, observer, target, decls))
	target.SetIntVar(1)
	require.Equal(t, 1, observer.counter)
	return weak.Make(observer)
}

func TestRegistry_ClosureDoesNotRetainObserver(t *testing.T) {
	r := NewRegistry()
	target := &targetObject{}

	wp := observeWithClosure(t, r, target)

	require.Eventually(t, func() bool {
		runtime.GC()
		return wp.Value() == nil && r.Len() == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, target.Observers("intVar"))
	target.SetIntVar(2) // should not panic
}

func TestRegistry_ConcurrentMutationAndRemoval(t *testing.T) {
	r := NewRegistry(kvo.WithLogger(zerolog.Nop()))
	target := &targetObject{}
	observer := &observerObject{}
	var invocations atomic.Int64
	require.NoError(t, kvo.Observe(r, observer, target, "intVar", kvo.ClosureNoArgs(func(self any) {
		invocations.Add(1)
	})))

	var mutations atomic.Int64
	var stop atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; !stop.Load(); i++ {
			target.SetIntVar(i)
			mutations.Add(1)
		}
	}()

	for mutations.Load() < 100 {
		runtime.Gosched()
	}
	kvo.UnobserveTarget(r, observer, target, "intVar")
	atRemoval := invocations.Load()
	removedAt := mutations.Load()
	for mutations.Load() < removedAt+100 {
		runtime.Gosched()
	}
	stop.Store(true)
	wg.Wait()

	assert.LessOrEqual(t, invocations.Load(), atRemoval+1)
	assert.Equal(t, 0, target.Observers("intVar"))
}

func TestRegistry_FailingCallbackDoesNotReachMutator(t *testing.T) {
	var reported []error
	r := NewRegistry(kvo.WithReporter(func(err error) { reported = append(reported, err) }))
	target := &targetObject{}
	failing, healthy := &observerObject{}, &observerObject{}

	require.NoError(t, kvo.Observe(r, failing, target, "intVar", kvo.Closure(func(self, target any, change kvo.Change) {
		panic("observer failure")
	})))
	require.NoError(t, kvo.Observe(r, healthy, target, "intVar", kvo.Method("Increment")))

	assert.NotPanics(t, func() { target.SetIntVar(1) })
	assert.Equal(t, 1, healthy.counter)
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], kvo.ErrInvocation)
}
