package reactive_test

import (
	"testing"

	"github.com/delaneyj/reactor/reactive"
	"github.com/stretchr/testify/assert"
)

func TestScopeStopTearsDownEverything(t *testing.T) {
	rt, m := newRuntime(t)
	s := reactive.NewObject("x", 1)
	rt.Observe(s)

	scope := rt.NewScope()
	var inner *reactive.Scope
	var log []string
	ran := scope.Run(func() {
		rt.Watch(s, key(s, "x"), func(any, any) error {
			log = append(log, "outer")
			return nil
		}, reactive.WatchOptions{})
		rt.NewComputed(nil, key(s, "x"))
		inner = rt.NewScope()
		inner.Run(func() {
			rt.Watch(s, key(s, "x"), func(any, any) error {
				log = append(log, "inner")
				return nil
			}, reactive.WatchOptions{})
		})
	})
	assert.True(t, ran)
	assert.Equal(t, 2, scope.Len())
	assert.Equal(t, 1, inner.Len())
	scope.OnStop(func() { log = append(log, "cleanup") })

	s.Set("x", 2)
	m.RunPending()
	assert.Equal(t, []string{"outer", "inner"}, log)

	scope.Stop()
	scope.Stop()
	assert.False(t, scope.Active())
	assert.False(t, inner.Active())
	assert.Zero(t, scope.Len())
	assert.Equal(t, []string{"outer", "inner", "cleanup"}, log)

	s.Set("x", 3)
	assert.Zero(t, m.Len())
	assert.False(t, scope.Run(func() { t.Error("stopped scope ran") }))
}

func TestUnwatchLeavesScope(t *testing.T) {
	rt, _ := newRuntime(t)
	s := reactive.NewObject("x", 1)
	rt.Observe(s)

	scope := rt.NewScope()
	var unwatch func()
	scope.Run(func() {
		unwatch = rt.Watch(s, key(s, "x"), nil, reactive.WatchOptions{})
	})
	assert.Equal(t, 1, scope.Len())
	unwatch()
	assert.Zero(t, scope.Len())
}

func TestStoppingChildScopeDetachesIt(t *testing.T) {
	rt, m := newRuntime(t)
	s := reactive.NewObject("x", 1)
	rt.Observe(s)

	parent := rt.NewScope()
	var child *reactive.Scope
	var log []string
	parent.Run(func() {
		child = rt.NewScope()
		child.Run(func() {
			rt.Watch(s, key(s, "x"), func(any, any) error {
				log = append(log, "child")
				return nil
			}, reactive.WatchOptions{})
		})
		rt.Watch(s, key(s, "x"), func(any, any) error {
			log = append(log, "parent")
			return nil
		}, reactive.WatchOptions{})
	})

	child.Stop()
	assert.True(t, parent.Active())
	s.Set("x", 2)
	m.RunPending()
	assert.Equal(t, []string{"parent"}, log)
}
