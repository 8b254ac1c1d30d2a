package reactive

import (
	"math"
	"testing"

	"github.com/delaneyj/reactor/tick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lazyWatcher(t *testing.T, rt *Runtime) *Watcher {
	t.Helper()
	w, err := NewWatcher(rt, nil, nil, nil, WatcherOptions{Lazy: true})
	require.NoError(t, err)
	return w
}

func TestDependOutsideWatcherIsNoop(t *testing.T) {
	rt := New(tick.NewManual())
	d := rt.newDep("x")
	d.Depend()
	assert.Empty(t, d.Subscribers())
}

func TestDependIsIdempotentPerEvaluation(t *testing.T) {
	rt := New(tick.NewManual())
	d := rt.newDep("x")
	w := lazyWatcher(t, rt)

	rt.stack.push(w)
	d.Depend()
	d.Depend()
	rt.stack.pop()

	assert.Equal(t, []*Watcher{w}, d.Subscribers())
	assert.Equal(t, []*Dep{d}, w.newDeps)
}

func TestNilFrameSuspendsTracking(t *testing.T) {
	rt := New(tick.NewManual())
	d := rt.newDep("x")
	w := lazyWatcher(t, rt)

	rt.stack.push(w)
	rt.Untracked(func() {
		d.Depend()
	})
	assert.Same(t, w, rt.Target())
	rt.stack.pop()

	assert.Empty(t, d.Subscribers())
	assert.Nil(t, rt.Target())
}

func TestNotifyReachesEverySubscriber(t *testing.T) {
	rt := New(tick.NewManual())
	d := rt.newDep("x")
	a, b := lazyWatcher(t, rt), lazyWatcher(t, rt)
	d.addSub(a)
	d.addSub(b)
	a.dirty, b.dirty = false, false

	d.removeSub(b)
	d.Notify()
	assert.True(t, a.dirty)
	assert.False(t, b.dirty)

	d.addSub(b)
	d.Notify()
	assert.True(t, b.dirty)
}

func TestDepIDsIncrease(t *testing.T) {
	rt := New(tick.NewManual())
	a, b := rt.newDep("a"), rt.newDep("b")
	assert.Less(t, a.ID(), b.ID())
}

func TestHasChanged(t *testing.T) {
	obj := NewObject()
	m := map[string]int{"a": 1}
	f := func() {}
	for name, tc := range map[string]struct {
		x, y    any
		changed bool
	}{
		"same int":        {1, 1, false},
		"different int":   {1, 2, true},
		"int vs float":    {1, 1.0, true},
		"nan":             {math.NaN(), math.NaN(), false},
		"nan32":           {float32(math.NaN()), float32(math.NaN()), false},
		"nil":             {nil, nil, false},
		"nil vs value":    {nil, 0, true},
		"same pointer":    {obj, obj, false},
		"other pointer":   {obj, NewObject(), true},
		"slice":           {[]int{1}, []int{1}, true},
		"struct of slice": {struct{ s []int }{}, struct{ s []int }{}, true},
		"iface struct":    {struct{ v any }{[]int{1}}, struct{ v any }{[]int{1}}, true},
		"same map":        {m, m, false},
		"other map":       {m, map[string]int{"a": 1}, true},
		"nil maps":        {map[string]int(nil), map[string]int(nil), false},
		"func":            {f, f, true},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.changed, hasChanged(tc.x, tc.y))
		})
	}
}

func TestTraverseCollectsNestedDeps(t *testing.T) {
	rt := New(tick.NewManual())
	leaf := NewObject("v", 1)
	root := NewObject("list", NewArray(leaf, NewArray(2)))
	root.Set("self", root)
	rt.Observe(root)

	w := lazyWatcher(t, rt)
	rt.stack.push(w)
	rt.traverse(root)
	rt.stack.pop()

	names := map[string]bool{}
	for _, d := range w.newDeps {
		names[d.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["self"])
	assert.True(t, names["v"])
	assert.Contains(t, w.newDeps, root.Observer().Dep())
	assert.Contains(t, w.newDeps, leaf.Observer().Dep())
}
