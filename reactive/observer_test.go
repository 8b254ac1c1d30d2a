package reactive_test

import (
	"math"
	"testing"

	"github.com/delaneyj/reactor/reactive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveIsIdempotent(t *testing.T) {
	rt, _ := newRuntime(t)
	o := reactive.NewObject("a", 1, "nested", reactive.NewObject("b", 2))

	ob := rt.Observe(o)
	require.NotNil(t, ob)
	assert.Same(t, ob, rt.Observe(o))
	assert.Same(t, ob, o.Observer())
	assert.Same(t, o, ob.Value())

	nested := o.Get("nested").(*reactive.Object)
	assert.NotNil(t, nested.Observer())

	p, ok := o.Property("a")
	require.True(t, ok)
	assert.True(t, p.IsAccessor())
	assert.Equal(t, []string{"a", "nested"}, o.Keys())
}

func TestObserveSkipsIneligibleValues(t *testing.T) {
	rt, _ := newRuntime(t)

	assert.Nil(t, rt.Observe(1))
	assert.Nil(t, rt.Observe("x"))
	assert.Nil(t, rt.Observe(nil))
	assert.Nil(t, rt.Observe(map[string]any{"a": 1}))
	assert.Nil(t, rt.Observe(reactive.NewObject("a", 1).Freeze()))
	assert.Nil(t, rt.Observe(reactive.NewObject("a", 1).PreventExtensions()))
	assert.Nil(t, rt.Observe(reactive.NewObject("a", 1).MarkRaw()))
	assert.Nil(t, rt.Observe(reactive.NewArray(1).Freeze()))

	rt.ToggleObserving(false)
	off := reactive.NewObject("a", 1)
	assert.Nil(t, rt.Observe(off))
	rt.ToggleObserving(true)
	assert.NotNil(t, rt.Observe(off))
}

func TestObserveCycleTerminates(t *testing.T) {
	rt, _ := newRuntime(t)
	a := reactive.NewObject("name", "a")
	b := reactive.NewObject("name", "b", "peer", a)
	a.Set("peer", b)
	a.Set("self", a)

	ob := rt.Observe(a)
	require.NotNil(t, ob)
	assert.NotNil(t, b.Observer())
	assert.Same(t, a, a.Get("self"))
}

func TestObserveShallowLeavesNestedValuesAlone(t *testing.T) {
	rt, m := newRuntime(t)
	nested := reactive.NewObject("v", 1)
	o := reactive.NewObject("nested", nested)
	require.NotNil(t, rt.ObserveShallow(o))
	assert.Nil(t, nested.Observer())

	r := &recorder{}
	rt.Watch(o, func(any) (any, error) {
		return o.Get("nested").(*reactive.Object).Get("v"), nil
	}, r.cb, reactive.WatchOptions{})

	nested.Set("v", 2)
	assert.Zero(t, rt.Scheduler().Len())

	o.Set("nested", reactive.NewObject("v", 3))
	m.RunPending()
	assert.Equal(t, [][2]any{{3, 1}}, r.calls)
}

func TestReactiveWriteSchedulesWatcher(t *testing.T) {
	rt, m := newRuntime(t)
	obj := reactive.NewObject("a", 1)
	rt.Observe(obj)

	r := &recorder{}
	rt.Watch(obj, key(obj, "a"), r.cb, reactive.WatchOptions{})

	obj.Set("a", 2)
	assert.Equal(t, 1, rt.Scheduler().Len())
	assert.True(t, rt.Scheduler().Waiting())
	assert.Empty(t, r.calls)

	assert.Equal(t, 1, m.RunPending())
	assert.Equal(t, [][2]any{{2, 1}}, r.calls)
	assert.False(t, rt.Scheduler().Waiting())
}

func TestWriteOfEqualValueDoesNotNotify(t *testing.T) {
	rt, m := newRuntime(t)
	tags := map[string]bool{"go": true}
	obj := reactive.NewObject("a", 1, "f", math.NaN(), "tags", tags)
	rt.Observe(obj)

	r := &recorder{}
	rt.Watch(obj, key(obj, "a"), r.cb, reactive.WatchOptions{})
	rt.Watch(obj, key(obj, "f"), r.cb, reactive.WatchOptions{})
	rt.Watch(obj, key(obj, "tags"), r.cb, reactive.WatchOptions{})

	obj.Set("a", 1)
	obj.Set("f", math.NaN())
	obj.Set("tags", tags)
	assert.Zero(t, rt.Scheduler().Len())
	assert.Zero(t, m.Len())
}

func TestAssignedValueBecomesReactive(t *testing.T) {
	rt, m := newRuntime(t)
	obj := reactive.NewObject("user", nil)
	rt.Observe(obj)

	r := &recorder{}
	rt.WatchPath(obj, "user.name", r.cb, reactive.WatchOptions{})

	user := reactive.NewObject("name", "ada")
	obj.Set("user", user)
	m.RunPending()
	require.NotNil(t, user.Observer())

	user.Set("name", "grace")
	m.RunPending()
	assert.Equal(t, [][2]any{{"ada", nil}, {"grace", "ada"}}, r.calls)
}

func TestAccessorPropertiesPassThrough(t *testing.T) {
	rt, m := newRuntime(t)
	backing := 1
	obj := reactive.NewObject()
	obj.DefineAccessor("v", func() any { return backing }, func(v any) { backing = v.(int) })
	obj.DefineAccessor("ro", func() any { return "fixed" }, nil)
	rt.Observe(obj)

	r := &recorder{}
	rt.Watch(obj, key(obj, "v"), r.cb, reactive.WatchOptions{})
	rt.Watch(obj, key(obj, "ro"), r.cb, reactive.WatchOptions{})

	obj.Set("v", 5)
	assert.Equal(t, 5, backing)
	obj.Set("ro", "changed")
	assert.Equal(t, "fixed", obj.Get("ro"))

	m.RunPending()
	assert.Equal(t, [][2]any{{5, 1}}, r.calls)
}

func TestDefineReactive(t *testing.T) {
	rt, m := newRuntime(t)
	obj := reactive.NewObject()
	dep := rt.DefineReactive(obj, "count", 1)
	assert.Equal(t, "count", dep.Name())

	r := &recorder{}
	w, err := reactive.NewWatcher(rt, obj, key(obj, "count"), r.cb, reactive.WatcherOptions{})
	require.NoError(t, err)
	assert.Equal(t, []*reactive.Watcher{w}, dep.Subscribers())

	obj.Set("count", 2)
	m.RunPending()
	assert.Equal(t, [][2]any{{2, 1}}, r.calls)
}

func TestSetAddsReactiveKey(t *testing.T) {
	rt, m := newRuntime(t)
	state := reactive.NewObject("profile", reactive.NewObject("name", "ada"))
	rt.Observe(state)
	profile := state.Get("profile").(*reactive.Object)

	var keys [][]string
	rt.Watch(state, func(any) (any, error) {
		keys = append(keys, profile.Keys())
		return state.Get("profile"), nil
	}, nil, reactive.WatchOptions{})

	assert.Equal(t, "x", rt.Set(profile, "email", "x"))
	assert.Equal(t, 1, rt.Scheduler().Len())
	m.RunPending()
	assert.Equal(t, [][]string{{"name"}, {"name", "email"}}, keys)

	r := &recorder{}
	rt.Watch(profile, key(profile, "email"), r.cb, reactive.WatchOptions{})
	profile.Set("email", "y")
	m.RunPending()
	assert.Equal(t, [][2]any{{"y", "x"}}, r.calls)
}

func TestSetOnUnobservedObjectIsPlainAssignment(t *testing.T) {
	rt, _ := newRuntime(t)
	o := reactive.NewObject()
	assert.Equal(t, 1, rt.Set(o, "a", 1))
	assert.Equal(t, 2, rt.Set(o, 7, 2))
	assert.Equal(t, []string{"a", "7"}, o.Keys())
	assert.Nil(t, o.Observer())
}

func TestSetBeyondArrayLengthNotifiesOnce(t *testing.T) {
	rt, _ := newRuntime(t)
	state := reactive.NewObject("list", reactive.NewArray("a"))
	rt.Observe(state)
	list := state.Get("list").(*reactive.Array)

	notified := 0
	rt.Watch(state, key(state, "list"), func(any, any) error {
		notified++
		return nil
	}, reactive.WatchOptions{Sync: true})

	rt.Set(list, 3, "d")
	assert.Equal(t, 1, notified)
	assert.Equal(t, []any{"a", nil, nil, "d"}, list.Items())

	rt.Set(list, 0, reactive.NewObject("k", 1))
	assert.Equal(t, 2, notified)
	assert.NotNil(t, list.At(0).(*reactive.Object).Observer())
}

func TestSetAndDelRejectRootState(t *testing.T) {
	var warns []error
	rt, m := newRuntime(t, captureWarnings(&warns))
	root := reactive.NewObject("a", 1)
	ob := rt.ObserveRoot(root)
	assert.Equal(t, 1, ob.RootCount())

	rt.Set(root, "b", 2)
	rt.Del(root, "a")
	assert.Equal(t, []string{"a"}, root.Keys())
	require.Len(t, warns, 2)
	assert.ErrorIs(t, warns[0], reactive.ErrRootMutation)
	assert.ErrorIs(t, warns[1], reactive.ErrRootMutation)

	rt.Set(root, "a", 3)
	assert.Equal(t, 3, root.Get("a"))
	assert.Len(t, warns, 2)
	assert.Zero(t, m.Len())
}

func TestSetAndDelRejectInvalidTargets(t *testing.T) {
	var warns []error
	rt, _ := newRuntime(t, captureWarnings(&warns))

	assert.Nil(t, rt.Set(nil, "a", 1))
	assert.Nil(t, rt.Set(42, "a", 1))
	assert.Nil(t, rt.Set(reactive.NewArray(), "x", 1))
	rt.Del("str", "a")

	frozen := reactive.NewObject("a", 1).Freeze()
	assert.Nil(t, rt.Set(frozen, "b", 2))
	rt.Del(frozen, "a")
	assert.True(t, frozen.Has("a"))

	require.Len(t, warns, 6)
	for _, err := range warns[:4] {
		assert.ErrorIs(t, err, reactive.ErrInvalidTarget)
	}
	assert.ErrorIs(t, warns[4], reactive.ErrFrozen)
	assert.ErrorIs(t, warns[5], reactive.ErrFrozen)
	assert.Equal(t, uint64(6), rt.Stats().Warnings)
}

func TestWarningsAreSilentOutsideDevMode(t *testing.T) {
	var warns []error
	rt, _ := newRuntime(t, captureWarnings(&warns), reactive.WithDevMode(false))
	rt.Set(nil, "a", 1)
	assert.Empty(t, warns)
	assert.Zero(t, rt.Stats().Warnings)
}

func TestDelMissingKeyDoesNotNotify(t *testing.T) {
	rt, m := newRuntime(t)
	state := reactive.NewObject("obj", reactive.NewObject("a", 1))
	rt.Observe(state)
	obj := state.Get("obj").(*reactive.Object)

	r := &recorder{}
	rt.Watch(state, key(state, "obj"), r.cb, reactive.WatchOptions{Deep: true})

	rt.Del(obj, "missing")
	assert.Zero(t, rt.Scheduler().Len())
	m.RunPending()
	assert.Empty(t, r.calls)

	rt.Del(obj, "a")
	assert.Equal(t, 1, rt.Scheduler().Len())
	m.RunPending()
	assert.Len(t, r.calls, 1)
	assert.False(t, obj.Has("a"))
}

func TestDelArrayIndex(t *testing.T) {
	rt, m := newRuntime(t)
	state := reactive.NewObject("list", reactive.NewArray(1, 2, 3))
	rt.Observe(state)
	list := state.Get("list").(*reactive.Array)

	r := &recorder{}
	rt.Watch(state, key(state, "list"), r.cb, reactive.WatchOptions{})

	rt.Del(list, 1)
	m.RunPending()
	assert.Equal(t, []any{1, 3}, list.Items())
	assert.Len(t, r.calls, 1)

	// numeric string keys index arrays too
	rt.Del(list, "0")
	m.RunPending()
	assert.Equal(t, []any{3}, list.Items())
	assert.Len(t, r.calls, 2)

	rt.Set(list, "2", 5)
	m.RunPending()
	assert.Equal(t, []any{3, nil, 5}, list.Items())
	assert.Len(t, r.calls, 3)
}

func TestNestedArraysAreDependedOn(t *testing.T) {
	rt, m := newRuntime(t)
	inner := reactive.NewArray(1)
	state := reactive.NewObject("grid", reactive.NewArray(inner))
	rt.Observe(state)

	r := &recorder{}
	rt.Watch(state, key(state, "grid"), r.cb, reactive.WatchOptions{})

	inner.Push(2)
	assert.Equal(t, 1, rt.Scheduler().Len())
	m.RunPending()
	assert.Len(t, r.calls, 1)
}

func TestUntrackedReadsAreNotCollected(t *testing.T) {
	rt, m := newRuntime(t)
	obj := reactive.NewObject("a", 1, "b", 1)
	rt.Observe(obj)

	w, err := reactive.NewWatcher(rt, obj, func(any) (any, error) {
		var b any
		rt.Untracked(func() {
			assert.Nil(t, rt.Target())
			b = obj.Get("b")
		})
		return obj.Get("a").(int) + b.(int), nil
	}, nil, reactive.WatcherOptions{})
	require.NoError(t, err)
	assert.Len(t, w.Deps(), 1)

	obj.Set("b", 2)
	assert.Zero(t, m.Len())
	obj.Set("a", 2)
	m.RunPending()
	assert.Equal(t, 4, w.Value())
}
