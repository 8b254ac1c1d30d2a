package reactive

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// Getter computes a watcher's value. It is called with the owning instance
// and may read any reactive state.
type Getter func(vm any) (any, error)

// Callback receives a watcher's new and previous values.
type Callback func(newValue, oldValue any) error

type WatcherOptions struct {
	// Deep traverses the value so nested properties are dependencies too.
	Deep bool
	// User marks the getter and callback as user code: their errors are
	// reported to the error handler instead of returned.
	User bool
	// Lazy defers evaluation until Evaluate; updates only mark it dirty.
	Lazy bool
	// Sync runs the watcher on notification instead of queueing it.
	Sync bool
	// Before runs right before the scheduler re-runs the watcher.
	Before func()
	// After runs once the flush that re-ran the watcher has drained.
	After func()
	// OnStop runs on the first Teardown.
	OnStop func()
	// Expression labels the watcher in diagnostics.
	Expression string
}

// Watcher is a reactive computation: a getter, its last value, and the deps
// the getter read. When any of those deps notify, the watcher re-runs and
// invokes its callback with the new and old values.
type Watcher struct {
	rt         *Runtime
	scope      *Scope
	vm         any
	id         uint64
	expression string
	getter     Getter
	cb         Callback

	deep, user, lazy, sync bool
	dirty, active          bool

	deps, newDeps     []*Dep
	depIDs, newDepIDs mapset.Set[uint64]

	before, after, onStop func()

	value any
}

// NewWatcher creates a watcher and, unless it is lazy, evaluates it once.
// An error is only returned by the first evaluation of a non-user getter.
func NewWatcher(rt *Runtime, vm any, getter Getter, cb Callback, opts WatcherOptions) (*Watcher, error) {
	w := &Watcher{
		rt:         rt,
		vm:         vm,
		id:         rt.nextWatcherID(),
		expression: opts.Expression,
		getter:     getter,
		cb:         cb,
		deep:       opts.Deep,
		user:       opts.User,
		lazy:       opts.Lazy,
		sync:       opts.Sync,
		dirty:      opts.Lazy,
		active:     true,
		depIDs:     mapset.NewThreadUnsafeSet[uint64](),
		newDepIDs:  mapset.NewThreadUnsafeSet[uint64](),
		before:     opts.Before,
		after:      opts.After,
		onStop:     opts.OnStop,
	}
	if w.getter == nil {
		w.getter = noopGetter
	}
	if rt.scope != nil {
		rt.scope.record(w)
	}

	if !w.lazy {
		v, err := w.get()
		if err != nil {
			return w, err
		}
		w.value = v
	}
	return w, nil
}

// NewPathWatcher watches a dot-delimited path read from vm, such as "a.b.c".
// A path that cannot be parsed yields a warning and a watcher that never
// fires.
func NewPathWatcher(rt *Runtime, vm any, path string, cb Callback, opts WatcherOptions) (*Watcher, error) {
	getter := parsePath(path)
	if getter == nil {
		rt.warnf(vm, ErrBadPath, "failed watching path %q", path)
		getter = noopGetter
	}
	if opts.Expression == "" {
		opts.Expression = path
	}
	return NewWatcher(rt, vm, getter, cb, opts)
}

func noopGetter(any) (any, error) {
	return nil, nil
}

func (w *Watcher) ID() uint64 {
	return w.id
}

func (w *Watcher) Expression() string {
	return w.expression
}

// Value returns the cached value from the last evaluation.
func (w *Watcher) Value() any {
	return w.value
}

func (w *Watcher) Dirty() bool {
	return w.dirty
}

func (w *Watcher) Active() bool {
	return w.active
}

// Deps returns the deps collected by the last evaluation.
func (w *Watcher) Deps() []*Dep {
	return append([]*Dep(nil), w.deps...)
}

// get evaluates the getter and re-collects dependencies.
func (w *Watcher) get() (value any, err error) {
	w.rt.stack.push(w)
	defer func() {
		if w.deep {
			w.rt.traverse(value)
		}
		w.rt.stack.pop()
		w.cleanupDeps()
	}()

	if !w.user {
		return w.getter(w.vm)
	}
	value, err = callGetter(w.getter, w.vm)
	if err != nil {
		w.rt.handleError(err, w.vm, fmt.Sprintf("getter for watcher %q", w.expression))
		return w.value, nil
	}
	return value, nil
}

func (w *Watcher) addDep(d *Dep) {
	if !w.newDepIDs.Add(d.id) {
		return
	}
	w.newDeps = append(w.newDeps, d)
	if !w.depIDs.Contains(d.id) {
		d.addSub(w)
	}
}

// cleanupDeps unsubscribes from deps the last evaluation no longer read and
// makes the newly collected set current.
func (w *Watcher) cleanupDeps() {
	for i := len(w.deps) - 1; i >= 0; i-- {
		if d := w.deps[i]; !w.newDepIDs.Contains(d.id) {
			d.removeSub(w)
		}
	}
	w.depIDs, w.newDepIDs = w.newDepIDs, w.depIDs
	w.newDepIDs.Clear()
	w.deps, w.newDeps = w.newDeps, w.deps
	clear(w.newDeps)
	w.newDeps = w.newDeps[:0]
}

// Update is called when a dependency changes.
func (w *Watcher) Update() {
	switch {
	case w.lazy:
		w.dirty = true
	case w.sync:
		if err := w.Run(); err != nil {
			w.rt.handleError(err, w.vm, fmt.Sprintf("sync watcher %q", w.expression))
		}
	default:
		w.rt.scheduler.queue(w)
	}
}

// Run re-evaluates the watcher and invokes the callback if the value changed.
// Objects and deep watchers always invoke it since their contents may have
// changed in place.
func (w *Watcher) Run() error {
	if !w.active {
		return nil
	}
	w.rt.stats.runs.Add(1)

	value, err := w.get()
	if err != nil {
		return err
	}
	if !hasChanged(value, w.value) && !isObject(value) && !w.deep {
		return nil
	}

	oldValue := w.value
	w.value = value
	if w.cb == nil {
		return nil
	}
	if !w.user {
		return w.cb(value, oldValue)
	}
	err = callCallback(w.cb, value, oldValue)
	if err != nil {
		w.rt.handleError(err, w.vm, fmt.Sprintf("callback for watcher %q", w.expression))
	}
	return nil
}

// Evaluate recomputes a lazy watcher and clears its dirty flag.
func (w *Watcher) Evaluate() error {
	v, err := w.get()
	if err != nil {
		return err
	}
	w.value = v
	w.dirty = false
	return nil
}

// Depend makes the watcher on top of the stack depend on every dep this
// watcher collected.
func (w *Watcher) Depend() {
	for i := len(w.deps) - 1; i >= 0; i-- {
		w.deps[i].Depend()
	}
}

// Teardown unsubscribes from every dep. The watcher never runs again. Safe to
// call more than once and during a flush.
func (w *Watcher) Teardown() {
	if w.scope != nil {
		w.scope.forget(w)
	}
	if !w.active {
		return
	}
	for i := len(w.deps) - 1; i >= 0; i-- {
		w.deps[i].removeSub(w)
	}
	w.active = false
	if w.onStop != nil {
		w.onStop()
	}
}

func callCallback(cb Callback, newValue, oldValue any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return cb(newValue, oldValue)
}
