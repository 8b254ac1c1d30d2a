package reactive

import "fmt"

type WatchOptions struct {
	Deep      bool
	Immediate bool
	Sync      bool
}

// Watch calls cb whenever the value returned by getter changes. Getter and
// callback errors are reported to the error handler. The returned function
// stops the watcher.
func (rt *Runtime) Watch(vm any, getter Getter, cb Callback, opts WatchOptions) (unwatch func()) {
	w, _ := NewWatcher(rt, vm, getter, cb, userOptions(opts, "getter"))
	return rt.startWatch(w, cb, opts)
}

// WatchPath is Watch over a dot-delimited path read from vm.
func (rt *Runtime) WatchPath(vm any, path string, cb Callback, opts WatchOptions) (unwatch func()) {
	w, _ := NewPathWatcher(rt, vm, path, cb, userOptions(opts, path))
	return rt.startWatch(w, cb, opts)
}

func userOptions(opts WatchOptions, expression string) WatcherOptions {
	return WatcherOptions{
		Deep:       opts.Deep,
		Sync:       opts.Sync,
		User:       true,
		Expression: expression,
	}
}

func (rt *Runtime) startWatch(w *Watcher, cb Callback, opts WatchOptions) func() {
	if opts.Immediate && cb != nil {
		rt.Untracked(func() {
			if err := callCallback(cb, w.value, nil); err != nil {
				rt.handleError(err, w.vm, fmt.Sprintf("callback for immediate watcher %q", w.expression))
			}
		})
	}
	return w.Teardown
}

// RenderFunc renders vm. It is re-run whenever state it read changes.
type RenderFunc func(vm any) error

// NewRenderWatcher wraps render in a watcher. Render errors are reported to
// the error handler with info "render". before runs ahead of every re-render
// and after once the flush that re-rendered has drained; either may be nil.
func (rt *Runtime) NewRenderWatcher(vm any, render RenderFunc, before, after func()) *Watcher {
	getter := func(vm any) (any, error) {
		_, err := callGetter(func(vm any) (any, error) {
			return nil, render(vm)
		}, vm)
		if err != nil {
			rt.handleError(err, vm, "render")
		}
		return nil, nil
	}
	// the getter never fails, so neither does the first evaluation
	w, _ := NewWatcher(rt, vm, getter, nil, WatcherOptions{
		Before:     before,
		After:      after,
		Expression: "render",
	})
	return w
}
