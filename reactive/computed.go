package reactive

import "fmt"

// Computed is a memoized getter. It recomputes only when read after one of
// its dependencies changed, and watchers that read it depend on whatever it
// depends on.
type Computed struct {
	w   *Watcher
	set func(vm any, v any) error
}

// NewComputed creates a lazy computed value over getter.
func (rt *Runtime) NewComputed(vm any, getter Getter) *Computed {
	// lazy watchers do not evaluate on creation, so there is no error yet
	w, _ := NewWatcher(rt, vm, getter, nil, WatcherOptions{
		Lazy:       true,
		Expression: "computed",
	})
	return &Computed{w: w}
}

// Named sets the label used in diagnostics.
func (c *Computed) Named(name string) *Computed {
	c.w.expression = name
	return c
}

// WithSetter makes the computed value assignable.
func (c *Computed) WithSetter(fn func(vm any, v any) error) *Computed {
	c.set = fn
	return c
}

// Value returns the cached value, recomputing it first when dirty.
func (c *Computed) Value() (any, error) {
	w := c.w
	if w.dirty {
		if err := w.Evaluate(); err != nil {
			return nil, fmt.Errorf("computed %q: %w", w.expression, err)
		}
	}
	if w.rt.stack.peek() != nil {
		w.Depend()
	}
	return w.value, nil
}

// Set passes v to the setter.
func (c *Computed) Set(v any) error {
	if c.set == nil {
		c.w.rt.warnf(c.w.vm, ErrNoSetter, "computed %q was assigned to", c.w.expression)
		return ErrNoSetter
	}
	return c.set(c.w.vm, v)
}

// Watcher exposes the lazy watcher backing c.
func (c *Computed) Watcher() *Watcher {
	return c.w
}

func (c *Computed) Stop() {
	c.w.Teardown()
}
