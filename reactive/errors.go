package reactive

import (
	"errors"
	"fmt"

	"github.com/delaneyj/reactor/tick"
)

var (
	// ErrInvalidTarget is reported when Set or Del is called on nil or a
	// primitive value.
	ErrInvalidTarget = errors.New("reactor: cannot set or delete a reactive property on a non-container value")

	// ErrFrozen is reported when a structural mutation targets a frozen value.
	ErrFrozen = errors.New("reactor: target is frozen")

	// ErrRootMutation is reported when a property is added to or removed from
	// an observed root at runtime. Declare root keys upfront instead.
	ErrRootMutation = errors.New("reactor: avoid adding or deleting properties on observed root state at runtime")

	// ErrNoSetter is returned when a computed value without a setter is assigned.
	ErrNoSetter = errors.New("reactor: computed value has no setter")

	// ErrUnknownMethod is returned by Array.Call for a name missing from the
	// interception table.
	ErrUnknownMethod = errors.New("reactor: unknown array method")

	// ErrRunaway is reported when a watcher keeps re-queueing itself within a
	// single flush.
	ErrRunaway = errors.New("reactor: possible infinite update loop")

	// ErrBadPath is reported when a watch expression is not a dot-delimited path.
	ErrBadPath = errors.New("reactor: watcher only accepts simple dot-delimited paths, use a getter for full control")
)

// PanicError is a panic recovered at a user code boundary.
type PanicError = tick.PanicError

// ErrorHandler receives errors raised by user code: watch callbacks and
// getters, render functions and nextTick callbacks. info names the hook.
type ErrorHandler func(err error, vm any, info string)

// WarnHandler receives development-time diagnostics.
type WarnHandler func(err error, vm any)

func (rt *Runtime) handleError(err error, vm any, info string) {
	rt.stats.errors.Add(1)
	if rt.onError != nil {
		rt.onError(err, vm, info)
		return
	}
	rt.logger.Error("reactor: unhandled error", "info", info, "err", err)
}

func (rt *Runtime) warn(err error, vm any) {
	if !rt.dev {
		return
	}
	rt.stats.warnings.Add(1)
	if rt.onWarn != nil {
		rt.onWarn(err, vm)
		return
	}
	rt.logger.Warn(err.Error())
}

func (rt *Runtime) warnf(vm any, sentinel error, format string, args ...any) {
	if !rt.dev {
		return
	}
	rt.warn(fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...), vm)
}

func callGetter(g Getter, vm any) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return g(vm)
}
