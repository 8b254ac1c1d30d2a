package reactive_test

import (
	"testing"

	"github.com/delaneyj/reactor/reactive"
	"github.com/delaneyj/reactor/tick"
)

type reportedError struct {
	err  error
	info string
}

// newRuntime returns a runtime whose ticks only drain on RunPending. Unless
// overridden by opts, any reported error fails the test.
func newRuntime(t *testing.T, opts ...reactive.Option) (*reactive.Runtime, *tick.Manual) {
	t.Helper()
	m := tick.NewManual()
	base := []reactive.Option{
		reactive.WithErrorHandler(func(err error, vm any, info string) {
			t.Errorf("unexpected error in %s: %v", info, err)
		}),
	}
	return reactive.New(m, append(base, opts...)...), m
}

func captureErrors(errs *[]reportedError) reactive.Option {
	return reactive.WithErrorHandler(func(err error, vm any, info string) {
		*errs = append(*errs, reportedError{err, info})
	})
}

func captureWarnings(warns *[]error) reactive.Option {
	return reactive.WithWarnHandler(func(err error, vm any) {
		*warns = append(*warns, err)
	})
}

func key(o *reactive.Object, k string) reactive.Getter {
	return func(any) (any, error) {
		return o.Get(k), nil
	}
}

type recorder struct {
	calls [][2]any
}

func (r *recorder) cb(newValue, oldValue any) error {
	r.calls = append(r.calls, [2]any{newValue, oldValue})
	return nil
}
