package reactive

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxUpdateCount is how many times a single watcher may be re-queued
// within one flush before it is treated as a runaway update loop.
const DefaultMaxUpdateCount = 100

// Option configures a Runtime.
type Option func(*options)

type options struct {
	dev            bool
	maxUpdateCount int
	logger         *slog.Logger
	onError        ErrorHandler
	onWarn         WarnHandler
	tracer         trace.Tracer
}

// WithDevMode toggles development diagnostics. Development mode is on by
// default; in production the same operations are still rejected, silently.
func WithDevMode(dev bool) Option {
	return func(o *options) {
		o.dev = dev
	}
}

// WithMaxUpdateCount sets the runaway loop bound. Values below 1 are ignored.
func WithMaxUpdateCount(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxUpdateCount = n
		}
	}
}

// WithLogger sets the logger used when no error or warn handler is configured.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithErrorHandler routes errors raised by user code to fn.
//
// Example:
//
//	rt := reactive.New(d, reactive.WithErrorHandler(func(err error, vm any, info string) {
//	    log.Printf("%s: %v", info, err)
//	}))
func WithErrorHandler(fn ErrorHandler) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// WithWarnHandler routes development warnings to fn instead of the logger.
func WithWarnHandler(fn WarnHandler) Option {
	return func(o *options) {
		o.onWarn = fn
	}
}

// WithTracer records a span for every scheduler flush.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}
