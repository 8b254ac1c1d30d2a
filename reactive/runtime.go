// Package reactive turns plain Objects and Arrays into instrumented state,
// records which watchers read which properties, and re-runs exactly the
// affected watchers once per tick, in creation order.
package reactive

import (
	"log/slog"
	"sync/atomic"

	"github.com/delaneyj/reactor/tick"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/delaneyj/reactor/reactive"

// Runtime owns everything the reactivity core shares: the evaluation stack,
// the scheduler queue and the tick batcher. A Runtime is single threaded; all
// reads and writes of state observed by it must happen on one goroutine, for
// example inside tasks posted to a tick.Loop.
type Runtime struct {
	options

	stack     evalStack
	scheduler *Scheduler
	ticker    *tick.Batcher
	scope     *Scope
	observing bool

	depUID     uint64
	watcherUID uint64

	stats stats
}

// New creates a Runtime whose flushes are armed through d.
func New(d tick.Dispatcher, opts ...Option) *Runtime {
	o := options{
		dev:            true,
		maxUpdateCount: DefaultMaxUpdateCount,
		logger:         slog.Default(),
		tracer:         noop.NewTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}

	rt := &Runtime{
		options:   o,
		observing: true,
	}
	rt.ticker = tick.NewBatcher(d, func(err error, info string) {
		rt.handleError(err, nil, info)
	})
	rt.ticker.OnArm(func() {
		rt.stats.ticks.Add(1)
	})
	rt.scheduler = newScheduler(rt)
	return rt
}

// NextTick runs cb after the current batch of reactive updates has been
// flushed. cb may be nil; the returned channel closes once the batch drains.
// Do not block on the channel from the goroutine that drains the batch.
func (rt *Runtime) NextTick(cb func() error) <-chan struct{} {
	return rt.ticker.NextTick(cb)
}

// Scheduler returns the runtime's watcher queue.
func (rt *Runtime) Scheduler() *Scheduler {
	return rt.scheduler
}

// Target returns the watcher currently collecting dependencies, if any.
func (rt *Runtime) Target() *Watcher {
	return rt.stack.peek()
}

// Untracked runs fn without collecting dependencies for the current watcher.
func (rt *Runtime) Untracked(fn func()) {
	rt.stack.push(nil)
	defer rt.stack.pop()
	fn()
}

// ToggleObserving turns instrumentation of new values on or off.
// Values that already carry an Observer are unaffected.
func (rt *Runtime) ToggleObserving(on bool) {
	rt.observing = on
}

func (rt *Runtime) nextDepID() uint64 {
	rt.depUID++
	return rt.depUID
}

func (rt *Runtime) nextWatcherID() uint64 {
	rt.watcherUID++
	return rt.watcherUID
}

// evalStack is the stack of watchers currently evaluating. Only the top frame
// collects dependencies; a nil frame disables collection.
type evalStack struct {
	frames []*Watcher
}

func (s *evalStack) push(w *Watcher) {
	s.frames = append(s.frames, w)
}

func (s *evalStack) pop() {
	last := len(s.frames) - 1
	s.frames[last] = nil
	s.frames = s.frames[:last]
}

func (s *evalStack) peek() *Watcher {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// Stats is a snapshot of a Runtime's counters.
type Stats struct {
	Ticks          uint64
	Flushes        uint64
	WatcherRuns    uint64
	RunawayDrops   uint64
	ErrorsReported uint64
	Warnings       uint64
}

type stats struct {
	ticks, flushes, runs, runaway, errors, warnings atomic.Uint64
}

// Stats may be called from any goroutine.
func (rt *Runtime) Stats() Stats {
	return Stats{
		Ticks:          rt.stats.ticks.Load(),
		Flushes:        rt.stats.flushes.Load(),
		WatcherRuns:    rt.stats.runs.Load(),
		RunawayDrops:   rt.stats.runaway.Load(),
		ErrorsReported: rt.stats.errors.Load(),
		Warnings:       rt.stats.warnings.Load(),
	}
}
