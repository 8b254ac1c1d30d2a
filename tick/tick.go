package tick

import (
	"fmt"
	"sync"
)

// Dispatcher arms a single microtask. Implementations must run fn exactly once,
// after the code that called Dispatch has returned to its event loop.
type Dispatcher interface {
	Dispatch(fn func())
}

// OnErrorFunc receives errors raised by callbacks while a batch drains.
type OnErrorFunc func(err error, info string)

// PanicError is a panic recovered from a callback.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Call runs fn and turns a panic into a *PanicError.
func Call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn()
}

type entry struct {
	cb   func() error
	done chan struct{}
}

// Batcher queues callbacks and drains them together in one microtask.
type Batcher struct {
	mu         sync.Mutex
	dispatcher Dispatcher
	onError    OnErrorFunc
	callbacks  []entry
	pending    bool
	armed      func()
}

func NewBatcher(d Dispatcher, onError OnErrorFunc) *Batcher {
	b := &Batcher{
		dispatcher: d,
		onError:    onError,
	}
	return b
}

// OnArm registers fn to be called every time a new microtask is armed.
func (b *Batcher) OnArm(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.armed = fn
}

// NextTick schedules cb to run after the current batch of updates drains.
// cb may be nil. The returned channel is closed once the batch that cb was
// queued in has fully drained.
func (b *Batcher) NextTick(cb func() error) <-chan struct{} {
	done := make(chan struct{})

	b.mu.Lock()
	b.callbacks = append(b.callbacks, entry{cb: cb, done: done})
	arm := !b.pending
	if arm {
		b.pending = true
	}
	armed := b.armed
	b.mu.Unlock()

	if arm {
		if armed != nil {
			armed()
		}
		b.dispatcher.Dispatch(b.flush)
	}
	return done
}

// Pending reports whether a drain is armed but has not started yet.
func (b *Batcher) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

func (b *Batcher) flush() {
	b.mu.Lock()
	copies := b.callbacks
	b.callbacks = nil
	b.pending = false
	b.mu.Unlock()

	for _, e := range copies {
		if e.cb == nil {
			continue
		}
		if err := Call(e.cb); err != nil && b.onError != nil {
			b.onError(err, "nextTick")
		}
	}
	for _, e := range copies {
		close(e.done)
	}
}
