package tick

import (
	"context"
	"sync"
)

// Manual holds armed microtasks until RunPending is called.
// Useful for tests and benchmarks where the caller owns the event loop.
type Manual struct {
	mu    sync.Mutex
	tasks []func()
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Dispatch(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, fn)
}

// Len returns the number of armed microtasks.
func (m *Manual) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// RunPending runs microtasks in FIFO order until none are left, including
// microtasks armed by the ones it runs. It returns how many ran.
func (m *Manual) RunPending() int {
	ran := 0
	for {
		m.mu.Lock()
		if len(m.tasks) == 0 {
			m.mu.Unlock()
			return ran
		}
		fn := m.tasks[0]
		m.tasks = m.tasks[1:]
		m.mu.Unlock()

		fn()
		ran++
	}
}

// Loop is a single goroutine event loop. Macrotasks are submitted with Post;
// microtasks armed through Dispatch run after the current macrotask returns,
// before the next macrotask starts.
type Loop struct {
	tasks chan func()
	wake  chan struct{}

	mu    sync.Mutex
	micro []func()
}

func NewLoop(backlog int) *Loop {
	return &Loop{
		tasks: make(chan func(), backlog),
		wake:  make(chan struct{}, 1),
	}
}

// Post submits a macrotask. It blocks when the backlog is full.
func (l *Loop) Post(fn func()) {
	l.tasks <- fn
}

func (l *Loop) Dispatch(fn func()) {
	l.mu.Lock()
	l.micro = append(l.micro, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run processes tasks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
			l.drainMicrotasks()
		case <-l.wake:
			l.drainMicrotasks()
		}
	}
}

func (l *Loop) drainMicrotasks() {
	for {
		l.mu.Lock()
		if len(l.micro) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.micro[0]
		l.micro = l.micro[1:]
		l.mu.Unlock()

		fn()
	}
}
