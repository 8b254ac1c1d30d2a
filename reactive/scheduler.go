package reactive

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Scheduler batches watcher re-runs into one flush per tick. Within a flush
// watchers run in ascending id order, so watchers created first (parents,
// computed and user watchers) run before the ones created after them.
type Scheduler struct {
	rt *Runtime

	pending  []*Watcher
	has      map[uint64]bool
	ran      map[uint64]bool
	circular map[uint64]int
	dropped  map[uint64]bool

	waiting  bool
	flushing bool
	index    int
}

func newScheduler(rt *Runtime) *Scheduler {
	return &Scheduler{
		rt:       rt,
		has:      map[uint64]bool{},
		ran:      map[uint64]bool{},
		circular: map[uint64]int{},
		dropped:  map[uint64]bool{},
	}
}

// Len is the number of watchers waiting in the queue.
func (s *Scheduler) Len() int {
	return len(s.pending) - s.index
}

// Waiting reports whether a flush has been armed.
func (s *Scheduler) Waiting() bool {
	return s.waiting
}

// Flushing reports whether a flush is running.
func (s *Scheduler) Flushing() bool {
	return s.flushing
}

func (s *Scheduler) queue(w *Watcher) {
	id := w.id
	if s.has[id] || s.dropped[id] {
		return
	}
	if s.flushing && s.ran[id] {
		s.circular[id]++
		if s.circular[id] > s.rt.maxUpdateCount {
			s.dropped[id] = true
			s.rt.stats.runaway.Add(1)
			s.rt.warnf(w.vm, ErrRunaway, "watcher %q re-queued more than %d times in one flush", w.expression, s.rt.maxUpdateCount)
			return
		}
	}
	s.has[id] = true

	if !s.flushing {
		s.pending = append(s.pending, w)
	} else {
		// keep the unprocessed part sorted so w still runs in this flush
		i := len(s.pending) - 1
		for i > s.index && s.pending[i].id > id {
			i--
		}
		s.pending = slices.Insert(s.pending, i+1, w)
	}

	if !s.waiting {
		s.waiting = true
		s.rt.NextTick(s.flush)
	}
}

// flush runs the queued watchers. An error from an internal watcher ends the
// flush and is returned; watchers still waiting behind it are queued again
// for the next tick.
func (s *Scheduler) flush() (err error) {
	_, span := s.rt.tracer.Start(context.Background(), "reactor.flush")
	s.rt.stats.flushes.Add(1)
	s.flushing = true
	runs, total := 0, 0
	drained := false
	defer func() {
		span.SetAttributes(
			attribute.Int("queue.length", total),
			attribute.Int("watchers.run", runs),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		// an error or a panic in a watcher must not leave the gates closed
		if !drained {
			s.reset()
		}
		span.End()
	}()

	slices.SortFunc(s.pending, func(a, b *Watcher) int {
		return cmp.Compare(a.id, b.id)
	})

	for s.index = 0; s.index < len(s.pending); s.index++ {
		total = len(s.pending)
		w := s.pending[s.index]
		delete(s.has, w.id)
		if !w.active || s.dropped[w.id] {
			continue
		}
		if w.before != nil {
			w.before()
		}
		s.ran[w.id] = true
		runs++
		if err := w.Run(); err != nil {
			// the failed watcher is abandoned; the ones behind it get a new flush
			var rest []*Watcher
			for _, next := range s.pending[s.index+1:] {
				if next.active && !s.dropped[next.id] {
					rest = append(rest, next)
				}
			}
			drained = true
			s.reset()
			for _, next := range rest {
				s.queue(next)
			}
			return fmt.Errorf("flush watcher %q: %w", w.expression, err)
		}
	}

	flushed := s.pending
	drained = true
	s.reset()

	called := make(map[uint64]bool, len(flushed))
	for _, w := range flushed {
		if called[w.id] || !w.active || w.after == nil {
			continue
		}
		called[w.id] = true
		w.after()
	}
	return nil
}

func (s *Scheduler) reset() {
	s.pending = nil
	s.index = 0
	clear(s.has)
	clear(s.ran)
	clear(s.circular)
	clear(s.dropped)
	s.waiting = false
	s.flushing = false
}
