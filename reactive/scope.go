package reactive

import "slices"

// Scope collects the watchers created while it runs so they can be torn
// down together, the way a component tears down everything it created.
type Scope struct {
	rt       *Runtime
	parent   *Scope
	watchers []*Watcher
	children []*Scope
	cleanups []func()
	active   bool
}

// NewScope creates a scope nested in the currently running one, if any.
func (rt *Runtime) NewScope() *Scope {
	s := &Scope{
		rt:     rt,
		parent: rt.scope,
		active: true,
	}
	if s.parent != nil {
		s.parent.children = append(s.parent.children, s)
	}
	return s
}

func (s *Scope) Active() bool {
	return s.active
}

// Run makes s the current scope while fn runs. It returns false without
// calling fn when s has been stopped.
func (s *Scope) Run(fn func()) bool {
	if !s.active {
		return false
	}
	prev := s.rt.scope
	s.rt.scope = s
	defer func() { s.rt.scope = prev }()
	fn()
	return true
}

// OnStop registers fn to run when the scope stops.
func (s *Scope) OnStop(fn func()) {
	s.cleanups = append(s.cleanups, fn)
}

// Len is the number of live watchers recorded in s.
func (s *Scope) Len() int {
	return len(s.watchers)
}

// Stop tears down every watcher and nested scope recorded in s. Idempotent.
func (s *Scope) Stop() {
	if !s.active {
		return
	}
	s.active = false

	watchers := s.watchers
	s.watchers = nil
	for _, w := range watchers {
		w.scope = nil
		w.Teardown()
	}
	children := s.children
	s.children = nil
	for _, c := range children {
		c.parent = nil
		c.Stop()
	}
	for _, fn := range s.cleanups {
		fn()
	}
	s.cleanups = nil

	if s.parent != nil {
		s.parent.children = slices.DeleteFunc(s.parent.children, func(c *Scope) bool { return c == s })
		s.parent = nil
	}
}

func (s *Scope) record(w *Watcher) {
	if !s.active {
		return
	}
	w.scope = s
	s.watchers = append(s.watchers, w)
}

func (s *Scope) forget(w *Watcher) {
	s.watchers = slices.DeleteFunc(s.watchers, func(x *Watcher) bool { return x == w })
	w.scope = nil
}
