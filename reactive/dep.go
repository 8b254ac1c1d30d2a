package reactive

import "slices"

// Dep is the subscriber list for one piece of reactive state: a property, or
// the structure of an observed Object or Array.
type Dep struct {
	id   uint64
	name string
	rt   *Runtime
	subs []*Watcher
}

func (rt *Runtime) newDep(name string) *Dep {
	return &Dep{
		id:   rt.nextDepID(),
		name: name,
		rt:   rt,
	}
}

func (d *Dep) ID() uint64 {
	return d.id
}

func (d *Dep) Name() string {
	return d.name
}

// Subscribers returns a copy of the current subscriber list.
func (d *Dep) Subscribers() []*Watcher {
	return slices.Clone(d.subs)
}

func (d *Dep) addSub(w *Watcher) {
	if slices.Contains(d.subs, w) {
		return
	}
	d.subs = append(d.subs, w)
}

func (d *Dep) removeSub(w *Watcher) {
	if i := slices.Index(d.subs, w); i >= 0 {
		d.subs = slices.Delete(d.subs, i, i+1)
	}
}

// Depend links the watcher on top of the evaluation stack with d, both ways.
func (d *Dep) Depend() {
	if w := d.rt.stack.peek(); w != nil {
		w.addDep(d)
	}
}

// Notify asks every subscriber to update, in subscription order.
func (d *Dep) Notify() {
	subs := slices.Clone(d.subs)
	for _, w := range subs {
		w.Update()
	}
}
