package reactive

import (
	"fmt"
	"slices"
)

// header carries the flags shared by every container value and the marker
// pointing at its Observer.
type header struct {
	ob     *Observer
	frozen bool
	sealed bool
	raw    bool
}

type container interface {
	meta() *header
}

// Property is one slot of an Object: either a data value or an accessor pair.
type Property struct {
	value any
	get   func() any
	set   func(any)
}

// IsAccessor reports whether the property is backed by get/set functions.
func (p *Property) IsAccessor() bool {
	return p.get != nil || p.set != nil
}

// Object is an ordered, string keyed property map. Keys enumerate in insertion
// order and are never duplicated. Once observed, every property read inside a
// watcher is tracked and every write notifies its subscribers.
type Object struct {
	header
	keys  []string
	props map[string]*Property
}

// NewObject builds an object from alternating keys and values.
//
//	o := NewObject("a", 1, "b", NewArray(1, 2))
func NewObject(kv ...any) *Object {
	if len(kv)%2 != 0 {
		panic("reactor: NewObject needs an even number of arguments")
	}
	o := &Object{props: make(map[string]*Property, len(kv)/2)}
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("reactor: NewObject key %d is %T, not string", i/2, kv[i]))
		}
		o.Set(key, kv[i+1])
	}
	return o
}

func (o *Object) meta() *header {
	return &o.header
}

// Observer returns the Observer attached to o, if any.
func (o *Object) Observer() *Observer {
	return o.ob
}

// Get reads key, through its getter when the property is an accessor.
// Missing keys read as nil.
func (o *Object) Get(key string) any {
	v, _ := o.Lookup(key)
	return v
}

// Lookup is Get that also reports whether key exists.
func (o *Object) Lookup(key string) (any, bool) {
	p, ok := o.props[key]
	if !ok {
		return nil, false
	}
	if p.get != nil {
		return p.get(), true
	}
	return p.value, true
}

// Set assigns key. Existing properties are written through their setter and
// getter-only accessors ignore the write. A missing key is added as a plain
// data property unless the object is frozen or not extensible. Adding a key
// this way is not observable; use Runtime.Set for that.
func (o *Object) Set(key string, v any) {
	if o.frozen {
		return
	}
	if p, ok := o.props[key]; ok {
		switch {
		case p.set != nil:
			p.set(v)
		case p.get != nil:
		default:
			p.value = v
		}
		return
	}
	if o.sealed {
		return
	}
	o.keys = append(o.keys, key)
	o.props[key] = &Property{value: v}
}

// DefineAccessor installs get/set for key, replacing any existing property but
// keeping its position. Either function may be nil.
func (o *Object) DefineAccessor(key string, get func() any, set func(any)) {
	o.define(key, &Property{get: get, set: set})
}

func (o *Object) define(key string, p *Property) {
	if o.frozen {
		return
	}
	if _, ok := o.props[key]; !ok {
		if o.sealed {
			return
		}
		o.keys = append(o.keys, key)
	}
	o.props[key] = p
}

// Property returns the raw slot for key.
func (o *Object) Property(key string) (*Property, bool) {
	p, ok := o.props[key]
	return p, ok
}

// Has reports whether key is an own property.
func (o *Object) Has(key string) bool {
	_, ok := o.props[key]
	return ok
}

// Delete removes key. It returns false when the key was missing or the
// object is frozen.
func (o *Object) Delete(key string) bool {
	if o.frozen {
		return false
	}
	if _, ok := o.props[key]; !ok {
		return false
	}
	delete(o.props, key)
	o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == key })
	return true
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	return slices.Clone(o.keys)
}

func (o *Object) Len() int {
	return len(o.keys)
}

// Range calls fn for each property in key order until fn returns false.
func (o *Object) Range(fn func(key string, v any) bool) {
	for _, k := range o.Keys() {
		v, ok := o.Lookup(k)
		if !ok {
			continue
		}
		if !fn(k, v) {
			return
		}
	}
}

// Freeze makes o immutable: no adds, writes or deletes. Frozen values are
// never observed nor traversed.
func (o *Object) Freeze() *Object {
	o.frozen = true
	o.sealed = true
	return o
}

func (o *Object) IsFrozen() bool {
	return o.frozen
}

// PreventExtensions forbids adding new keys. Non-extensible values are not
// observed.
func (o *Object) PreventExtensions() *Object {
	o.sealed = true
	return o
}

func (o *Object) IsExtensible() bool {
	return !o.sealed
}

// MarkRaw opts o out of observation.
func (o *Object) MarkRaw() *Object {
	o.raw = true
	return o
}
