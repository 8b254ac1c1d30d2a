package reactive

import "strconv"

// Observer is the instrumentation attached to one Object or Array. Its Dep
// stands for structural changes of the value: keys added or deleted, array
// elements inserted, removed or reordered.
type Observer struct {
	rt      *Runtime
	value   container
	dep     *Dep
	vmCount int
	shallow bool
}

// Value returns the *Object or *Array this Observer instruments.
func (ob *Observer) Value() any {
	return ob.value
}

func (ob *Observer) Dep() *Dep {
	return ob.dep
}

// RootCount is how many root consumers hold the value as their root state.
func (ob *Observer) RootCount() int {
	return ob.vmCount
}

// Observe instruments v and returns its Observer. It returns the existing
// Observer when v already has one, and nil when v is not an Object or Array,
// is frozen, not extensible or marked raw, or observation is toggled off.
func (rt *Runtime) Observe(v any) *Observer {
	return rt.observe(v, false)
}

// ObserveShallow instruments only the top-level keys or elements of v.
func (rt *Runtime) ObserveShallow(v any) *Observer {
	return rt.observe(v, true)
}

// ObserveRoot observes v as the root state of a consumer. Keys cannot be
// added to or deleted from root state through Set and Del afterwards.
func (rt *Runtime) ObserveRoot(v any) *Observer {
	ob := rt.observe(v, false)
	if ob != nil {
		ob.vmCount++
	}
	return ob
}

func (rt *Runtime) observe(v any, shallow bool) *Observer {
	c, ok := v.(container)
	if !ok {
		return nil
	}
	h := c.meta()
	if h.ob != nil {
		return h.ob
	}
	if !rt.observing || h.frozen || h.sealed || h.raw {
		return nil
	}

	ob := &Observer{
		rt:      rt,
		value:   c,
		dep:     rt.newDep(""),
		shallow: shallow,
	}
	// the marker goes on before walking so cycles resolve to this observer
	h.ob = ob

	switch x := c.(type) {
	case *Array:
		if !shallow {
			ob.observeArray(x.items)
		}
	case *Object:
		ob.walk(x)
	}
	return ob
}

func (ob *Observer) walk(o *Object) {
	for _, key := range o.Keys() {
		ob.rt.defineReactive(o, key, nil, false, ob.shallow)
	}
}

func (ob *Observer) observeArray(items []any) {
	for _, item := range items {
		ob.rt.observe(item, false)
	}
}

// DefineReactive defines key on obj as a reactive property holding v and
// returns its Dep.
func (rt *Runtime) DefineReactive(obj *Object, key string, v any) *Dep {
	return rt.defineReactive(obj, key, v, true, false)
}

func (rt *Runtime) defineReactive(obj *Object, key string, val any, hasVal, shallow bool) *Dep {
	dep := rt.newDep(key)

	var getter func() any
	var setter func(any)
	if p, ok := obj.props[key]; ok {
		getter, setter = p.get, p.set
	}
	if (getter == nil || setter != nil) && !hasVal {
		val = obj.Get(key)
	}

	var childOb *Observer
	if !shallow {
		childOb = rt.observe(val, false)
	}

	obj.define(key, &Property{
		get: func() any {
			value := val
			if getter != nil {
				value = getter()
			}
			if rt.stack.peek() != nil {
				dep.Depend()
				if childOb != nil {
					childOb.dep.Depend()
					if arr, ok := value.(*Array); ok {
						dependArray(arr)
					}
				}
			}
			return value
		},
		set: func(newVal any) {
			value := val
			if getter != nil {
				value = getter()
			}
			if !hasChanged(value, newVal) {
				return
			}
			switch {
			case setter != nil:
				setter(newVal)
			case getter != nil:
				return
			default:
				val = newVal
			}
			childOb = nil
			if !shallow {
				childOb = rt.observe(newVal, false)
			}
			dep.Notify()
		},
	})
	return dep
}

// dependArray collects the element observers of arr, recursively, since
// element access cannot be intercepted the way property reads are.
func dependArray(arr *Array) {
	for _, e := range arr.items {
		if c, ok := e.(container); ok && c.meta().ob != nil {
			c.meta().ob.dep.Depend()
		}
		if nested, ok := e.(*Array); ok {
			dependArray(nested)
		}
	}
}

// Set adds or updates key on target and triggers change notification when
// the key is new. Arrays take an int index or its decimal string; objects
// take a string or int key.
// It returns v, or nil when the operation is rejected.
func (rt *Runtime) Set(target any, key any, v any) any {
	switch t := target.(type) {
	case *Array:
		i, ok := arrayIndex(key)
		if !ok {
			rt.warnf(nil, ErrInvalidTarget, "array index %v", key)
			return nil
		}
		if t.frozen {
			rt.warnf(nil, ErrFrozen, "set operation on index %d failed", i)
			return nil
		}
		t.grow(i)
		t.Splice(i, 1, v)
		return v

	case *Object:
		k, ok := propertyKey(key)
		if !ok {
			rt.warnf(nil, ErrInvalidTarget, "object key %v", key)
			return nil
		}
		if t.frozen {
			rt.warnf(nil, ErrFrozen, "set operation on key %q failed", k)
			return nil
		}
		if t.Has(k) {
			t.Set(k, v)
			return v
		}
		ob := t.ob
		if ob != nil && ob.vmCount > 0 {
			rt.warnf(nil, ErrRootMutation, "key %q", k)
			return v
		}
		if ob == nil {
			t.Set(k, v)
			return v
		}
		rt.defineReactive(t, k, v, true, ob.shallow)
		ob.dep.Notify()
		return v

	default:
		rt.warnf(nil, ErrInvalidTarget, "%T", target)
		return nil
	}
}

// Del removes key from target and triggers change notification if it was
// present.
func (rt *Runtime) Del(target any, key any) {
	switch t := target.(type) {
	case *Array:
		i, ok := arrayIndex(key)
		if !ok {
			rt.warnf(nil, ErrInvalidTarget, "array index %v", key)
			return
		}
		if t.frozen {
			rt.warnf(nil, ErrFrozen, "delete operation on index %d failed", i)
			return
		}
		t.Splice(i, 1)

	case *Object:
		k, ok := propertyKey(key)
		if !ok {
			rt.warnf(nil, ErrInvalidTarget, "object key %v", key)
			return
		}
		ob := t.ob
		if ob != nil && ob.vmCount > 0 {
			rt.warnf(nil, ErrRootMutation, "key %q", k)
			return
		}
		if t.frozen {
			rt.warnf(nil, ErrFrozen, "delete operation on key %q failed", k)
			return
		}
		if !t.Delete(k) {
			return
		}
		if ob != nil {
			ob.dep.Notify()
		}

	default:
		rt.warnf(nil, ErrInvalidTarget, "%T", target)
	}
}

func propertyKey(key any) (string, bool) {
	switch k := key.(type) {
	case string:
		return k, true
	case int:
		return strconv.Itoa(k), true
	}
	return "", false
}

// arrayIndex accepts a non-negative int or a string holding one, such as "1".
func arrayIndex(key any) (int, bool) {
	switch k := key.(type) {
	case int:
		return k, k >= 0
	case string:
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || strconv.Itoa(i) != k {
			return 0, false
		}
		return i, true
	}
	return 0, false
}
