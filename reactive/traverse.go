package reactive

import mapset "github.com/deckarep/golang-set/v2"

// traverse reads every property and element reachable from v so that each
// nested property is collected as a dependency of the current watcher.
func (rt *Runtime) traverse(v any) {
	seen := mapset.NewThreadUnsafeSet[any]()
	traverseValue(v, seen)
}

func traverseValue(v any, seen mapset.Set[any]) {
	c, ok := v.(container)
	if !ok {
		return
	}
	h := c.meta()
	if h.frozen {
		return
	}

	// observed values are keyed by their dep id, anything else by identity
	var key any = c
	if h.ob != nil {
		key = h.ob.dep.id
	}
	if !seen.Add(key) {
		return
	}
	// structural changes (push, Set of a new key) notify the observer dep
	if h.ob != nil {
		h.ob.dep.Depend()
	}

	switch x := c.(type) {
	case *Array:
		for i := len(x.items) - 1; i >= 0; i-- {
			traverseValue(x.items[i], seen)
		}
	case *Object:
		keys := x.Keys()
		for i := len(keys) - 1; i >= 0; i-- {
			traverseValue(x.Get(keys[i]), seen)
		}
	}
}
