package reactive

import (
	"fmt"
	"slices"
	"sort"
)

// Array is an ordered list of values. Index access through At and SetAt is
// not interceptable and therefore not reactive; the length-mutating methods
// below are, through the arrayMethods table.
type Array struct {
	header
	items []any
}

func NewArray(items ...any) *Array {
	return &Array{items: slices.Clone(items)}
}

func (a *Array) meta() *header {
	return &a.header
}

// Observer returns the Observer attached to a, if any.
func (a *Array) Observer() *Observer {
	return a.ob
}

func (a *Array) Len() int {
	return len(a.items)
}

// At returns the element at i, or nil when i is out of range.
func (a *Array) At(i int) any {
	if i < 0 || i >= len(a.items) {
		return nil
	}
	return a.items[i]
}

// SetAt assigns index i, growing the array with nils if needed. Like index
// assignment on a plain array this bypasses change notification; use
// Runtime.Set to make it observable.
func (a *Array) SetAt(i int, v any) {
	if a.frozen || i < 0 {
		return
	}
	a.grow(i + 1)
	a.items[i] = v
}

func (a *Array) grow(n int) {
	if n > len(a.items) {
		a.items = append(a.items, make([]any, n-len(a.items))...)
	}
}

// Items returns a copy of the elements.
func (a *Array) Items() []any {
	return slices.Clone(a.items)
}

// Range calls fn for each element until fn returns false.
func (a *Array) Range(fn func(i int, v any) bool) {
	for i, v := range a.Items() {
		if !fn(i, v) {
			return
		}
	}
}

// Freeze makes a immutable; mutators become no-ops.
func (a *Array) Freeze() *Array {
	a.frozen = true
	a.sealed = true
	return a
}

func (a *Array) IsFrozen() bool {
	return a.frozen
}

// MarkRaw opts a out of observation.
func (a *Array) MarkRaw() *Array {
	a.raw = true
	return a
}

// Names of the intercepted mutators.
const (
	MethodPush    = "push"
	MethodPop     = "pop"
	MethodShift   = "shift"
	MethodUnshift = "unshift"
	MethodSplice  = "splice"
	MethodSort    = "sort"
	MethodReverse = "reverse"
)

// arrayMutator performs the raw operation and returns its result plus any
// elements it inserted.
type arrayMutator func(a *Array, args []any) (ret any, inserted []any, err error)

var arrayMethods = map[string]arrayMutator{
	MethodPush: func(a *Array, args []any) (any, []any, error) {
		a.items = append(a.items, args...)
		return len(a.items), args, nil
	},
	MethodPop: func(a *Array, _ []any) (any, []any, error) {
		if len(a.items) == 0 {
			return nil, nil, nil
		}
		last := len(a.items) - 1
		v := a.items[last]
		a.items[last] = nil
		a.items = a.items[:last]
		return v, nil, nil
	},
	MethodShift: func(a *Array, _ []any) (any, []any, error) {
		if len(a.items) == 0 {
			return nil, nil, nil
		}
		v := a.items[0]
		a.items = slices.Delete(a.items, 0, 1)
		return v, nil, nil
	},
	MethodUnshift: func(a *Array, args []any) (any, []any, error) {
		a.items = slices.Insert(a.items, 0, args...)
		return len(a.items), args, nil
	},
	MethodSplice: func(a *Array, args []any) (any, []any, error) {
		if len(args) == 0 {
			return []any{}, nil, nil
		}
		start, ok := args[0].(int)
		if !ok {
			return nil, nil, fmt.Errorf("splice start is %T, not int", args[0])
		}
		start = clampIndex(start, len(a.items))
		deleteCount := len(a.items) - start
		if len(args) > 1 {
			n, ok := args[1].(int)
			if !ok {
				return nil, nil, fmt.Errorf("splice delete count is %T, not int", args[1])
			}
			deleteCount = min(max(n, 0), len(a.items)-start)
		}
		inserted := slices.Clone(args[min(len(args), 2):])
		removed := slices.Clone(a.items[start : start+deleteCount])
		a.items = slices.Replace(a.items, start, start+deleteCount, inserted...)
		return removed, inserted, nil
	},
	MethodSort: func(a *Array, args []any) (any, []any, error) {
		less := defaultLess
		if len(args) > 0 && args[0] != nil {
			fn, ok := args[0].(func(x, y any) bool)
			if !ok {
				return nil, nil, fmt.Errorf("sort comparator is %T", args[0])
			}
			less = fn
		}
		sort.SliceStable(a.items, func(i, j int) bool {
			return less(a.items[i], a.items[j])
		})
		return a, nil, nil
	},
	MethodReverse: func(a *Array, _ []any) (any, []any, error) {
		slices.Reverse(a.items)
		return a, nil, nil
	},
}

// clampIndex resolves a possibly negative index against length n.
func clampIndex(i, n int) int {
	if i < 0 {
		return max(n+i, 0)
	}
	return min(i, n)
}

// defaultLess orders values by their string form, matching the default sort
// of a plain array.
func defaultLess(x, y any) bool {
	if x == nil {
		return false
	}
	if y == nil {
		return true
	}
	return fmt.Sprint(x) < fmt.Sprint(y)
}

// Call invokes an intercepted mutator by name.
func (a *Array) Call(method string, args ...any) (any, error) {
	mutate, ok := arrayMethods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	if a.frozen {
		return nil, fmt.Errorf("%w: array %s", ErrFrozen, method)
	}
	ret, inserted, err := mutate(a, args)
	if err != nil {
		return nil, fmt.Errorf("array %s: %w", method, err)
	}
	if ob := a.ob; ob != nil {
		if len(inserted) > 0 {
			ob.observeArray(inserted)
		}
		ob.dep.Notify()
	}
	return ret, nil
}

func (a *Array) call(method string, args ...any) any {
	ret, err := a.Call(method, args...)
	if err != nil {
		return nil
	}
	return ret
}

// Push appends items and returns the new length.
func (a *Array) Push(items ...any) int {
	if n, ok := a.call(MethodPush, items...).(int); ok {
		return n
	}
	return a.Len()
}

// Pop removes and returns the last element.
func (a *Array) Pop() any {
	return a.call(MethodPop)
}

// Shift removes and returns the first element.
func (a *Array) Shift() any {
	return a.call(MethodShift)
}

// Unshift prepends items and returns the new length.
func (a *Array) Unshift(items ...any) int {
	if n, ok := a.call(MethodUnshift, items...).(int); ok {
		return n
	}
	return a.Len()
}

// Splice removes deleteCount elements at start, inserts items there and
// returns the removed elements. A negative start counts from the end.
func (a *Array) Splice(start, deleteCount int, items ...any) []any {
	args := append([]any{start, deleteCount}, items...)
	removed, _ := a.call(MethodSplice, args...).([]any)
	return removed
}

// Sort sorts in place with less, or by string form when less is nil.
func (a *Array) Sort(less func(x, y any) bool) *Array {
	if less == nil {
		a.call(MethodSort)
	} else {
		a.call(MethodSort, less)
	}
	return a
}

func (a *Array) Reverse() *Array {
	a.call(MethodReverse)
	return a
}
