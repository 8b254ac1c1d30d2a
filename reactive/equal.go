package reactive

import (
	"math"
	"reflect"
)

// hasChanged compares by identity. NaN equals NaN and maps are compared by
// reference. Other values of types that cannot be compared always count as
// changed.
func hasChanged(x, y any) bool {
	switch a := x.(type) {
	case float64:
		if b, ok := y.(float64); ok && math.IsNaN(a) && math.IsNaN(b) {
			return false
		}
	case float32:
		if b, ok := y.(float32); ok && math.IsNaN(float64(a)) && math.IsNaN(float64(b)) {
			return false
		}
	}
	return !identical(x, y)
}

func identical(x, y any) (same bool) {
	tx, ty := reflect.TypeOf(x), reflect.TypeOf(y)
	if tx != ty {
		return false
	}
	if tx == nil {
		return true
	}
	if !tx.Comparable() {
		if tx.Kind() == reflect.Map {
			return reflect.ValueOf(x).UnsafePointer() == reflect.ValueOf(y).UnsafePointer()
		}
		// a func pointer names its code, not the closure, so it is no identity
		return false
	}
	// structs and arrays holding interfaces can still panic on ==
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return x == y
}

// isObject reports whether v is a reference-like value whose contents may
// change while its identity does not.
func isObject(v any) bool {
	switch v.(type) {
	case nil:
		return false
	case *Object, *Array:
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Struct:
		return true
	}
	return false
}
