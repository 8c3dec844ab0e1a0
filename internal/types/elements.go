package types

import "reflect"

// Elements returns the elements of a sequence value: Arguments, slices and
// arrays (byte and typed numeric slices included).
func Elements(v any) ([]any, bool) {
	switch s := v.(type) {
	case Arguments:
		return []any(s), true
	case []any:
		return s, s != nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// IsSparse reports whether a sequence holds at least one Hole.
func IsSparse(elems []any) bool {
	for _, e := range elems {
		if IsHole(e) {
			return true
		}
	}
	return false
}

// BinaryElements returns the raw elements of a fixed-width numeric slice
// and the element width in bytes. Signed values keep their two's
// complement bit pattern.
func BinaryElements(v any) ([]uint64, int, bool) {
	switch s := v.(type) {
	case []byte:
		out := make([]uint64, len(s))
		for i, b := range s {
			out[i] = uint64(b)
		}
		return out, 1, true
	case []int8:
		out := make([]uint64, len(s))
		for i, b := range s {
			out[i] = uint64(uint8(b))
		}
		return out, 1, true
	case []uint16:
		out := make([]uint64, len(s))
		for i, b := range s {
			out[i] = uint64(b)
		}
		return out, 2, true
	case []int16:
		out := make([]uint64, len(s))
		for i, b := range s {
			out[i] = uint64(uint16(b))
		}
		return out, 2, true
	case []uint32:
		out := make([]uint64, len(s))
		for i, b := range s {
			out[i] = uint64(b)
		}
		return out, 4, true
	case []int32:
		out := make([]uint64, len(s))
		for i, b := range s {
			out[i] = uint64(uint32(b))
		}
		return out, 4, true
	}
	return nil, 0, false
}

// Ref identifies a reference value: the address it points at, plus the
// length and type for slices so that two slices sharing a backing array
// but differing in length are distinct.
type Ref struct {
	ptr uintptr
	n   int
	typ reflect.Type
}

// Identity returns the reference identity of pointers, maps, slices and
// funcs. Other values have none.
func Identity(v any) (Ref, bool) {
	if v == nil {
		return Ref{}, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		if rv.IsNil() {
			return Ref{}, false
		}
		return Ref{ptr: rv.Pointer(), typ: rv.Type()}, true
	case reflect.Slice:
		if rv.IsNil() {
			return Ref{}, false
		}
		return Ref{ptr: rv.Pointer(), n: rv.Len(), typ: rv.Type()}, true
	}
	return Ref{}, false
}

// Same reports whether a and b are the same reference.
func Same(a, b any) bool {
	ra, ok := Identity(a)
	if !ok {
		return false
	}
	rb, ok := Identity(b)
	return ok && ra == rb
}
