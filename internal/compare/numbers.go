package compare

import (
	"math"
	"reflect"

	"expectkit/internal/types"
)

func isNumber(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

type numberKind int

const (
	signed numberKind = iota
	unsigned
	float
)

func numberOf(v any) (numberKind, int64, uint64, float64) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return signed, rv.Int(), 0, float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return unsigned, 0, rv.Uint(), float64(rv.Uint())
	default:
		return float, 0, 0, rv.Float()
	}
}

// sameNumber applies same-value equality: NaN equals NaN, +0 and -0
// differ, and integers compare exactly regardless of their Go width.
func sameNumber(a, b any) bool {
	ka, ia, ua, fa := numberOf(a)
	kb, ib, ub, fb := numberOf(b)
	switch {
	case ka == signed && kb == signed:
		return ia == ib
	case ka == unsigned && kb == unsigned:
		return ua == ub
	case ka == signed && kb == unsigned:
		return ia >= 0 && uint64(ia) == ub
	case ka == unsigned && kb == signed:
		return ib >= 0 && uint64(ib) == ua
	}
	if math.IsNaN(fa) && math.IsNaN(fb) {
		return true
	}
	return fa == fb && math.Signbit(fa) == math.Signbit(fb)
}

// AsFloat converts any Go number to float64.
func AsFloat(v any) (float64, bool) {
	if !isNumber(v) {
		return 0, false
	}
	_, _, _, f := numberOf(v)
	return f, true
}

// SameValue reports identity: numbers by value with NaN equal to itself
// and -0 distinct from +0, references by address, other comparable values
// of the same type with ==.
func SameValue(a, b any) bool {
	if isNumber(a) && isNumber(b) {
		return sameNumber(a, b)
	}
	if _, ok := types.Identity(a); ok {
		return types.Same(a, b)
	}
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
