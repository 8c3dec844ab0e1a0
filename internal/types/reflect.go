package types

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// AsRecord presents a Go value as a Record view. Maps become records with
// constructor "Object" and sorted keys; structs (and pointers to structs)
// become records named after their Go type holding the exported fields;
// errors carry a "message" property. *Record values are returned as is.
func AsRecord(v any) (*Record, bool) {
	if r, ok := v.(*Record); ok {
		return r, r != nil
	}
	if err, ok := v.(error); ok && !IsNil(v) {
		r := NewRecord(ErrorName(err), "message", err.Error())
		addFields(r, reflect.ValueOf(v))
		return r, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return nil, false
		}
		r := Object()
		type entry struct {
			key string
			val reflect.Value
		}
		entries := make([]entry, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			entries = append(entries, entry{fmt.Sprint(iter.Key().Interface()), iter.Value()})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
		for _, e := range entries {
			r.Set(e.key, e.val.Interface())
		}
		return r, true
	case reflect.Struct:
		name := rv.Type().Name()
		if name == "" {
			name = "Object"
		}
		r := NewRecord(name)
		addFields(r, rv)
		return r, true
	}
	return nil, false
}

func addFields(r *Record, rv reflect.Value) {
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return
	}
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		r.Set(f.Name, rv.Field(i).Interface())
	}
}

// ErrorName returns the constructor name of an error value: "Error" for
// plain errors.New and fmt.Errorf values, the result of a Name method when
// present, and the Go type name otherwise.
func ErrorName(err error) string {
	if n, ok := err.(interface{ Name() string }); ok {
		return n.Name()
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.PkgPath() + "." + t.Name() {
	case "errors.errorString", "fmt.wrapError", "fmt.wrapErrors", "errors.joinError":
		return "Error"
	}
	if t.Name() == "" {
		return "Error"
	}
	return t.Name()
}

// IsNil reports whether v is untyped nil or a nil pointer, map, slice,
// func, chan or interface.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// TypeName is a short Go type description used in messages.
func TypeName(v any) string {
	if v == nil {
		return "nil"
	}
	return strings.TrimPrefix(reflect.TypeOf(v).String(), "*")
}
