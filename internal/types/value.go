package types

// undefinedValue is the type of Undefined.
type undefinedValue struct{}

func (undefinedValue) String() string { return "undefined" }

// Undefined is the value of a property that was never set. A record
// property holding Undefined is equivalent to an absent property.
var Undefined any = undefinedValue{}

// holeValue is the type of Hole.
type holeValue struct{}

func (holeValue) String() string { return "<hole>" }

// Hole marks a sequence index that was never assigned. A sequence
// containing holes is sparse and never equals a dense one.
var Hole any = holeValue{}

// IsUndefined reports whether v is Undefined.
func IsUndefined(v any) bool { return v == Undefined }

// IsHole reports whether v is Hole.
func IsHole(v any) bool { return v == Hole }

// Arguments is a captured argument list. It is sequence-like but never
// equal to a plain slice holding the same elements.
type Arguments []any

// Record is an insertion-ordered property bag with a constructor name.
// An empty Constructor means the record has no prototype at all. Proto
// properties are inherited: visible to lookups but not owned.
type Record struct {
	Constructor string
	Proto       *Record

	keys []string
	vals map[string]any
}

// NewRecord creates a record with the given constructor name and
// alternating key/value pairs.
func NewRecord(constructor string, kv ...any) *Record {
	r := &Record{Constructor: constructor, vals: make(map[string]any, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i].(string), kv[i+1])
	}
	return r
}

// Object creates a plain record (constructor "Object").
func Object(kv ...any) *Record {
	return NewRecord("Object", kv...)
}

// Bare creates a record without a prototype.
func Bare(kv ...any) *Record {
	return NewRecord("", kv...)
}

// Set assigns an own property, keeping the position of an existing key.
func (r *Record) Set(key string, val any) *Record {
	if r.vals == nil {
		r.vals = make(map[string]any)
	}
	if _, ok := r.vals[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.vals[key] = val
	return r
}

// Delete removes an own property.
func (r *Record) Delete(key string) {
	if _, ok := r.vals[key]; !ok {
		return
	}
	delete(r.vals, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i:i], r.keys[i+1:]...)
			break
		}
	}
}

// Own returns an own property.
func (r *Record) Own(key string) (any, bool) {
	v, ok := r.vals[key]
	return v, ok
}

// Get returns an own or inherited property.
func (r *Record) Get(key string) (any, bool) {
	for cur := r; cur != nil; cur = cur.Proto {
		if v, ok := cur.vals[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Keys returns the own keys in insertion order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// AllKeys returns own keys followed by inherited keys not shadowed by them.
func (r *Record) AllKeys() []string {
	seen := make(map[string]bool)
	var out []string
	for cur := r; cur != nil; cur = cur.Proto {
		for _, k := range cur.keys {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// Len returns the number of own properties.
func (r *Record) Len() int { return len(r.keys) }
