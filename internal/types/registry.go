package types

import (
	"fmt"
	"sort"
	"sync"

	"expectkit/internal/logging"
)

// Registry is an ordered table of type descriptors. Descriptors are kept
// sorted most specific first: deeper base chains before shallower ones,
// and among equal depth the most recently added first. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Descriptor
	ordered []*Descriptor
	seq     int
}

// NewRegistry creates a registry holding only the "any" root.
func NewRegistry() *Registry {
	root := &Descriptor{
		Name:     AnyType,
		Identify: func(any) bool { return true },
	}
	return &Registry{
		byName:  map[string]*Descriptor{AnyType: root},
		ordered: []*Descriptor{root},
	}
}

// Add registers a copy of d. A descriptor with an existing name replaces
// the old one; descriptors extending that name follow the replacement.
func (r *Registry) Add(d *Descriptor) error {
	if d == nil || d.Name == "" {
		return ErrDescriptorNameEmpty
	}
	if d.Name == AnyType {
		return ErrReservedType
	}
	base := d.Base
	if base == "" {
		base = AnyType
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	parent, ok := r.byName[base]
	if !ok {
		return fmt.Errorf("%w: %s extends %s", ErrUnknownBase, d.Name, base)
	}
	if parent.Is(d.Name) {
		return fmt.Errorf("%w: %s", ErrCircularBase, d.Name)
	}

	added := *d
	added.Base = base
	r.seq++
	added.seq = r.seq

	if old, exists := r.byName[d.Name]; exists {
		for i, cur := range r.ordered {
			if cur == old {
				r.ordered = append(r.ordered[:i:i], r.ordered[i+1:]...)
				break
			}
		}
		logging.TypesDebug("Replacing type %s", d.Name)
	}
	r.byName[d.Name] = &added
	r.ordered = append(r.ordered, &added)
	r.relink()

	logging.TypesDebug("Added type %s (base=%s, level=%d)", added.Name, base, added.level)
	return nil
}

// MustAdd adds a descriptor and panics on error.
// Use this for static registration of built-in types.
func (r *Registry) MustAdd(d *Descriptor) {
	if err := r.Add(d); err != nil {
		panic(fmt.Sprintf("failed to add type %s: %v", d.Name, err))
	}
}

// relink resolves parent pointers and levels and restores the order.
// Callers hold the write lock.
func (r *Registry) relink() {
	for _, d := range r.ordered {
		if d.Name == AnyType {
			continue
		}
		d.parent = r.byName[d.Base]
	}
	for _, d := range r.ordered {
		d.level = 0
		for cur := d.parent; cur != nil; cur = cur.parent {
			d.level++
		}
	}
	sort.SliceStable(r.ordered, func(i, j int) bool {
		a, b := r.ordered[i], r.ordered[j]
		if a.level != b.level {
			return a.level > b.level
		}
		return a.seq > b.seq
	})
}

// Lookup returns the descriptor with the given name.
func (r *Registry) Lookup(name string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return d, nil
}

// Has reports whether a type name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// Classify returns the most specific descriptor matching v. It always
// returns a descriptor because "any" matches everything.
func (r *Registry) Classify(v any) *Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.ordered {
		if d.Name == AnyType || d.matches(v) {
			return d
		}
	}
	return r.byName[AnyType]
}

// Is reports whether v classifies as the named type or one extending it.
func (r *Registry) Is(v any, name string) bool {
	return r.Classify(v).Is(name)
}

// Matches reports whether v satisfies the named descriptor itself, whether
// or not a more specific descriptor wins classification.
func (r *Registry) Matches(v any, name string) bool {
	d, err := r.Lookup(name)
	if err != nil {
		return false
	}
	if d.Name == AnyType {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return d.matches(v)
}

// Ambiguities returns every descriptor that matches v at the same level as
// the winning descriptor, the winner first. A result longer than one means
// two unrelated descriptors claim v with equal specificity.
func (r *Registry) Ambiguities(v any) []*Descriptor {
	winner := r.Classify(v)

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Descriptor{winner}
	for _, d := range r.ordered {
		if d == winner || d.level != winner.level || d.Name == AnyType {
			continue
		}
		if d.matches(v) {
			out = append(out, d)
		}
	}
	if len(out) > 1 {
		logging.TypesWarn("Ambiguous classification: %d types at level %d", len(out), winner.level)
	}
	return out
}

// Clone returns an independent copy. Descriptors are copied, so later
// additions to either registry never affect the other.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := &Registry{
		byName:  make(map[string]*Descriptor, len(r.byName)),
		ordered: make([]*Descriptor, 0, len(r.ordered)),
		seq:     r.seq,
	}
	for _, d := range r.ordered {
		cp := *d
		c.byName[cp.Name] = &cp
		c.ordered = append(c.ordered, &cp)
	}
	c.relink()
	return c
}

// Names returns the registered type names in classification order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.ordered))
	for i, d := range r.ordered {
		out[i] = d.Name
	}
	return out
}

// Count returns the number of registered types including "any".
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}
