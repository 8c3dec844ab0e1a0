// Package types implements the value classifier: an ordered table of named
// type descriptors, each with an identify predicate and optional equality,
// diff, similarity, inspection and unwrap rules, arranged in single-parent
// chains rooted at "any".
package types

import "expectkit/internal/diff"

// AnyType is the name of the implicit root descriptor.
const AnyType = "any"

// Comparer is the recursive entry point handed to descriptor rules so that
// nested values are compared with the same engine and cycle bookkeeping.
type Comparer interface {
	Equal(a, b any) (bool, error)
	Diff(a, b any) (*diff.Node, error)
}

// Descriptor is a named, classifiable value category.
type Descriptor struct {
	Name string
	// Base names the parent descriptor; empty means "any".
	Base string
	// Identify decides membership. A descriptor without one never matches,
	// which makes it usable as an abstract base.
	Identify func(v any) bool

	Equal   func(a, b any, c Comparer) (bool, error)
	Diff    func(a, b any, c Comparer) (*diff.Node, error)
	Similar func(a, b any) bool
	Inspect func(v any, inspect func(any) string) string
	// Unwrap returns the primitive a thin wrapper value stands for.
	Unwrap func(v any) any

	parent *Descriptor
	level  int
	seq    int
}

// Level is the length of the base chain; "any" is level 0.
func (d *Descriptor) Level() int { return d.level }

// Parent returns the base descriptor, nil for "any".
func (d *Descriptor) Parent() *Descriptor { return d.parent }

// Is reports whether d is the named type or extends it.
func (d *Descriptor) Is(name string) bool {
	for cur := d; cur != nil; cur = cur.parent {
		if cur.Name == name {
			return true
		}
	}
	return false
}

// Ancestors returns the chain from d up to "any", d first.
func (d *Descriptor) Ancestors() []string {
	var out []string
	for cur := d; cur != nil; cur = cur.parent {
		out = append(out, cur.Name)
	}
	return out
}

// matches reports whether v satisfies d and every ancestor that declares
// an identify predicate. Ancestors are consulted first so a predicate only
// ever sees values its base already accepted.
func (d *Descriptor) matches(v any) bool {
	if d.Identify == nil {
		return false
	}
	chain := make([]*Descriptor, 0, d.level+1)
	for cur := d; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if id := chain[i].Identify; id != nil && !id(v) {
			return false
		}
	}
	return true
}

// EqualFunc returns the nearest equality rule along the base chain.
func (d *Descriptor) EqualFunc() func(a, b any, c Comparer) (bool, error) {
	for cur := d; cur != nil; cur = cur.parent {
		if cur.Equal != nil {
			return cur.Equal
		}
	}
	return nil
}

// DiffFunc returns the nearest diff rule along the base chain.
func (d *Descriptor) DiffFunc() func(a, b any, c Comparer) (*diff.Node, error) {
	for cur := d; cur != nil; cur = cur.parent {
		if cur.Diff != nil {
			return cur.Diff
		}
	}
	return nil
}

// SimilarFunc returns the nearest similarity rule along the base chain.
func (d *Descriptor) SimilarFunc() func(a, b any) bool {
	for cur := d; cur != nil; cur = cur.parent {
		if cur.Similar != nil {
			return cur.Similar
		}
	}
	return nil
}

// InspectFunc returns the nearest inspection rule along the base chain.
func (d *Descriptor) InspectFunc() func(v any, inspect func(any) string) string {
	for cur := d; cur != nil; cur = cur.parent {
		if cur.Inspect != nil {
			return cur.Inspect
		}
	}
	return nil
}

// UnwrapFunc returns the nearest unwrap rule along the base chain.
func (d *Descriptor) UnwrapFunc() func(v any) any {
	for cur := d; cur != nil; cur = cur.parent {
		if cur.Unwrap != nil {
			return cur.Unwrap
		}
	}
	return nil
}
