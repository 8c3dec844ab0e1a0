// Package diff holds the structural diff tree and the algorithms that build
// its pieces: character diffs over escaped strings, sequence alignment with
// move detection, and fixed-width hex rows for binary data.
//
// The package knows nothing about value types. Callers (the compare engine)
// decide what is equal or similar and assemble Nodes from the results.
package diff

import "fmt"

// Kind classifies a node of a diff tree.
type Kind int

const (
	Equal      Kind = iota // values are equal
	Changed                // values differ; see Children, Chars or Rows
	Missing                // present only on the expected side
	Extra                  // present only on the actual side
	Moved                  // present on both sides at a different position
	Inserted               // position a Moved element belongs at
	Mismatch               // values differ in type or constructor
	Suppressed             // diff was not computed, see Note
)

var kindNames = [...]string{"equal", "changed", "missing", "extra", "moved", "inserted", "mismatch", "suppressed"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Node is one entry of a diff tree. The tree mirrors the shape of the
// compared values: a container node carries one child per property or
// sequence position, in render order.
type Node struct {
	Kind Kind
	// Key is the property name (string) or sequence index (int) of this
	// entry inside its parent. Nil at the root.
	Key any
	// Type is the descriptor name the actual value classified as.
	Type string
	// Constructor of the actual value for record-like types.
	Constructor string

	Actual   any
	Expected any

	Children []*Node
	Chars    []Change // character diff for strings
	Rows     []Row    // hex rows for binary values
	Width    int      // element width in bytes for Rows

	// Note is a one-line explanation, e.g. a constructor mismatch.
	Note string
	// Group links Moved and Inserted nodes of one relocated run.
	Group int
}

// IsEqual reports whether the node and every descendant are Equal.
func (n *Node) IsEqual() bool {
	if n == nil {
		return true
	}
	if n.Kind != Equal {
		return false
	}
	for _, c := range n.Children {
		if !c.IsEqual() {
			return false
		}
	}
	return true
}

// Child returns the direct child with the given key.
func (n *Node) Child(key any) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Key == key && c.Kind != Inserted {
			return c
		}
	}
	return nil
}

// Find follows a path of keys from n.
func (n *Node) Find(path ...any) *Node {
	cur := n
	for _, k := range path {
		cur = cur.Child(k)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the children of that node.
func (n *Node) Walk(fn func(path []any, node *Node) bool) {
	n.walk(nil, fn)
}

func (n *Node) walk(path []any, fn func([]any, *Node) bool) {
	if n == nil {
		return
	}
	if !fn(path, n) {
		return
	}
	for _, c := range n.Children {
		c.walk(append(path[:len(path):len(path)], c.Key), fn)
	}
}

// Differences returns the paths of all innermost non-equal nodes.
func (n *Node) Differences() [][]any {
	var out [][]any
	n.Walk(func(path []any, node *Node) bool {
		if node.Kind == Equal {
			return false
		}
		leaf := true
		for _, c := range node.Children {
			if c.Kind != Equal {
				leaf = false
				break
			}
		}
		if leaf && node.Kind != Inserted {
			out = append(out, path)
		}
		return true
	})
	return out
}

// Settle marks a container Changed when any child differs and Equal
// otherwise. Nodes of other kinds are left untouched.
func (n *Node) Settle() *Node {
	if n.Kind != Equal && n.Kind != Changed {
		return n
	}
	if len(n.Children) == 0 && n.Chars == nil && n.Rows == nil {
		return n
	}
	n.Kind = Equal
	for _, c := range n.Children {
		if c.Kind != Equal {
			n.Kind = Changed
			return n
		}
	}
	for _, r := range n.Rows {
		if r.Differs {
			n.Kind = Changed
			return n
		}
	}
	for _, c := range n.Chars {
		if c.Op != OpEqual {
			n.Kind = Changed
			return n
		}
	}
	return n
}
