package expect

import (
	"fmt"
	"regexp"

	"expectkit/internal/diff"
	"expectkit/internal/failure"
	"expectkit/internal/types"
)

// maxSatisfyDepth bounds recursion through self-referencing specs.
const maxSatisfyDepth = 100

// Satisfy reports how subject measures up against spec, where spec is a
// partial description: record specs only constrain the keys they name
// (Undefined demanding absence), sequence specs are compared
// element-wise, regexps match strings, *Matcher and func(any) error
// values are run, and anything else must be equal.
func (c *Context) Satisfy(subject, spec any) (*diff.Node, error) {
	return c.satisfy(subject, spec, 0)
}

func (c *Context) satisfy(v, spec any, depth int) (*diff.Node, error) {
	if depth > maxSatisfyDepth {
		return nil, &failure.CircularComparisonError{}
	}
	reg := c.inst.types
	dv := reg.Classify(v)

	if err, ok := v.(error); ok && !types.IsNil(v) {
		switch spec.(type) {
		case string, *regexp.Regexp:
			// Errors are satisfied through their message.
			node, e := c.satisfy(err.Error(), spec, depth+1)
			if e != nil {
				return nil, e
			}
			if !node.IsEqual() {
				return &diff.Node{Kind: diff.Changed, Type: dv.Name, Actual: v, Expected: spec,
					Children: []*diff.Node{withKey(node, "message")}, Constructor: types.ErrorName(err)}, nil
			}
			return equalNode(dv.Name, v, spec), nil
		}
	}

	switch s := spec.(type) {
	case *Matcher:
		return runMatcher(dv.Name, v, s, s.Test)
	case func(any) error:
		return runMatcher(dv.Name, v, s, s)
	case *regexp.Regexp:
		if str, ok := v.(string); ok {
			if s.MatchString(str) {
				return equalNode(dv.Name, v, spec), nil
			}
			return &diff.Node{Kind: diff.Changed, Type: dv.Name, Actual: v, Expected: spec,
				Note: fmt.Sprintf("should match %s", c.Inspect(s))}, nil
		}
	}

	ds := reg.Classify(spec)
	switch {
	case ds.Is("array-like") && dv.Is("array-like") && !ds.Is("binaryArray"):
		return c.satisfySequence(dv, v, spec, depth)
	case ds.Is("object") && dv.Is("object") && !ds.Is("array-like") && !ds.Is("Promise") && !ds.Is(MatcherType):
		return c.satisfyRecord(dv, v, spec, depth)
	}

	eq, err := c.Equal(v, spec)
	if err != nil {
		return nil, err
	}
	if eq {
		return equalNode(dv.Name, v, spec), nil
	}
	return c.Diff(v, spec)
}

func (c *Context) satisfySequence(dv *types.Descriptor, v, spec any, depth int) (*diff.Node, error) {
	ev, _ := types.Elements(v)
	es, _ := types.Elements(spec)
	node := &diff.Node{Kind: diff.Changed, Type: dv.Name, Actual: v, Expected: spec}
	for k := 0; k < max(len(ev), len(es)); k++ {
		var child *diff.Node
		switch {
		case k >= len(es):
			child = &diff.Node{Kind: diff.Extra, Actual: ev[k]}
		case k >= len(ev):
			child = &diff.Node{Kind: diff.Missing, Expected: es[k]}
		default:
			var err error
			if child, err = c.satisfy(ev[k], es[k], depth+1); err != nil {
				return nil, err
			}
		}
		node.Children = append(node.Children, withKey(child, k))
	}
	return node.Settle(), nil
}

func (c *Context) satisfyRecord(dv *types.Descriptor, v, spec any, depth int) (*diff.Node, error) {
	rv, _ := types.AsRecord(v)
	rs, _ := types.AsRecord(spec)
	if rv == nil || rs == nil {
		return &diff.Node{Kind: diff.Mismatch, Type: dv.Name, Actual: v, Expected: spec}, nil
	}
	if rs.Constructor != "Object" && rs.Constructor != rv.Constructor {
		return &diff.Node{
			Kind:        diff.Mismatch,
			Type:        dv.Name,
			Constructor: rv.Constructor,
			Actual:      v,
			Expected:    spec,
			Note:        fmt.Sprintf("Mismatching constructors %s should be %s", ctorName(rv), ctorName(rs)),
		}, nil
	}

	node := &diff.Node{Kind: diff.Changed, Type: dv.Name, Constructor: rv.Constructor, Actual: v, Expected: spec}
	for _, k := range rv.Keys() {
		av, _ := rv.Own(k)
		sv, constrained := rs.Own(k)
		switch {
		case !constrained:
			node.Children = append(node.Children, &diff.Node{Kind: diff.Equal, Key: k, Actual: av, Expected: av})
		case types.IsUndefined(sv):
			if types.IsUndefined(av) {
				continue
			}
			node.Children = append(node.Children, &diff.Node{Kind: diff.Extra, Key: k, Actual: av})
		default:
			child, err := c.satisfy(av, sv, depth+1)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, withKey(child, k))
		}
	}
	for _, k := range rs.Keys() {
		if _, ok := rv.Own(k); ok {
			continue
		}
		sv, _ := rs.Own(k)
		if types.IsUndefined(sv) {
			continue
		}
		if av, ok := rv.Get(k); ok {
			// Inherited properties satisfy a spec key.
			child, err := c.satisfy(av, sv, depth+1)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, withKey(child, k))
			continue
		}
		node.Children = append(node.Children, &diff.Node{Kind: diff.Missing, Key: k, Expected: sv})
	}
	return node.Settle(), nil
}

func runMatcher(typ string, v, spec any, test func(any) error) (*diff.Node, error) {
	err := test(v)
	if err == nil {
		return equalNode(typ, v, spec), nil
	}
	if _, ok := failure.IsFailure(err); !ok {
		return nil, err
	}
	return &diff.Node{Kind: diff.Changed, Type: typ, Actual: v, Expected: spec, Note: err.Error()}, nil
}

func equalNode(typ string, v, spec any) *diff.Node {
	return &diff.Node{Kind: diff.Equal, Type: typ, Actual: v, Expected: spec}
}

func withKey(n *diff.Node, key any) *diff.Node {
	n.Key = key
	return n
}

func ctorName(r *types.Record) string {
	if r.Constructor == "" {
		return "undefined"
	}
	return r.Constructor
}
