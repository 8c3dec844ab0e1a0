package compare

import (
	"fmt"
	"reflect"
	"regexp"
	"time"

	"expectkit/internal/diff"
	"expectkit/internal/promise"
	"expectkit/internal/types"
)

// RegisterBuiltins adds the built-in descriptors to reg.
func RegisterBuiltins(reg *types.Registry) {
	for _, d := range builtinDescriptors() {
		reg.MustAdd(d)
	}
}

// NewRegistry returns a registry holding the built-in descriptors.
func NewRegistry() *types.Registry {
	reg := types.NewRegistry()
	RegisterBuiltins(reg)
	return reg
}

func kindOf(v any) reflect.Kind {
	if v == nil {
		return reflect.Invalid
	}
	return reflect.TypeOf(v).Kind()
}

func builtinDescriptors() []*types.Descriptor {
	return []*types.Descriptor{
		{
			Name:     "undefined",
			Identify: types.IsUndefined,
			Equal:    func(_, _ any, _ types.Comparer) (bool, error) { return true, nil },
		},
		{
			Name:     "null",
			Identify: types.IsNil,
			Equal:    func(_, _ any, _ types.Comparer) (bool, error) { return true, nil },
		},
		{
			Name:     "boolean",
			Identify: func(v any) bool { return kindOf(v) == reflect.Bool },
			Equal:    func(a, b any, _ types.Comparer) (bool, error) { return reflect.ValueOf(a).Bool() == reflect.ValueOf(b).Bool(), nil },
		},
		{
			Name:     "number",
			Identify: isNumber,
			Equal:    func(a, b any, _ types.Comparer) (bool, error) { return sameNumber(a, b), nil },
		},
		{
			Name:     "string",
			Identify: func(v any) bool { return kindOf(v) == reflect.String },
			Equal: func(a, b any, _ types.Comparer) (bool, error) {
				return reflect.ValueOf(a).String() == reflect.ValueOf(b).String(), nil
			},
			Diff: diffStrings,
		},
		{
			Name:     "regexp",
			Identify: func(v any) bool { r, ok := v.(*regexp.Regexp); return ok && r != nil },
			Equal: func(a, b any, _ types.Comparer) (bool, error) {
				return a.(*regexp.Regexp).String() == b.(*regexp.Regexp).String(), nil
			},
		},
		{
			Name:     "date",
			Identify: func(v any) bool { _, ok := v.(time.Time); return ok },
			Equal: func(a, b any, _ types.Comparer) (bool, error) {
				return a.(time.Time).Equal(b.(time.Time)), nil
			},
		},
		{
			Name:     "function",
			Identify: func(v any) bool { return kindOf(v) == reflect.Func && !types.IsNil(v) },
			Equal:    func(a, b any, _ types.Comparer) (bool, error) { return types.Same(a, b), nil },
		},
		{
			Name:     "object",
			Identify: isObject,
			Equal:    equalRecords,
			Diff:     diffRecords,
			Similar:  similarRecords,
		},
		{
			Name:     "Error",
			Base:     "object",
			Identify: func(v any) bool { _, ok := v.(error); return ok },
			Similar: func(a, b any) bool {
				return types.ErrorName(a.(error)) == types.ErrorName(b.(error))
			},
		},
		{
			Name:     "Promise",
			Base:     "object",
			Identify: func(v any) bool { p, ok := v.(*promise.Promise); return ok && p != nil },
			Equal:    func(a, b any, _ types.Comparer) (bool, error) { return a == b, nil },
		},
		{
			Name:     "array-like",
			Base:     "object",
			Identify: isSequence,
			Equal:    equalSequences,
			Diff:     diffSequences,
			Similar:  func(a, b any) bool { return true },
		},
		{
			Name:     "arguments",
			Base:     "array-like",
			Identify: func(v any) bool { _, ok := v.(types.Arguments); return ok },
		},
		{
			Name:     "array",
			Base:     "array-like",
			Identify: func(v any) bool { _, ok := v.(types.Arguments); return !ok },
		},
		{
			Name:  "binaryArray",
			Base:  "array-like",
			Equal: equalBinary,
			Diff:  diffBinary,
		},
		binaryType("Buffer", []byte(nil)),
		binaryType("Int8Array", []int8(nil)),
		binaryType("Uint16Array", []uint16(nil)),
		binaryType("Int16Array", []int16(nil)),
		binaryType("Uint32Array", []uint32(nil)),
		binaryType("Int32Array", []int32(nil)),
		{
			// Placeholder type for assertion continuations; never matches a value.
			Name: "assertion",
			Base: "string",
		},
	}
}

func binaryType(name string, sample any) *types.Descriptor {
	t := reflect.TypeOf(sample)
	return &types.Descriptor{
		Name:     name,
		Base:     "binaryArray",
		Identify: func(v any) bool { return v != nil && reflect.TypeOf(v) == t },
	}
}

func isSequence(v any) bool {
	if types.IsNil(v) {
		return false
	}
	_, ok := types.Elements(v)
	return ok
}

func isObject(v any) bool {
	if types.IsNil(v) || types.IsUndefined(v) || types.IsHole(v) {
		return false
	}
	switch v.(type) {
	case time.Time, *regexp.Regexp:
		return false
	}
	if isSequence(v) {
		return true
	}
	_, ok := types.AsRecord(v)
	return ok
}

func constructorName(r *types.Record) string {
	if r.Constructor == "" {
		return "undefined"
	}
	return r.Constructor
}

func equalRecords(a, b any, c types.Comparer) (bool, error) {
	ra, _ := types.AsRecord(a)
	rb, _ := types.AsRecord(b)
	if ra == nil || rb == nil {
		return ra == rb, nil
	}
	if ra.Constructor != rb.Constructor {
		return false, nil
	}
	for _, k := range unionKeys(ra, rb) {
		va, vb := ownOrUndefined(ra, k), ownOrUndefined(rb, k)
		if types.IsUndefined(va) && types.IsUndefined(vb) {
			continue
		}
		eq, err := c.Equal(va, vb)
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

func diffRecords(a, b any, c types.Comparer) (*diff.Node, error) {
	ra, _ := types.AsRecord(a)
	rb, _ := types.AsRecord(b)
	if ra == nil || rb == nil {
		return &diff.Node{Kind: diff.Mismatch}, nil
	}
	if ra.Constructor != rb.Constructor {
		return &diff.Node{
			Kind:        diff.Mismatch,
			Constructor: ra.Constructor,
			Note:        fmt.Sprintf("Mismatching constructors %s should be %s", constructorName(ra), constructorName(rb)),
		}, nil
	}

	node := &diff.Node{Kind: diff.Changed, Constructor: ra.Constructor}
	for _, k := range ra.Keys() {
		va := ownOrUndefined(ra, k)
		vb := ownOrUndefined(rb, k)
		switch {
		case types.IsUndefined(va) && types.IsUndefined(vb):
		case types.IsUndefined(vb):
			node.Children = append(node.Children, &diff.Node{Kind: diff.Extra, Key: k, Actual: va})
		case types.IsUndefined(va):
			node.Children = append(node.Children, &diff.Node{Kind: diff.Missing, Key: k, Expected: vb})
		default:
			child, err := c.Diff(va, vb)
			if err != nil {
				return nil, err
			}
			child.Key = k
			node.Children = append(node.Children, child)
		}
	}
	for _, k := range rb.Keys() {
		if _, ok := ra.Own(k); ok {
			continue
		}
		if vb := ownOrUndefined(rb, k); !types.IsUndefined(vb) {
			node.Children = append(node.Children, &diff.Node{Kind: diff.Missing, Key: k, Expected: vb})
		}
	}
	return node.Settle(), nil
}

func similarRecords(a, b any) bool {
	ra, _ := types.AsRecord(a)
	rb, _ := types.AsRecord(b)
	if ra == nil || rb == nil || ra.Constructor != rb.Constructor {
		return false
	}
	if ra.Len() == 0 && rb.Len() == 0 {
		return true
	}
	for _, k := range ra.Keys() {
		if _, ok := rb.Own(k); ok {
			return true
		}
	}
	return false
}

func ownOrUndefined(r *types.Record, k string) any {
	if v, ok := r.Own(k); ok {
		return v
	}
	return types.Undefined
}

func unionKeys(a, b *types.Record) []string {
	keys := a.Keys()
	for _, k := range b.Keys() {
		if _, ok := a.Own(k); !ok {
			keys = append(keys, k)
		}
	}
	return keys
}

func equalSequences(a, b any, c types.Comparer) (bool, error) {
	ea, _ := types.Elements(a)
	eb, _ := types.Elements(b)
	if len(ea) != len(eb) {
		return false, nil
	}
	for i := range ea {
		ha, hb := types.IsHole(ea[i]), types.IsHole(eb[i])
		if ha || hb {
			if ha != hb {
				return false, nil
			}
			continue
		}
		eq, err := c.Equal(ea[i], eb[i])
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

func diffSequences(a, b any, c types.Comparer) (*diff.Node, error) {
	ea, _ := types.Elements(a)
	eb, _ := types.Elements(b)
	s, _ := c.(*session)

	equal := func(i, j int) (bool, error) {
		ha, hb := types.IsHole(ea[i]), types.IsHole(eb[j])
		if ha || hb {
			return ha && hb, nil
		}
		return c.Equal(ea[i], eb[j])
	}
	match := func(i, j int) (diff.Match, error) {
		eq, err := equal(i, j)
		if err != nil {
			return diff.NoMatch, err
		}
		if eq {
			return diff.Same, nil
		}
		if s != nil && !types.IsHole(ea[i]) && !types.IsHole(eb[j]) && s.similar(ea[i], eb[j]) {
			return diff.Similar, nil
		}
		return diff.NoMatch, nil
	}

	steps, err := diff.Align(len(ea), len(eb), match)
	if err != nil {
		return nil, err
	}
	steps, err = diff.DetectMoves(steps, equal)
	if err != nil {
		return nil, err
	}
	steps = diff.PairChanges(steps, func(i, j int) bool {
		if s == nil || types.IsHole(ea[i]) || types.IsHole(eb[j]) {
			return false
		}
		return s.classify(ea[i]) == s.classify(eb[j])
	})

	node := &diff.Node{Kind: diff.Changed}
	for _, st := range steps {
		var child *diff.Node
		switch st.Kind {
		case diff.StepKeep:
			child = &diff.Node{Kind: diff.Equal, Key: st.A, Actual: ea[st.A], Expected: eb[st.B]}
		case diff.StepChange:
			child, err = c.Diff(ea[st.A], eb[st.B])
			if err != nil {
				return nil, err
			}
			child.Key = st.A
		case diff.StepRemove:
			child = &diff.Node{Kind: diff.Extra, Key: st.A, Actual: ea[st.A]}
		case diff.StepInsert:
			child = &diff.Node{Kind: diff.Missing, Key: st.B, Expected: eb[st.B]}
		case diff.StepMove:
			child = &diff.Node{Kind: diff.Moved, Key: st.A, Actual: ea[st.A], Expected: eb[st.B], Group: st.Group}
		case diff.StepMoveTarget:
			child = &diff.Node{Kind: diff.Inserted, Key: st.B, Expected: eb[st.B], Group: st.Group}
		}
		node.Children = append(node.Children, child)
	}
	return node.Settle(), nil
}

func equalBinary(a, b any, _ types.Comparer) (bool, error) {
	va, wa, _ := types.BinaryElements(a)
	vb, wb, _ := types.BinaryElements(b)
	if wa != wb || len(va) != len(vb) {
		return false, nil
	}
	for i := range va {
		if va[i] != vb[i] {
			return false, nil
		}
	}
	return true, nil
}

func diffBinary(a, b any, c types.Comparer) (*diff.Node, error) {
	va, width, _ := types.BinaryElements(a)
	vb, _, _ := types.BinaryElements(b)
	perRow, threshold := 16, diff.DefaultSuppressThreshold
	if s, ok := c.(*session); ok {
		perRow, threshold = s.engine.bytesPerRow, s.engine.threshold
	}
	return diff.Binary(va, vb, width, perRow, threshold), nil
}

func diffStrings(a, b any, c types.Comparer) (*diff.Node, error) {
	sa, sb := reflect.ValueOf(a).String(), reflect.ValueOf(b).String()
	chars := diff.DefaultEngine
	if s, ok := c.(*session); ok {
		chars = s.engine.chars
	}
	return &diff.Node{Kind: diff.Changed, Chars: chars.Strings(sa, sb)}, nil
}
