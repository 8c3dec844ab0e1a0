package compare

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expectkit/internal/diff"
	"expectkit/internal/failure"
	"expectkit/internal/types"
)

func newEngine() *Engine {
	return New(NewRegistry())
}

func mustEqual(t *testing.T, e *Engine, a, b any) bool {
	t.Helper()
	eq, err := e.Equal(a, b)
	require.NoError(t, err)
	return eq
}

func TestEqual_SameValueNumbers(t *testing.T) {
	e := newEngine()
	negZero := math.Copysign(0, -1)

	assert.True(t, mustEqual(t, e, math.NaN(), math.NaN()))
	assert.False(t, mustEqual(t, e, 0.0, negZero))
	assert.True(t, mustEqual(t, e, negZero, negZero))
	assert.True(t, mustEqual(t, e, 1, 1.0))
	assert.True(t, mustEqual(t, e, int8(3), uint64(3)))
	assert.False(t, mustEqual(t, e, -1, uint64(math.MaxUint64)))
	assert.False(t, mustEqual(t, e, 1, "1"))
}

func TestEqual_Primitives(t *testing.T) {
	e := newEngine()
	var nilPtr *types.Record

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"strings", "abc", "abc", true},
		{"different strings", "abc", "abd", false},
		{"booleans", true, true, true},
		{"nil and typed nil", nil, nilPtr, true},
		{"undefined", types.Undefined, types.Undefined, true},
		{"undefined vs null", types.Undefined, nil, false},
		{"functions by identity", TestEqual_Primitives, TestEqual_Primitives, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustEqual(t, e, tt.a, tt.b))
		})
	}
}

func TestEqual_Records(t *testing.T) {
	e := newEngine()

	assert.True(t, mustEqual(t, e, types.Object("a", 1, "b", types.Undefined), types.Object("a", 1)))
	assert.True(t, mustEqual(t, e, map[string]any{"a": 1}, types.Object("a", 1)))
	assert.False(t, mustEqual(t, e, types.Object("a", 1), types.Object("a", 2)))
	assert.False(t, mustEqual(t, e, types.Bare("a", 1), types.Object("a", 1)))

	inherited := types.Object("a", 1)
	inherited.Proto = types.Object("b", 2)
	assert.True(t, mustEqual(t, e, inherited, types.Object("a", 1)))
}

type point struct{ X, Y int }

func TestEqual_Structs(t *testing.T) {
	e := newEngine()
	assert.True(t, mustEqual(t, e, point{1, 2}, &point{1, 2}))
	assert.False(t, mustEqual(t, e, point{1, 2}, point{1, 3}))
	assert.False(t, mustEqual(t, e, point{1, 2}, types.Object("X", 1, "Y", 2)))
}

func TestEqual_Sequences(t *testing.T) {
	e := newEngine()

	assert.True(t, mustEqual(t, e, []int{1, 2}, []any{1, 2}))
	assert.False(t, mustEqual(t, e, types.Arguments{1, 2}, []any{1, 2}))
	assert.False(t, mustEqual(t, e, []any{1, types.Hole, 3}, []any{1, types.Undefined, 3}))
	assert.True(t, mustEqual(t, e, []any{1, types.Hole}, []any{1, types.Hole}))
	assert.False(t, mustEqual(t, e, []int{1}, []int{1, 2}))
}

func TestEqual_Binary(t *testing.T) {
	e := newEngine()
	assert.True(t, mustEqual(t, e, []byte{1, 2}, []byte{1, 2}))
	assert.False(t, mustEqual(t, e, []byte{1, 2}, []byte{1, 3}))
	assert.False(t, mustEqual(t, e, []byte{1}, []int8{1}))
	assert.False(t, mustEqual(t, e, []byte{1}, []int{1}))
}

func TestEqual_Errors(t *testing.T) {
	e := newEngine()
	assert.True(t, mustEqual(t, e, errors.New("foo"), errors.New("foo")))
	assert.False(t, mustEqual(t, e, errors.New("foo"), errors.New("bar")))
	assert.False(t, mustEqual(t, e, errors.New("foo"), types.Object("message", "foo")))
}

func cyclic() *types.Record {
	r := types.Object("name", "loop")
	r.Set("self", r)
	return r
}

func TestEqual_Circular(t *testing.T) {
	e := newEngine()

	a := cyclic()
	assert.True(t, mustEqual(t, e, a, a))

	_, err := e.Equal(a, cyclic())
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrCircular)
	assert.Equal(t, "Cannot compare circular structures", err.Error())

	_, err = e.Diff(a, cyclic())
	assert.ErrorIs(t, err, failure.ErrCircular)

	m := map[string]any{}
	m["m"] = m
	n := map[string]any{}
	n["m"] = n
	_, err = e.Equal(m, n)
	assert.ErrorIs(t, err, failure.ErrCircular)
}

func TestEqual_CircularInsideSequence(t *testing.T) {
	e := newEngine()
	a := []any{nil}
	a[0] = a
	b := []any{nil}
	b[0] = b

	_, err := e.Equal(a, b)
	assert.ErrorIs(t, err, failure.ErrCircular)
}

func TestDiff_EqualTree(t *testing.T) {
	e := newEngine()
	n, err := e.Diff(types.Object("a", []int{1}), types.Object("a", []int{1}))
	require.NoError(t, err)
	assert.True(t, n.IsEqual())
}

func TestDiff_NestedLeaf(t *testing.T) {
	e := newEngine()
	a := types.Object("a", types.Object("b", "c"))
	b := types.Object("a", types.Object("b", "d"))

	n, err := e.Diff(a, b)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"a", "b"}}, n.Differences())

	leaf := n.Find("a", "b")
	require.NotNil(t, leaf)
	assert.Equal(t, diff.Changed, leaf.Kind)
	assert.Equal(t, "c", leaf.Actual)
	assert.Equal(t, "d", leaf.Expected)
	assert.Equal(t, "c", diff.Actual(leaf.Chars))
}

func TestDiff_RecordMissingAndExtra(t *testing.T) {
	e := newEngine()
	n, err := e.Diff(types.Object("a", 1, "b", 2), types.Object("a", 1, "c", 3))
	require.NoError(t, err)

	kinds := map[any]diff.Kind{}
	for _, c := range n.Children {
		kinds[c.Key] = c.Kind
	}
	assert.Equal(t, map[any]diff.Kind{"a": diff.Equal, "b": diff.Extra, "c": diff.Missing}, kinds)
}

func TestDiff_MismatchingConstructors(t *testing.T) {
	e := newEngine()
	n, err := e.Diff(types.Bare("a", 1), types.Object("a", 1))
	require.NoError(t, err)
	assert.Equal(t, diff.Mismatch, n.Kind)
	assert.Equal(t, "Mismatching constructors undefined should be Object", n.Note)
}

func TestDiff_DifferentTypes(t *testing.T) {
	e := newEngine()
	n, err := e.Diff(types.Arguments{1}, []any{1})
	require.NoError(t, err)
	assert.Equal(t, diff.Mismatch, n.Kind)
	assert.Equal(t, "arguments", n.Type)
}

func TestDiff_ErrorsIncludeMessage(t *testing.T) {
	e := newEngine()
	n, err := e.Diff(errors.New("foo"), errors.New("bar"))
	require.NoError(t, err)
	assert.Equal(t, "Error", n.Type)

	msg := n.Find("message")
	require.NotNil(t, msg)
	assert.Equal(t, diff.Changed, msg.Kind)
}

func childKinds(n *diff.Node) []diff.Kind {
	out := make([]diff.Kind, len(n.Children))
	for i, c := range n.Children {
		out[i] = c.Kind
	}
	return out
}

func TestDiff_SequenceMovesAndChanges(t *testing.T) {
	e := newEngine()
	actual := []any{0, types.Object("foo", "bar"), 1, types.Object("bar", "bar"), []any{1, 3, 2}, "bar"}
	expected := []any{0, 1, types.Object("foo", "baz"), 42, types.Object("qux", "qux"), []any{1, 2, 3}, "baz"}

	n, err := e.Diff(actual, expected)
	require.NoError(t, err)

	want := []diff.Kind{
		diff.Equal, diff.Inserted, diff.Changed, diff.Missing, diff.Missing,
		diff.Moved, diff.Extra, diff.Changed, diff.Changed,
	}
	if d := cmp.Diff(want, childKinds(n)); d != "" {
		t.Fatalf("child kinds mismatch (-want +got):\n%s", d)
	}
	assert.Equal(t, n.Children[1].Group, n.Children[5].Group)
	assert.Equal(t, 1, n.Children[5].Actual)

	nested := n.Children[7]
	assert.Equal(t, []diff.Kind{diff.Equal, diff.Inserted, diff.Equal, diff.Moved}, childKinds(nested))
}

func TestDiff_ScalarChangeInSequence(t *testing.T) {
	e := newEngine()
	n, err := e.Diff([]int{1}, []int{2})
	require.NoError(t, err)
	require.Len(t, n.Children, 1)
	assert.Equal(t, diff.Changed, n.Children[0].Kind)
	assert.Equal(t, 1, n.Children[0].Actual)
	assert.Equal(t, 2, n.Children[0].Expected)
}

func TestDiff_Binary(t *testing.T) {
	e := newEngine()

	n, err := e.Diff([]byte("hello world, this is"), []byte("hello world, this iz"))
	require.NoError(t, err)
	require.Len(t, n.Rows, 2)
	assert.False(t, n.Rows[0].Differs)
	assert.True(t, n.Rows[1].Differs)

	big := make([]byte, 600)
	other := make([]byte, 600)
	other[550] = 1
	n, err = e.Diff(big, other)
	require.NoError(t, err)
	assert.Equal(t, diff.Suppressed, n.Kind)
	assert.Equal(t, "Diff suppressed due to size > 512", n.Note)

	limited := New(NewRegistry(), WithBinaryLimits(8, 1024))
	n, err = limited.Diff(big, other)
	require.NoError(t, err)
	assert.Equal(t, diff.Changed, n.Kind)
	assert.Len(t, n.Rows, 75)
}

func TestDiff_Uint16Rows(t *testing.T) {
	e := newEngine()
	n, err := e.Diff([]uint16{1, 2, 3, 4, 5, 6, 7, 8, 9}, []uint16{1, 2, 3, 4, 5, 6, 7, 8, 10})
	require.NoError(t, err)
	assert.Equal(t, 2, n.Width)
	require.Len(t, n.Rows, 2)
	assert.Len(t, n.Rows[0].Actual, 8)
}

func TestSimilar(t *testing.T) {
	e := newEngine()
	assert.True(t, e.Similar(types.Object("a", 1), types.Object("a", 2)))
	assert.False(t, e.Similar(types.Object("a", 1), types.Object("b", 1)))
	assert.True(t, e.Similar([]int{1}, []int{2, 3}))
	assert.False(t, e.Similar("a", "b"))
}

func TestBuiltins_Classification(t *testing.T) {
	reg := NewRegistry()
	tests := []struct {
		v    any
		want string
	}{
		{types.Undefined, "undefined"},
		{nil, "null"},
		{(*point)(nil), "null"},
		{true, "boolean"},
		{3.5, "number"},
		{uint8(1), "number"},
		{"s", "string"},
		{map[string]int{}, "object"},
		{point{}, "object"},
		{types.Object(), "object"},
		{errors.New("x"), "Error"},
		{types.Arguments{}, "arguments"},
		{[]int{}, "array"},
		{[2]int{}, "array"},
		{[]byte{}, "Buffer"},
		{[]int8{}, "Int8Array"},
		{[]uint16{}, "Uint16Array"},
		{[]int16{}, "Int16Array"},
		{[]uint32{}, "Uint32Array"},
		{[]int32{}, "Int32Array"},
		{TestBuiltins_Classification, "function"},
		{complex(1, 2), "any"},
	}
	for _, tt := range tests {
		d := reg.Classify(tt.v)
		assert.Equal(t, tt.want, d.Name, "%#v", tt.v)
		assert.Len(t, reg.Ambiguities(tt.v), 1, "%#v", tt.v)
	}

	assert.True(t, reg.Is([]byte{}, "array-like"))
	assert.True(t, reg.Is(errors.New("x"), "object"))
	assert.False(t, reg.Is("x", "assertion"))
}

type celsius struct{ degrees float64 }

func TestEqual_UnwrapToSameType(t *testing.T) {
	reg := NewRegistry()
	reg.MustAdd(&types.Descriptor{
		Name:     "celsius",
		Identify: func(v any) bool { _, ok := v.(celsius); return ok },
		Equal: func(a, b any, _ types.Comparer) (bool, error) {
			return a.(celsius) == b.(celsius), nil
		},
		Unwrap: func(v any) any { return v },
	})
	e := New(reg)

	assert.True(t, mustEqual(t, e, celsius{21}, celsius{21}))
	assert.False(t, mustEqual(t, e, celsius{21}, celsius{22}))

	n, err := e.Diff(celsius{21}, celsius{22})
	require.NoError(t, err)
	assert.Equal(t, "celsius", n.Type)
	assert.NotEqual(t, diff.Equal, n.Kind)
}

func TestWithStringEngine_SharesCache(t *testing.T) {
	chars := diff.NewEngine(0)
	first := New(NewRegistry(), WithStringEngine(chars))
	second := New(NewRegistry(), WithStringEngine(chars))
	assert.Same(t, chars, first.chars)
	assert.Same(t, first.chars, second.chars)

	assert.Same(t, diff.DefaultEngine, New(NewRegistry(), WithStringEngine(nil)).chars)
}
