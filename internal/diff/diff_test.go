package diff

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrings_SimpleChange(t *testing.T) {
	engine := NewEngine(0)
	changes := engine.Strings("bar", "baz")

	assert.Equal(t, "bar", Actual(changes))
	assert.Equal(t, "baz", Expected(changes))
	assert.Contains(t, changes, Change{Op: OpDelete, Text: "r"})
	assert.Contains(t, changes, Change{Op: OpInsert, Text: "z"})
}

func TestStrings_EscapesStayWhole(t *testing.T) {
	changes := NewEngine(0).Strings("a\tb", "a\bb")

	want := []Change{
		{Op: OpEqual, Text: "a"},
		{Op: OpDelete, Text: `\t`},
		{Op: OpInsert, Text: `\b`},
		{Op: OpEqual, Text: "b"},
	}
	if d := cmp.Diff(want, changes); d != "" {
		t.Errorf("Strings() mismatch (-want +got):\n%s", d)
	}
}

func TestStrings_Caching(t *testing.T) {
	engine := NewEngine(0)
	first := engine.Strings("hello world", "hello there")
	second := engine.Strings("hello world", "hello there")
	assert.Equal(t, first, second)

	engine.ClearCache()
	third := engine.Strings("hello world", "hello there")
	assert.Equal(t, first, third)
}

func TestStrings_CacheKeyedOnContent(t *testing.T) {
	engine := NewEngine(0)
	forward := engine.Strings("abc", "abd")
	backward := engine.Strings("abd", "abc")
	assert.NotEqual(t, forward, backward)

	entries := 0
	engine.cache.Range(func(k, _ any) bool {
		key := k.(cacheKey)
		assert.Contains(t, []string{"abc", "abd"}, key.actual)
		entries++
		return true
	})
	assert.Equal(t, 2, entries)
}

func TestEscapeString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"it's", `it\'s`},
		{"a\nb", `a\nb`},
		{"\x00\x1b", `\0\x1b`},
		{`back\slash`, `back\\slash`},
		{" ", `\u2028`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EscapeString(tt.in), tt.in)
	}
}

// ints builds a MatchFunc over two int slices where equal values are Same.
func ints(a, b []int) MatchFunc {
	return func(i, j int) (Match, error) {
		if a[i] == b[j] {
			return Same, nil
		}
		return NoMatch, nil
	}
}

func kinds(steps []Step) []StepKind {
	out := make([]StepKind, len(steps))
	for i, s := range steps {
		out[i] = s.Kind
	}
	return out
}

func TestAlign_InsertsBeforeRemovals(t *testing.T) {
	a, b := []int{1}, []int{2}
	steps, err := Align(len(a), len(b), ints(a, b))
	require.NoError(t, err)
	assert.Equal(t, []StepKind{StepInsert, StepRemove}, kinds(steps))
}

func TestAlign_PrefixAndSuffix(t *testing.T) {
	a, b := []int{1, 2, 3, 9}, []int{1, 2, 4, 9}
	steps, err := Align(len(a), len(b), ints(a, b))
	require.NoError(t, err)

	want := []Step{
		{Kind: StepKeep, A: 0, B: 0},
		{Kind: StepKeep, A: 1, B: 1},
		{Kind: StepInsert, A: -1, B: 2},
		{Kind: StepRemove, A: 2, B: -1},
		{Kind: StepKeep, A: 3, B: 3},
	}
	if d := cmp.Diff(want, steps); d != "" {
		t.Errorf("Align() mismatch (-want +got):\n%s", d)
	}
}

func TestAlign_SimilarBecomesChange(t *testing.T) {
	match := func(i, j int) (Match, error) { return Similar, nil }
	steps, err := Align(2, 2, match)
	require.NoError(t, err)
	assert.Equal(t, []StepKind{StepChange, StepChange}, kinds(steps))
}

func TestDetectMoves_SingleElement(t *testing.T) {
	a, b := []int{1, 3, 2}, []int{1, 2, 3}
	steps, err := Align(len(a), len(b), ints(a, b))
	require.NoError(t, err)

	steps, err = DetectMoves(steps, func(i, j int) (bool, error) { return a[i] == b[j], nil })
	require.NoError(t, err)

	want := []Step{
		{Kind: StepKeep, A: 0, B: 0},
		{Kind: StepMoveTarget, A: 2, B: 1, Group: 1},
		{Kind: StepKeep, A: 1, B: 2},
		{Kind: StepMove, A: 2, B: 1, Group: 1},
	}
	if d := cmp.Diff(want, steps); d != "" {
		t.Errorf("DetectMoves() mismatch (-want +got):\n%s", d)
	}
}

func TestDetectMoves_RunSharesGroup(t *testing.T) {
	a, b := []int{5, 6, 7, 1, 2}, []int{1, 2, 5, 6, 7}
	steps, err := Align(len(a), len(b), ints(a, b))
	require.NoError(t, err)
	steps, err = DetectMoves(steps, func(i, j int) (bool, error) { return a[i] == b[j], nil })
	require.NoError(t, err)

	groups := map[int]int{}
	for _, s := range steps {
		if s.Kind == StepMove {
			groups[s.Group]++
		}
	}
	assert.Len(t, groups, 1)
	assert.Equal(t, 2, groups[1])
}

func TestPairChanges(t *testing.T) {
	steps := []Step{
		{Kind: StepKeep, A: 0, B: 0},
		{Kind: StepInsert, A: -1, B: 1},
		{Kind: StepRemove, A: 1, B: -1},
		{Kind: StepMove, A: 2, B: 4},
		{Kind: StepRemove, A: 3, B: -1},
	}
	out := PairChanges(steps, func(i, j int) bool { return true })

	want := []Step{
		{Kind: StepKeep, A: 0, B: 0},
		{Kind: StepChange, A: 1, B: 1},
		{Kind: StepMove, A: 2, B: 4},
		{Kind: StepRemove, A: 3, B: -1},
	}
	if d := cmp.Diff(want, out); d != "" {
		t.Errorf("PairChanges() mismatch (-want +got):\n%s", d)
	}
}

func TestHexRows(t *testing.T) {
	a := make([]uint64, 20)
	b := make([]uint64, 20)
	b[17] = 0xff

	rows := HexRows(a, b, 1, 16)
	require.Len(t, rows, 2)
	assert.False(t, rows[0].Differs)
	assert.True(t, rows[1].Differs)
	assert.Equal(t, 16, rows[1].Offset)
	assert.Len(t, rows[1].Actual, 4)
}

func TestHexRows_WideElements(t *testing.T) {
	a := []uint64{1, 2, 3, 4, 5}
	b := []uint64{1, 2, 3, 4}
	rows := HexRows(a, b, 4, 16)
	require.Len(t, rows, 2)
	assert.False(t, rows[0].Differs)
	assert.True(t, rows[1].Differs)
	assert.Nil(t, rows[1].Expected)
}

func TestBinary_Suppressed(t *testing.T) {
	a := make([]uint64, 600)
	b := make([]uint64, 600)
	b[599] = 1

	n := Binary(a, b, 1, 16, DefaultSuppressThreshold)
	assert.Equal(t, Suppressed, n.Kind)
	assert.Equal(t, "Diff suppressed due to size > 512", n.Note)
	assert.Empty(t, n.Rows)
}

func TestBinary_EqualRows(t *testing.T) {
	n := Binary([]uint64{1, 2}, []uint64{1, 2}, 1, 16, DefaultSuppressThreshold)
	assert.Equal(t, Equal, n.Kind)
	assert.True(t, n.IsEqual())
}

func TestNode_FindAndDifferences(t *testing.T) {
	root := &Node{Kind: Changed, Children: []*Node{
		{Kind: Equal, Key: "x"},
		{Kind: Changed, Key: "a", Children: []*Node{
			{Kind: Changed, Key: "b", Actual: "c", Expected: "d"},
		}},
		{Kind: Missing, Key: "z"},
	}}

	b := root.Find("a", "b")
	require.NotNil(t, b)
	assert.Equal(t, "c", b.Actual)
	assert.Nil(t, root.Find("a", "nope"))

	want := [][]any{{"a", "b"}, {"z"}}
	if d := cmp.Diff(want, root.Differences()); d != "" {
		t.Errorf("Differences() mismatch (-want +got):\n%s", d)
	}
	assert.False(t, root.IsEqual())
}

func TestNode_Settle(t *testing.T) {
	n := &Node{Kind: Changed, Children: []*Node{{Kind: Equal, Key: 0}}}
	assert.Equal(t, Equal, n.Settle().Kind)

	n.Children = append(n.Children, &Node{Kind: Extra, Key: 1})
	assert.Equal(t, Changed, n.Settle().Kind)

	m := &Node{Kind: Mismatch, Note: "Mismatching constructors"}
	assert.Equal(t, Mismatch, m.Settle().Kind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "moved", Moved.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}
