package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isInt(v any) bool    { _, ok := v.(int); return ok }
func isString(v any) bool { _, ok := v.(string); return ok }

func TestRegistry_ClassifyFallsBackToAny(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, AnyType, r.Classify(3.5).Name)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_MostSpecificWins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(&Descriptor{Name: "number", Identify: isInt}))
	require.NoError(t, r.Add(&Descriptor{
		Name:     "small",
		Base:     "number",
		Identify: func(v any) bool { return v.(int) < 10 },
	}))

	assert.Equal(t, "small", r.Classify(3).Name)
	assert.Equal(t, "number", r.Classify(30).Name)
	assert.Equal(t, 2, r.Classify(3).Level())
	assert.True(t, r.Is(3, "number"))
	assert.False(t, r.Is("x", "number"))
}

func TestRegistry_AncestorsMustMatch(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(&Descriptor{Name: "number", Identify: isInt}))
	// Would panic on a string if the base check did not run first.
	require.NoError(t, r.Add(&Descriptor{
		Name:     "even",
		Base:     "number",
		Identify: func(v any) bool { return v.(int)%2 == 0 },
	}))

	assert.Equal(t, AnyType, r.Classify("text").Name)
	assert.Equal(t, "even", r.Classify(4).Name)
}

func TestRegistry_AbstractBase(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(&Descriptor{Name: "abstract"}))
	require.NoError(t, r.Add(&Descriptor{Name: "concrete", Base: "abstract", Identify: isInt}))

	assert.Equal(t, "concrete", r.Classify(1).Name)
	assert.Equal(t, AnyType, r.Classify("x").Name)
	assert.False(t, r.Matches(1, "abstract"))
	assert.True(t, r.Is(1, "abstract"))
}

func TestRegistry_RecentlyAddedWinsTies(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(&Descriptor{Name: "first", Identify: isInt}))
	require.NoError(t, r.Add(&Descriptor{Name: "second", Identify: isInt}))

	assert.Equal(t, "second", r.Classify(1).Name)

	amb := r.Ambiguities(1)
	require.Len(t, amb, 2)
	assert.Equal(t, "second", amb[0].Name)
	assert.Equal(t, "first", amb[1].Name)

	assert.Len(t, r.Ambiguities("x"), 1)
}

func TestRegistry_ReplaceKeepsDescendants(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(&Descriptor{Name: "number", Identify: isInt}))
	require.NoError(t, r.Add(&Descriptor{Name: "positive", Base: "number", Identify: func(v any) bool { return v.(int) > 0 }}))
	require.NoError(t, r.Add(&Descriptor{Name: "number", Identify: func(v any) bool { return isInt(v) && v.(int) != 42 }}))

	d, err := r.Lookup("positive")
	require.NoError(t, err)
	assert.Equal(t, "number", d.Parent().Name)
	assert.Equal(t, AnyType, r.Classify(42).Name)
	assert.Equal(t, "positive", r.Classify(7).Name)
}

func TestRegistry_AddErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(&Descriptor{Name: "a", Identify: isInt}))
	require.NoError(t, r.Add(&Descriptor{Name: "b", Base: "a", Identify: isInt}))

	tests := []struct {
		name string
		d    *Descriptor
		want error
	}{
		{"nil", nil, ErrDescriptorNameEmpty},
		{"empty name", &Descriptor{}, ErrDescriptorNameEmpty},
		{"root", &Descriptor{Name: AnyType}, ErrReservedType},
		{"unknown base", &Descriptor{Name: "c", Base: "nope"}, ErrUnknownBase},
		{"self base", &Descriptor{Name: "a", Base: "a"}, ErrCircularBase},
		{"cycle", &Descriptor{Name: "a", Base: "b"}, ErrCircularBase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Add(tt.d)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("missing")
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.False(t, r.Has("missing"))
	assert.True(t, r.Has(AnyType))
}

func TestRegistry_CloneIsIndependent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(&Descriptor{Name: "number", Identify: isInt}))

	c := r.Clone()
	require.NoError(t, c.Add(&Descriptor{Name: "string", Identify: isString}))
	require.NoError(t, r.Add(&Descriptor{Name: "small", Base: "number", Identify: isInt}))

	assert.Equal(t, "string", c.Classify("x").Name)
	assert.Equal(t, AnyType, r.Classify("x").Name)
	assert.Equal(t, "number", c.Classify(1).Name)
	assert.Equal(t, "small", r.Classify(1).Name)

	cd, _ := c.Lookup("number")
	rd, _ := r.Lookup("number")
	assert.NotSame(t, cd, rd)
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.MustAdd(&Descriptor{Name: "number", Identify: isInt})
	r.MustAdd(&Descriptor{Name: "string", Identify: isString})
	r.MustAdd(&Descriptor{Name: "small", Base: "number", Identify: isInt})

	assert.Equal(t, []string{"small", "string", "number", AnyType}, r.Names())
	assert.Panics(t, func() { r.MustAdd(&Descriptor{Name: "x", Base: "y"}) })
}

func TestDescriptor_InheritedRules(t *testing.T) {
	r := NewRegistry()
	equal := func(a, b any, c Comparer) (bool, error) { return a == b, nil }
	r.MustAdd(&Descriptor{Name: "number", Identify: isInt, Equal: equal, Unwrap: func(v any) any { return v }})
	r.MustAdd(&Descriptor{Name: "small", Base: "number", Identify: isInt})

	d, err := r.Lookup("small")
	require.NoError(t, err)
	assert.NotNil(t, d.EqualFunc())
	assert.NotNil(t, d.UnwrapFunc())
	assert.Nil(t, d.DiffFunc())
	assert.Nil(t, d.InspectFunc())
	assert.Nil(t, d.SimilarFunc())
	assert.Equal(t, []string{"small", "number", AnyType}, d.Ancestors())
}

func ExampleRegistry_Classify() {
	r := NewRegistry()
	r.MustAdd(&Descriptor{Name: "string", Identify: isString})
	fmt.Println(r.Classify("hello").Name)
	fmt.Println(r.Classify(1).Name)
	// Output:
	// string
	// any
}
