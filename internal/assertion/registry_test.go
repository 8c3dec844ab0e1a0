package assertion

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expectkit/internal/compare"
	"expectkit/internal/failure"
)

func TestParseSignature(t *testing.T) {
	sig, err := ParseSignature("  <object>  [not] to [only] have [own] properties <array> ")
	require.NoError(t, err)
	assert.Equal(t, "<object> [not] to [only] have [own] properties <array>", sig.Text)
	assert.Equal(t, []string{"object"}, sig.Subject.Types)
	assert.Len(t, sig.Parts, 6)
	assert.True(t, sig.Parts[0].Optional)
	require.Len(t, sig.Args, 1)
	assert.Equal(t, []string{"array"}, sig.Args[0].Types)
	assert.Equal(t, []string{"object", "array"}, sig.TypeNames())

	sig, err = ParseSignature("<string|array-like> [not] to contain <string+>")
	require.NoError(t, err)
	assert.Equal(t, []string{"string", "array-like"}, sig.Subject.Types)
	assert.True(t, sig.Args[0].Variadic)
	assert.False(t, sig.Args[0].Optional)

	sig, err = ParseSignature("<Promise> when rejected <assertion?>")
	require.NoError(t, err)
	assert.True(t, sig.TakesAssertion())
	assert.Equal(t, "<Promise> when rejected <assertion?>", sig.String())
}

func TestParseSignature_Invalid(t *testing.T) {
	tests := []struct {
		name string
		sig  string
		want error
	}{
		{"empty", "   ", ErrEmptyPhrase},
		{"no words", "<any> <any>", ErrEmptyPhrase},
		{"unterminated placeholder", "<any to be", ErrInvalidSignature},
		{"words after arguments", "<any> to be <any> ok", ErrInvalidSignature},
		{"assertion not last", "<any> to foo <assertion> <any>", ErrInvalidSignature},
		{"subject modifier", "<any?> to be ok", ErrInvalidSignature},
		{"subject assertion", "<assertion> to be ok", ErrInvalidSignature},
		{"variadic not last", "<any> to foo <string+> <any>", ErrInvalidSignature},
		{"required after optional", "<any> to foo <any?> <string>", ErrInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSignature(tt.sig)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSignature_Variants(t *testing.T) {
	sig, err := ParseSignature("<object> [not] to [only] have [own] properties <array>")
	require.NoError(t, err)

	variants := sig.Variants()
	require.Len(t, variants, 8)

	byPhrase := make(map[string]Variant)
	for _, v := range variants {
		byPhrase[v.Phrase] = v
	}
	assert.Empty(t, byPhrase["to have properties"].Flags)
	assert.Equal(t, []string{"not", "only", "own"}, byPhrase["not to only have own properties"].Flags)
	assert.Equal(t, []string{"own"}, byPhrase["to have own properties"].Flags)

	sig, err = ParseSignature("<any> [not] to be (a|an) <string>")
	require.NoError(t, err)
	variants = sig.Variants()
	require.Len(t, variants, 4)
	assert.Equal(t, "to be a", variants[0].Phrase)
	assert.Equal(t, []string{"a"}, variants[0].Alternations)
	assert.Equal(t, "not to be an", variants[3].Phrase)
	assert.Equal(t, []string{"not"}, variants[3].Flags)
}

func newRegistry(t *testing.T, sigs ...string) *Registry[string] {
	t.Helper()
	r := NewRegistry[string]()
	for _, s := range sigs {
		require.NoError(t, r.Register(s, s))
	}
	return r
}

func TestResolve_MostSpecificSubject(t *testing.T) {
	types := compare.NewRegistry()
	r := newRegistry(t, "<any> to foo", "<object> to foo", "<array-like> to foo")

	tests := []struct {
		subject any
		want    string
	}{
		{1, "<any> to foo"},
		{map[string]int{}, "<object> to foo"},
		{[]int{}, "<array-like> to foo"},
		{[]byte{}, "<array-like> to foo"},
	}
	for _, tt := range tests {
		m, err := r.Resolve(types, tt.subject, "to foo", nil)
		require.NoError(t, err)
		assert.Equal(t, tt.want, m.Handler())
	}
}

func TestResolve_MostRecentOnTie(t *testing.T) {
	r := NewRegistry[string]()
	require.NoError(t, r.Register("<any> to bar", "first"))
	require.NoError(t, r.Register("<any> to bar", "second"))

	m, err := r.Resolve(compare.NewRegistry(), 1, "to bar", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", m.Handler())

	entries, err := r.Lookup("<any>   to bar")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestResolve_ArgumentTypes(t *testing.T) {
	types := compare.NewRegistry()
	r := newRegistry(t,
		"<object> [not] to [only] have [own] properties <array>",
		"<object> to have [own] properties <object>",
	)

	m, err := r.Resolve(types, map[string]any{"a": 1}, "to have properties", []any{[]any{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "<object> [not] to [only] have [own] properties <array>", m.Handler())
	assert.Equal(t, []any{[]any{"a"}}, m.Args)

	m, err = r.Resolve(types, map[string]any{"a": 1}, "to  have own properties", []any{map[string]any{"a": 1}})
	require.NoError(t, err)
	assert.Equal(t, "<object> to have [own] properties <object>", m.Handler())
	assert.True(t, m.Flags["own"])
	assert.False(t, m.Flags["not"])
}

func TestResolve_SignatureMismatch(t *testing.T) {
	types := compare.NewRegistry()
	r := newRegistry(t,
		"<object> [not] to [only] have [own] properties <array>",
		"<object> to have [own] properties <object>",
	)

	_, err := r.Resolve(types, map[string]any{"a": "foo"}, "to have properties", []any{"a", "b"})
	var se *failure.SignatureError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, failure.ErrSignature)
	assert.Equal(t,
		"The assertion does not have a matching signature for:\n"+
			"    <object> to have properties <string> <string>\n"+
			"  did you mean:\n"+
			"    <object> [not] to [only] have [own] properties <array>\n"+
			"    <object> to have [own] properties <object>",
		err.Error())

	_, err = r.Resolve(types, map[string]any{"a": "foo"}, "not to have properties", []any{map[string]any{"a": "foo"}})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"<object> [not] to [only] have [own] properties <array>"}, se.Suggestions)
}

func TestResolve_RankedSuggestions(t *testing.T) {
	r := newRegistry(t, "<object> to baz <number>", "<string> to baz <number>", "<string> to baz <array>")

	_, err := r.Resolve(compare.NewRegistry(), "x", "to baz", []any{"y"})
	var se *failure.SignatureError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{
		"<string> to baz <number>",
		"<string> to baz <array>",
		"<object> to baz <number>",
	}, se.Suggestions)
}

func TestResolve_FlagConflict(t *testing.T) {
	r := NewRegistry[string]()
	require.NoError(t, r.Register("<object> [not] to [only] have [own] properties <array>", "props",
		WithExclusiveFlags("not", "only", "to only have properties"),
		WithExclusiveFlags("own", "only", "to only have properties"),
	))
	types := compare.NewRegistry()

	_, err := r.Resolve(types, map[string]any{}, "not to only have properties", []any{[]any{"foo"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrUsage)
	assert.ErrorIs(t, err, failure.ErrFlagConflict)
	assert.Equal(t, `The "not" flag cannot be used together with "to only have properties".`, err.Error())

	_, err = r.Resolve(types, map[string]any{}, "to only have own properties", []any{[]any{"foo"}})
	assert.Equal(t, `The "own" flag cannot be used together with "to only have properties".`, err.Error())

	_, err = r.Resolve(types, map[string]any{}, "to only have properties", []any{[]any{"foo"}})
	assert.NoError(t, err)
}

func TestResolve_NestedAssertion(t *testing.T) {
	types := compare.NewRegistry()
	r := newRegistry(t, "<array-like> [when] sorted numerically <assertion?>", "<any> to foo <assertion>")

	t.Run("continuation from arguments", func(t *testing.T) {
		m, err := r.Resolve(types, []int{2, 1}, "sorted numerically", []any{"to equal", []int{1, 2}})
		require.NoError(t, err)
		assert.True(t, m.Nested)
		assert.Equal(t, "to equal", m.NestedPhrase)
		assert.Equal(t, []any{[]int{1, 2}}, m.NestedArgs)
		assert.Empty(t, m.Args)
	})

	t.Run("continuation from phrase", func(t *testing.T) {
		m, err := r.Resolve(types, []int{2, 1}, "when sorted numerically to equal", []any{[]int{1, 2}})
		require.NoError(t, err)
		assert.True(t, m.Flags["when"])
		assert.Equal(t, "when sorted numerically", m.Phrase)
		assert.Equal(t, "to equal", m.NestedPhrase)
		assert.Equal(t, []any{[]int{1, 2}}, m.NestedArgs)
	})

	t.Run("optional continuation omitted", func(t *testing.T) {
		m, err := r.Resolve(types, []int{2, 1}, "sorted numerically", nil)
		require.NoError(t, err)
		assert.False(t, m.Nested)
	})

	t.Run("required continuation missing", func(t *testing.T) {
		_, err := r.Resolve(types, 1, "to foo", nil)
		assert.ErrorIs(t, err, failure.ErrSignature)
	})

	t.Run("continuation must be a string", func(t *testing.T) {
		_, err := r.Resolve(types, 1, "to foo", []any{42})
		assert.ErrorIs(t, err, failure.ErrSignature)
	})
}

func TestResolve_OptionalAndVariadic(t *testing.T) {
	types := compare.NewRegistry()
	r := newRegistry(t, "<string> [not] to contain <string+>", "<object> to have property <string> <any?>")

	m, err := r.Resolve(types, "abc", "to contain", []any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, m.Args)

	_, err = r.Resolve(types, "abc", "to contain", nil)
	assert.ErrorIs(t, err, failure.ErrSignature)

	_, err = r.Resolve(types, "abc", "to contain", []any{"a", 1})
	assert.ErrorIs(t, err, failure.ErrSignature)

	m, err = r.Resolve(types, map[string]any{}, "to have property", []any{"a"})
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, m.Args)

	m, err = r.Resolve(types, map[string]any{}, "to have property", []any{"a", nil})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", nil}, m.Args)

	_, err = r.Resolve(types, map[string]any{}, "to have property", []any{"a", 1, 2})
	assert.ErrorIs(t, err, failure.ErrSignature)
}

func TestResolve_UnknownPhrase(t *testing.T) {
	r := newRegistry(t, "<any> [not] to be <any>", "<any> [not] to equal <any>", "<array-like> [not] to be empty")

	_, err := r.Resolve(compare.NewRegistry(), 1, "to bee", []any{1})
	var se *failure.SignatureError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Unknown)
	assert.Contains(t, se.Suggestions, "to be")
	assert.Contains(t, err.Error(), "Unknown assertion 'to bee', did you mean: ")

	_, err = r.Resolve(compare.NewRegistry(), 1, "   ", nil)
	assert.ErrorIs(t, err, failure.ErrUsage)
}

func TestSuggestPhrases_Typos(t *testing.T) {
	known := []string{"to be", "to be false", "to be true", "to equal", "to contain", "to be empty"}
	tests := []struct {
		phrase, want string
	}{
		{"to eqaul", "to equal"},
		{"to equel", "to equal"},
		{"to be fasle", "to be false"},
		{"to contian", "to contain"},
	}
	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			got := suggestPhrases(tt.phrase, append([]string(nil), known...))
			require.NotEmpty(t, got)
			assert.Equal(t, tt.want, got[0])
		})
	}
}

func TestSuggestPhrases_Bounded(t *testing.T) {
	known := []string{"to be a", "to be an", "to be ok", "to be on", "to be of", "to be in", "to be"}
	got := suggestPhrases("to be o", known)
	assert.Len(t, got, maxSuggestions)
	assert.Empty(t, suggestPhrases("xyzzy plugh", []string{"to equal", "to satisfy"}))
}

func TestRegistry_CloneAndImport(t *testing.T) {
	r := newRegistry(t, "<any> to foo")
	c := r.Clone()
	require.NoError(t, c.Register("<any> to bar", "bar"))

	assert.False(t, r.Has("to bar"))
	assert.True(t, c.Has("to bar"))
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, 2, c.Count())

	entries, err := c.Lookup("<any> to bar")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	r.Import(entries[0])
	assert.True(t, r.Has("to  bar"))
	assert.Equal(t, []string{"to bar", "to foo"}, r.Phrases())
	assert.Len(t, r.Signatures(), 2)
}

func TestMustRegister_Panics(t *testing.T) {
	r := NewRegistry[string]()
	assert.Panics(t, func() { r.MustRegister("<any", "x") })

	err := r.Register("<any", "x")
	assert.True(t, errors.Is(err, ErrInvalidSignature))
}
