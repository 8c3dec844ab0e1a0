package fixture

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expectkit/internal/types"
)

func decode(t *testing.T, src string) any {
	t.Helper()
	v, err := Decode([]byte(src))
	require.NoError(t, err)
	return v
}

func TestDecode_Scalars(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{"42", 42},
		{"-1.5", -1.5},
		{"true", true},
		{"null", nil},
		{"~", nil},
		{"hello", "hello"},
		{"'42'", "42"},
		{"!undefined", types.Undefined},
		{"!error boom", errors.New("boom")},
		{"!buffer 68 69 0a", []byte("hi\n")},
		{"!base64 aGk=", []byte("hi")},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, decode(t, tt.src))
		})
	}
}

func TestDecode_Timestamp(t *testing.T) {
	v := decode(t, "2026-03-01T10:00:00Z")
	ts, ok := v.(time.Time)
	require.True(t, ok, "got %T", v)
	assert.True(t, ts.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestDecode_Regexp(t *testing.T) {
	v := decode(t, `!regexp '^fo+$'`)
	re, ok := v.(*regexp.Regexp)
	require.True(t, ok)
	assert.Equal(t, "^fo+$", re.String())

	_, err := Decode([]byte(`!regexp '('`))
	assert.ErrorContains(t, err, "invalid regexp")
}

func TestDecode_RecordKeepsOrder(t *testing.T) {
	v := decode(t, "{b: 1, a: 2, c: [x, y]}")
	rec, ok := v.(*types.Record)
	require.True(t, ok)
	assert.Equal(t, "Object", rec.Constructor)
	assert.Equal(t, []string{"b", "a", "c"}, rec.Keys())
	c, _ := rec.Own("c")
	assert.Equal(t, []any{"x", "y"}, c)
}

func TestDecode_Constructors(t *testing.T) {
	rec := decode(t, "!Person {name: Ann}").(*types.Record)
	assert.Equal(t, "Person", rec.Constructor)

	bare := decode(t, "!bare {a: 1}").(*types.Record)
	assert.Equal(t, "", bare.Constructor)
}

func TestDecode_ErrorMapping(t *testing.T) {
	v := decode(t, "!error {message: nope}")
	err, ok := v.(error)
	require.True(t, ok)
	assert.Equal(t, "nope", err.Error())
}

func TestDecode_SequenceTags(t *testing.T) {
	args := decode(t, "!arguments [1, 2]")
	assert.Equal(t, types.Arguments{1, 2}, args)

	sparse := decode(t, "[1, !hole, 3]").([]any)
	assert.True(t, types.IsHole(sparse[1]))
	assert.Equal(t, 3, sparse[2])

	mixed := decode(t, "[!undefined, !hole, 2]").([]any)
	require.Len(t, mixed, 3)
	assert.Equal(t, types.Undefined, mixed[0])
	assert.True(t, types.IsHole(mixed[1]))
}

func TestLocalTag(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"!hole,", "!hole"},
		{"!undefined}", "!undefined"},
		{"!hole]", "!hole"},
		{"!regexp", "!regexp"},
		{"!!str", "!!str"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, localTag(tt.in), tt.in)
	}
}

func TestDecode_AliasesShareIdentity(t *testing.T) {
	v := decode(t, `
base: &b {x: 1}
first: *b
second: *b
`)
	rec := v.(*types.Record)
	first, _ := rec.Own("first")
	second, _ := rec.Own("second")
	assert.Same(t, first, second)
}

func TestDecode_MergeBecomesPrototype(t *testing.T) {
	v := decode(t, `
defaults: &d {color: red, size: 1}
item:
  <<: *d
  size: 2
`)
	rec := v.(*types.Record)
	itemV, _ := rec.Own("item")
	item := itemV.(*types.Record)

	assert.Equal(t, []string{"size"}, item.Keys())
	color, ok := item.Get("color")
	assert.True(t, ok)
	assert.Equal(t, "red", color)
	_, own := item.Own("color")
	assert.False(t, own)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(""))
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = Decode([]byte("{a: 1"))
	assert.ErrorContains(t, err, "failed to parse fixture")

	_, err = Decode([]byte("!buffer zz"))
	assert.ErrorContains(t, err, "invalid hex buffer")

	_, err = Decode([]byte("!!set {a}"))
	assert.ErrorContains(t, err, "unsupported mapping tag")
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subject.yaml")
	require.NoError(t, os.WriteFile(path, []byte("[1, 2, 3]\n"), 0644))

	v, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, v)

	_, err = DecodeFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read fixture")
}

const suiteYAML = `
name: basics
concurrency: 2
timeout: 500ms
checks:
  - name: numbers
    subject: 3
    assertion: to equal
    args: [3]
  - subject: {a: 1, b: 2}
    assertion: to satisfy
    args:
      - {a: 1}
  - name: skipped
    subject: x
    assertion: to be truthy
    skip: true
`

func TestParseSuite(t *testing.T) {
	s, err := ParseSuite([]byte(suiteYAML))
	require.NoError(t, err)

	assert.Equal(t, "basics", s.Name)
	assert.Equal(t, 2, s.Concurrency)
	assert.Equal(t, 500*time.Millisecond, s.Timeout)
	require.Len(t, s.Checks, 3)

	assert.Equal(t, "numbers", s.Checks[0].Name)
	assert.Equal(t, 3, s.Checks[0].Subject)
	assert.Equal(t, []any{3}, s.Checks[0].Args)

	assert.Equal(t, "check 2", s.Checks[1].Name)
	spec := s.Checks[1].Args[0].(*types.Record)
	assert.Equal(t, []string{"a"}, spec.Keys())

	assert.True(t, s.Checks[2].Skip)
	assert.Empty(t, s.Checks[2].Args)
}

func TestParseSuite_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no assertion", "checks: [{subject: 1}]", "missing assertion"},
		{"no subject", "checks: [{assertion: to be ok}]", "missing subject"},
		{"bad timeout", "timeout: soon\nchecks: []", "invalid suite timeout"},
		{"bad arg", "checks: [{subject: 1, assertion: to be, args: [!regexp '(']}]", "arg 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSuite([]byte(tt.src))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadSuite_DefaultsNameToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte("checks: [{subject: 1, assertion: to be ok}]"), 0644))

	s, err := LoadSuite(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Name)
	assert.Equal(t, path, s.Source)
}
