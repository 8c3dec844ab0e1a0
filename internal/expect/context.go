package expect

import (
	"fmt"
	"sync"

	"expectkit/internal/assertion"
	"expectkit/internal/diff"
	"expectkit/internal/failure"
	"expectkit/internal/promise"
	"expectkit/internal/types"
)

// Context is handed to an assertion handler. It carries the bound call and
// the helpers handlers use to compare, describe and fail.
type Context struct {
	Subject any
	// Args are the values bound to the signature's argument slots.
	Args []any
	// Phrase is the matched phrase, flags included.
	Phrase string
	// Flags holds the optional words present in Phrase.
	Flags map[string]bool
	// Alternations holds the chosen word of every (a|b) group.
	Alternations []string

	inst  *Instance
	match *assertion.Match[Handler]

	headlineOnce sync.Once
	headline     string
}

func newContext(i *Instance, subject any, m *assertion.Match[Handler]) *Context {
	return &Context{
		Subject:      subject,
		Args:         m.Args,
		Phrase:       m.Phrase,
		Flags:        m.Flags,
		Alternations: m.Alternations,
		inst:         i,
		match:        m,
	}
}

// Instance returns the instance that dispatched the call.
func (c *Context) Instance() *Instance { return c.inst }

// Flag reports whether the optional word (or words) name was spoken.
func (c *Context) Flag(name string) bool { return c.Flags[name] }

// Negated reports whether the "not" flag is set.
func (c *Context) Negated() bool { return c.Flags["not"] }

// Arg returns the k-th bound argument, or Undefined when the slot was
// omitted.
func (c *Context) Arg(k int) any {
	if k < 0 || k >= len(c.Args) {
		return types.Undefined
	}
	return c.Args[k]
}

// HasArg reports whether the k-th argument was supplied.
func (c *Context) HasArg(k int) bool { return k >= 0 && k < len(c.Args) }

// Equal compares with the instance's equality engine.
func (c *Context) Equal(a, b any) (bool, error) { return c.inst.Equal(a, b) }

// Diff computes a structural delta with the instance's diff engine.
func (c *Context) Diff(a, b any) (*diff.Node, error) { return c.inst.Diff(a, b) }

// Inspect renders v with the instance's inspector.
func (c *Context) Inspect(v any) string { return c.inst.Inspect(v) }

// Is reports whether v classifies as the named type.
func (c *Context) Is(v any, name string) bool { return c.inst.types.Is(v, name) }

// Headline is the standard failure message for this call.
func (c *Context) Headline() string {
	c.headlineOnce.Do(func() {
		c.headline = c.inst.headline(c.Subject, c.Phrase, nil, c.match)
	})
	return c.headline
}

func (c *Context) newFailure(message string) *failure.AssertionFailure {
	af := failure.NewAssertionFailure(message)
	af.Subject = c.Subject
	af.Phrase = c.Phrase
	af.Args = c.Args
	return af
}

// Fail returns a failure with the standard headline.
func (c *Context) Fail() error {
	return c.newFailure(c.Headline())
}

// Explainf returns a failure with the standard headline and an indented
// explanation beneath it.
func (c *Context) Explainf(format string, args ...any) error {
	af := c.newFailure(c.Headline())
	af.Body = failure.Indent(fmt.Sprintf(format, args...), 2)
	return af
}

// Verify passes when ok is true, or false under "not", and fails with the
// standard headline otherwise.
func (c *Context) Verify(ok bool) error {
	if ok != c.Negated() {
		return nil
	}
	return c.Fail()
}

// FailWithDiff fails with the standard headline, attaching a diff of
// actual against expected when the call is not negated and both values
// classify alike.
func (c *Context) FailWithDiff(actual, expected any) error {
	if c.Negated() {
		return c.Fail()
	}
	da, de := c.inst.types.Classify(actual), c.inst.types.Classify(expected)
	if da != de {
		return c.Fail()
	}
	n, err := c.Diff(actual, expected)
	if err != nil {
		return err
	}
	return c.FailWithNode(n)
}

// FailWithNode fails with the standard headline and n rendered beneath
// it. A bare leaf carrying only a note is shown as an indented
// explanation; a leaf without any detail adds nothing.
func (c *Context) FailWithNode(n *diff.Node) error {
	af := c.newFailure(c.Headline())
	if n == nil || n.IsEqual() {
		return af
	}
	af.Diff = n
	switch {
	case len(n.Children) == 0 && n.Chars == nil && n.Rows == nil && n.Kind == diff.Changed:
		if n.Note != "" {
			af.Body = failure.Indent(n.Note, 2)
		}
		return af
	case !hasDetail(n):
		return af
	}
	af.ShowDiff = true
	if text := c.inst.inspector().Diff(n).String(); text != "" {
		af.Body = "\n" + text
	}
	return af
}

func hasDetail(n *diff.Node) bool {
	return len(n.Children) > 0 || n.Chars != nil || n.Rows != nil || n.Note != ""
}

// Call runs a nested assertion through the instance's hook chain. A
// failure is reported under this call's headline; asynchronous results
// are wrapped the same way when they reject.
func (c *Context) Call(subject any, phrase string, args ...any) (any, error) {
	result, err := c.inst.Call(subject, phrase, args...)
	if err != nil {
		return nil, c.wrap(err)
	}
	if p, ok := result.(*promise.Promise); ok {
		return p.Then(nil, func(reason error) (any, error) {
			return nil, c.wrap(reason)
		}), nil
	}
	return result, nil
}

// wrap reports a nested assertion failure under this call's headline.
// Other errors pass through untouched.
func (c *Context) wrap(err error) error {
	inner, ok := failure.IsFailure(err)
	if !ok {
		return err
	}
	af := c.newFailure(c.Headline())
	af.Body = failure.Indent(err.Error(), 2)
	af.Cause = err
	if len(inner.Stack) > 0 {
		af.Stack = inner.Stack
	}
	return af
}

// Nested reports whether the call carries a continuation assertion.
func (c *Context) Nested() bool { return c.match.Nested }

// Shift hands value to the continuation assertion, if any, and otherwise
// returns it as the result.
func (c *Context) Shift(value any) (any, error) {
	if !c.match.Nested {
		return value, nil
	}
	return c.Call(value, c.match.NestedPhrase, c.match.NestedArgs...)
}

