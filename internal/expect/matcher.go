package expect

import (
	"context"
	"strings"

	"expectkit/internal/failure"
	"expectkit/internal/promise"
	"expectkit/internal/render"
	"expectkit/internal/types"
)

// MatcherType is the descriptor name of *Matcher values.
const MatcherType = "expect.it"

type step struct {
	phrase string
	args   []any
}

// Matcher is a deferred assertion usable as a value inside "to satisfy"
// specs. Clauses added with And must all pass; groups joined with Or
// pass when any group does.
type Matcher struct {
	inst   *Instance
	groups [][]step
}

// It creates a matcher running phrase against the subject it is given.
func (i *Instance) It(phrase string, args ...any) *Matcher {
	return &Matcher{inst: i, groups: [][]step{{{phrase: phrase, args: args}}}}
}

// And returns a matcher that additionally requires phrase in the last
// group.
func (m *Matcher) And(phrase string, args ...any) *Matcher {
	groups := make([][]step, len(m.groups))
	copy(groups, m.groups)
	last := len(groups) - 1
	groups[last] = append(append([]step(nil), groups[last]...), step{phrase: phrase, args: args})
	return &Matcher{inst: m.inst, groups: groups}
}

// Or returns a matcher that also passes when phrase does.
func (m *Matcher) Or(phrase string, args ...any) *Matcher {
	groups := append(append([][]step(nil), m.groups...), []step{{phrase: phrase, args: args}})
	return &Matcher{inst: m.inst, groups: groups}
}

// Test runs the matcher against subject. Asynchronous clauses are awaited.
func (m *Matcher) Test(subject any) error {
	var failures []string
	for _, group := range m.groups {
		err := m.runGroup(subject, group)
		if err == nil {
			return nil
		}
		if _, ok := failure.IsFailure(err); !ok {
			return err
		}
		failures = append(failures, err.Error())
	}
	if len(failures) == 1 {
		return failure.NewAssertionFailure(failures[0])
	}
	af := failure.NewAssertionFailure(failures[0])
	for _, f := range failures[1:] {
		af.Body += "or\n" + f + "\n"
	}
	af.Body = strings.TrimSuffix(af.Body, "\n")
	return af
}

func (m *Matcher) runGroup(subject any, group []step) error {
	for _, s := range group {
		result, err := m.inst.Call(subject, s.phrase, s.args...)
		if err != nil {
			return err
		}
		if p, ok := result.(*promise.Promise); ok {
			if _, err := p.Wait(context.Background()); err != nil {
				return err
			}
		}
	}
	return nil
}

// String renders the matcher the way it was built.
func (m *Matcher) String() string {
	ins := m.inst.inspector()
	var b strings.Builder
	for g, group := range m.groups {
		if g > 0 {
			b.WriteString(".or(")
		}
		for k, s := range group {
			switch {
			case g == 0 && k == 0:
				b.WriteString("expect.it(")
			case k == 0:
			default:
				b.WriteString(".and(")
			}
			b.WriteString(render.QuoteString(s.phrase))
			for _, a := range s.args {
				b.WriteString(", " + ins.Inspect(a))
			}
			b.WriteString(")")
		}
	}
	return b.String()
}

// matcherType describes *Matcher values to the classifier and inspector.
func matcherType() *types.Descriptor {
	return &types.Descriptor{
		Name: MatcherType,
		Base: "object",
		Identify: func(v any) bool {
			m, ok := v.(*Matcher)
			return ok && m != nil
		},
		Equal: func(a, b any, _ types.Comparer) (bool, error) { return a == b, nil },
		Inspect: func(v any, _ func(any) string) string {
			return v.(*Matcher).String()
		},
	}
}
