// Package assertion stores assertion signatures and resolves a spoken
// phrase plus runtime values to the best matching handler.
package assertion

import (
	"errors"
	"strings"
)

// AssertionType is the placeholder type that swallows the rest of a call as
// a nested assertion.
const AssertionType = "assertion"

// Placeholder is a typed slot for the subject or an argument.
type Placeholder struct {
	// Types are alternatives; a value matching any of them fills the slot.
	Types []string
	// Optional is set by the ? and * modifiers.
	Optional bool
	// Variadic is set by the * and + modifiers.
	Variadic bool
}

// IsAssertion reports whether the slot holds a nested assertion.
func (p Placeholder) IsAssertion() bool {
	return len(p.Types) == 1 && p.Types[0] == AssertionType
}

func (p Placeholder) String() string {
	s := "<" + strings.Join(p.Types, "|")
	switch {
	case p.Optional && p.Variadic:
		s += "*"
	case p.Optional:
		s += "?"
	case p.Variadic:
		s += "+"
	}
	return s + ">"
}

// Part is one word position of a phrase: a literal word, an alternation
// such as (a|an), or an optional word such as [not].
type Part struct {
	Alternatives [][]string
	Optional     bool
}

func (p Part) String() string {
	alts := make([]string, len(p.Alternatives))
	for i, a := range p.Alternatives {
		alts[i] = strings.Join(a, " ")
	}
	joined := strings.Join(alts, "|")
	switch {
	case p.Optional:
		return "[" + joined + "]"
	case len(alts) > 1:
		return "(" + joined + ")"
	}
	return joined
}

// Signature is a parsed assertion signature.
type Signature struct {
	Text    string
	Subject Placeholder
	Parts   []Part
	Args    []Placeholder
}

// String renders the signature in canonical form.
func (s *Signature) String() string {
	fields := []string{s.Subject.String()}
	for _, p := range s.Parts {
		fields = append(fields, p.String())
	}
	for _, a := range s.Args {
		fields = append(fields, a.String())
	}
	return strings.Join(fields, " ")
}

// TypeNames returns every type the signature refers to, excluding the
// assertion placeholder.
func (s *Signature) TypeNames() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p Placeholder) {
		if p.IsAssertion() {
			return
		}
		for _, t := range p.Types {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	add(s.Subject)
	for _, a := range s.Args {
		add(a)
	}
	return out
}

// TakesAssertion reports whether the last argument is a nested assertion.
func (s *Signature) TakesAssertion() bool {
	return len(s.Args) > 0 && s.Args[len(s.Args)-1].IsAssertion()
}

func (s *Signature) validateArgs() error {
	optionalSeen := false
	for i, a := range s.Args {
		last := i == len(s.Args)-1
		if a.IsAssertion() && !last {
			return errors.New("an assertion placeholder must come last")
		}
		if a.IsAssertion() && a.Variadic {
			return errors.New("an assertion placeholder cannot be variadic")
		}
		if a.Variadic && !last && !(i == len(s.Args)-2 && s.Args[i+1].IsAssertion()) {
			return errors.New("a variadic placeholder must come last")
		}
		if optionalSeen && !a.Optional && !a.IsAssertion() {
			return errors.New("a required placeholder cannot follow an optional one")
		}
		if a.Optional {
			optionalSeen = true
		}
	}
	return nil
}

// Variant is one concrete phrase a signature accepts.
type Variant struct {
	Phrase string
	// Flags are the optional words present in Phrase.
	Flags []string
	// Alternations are the words chosen from (a|b) groups.
	Alternations []string
}

// Variants expands every combination of optional words and alternations.
func (s *Signature) Variants() []Variant {
	out := []Variant{{}}
	var words [][]string
	words = append(words, nil)
	for _, part := range s.Parts {
		var next []Variant
		var nextWords [][]string
		for i, v := range out {
			if part.Optional {
				next = append(next, v)
				nextWords = append(nextWords, words[i])
			}
			for _, alt := range part.Alternatives {
				nv := Variant{
					Flags:        append([]string(nil), v.Flags...),
					Alternations: append([]string(nil), v.Alternations...),
				}
				joined := strings.Join(alt, " ")
				switch {
				case part.Optional:
					nv.Flags = append(nv.Flags, joined)
				case len(part.Alternatives) > 1:
					nv.Alternations = append(nv.Alternations, joined)
				}
				next = append(next, nv)
				nextWords = append(nextWords, append(append([]string(nil), words[i]...), alt...))
			}
		}
		out, words = next, nextWords
	}
	for i := range out {
		out[i].Phrase = strings.Join(words[i], " ")
	}
	return out
}

// NormalizePhrase collapses runs of whitespace.
func NormalizePhrase(phrase string) string {
	return strings.Join(strings.Fields(phrase), " ")
}
