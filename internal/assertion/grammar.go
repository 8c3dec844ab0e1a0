package assertion

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// signatureGrammar is the participle grammar for assertion signatures such
// as "<object> [not] to [only] have [own] properties <array>".
//
//nolint:govet // participle grammar tags are not standard struct tags
type signatureGrammar struct {
	Subject *placeholderGrammar `parser:"@@"`
	Tokens  []*tokenGrammar     `parser:"@@*"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type tokenGrammar struct {
	Placeholder *placeholderGrammar `parser:"  @@"`
	Optional    *choiceGrammar      `parser:"| \"[\" @@ \"]\""`
	Choice      *choiceGrammar      `parser:"| \"(\" @@ \")\""`
	Word        string              `parser:"| @Word"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type choiceGrammar struct {
	Alternatives []*wordsGrammar `parser:"@@ ( \"|\" @@ )*"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type wordsGrammar struct {
	Words []string `parser:"@Word+"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type placeholderGrammar struct {
	Types    []string `parser:"\"<\" @Word ( \"|\" @Word )*"`
	Modifier string   `parser:"@( \"?\" | \"*\" | \"+\" )? \">\""`
}

// signatureLexer tokenizes signatures. Type names may contain dashes
// (array-like).
var signatureLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Word", Pattern: `[A-Za-z0-9_$][A-Za-z0-9_$\-]*`},
	{Name: "Punct", Pattern: `[<>\[\]()|?*+]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var signatureParser = participle.MustBuild[signatureGrammar](
	participle.Lexer(signatureLexer),
	participle.Elide("Whitespace"),
)

// ParseSignature parses and validates a signature.
func ParseSignature(text string) (*Signature, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyPhrase
	}

	parsed, err := signatureParser.ParseString("", text)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSignature, text, err)
	}

	sig := &Signature{Subject: parsed.Subject.toPlaceholder()}
	if sig.Subject.Optional || sig.Subject.Variadic {
		return nil, fmt.Errorf("%w: %q: subject cannot take a modifier", ErrInvalidSignature, text)
	}
	if sig.Subject.IsAssertion() {
		return nil, fmt.Errorf("%w: %q: subject cannot be an assertion", ErrInvalidSignature, text)
	}

	for _, tok := range parsed.Tokens {
		if tok.Placeholder != nil {
			sig.Args = append(sig.Args, tok.Placeholder.toPlaceholder())
			continue
		}
		if len(sig.Args) > 0 {
			return nil, fmt.Errorf("%w: %q: words cannot follow argument placeholders", ErrInvalidSignature, text)
		}
		switch {
		case tok.Optional != nil:
			sig.Parts = append(sig.Parts, Part{Alternatives: tok.Optional.words(), Optional: true})
		case tok.Choice != nil:
			sig.Parts = append(sig.Parts, Part{Alternatives: tok.Choice.words()})
		default:
			sig.Parts = append(sig.Parts, Part{Alternatives: [][]string{{tok.Word}}})
		}
	}
	if len(sig.Parts) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyPhrase, text)
	}
	if err := sig.validateArgs(); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSignature, text, err)
	}
	sig.Text = sig.String()
	return sig, nil
}

func (c *choiceGrammar) words() [][]string {
	out := make([][]string, len(c.Alternatives))
	for i, alt := range c.Alternatives {
		out[i] = alt.Words
	}
	return out
}

func (p *placeholderGrammar) toPlaceholder() Placeholder {
	return Placeholder{
		Types:    p.Types,
		Optional: p.Modifier == "?" || p.Modifier == "*",
		Variadic: p.Modifier == "*" || p.Modifier == "+",
	}
}
