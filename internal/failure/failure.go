package failure

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"expectkit/internal/diff"
)

// AssertionFailure is raised when a subject does not satisfy an assertion.
type AssertionFailure struct {
	// Message is the headline, e.g. "expected 1 to equal 2".
	Message string
	// Body is rendered detail shown under the headline: a diff, or the
	// indented explanation of a nested assertion.
	Body string

	Subject any
	Phrase  string
	Args    []any

	// Diff is the structural delta when one is meaningful.
	Diff *diff.Node
	// ShowDiff is false when the assertion was negated or no structural
	// diff applies.
	ShowDiff bool

	// Cause is the failure of a nested assertion, if any.
	Cause error
	// Stack is where the failure originated.
	Stack []byte
}

// Error returns the headline followed by the body.
func (e *AssertionFailure) Error() string {
	if e == nil {
		return ErrAssertionFailed.Error()
	}
	if e.Body == "" {
		return e.Message
	}
	return e.Message + "\n" + e.Body
}

// Unwrap exposes the sentinel and the nested cause.
func (e *AssertionFailure) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrAssertionFailed, e.Cause}
	}
	return []error{ErrAssertionFailed}
}

// NewAssertionFailure creates a failure carrying the current stack.
func NewAssertionFailure(message string) *AssertionFailure {
	return &AssertionFailure{Message: message, Stack: debug.Stack()}
}

// SignatureError is raised when no assertion matches a call.
type SignatureError struct {
	// Phrase is the spoken assertion.
	Phrase string
	// Attempted is the call rendered as a signature, e.g.
	// "<object> to have properties <string> <string>".
	Attempted string
	// Unknown is set when no signature uses the phrase at all.
	Unknown bool
	// Suggestions are near misses, best first.
	Suggestions []string
	// Headline, when set, precedes the explanation on its own line.
	Headline string
}

func (e *SignatureError) Error() string {
	if e.Headline != "" {
		return e.Headline + "\n  " + e.explain()
	}
	return e.explain()
}

func (e *SignatureError) explain() string {
	var b strings.Builder
	if e.Unknown {
		fmt.Fprintf(&b, "Unknown assertion '%s'", e.Phrase)
		if len(e.Suggestions) > 0 {
			quoted := make([]string, len(e.Suggestions))
			for i, s := range e.Suggestions {
				quoted[i] = "'" + s + "'"
			}
			fmt.Fprintf(&b, ", did you mean: %s", strings.Join(quoted, ", "))
		}
		return b.String()
	}

	b.WriteString("The assertion does not have a matching signature for:\n    ")
	b.WriteString(e.Attempted)
	if len(e.Suggestions) > 0 {
		b.WriteString("\n  did you mean:")
		for _, s := range e.Suggestions {
			b.WriteString("\n    ")
			b.WriteString(s)
		}
	}
	return b.String()
}

func (e *SignatureError) Unwrap() error { return ErrSignature }

// UsageError is raised for illegal use of the engine: mutating a frozen
// instance, combining incompatible flags, or passing unusable arguments.
type UsageError struct {
	Message string
	// Kind is the specific sentinel, e.g. ErrFrozen.
	Kind error
}

func (e *UsageError) Error() string { return e.Message }

func (e *UsageError) Unwrap() []error {
	if e.Kind != nil {
		return []error{ErrUsage, e.Kind}
	}
	return []error{ErrUsage}
}

// Usage creates a UsageError of the given kind.
func Usage(kind error, format string, args ...any) *UsageError {
	return &UsageError{Message: fmt.Sprintf(format, args...), Kind: kind}
}

// Frozen reports a mutation on a frozen instance. verb names the blocked
// operation, e.g. "add an assertion to".
func Frozen(verb string) *UsageError {
	return Usage(ErrFrozen, "Cannot %s a frozen instance, please run .clone() first", verb)
}

// FlagConflict reports two flags that cannot be used together.
func FlagConflict(flag, with string) *UsageError {
	return Usage(ErrFlagConflict, "The %q flag cannot be used together with %q.", flag, with)
}

// CircularComparisonError is raised when equality or diffing re-enters a
// pair of values already being compared.
type CircularComparisonError struct{}

func (*CircularComparisonError) Error() string { return "Cannot compare circular structures" }

func (*CircularComparisonError) Unwrap() error { return ErrCircular }

// PanicError carries a recovered panic and the stack where it happened.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

// Unwrap exposes ErrPanic and, when the panic value is an error, that error.
func (e *PanicError) Unwrap() []error {
	if err, ok := e.Value.(error); ok {
		return []error{ErrPanic, err}
	}
	return []error{ErrPanic}
}

// FromPanic wraps a recovered value. Call it from the deferred function
// so the stack still contains the panicking frame.
func FromPanic(v any) error {
	if err, ok := v.(error); ok {
		var af *AssertionFailure
		if errors.As(err, &af) {
			return err
		}
	}
	return &PanicError{Value: v, Stack: debug.Stack()}
}

// StackOf returns the provenance stack of err, if any.
func StackOf(err error) []byte {
	for cur := err; cur != nil; {
		var af *AssertionFailure
		if !errors.As(cur, &af) {
			break
		}
		if len(af.Stack) > 0 {
			return af.Stack
		}
		cur = af.Cause
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		return pe.Stack
	}
	return nil
}

// IsFailure reports whether err is, or wraps, an *AssertionFailure.
func IsFailure(err error) (*AssertionFailure, bool) {
	var af *AssertionFailure
	if errors.As(err, &af) {
		return af, true
	}
	return nil, false
}

// Indent prefixes every non-empty line of s with n spaces.
func Indent(s string, n int) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n")
}
