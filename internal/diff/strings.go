package diff

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op is the operation of a character diff span.
type Op int

const (
	OpEqual  Op = iota // text present on both sides
	OpDelete           // text present only in the actual string
	OpInsert           // text present only in the expected string
)

// Change is one span of a character diff. Text is escaped.
type Change struct {
	Op   Op
	Text string
}

// Engine computes character diffs with caching of identical input pairs.
type Engine struct {
	dmp   *diffmatchpatch.DiffMatchPatch
	cache sync.Map
}

type cacheKey struct {
	actual, expected string
}

// NewEngine creates a character diff engine. A zero timeout disables the
// bound on a single diff.
func NewEngine(timeout time.Duration) *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = timeout
	return &Engine{dmp: dmp}
}

// DefaultEngine is used by the package-level helpers.
var DefaultEngine = NewEngine(time.Second)

// Strings diffs two strings character by character. Both sides are escaped
// first and every escape sequence is kept whole, so a span never starts or
// ends inside one.
func (e *Engine) Strings(actual, expected string) []Change {
	key := cacheKey{actual, expected}
	if cached, ok := e.cache.Load(key); ok {
		return cached.([]Change)
	}

	ta, tb := tokenize(actual), tokenize(expected)
	ra, rb, table, ok := encodeTokens(ta, tb)
	var changes []Change
	if ok {
		diffs := e.dmp.DiffMainRunes(ra, rb, false)
		diffs = e.dmp.DiffCleanupSemantic(diffs)
		changes = decodeDiffs(diffs, table)
	} else {
		// Too many distinct escape tokens for the rune alphabet.
		diffs := e.dmp.DiffMain(EscapeString(actual), EscapeString(expected), false)
		diffs = e.dmp.DiffCleanupSemantic(diffs)
		changes = convertDiffs(diffs)
	}

	e.cache.Store(key, changes)
	return changes
}

// Strings diffs with the default engine.
func Strings(actual, expected string) []Change {
	return DefaultEngine.Strings(actual, expected)
}

// ClearCache drops all cached diffs.
func (e *Engine) ClearCache() {
	e.cache.Range(func(k, _ any) bool {
		e.cache.Delete(k)
		return true
	})
}

// Actual reassembles the escaped actual string from a diff.
func Actual(changes []Change) string {
	var b strings.Builder
	for _, c := range changes {
		if c.Op != OpInsert {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// Expected reassembles the escaped expected string from a diff.
func Expected(changes []Change) string {
	var b strings.Builder
	for _, c := range changes {
		if c.Op != OpDelete {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// EscapeString renders control characters, backslashes and single quotes as
// escape sequences.
func EscapeString(s string) string {
	var b strings.Builder
	for _, r := range s {
		b.WriteString(escapeRune(r))
	}
	return b.String()
}

func escapeRune(r rune) string {
	switch r {
	case '\\':
		return `\\`
	case '\'':
		return `\'`
	case '\n':
		return `\n`
	case '\r':
		return `\r`
	case '\t':
		return `\t`
	case '\b':
		return `\b`
	case '\f':
		return `\f`
	case '\v':
		return `\v`
	case 0:
		return `\0`
	}
	if r < 0x20 || r == 0x7f {
		return fmt.Sprintf(`\x%02x`, r)
	}
	if r == 0x2028 || r == 0x2029 || r == 0xfeff {
		return fmt.Sprintf(`\u%04x`, r)
	}
	return string(r)
}

func tokenize(s string) []string {
	tokens := make([]string, 0, len(s))
	for _, r := range s {
		tokens = append(tokens, escapeRune(r))
	}
	return tokens
}

// Tokens are mapped onto a private-use rune alphabet so diffmatchpatch sees
// every escape sequence as a single character, the same reduction the
// library applies to whole lines.
const (
	alphabetStart = 0xF0000
	alphabetSize  = 0x10FFFD - alphabetStart
)

func encodeTokens(a, b []string) ([]rune, []rune, []string, bool) {
	index := make(map[string]rune)
	var table []string
	encode := func(tokens []string) ([]rune, bool) {
		out := make([]rune, len(tokens))
		for i, t := range tokens {
			r, ok := index[t]
			if !ok {
				if len(table) >= alphabetSize {
					return nil, false
				}
				r = rune(alphabetStart + len(table))
				index[t] = r
				table = append(table, t)
			}
			out[i] = r
		}
		return out, true
	}
	ra, ok := encode(a)
	if !ok {
		return nil, nil, nil, false
	}
	rb, ok := encode(b)
	if !ok {
		return nil, nil, nil, false
	}
	return ra, rb, table, true
}

func decodeDiffs(diffs []diffmatchpatch.Diff, table []string) []Change {
	changes := make([]Change, 0, len(diffs))
	for _, d := range diffs {
		var b strings.Builder
		for _, r := range d.Text {
			b.WriteString(table[r-alphabetStart])
		}
		changes = appendChange(changes, toOp(d.Type), b.String())
	}
	return changes
}

func convertDiffs(diffs []diffmatchpatch.Diff) []Change {
	changes := make([]Change, 0, len(diffs))
	for _, d := range diffs {
		changes = appendChange(changes, toOp(d.Type), d.Text)
	}
	return changes
}

func appendChange(changes []Change, op Op, text string) []Change {
	if text == "" {
		return changes
	}
	if n := len(changes); n > 0 && changes[n-1].Op == op {
		changes[n-1].Text += text
		return changes
	}
	return append(changes, Change{Op: op, Text: text})
}

func toOp(t diffmatchpatch.Operation) Op {
	switch t {
	case diffmatchpatch.DiffDelete:
		return OpDelete
	case diffmatchpatch.DiffInsert:
		return OpInsert
	default:
		return OpEqual
	}
}
