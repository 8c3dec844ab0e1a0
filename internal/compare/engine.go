// Package compare implements type-directed deep equality and structural
// diffing over a types.Registry, plus the built-in type descriptors.
package compare

import (
	"reflect"
	"time"

	"expectkit/internal/diff"
	"expectkit/internal/failure"
	"expectkit/internal/logging"
	"expectkit/internal/types"
)

// Engine compares values using the descriptors of a registry. An Engine
// holds no per-call state and is safe for concurrent use.
type Engine struct {
	types       *types.Registry
	chars       *diff.Engine
	bytesPerRow int
	threshold   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithBinaryLimits sets the hex row width and the size above which binary
// diffs are suppressed.
func WithBinaryLimits(bytesPerRow, threshold int) Option {
	return func(e *Engine) {
		if bytesPerRow > 0 {
			e.bytesPerRow = bytesPerRow
		}
		if threshold > 0 {
			e.threshold = threshold
		}
	}
}

// WithStringEngine makes the engine diff strings with chars, sharing its
// cache with every other engine built on it.
func WithStringEngine(chars *diff.Engine) Option {
	return func(e *Engine) {
		if chars != nil {
			e.chars = chars
		}
	}
}

// New creates an engine over reg.
func New(reg *types.Registry, opts ...Option) *Engine {
	e := &Engine{
		types:       reg,
		chars:       diff.DefaultEngine,
		bytesPerRow: 16,
		threshold:   diff.DefaultSuppressThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Types returns the registry the engine classifies with.
func (e *Engine) Types() *types.Registry { return e.types }

// Equal reports whether a and b are structurally equal. It fails with
// *failure.CircularComparisonError when a pair of values is re-entered.
func (e *Engine) Equal(a, b any) (bool, error) {
	return e.session().Equal(a, b)
}

// Diff computes the structural delta between actual a and expected b.
func (e *Engine) Diff(a, b any) (*diff.Node, error) {
	timer := logging.StartTimer(logging.CategoryDiff, "diff")
	defer timer.StopWithThreshold(100 * time.Millisecond)
	return e.session().Diff(a, b)
}

// Similar reports whether a and b classify alike and their descriptor
// considers them the same shape.
func (e *Engine) Similar(a, b any) bool {
	return e.session().similar(a, b)
}

func (e *Engine) session() *session {
	return &session{engine: e}
}

type pair struct {
	a, b types.Ref
}

// session carries the stacks of pairs being compared during one call.
type session struct {
	engine    *Engine
	equalling []pair
	diffing   []pair
}

var _ types.Comparer = (*session)(nil)

func (s *session) classify(v any) *types.Descriptor {
	return s.engine.types.Classify(v)
}

// enter pushes (a, b) onto stack when both are references. It fails when
// the pair is already being compared.
func enter(stack *[]pair, a, b any) (bool, error) {
	ra, okA := types.Identity(a)
	rb, okB := types.Identity(b)
	if !okA || !okB {
		return false, nil
	}
	p := pair{ra, rb}
	for _, q := range *stack {
		if q == p {
			logging.DiffDebug("Circular comparison detected")
			return false, &failure.CircularComparisonError{}
		}
	}
	*stack = append(*stack, p)
	return true, nil
}

func leave(stack *[]pair) {
	*stack = (*stack)[:len(*stack)-1]
}

// unwrap applies d's unwrap rule. An unwrapped pair that still classifies
// as d is compared by d's own rules instead.
func (s *session) unwrap(d *types.Descriptor, a, b any) (any, any, bool) {
	fn := d.UnwrapFunc()
	if fn == nil {
		return nil, nil, false
	}
	ua, ub := fn(a), fn(b)
	if s.classify(ua) == d && s.classify(ub) == d {
		return nil, nil, false
	}
	return ua, ub, true
}

func (s *session) Equal(a, b any) (bool, error) {
	if isNumber(a) && isNumber(b) {
		return sameNumber(a, b), nil
	}
	if types.Same(a, b) {
		return true, nil
	}

	da, db := s.classify(a), s.classify(b)
	if da != db {
		return false, nil
	}
	if ua, ub, ok := s.unwrap(da, a, b); ok {
		return s.Equal(ua, ub)
	}

	pushed, err := enter(&s.equalling, a, b)
	if err != nil {
		return false, err
	}
	if pushed {
		defer leave(&s.equalling)
	}

	if eq := da.EqualFunc(); eq != nil {
		return eq(a, b, s)
	}
	return fallbackEqual(a, b), nil
}

func (s *session) Diff(a, b any) (*diff.Node, error) {
	eq, err := s.Equal(a, b)
	if err != nil {
		return nil, err
	}
	da, db := s.classify(a), s.classify(b)
	if eq {
		return &diff.Node{Kind: diff.Equal, Type: da.Name, Actual: a, Expected: b}, nil
	}
	if da != db {
		return &diff.Node{Kind: diff.Mismatch, Type: da.Name, Actual: a, Expected: b}, nil
	}

	if ua, ub, ok := s.unwrap(da, a, b); ok {
		n, err := s.Diff(ua, ub)
		if err != nil {
			return nil, err
		}
		n.Type, n.Actual, n.Expected = da.Name, a, b
		return n, nil
	}

	pushed, err := enter(&s.diffing, a, b)
	if err != nil {
		return nil, err
	}
	if pushed {
		defer leave(&s.diffing)
	}

	df := da.DiffFunc()
	if df == nil {
		return &diff.Node{Kind: diff.Changed, Type: da.Name, Actual: a, Expected: b}, nil
	}
	n, err := df(a, b, s)
	if err != nil {
		return nil, err
	}
	if n.Type == "" {
		n.Type = da.Name
	}
	if n.Actual == nil {
		n.Actual = a
	}
	if n.Expected == nil {
		n.Expected = b
	}
	return n, nil
}

func (s *session) similar(a, b any) bool {
	da, db := s.classify(a), s.classify(b)
	if da != db {
		return false
	}
	fn := da.SimilarFunc()
	return fn != nil && fn(a, b)
}

// fallbackEqual handles values no descriptor rule covers.
func fallbackEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return reflect.DeepEqual(a, b)
}
