// Package expectkit is the public face of the assertion engine. It
// re-exports the instance, value and error types from the internal
// packages so that code outside this module can extend and run
// assertions.
//
//	e := expectkit.New()
//	err := e.Expect(ctx, expectkit.Object("a", 1), "to satisfy", expectkit.Object("a", 1))
package expectkit

import (
	"context"
	"testing"

	"expectkit/internal/assertion"
	"expectkit/internal/config"
	"expectkit/internal/diff"
	"expectkit/internal/expect"
	"expectkit/internal/failure"
	"expectkit/internal/promise"
	"expectkit/internal/render"
	"expectkit/internal/types"
)

// Instances and extension points.
type (
	Instance   = expect.Instance
	Context    = expect.Context
	Handler    = expect.Handler
	Hook       = expect.Hook
	Dispatch   = expect.Dispatch
	Plugin     = expect.Plugin
	Option     = expect.Option
	Matcher    = expect.Matcher
	Config     = config.Config
	Descriptor = types.Descriptor
	Comparer   = types.Comparer
	Signature  = assertion.Signature
	StyleFunc  = render.StyleFunc
	Pen        = render.Pen
	Theme      = render.Theme
)

var (
	New             = expect.New
	WithConfig      = expect.WithConfig
	WithoutBuiltins = expect.WithoutBuiltins
	DefaultConfig   = config.DefaultConfig
	LoadConfig      = config.Load
	NewTheme        = render.NewTheme

	// WithExclusiveFlags rejects calls combining two flags of a signature.
	WithExclusiveFlags = assertion.WithExclusiveFlags
)

// Values.
type (
	Record    = types.Record
	Arguments = types.Arguments
	Promise   = promise.Promise
	DiffNode  = diff.Node
)

var (
	Undefined   = types.Undefined
	Hole        = types.Hole
	Object      = types.Object
	Bare        = types.Bare
	NewRecord   = types.NewRecord
	IsUndefined = types.IsUndefined

	Resolve = promise.Resolve
	Reject  = promise.Reject
	Go      = promise.Go
	Delay   = promise.Delay
)

// Errors.
type (
	AssertionFailure = failure.AssertionFailure
	SignatureError   = failure.SignatureError
	UsageError       = failure.UsageError
	PanicError       = failure.PanicError
)

var (
	ErrAssertionFailed = failure.ErrAssertionFailed
	ErrSignature       = failure.ErrSignature
	ErrUsage           = failure.ErrUsage
	ErrCircular        = failure.ErrCircular
	ErrFrozen          = failure.ErrFrozen
	ErrFlagConflict    = failure.ErrFlagConflict
	ErrAmbiguousType   = failure.ErrAmbiguousType
	ErrPanic           = failure.ErrPanic
)

// Assert runs an assertion on inst and fails tb with the explanation when
// it does not hold. Asynchronous assertions are awaited.
func Assert(tb testing.TB, inst *Instance, subject any, phrase string, args ...any) {
	tb.Helper()
	if err := inst.Expect(context.Background(), subject, phrase, args...); err != nil {
		tb.Fatal(inst.Explain(err, ""))
	}
}
