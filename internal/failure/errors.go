// Package failure defines the error taxonomy of the assertion engine.
// Every typed error unwraps to one of the sentinels below so callers can
// branch with errors.Is and recover details with errors.As.
package failure

import "errors"

// Sentinel errors.
var (
	// ErrAssertionFailed is matched by every *AssertionFailure.
	ErrAssertionFailed = errors.New("assertion failed")

	// ErrSignature is matched by every *SignatureError.
	ErrSignature = errors.New("no matching assertion signature")

	// ErrUsage is matched by every *UsageError.
	ErrUsage = errors.New("invalid usage")

	// ErrCircular is matched by *CircularComparisonError.
	ErrCircular = errors.New("circular structures")

	// ErrFrozen marks a mutation attempted on a frozen instance.
	ErrFrozen = errors.New("instance is frozen")

	// ErrFlagConflict marks flags that cannot be combined.
	ErrFlagConflict = errors.New("conflicting flags")

	// ErrAmbiguousType marks a subject claimed by two unrelated types.
	ErrAmbiguousType = errors.New("ambiguous type")

	// ErrInvalidArgument marks arguments an assertion cannot work with.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPanic is matched by *PanicError.
	ErrPanic = errors.New("panic")
)
