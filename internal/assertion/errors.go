package assertion

import "errors"

var (
	// ErrInvalidSignature is returned when a signature cannot be parsed or
	// violates placement rules.
	ErrInvalidSignature = errors.New("invalid assertion signature")

	// ErrEmptyPhrase is returned when a signature or call has no words.
	ErrEmptyPhrase = errors.New("assertion phrase is empty")
)
