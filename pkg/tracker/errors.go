package tracker

import "errors"

var (
	// ErrValidation indicates a required field was empty or malformed.
	// Returned before any state is mutated.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates an operation on an unknown id. Deletes tolerate
	// it as a no-op; updates and toggles surface it.
	ErrNotFound = errors.New("not found")

	// ErrStaleIdentity indicates the ambient auth context is older than the
	// freshness window. Fatal for the session: nothing is loaded.
	ErrStaleIdentity = errors.New("stale identity")

	// ErrClosed indicates the client has been shut down.
	ErrClosed = errors.New("client is closed")
)
