package correlator

import "errors"

// Sentinel errors delivered through Reply.Err.
var (
	// ErrTimeout indicates no reply arrived before the waiter's deadline.
	ErrTimeout = errors.New("correlator: reply deadline exceeded")

	// ErrUnknownKey indicates an Await for a key with no pending waiter.
	ErrUnknownKey = errors.New("correlator: unknown correlation key")

	// ErrClosed indicates the correlator shut down while the waiter was pending.
	ErrClosed = errors.New("correlator: closed")
)
