package chikka

import "errors"

// Delivery error taxonomy.
// Use errors.Is() to distinguish the two failure classes.
var (
	// ErrTransport indicates no usable response was received from the
	// provider (connection failure, timeout, unreadable body).
	ErrTransport = errors.New("chikka: transport error")

	// ErrProviderRejected indicates the provider answered but refused
	// the message: a non-2xx HTTP status, or an embedded status other
	// than 200 inside a 200-level response.
	ErrProviderRejected = errors.New("chikka: provider rejected message")
)
