package gateway

import "errors"

// Gateway errors.
var (
	// ErrMissingDependency indicates a required constructor dependency was nil.
	ErrMissingDependency = errors.New("gateway: missing dependency")

	// ErrUnparseable indicates the webhook body could not be decoded as
	// form-encoded key/value pairs.
	ErrUnparseable = errors.New("gateway: unparseable request body")

	// ErrNotStarted indicates an operation on a component before Start.
	ErrNotStarted = errors.New("gateway: not started")
)
