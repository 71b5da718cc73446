package registry

import "errors"

// Sentinel errors for registry operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidRecord is returned when a record has an empty device identity.
	ErrInvalidRecord = errors.New("registry: record requires a device_id")

	// ErrRecordNotFound is returned by the snapshot repository when no
	// record exists for the requested identity.
	ErrRecordNotFound = errors.New("registry: record not found")
)
