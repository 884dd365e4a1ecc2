package coordinator

import "errors"

// Error kinds raised before any network call. Backend failures are returned
// as *client.Error and carry the backend's detail string.
var (
	// ErrValidation marks a rejected input (empty message text).
	ErrValidation = errors.New("validation failed")

	// ErrAuthenticationMissing marks a missing credential for the identity
	// an operation needs (participant or operator).
	ErrAuthenticationMissing = errors.New("authentication missing")

	// ErrConfiguration marks an unresolved thread or identity binding.
	ErrConfiguration = errors.New("configuration incomplete")
)
