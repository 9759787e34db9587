package admission

import "errors"

var (
	// ErrCallerRequired is returned when no model caller is provided
	ErrCallerRequired = errors.New("model caller is required")

	// ErrGeneratorRequired is returned when no generator is provided
	ErrGeneratorRequired = errors.New("generator is required")

	// ErrMissingOwner is returned when a request has no owner identifier
	ErrMissingOwner = errors.New("request owner is required")

	// ErrEmptyQuery is returned when a request has no query text
	ErrEmptyQuery = errors.New("request query is required")

	// ErrUserBusy signals that the owner already has a generation call in
	// flight. Callers should retry after the in-flight call completes.
	ErrUserBusy = errors.New("a generation request is already in flight for this user")

	// ErrQueueTimeout signals that a queued request waited past the hard
	// ceiling without being drained.
	ErrQueueTimeout = errors.New("queued request timed out before being processed")
)
