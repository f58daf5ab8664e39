package domain

import "errors"

var (
	// ErrValidation marks malformed or incomplete input.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a state transition the current row state forbids.
	ErrConflict = errors.New("conflict")

	// ErrMissingContent means a queue item resolved neither a template
	// nor an inline subject.
	ErrMissingContent = errors.New("missing email content")

	// ErrMissingSenderConfig means no usable from-address could be
	// resolved for the item's store.
	ErrMissingSenderConfig = errors.New("missing sender configuration")

	// ErrSignatureInvalid marks a webhook that failed authentication.
	ErrSignatureInvalid = errors.New("invalid webhook signature")
)
