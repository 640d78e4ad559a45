package workflow

import "errors"

var (
	// ErrNotFound is returned when no instance exists for the identifier.
	ErrNotFound = errors.New("workflow instance not found")

	// ErrAlreadyExists is returned when an application already has an active
	// (non-terminal) instance.
	ErrAlreadyExists = errors.New("active workflow instance already exists")

	// ErrStaleState is returned when a compare-and-update write loses the
	// race: the stored current stage no longer matches the caller's
	// expectation. It is a concurrency signal, not a failure; the losing
	// caller re-reads and abandons its attempt.
	ErrStaleState = errors.New("workflow state is stale")
)
