package models

import "errors"

// Service-level error taxonomy. Handlers translate these to HTTP statuses;
// services wrap them with context via fmt.Errorf("...: %w", err).
var (
	// ErrNotFound covers unknown user/achievement/challenge ids.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a concurrent profile update won every retry attempt.
	// Callers should treat it as transient and retry the whole operation.
	ErrConflict = errors.New("conflicting concurrent update, retry")

	// ErrAlreadyJoined guards the one-participation-per-challenge invariant.
	ErrAlreadyJoined = errors.New("already participating in this challenge")
)

// PreconditionError reports a failed gating check (challenge join level,
// required achievements, capacity) with the specific unmet condition.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return e.Reason }

// Precondition builds a PreconditionError.
func Precondition(reason string) error { return &PreconditionError{Reason: reason} }
