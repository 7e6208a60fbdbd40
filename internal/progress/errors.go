package progress

import (
	"errors"
	"fmt"
)

// NotFoundError indicates an operation referenced a goal, milestone,
// resource or skill that does not exist in local state.
type NotFoundError struct {
	Kind string // "goal", "milestone", "resource", "skill"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// InvariantViolation indicates a caller tried to write a derived field or
// otherwise broke a data-model rule.
type InvariantViolation struct {
	Field  string
	Reason string
}

func (e *InvariantViolation) Error() string {
	if e.Field == "" {
		return "invariant violation: " + e.Reason
	}
	return fmt.Sprintf("invariant violation on %s: %s", e.Field, e.Reason)
}

// PersistenceError indicates the persistence collaborator failed. The local
// optimistic edit has been reverted by the time the caller sees it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsNotFound reports whether err wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsInvariantViolation reports whether err wraps an *InvariantViolation.
func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}

// IsPersistence reports whether err wraps a *PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
