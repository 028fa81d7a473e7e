package moderation

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a report, user, or content record is absent.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor's role lacks the requested action.
	ErrForbidden = errors.New("not permitted for your role")

	// ErrInvalidTransition is returned when a lifecycle action would violate
	// the state machine, most commonly mutating a closed report.
	ErrInvalidTransition = errors.New("invalid report state transition")

	// ErrConflict is returned when a concurrent transition won the race.
	// Callers may safely re-read and retry.
	ErrConflict = errors.New("report changed concurrently")
)

// PermissionError carries the role and action of a denied check.
// It unwraps to ErrForbidden.
type PermissionError struct {
	Role   Role
	Action Action
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("action %q not permitted for role %q", e.Action, e.Role)
}

func (e *PermissionError) Unwrap() error { return ErrForbidden }

// DownstreamError wraps a failure from a content-store or user-directory
// collaborator during a dispatched side effect. The Dispatcher absorbs it
// (the report is still closed with a failure note) but surfaces it in both
// the audit entry and the returned result.
type DownstreamError struct {
	Op  string
	Err error
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("downstream %s failed: %v", e.Op, e.Err)
}

func (e *DownstreamError) Unwrap() error { return e.Err }
