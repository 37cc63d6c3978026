/*
errors.go - Centralized error types for the evaluation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these with additional context via %w.

ERROR CATEGORIES:
  1. Transition errors - State-machine precondition and permission failures
  2. Reconciliation errors - Target resolution and payload validation
  3. Lookup errors - Missing approvals/mappings

NOT AN ERROR:
  "Already applied" is a successful idempotent no-op, reported through
  the reconcile.Outcome type rather than through the error channel so
  callers can tell a benign repeat from an actionable failure.

USAGE:
    if errors.Is(err, engine.ErrAmbiguousTarget) {
        // retryable: wait for the tracking mapping, then retry apply
    }

SEE ALSO:
  - approval/service.go: Returns transition/permission errors
  - reconcile/engine.go: Returns reconciliation errors
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTransition is returned when a state-machine transition is
	// attempted from a state that does not satisfy its precondition.
	// State is left unchanged.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrPermissionDenied is returned when the caller identity does not
	// match the actor the transition requires. State is left unchanged.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAmbiguousTarget is returned when an edit's tracking mapping
	// cannot be resolved. Retryable: the caller should retry once the
	// mapping is available; the engine never fabricates one.
	ErrAmbiguousTarget = errors.New("ambiguous edit target")

	// ErrMalformedRecord is the sentinel wrapped by MalformedRecordError.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrNotFinalApproved is returned when apply() is called on a request
	// that has not reached final approval.
	ErrNotFinalApproved = errors.New("approval is not final-approved")

	// ErrApprovalNotFound is returned when a referenced approval doesn't exist.
	ErrApprovalNotFound = errors.New("approval not found")

	// ErrMappingNotFound is returned when a tracking mapping doesn't exist.
	ErrMappingNotFound = errors.New("tracking mapping not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MalformedRecordError reports a structurally invalid payload with the
// offending field, so batch callers can skip the record and surface it.
type MalformedRecordError struct {
	Field string
	Value string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: field %q has invalid value %q", e.Field, e.Value)
}

func (e *MalformedRecordError) Unwrap() error { return ErrMalformedRecord }

// TransitionError reports an invalid transition with the states involved.
type TransitionError struct {
	ApprovalID ApprovalID
	Team       TeamStatus
	HR         HRStatus
	Attempted  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %q from (%s, %s) on %s",
		e.Attempted, e.Team, e.HR, e.ApprovalID)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// PermissionError reports an actor mismatch on a transition.
type PermissionError struct {
	ApprovalID ApprovalID
	Caller     EmployeeID
	Required   EmployeeID
	Attempted  string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("caller %s may not %s on %s (requires %s)",
		e.Caller, e.Attempted, e.ApprovalID, e.Required)
}

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on a later retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAmbiguousTarget)
}

// IsClientError returns true if the error is due to invalid caller input
// rather than engine or store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrMalformedRecord) ||
		errors.Is(err, ErrNotFinalApproved)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrApprovalNotFound) ||
		errors.Is(err, ErrMappingNotFound)
}
