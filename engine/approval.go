/*
approval.go - Approval request and change-tracking data model

PURPOSE:
  Defines the two-track approval request (team approver, then HR
  approver) and the change-tracking entry that lets an edit find the
  stored record it replaces. Transition LOGIC lives in the approval
  package; this file only holds the state and its invariant predicates.

STATE SPACE (team / HR):
  (Pending,      Pending)        initial
  (TeamApproved, Pending)        after team approval
  (TeamApproved, FinalApproved)  terminal success
  (TeamApproved, Rejected)       terminal, HR rejected
  (Rejected,     Rejected)       terminal, team rejected

  The skip path jumps (Pending, Pending) -> (TeamApproved, FinalApproved)
  in a single transition, stamping both decision timestamps.

CHANGE TRACKING:
  An edit approval carries only the NEW field values, not a pointer to
  the record it replaces. The ChangeTrackingEntry persisted at proposal
  time carries that pointer (TargetTrackingID) plus the set of fields
  the edit changes, which is what makes edit application idempotent.

SEE ALSO:
  - approval/service.go: The transitions themselves
  - reconcile/engine.go: Consumer of FinalApproved requests and mappings
*/
package engine

import (
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// STATUS TRACKS
// =============================================================================

type TeamStatus string

const (
	TeamPending  TeamStatus = "pending"
	TeamApproved TeamStatus = "team_approved"
	TeamRejected TeamStatus = "rejected"
)

type HRStatus string

const (
	HRPending       HRStatus = "pending"
	HRFinalApproved HRStatus = "final_approved"
	HRRejected      HRStatus = "rejected"
)

// =============================================================================
// APPROVAL REQUEST
// =============================================================================

// ApprovalRequest is one proposed change moving through approval.
// It is created once, mutated only through the approval service's
// transitions, and becomes immutable once terminal.
type ApprovalRequest struct {
	ID ApprovalID `json:"id"`

	RequesterID    EmployeeID `json:"requester_id"`
	TeamApproverID EmployeeID `json:"team_approver_id"`
	HRApproverID   EmployeeID `json:"hr_approver_id"`

	Payload ChangePayload `json:"payload"`

	TeamStatus TeamStatus `json:"team_status"`
	HRStatus   HRStatus   `json:"hr_status"`

	// Set only when either track is rejected.
	RejectionReason string `json:"rejection_reason,omitempty"`

	// TrackingID of the change registered at submission time.
	TrackingID TrackingID `json:"tracking_id"`

	SubmittedAt   time.Time  `json:"submitted_at"`
	TeamDecidedAt *time.Time `json:"team_decided_at,omitempty"`
	HRDecidedAt   *time.Time `json:"hr_decided_at,omitempty"`

	// Read receipt, orthogonal to status.
	IsRead bool `json:"is_read"`
}

// IsRejected reports whether either track has rejected the request.
func (r ApprovalRequest) IsRejected() bool {
	return r.TeamStatus == TeamRejected || r.HRStatus == HRRejected
}

// IsFinalApproved reports terminal success.
func (r ApprovalRequest) IsFinalApproved() bool {
	return r.HRStatus == HRFinalApproved
}

// IsTerminal reports whether any further transition is valid.
func (r ApprovalRequest) IsTerminal() bool {
	return r.IsRejected() || r.IsFinalApproved()
}

// =============================================================================
// CHANGE TRACKING ENTRY
// =============================================================================

// ChangeTrackingEntry records, for an edit or delete, which stored
// record the change targets and which fields it touches. Persisted
// independently of the ApprovalRequest so reconciliation can recover
// the target without the payload carrying the pointer.
type ChangeTrackingEntry struct {
	TrackingID       TrackingID `json:"tracking_id"`
	TargetTrackingID TrackingID `json:"target_tracking_id,omitempty"`
	ChangedFields    []string   `json:"changed_fields,omitempty"`
}

// HasTarget reports whether the entry carries a resolvable target.
func (e ChangeTrackingEntry) HasTarget() bool {
	return e.TargetTrackingID != ""
}

// TrackingSequence extracts the numeric sequence suffix of a tracking
// id. ok is false for ids not minted by the registry.
func TrackingSequence(id TrackingID) (uint64, bool) {
	s := string(id)
	idx := strings.LastIndex(s, "-")
	if idx < 0 || idx == len(s)-1 {
		return 0, false
	}
	seq, err := strconv.ParseUint(s[idx+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}
