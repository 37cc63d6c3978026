/*
service.go - Approval request lifecycle

PURPOSE:
  Handles the full lifecycle of one proposed work-record change:
  1. Submit: Validate payload, register tracking, create (Pending, Pending)
  2. Team decision: Approve or reject by the team approver
  3. HR decision: Final approval or rejection by the HR approver
  4. Resubmission: A rejected change comes back as a brand-new request

REQUEST FLOW:

  Submit ──▶ (Pending, Pending) ──DecideTeam(approve)──▶ (TeamApproved, Pending)
                 │        │                                   │
                 │        └──SkipTeamAndFinalApprove─────┐    ├─DecideHR(approve)
                 │                                       ▼    ▼
         DecideTeam(reject)                  (TeamApproved, FinalApproved)
                 │                                            │
                 ▼                                  DecideHR(reject)
        (Rejected, Rejected) ◀── terminal ──▶ (TeamApproved, Rejected)
                 │
              Resubmit ──▶ fresh id, (Pending, Pending)

PRECONDITIONS:
  Every transition checks state first, then caller identity. A failed
  precondition returns engine.ErrInvalidTransition or
  engine.ErrPermissionDenied and leaves the request untouched - no
  partial updates, ever.

CONCURRENCY:
  Transitions on a single approval id are serialized through a keyed
  mutex so two simultaneous DecideHR calls cannot both succeed.

EXAMPLE:
  svc := approval.NewService(store, approval.WithAdminOverride("hr-admin"))

  req, err := svc.Submit(ctx, approval.SubmitInput{...})
  req, err = svc.DecideTeam(ctx, req.ID, "mgr-1", true, "")
  req, err = svc.DecideHR(ctx, req.ID, "hr-1", true, "")

SEE ALSO:
  - tracking.go: Tracking registration done at submit time
  - reconcile/engine.go: Consumer of FinalApproved requests
*/
package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/evaluation-engine/engine"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service owns approval-request state transitions. It is the only
// writer of approvals; everything else reads.
type Service struct {
	store    engine.Store
	registry *Registry
	locks    engine.KeyedMutex

	// adminID, when set, also satisfies the HR-approver identity check.
	adminID engine.EmployeeID

	now func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithAdminOverride lets the given identity satisfy the HR-approver
// check on DecideHR and SkipTeamAndFinalApprove.
func WithAdminOverride(id engine.EmployeeID) Option {
	return func(s *Service) { s.adminID = id }
}

// WithClock overrides the timestamp source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an approval service backed by the given store.
func NewService(store engine.Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		registry: NewRegistry(store),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the tracking registry sharing this service's store.
func (s *Service) Registry() *Registry { return s.registry }

// =============================================================================
// SUBMIT
// =============================================================================

// SubmitInput carries everything needed to open a new approval request.
// TargetTrackingID and ChangedFields are required for Edit actions and
// TargetTrackingID for Delete; both are ignored for Add.
type SubmitInput struct {
	RequesterID    engine.EmployeeID
	TeamApproverID engine.EmployeeID
	HRApproverID   engine.EmployeeID

	Payload engine.ChangePayload

	TargetTrackingID engine.TrackingID
	ChangedFields    []string
}

// Submit validates the payload, registers the change with the tracking
// registry, and persists a fresh (Pending, Pending) request.
//
// Ordering matters: the tracking mapping is durable before the approval
// exists, so a request can never reach FinalApproved without its edit
// target being resolvable.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (engine.ApprovalRequest, error) {
	if err := in.Payload.Validate(); err != nil {
		return engine.ApprovalRequest{}, err
	}
	if in.Payload.Action == engine.ActionEdit && in.TargetTrackingID == "" {
		return engine.ApprovalRequest{}, fmt.Errorf("edit submission without target: %w", engine.ErrAmbiguousTarget)
	}

	rec, err := in.Payload.Record()
	if err != nil {
		return engine.ApprovalRequest{}, err
	}

	trackingID, err := s.registry.Register(ctx,
		in.Payload.Action, in.Payload.DataType, rec.RecordEmployee(),
		in.TargetTrackingID, in.ChangedFields)
	if err != nil {
		return engine.ApprovalRequest{}, err
	}

	req := engine.ApprovalRequest{
		ID:             engine.ApprovalID(uuid.NewString()),
		RequesterID:    in.RequesterID,
		TeamApproverID: in.TeamApproverID,
		HRApproverID:   in.HRApproverID,
		Payload:        s.stampPayload(in.Payload, trackingID),
		TeamStatus:     engine.TeamPending,
		HRStatus:       engine.HRPending,
		TrackingID:     trackingID,
		SubmittedAt:    s.now(),
	}
	if err := s.store.PutApproval(ctx, req); err != nil {
		return engine.ApprovalRequest{}, fmt.Errorf("failed to persist approval: %w", err)
	}
	return req, nil
}

// stampPayload writes the assigned tracking id into the carried record
// so an Add, once reconciled, stores a record edits can target.
func (s *Service) stampPayload(p engine.ChangePayload, id engine.TrackingID) engine.ChangePayload {
	switch p.DataType {
	case engine.DataShortenedWork:
		if p.Shortened != nil {
			rec := *p.Shortened
			rec.TrackingID = id
			p.Shortened = &rec
		}
	case engine.DataDailyAttendance:
		if p.Attendance != nil {
			rec := *p.Attendance
			rec.TrackingID = id
			p.Attendance = &rec
		}
	}
	return p
}

// =============================================================================
// DECISIONS
// =============================================================================

// DecideTeam records the team approver's decision. Valid only from
// (Pending, Pending). A rejection is terminal for the whole request.
func (s *Service) DecideTeam(ctx context.Context, id engine.ApprovalID, caller engine.EmployeeID, approve bool, reason string) (engine.ApprovalRequest, error) {
	return s.transition(ctx, id, "decide_team", func(req *engine.ApprovalRequest) error {
		if req.TeamStatus != engine.TeamPending || req.HRStatus != engine.HRPending {
			return &engine.TransitionError{ApprovalID: req.ID, Team: req.TeamStatus, HR: req.HRStatus, Attempted: "decide_team"}
		}
		if caller != req.TeamApproverID {
			return &engine.PermissionError{ApprovalID: req.ID, Caller: caller, Required: req.TeamApproverID, Attempted: "decide_team"}
		}
		at := s.now()
		req.TeamDecidedAt = &at
		if approve {
			req.TeamStatus = engine.TeamApproved
			return nil
		}
		req.TeamStatus = engine.TeamRejected
		req.HRStatus = engine.HRRejected
		req.RejectionReason = reason
		return nil
	})
}

// DecideHR records the HR approver's decision. Valid only from
// (TeamApproved, Pending). Approval is terminal success.
func (s *Service) DecideHR(ctx context.Context, id engine.ApprovalID, caller engine.EmployeeID, approve bool, reason string) (engine.ApprovalRequest, error) {
	return s.transition(ctx, id, "decide_hr", func(req *engine.ApprovalRequest) error {
		if req.TeamStatus != engine.TeamApproved || req.HRStatus != engine.HRPending {
			return &engine.TransitionError{ApprovalID: req.ID, Team: req.TeamStatus, HR: req.HRStatus, Attempted: "decide_hr"}
		}
		if err := s.checkHRCaller(req, caller, "decide_hr"); err != nil {
			return err
		}
		at := s.now()
		req.HRDecidedAt = &at
		if approve {
			req.HRStatus = engine.HRFinalApproved
			return nil
		}
		req.HRStatus = engine.HRRejected
		req.RejectionReason = reason
		return nil
	})
}

// SkipTeamAndFinalApprove jumps (Pending, Pending) directly to
// (TeamApproved, FinalApproved), stamping both decision timestamps.
// Only the HR approver (or the admin override) may take this path.
func (s *Service) SkipTeamAndFinalApprove(ctx context.Context, id engine.ApprovalID, caller engine.EmployeeID) (engine.ApprovalRequest, error) {
	return s.transition(ctx, id, "skip_team_final_approve", func(req *engine.ApprovalRequest) error {
		if req.TeamStatus != engine.TeamPending || req.HRStatus != engine.HRPending {
			return &engine.TransitionError{ApprovalID: req.ID, Team: req.TeamStatus, HR: req.HRStatus, Attempted: "skip_team_final_approve"}
		}
		if err := s.checkHRCaller(req, caller, "skip_team_final_approve"); err != nil {
			return err
		}
		at := s.now()
		req.TeamStatus = engine.TeamApproved
		req.HRStatus = engine.HRFinalApproved
		req.TeamDecidedAt = &at
		req.HRDecidedAt = &at
		return nil
	})
}

func (s *Service) checkHRCaller(req *engine.ApprovalRequest, caller engine.EmployeeID, attempted string) error {
	if caller == req.HRApproverID {
		return nil
	}
	if s.adminID != "" && caller == s.adminID {
		return nil
	}
	return &engine.PermissionError{ApprovalID: req.ID, Caller: caller, Required: req.HRApproverID, Attempted: attempted}
}

// =============================================================================
// RESUBMISSION
// =============================================================================

// Resubmit turns a rejected request into a brand-new one: fresh id,
// fresh tracking registration, statuses reset, rejection reason cleared.
// The payload may be edited before resubmission by passing newPayload;
// nil keeps the original. The rejected request itself is never touched.
func (s *Service) Resubmit(ctx context.Context, id engine.ApprovalID, caller engine.EmployeeID, newPayload *engine.ChangePayload) (engine.ApprovalRequest, error) {
	s.locks.Lock(string(id))
	defer s.locks.Unlock(string(id))

	old, err := s.store.GetApproval(ctx, id)
	if err != nil {
		return engine.ApprovalRequest{}, err
	}
	if !old.IsRejected() {
		return engine.ApprovalRequest{}, &engine.TransitionError{ApprovalID: old.ID, Team: old.TeamStatus, HR: old.HRStatus, Attempted: "resubmit"}
	}
	if caller != old.RequesterID {
		return engine.ApprovalRequest{}, &engine.PermissionError{ApprovalID: old.ID, Caller: caller, Required: old.RequesterID, Attempted: "resubmit"}
	}

	payload := old.Payload
	if newPayload != nil {
		payload = *newPayload
	}

	// Carry the original edit target/field set forward; the new proposal
	// replaces the same stored record the rejected one did.
	var target engine.TrackingID
	var changed []string
	if mapping, err := s.registry.Lookup(ctx, old.TrackingID); err == nil {
		target = mapping.TargetTrackingID
		changed = mapping.ChangedFields
	}

	return s.Submit(ctx, SubmitInput{
		RequesterID:      old.RequesterID,
		TeamApproverID:   old.TeamApproverID,
		HRApproverID:     old.HRApproverID,
		Payload:          payload,
		TargetTrackingID: target,
		ChangedFields:    changed,
	})
}

// =============================================================================
// READ RECEIPT
// =============================================================================

// MarkRead flips the read-receipt flag. Orthogonal to status; valid in
// any state, including terminal ones.
func (s *Service) MarkRead(ctx context.Context, id engine.ApprovalID) (engine.ApprovalRequest, error) {
	return s.transitionAny(ctx, id, func(req *engine.ApprovalRequest) error {
		req.IsRead = true
		return nil
	})
}

// =============================================================================
// TRANSITION PLUMBING
// =============================================================================

// transition loads, guards, mutates and persists one request under the
// per-id lock. Terminal requests admit no transition at all.
func (s *Service) transition(ctx context.Context, id engine.ApprovalID, attempted string, mutate func(*engine.ApprovalRequest) error) (engine.ApprovalRequest, error) {
	s.locks.Lock(string(id))
	defer s.locks.Unlock(string(id))

	req, err := s.store.GetApproval(ctx, id)
	if err != nil {
		return engine.ApprovalRequest{}, err
	}
	if req.IsTerminal() {
		return engine.ApprovalRequest{}, &engine.TransitionError{ApprovalID: req.ID, Team: req.TeamStatus, HR: req.HRStatus, Attempted: attempted}
	}
	if err := mutate(&req); err != nil {
		return engine.ApprovalRequest{}, err
	}
	if err := s.store.PutApproval(ctx, req); err != nil {
		return engine.ApprovalRequest{}, fmt.Errorf("failed to persist approval: %w", err)
	}
	return req, nil
}

// transitionAny is transition without the terminal guard (read receipts).
func (s *Service) transitionAny(ctx context.Context, id engine.ApprovalID, mutate func(*engine.ApprovalRequest) error) (engine.ApprovalRequest, error) {
	s.locks.Lock(string(id))
	defer s.locks.Unlock(string(id))

	req, err := s.store.GetApproval(ctx, id)
	if err != nil {
		return engine.ApprovalRequest{}, err
	}
	if err := mutate(&req); err != nil {
		return engine.ApprovalRequest{}, err
	}
	if err := s.store.PutApproval(ctx, req); err != nil {
		return engine.ApprovalRequest{}, fmt.Errorf("failed to persist approval: %w", err)
	}
	return req, nil
}
