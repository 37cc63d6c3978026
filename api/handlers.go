/*
handlers.go - HTTP handlers for the evaluation engine

PURPOSE:
  Implements the HTTP surface over the approval workflow, the
  reconciliation engine, and the derived work-rate/evaluation views.
  Handlers stay thin: decode, call the domain service, encode.

CONTROL FLOW:
  A final HR approval triggers reconciliation inline; if the merge
  cannot complete (retryable ErrAmbiguousTarget), the approval stays
  FinalApproved and POST /approvals/{id}/apply retries it later.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed payloads and invalid input
  - 403: Actor mismatch on a transition
  - 404: Unknown approval
  - 409: Invalid transition, retryable reconciliation conflicts
  - 500: Internal errors

  "Already applied" is NOT an error: it comes back 200 with status
  "already_applied" so callers can tell a benign repeat from a failure.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/evaluation-engine/advisor"
	"github.com/warp/evaluation-engine/approval"
	"github.com/warp/evaluation-engine/engine"
	"github.com/warp/evaluation-engine/payout"
	"github.com/warp/evaluation-engine/reconcile"
	"github.com/warp/evaluation-engine/workrate"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      engine.Store
	Approvals  *approval.Service
	Reconciler *reconcile.Engine
	Calculator *workrate.Calculator
	Evaluator  *payout.Evaluator
	Advisor    advisor.Provider
}

// NewHandler wires a handler over one store and one configuration.
func NewHandler(store engine.Store, approvals *approval.Service, reconciler *reconcile.Engine, calc *workrate.Calculator, evaluator *payout.Evaluator, adv advisor.Provider) *Handler {
	if adv == nil {
		adv = advisor.Disabled{}
	}
	return &Handler{
		Store:      store,
		Approvals:  approvals,
		Reconciler: reconciler,
		Calculator: calc,
		Evaluator:  evaluator,
		Advisor:    adv,
	}
}

// =============================================================================
// APPROVAL HANDLERS
// =============================================================================

// SubmitApproval opens a new approval request.
func (h *Handler) SubmitApproval(w http.ResponseWriter, r *http.Request) {
	var dto SubmitDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req, err := h.Approvals.Submit(r.Context(), approval.SubmitInput{
		RequesterID:      engine.EmployeeID(dto.RequesterID),
		TeamApproverID:   engine.EmployeeID(dto.TeamApproverID),
		HRApproverID:     engine.EmployeeID(dto.HRApproverID),
		Payload:          dto.Payload,
		TargetTrackingID: engine.TrackingID(dto.TargetTrackingID),
		ChangedFields:    dto.ChangedFields,
	})
	if err != nil {
		writeDomainError(w, "Failed to submit approval", err)
		return
	}
	writeJSON(w, http.StatusCreated, toApprovalDTO(req))
}

// ListApprovals returns all approval requests, newest first.
func (h *Handler) ListApprovals(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Store.ListApprovals(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list approvals", err)
		return
	}
	dtos := make([]ApprovalDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = toApprovalDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetApproval returns one approval by id.
func (h *Handler) GetApproval(w http.ResponseWriter, r *http.Request) {
	id := engine.ApprovalID(chi.URLParam(r, "id"))
	req, err := h.Store.GetApproval(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load approval", err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalDTO(req))
}

// DecideTeam records the team approver's decision.
func (h *Handler) DecideTeam(w http.ResponseWriter, r *http.Request) {
	id := engine.ApprovalID(chi.URLParam(r, "id"))
	var dto DecisionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req, err := h.Approvals.DecideTeam(r.Context(), id, engine.EmployeeID(dto.CallerID), dto.Approve, dto.Reason)
	if err != nil {
		writeDomainError(w, "Failed to record team decision", err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalDTO(req))
}

// DecideHR records the HR approver's decision. An approval triggers
// reconciliation inline; a retryable merge failure leaves the approval
// FinalApproved for a later /apply.
func (h *Handler) DecideHR(w http.ResponseWriter, r *http.Request) {
	id := engine.ApprovalID(chi.URLParam(r, "id"))
	var dto DecisionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req, err := h.Approvals.DecideHR(r.Context(), id, engine.EmployeeID(dto.CallerID), dto.Approve, dto.Reason)
	if err != nil {
		writeDomainError(w, "Failed to record HR decision", err)
		return
	}
	if req.IsFinalApproved() {
		if _, err := h.Reconciler.Apply(r.Context(), req); err != nil && !engine.IsRetryable(err) {
			writeError(w, http.StatusInternalServerError, "Approval recorded but merge failed", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toApprovalDTO(req))
}

// SkipApprove is the HR skip path: direct final approval from
// (Pending, Pending), then the same inline reconciliation.
func (h *Handler) SkipApprove(w http.ResponseWriter, r *http.Request) {
	id := engine.ApprovalID(chi.URLParam(r, "id"))
	var dto DecisionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req, err := h.Approvals.SkipTeamAndFinalApprove(r.Context(), id, engine.EmployeeID(dto.CallerID))
	if err != nil {
		writeDomainError(w, "Failed to skip-approve", err)
		return
	}
	if _, err := h.Reconciler.Apply(r.Context(), req); err != nil && !engine.IsRetryable(err) {
		writeError(w, http.StatusInternalServerError, "Approval recorded but merge failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalDTO(req))
}

// Resubmit reopens a rejected request under a fresh id.
func (h *Handler) Resubmit(w http.ResponseWriter, r *http.Request) {
	id := engine.ApprovalID(chi.URLParam(r, "id"))
	var dto ResubmitDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req, err := h.Approvals.Resubmit(r.Context(), id, engine.EmployeeID(dto.CallerID), dto.Payload)
	if err != nil {
		writeDomainError(w, "Failed to resubmit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toApprovalDTO(req))
}

// MarkRead flips the read receipt.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := engine.ApprovalID(chi.URLParam(r, "id"))
	req, err := h.Approvals.MarkRead(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to mark read", err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalDTO(req))
}

// Apply retries reconciliation of a finally-approved request.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	id := engine.ApprovalID(chi.URLParam(r, "id"))
	req, err := h.Store.GetApproval(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load approval", err)
		return
	}
	outcome, err := h.Reconciler.Apply(r.Context(), req)
	if err != nil {
		writeDomainError(w, "Failed to apply approval", err)
		return
	}
	writeJSON(w, http.StatusOK, ApplyResultDTO{Status: string(outcome)})
}

// =============================================================================
// RECORD AND DERIVATION HANDLERS
// =============================================================================

// GetMonthRecords returns the canonical records for one employee-month.
func (h *Handler) GetMonthRecords(w http.ResponseWriter, r *http.Request) {
	employee := engine.EmployeeID(chi.URLParam(r, "id"))
	month := engine.MonthKey(chi.URLParam(r, "month"))
	records, err := h.Store.GetMonth(r.Context(), employee, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load records", err)
		return
	}
	writeJSON(w, http.StatusOK, records.SortedCopy())
}

// GetWorkRate returns the derived work-rate report.
func (h *Handler) GetWorkRate(w http.ResponseWriter, r *http.Request) {
	employee := engine.EmployeeID(chi.URLParam(r, "id"))
	month := engine.MonthKey(chi.URLParam(r, "month"))
	records, err := h.Store.GetMonth(r.Context(), employee, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load records", err)
		return
	}
	report := h.Calculator.Calculate(employee, month, records)
	writeJSON(w, http.StatusOK, toWorkRateDTO(report))
}

// GetEvaluation derives the evaluation result for one employee-month.
// Query parameters: grade (label), base (decimal amount).
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	employee := engine.EmployeeID(chi.URLParam(r, "id"))
	month := engine.MonthKey(chi.URLParam(r, "month"))
	grade := r.URL.Query().Get("grade")

	base := decimal.Zero
	if raw := r.URL.Query().Get("base"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid base amount", err)
			return
		}
		base = parsed
	}

	result, err := h.Evaluator.Derive(r.Context(), employee, month, grade, base)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to derive evaluation", err)
		return
	}
	writeJSON(w, http.StatusOK, toEvaluationDTO(result))
}

// =============================================================================
// ADVISOR HANDLER
// =============================================================================

// GetCommentary asks the advisory collaborator for distribution
// commentary. Never on the compensation-correctness path.
func (h *Handler) GetCommentary(w http.ResponseWriter, r *http.Request) {
	var dto CommentaryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	commentary, err := h.Advisor.Commentary(r.Context(), dto.DistributionSummary, dto.ExpectedDistribution)
	if err != nil {
		if errors.Is(err, advisor.ErrAdvisorDisabled) {
			writeError(w, http.StatusServiceUnavailable, "Advisor is not configured", nil)
			return
		}
		writeError(w, http.StatusBadGateway, "Advisor failed", err)
		return
	}
	writeJSON(w, http.StatusOK, commentary)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, engine.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, message, err)
	case errors.Is(err, engine.ErrInvalidTransition):
		writeError(w, http.StatusConflict, message, err)
	case engine.IsRetryable(err):
		resp := ErrorResponse{Error: message, Details: err.Error(), Retryable: true}
		writeJSON(w, http.StatusConflict, resp)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
