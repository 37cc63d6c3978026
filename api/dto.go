/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Keeps wire shapes separate from domain types. Handlers convert between
  these DTOs and the engine/approval/payout types; nothing outside the
  api package should depend on wire shapes.
*/
package api

import (
	"time"

	"github.com/warp/evaluation-engine/engine"
	"github.com/warp/evaluation-engine/payout"
	"github.com/warp/evaluation-engine/workrate"
)

// =============================================================================
// REQUESTS
// =============================================================================

// SubmitDTO opens a new approval request.
type SubmitDTO struct {
	RequesterID    string `json:"requester_id"`
	TeamApproverID string `json:"team_approver_id"`
	HRApproverID   string `json:"hr_approver_id"`

	Payload engine.ChangePayload `json:"payload"`

	TargetTrackingID string   `json:"target_tracking_id,omitempty"`
	ChangedFields    []string `json:"changed_fields,omitempty"`
}

// DecisionDTO carries one approver's decision.
type DecisionDTO struct {
	CallerID string `json:"caller_id"`
	Approve  bool   `json:"approve"`
	Reason   string `json:"reason,omitempty"`
}

// ResubmitDTO resubmits a rejected request, optionally with an edited
// payload.
type ResubmitDTO struct {
	CallerID string                `json:"caller_id"`
	Payload  *engine.ChangePayload `json:"payload,omitempty"`
}

// CommentaryRequestDTO asks the advisor for distribution commentary.
type CommentaryRequestDTO struct {
	DistributionSummary  string `json:"distribution_summary"`
	ExpectedDistribution string `json:"expected_distribution"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// ApprovalDTO is the wire form of an approval request.
type ApprovalDTO struct {
	ID              string               `json:"id"`
	RequesterID     string               `json:"requester_id"`
	TeamApproverID  string               `json:"team_approver_id"`
	HRApproverID    string               `json:"hr_approver_id"`
	Payload         engine.ChangePayload `json:"payload"`
	TeamStatus      string               `json:"team_status"`
	HRStatus        string               `json:"hr_status"`
	RejectionReason string               `json:"rejection_reason,omitempty"`
	TrackingID      string               `json:"tracking_id"`
	SubmittedAt     time.Time            `json:"submitted_at"`
	TeamDecidedAt   *time.Time           `json:"team_decided_at,omitempty"`
	HRDecidedAt     *time.Time           `json:"hr_decided_at,omitempty"`
	IsRead          bool                 `json:"is_read"`
}

func toApprovalDTO(req engine.ApprovalRequest) ApprovalDTO {
	return ApprovalDTO{
		ID:              string(req.ID),
		RequesterID:     string(req.RequesterID),
		TeamApproverID:  string(req.TeamApproverID),
		HRApproverID:    string(req.HRApproverID),
		Payload:         req.Payload,
		TeamStatus:      string(req.TeamStatus),
		HRStatus:        string(req.HRStatus),
		RejectionReason: req.RejectionReason,
		TrackingID:      string(req.TrackingID),
		SubmittedAt:     req.SubmittedAt,
		TeamDecidedAt:   req.TeamDecidedAt,
		HRDecidedAt:     req.HRDecidedAt,
		IsRead:          req.IsRead,
	}
}

// ApplyResultDTO reports a reconciliation outcome. Status is "applied"
// for a first-time merge and "already_applied" for a benign repeat.
type ApplyResultDTO struct {
	Status string `json:"status"`
}

// WorkRateDTO is the wire form of a work-rate report.
type WorkRateDTO struct {
	Employee            string               `json:"employee_id"`
	Month               string               `json:"month"`
	Periods             []PeriodDeductionDTO `json:"periods"`
	Entries             []EntryDeductionDTO  `json:"entries"`
	TotalDeductionHours string               `json:"total_deduction_hours"`
	TotalWorkHours      string               `json:"total_work_hours"`
	WorkRate            string               `json:"work_rate"`
	SkippedRecords      int                  `json:"skipped_records"`
}

type PeriodDeductionDTO struct {
	StartDate            string `json:"start_date"`
	EndDate              string `json:"end_date"`
	ActualHours          string `json:"actual_hours"`
	DailyDeductionHours  string `json:"daily_deduction_hours"`
	BusinessDays         int    `json:"business_days"`
	PeriodDeductionHours string `json:"period_deduction_hours"`
}

type EntryDeductionDTO struct {
	Date           string `json:"date"`
	Type           string `json:"type"`
	BaselineHours  string `json:"baseline_hours"`
	Weight         string `json:"weight"`
	DeductionHours string `json:"deduction_hours"`
}

func toWorkRateDTO(report workrate.Report) WorkRateDTO {
	dto := WorkRateDTO{
		Employee:            string(report.Employee),
		Month:               string(report.Month),
		Periods:             []PeriodDeductionDTO{},
		Entries:             []EntryDeductionDTO{},
		TotalDeductionHours: report.TotalDeductionHours.String(),
		TotalWorkHours:      report.TotalWorkHours.String(),
		WorkRate:            report.WorkRate.StringFixed(4),
		SkippedRecords:      report.SkippedRecords,
	}
	for _, p := range report.Periods {
		dto.Periods = append(dto.Periods, PeriodDeductionDTO{
			StartDate:            p.Record.StartDate,
			EndDate:              p.Record.EndDate,
			ActualHours:          p.ActualHours.String(),
			DailyDeductionHours:  p.DailyDeductionHours.String(),
			BusinessDays:         p.BusinessDays,
			PeriodDeductionHours: p.PeriodDeductionHours.String(),
		})
	}
	for _, e := range report.Entries {
		dto.Entries = append(dto.Entries, EntryDeductionDTO{
			Date:           e.Record.Date,
			Type:           e.Record.Type,
			BaselineHours:  e.BaselineHours.String(),
			Weight:         e.Weight.String(),
			DeductionHours: e.DeductionHours.String(),
		})
	}
	return dto
}

// EvaluationDTO is the wire form of a derived evaluation result.
type EvaluationDTO struct {
	Employee       string `json:"employee_id"`
	Month          string `json:"month"`
	Grade          string `json:"grade"`
	Score          int    `json:"score"`
	WorkRate       string `json:"work_rate"`
	BaseAmount     string `json:"base_amount"`
	GradeAmount    string `json:"grade_amount"`
	FinalAmount    string `json:"final_amount"`
	SkippedRecords int    `json:"skipped_records"`
}

func toEvaluationDTO(result payout.EvaluationResult) EvaluationDTO {
	return EvaluationDTO{
		Employee:       string(result.Employee),
		Month:          string(result.Month),
		Grade:          result.Grade,
		Score:          result.Score,
		WorkRate:       result.WorkRate.StringFixed(4),
		BaseAmount:     result.BaseAmount.String(),
		GradeAmount:    result.GradeAmount.String(),
		FinalAmount:    result.FinalAmount.String(),
		SkippedRecords: result.SkippedRecords,
	}
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`

	// Retryable marks failures worth retrying unchanged (e.g. an edit
	// whose tracking mapping has not landed yet).
	Retryable bool `json:"retryable,omitempty"`
}
