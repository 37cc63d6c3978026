package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/evaluation-engine/api"
	"github.com/warp/evaluation-engine/approval"
	"github.com/warp/evaluation-engine/engine"
	store "github.com/warp/evaluation-engine/engine/store"
	"github.com/warp/evaluation-engine/payout"
	"github.com/warp/evaluation-engine/reconcile"
	"github.com/warp/evaluation-engine/workrate"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()

	calc := &workrate.Calculator{
		Weights: engine.AttendanceTypeWeights{
			"absence":  decimal.NewFromInt(1),
			"half_day": decimal.RequireFromString("0.5"),
		},
		Holidays:             engine.NewHolidaySet(),
		MonthlyBaselineHours: decimal.NewFromInt(160),
	}
	scale := engine.GradingScale{
		"A": {Score: 115, PayoutRatePercent: decimal.NewFromInt(115)},
	}

	handler := api.NewHandler(
		mem,
		approval.NewService(mem),
		reconcile.New(mem),
		calc,
		&payout.Evaluator{Store: mem, Scale: scale, Calculator: calc},
		nil,
	)
	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(server.Close)
	return server, mem
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	blob, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(blob))
	require.NoError(t, err)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func submitDTO() api.SubmitDTO {
	return api.SubmitDTO{
		RequesterID:    "req-1",
		TeamApproverID: "mgr-1",
		HRApproverID:   "hr-1",
		Payload: engine.ChangePayload{
			DataType: engine.DataShortenedWork,
			Action:   engine.ActionAdd,
			Shortened: &engine.ShortenedWorkPeriod{
				EmployeeID: "E1",
				StartDate:  "2025-03-03",
				EndDate:    "2025-03-07",
				StartTime:  "09:00",
				EndTime:    "15:00",
				Category:   "parental",
			},
		},
	}
}

// =============================================================================
// APPROVAL WORKFLOW OVER HTTP
// =============================================================================

func TestFullApprovalFlow_AppliesRecord(t *testing.T) {
	// GIVEN: A submitted shortened-work Add
	// WHEN: Team approves, then HR approves
	// THEN: The record lands in the employee's March collection
	server, mem := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/approvals/", submitDTO())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeJSON[api.ApprovalDTO](t, resp)
	assert.Equal(t, "pending", created.TeamStatus)
	assert.Equal(t, "pending", created.HRStatus)

	resp = postJSON(t, fmt.Sprintf("%s/api/approvals/%s/team-decision", server.URL, created.ID),
		api.DecisionDTO{CallerID: "mgr-1", Approve: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, fmt.Sprintf("%s/api/approvals/%s/hr-decision", server.URL, created.ID),
		api.DecisionDTO{CallerID: "hr-1", Approve: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	final := decodeJSON[api.ApprovalDTO](t, resp)
	assert.Equal(t, "final_approved", final.HRStatus)

	records, err := mem.GetMonth(context.Background(), "E1", "2025-03")
	require.NoError(t, err)
	require.Len(t, records.Shortened, 1)
	assert.Equal(t, "15:00", records.Shortened[0].EndTime)
}

func TestSkipApprove_AppliesImmediately(t *testing.T) {
	server, mem := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/approvals/", submitDTO())
	created := decodeJSON[api.ApprovalDTO](t, resp)

	resp = postJSON(t, fmt.Sprintf("%s/api/approvals/%s/skip-approve", server.URL, created.ID),
		api.DecisionDTO{CallerID: "hr-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	final := decodeJSON[api.ApprovalDTO](t, resp)
	assert.Equal(t, "team_approved", final.TeamStatus)
	assert.Equal(t, "final_approved", final.HRStatus)

	records, err := mem.GetMonth(context.Background(), "E1", "2025-03")
	require.NoError(t, err)
	assert.Len(t, records.Shortened, 1)
}

func TestApplyEndpoint_ReportsRepeatAsAlreadyApplied(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/approvals/", submitDTO())
	created := decodeJSON[api.ApprovalDTO](t, resp)

	resp = postJSON(t, fmt.Sprintf("%s/api/approvals/%s/skip-approve", server.URL, created.ID),
		api.DecisionDTO{CallerID: "hr-1"})
	resp.Body.Close()

	resp = postJSON(t, fmt.Sprintf("%s/api/approvals/%s/apply", server.URL, created.ID), struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeJSON[api.ApplyResultDTO](t, resp)
	assert.Equal(t, "already_applied", result.Status)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestErrorMapping(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/approvals/", submitDTO())
	created := decodeJSON[api.ApprovalDTO](t, resp)

	// Unknown approval: 404.
	resp = postJSON(t, server.URL+"/api/approvals/nope/team-decision",
		api.DecisionDTO{CallerID: "mgr-1", Approve: true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Wrong caller: 403.
	resp = postJSON(t, fmt.Sprintf("%s/api/approvals/%s/team-decision", server.URL, created.ID),
		api.DecisionDTO{CallerID: "intruder", Approve: true})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// HR before team: 409.
	resp = postJSON(t, fmt.Sprintf("%s/api/approvals/%s/hr-decision", server.URL, created.ID),
		api.DecisionDTO{CallerID: "hr-1", Approve: true})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Malformed payload: 400.
	bad := submitDTO()
	bad.Payload.Shortened.StartDate = "someday"
	resp = postJSON(t, server.URL+"/api/approvals/", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Edit with no resolvable target: 409 marked retryable.
	edit := submitDTO()
	edit.Payload.Action = engine.ActionEdit
	resp = postJSON(t, server.URL+"/api/approvals/", edit)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	errBody := decodeJSON[api.ErrorResponse](t, resp)
	assert.True(t, errBody.Retryable)
}

// =============================================================================
// DERIVED VIEWS
// =============================================================================

func TestGetWorkRateAndEvaluation(t *testing.T) {
	server, mem := newTestServer(t)

	records := engine.MonthRecords{
		Shortened: []engine.ShortenedWorkPeriod{{
			EmployeeID: "E1",
			StartDate:  "2025-03-03",
			EndDate:    "2025-03-07",
			StartTime:  "09:00",
			EndTime:    "15:00",
		}},
		Attendance: []engine.DailyAttendanceEntry{
			{EmployeeID: "E1", Date: "2025-03-05", Type: "half_day"},
		},
	}
	require.NoError(t, mem.PutMonth(context.Background(), "E1", "2025-03", records))

	resp, err := http.Get(server.URL + "/api/employees/E1/months/2025-03/work-rate")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rate := decodeJSON[api.WorkRateDTO](t, resp)
	assert.Equal(t, "17.5", rate.TotalDeductionHours)
	assert.Equal(t, "0.9014", rate.WorkRate)
	require.Len(t, rate.Periods, 1)
	assert.Equal(t, 5, rate.Periods[0].BusinessDays)

	resp, err = http.Get(server.URL + "/api/employees/E1/months/2025-03/evaluation?grade=A&base=5000000")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	eval := decodeJSON[api.EvaluationDTO](t, resp)
	assert.Equal(t, 115, eval.Score)
	assert.Equal(t, "5750000", eval.GradeAmount)
	assert.Equal(t, "5750000", eval.FinalAmount)
}

func TestGetMonthRecords_SortedOutput(t *testing.T) {
	server, mem := newTestServer(t)
	records := engine.MonthRecords{
		Attendance: []engine.DailyAttendanceEntry{
			{EmployeeID: "E1", Date: "2025-03-20", Type: "absence"},
			{EmployeeID: "E1", Date: "2025-03-05", Type: "absence"},
		},
	}
	require.NoError(t, mem.PutMonth(context.Background(), "E1", "2025-03", records))

	resp, err := http.Get(server.URL + "/api/employees/E1/months/2025-03/records")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	loaded := decodeJSON[engine.MonthRecords](t, resp)
	require.Len(t, loaded.Attendance, 2)
	assert.Equal(t, "2025-03-05", loaded.Attendance[0].Date)
}

// =============================================================================
// ADVISOR
// =============================================================================

func TestCommentary_Unconfigured_503(t *testing.T) {
	server, _ := newTestServer(t)
	resp := postJSON(t, server.URL+"/api/advisor/commentary", api.CommentaryRequestDTO{
		DistributionSummary:  "evaluator X graded everyone S",
		ExpectedDistribution: "roughly normal around B",
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}
