package engine_test

import (
	"testing"
	"time"

	"github.com/warp/evaluation-engine/engine"
)

// =============================================================================
// RECORD IDENTITY TESTS
// =============================================================================

func TestShortenedWorkPeriod_TupleKey_NormalizesDates(t *testing.T) {
	// GIVEN: The same period once with dotted dates, once with dashed
	// THEN: The tuple keys are equal, so reconciliation sees one record
	dotted := engine.ShortenedWorkPeriod{
		EmployeeID: "E1",
		StartDate:  "2025.03.03",
		EndDate:    "2025.03.07",
		StartTime:  "09:00",
		EndTime:    "15:00",
		Category:   "parental",
	}
	dashed := dotted
	dashed.StartDate = "2025-03-03"
	dashed.EndDate = "2025-03-07"

	if dotted.TupleKey() != dashed.TupleKey() {
		t.Errorf("tuple keys differ: %q vs %q", dotted.TupleKey(), dashed.TupleKey())
	}
}

func TestTupleKey_IgnoresTrackingAndStamp(t *testing.T) {
	a := engine.DailyAttendanceEntry{EmployeeID: "E1", Date: "2025-03-10", Type: "absence"}
	b := a
	b.TrackingID = "ADA-00000E1-0001"
	b.LastModified = time.Now()
	if a.TupleKey() != b.TupleKey() {
		t.Error("tracking id and modification stamp must not affect identity")
	}
}

func TestEffectiveMonth_FromRecordOwnDate(t *testing.T) {
	period := engine.ShortenedWorkPeriod{EmployeeID: "E1", StartDate: "2025-03-03", EndDate: "2025-03-07"}
	key, err := period.EffectiveMonth()
	if err != nil {
		t.Fatalf("EffectiveMonth: %v", err)
	}
	if key != "2025-03" {
		t.Errorf("month key = %q, want 2025-03", key)
	}

	entry := engine.DailyAttendanceEntry{EmployeeID: "E1", Date: "2025.04.10", Type: "absence"}
	key, err = entry.EffectiveMonth()
	if err != nil {
		t.Fatalf("EffectiveMonth: %v", err)
	}
	if key != "2025-04" {
		t.Errorf("month key = %q, want 2025-04", key)
	}
}

func TestEffectiveMonth_MalformedDate(t *testing.T) {
	entry := engine.DailyAttendanceEntry{EmployeeID: "E1", Date: "soon", Type: "absence"}
	if _, err := entry.EffectiveMonth(); err == nil {
		t.Fatal("expected error for unparseable date")
	}
}

func TestCovers(t *testing.T) {
	period := engine.ShortenedWorkPeriod{StartDate: "2025-03-03", EndDate: "2025-03-07"}
	inside := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	before := time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC)
	if !period.Covers(inside) {
		t.Error("expected 03-05 covered")
	}
	if period.Covers(before) {
		t.Error("expected 03-02 not covered")
	}

	// Malformed bounds never cover anything.
	broken := engine.ShortenedWorkPeriod{StartDate: "bad", EndDate: "2025-03-07"}
	if broken.Covers(inside) {
		t.Error("malformed period must not cover")
	}
}

// =============================================================================
// CHANGE PAYLOAD TESTS
// =============================================================================

func TestChangePayload_Validate(t *testing.T) {
	valid := engine.ChangePayload{
		DataType: engine.DataShortenedWork,
		Action:   engine.ActionAdd,
		Shortened: &engine.ShortenedWorkPeriod{
			EmployeeID: "E1", StartDate: "2025-03-03", EndDate: "2025-03-07",
			StartTime: "09:00", EndTime: "15:00",
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	missingRecord := engine.ChangePayload{DataType: engine.DataShortenedWork, Action: engine.ActionAdd}
	if err := missingRecord.Validate(); err == nil {
		t.Error("expected error for nil record")
	}

	badAction := valid
	badAction.Action = "merge"
	if err := badAction.Validate(); err == nil {
		t.Error("expected error for unknown action")
	}

	noEmployee := valid
	rec := *valid.Shortened
	rec.EmployeeID = ""
	noEmployee.Shortened = &rec
	if err := noEmployee.Validate(); err == nil {
		t.Error("expected error for empty employee id")
	}
}

// =============================================================================
// MONTH RECORDS TESTS
// =============================================================================

func TestMonthRecords_CloneIsolation(t *testing.T) {
	original := engine.MonthRecords{
		Attendance: []engine.DailyAttendanceEntry{{EmployeeID: "E1", Date: "2025-03-10", Type: "absence"}},
	}
	clone := original.Clone()
	clone.Attendance[0].Type = "half_day"
	if original.Attendance[0].Type != "absence" {
		t.Error("mutating a clone leaked into the original")
	}
}

func TestMonthRecords_SortedCopy(t *testing.T) {
	records := engine.MonthRecords{
		Shortened: []engine.ShortenedWorkPeriod{
			{EmployeeID: "E1", StartDate: "2025-03-10", EndDate: "2025-03-14"},
			{EmployeeID: "E1", StartDate: "2025-03-03", EndDate: "2025-03-07"},
		},
	}
	sorted := records.SortedCopy()
	if sorted.Shortened[0].StartDate != "2025-03-03" {
		t.Errorf("first start date = %q, want 2025-03-03", sorted.Shortened[0].StartDate)
	}
	// Original order untouched.
	if records.Shortened[0].StartDate != "2025-03-10" {
		t.Error("SortedCopy mutated the receiver")
	}
}
