package payout_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/warp/evaluation-engine/engine"
	store "github.com/warp/evaluation-engine/engine/store"
	"github.com/warp/evaluation-engine/payout"
	"github.com/warp/evaluation-engine/workrate"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testScale() engine.GradingScale {
	return engine.GradingScale{
		"S": {Score: 130, PayoutRatePercent: dec("130")},
		"A": {Score: 115, PayoutRatePercent: dec("115")},
		"B": {Score: 100, PayoutRatePercent: dec("100")},
		"C": {Score: 85, PayoutRatePercent: dec("85")},
		"D": {Score: 70, PayoutRatePercent: dec("70")},
	}
}

func assertDecimal(t *testing.T, got decimal.Decimal, want string, label string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %s", label, got, want)
	}
}

// =============================================================================
// TIER TESTS
// =============================================================================

func TestCompute_FullTier(t *testing.T) {
	// GIVEN: Grade A on a 5,000,000 base with work-rate 0.9014
	// THEN: Grade amount 5,750,000, paid in full (rate >= 0.70)
	result := payout.Compute("A", testScale(), dec("5000000"), dec("0.9014"))

	if result.Score != 115 {
		t.Errorf("score = %d, want 115", result.Score)
	}
	assertDecimal(t, result.GradeAmount, "5750000", "grade amount")
	assertDecimal(t, result.FinalAmount, "5750000", "final amount")
}

func TestCompute_PartialTier_ScalesByRate(t *testing.T) {
	// workRate in [0.25, 0.70) scales the grade amount.
	result := payout.Compute("A", testScale(), dec("5000000"), dec("0.5"))
	assertDecimal(t, result.GradeAmount, "5750000", "grade amount")
	assertDecimal(t, result.FinalAmount, "2875000", "final amount")
}

func TestCompute_BelowMinimum_PaysNothing(t *testing.T) {
	result := payout.Compute("A", testScale(), dec("5000000"), dec("0.24"))
	assertDecimal(t, result.GradeAmount, "5750000", "grade amount")
	assertDecimal(t, result.FinalAmount, "0", "final amount")
}

func TestCompute_TierBoundaries(t *testing.T) {
	// Exactly 0.70 pays in full; exactly 0.25 pays scaled.
	full := payout.Compute("B", testScale(), dec("1000"), dec("0.70"))
	assertDecimal(t, full.FinalAmount, "1000", "final at 0.70")

	scaled := payout.Compute("B", testScale(), dec("1000"), dec("0.25"))
	assertDecimal(t, scaled.FinalAmount, "250", "final at 0.25")

	// Just under 0.25 drops to nothing.
	zero := payout.Compute("B", testScale(), dec("1000"), dec("0.2499"))
	assertDecimal(t, zero.FinalAmount, "0", "final below minimum")
}

func TestCompute_UnknownGrade_ZeroEverything(t *testing.T) {
	for _, grade := range []string{"", "Z"} {
		result := payout.Compute(grade, testScale(), dec("5000000"), dec("1"))
		if result.Score != 0 {
			t.Errorf("grade %q: score = %d, want 0", grade, result.Score)
		}
		assertDecimal(t, result.FinalAmount, "0", "final for grade "+grade)
	}
}

func TestCompute_IsPure(t *testing.T) {
	a := payout.Compute("S", testScale(), dec("3000000"), dec("0.85"))
	b := payout.Compute("S", testScale(), dec("3000000"), dec("0.85"))
	if !a.FinalAmount.Equal(b.FinalAmount) || a.Score != b.Score {
		t.Error("same inputs must produce the same result")
	}
}

// =============================================================================
// EVALUATION DERIVATION TESTS
// =============================================================================

func TestDerive_RecomputesFromStoredState(t *testing.T) {
	// GIVEN: A stored March with a shortened week and a half-day entry
	//        (17.5h deductions against a 160h baseline)
	// WHEN: An A-grade evaluation on a 5,000,000 base is derived
	// THEN: Work-rate 160/177.5 >= 0.70, so 5,750,000 pays in full
	mem := store.NewMemory()
	ctx := context.Background()
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
	if err := mem.PutMonth(ctx, "E1", "2025-03", records); err != nil {
		t.Fatalf("PutMonth: %v", err)
	}

	evaluator := &payout.Evaluator{
		Store: mem,
		Scale: testScale(),
		Calculator: &workrate.Calculator{
			Weights:              engine.AttendanceTypeWeights{"half_day": dec("0.5")},
			MonthlyBaselineHours: decimal.NewFromInt(160),
		},
	}

	result, err := evaluator.Derive(ctx, "E1", "2025-03", "A", dec("5000000"))
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if result.Score != 115 {
		t.Errorf("score = %d, want 115", result.Score)
	}
	if result.WorkRate.Round(4).String() != "0.9014" {
		t.Errorf("work rate = %s, want ~0.9014", result.WorkRate)
	}
	assertDecimal(t, result.GradeAmount, "5750000", "grade amount")
	assertDecimal(t, result.FinalAmount, "5750000", "final amount")
	if result.SkippedRecords != 0 {
		t.Errorf("skipped = %d, want 0", result.SkippedRecords)
	}
}

func TestDerive_ReflectsRecordChanges(t *testing.T) {
	// Results are derived, never cached: removing the deductions bumps
	// the next derivation back to full rate.
	mem := store.NewMemory()
	ctx := context.Background()
	evaluator := &payout.Evaluator{
		Store: mem,
		Scale: testScale(),
		Calculator: &workrate.Calculator{
			Weights:              engine.AttendanceTypeWeights{"absence": dec("1")},
			MonthlyBaselineHours: decimal.NewFromInt(160),
		},
	}

	withAbsences := engine.MonthRecords{
		Attendance: []engine.DailyAttendanceEntry{
			{EmployeeID: "E1", Date: "2025-03-10", Type: "absence"},
		},
	}
	if err := mem.PutMonth(ctx, "E1", "2025-03", withAbsences); err != nil {
		t.Fatalf("PutMonth: %v", err)
	}
	before, err := evaluator.Derive(ctx, "E1", "2025-03", "B", dec("1000000"))
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	if err := mem.PutMonth(ctx, "E1", "2025-03", engine.MonthRecords{}); err != nil {
		t.Fatalf("PutMonth: %v", err)
	}
	after, err := evaluator.Derive(ctx, "E1", "2025-03", "B", dec("1000000"))
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	if !after.WorkRate.GreaterThan(before.WorkRate) {
		t.Errorf("rate after cleanup %s should exceed %s", after.WorkRate, before.WorkRate)
	}
	assertDecimal(t, after.WorkRate, "1", "rate with no deductions")
}
