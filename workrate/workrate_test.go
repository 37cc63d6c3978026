package workrate_test

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/warp/evaluation-engine/engine"
	"github.com/warp/evaluation-engine/workrate"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newCalculator() *workrate.Calculator {
	return &workrate.Calculator{
		Weights: engine.AttendanceTypeWeights{
			"absence":  dec("1"),
			"half_day": dec("0.5"),
			"tardy":    dec("0.125"),
		},
		Holidays:             engine.NewHolidaySet(),
		MonthlyBaselineHours: decimal.NewFromInt(160),
	}
}

func marchWeekPeriod(startTime, endTime string) engine.ShortenedWorkPeriod {
	return engine.ShortenedWorkPeriod{
		EmployeeID: "E1",
		StartDate:  "2025-03-03", // Monday
		EndDate:    "2025-03-07", // Friday
		StartTime:  startTime,
		EndTime:    endTime,
		Category:   "parental",
	}
}

func assertDecimal(t *testing.T, got decimal.Decimal, want string, label string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %s", label, got, want)
	}
}

// =============================================================================
// FULL MONTH DERIVATION
// =============================================================================

func TestCalculate_ShortenedWeekWithHalfDay(t *testing.T) {
	// GIVEN: A Mon-Fri 09:00-15:00 shortened week (6h raw, 1h break,
	//        5h actual, 3h/day deduction over 5 business days) plus a
	//        half-day attendance entry inside the period
	// WHEN: The March report is derived
	// THEN: Deductions total 15 + 2.5 = 17.5h and the work-rate is
	//       160 / 177.5
	calc := newCalculator()
	records := engine.MonthRecords{
		Shortened: []engine.ShortenedWorkPeriod{marchWeekPeriod("09:00", "15:00")},
		Attendance: []engine.DailyAttendanceEntry{
			{EmployeeID: "E1", Date: "2025-03-05", Type: "half_day"},
		},
	}

	report := calc.Calculate("E1", "2025-03", records)

	if len(report.Periods) != 1 || len(report.Entries) != 1 {
		t.Fatalf("expected 1 period and 1 entry, got %d/%d", len(report.Periods), len(report.Entries))
	}

	period := report.Periods[0]
	assertDecimal(t, period.RawHours, "6", "raw hours")
	assertDecimal(t, period.ActualHours, "5", "actual hours")
	assertDecimal(t, period.DailyDeductionHours, "3", "daily deduction")
	if period.BusinessDays != 5 {
		t.Errorf("business days = %d, want 5", period.BusinessDays)
	}
	assertDecimal(t, period.PeriodDeductionHours, "15", "period deduction")

	entry := report.Entries[0]
	// The entry falls inside the shortened period, so its baseline is
	// the period's 5 actual hours, not a full 8-hour day.
	assertDecimal(t, entry.BaselineHours, "5", "entry baseline")
	assertDecimal(t, entry.DeductionHours, "2.5", "entry deduction")

	assertDecimal(t, report.TotalDeductionHours, "17.5", "total deduction")
	assertDecimal(t, report.TotalWorkHours, "160", "total work hours")

	want := decimal.NewFromInt(160).Div(dec("177.5"))
	if !report.WorkRate.Equal(want) {
		t.Errorf("work rate = %s, want %s", report.WorkRate, want)
	}
	if report.WorkRate.Round(4).String() != "0.9014" {
		t.Errorf("work rate rounds to %s, want 0.9014", report.WorkRate.Round(4))
	}
	if report.SkippedRecords != 0 {
		t.Errorf("skipped = %d, want 0", report.SkippedRecords)
	}
}

func TestCalculate_NoRecords_FullRate(t *testing.T) {
	report := newCalculator().Calculate("E1", "2025-03", engine.MonthRecords{})
	assertDecimal(t, report.WorkRate, "1", "work rate")
	assertDecimal(t, report.TotalDeductionHours, "0", "total deduction")
}

func TestCalculate_ZeroBaseline_ZeroRate(t *testing.T) {
	calc := newCalculator()
	calc.MonthlyBaselineHours = decimal.Zero
	report := calc.Calculate("E1", "2025-03", engine.MonthRecords{})
	assertDecimal(t, report.WorkRate, "0", "work rate with zero baseline")
}

// =============================================================================
// BREAK TIER TESTS
// =============================================================================

func TestCalculate_BreakTiers(t *testing.T) {
	// Daily schedules and the break they carry:
	//   09:00-15:00  6h raw -> 1.0h break -> 5h actual
	//   09:00-13:30  4.5h   -> 0.5h      -> 4h
	//   09:00-12:00  3h     -> none      -> 3h
	cases := []struct {
		endTime    string
		wantActual string
	}{
		{"15:00", "5"},
		{"13:30", "4"},
		{"12:00", "3"},
	}
	calc := newCalculator()
	for _, c := range cases {
		records := engine.MonthRecords{
			Shortened: []engine.ShortenedWorkPeriod{marchWeekPeriod("09:00", c.endTime)},
		}
		report := calc.Calculate("E1", "2025-03", records)
		if len(report.Periods) != 1 {
			t.Fatalf("endTime %s: expected 1 period", c.endTime)
		}
		assertDecimal(t, report.Periods[0].ActualHours, c.wantActual, "actual hours at "+c.endTime)
	}
}

// =============================================================================
// MONOTONICITY
// =============================================================================

func TestCalculate_LongerHours_HigherRate(t *testing.T) {
	// GIVEN: Two identical months except one period ends an hour later
	// THEN: More working hours never lowers the work-rate
	calc := newCalculator()
	shorter := calc.Calculate("E1", "2025-03", engine.MonthRecords{
		Shortened: []engine.ShortenedWorkPeriod{marchWeekPeriod("09:00", "15:00")},
	})
	longer := calc.Calculate("E1", "2025-03", engine.MonthRecords{
		Shortened: []engine.ShortenedWorkPeriod{marchWeekPeriod("09:00", "16:00")},
	})
	if !longer.WorkRate.GreaterThan(shorter.WorkRate) {
		t.Errorf("rate with longer hours %s should exceed %s", longer.WorkRate, shorter.WorkRate)
	}
}

// =============================================================================
// CLIPPING AND CALENDAR TESTS
// =============================================================================

func TestCalculate_PeriodClippedToMonth(t *testing.T) {
	// A period straddling February deducts only for its March days.
	calc := newCalculator()
	period := marchWeekPeriod("09:00", "15:00")
	period.StartDate = "2025-02-24" // prior Monday
	records := engine.MonthRecords{Shortened: []engine.ShortenedWorkPeriod{period}}

	report := calc.Calculate("E1", "2025-03", records)
	if len(report.Periods) != 1 {
		t.Fatal("expected 1 period")
	}
	// March 3-7 only: the February days are out of scope.
	if report.Periods[0].BusinessDays != 5 {
		t.Errorf("business days = %d, want 5", report.Periods[0].BusinessDays)
	}
}

func TestCalculate_PeriodOutsideMonth_Excluded(t *testing.T) {
	calc := newCalculator()
	records := engine.MonthRecords{
		Shortened: []engine.ShortenedWorkPeriod{marchWeekPeriod("09:00", "15:00")},
	}
	report := calc.Calculate("E1", "2025-04", records)
	if len(report.Periods) != 0 {
		t.Fatal("April report must exclude the March period")
	}
	// Out-of-month is exclusion, not malformation.
	if report.SkippedRecords != 0 {
		t.Errorf("skipped = %d, want 0", report.SkippedRecords)
	}
	assertDecimal(t, report.WorkRate, "1", "work rate")
}

func TestCalculate_HolidayReducesDeduction(t *testing.T) {
	calc := newCalculator()
	calc.Holidays = engine.NewHolidaySet("2025-03-05")
	records := engine.MonthRecords{
		Shortened: []engine.ShortenedWorkPeriod{marchWeekPeriod("09:00", "15:00")},
	}
	report := calc.Calculate("E1", "2025-03", records)
	if report.Periods[0].BusinessDays != 4 {
		t.Errorf("business days = %d, want 4 with the Wednesday holiday", report.Periods[0].BusinessDays)
	}
	assertDecimal(t, report.Periods[0].PeriodDeductionHours, "12", "period deduction")
}

// =============================================================================
// ATTENDANCE BASELINE TESTS
// =============================================================================

func TestCalculate_AttendanceOutsideAnyPeriod_FullDayBaseline(t *testing.T) {
	calc := newCalculator()
	records := engine.MonthRecords{
		Attendance: []engine.DailyAttendanceEntry{
			{EmployeeID: "E1", Date: "2025-03-17", Type: "absence"},
		},
	}
	report := calc.Calculate("E1", "2025-03", records)
	if len(report.Entries) != 1 {
		t.Fatal("expected 1 entry")
	}
	assertDecimal(t, report.Entries[0].BaselineHours, "8", "baseline")
	assertDecimal(t, report.Entries[0].DeductionHours, "8", "deduction")
}

func TestCalculate_UnknownAttendanceType_ZeroWeight(t *testing.T) {
	calc := newCalculator()
	records := engine.MonthRecords{
		Attendance: []engine.DailyAttendanceEntry{
			{EmployeeID: "E1", Date: "2025-03-17", Type: "sabbatical"},
		},
	}
	report := calc.Calculate("E1", "2025-03", records)
	assertDecimal(t, report.Entries[0].DeductionHours, "0", "deduction for unconfigured type")
}

// =============================================================================
// MALFORMED RECORD TOLERANCE
// =============================================================================

func TestCalculate_MalformedDates_SkippedNotFatal(t *testing.T) {
	// GIVEN: One good period, one with an unparseable start date, one
	//        attendance entry with an unparseable date
	// THEN: The batch completes; the bad rows are counted as skipped
	calc := newCalculator()
	broken := marchWeekPeriod("09:00", "15:00")
	broken.StartDate = "someday"
	records := engine.MonthRecords{
		Shortened: []engine.ShortenedWorkPeriod{marchWeekPeriod("09:00", "15:00"), broken},
		Attendance: []engine.DailyAttendanceEntry{
			{EmployeeID: "E1", Date: "???", Type: "absence"},
		},
	}

	report := calc.Calculate("E1", "2025-03", records)
	if len(report.Periods) != 1 {
		t.Errorf("periods = %d, want 1", len(report.Periods))
	}
	if report.SkippedRecords != 2 {
		t.Errorf("skipped = %d, want 2", report.SkippedRecords)
	}
	assertDecimal(t, report.TotalDeductionHours, "15", "total deduction")
}

func TestCalculate_MalformedClockTime_ZeroHoursCountedSkipped(t *testing.T) {
	// An unparseable clock time contributes 0 hours for the bad field:
	// actual drops to 0 and the full 8h/day is deducted, flagged skipped.
	calc := newCalculator()
	records := engine.MonthRecords{
		Shortened: []engine.ShortenedWorkPeriod{marchWeekPeriod("late", "15:00")},
	}
	report := calc.Calculate("E1", "2025-03", records)
	if len(report.Periods) != 1 {
		t.Fatal("malformed clock must not drop the record")
	}
	assertDecimal(t, report.Periods[0].DailyDeductionHours, "8", "daily deduction")
	if report.SkippedRecords != 1 {
		t.Errorf("skipped = %d, want 1", report.SkippedRecords)
	}
}

func TestCalculate_InvertedClockTimes_ClampedToZero(t *testing.T) {
	// End before start clamps raw hours at 0 rather than going negative.
	calc := newCalculator()
	records := engine.MonthRecords{
		Shortened: []engine.ShortenedWorkPeriod{marchWeekPeriod("15:00", "09:00")},
	}
	report := calc.Calculate("E1", "2025-03", records)
	assertDecimal(t, report.Periods[0].RawHours, "0", "raw hours")
	assertDecimal(t, report.Periods[0].DailyDeductionHours, "8", "daily deduction")
}

// =============================================================================
// BOUNDS
// =============================================================================

func TestCalculate_RateNeverExceedsBounds(t *testing.T) {
	calc := newCalculator()
	// Pile on deductions well past the baseline.
	var entries []engine.DailyAttendanceEntry
	for day := 3; day <= 28; day++ {
		entries = append(entries, engine.DailyAttendanceEntry{
			EmployeeID: "E1",
			Date:       fmt.Sprintf("2025-03-%02d", day),
			Type:       "absence",
		})
	}
	report := calc.Calculate("E1", "2025-03", engine.MonthRecords{Attendance: entries})
	if report.WorkRate.IsNegative() || report.WorkRate.GreaterThan(decimal.NewFromInt(1)) {
		t.Errorf("work rate %s out of [0, 1]", report.WorkRate)
	}
}
