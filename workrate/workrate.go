/*
Package workrate derives deduction detail and an aggregate work-rate
from one employee-month of work records.

PURPOSE:
  Consumes the raw shortened-work periods and daily-attendance entries
  the reconciler maintains and produces, per record, the deduction-hour
  breakdown, and per month, the work-rate in [0, 1] that compensation
  is computed from. Pure re-derivation from stored state: safe to rerun
  after every mutation, never an incremental patch.

ALGORITHM (per shortened-work period, clipped to the month):
  rawHours            = endTime - startTime      (fractional clock hours)
  break               = 1.0 if rawHours >= 6, 0.5 if >= 4, else 0
  actualHours         = rawHours - break
  dailyDeductionHours = 8 - actualHours
  businessDays        = weekdays in the clipped range not in the holiday set
  periodDeduction     = businessDays * dailyDeductionHours

ALGORITHM (per daily-attendance entry in the month):
  baselineHours  = covering shortened period's actualHours, else 8
  entryDeduction = baselineHours * configured type weight

AGGREGATE:
  totalDeduction = sum of the above
  totalWorkHours = configured monthly baseline
  workRate       = totalWork / (totalWork + totalDeduction), clamped to
                   [0, 1]; 0 when both are 0.

TOLERANCE:
  Records dated outside the month are excluded, not errored. Records
  with unparseable dates or clock times never abort the batch: dates
  drop the record, clock times contribute 0 hours for the bad field.
  Either way the row is counted in Report.SkippedRecords so callers can
  surface it.

SEE ALSO:
  - engine/time.go: Clock parsing and business-day counting
  - payout/payout.go: Consumer of the computed work-rate
*/
package workrate

import (
	"github.com/shopspring/decimal"

	"github.com/warp/evaluation-engine/engine"
)

var (
	fullDayHours = decimal.NewFromInt(8)
	longBreak    = decimal.NewFromInt(1)
	shortBreak   = decimal.RequireFromString("0.5")
	sixHours     = decimal.NewFromInt(6)
	fourHours    = decimal.NewFromInt(4)
)

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator holds the configuration a work-rate derivation needs. All
// methods are pure; the calculator can be shared freely.
type Calculator struct {
	Weights  engine.AttendanceTypeWeights
	Holidays engine.HolidaySet

	// MonthlyBaselineHours is the expected working hours for a full
	// month (e.g. 160). The work-rate denominator builds on it.
	MonthlyBaselineHours decimal.Decimal
}

// PeriodDeduction is the per-record breakdown for one shortened-work
// period overlapping the month.
type PeriodDeduction struct {
	Record               engine.ShortenedWorkPeriod
	RawHours             decimal.Decimal
	ActualHours          decimal.Decimal
	DailyDeductionHours  decimal.Decimal
	BusinessDays         int
	PeriodDeductionHours decimal.Decimal
}

// EntryDeduction is the per-record breakdown for one daily-attendance
// entry in the month.
type EntryDeduction struct {
	Record         engine.DailyAttendanceEntry
	BaselineHours  decimal.Decimal
	Weight         decimal.Decimal
	DeductionHours decimal.Decimal
}

// Report is the full work-rate derivation for one employee-month.
type Report struct {
	Employee engine.EmployeeID
	Month    engine.MonthKey

	Periods []PeriodDeduction
	Entries []EntryDeduction

	TotalDeductionHours decimal.Decimal
	TotalWorkHours      decimal.Decimal

	// WorkRate is in [0, 1]; 1 with a nonzero baseline and no
	// deductions, 0 when baseline and deductions are both zero.
	WorkRate decimal.Decimal

	// SkippedRecords counts malformed rows that were tolerated rather
	// than computed in full.
	SkippedRecords int
}

// Calculate derives the month's report from its stored records.
func (c *Calculator) Calculate(employee engine.EmployeeID, month engine.MonthKey, records engine.MonthRecords) Report {
	report := Report{Employee: employee, Month: month}
	total := decimal.Zero

	for _, period := range records.Shortened {
		detail, ok := c.periodDeduction(month, period, &report.SkippedRecords)
		if !ok {
			continue
		}
		report.Periods = append(report.Periods, detail)
		total = total.Add(detail.PeriodDeductionHours)
	}

	for _, entry := range records.Attendance {
		detail, ok := c.entryDeduction(month, entry, records.Shortened, &report.SkippedRecords)
		if !ok {
			continue
		}
		report.Entries = append(report.Entries, detail)
		total = total.Add(detail.DeductionHours)
	}

	report.TotalDeductionHours = total
	report.TotalWorkHours = c.MonthlyBaselineHours
	report.WorkRate = workRate(report.TotalWorkHours, total)
	return report
}

// periodDeduction computes one shortened-work period's contribution.
// ok is false when the record is excluded (outside the month, or a date
// that cannot be parsed).
func (c *Calculator) periodDeduction(month engine.MonthKey, period engine.ShortenedWorkPeriod, skipped *int) (PeriodDeduction, bool) {
	start, errStart := engine.ParseDate(period.StartDate)
	end, errEnd := engine.ParseDate(period.EndDate)
	if errStart != nil || errEnd != nil {
		*skipped++
		return PeriodDeduction{}, false
	}

	clippedStart, clippedEnd, ok := engine.ClipToMonth(start, end, month)
	if !ok {
		// Outside the target month: excluded, not an error.
		return PeriodDeduction{}, false
	}

	raw, actual, malformed := actualWorkingHours(period.StartTime, period.EndTime)
	if malformed {
		*skipped++
	}

	daily := fullDayHours.Sub(actual)
	if daily.IsNegative() {
		daily = decimal.Zero
	}
	businessDays := engine.CountBusinessDays(clippedStart, clippedEnd, c.Holidays)

	return PeriodDeduction{
		Record:               period,
		RawHours:             raw,
		ActualHours:          actual,
		DailyDeductionHours:  daily,
		BusinessDays:         businessDays,
		PeriodDeductionHours: daily.Mul(decimal.NewFromInt(int64(businessDays))),
	}, true
}

// entryDeduction computes one attendance entry's contribution. The
// per-day baseline is the covering shortened period's actual hours when
// the entry falls inside one, a full day otherwise.
func (c *Calculator) entryDeduction(month engine.MonthKey, entry engine.DailyAttendanceEntry, periods []engine.ShortenedWorkPeriod, skipped *int) (EntryDeduction, bool) {
	date, err := engine.ParseDate(entry.Date)
	if err != nil {
		*skipped++
		return EntryDeduction{}, false
	}
	if engine.MonthKeyOf(date) != month {
		return EntryDeduction{}, false
	}

	baseline := fullDayHours
	for _, period := range periods {
		if period.EmployeeID == entry.EmployeeID && period.Covers(date) {
			_, actual, _ := actualWorkingHours(period.StartTime, period.EndTime)
			baseline = actual
			break
		}
	}

	weight := c.Weights.Weight(entry.Type)
	return EntryDeduction{
		Record:         entry,
		BaselineHours:  baseline,
		Weight:         weight,
		DeductionHours: baseline.Mul(weight),
	}, true
}

// actualWorkingHours returns raw and break-adjusted hours for a daily
// schedule. Unparseable clock strings contribute 0 for that field;
// malformed reports whether either side failed.
func actualWorkingHours(startTime, endTime string) (raw, actual decimal.Decimal, malformed bool) {
	start, okStart := engine.ParseClockTime(startTime)
	end, okEnd := engine.ParseClockTime(endTime)
	raw = end.Sub(start)
	if raw.IsNegative() {
		raw = decimal.Zero
	}

	brk := decimal.Zero
	switch {
	case raw.GreaterThanOrEqual(sixHours):
		brk = longBreak
	case raw.GreaterThanOrEqual(fourHours):
		brk = shortBreak
	}
	return raw, raw.Sub(brk), !okStart || !okEnd
}

// workRate computes work / (work + deduction), clamped to [0, 1].
func workRate(work, deduction decimal.Decimal) decimal.Decimal {
	denominator := work.Add(deduction)
	if denominator.IsZero() {
		return decimal.Zero
	}
	rate := work.Div(denominator)
	if rate.IsNegative() {
		return decimal.Zero
	}
	if rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return rate
}
