/*
Package payout turns a grade and a work-rate into a payable amount.

TIERS:
  workRate >= 0.70          full grade amount
  0.25 <= workRate < 0.70   grade amount scaled by work-rate
  workRate < 0.25           nothing

  The thresholds are policy constants, not derived. Compute is a pure
  function: same inputs, same output, so results can be re-derived
  after any record change.
*/
package payout

import (
	"github.com/shopspring/decimal"

	"github.com/warp/evaluation-engine/engine"
)

var (
	// FullPayoutRate is the work-rate at and above which the grade
	// amount is paid in full.
	FullPayoutRate = decimal.RequireFromString("0.70")

	// MinimumPayoutRate is the work-rate below which nothing is paid.
	MinimumPayoutRate = decimal.RequireFromString("0.25")

	hundred = decimal.NewFromInt(100)
)

// Result is the computed compensation breakdown.
type Result struct {
	Score       int
	PayoutRate  decimal.Decimal // percent, from the grading scale
	GradeAmount decimal.Decimal
	FinalAmount decimal.Decimal
}

// Compute derives compensation from a grade, the grading scale, a base
// amount and a computed work-rate. An unset or unknown grade scores 0
// and pays 0.
func Compute(grade string, scale engine.GradingScale, baseAmount, workRate decimal.Decimal) Result {
	band := scale.Band(grade)
	gradeAmount := baseAmount.Mul(band.PayoutRatePercent).Div(hundred)

	var final decimal.Decimal
	switch {
	case workRate.GreaterThanOrEqual(FullPayoutRate):
		final = gradeAmount
	case workRate.GreaterThanOrEqual(MinimumPayoutRate):
		final = gradeAmount.Mul(workRate)
	default:
		final = decimal.Zero
	}

	return Result{
		Score:       band.Score,
		PayoutRate:  band.PayoutRatePercent,
		GradeAmount: gradeAmount,
		FinalAmount: final,
	}
}
