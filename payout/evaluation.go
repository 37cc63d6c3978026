package payout

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/evaluation-engine/engine"
	"github.com/warp/evaluation-engine/workrate"
)

// =============================================================================
// EVALUATION RESULT - Derived on demand, never stored
// =============================================================================

// EvaluationResult combines an evaluator-assigned grade with the
// employee-month's derived work-rate and the resulting amounts. It is
// recomputed from current stored state each time; nothing here is
// cached or incrementally patched.
type EvaluationResult struct {
	Employee engine.EmployeeID
	Month    engine.MonthKey
	Grade    string

	Score       int
	WorkRate    decimal.Decimal
	BaseAmount  decimal.Decimal
	GradeAmount decimal.Decimal
	FinalAmount decimal.Decimal

	// SkippedRecords carried up from the work-rate derivation.
	SkippedRecords int
}

// Evaluator derives evaluation results from the store.
type Evaluator struct {
	Store      engine.Store
	Scale      engine.GradingScale
	Calculator *workrate.Calculator
}

// Derive recomputes the evaluation result for one employee-month from
// the canonical record store.
func (e *Evaluator) Derive(ctx context.Context, employee engine.EmployeeID, month engine.MonthKey, grade string, baseAmount decimal.Decimal) (EvaluationResult, error) {
	records, err := e.Store.GetMonth(ctx, employee, month)
	if err != nil {
		return EvaluationResult{}, err
	}

	report := e.Calculator.Calculate(employee, month, records)
	result := Compute(grade, e.Scale, baseAmount, report.WorkRate)

	return EvaluationResult{
		Employee:       employee,
		Month:          month,
		Grade:          grade,
		Score:          result.Score,
		WorkRate:       report.WorkRate,
		BaseAmount:     baseAmount,
		GradeAmount:    result.GradeAmount,
		FinalAmount:    result.FinalAmount,
		SkippedRecords: report.SkippedRecords,
	}, nil
}
