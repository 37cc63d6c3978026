package engine

import "github.com/shopspring/decimal"

// =============================================================================
// GRADING SCALE - Grade label to score and payout rate
// =============================================================================

// GradeBand is one row of the grading scale.
type GradeBand struct {
	Score             int             `json:"score" yaml:"score"`
	PayoutRatePercent decimal.Decimal `json:"payout_rate_percent" yaml:"payout_rate_percent"`
}

// GradingScale maps a grade label ("S", "A", ...) to its band.
// Loaded from configuration; read-only to the engine.
type GradingScale map[string]GradeBand

// Band returns the band for a grade. An unset or unknown grade yields
// the zero band (score 0, payout 0), never an error.
func (s GradingScale) Band(grade string) GradeBand {
	if grade == "" {
		return GradeBand{PayoutRatePercent: decimal.Zero}
	}
	band, ok := s[grade]
	if !ok {
		return GradeBand{PayoutRatePercent: decimal.Zero}
	}
	return band
}

// =============================================================================
// ATTENDANCE TYPE WEIGHTS - Deduction weight per attendance label
// =============================================================================

// AttendanceTypeWeights maps a daily-attendance type label to its
// deduction weight as a fraction of a day (1.0 full absence, 0.5
// half-day). Shortened-work types carry no weight here; their deduction
// is computed from hours.
type AttendanceTypeWeights map[string]decimal.Decimal

// Weight returns the configured weight for a type label, or zero for an
// unknown label so an unconfigured type deducts nothing.
func (w AttendanceTypeWeights) Weight(label string) decimal.Decimal {
	weight, ok := w[label]
	if !ok {
		return decimal.Zero
	}
	return weight
}
