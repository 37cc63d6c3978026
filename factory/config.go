/*
Package factory provides YAML to Go configuration conversion.

PURPOSE:
  Converts a YAML evaluation-policy document into the grading scale,
  attendance-type weights, holiday calendar and work-rate baseline the
  calculators consume. This enables policy configuration without code
  changes - HR can adjust grades and weights in a file, and the factory
  creates the proper Go structs.

YAML SCHEMA:
  monthly_baseline_hours: 160
  grading_scale:
    S: {score: 130, payout_rate_percent: 130}
    A: {score: 115, payout_rate_percent: 115}
    B: {score: 100, payout_rate_percent: 100}
    C: {score: 85,  payout_rate_percent: 85}
    D: {score: 70,  payout_rate_percent: 70}
  attendance_weights:
    absence: 1.0
    half_day: 0.5
    tardy: 0.125
  holidays:
    - 2025-01-01
    - 2025-03-03

KEY FEATURES:
  - Validates structure and rejects negative weights/baselines
  - Sets sensible defaults when sections are omitted
  - Built-in default configuration for tests and first runs

USAGE:
  cfg, err := factory.Parse(yamlBytes)
  calc := &workrate.Calculator{
      Weights:              cfg.Weights,
      Holidays:             cfg.Holidays,
      MonthlyBaselineHours: cfg.MonthlyBaselineHours,
  }

SEE ALSO:
  - engine/config.go: GradingScale and AttendanceTypeWeights types
  - workrate/workrate.go: Consumer of weights/holidays/baseline
*/
package factory

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/evaluation-engine/engine"
)

// =============================================================================
// YAML SCHEMA TYPES
// =============================================================================

type configYAML struct {
	MonthlyBaselineHours *float64                 `yaml:"monthly_baseline_hours"`
	GradingScale         map[string]gradeBandYAML `yaml:"grading_scale"`
	AttendanceWeights    map[string]float64       `yaml:"attendance_weights"`
	Holidays             []string                 `yaml:"holidays"`
}

type gradeBandYAML struct {
	Score             int     `yaml:"score"`
	PayoutRatePercent float64 `yaml:"payout_rate_percent"`
}

// =============================================================================
// PARSED CONFIGURATION
// =============================================================================

// Config is the parsed evaluation-policy configuration.
type Config struct {
	MonthlyBaselineHours decimal.Decimal
	Scale                engine.GradingScale
	Weights              engine.AttendanceTypeWeights
	Holidays             engine.HolidaySet
}

// Default returns the built-in configuration: a five-band S..D scale,
// standard attendance weights, 160 baseline hours, no holidays.
func Default() Config {
	return Config{
		MonthlyBaselineHours: decimal.NewFromInt(160),
		Scale: engine.GradingScale{
			"S": {Score: 130, PayoutRatePercent: decimal.NewFromInt(130)},
			"A": {Score: 115, PayoutRatePercent: decimal.NewFromInt(115)},
			"B": {Score: 100, PayoutRatePercent: decimal.NewFromInt(100)},
			"C": {Score: 85, PayoutRatePercent: decimal.NewFromInt(85)},
			"D": {Score: 70, PayoutRatePercent: decimal.NewFromInt(70)},
		},
		Weights: engine.AttendanceTypeWeights{
			"absence":  decimal.NewFromInt(1),
			"half_day": decimal.RequireFromString("0.5"),
			"tardy":    decimal.RequireFromString("0.125"),
		},
		Holidays: engine.NewHolidaySet(),
	}
}

// Parse converts a YAML document into a Config. Omitted sections fall
// back to the defaults; present but invalid values are errors.
func Parse(data []byte) (Config, error) {
	var raw configYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := Default()

	if raw.MonthlyBaselineHours != nil {
		if *raw.MonthlyBaselineHours < 0 {
			return Config{}, fmt.Errorf("monthly_baseline_hours must not be negative, got %v", *raw.MonthlyBaselineHours)
		}
		cfg.MonthlyBaselineHours = decimal.NewFromFloat(*raw.MonthlyBaselineHours)
	}

	if len(raw.GradingScale) > 0 {
		scale := make(engine.GradingScale, len(raw.GradingScale))
		for grade, band := range raw.GradingScale {
			if band.PayoutRatePercent < 0 {
				return Config{}, fmt.Errorf("grade %q: payout_rate_percent must not be negative", grade)
			}
			scale[grade] = engine.GradeBand{
				Score:             band.Score,
				PayoutRatePercent: decimal.NewFromFloat(band.PayoutRatePercent),
			}
		}
		cfg.Scale = scale
	}

	if len(raw.AttendanceWeights) > 0 {
		weights := make(engine.AttendanceTypeWeights, len(raw.AttendanceWeights))
		for label, w := range raw.AttendanceWeights {
			if w < 0 || w > 1 {
				return Config{}, fmt.Errorf("attendance weight %q out of range [0,1]: %v", label, w)
			}
			weights[label] = decimal.NewFromFloat(w)
		}
		cfg.Weights = weights
	}

	if len(raw.Holidays) > 0 {
		for _, d := range raw.Holidays {
			if _, err := engine.ParseDate(d); err != nil {
				return Config{}, fmt.Errorf("invalid holiday date %q: %w", d, err)
			}
		}
		cfg.Holidays = engine.NewHolidaySet(raw.Holidays...)
	}

	return cfg, nil
}

// Load reads and parses a config file. An empty path returns Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}
