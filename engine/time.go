package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CLOCK TIME - "HH:MM" strings to fractional hours
// =============================================================================

// ParseClockTime converts a clock-time string ("09:00", "15:30") to
// fractional hours. Malformed input yields (0, false) rather than an
// error so one bad row never blocks a whole batch; callers that care
// count the misses.
func ParseClockTime(s string) (decimal.Decimal, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return decimal.Zero, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return decimal.Zero, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return decimal.Zero, false
	}
	h := decimal.NewFromInt(int64(hour))
	m := decimal.NewFromInt(int64(minute)).Div(decimal.NewFromInt(60))
	return h.Add(m), true
}

// ClockSpan returns end − start in fractional hours. Either side failing
// to parse yields zero for that side, matching ParseClockTime's tolerance.
func ClockSpan(start, end string) decimal.Decimal {
	s, _ := ParseClockTime(start)
	e, _ := ParseClockTime(end)
	return e.Sub(s)
}

// =============================================================================
// DATES - Normalization and parsing
// =============================================================================

const dateLayout = "2006-01-02"

// NormalizeDate rewrites "." and "/" separators to "-", so that records
// arriving as "2025.03.01" and "2025-03-01" compare equal.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}

// ParseDate parses a (possibly unnormalized) "YYYY-MM-DD" date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, NormalizeDate(s))
}

// FormatDate renders t in the storage date layout.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// =============================================================================
// BUSINESS DAYS - Weekend and holiday aware counting
// =============================================================================

// HolidaySet is the configured holiday calendar for a year, keyed by
// normalized "YYYY-MM-DD" date.
type HolidaySet map[string]struct{}

// NewHolidaySet builds a set from date strings; unparseable entries are
// dropped.
func NewHolidaySet(dates ...string) HolidaySet {
	set := make(HolidaySet, len(dates))
	for _, d := range dates {
		if _, err := ParseDate(d); err != nil {
			continue
		}
		set[NormalizeDate(d)] = struct{}{}
	}
	return set
}

// Contains reports whether t is a configured holiday.
func (h HolidaySet) Contains(t time.Time) bool {
	_, ok := h[FormatDate(t)]
	return ok
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// CountBusinessDays counts the weekdays in [start, end] that are not in
// the holiday set. An inverted range counts zero.
func CountBusinessDays(start, end time.Time, holidays HolidaySet) int {
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsWeekend(d) {
			continue
		}
		if holidays.Contains(d) {
			continue
		}
		count++
	}
	return count
}

// ClipToMonth clips [start, end] to the month's bounds. ok is false when
// the clipped range is empty (the record lies outside the month).
func ClipToMonth(start, end time.Time, key MonthKey) (time.Time, time.Time, bool) {
	monthStart, monthEnd, err := key.Bounds()
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	if start.Before(monthStart) {
		start = monthStart
	}
	if end.After(monthEnd) {
		end = monthEnd
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
