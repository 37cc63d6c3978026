/*
Package engine provides the core data model and contracts for the
workforce evaluation engine.

PURPOSE:
  This package contains the domain-agnostic building blocks shared by the
  approval workflow, the reconciliation engine and the calculators:
  work records, month-keyed record collections, approval requests,
  change-tracking entries and the store contract they are persisted
  through.

KEY CONCEPTS IN THIS FILE (types.go):
  - WorkRecord: A ShortenedWorkPeriod or DailyAttendanceEntry
  - MonthRecords: All records for one employee-month (the unit of storage)
  - ChangePayload: The record + action carried by an approval request
  - MonthKey/EmployeeID/TrackingID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Record identity: Add/Delete identify records by the full field tuple,
     Edit identifies them by tracking id. Both are first-class here.
  2. Precision: Uses decimal.Decimal for hours, rates and money to avoid
     floating-point errors.
  3. Tolerance: Dates and clock times are carried as normalized strings;
     parsing failures degrade to zero values instead of aborting a batch.

USAGE:
  rec := engine.ShortenedWorkPeriod{
      EmployeeID: "E1",
      StartDate:  "2025-03-03",
      EndDate:    "2025-03-07",
      StartTime:  "09:00",
      EndTime:    "15:00",
  }
  key, _ := rec.EffectiveMonth() // "2025-03"

SEE ALSO:
  - approval.go: Approval request and change-tracking types
  - store.go: Persistence contract for these types
  - time.go: Clock/date parsing and business-day counting
*/
package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type ApprovalID string
type TrackingID string

// MonthKey identifies one employee-month collection, formatted "YYYY-MM".
// It is always derived from a record's OWN effective date, never from the
// approval's submission date, so backdated changes file into the right month.
type MonthKey string

// MonthKeyOf returns the month key containing t.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(t.Format("2006-01"))
}

// Bounds returns the first and last day of the month, both inclusive.
func (k MonthKey) Bounds() (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01", string(k))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month key %q: %w", k, err)
	}
	end := start.AddDate(0, 1, -1)
	return start, end, nil
}

// =============================================================================
// DATA TYPE AND ACTION - What kind of record, what kind of change
// =============================================================================

type DataType string

const (
	DataShortenedWork   DataType = "shortened_work"
	DataDailyAttendance DataType = "daily_attendance"
)

type Action string

const (
	ActionAdd    Action = "add"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// =============================================================================
// WORK RECORDS
// =============================================================================

// WorkRecord is implemented by both concrete record kinds. Reconciliation
// relies on EffectiveMonth for filing and TupleKey for Add/Delete identity.
type WorkRecord interface {
	RecordEmployee() EmployeeID
	RecordDataType() DataType

	// EffectiveMonth returns the month key of the record's own effective
	// date (start date for shortened-work, entry date for attendance).
	EffectiveMonth() (MonthKey, error)

	// TupleKey returns the full-field identity used by Add/Delete
	// reconciliation. Tracking id and modification stamp are excluded.
	TupleKey() string
}

// ShortenedWorkPeriod is a date range in which an employee works reduced
// daily hours (parental or medical accommodation, etc.).
type ShortenedWorkPeriod struct {
	EmployeeID EmployeeID `json:"employee_id"`
	StartDate  string     `json:"start_date"` // "YYYY-MM-DD"
	EndDate    string     `json:"end_date"`
	StartTime  string     `json:"start_time"` // "HH:MM"
	EndTime    string     `json:"end_time"`
	Category   string     `json:"category"`

	// TrackingID links the stored record back to the approval that
	// created it; edits resolve their target through it.
	TrackingID TrackingID `json:"tracking_id,omitempty"`

	LastModified time.Time `json:"last_modified,omitempty"`
}

func (p ShortenedWorkPeriod) RecordEmployee() EmployeeID { return p.EmployeeID }
func (p ShortenedWorkPeriod) RecordDataType() DataType   { return DataShortenedWork }

func (p ShortenedWorkPeriod) EffectiveMonth() (MonthKey, error) {
	d, err := ParseDate(p.StartDate)
	if err != nil {
		return "", &MalformedRecordError{Field: "start_date", Value: p.StartDate}
	}
	return MonthKeyOf(d), nil
}

func (p ShortenedWorkPeriod) TupleKey() string {
	return strings.Join([]string{
		string(p.EmployeeID),
		NormalizeDate(p.StartDate),
		NormalizeDate(p.EndDate),
		p.StartTime,
		p.EndTime,
		p.Category,
	}, "|")
}

// Normalize returns a copy with date separators normalized and the
// modification stamp set. Called on every reconciled write.
func (p ShortenedWorkPeriod) Normalize(now time.Time) ShortenedWorkPeriod {
	p.StartDate = NormalizeDate(p.StartDate)
	p.EndDate = NormalizeDate(p.EndDate)
	p.LastModified = now
	return p
}

// Covers reports whether the given date falls inside the period.
// Malformed period bounds never cover anything.
func (p ShortenedWorkPeriod) Covers(date time.Time) bool {
	start, err := ParseDate(p.StartDate)
	if err != nil {
		return false
	}
	end, err := ParseDate(p.EndDate)
	if err != nil {
		return false
	}
	return !date.Before(start) && !date.After(end)
}

// DailyAttendanceEntry is a single-day absence/leave record whose
// deduction weight comes from the attendance-type configuration.
type DailyAttendanceEntry struct {
	EmployeeID EmployeeID `json:"employee_id"`
	Date       string     `json:"date"` // "YYYY-MM-DD"
	Type       string     `json:"type"` // configured label, e.g. "absence", "half_day"

	TrackingID TrackingID `json:"tracking_id,omitempty"`

	LastModified time.Time `json:"last_modified,omitempty"`
}

func (e DailyAttendanceEntry) RecordEmployee() EmployeeID { return e.EmployeeID }
func (e DailyAttendanceEntry) RecordDataType() DataType   { return DataDailyAttendance }

func (e DailyAttendanceEntry) EffectiveMonth() (MonthKey, error) {
	d, err := ParseDate(e.Date)
	if err != nil {
		return "", &MalformedRecordError{Field: "date", Value: e.Date}
	}
	return MonthKeyOf(d), nil
}

func (e DailyAttendanceEntry) TupleKey() string {
	return strings.Join([]string{
		string(e.EmployeeID),
		NormalizeDate(e.Date),
		e.Type,
	}, "|")
}

func (e DailyAttendanceEntry) Normalize(now time.Time) DailyAttendanceEntry {
	e.Date = NormalizeDate(e.Date)
	e.LastModified = now
	return e
}

// =============================================================================
// CHANGE PAYLOAD - The record + action carried by an approval
// =============================================================================

// ChangePayload describes one proposed change. Exactly one of Shortened
// and Attendance is set, matching DataType.
type ChangePayload struct {
	DataType   DataType              `json:"data_type"`
	Action     Action                `json:"action"`
	Shortened  *ShortenedWorkPeriod  `json:"shortened,omitempty"`
	Attendance *DailyAttendanceEntry `json:"attendance,omitempty"`
}

// Record returns the carried record as a WorkRecord, or an error when the
// payload is structurally inconsistent.
func (c ChangePayload) Record() (WorkRecord, error) {
	switch c.DataType {
	case DataShortenedWork:
		if c.Shortened == nil {
			return nil, &MalformedRecordError{Field: "shortened", Value: "<nil>"}
		}
		return *c.Shortened, nil
	case DataDailyAttendance:
		if c.Attendance == nil {
			return nil, &MalformedRecordError{Field: "attendance", Value: "<nil>"}
		}
		return *c.Attendance, nil
	default:
		return nil, &MalformedRecordError{Field: "data_type", Value: string(c.DataType)}
	}
}

// Validate checks structural integrity: action, data type, employee id
// and a parseable effective date.
func (c ChangePayload) Validate() error {
	switch c.Action {
	case ActionAdd, ActionEdit, ActionDelete:
	default:
		return &MalformedRecordError{Field: "action", Value: string(c.Action)}
	}
	rec, err := c.Record()
	if err != nil {
		return err
	}
	if rec.RecordEmployee() == "" {
		return &MalformedRecordError{Field: "employee_id", Value: ""}
	}
	if _, err := rec.EffectiveMonth(); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// MONTH RECORDS - The unit of storage and of reconciliation
// =============================================================================

// MonthRecords holds every work record for one employee-month. It is the
// single collection a reconciled change reads and writes; no other
// month's data is touched by an apply.
type MonthRecords struct {
	Shortened  []ShortenedWorkPeriod  `json:"shortened"`
	Attendance []DailyAttendanceEntry `json:"attendance"`
}

// IsEmpty reports whether the month holds no records at all.
func (m MonthRecords) IsEmpty() bool {
	return len(m.Shortened) == 0 && len(m.Attendance) == 0
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate persisted state behind the reconciler's back.
func (m MonthRecords) Clone() MonthRecords {
	out := MonthRecords{}
	if len(m.Shortened) > 0 {
		out.Shortened = append([]ShortenedWorkPeriod(nil), m.Shortened...)
	}
	if len(m.Attendance) > 0 {
		out.Attendance = append([]DailyAttendanceEntry(nil), m.Attendance...)
	}
	return out
}

// SortedCopy returns a copy ordered by effective date then tuple key.
// Used by stores and reports that need deterministic output.
func (m MonthRecords) SortedCopy() MonthRecords {
	out := m.Clone()
	sort.Slice(out.Shortened, func(i, j int) bool {
		if out.Shortened[i].StartDate != out.Shortened[j].StartDate {
			return out.Shortened[i].StartDate < out.Shortened[j].StartDate
		}
		return out.Shortened[i].TupleKey() < out.Shortened[j].TupleKey()
	})
	sort.Slice(out.Attendance, func(i, j int) bool {
		if out.Attendance[i].Date != out.Attendance[j].Date {
			return out.Attendance[i].Date < out.Attendance[j].Date
		}
		return out.Attendance[i].TupleKey() < out.Attendance[j].TupleKey()
	})
	return out
}
