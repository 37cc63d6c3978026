/*
Package reconcile merges finally-approved changes into the canonical
work-record store exactly once.

PURPOSE:
  An approval event may fire twice, arrive late, or arrive out of order.
  The reconciliation engine makes applying it safe: it checks whether
  the change is already present in the target month's collection and
  mutates the store only when it is not.

APPLY FLOW:

  Apply(approval)
      │
      ├─ 1. Guard: HRStatus must be FinalApproved
      ├─ 2. Month key from the RECORD's own effective date
      │      (not the approval's submission month)
      ├─ 3. Idempotency check against the stored month
      │       Add:    tuple already present?        -> AlreadyApplied
      │       Delete: tuple already absent?         -> AlreadyApplied
      │       Edit:   changed fields already match? -> AlreadyApplied
      ├─ 4. Mutate the month collection (only when not applied)
      ├─ 5. Persist the whole collection in one write
      └─ 6. Emit a typed event to the notifier

EDIT TARGET RESOLUTION:
  An edit payload carries only new field values. The stored record it
  replaces is found through the change-tracking mapping registered at
  submission time. A missing mapping FAILS CLOSED with
  engine.ErrAmbiguousTarget - the engine never guesses a target and
  never appends a duplicate on a lost mapping. The caller retries once
  the mapping is available.

CONCURRENCY:
  The check-then-apply sequence is a read-modify-write on one
  employee-month key, serialized through a keyed mutex. Different
  months and different employees proceed fully in parallel.

EXAMPLE:
  eng := reconcile.New(store)
  outcome, err := eng.Apply(ctx, approved)
  if outcome == reconcile.AlreadyApplied {
      // benign repeat: log and skip notifications
  }

SEE ALSO:
  - approval/service.go: Producer of FinalApproved requests
  - engine/store.go: The month-keyed store contract
*/
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/warp/evaluation-engine/engine"
)

// =============================================================================
// OUTCOME
// =============================================================================

// Outcome distinguishes a first-time apply from a benign repeat.
// AlreadyApplied is NOT an error: the store is in the requested state.
type Outcome string

const (
	Applied        Outcome = "applied"
	AlreadyApplied Outcome = "already_applied"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine applies finally-approved changes to the work-record store.
type Engine struct {
	store    engine.Store
	notifier Notifier
	locks    engine.KeyedMutex
	logger   log.FieldLogger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier installs the outbound event sink.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger overrides the anomaly logger.
func WithLogger(l log.FieldLogger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the modification-stamp source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a reconciliation engine over the given store.
func New(store engine.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		notifier: NopNotifier{},
		logger:   log.StandardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply merges one finally-approved change into its target month,
// exactly once. Safe to call repeatedly with the same approval: the
// second and later calls report AlreadyApplied and write nothing.
func (e *Engine) Apply(ctx context.Context, req engine.ApprovalRequest) (Outcome, error) {
	if !req.IsFinalApproved() {
		return "", fmt.Errorf("approval %s: %w", req.ID, engine.ErrNotFinalApproved)
	}
	if err := req.Payload.Validate(); err != nil {
		return "", err
	}

	rec, err := req.Payload.Record()
	if err != nil {
		return "", err
	}
	monthKey, err := rec.EffectiveMonth()
	if err != nil {
		return "", err
	}
	employee := rec.RecordEmployee()

	// Serialize the read-modify-write per employee-month. A concurrent
	// apply on the same key could otherwise double-apply or miss an
	// AlreadyApplied detection.
	lockKey := string(employee) + "|" + string(monthKey)
	e.locks.Lock(lockKey)
	defer e.locks.Unlock(lockKey)

	records, err := e.store.GetMonth(ctx, employee, monthKey)
	if err != nil {
		return "", err
	}

	already, mapping, err := e.isAlreadyApplied(ctx, req, records)
	if err != nil {
		return "", err
	}
	if already {
		return AlreadyApplied, nil
	}

	mutated, err := e.mutate(req, records, mapping)
	if err != nil {
		return "", err
	}
	if err := e.store.PutMonth(ctx, employee, monthKey, mutated); err != nil {
		return "", err
	}

	e.notifier.Notify(Event{
		ApprovalID: req.ID,
		DataType:   req.Payload.DataType,
		Action:     req.Payload.Action,
		MonthKey:   monthKey,
	})
	return Applied, nil
}

// =============================================================================
// IDEMPOTENCY CHECK
// =============================================================================

// isAlreadyApplied decides whether the change is already reflected in
// the stored month. For edits it also resolves and returns the tracking
// mapping so the apply step doesn't look it up twice.
func (e *Engine) isAlreadyApplied(ctx context.Context, req engine.ApprovalRequest, records engine.MonthRecords) (bool, engine.ChangeTrackingEntry, error) {
	var none engine.ChangeTrackingEntry
	switch req.Payload.Action {
	case engine.ActionAdd:
		rec, _ := req.Payload.Record()
		return tupleExists(records, rec), none, nil

	case engine.ActionDelete:
		rec, _ := req.Payload.Record()
		// Inverse of Add: already applied when nothing matches.
		return !tupleExists(records, rec), none, nil

	case engine.ActionEdit:
		mapping, err := e.store.GetTrackingMapping(ctx, req.TrackingID)
		if err != nil {
			if errors.Is(err, engine.ErrMappingNotFound) {
				// Fail closed. Guessing here is how duplicate records
				// get minted; the caller retries once the mapping lands.
				return false, none, fmt.Errorf("approval %s has no tracking mapping: %w", req.ID, engine.ErrAmbiguousTarget)
			}
			return false, none, err
		}
		if !mapping.HasTarget() {
			return false, none, fmt.Errorf("approval %s mapping has no target: %w", req.ID, engine.ErrAmbiguousTarget)
		}
		applied, err := editAlreadyApplied(req.Payload, mapping, records)
		return applied, mapping, err

	default:
		return false, none, &engine.MalformedRecordError{Field: "action", Value: string(req.Payload.Action)}
	}
}

// editAlreadyApplied compares only the fields the mapping names against
// the proposed new values. A target not present in the month is treated
// as not-yet-applied; the apply step handles that anomaly.
func editAlreadyApplied(payload engine.ChangePayload, mapping engine.ChangeTrackingEntry, records engine.MonthRecords) (bool, error) {
	switch payload.DataType {
	case engine.DataShortenedWork:
		idx := findShortenedByTracking(records.Shortened, mapping.TargetTrackingID)
		if idx < 0 {
			return false, nil
		}
		stored := records.Shortened[idx]
		proposed := *payload.Shortened
		for _, field := range mapping.ChangedFields {
			got, err := shortenedField(stored, field)
			if err != nil {
				return false, err
			}
			want, err := shortenedField(proposed, field)
			if err != nil {
				return false, err
			}
			if got != want {
				return false, nil
			}
		}
		return true, nil

	case engine.DataDailyAttendance:
		idx := findAttendanceByTracking(records.Attendance, mapping.TargetTrackingID)
		if idx < 0 {
			return false, nil
		}
		stored := records.Attendance[idx]
		proposed := *payload.Attendance
		for _, field := range mapping.ChangedFields {
			got, err := attendanceField(stored, field)
			if err != nil {
				return false, err
			}
			want, err := attendanceField(proposed, field)
			if err != nil {
				return false, err
			}
			if got != want {
				return false, nil
			}
		}
		return true, nil

	default:
		return false, &engine.MalformedRecordError{Field: "data_type", Value: string(payload.DataType)}
	}
}

// =============================================================================
// MUTATION
// =============================================================================

// mutate produces the post-apply month collection. It never writes; the
// caller persists the result in a single PutMonth.
func (e *Engine) mutate(req engine.ApprovalRequest, records engine.MonthRecords, mapping engine.ChangeTrackingEntry) (engine.MonthRecords, error) {
	now := e.now()
	switch req.Payload.Action {
	case engine.ActionAdd:
		return e.applyAdd(req, records, now), nil
	case engine.ActionEdit:
		return e.applyEdit(req, records, mapping, now), nil
	case engine.ActionDelete:
		return e.applyDelete(req, records), nil
	default:
		return engine.MonthRecords{}, &engine.MalformedRecordError{Field: "action", Value: string(req.Payload.Action)}
	}
}

func (e *Engine) applyAdd(req engine.ApprovalRequest, records engine.MonthRecords, now time.Time) engine.MonthRecords {
	switch req.Payload.DataType {
	case engine.DataShortenedWork:
		records.Shortened = append(records.Shortened, req.Payload.Shortened.Normalize(now))
	case engine.DataDailyAttendance:
		records.Attendance = append(records.Attendance, req.Payload.Attendance.Normalize(now))
	}
	return records
}

// applyEdit replaces the tracked record in place. When the target cannot
// be located despite the idempotency check - say it was deleted between
// check and apply - the new values are appended instead and the anomaly
// logged. This path must never silently drop approved data.
//
// An edit whose new dates fall in a different month than the target's
// lands in this append branch too: the edit files under its own month
// and the target stays behind in the old month, so the record exists
// twice. Callers move a record across months with a delete plus an add,
// never a single edit.
func (e *Engine) applyEdit(req engine.ApprovalRequest, records engine.MonthRecords, mapping engine.ChangeTrackingEntry, now time.Time) engine.MonthRecords {
	switch req.Payload.DataType {
	case engine.DataShortenedWork:
		updated := req.Payload.Shortened.Normalize(now)
		// The replacement keeps the target's tracking id so later edits
		// still resolve to the same record.
		updated.TrackingID = mapping.TargetTrackingID
		if idx := findShortenedByTracking(records.Shortened, mapping.TargetTrackingID); idx >= 0 {
			records.Shortened[idx] = updated
			return records
		}
		e.logger.WithField("approval_id", req.ID).
			WithField("target_tracking_id", mapping.TargetTrackingID).
			Warn("edit target missing at apply time; appending instead of replacing")
		records.Shortened = append(records.Shortened, updated)

	case engine.DataDailyAttendance:
		updated := req.Payload.Attendance.Normalize(now)
		updated.TrackingID = mapping.TargetTrackingID
		if idx := findAttendanceByTracking(records.Attendance, mapping.TargetTrackingID); idx >= 0 {
			records.Attendance[idx] = updated
			return records
		}
		e.logger.WithField("approval_id", req.ID).
			WithField("target_tracking_id", mapping.TargetTrackingID).
			Warn("edit target missing at apply time; appending instead of replacing")
		records.Attendance = append(records.Attendance, updated)
	}
	return records
}

// applyDelete removes the first record matching the full field tuple.
func (e *Engine) applyDelete(req engine.ApprovalRequest, records engine.MonthRecords) engine.MonthRecords {
	switch req.Payload.DataType {
	case engine.DataShortenedWork:
		key := req.Payload.Shortened.TupleKey()
		for i, stored := range records.Shortened {
			if stored.TupleKey() == key {
				records.Shortened = append(records.Shortened[:i], records.Shortened[i+1:]...)
				break
			}
		}
	case engine.DataDailyAttendance:
		key := req.Payload.Attendance.TupleKey()
		for i, stored := range records.Attendance {
			if stored.TupleKey() == key {
				records.Attendance = append(records.Attendance[:i], records.Attendance[i+1:]...)
				break
			}
		}
	}
	return records
}

// =============================================================================
// LOOKUP HELPERS
// =============================================================================

func tupleExists(records engine.MonthRecords, rec engine.WorkRecord) bool {
	key := rec.TupleKey()
	switch rec.RecordDataType() {
	case engine.DataShortenedWork:
		for _, stored := range records.Shortened {
			if stored.TupleKey() == key {
				return true
			}
		}
	case engine.DataDailyAttendance:
		for _, stored := range records.Attendance {
			if stored.TupleKey() == key {
				return true
			}
		}
	}
	return false
}

func findShortenedByTracking(records []engine.ShortenedWorkPeriod, id engine.TrackingID) int {
	for i, rec := range records {
		if rec.TrackingID == id {
			return i
		}
	}
	return -1
}

func findAttendanceByTracking(records []engine.DailyAttendanceEntry, id engine.TrackingID) int {
	for i, rec := range records {
		if rec.TrackingID == id {
			return i
		}
	}
	return -1
}

// shortenedField extracts a named field for changed-field comparison.
// Date fields compare normalized.
func shortenedField(rec engine.ShortenedWorkPeriod, field string) (string, error) {
	switch field {
	case "start_date":
		return engine.NormalizeDate(rec.StartDate), nil
	case "end_date":
		return engine.NormalizeDate(rec.EndDate), nil
	case "start_time":
		return rec.StartTime, nil
	case "end_time":
		return rec.EndTime, nil
	case "category":
		return rec.Category, nil
	default:
		return "", &engine.MalformedRecordError{Field: "changed_fields", Value: field}
	}
}

func attendanceField(rec engine.DailyAttendanceEntry, field string) (string, error) {
	switch field {
	case "date":
		return engine.NormalizeDate(rec.Date), nil
	case "type":
		return rec.Type, nil
	default:
		return "", &engine.MalformedRecordError{Field: "changed_fields", Value: field}
	}
}
