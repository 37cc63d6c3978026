/*
tracking.go - Change-tracking registry

PURPOSE:
  Assigns a tracking identifier to every proposed change and records,
  for edits and deletes, which original record the change targets and
  which fields it touches. The registry is the side channel that makes
  edit application idempotent: the payload carries only new field
  values, the mapping carries the pointer to the record they replace.

ID SHAPE:
  {action}{type}-{employee id, zero-padded}-{sequence}

  e.g. "ESW-00000E1-0042" for the 42nd registered change, an Edit of a
  ShortenedWork record belonging to employee E1. Deterministic enough to
  read in a log, unique via the monotonic sequence. The sequence is
  seeded from the highest suffix already persisted in the store, so a
  restart (or a second registry over the same database) continues the
  series instead of re-minting ids that already have mappings.

FAIL-CLOSED ORDERING:
  Register persists the mapping BEFORE the approval request referencing
  it is stored. A FinalApproved edit therefore always has a mapping; if
  one is ever missing, reconciliation reports ErrAmbiguousTarget instead
  of guessing (see reconcile/engine.go).

SEE ALSO:
  - engine/approval.go: ChangeTrackingEntry definition
  - reconcile/engine.go: Mapping consumer
*/
package approval

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/evaluation-engine/engine"
)

// =============================================================================
// REGISTRY
// =============================================================================

// Registry assigns tracking ids and persists change-tracking entries.
type Registry struct {
	store engine.Store

	mu     sync.Mutex
	seq    uint64
	seeded bool
}

// NewRegistry creates a registry backed by the given store. The id
// sequence is seeded from the store on first use.
func NewRegistry(store engine.Store) *Registry {
	return &Registry{store: store}
}

// nextSeq hands out the next sequence number, continuing from the
// highest suffix already persisted in the store.
func (r *Registry) nextSeq(ctx context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.seeded {
		max, err := r.store.MaxTrackingSequence(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to seed tracking sequence: %w", err)
		}
		r.seq = max
		r.seeded = true
	}
	r.seq++
	return r.seq, nil
}

var actionCodes = map[engine.Action]string{
	engine.ActionAdd:    "A",
	engine.ActionEdit:   "E",
	engine.ActionDelete: "D",
}

var dataTypeCodes = map[engine.DataType]string{
	engine.DataShortenedWork:   "SW",
	engine.DataDailyAttendance: "DA",
}

// Register assigns a tracking id to a proposed change and persists its
// entry. For Edit/Delete actions the target back-reference and (for
// edits) the changed-field set are recorded in the same write.
func (r *Registry) Register(
	ctx context.Context,
	action engine.Action,
	dataType engine.DataType,
	employee engine.EmployeeID,
	target engine.TrackingID,
	changedFields []string,
) (engine.TrackingID, error) {
	actionCode, ok := actionCodes[action]
	if !ok {
		return "", &engine.MalformedRecordError{Field: "action", Value: string(action)}
	}
	typeCode, ok := dataTypeCodes[dataType]
	if !ok {
		return "", &engine.MalformedRecordError{Field: "data_type", Value: string(dataType)}
	}

	seq, err := r.nextSeq(ctx)
	if err != nil {
		return "", err
	}
	id := engine.TrackingID(fmt.Sprintf("%s%s-%07s-%04d", actionCode, typeCode, employee, seq))

	entry := engine.ChangeTrackingEntry{
		TrackingID:       id,
		TargetTrackingID: target,
		ChangedFields:    append([]string(nil), changedFields...),
	}
	if err := r.store.PutTrackingMapping(ctx, entry); err != nil {
		return "", fmt.Errorf("failed to persist tracking mapping: %w", err)
	}
	return id, nil
}

// RecordMapping replaces the target/changed-fields of an existing entry.
// Used when a proposal's field set is amended before resubmission.
func (r *Registry) RecordMapping(ctx context.Context, id, target engine.TrackingID, changedFields []string) error {
	entry := engine.ChangeTrackingEntry{
		TrackingID:       id,
		TargetTrackingID: target,
		ChangedFields:    append([]string(nil), changedFields...),
	}
	if err := r.store.PutTrackingMapping(ctx, entry); err != nil {
		return fmt.Errorf("failed to persist tracking mapping: %w", err)
	}
	return nil
}

// Lookup returns the entry for a tracking id, or engine.ErrMappingNotFound.
func (r *Registry) Lookup(ctx context.Context, id engine.TrackingID) (engine.ChangeTrackingEntry, error) {
	return r.store.GetTrackingMapping(ctx, id)
}
