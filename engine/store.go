/*
store.go - Persistence interface for records, approvals and mappings

PURPOSE:
  Defines the interface between the engine and the database. The store
  is an abstract key-value collaborator: month-keyed record collections,
  approval requests by id, and tracking mappings by id. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

CONSISTENCY CONTRACT:
  - Durable and read-your-writes consistent per key.
  - GetMonth of an absent key returns an empty collection, not an error.
  - PutMonth replaces the whole month collection in one write; the
    reconciler's all-or-nothing apply depends on that.

CONCURRENCY:
  The store itself only needs per-call safety. Serialization of the
  read-modify-write sequences (per month key, per approval id) is the
  callers' job; see reconcile.Engine and approval.Service.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - engine/store/memory.go: In-memory for testing

SEE ALSO:
  - reconcile/engine.go: The only writer of month collections
  - approval/service.go: The only writer of approvals and mappings
*/
package engine

import "context"

// =============================================================================
// STORE - Abstract persistence collaborator
// =============================================================================

// Store handles persistence for the engine. Failures are propagated to
// callers unmodified; the engine does not retry.
type Store interface {
	// GetMonth returns the record collection for one employee-month.
	// An absent key yields an empty collection.
	GetMonth(ctx context.Context, employee EmployeeID, key MonthKey) (MonthRecords, error)

	// PutMonth replaces the collection for one employee-month atomically.
	PutMonth(ctx context.Context, employee EmployeeID, key MonthKey, records MonthRecords) error

	// GetApproval returns an approval by id, or ErrApprovalNotFound.
	GetApproval(ctx context.Context, id ApprovalID) (ApprovalRequest, error)

	// PutApproval creates or replaces an approval.
	PutApproval(ctx context.Context, req ApprovalRequest) error

	// ListApprovals returns all stored approvals, newest submission first.
	ListApprovals(ctx context.Context) ([]ApprovalRequest, error)

	// GetTrackingMapping returns a mapping by id, or ErrMappingNotFound.
	GetTrackingMapping(ctx context.Context, id TrackingID) (ChangeTrackingEntry, error)

	// PutTrackingMapping creates or replaces a mapping.
	PutTrackingMapping(ctx context.Context, entry ChangeTrackingEntry) error

	// MaxTrackingSequence returns the highest sequence suffix among all
	// persisted tracking ids, or 0 when none exist. The registry seeds
	// its counter from this so a restart never re-mints a used id.
	MaxTrackingSequence(ctx context.Context) (uint64, error)
}
