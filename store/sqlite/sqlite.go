/*
Package sqlite provides a SQLite-backed implementation of engine.Store.

PURPOSE:
  Implements the persistence contract using SQLite. In production the
  same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  month_records:     One row per employee-month, records as JSON
  approvals:         Approval requests, payload as JSON + status columns
  tracking_mappings: Change-tracking entries by tracking id

CONSISTENCY:
  month_records is written with INSERT OR REPLACE of the whole
  collection, which gives the reconciler its all-or-nothing PutMonth.
  Reads after writes on the same connection observe the write
  (read-your-writes per key).

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: multiple readers don't block, single writer at a time,
  better crash recovery.

USAGE:
  store, err := sqlite.New("./data/evaluation.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := approval.NewService(store)
  eng := reconcile.New(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definition
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/evaluation-engine/engine"
)

// Store implements engine.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- One row per employee-month; the reconciler replaces it whole.
	CREATE TABLE IF NOT EXISTS month_records (
		employee_id  TEXT NOT NULL,
		month_key    TEXT NOT NULL,
		records_json TEXT NOT NULL,
		updated_at   TEXT NOT NULL,
		PRIMARY KEY (employee_id, month_key)
	);

	CREATE TABLE IF NOT EXISTS approvals (
		id               TEXT PRIMARY KEY,
		requester_id     TEXT NOT NULL,
		team_approver_id TEXT NOT NULL,
		hr_approver_id   TEXT NOT NULL,
		team_status      TEXT NOT NULL,
		hr_status        TEXT NOT NULL,
		rejection_reason TEXT,
		tracking_id      TEXT NOT NULL,
		submitted_at     TEXT NOT NULL,
		team_decided_at  TEXT,
		hr_decided_at    TEXT,
		is_read          INTEGER NOT NULL DEFAULT 0,
		payload_json     TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_approvals_submitted_at
		ON approvals(submitted_at);
	CREATE INDEX IF NOT EXISTS idx_approvals_hr_status
		ON approvals(hr_status);

	CREATE TABLE IF NOT EXISTS tracking_mappings (
		tracking_id         TEXT PRIMARY KEY,
		target_tracking_id  TEXT,
		changed_fields_json TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// MONTH RECORDS
// =============================================================================

func (s *Store) GetMonth(ctx context.Context, employee engine.EmployeeID, key engine.MonthKey) (engine.MonthRecords, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT records_json FROM month_records WHERE employee_id = ? AND month_key = ?`,
		string(employee), string(key)).Scan(&blob)
	if err == sql.ErrNoRows {
		return engine.MonthRecords{}, nil
	}
	if err != nil {
		return engine.MonthRecords{}, fmt.Errorf("failed to load month %s/%s: %w", employee, key, err)
	}

	var records engine.MonthRecords
	if err := json.Unmarshal([]byte(blob), &records); err != nil {
		return engine.MonthRecords{}, fmt.Errorf("corrupt month %s/%s: %w", employee, key, err)
	}
	return records, nil
}

func (s *Store) PutMonth(ctx context.Context, employee engine.EmployeeID, key engine.MonthKey, records engine.MonthRecords) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode month %s/%s: %w", employee, key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO month_records (employee_id, month_key, records_json, updated_at)
		 VALUES (?, ?, ?, ?)`,
		string(employee), string(key), string(blob), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to store month %s/%s: %w", employee, key, err)
	}
	return nil
}

// =============================================================================
// APPROVALS
// =============================================================================

func (s *Store) GetApproval(ctx context.Context, id engine.ApprovalID) (engine.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, requester_id, team_approver_id, hr_approver_id, team_status, hr_status,
		        rejection_reason, tracking_id, submitted_at, team_decided_at, hr_decided_at,
		        is_read, payload_json
		 FROM approvals WHERE id = ?`, string(id))

	req, err := scanApproval(row)
	if err == sql.ErrNoRows {
		return engine.ApprovalRequest{}, engine.ErrApprovalNotFound
	}
	if err != nil {
		return engine.ApprovalRequest{}, fmt.Errorf("failed to load approval %s: %w", id, err)
	}
	return req, nil
}

func (s *Store) PutApproval(ctx context.Context, req engine.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode approval %s: %w", req.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO approvals
		 (id, requester_id, team_approver_id, hr_approver_id, team_status, hr_status,
		  rejection_reason, tracking_id, submitted_at, team_decided_at, hr_decided_at,
		  is_read, payload_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(req.ID), string(req.RequesterID), string(req.TeamApproverID), string(req.HRApproverID),
		string(req.TeamStatus), string(req.HRStatus),
		nullableString(req.RejectionReason), string(req.TrackingID),
		req.SubmittedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(req.TeamDecidedAt), nullableTime(req.HRDecidedAt),
		boolToInt(req.IsRead), string(payload))
	if err != nil {
		return fmt.Errorf("failed to store approval %s: %w", req.ID, err)
	}
	return nil
}

func (s *Store) ListApprovals(ctx context.Context) ([]engine.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, requester_id, team_approver_id, hr_approver_id, team_status, hr_status,
		        rejection_reason, tracking_id, submitted_at, team_decided_at, hr_decided_at,
		        is_read, payload_json
		 FROM approvals ORDER BY submitted_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()

	var result []engine.ApprovalRequest
	for rows.Next() {
		req, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApproval(row rowScanner) (engine.ApprovalRequest, error) {
	var req engine.ApprovalRequest
	var id, requester, teamApprover, hrApprover, teamStatus, hrStatus, trackingID string
	var rejection sql.NullString
	var submittedAt string
	var teamDecidedAt, hrDecidedAt sql.NullString
	var isRead int
	var payload string

	err := row.Scan(&id, &requester, &teamApprover, &hrApprover, &teamStatus, &hrStatus,
		&rejection, &trackingID, &submittedAt, &teamDecidedAt, &hrDecidedAt, &isRead, &payload)
	if err != nil {
		return engine.ApprovalRequest{}, err
	}

	req.ID = engine.ApprovalID(id)
	req.RequesterID = engine.EmployeeID(requester)
	req.TeamApproverID = engine.EmployeeID(teamApprover)
	req.HRApproverID = engine.EmployeeID(hrApprover)
	req.TeamStatus = engine.TeamStatus(teamStatus)
	req.HRStatus = engine.HRStatus(hrStatus)
	req.RejectionReason = rejection.String
	req.TrackingID = engine.TrackingID(trackingID)
	req.IsRead = isRead != 0

	if req.SubmittedAt, err = time.Parse(time.RFC3339Nano, submittedAt); err != nil {
		return engine.ApprovalRequest{}, err
	}
	if req.TeamDecidedAt, err = parseNullableTime(teamDecidedAt); err != nil {
		return engine.ApprovalRequest{}, err
	}
	if req.HRDecidedAt, err = parseNullableTime(hrDecidedAt); err != nil {
		return engine.ApprovalRequest{}, err
	}
	if err := json.Unmarshal([]byte(payload), &req.Payload); err != nil {
		return engine.ApprovalRequest{}, err
	}
	return req, nil
}

// =============================================================================
// TRACKING MAPPINGS
// =============================================================================

func (s *Store) GetTrackingMapping(ctx context.Context, id engine.TrackingID) (engine.ChangeTrackingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var target sql.NullString
	var fieldsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT target_tracking_id, changed_fields_json FROM tracking_mappings WHERE tracking_id = ?`,
		string(id)).Scan(&target, &fieldsJSON)
	if err == sql.ErrNoRows {
		return engine.ChangeTrackingEntry{}, engine.ErrMappingNotFound
	}
	if err != nil {
		return engine.ChangeTrackingEntry{}, fmt.Errorf("failed to load mapping %s: %w", id, err)
	}

	entry := engine.ChangeTrackingEntry{
		TrackingID:       id,
		TargetTrackingID: engine.TrackingID(target.String),
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &entry.ChangedFields); err != nil {
		return engine.ChangeTrackingEntry{}, fmt.Errorf("corrupt mapping %s: %w", id, err)
	}
	return entry, nil
}

func (s *Store) PutTrackingMapping(ctx context.Context, entry engine.ChangeTrackingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := entry.ChangedFields
	if fields == nil {
		fields = []string{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode mapping %s: %w", entry.TrackingID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO tracking_mappings (tracking_id, target_tracking_id, changed_fields_json)
		 VALUES (?, ?, ?)`,
		string(entry.TrackingID), nullableString(string(entry.TargetTrackingID)), string(fieldsJSON))
	if err != nil {
		return fmt.Errorf("failed to store mapping %s: %w", entry.TrackingID, err)
	}
	return nil
}

func (s *Store) MaxTrackingSequence(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT tracking_id FROM tracking_mappings`)
	if err != nil {
		return 0, fmt.Errorf("failed to scan tracking ids: %w", err)
	}
	defer rows.Close()

	var max uint64
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to scan tracking id: %w", err)
		}
		if seq, ok := engine.TrackingSequence(engine.TrackingID(id)); ok && seq > max {
			max = seq
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan tracking ids: %w", err)
	}
	return max, nil
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ engine.Store = (*Store)(nil)
