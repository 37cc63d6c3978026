// Package store provides engine.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/evaluation-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	months    map[monthKey]engine.MonthRecords
	approvals map[engine.ApprovalID]engine.ApprovalRequest
	mappings  map[engine.TrackingID]engine.ChangeTrackingEntry
}

type monthKey struct {
	Employee engine.EmployeeID
	Month    engine.MonthKey
}

func NewMemory() *Memory {
	return &Memory{
		months:    make(map[monthKey]engine.MonthRecords),
		approvals: make(map[engine.ApprovalID]engine.ApprovalRequest),
		mappings:  make(map[engine.TrackingID]engine.ChangeTrackingEntry),
	}
}

func (m *Memory) GetMonth(_ context.Context, employee engine.EmployeeID, key engine.MonthKey) (engine.MonthRecords, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Clone so callers can't mutate stored state in place.
	return m.months[monthKey{Employee: employee, Month: key}].Clone(), nil
}

func (m *Memory) PutMonth(_ context.Context, employee engine.EmployeeID, key engine.MonthKey, records engine.MonthRecords) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.months[monthKey{Employee: employee, Month: key}] = records.Clone()
	return nil
}

func (m *Memory) GetApproval(_ context.Context, id engine.ApprovalID) (engine.ApprovalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.approvals[id]
	if !ok {
		return engine.ApprovalRequest{}, engine.ErrApprovalNotFound
	}
	return req, nil
}

func (m *Memory) PutApproval(_ context.Context, req engine.ApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approvals[req.ID] = req
	return nil
}

func (m *Memory) ListApprovals(_ context.Context) ([]engine.ApprovalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]engine.ApprovalRequest, 0, len(m.approvals))
	for _, req := range m.approvals {
		result = append(result, req)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].SubmittedAt.Equal(result[j].SubmittedAt) {
			return result[i].SubmittedAt.After(result[j].SubmittedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) GetTrackingMapping(_ context.Context, id engine.TrackingID) (engine.ChangeTrackingEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.mappings[id]
	if !ok {
		return engine.ChangeTrackingEntry{}, engine.ErrMappingNotFound
	}
	return entry, nil
}

func (m *Memory) PutTrackingMapping(_ context.Context, entry engine.ChangeTrackingEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings[entry.TrackingID] = entry
	return nil
}

func (m *Memory) MaxTrackingSequence(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var max uint64
	for id := range m.mappings {
		if seq, ok := engine.TrackingSequence(id); ok && seq > max {
			max = seq
		}
	}
	return max, nil
}

var _ engine.Store = (*Memory)(nil)
