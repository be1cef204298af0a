// Package store provides LedgerStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory ledger (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	entries map[string][]generic.LedgerEntry
	seq     int64
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]generic.LedgerEntry)}
}

// AppendEntry adds a single entry. Append-only.
func (m *Memory) AppendEntry(_ context.Context, entry *generic.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.AppendEntryLocked(entry)
}

func (m *Memory) LoadEntries(_ context.Context, subjectID string) ([]generic.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LoadEntriesLocked(subjectID), nil
}

// =============================================================================
// LOCKED ACCESS - For stores that embed Memory behind their own mutex
// =============================================================================

// AppendEntryLocked appends without taking m.mu. The caller serializes access.
func (m *Memory) AppendEntryLocked(entry *generic.LedgerEntry) error {
	m.seq++
	entry.Seq = m.seq

	stored := *entry
	stored.Metadata = cloneMetadata(entry.Metadata)

	list := m.entries[entry.SubjectID]

	// Binary search for insertion point so the list stays ordered by (At, Seq)
	i := sort.Search(len(list), func(i int) bool {
		return list[i].At.After(stored.At)
	})
	list = append(list, generic.LedgerEntry{})
	copy(list[i+1:], list[i:])
	list[i] = stored
	m.entries[entry.SubjectID] = list
	return nil
}

// LoadEntriesLocked returns a copy of the subject's entries without taking m.mu.
func (m *Memory) LoadEntriesLocked(subjectID string) []generic.LedgerEntry {
	list := m.entries[subjectID]
	result := make([]generic.LedgerEntry, len(list))
	for i, e := range list {
		result[i] = e
		result[i].Metadata = cloneMetadata(e.Metadata)
	}
	return result
}

// =============================================================================
// SNAPSHOT / RESTORE - Rollback support for transactional wrappers
// =============================================================================

type Snapshot struct {
	entries map[string][]generic.LedgerEntry
	seq     int64
}

func (m *Memory) Snapshot() Snapshot {
	cp := make(map[string][]generic.LedgerEntry, len(m.entries))
	for k, v := range m.entries {
		cp[k] = append([]generic.LedgerEntry{}, v...)
	}
	return Snapshot{entries: cp, seq: m.seq}
}

func (m *Memory) Restore(s Snapshot) {
	m.entries = s.entries
	m.seq = s.seq
}

func cloneMetadata(md map[string]string) map[string]string {
	if md == nil {
		return nil
	}
	cp := make(map[string]string, len(md))
	for k, v := range md {
		cp[k] = v
	}
	return cp
}
