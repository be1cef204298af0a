/*
store.go - Persistence interface for the approval ledger

PURPOSE:
  Defines the boundary between the ledger and the database. Domain packages
  embed LedgerStore in their own store interfaces so a single transaction can
  cover both the record update and the ledger append.

APPEND-ONLY CONTRACT:
  - AppendEntry(): the only write
  - NO Update() or Delete() methods exist

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite
*/
package generic

import "context"

// LedgerStore persists ledger entries.
// IMPORTANT: LedgerStore is APPEND-ONLY. No Update, No Delete. Ever.
type LedgerStore interface {
	// AppendEntry persists the entry and sets entry.Seq.
	AppendEntry(ctx context.Context, entry *LedgerEntry) error

	// LoadEntries returns all entries for a subject ordered by At, then Seq.
	LoadEntries(ctx context.Context, subjectID string) ([]LedgerEntry, error)
}
