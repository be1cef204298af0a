/*
ledger.go - Append-only approval log

PURPOSE:
  The Ledger is the immutable record of who did what to which record, and
  when. Every successful workflow transition appends exactly one entry.
  Anything denormalized onto the record itself (reviewed by, approved by,
  locked by) is a cache that can always be rebuilt by replaying entries.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, entries cannot be modified
  3. ORDERED: History is returned by timestamp, ties broken by sequence
  4. ACCEPTING: A well-formed entry is only refused when storage fails

EXAMPLE FLOW:
  1. Specialist reviews run-7:   {action: REVIEW,  DRAFT → UNDER_REVIEW}
  2. Specialist publishes run-7: {action: PUBLISH, UNDER_REVIEW → PUBLISHED}
  3. Manager rejects run-7:      {action: MANAGER_REJECT, reason: "overtime missing"}

SEE ALSO:
  - store.go: LedgerStore persistence interface
  - payroll/ledger.go: Replay fold for payroll runs
*/
package generic

import (
	"context"
	"sort"
	"time"
)

// =============================================================================
// LEDGER ENTRY
// =============================================================================

type LedgerEntry struct {
	// Seq is assigned by the store on append and strictly increases.
	Seq int64

	SubjectID  string // the record the entry is about (e.g. a run id)
	ActorID    string
	ActorRole  Role
	Action     string
	FromStatus string
	ToStatus   string
	Reason     string
	At         time.Time
	Metadata   map[string]string
}

// Validate checks that the entry is well-formed.
func (e LedgerEntry) Validate() error {
	switch {
	case e.SubjectID == "":
		return Required("subject_id")
	case e.ActorID == "":
		return Required("actor_id")
	case e.Action == "":
		return Required("action")
	case e.At.IsZero():
		return Required("at")
	}
	return nil
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the audit trail of workflow transitions.
type Ledger interface {
	// Append adds an entry. This is the ONLY write operation.
	Append(ctx context.Context, entry *LedgerEntry) error

	// History returns every entry for a subject, oldest first.
	History(ctx context.Context, subjectID string) ([]LedgerEntry, error)
}

// DefaultLedger implements Ledger on a LedgerStore.
type DefaultLedger struct {
	Store LedgerStore
}

func NewLedger(store LedgerStore) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, entry *LedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	return l.Store.AppendEntry(ctx, entry)
}

func (l *DefaultLedger) History(ctx context.Context, subjectID string) ([]LedgerEntry, error) {
	entries, err := l.Store.LoadEntries(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	SortEntries(entries)
	return entries, nil
}

// SortEntries orders entries by timestamp ascending, then by sequence.
func SortEntries(entries []LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].At.Equal(entries[j].At) {
			return entries[i].At.Before(entries[j].At)
		}
		return entries[i].Seq < entries[j].Seq
	})
}
