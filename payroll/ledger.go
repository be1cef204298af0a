package payroll

import (
	"context"
	"time"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// APPROVAL LEDGER - Run-level view of the generic ledger
// =============================================================================

// LedgerEntry is one recorded run transition.
type LedgerEntry struct {
	Seq       int64
	RunID     RunID
	ActorID   string
	ActorRole generic.Role
	Action    Action
	From      RunStatus
	To        RunStatus
	Reason    string
	At        time.Time
}

func fromGeneric(e generic.LedgerEntry) LedgerEntry {
	return LedgerEntry{
		Seq:       e.Seq,
		RunID:     RunID(e.SubjectID),
		ActorID:   e.ActorID,
		ActorRole: e.ActorRole,
		Action:    Action(e.Action),
		From:      RunStatus(e.FromStatus),
		To:        RunStatus(e.ToStatus),
		Reason:    e.Reason,
		At:        e.At,
	}
}

func (e LedgerEntry) toGeneric() generic.LedgerEntry {
	return generic.LedgerEntry{
		Seq:        e.Seq,
		SubjectID:  string(e.RunID),
		ActorID:    e.ActorID,
		ActorRole:  e.ActorRole,
		Action:     string(e.Action),
		FromStatus: string(e.From),
		ToStatus:   string(e.To),
		Reason:     e.Reason,
		At:         e.At,
	}
}

// ApprovalLedger records and reads run transitions.
type ApprovalLedger struct {
	ledger generic.Ledger
}

func NewApprovalLedger(store generic.LedgerStore) *ApprovalLedger {
	return &ApprovalLedger{ledger: generic.NewLedger(store)}
}

// Append records entry and fills in its sequence number.
func (l *ApprovalLedger) Append(ctx context.Context, entry *LedgerEntry) error {
	g := entry.toGeneric()
	if err := l.ledger.Append(ctx, &g); err != nil {
		return err
	}
	entry.Seq = g.Seq
	return nil
}

// History returns the run's entries, oldest first.
func (l *ApprovalLedger) History(ctx context.Context, runID RunID) ([]LedgerEntry, error) {
	entries, err := l.ledger.History(ctx, string(runID))
	if err != nil {
		return nil, err
	}
	out := make([]LedgerEntry, len(entries))
	for i, e := range entries {
		out[i] = fromGeneric(e)
	}
	return out, nil
}

// =============================================================================
// REPLAY - The run's actor fields as a fold over its ledger
// =============================================================================

// ApplyEntry is the single step function from one run state to the next.
// Live transitions and Replay both go through it, so the cached fields on a
// run always equal a replay of its ledger.
func ApplyEntry(s RunState, e LedgerEntry) RunState {
	stamp := Stamp{By: e.ActorID, At: e.At}
	s.Status = e.To

	switch e.Action {
	case ActionCreate:
		s = RunState{Status: e.To, CreatedBy: stamp}
	case ActionReview:
		s.ReviewedBy = stamp
	case ActionPublish:
		s.PublishedBy = stamp
	case ActionManagerApprove:
		s.ApprovedByManager = stamp
	case ActionFinanceApprove:
		s.ApprovedByFinance = stamp
	case ActionManagerReject, ActionFinanceReject:
		// A rejection resets the approval chain; the next pass starts over.
		s.ReviewedBy = Stamp{}
		s.PublishedBy = Stamp{}
		s.ApprovedByManager = Stamp{}
		s.ApprovedByFinance = Stamp{}
		s.RejectedBy = stamp
		s.RejectionReason = e.Reason
	case ActionLock:
		s.LockedBy = stamp
	case ActionUnlock:
		s.LockedBy = Stamp{}
		s.UnlockedBy = stamp
		s.UnlockReason = e.Reason
	case ActionResubmit:
		// Status only; the rejection that caused it stays visible.
	}
	return s
}

// Replay folds entries (oldest first) into a run state.
func Replay(entries []LedgerEntry) RunState {
	var s RunState
	for _, e := range entries {
		s = ApplyEntry(s, e)
	}
	return s
}

// Equal compares two states field by field, using time.Time.Equal for the
// stamps so a round trip through storage does not count as a difference.
func (s RunState) Equal(o RunState) bool {
	stamps := [][2]Stamp{
		{s.CreatedBy, o.CreatedBy},
		{s.ReviewedBy, o.ReviewedBy},
		{s.PublishedBy, o.PublishedBy},
		{s.ApprovedByManager, o.ApprovedByManager},
		{s.ApprovedByFinance, o.ApprovedByFinance},
		{s.LockedBy, o.LockedBy},
		{s.RejectedBy, o.RejectedBy},
		{s.UnlockedBy, o.UnlockedBy},
	}
	for _, p := range stamps {
		if p[0].By != p[1].By || !p[0].At.Equal(p[1].At) {
			return false
		}
	}
	return s.Status == o.Status &&
		s.RejectionReason == o.RejectionReason &&
		s.UnlockReason == o.UnlockReason
}
