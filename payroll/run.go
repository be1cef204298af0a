/*
run.go - Payroll run lifecycle

PURPOSE:
  Creates runs and moves them through the approval chain. Every move goes
  through Transition, which applies the same steps in the same order:

    1. capability check       wrong role          → AuthorizationError
    2. load run               unknown id          → NotFoundError
    3. version check          stale IfVersion     → ConcurrencyError
    4. workflow table         illegal from status → InvalidTransitionError
    5. reason                 missing on reject   → ValidationError
    6. precondition           lines / exceptions  → ValidationError / ExceptionBlockedError
    7. ledger append + ApplyEntry + UpdateRun, in one transaction

  Nothing is written unless every step passes.

EXAMPLE:
  run, _ := svc.CreateRun(ctx, CreateRunInput{Entity: "acme", Period: march, Actor: specialist})
  run, _ = svc.Review(ctx, run.ID, specialist)
  run, err := svc.Publish(ctx, run.ID, specialist)
  var blocked *ExceptionBlockedError
  if errors.As(err, &blocked) { ... fix blocked.Issues() and retry ... }
*/
package payroll

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// CREATE
// =============================================================================

type CreateRunInput struct {
	Entity string
	Period generic.PayPeriod
	Roster []EmployeeID
	Actor  generic.Actor
}

// CreateRun opens a DRAFT run. At most one run may exist per entity and period.
func (s *Service) CreateRun(ctx context.Context, in CreateRunInput) (*PayrollRun, error) {
	if err := s.authorize(OpCreateRun, in.Actor); err != nil {
		return nil, err
	}
	entity := strings.TrimSpace(in.Entity)
	if entity == "" {
		return nil, generic.Required("entity")
	}
	if in.Period.IsZero() {
		return nil, generic.Required("period")
	}

	unlock := s.Locks.Lock("period:" + entity + "|" + in.Period.Key())
	defer unlock()

	now := s.now()
	run := PayrollRun{
		ID:        RunID(s.NewID()),
		Entity:    entity,
		Period:    in.Period,
		Roster:    dedupeEmployees(in.Roster),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	entry := LedgerEntry{
		RunID:     run.ID,
		ActorID:   in.Actor.ID,
		ActorRole: in.Actor.Role,
		Action:    ActionCreate,
		To:        StatusDraft,
		At:        now,
	}
	run.RunState = ApplyEntry(RunState{}, entry)

	err := s.Store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.FindRun(ctx, entity, in.Period)
		if err != nil {
			return err
		}
		if existing != nil {
			return duplicateRun(entity, in.Period)
		}
		if err := tx.CreateRun(ctx, run); err != nil {
			if errors.Is(err, ErrDuplicateRun) {
				return duplicateRun(entity, in.Period)
			}
			return err
		}
		return NewApprovalLedger(tx).Append(ctx, &entry)
	})
	if err != nil {
		s.logFailure("payroll run not created", err, zap.String("entity", entity), zap.String("period", in.Period.Label()))
		return nil, err
	}

	s.Logger.Info("payroll run created",
		zap.String("run_id", string(run.ID)),
		zap.String("entity", run.Entity),
		zap.String("period", run.Period.Label()),
		zap.String("actor", in.Actor.ID),
	)
	return &run, nil
}

func duplicateRun(entity string, period generic.PayPeriod) error {
	return &generic.ValidationError{
		Field:   "period",
		Code:    "duplicate",
		Message: "a run already exists for " + entity + " " + period.Label(),
	}
}

func dedupeEmployees(ids []EmployeeID) []EmployeeID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[EmployeeID]bool, len(ids))
	out := make([]EmployeeID, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// TransitionInput describes one requested move of a run.
type TransitionInput struct {
	RunID  RunID
	Action Action
	Actor  generic.Actor
	Reason string

	// IfVersion, when non-zero, must equal the run's current version.
	IfVersion int64
}

func (s *Service) Review(ctx context.Context, id RunID, actor generic.Actor) (*PayrollRun, error) {
	return s.Transition(ctx, TransitionInput{RunID: id, Action: ActionReview, Actor: actor})
}

func (s *Service) Publish(ctx context.Context, id RunID, actor generic.Actor) (*PayrollRun, error) {
	return s.Transition(ctx, TransitionInput{RunID: id, Action: ActionPublish, Actor: actor})
}

func (s *Service) ManagerApprove(ctx context.Context, id RunID, actor generic.Actor) (*PayrollRun, error) {
	return s.Transition(ctx, TransitionInput{RunID: id, Action: ActionManagerApprove, Actor: actor})
}

func (s *Service) ManagerReject(ctx context.Context, id RunID, actor generic.Actor, reason string) (*PayrollRun, error) {
	return s.Transition(ctx, TransitionInput{RunID: id, Action: ActionManagerReject, Actor: actor, Reason: reason})
}

func (s *Service) FinanceApprove(ctx context.Context, id RunID, actor generic.Actor) (*PayrollRun, error) {
	return s.Transition(ctx, TransitionInput{RunID: id, Action: ActionFinanceApprove, Actor: actor})
}

func (s *Service) FinanceReject(ctx context.Context, id RunID, actor generic.Actor, reason string) (*PayrollRun, error) {
	return s.Transition(ctx, TransitionInput{RunID: id, Action: ActionFinanceReject, Actor: actor, Reason: reason})
}

func (s *Service) Lock(ctx context.Context, id RunID, actor generic.Actor) (*PayrollRun, error) {
	return s.Transition(ctx, TransitionInput{RunID: id, Action: ActionLock, Actor: actor})
}

func (s *Service) Unlock(ctx context.Context, id RunID, actor generic.Actor, reason string) (*PayrollRun, error) {
	return s.Transition(ctx, TransitionInput{RunID: id, Action: ActionUnlock, Actor: actor, Reason: reason})
}

// Resubmit returns a rejected run to DRAFT so its lines can be corrected.
func (s *Service) Resubmit(ctx context.Context, id RunID, actor generic.Actor) (*PayrollRun, error) {
	return s.Transition(ctx, TransitionInput{RunID: id, Action: ActionResubmit, Actor: actor})
}

// Transition applies one action to a run.
func (s *Service) Transition(ctx context.Context, in TransitionInput) (*PayrollRun, error) {
	op, ok := actionOperations[in.Action]
	if !ok || in.Action == ActionCreate {
		return nil, &generic.ValidationError{Field: "action", Code: "unknown", Message: "unknown action " + string(in.Action)}
	}
	if err := s.authorize(op, in.Actor); err != nil {
		return nil, err
	}

	unlock := s.lockRun(in.RunID)
	defer unlock()

	var updated PayrollRun
	var entry LedgerEntry
	err := s.Store.WithTx(ctx, func(tx Store) error {
		run, err := getRun(ctx, tx, in.RunID)
		if err != nil {
			return err
		}
		if in.IfVersion != 0 && in.IfVersion != run.Version {
			return &generic.ConcurrencyError{Kind: "run", ID: string(run.ID), ExpectedVersion: in.IfVersion}
		}

		next, err := RunWorkflow.Next(run.Status, in.Action)
		if err != nil {
			var ite *generic.InvalidTransitionError
			if errors.As(err, &ite) {
				ite.Subject = "run " + string(run.ID)
			}
			return err
		}

		reason := strings.TrimSpace(in.Reason)
		if in.Action.RequiresReason() && reason == "" {
			return generic.Required("reason")
		}
		if err := s.checkPrecondition(ctx, tx, run, in.Action); err != nil {
			return err
		}

		entry = LedgerEntry{
			RunID:     run.ID,
			ActorID:   in.Actor.ID,
			ActorRole: in.Actor.Role,
			Action:    in.Action,
			From:      run.Status,
			To:        next,
			Reason:    reason,
			At:        s.now(),
		}
		if err := NewApprovalLedger(tx).Append(ctx, &entry); err != nil {
			return err
		}

		updated = *run
		updated.RunState = ApplyEntry(run.RunState, entry)
		updated.Version = run.Version + 1
		updated.UpdatedAt = entry.At
		return tx.UpdateRun(ctx, updated, run.Version)
	})
	if err != nil {
		s.logFailure("payroll run transition refused", err,
			zap.String("run_id", string(in.RunID)),
			zap.String("action", string(in.Action)),
			zap.String("actor", in.Actor.ID),
		)
		return nil, err
	}

	s.Logger.Info("payroll run transition",
		zap.String("run_id", string(updated.ID)),
		zap.String("action", string(entry.Action)),
		zap.String("from", string(entry.From)),
		zap.String("to", string(entry.To)),
		zap.String("actor", entry.ActorID),
		zap.Int64("version", updated.Version),
	)
	return &updated, nil
}

// checkPrecondition enforces the per-action rules beyond role and status.
func (s *Service) checkPrecondition(ctx context.Context, tx Store, run *PayrollRun, action Action) error {
	switch action {
	case ActionReview:
		lines, err := tx.ListPayLines(ctx, run.ID)
		if err != nil {
			return err
		}
		return checkRosterComplete(run, lines)
	case ActionPublish:
		lines, err := tx.ListPayLines(ctx, run.ID)
		if err != nil {
			return err
		}
		report := s.Engine.Scan(run.Entity, lines)
		if report.Blocking() {
			return &ExceptionBlockedError{RunID: run.ID, Report: report}
		}
	}
	return nil
}

// checkRosterComplete requires a pay line for every rostered employee, or at
// least one line when the run has no roster.
func checkRosterComplete(run *PayrollRun, lines []PayLine) error {
	if len(run.Roster) == 0 {
		if len(lines) == 0 {
			return &generic.ValidationError{Field: "pay_lines", Code: "incomplete", Message: "run has no pay lines"}
		}
		return nil
	}
	have := make(map[EmployeeID]bool, len(lines))
	for _, l := range lines {
		have[l.EmployeeID] = true
	}
	var missing []string
	for _, id := range run.Roster {
		if !have[id] {
			missing = append(missing, string(id))
		}
	}
	if len(missing) > 0 {
		return &generic.ValidationError{
			Field:   "pay_lines",
			Code:    "incomplete",
			Message: "missing pay lines for " + strings.Join(missing, ", "),
		}
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) GetRun(ctx context.Context, id RunID) (*PayrollRun, error) {
	return getRun(ctx, s.Store, id)
}

func (s *Service) ListRuns(ctx context.Context, filter RunFilter) ([]PayrollRun, error) {
	return s.Store.ListRuns(ctx, filter)
}

// GetExceptions scans the run's current pay lines.
func (s *Service) GetExceptions(ctx context.Context, id RunID) (ExceptionReport, error) {
	run, err := getRun(ctx, s.Store, id)
	if err != nil {
		return ExceptionReport{}, err
	}
	lines, err := s.Store.ListPayLines(ctx, id)
	if err != nil {
		return ExceptionReport{}, err
	}
	return s.Engine.Scan(run.Entity, lines), nil
}

// History returns the run's ledger, oldest first.
func (s *Service) History(ctx context.Context, id RunID) ([]LedgerEntry, error) {
	if _, err := getRun(ctx, s.Store, id); err != nil {
		return nil, err
	}
	return NewApprovalLedger(s.Store).History(ctx, id)
}

// ReplayRun rebuilds the run's state from its ledger alone.
func (s *Service) ReplayRun(ctx context.Context, id RunID) (RunState, error) {
	entries, err := s.History(ctx, id)
	if err != nil {
		return RunState{}, err
	}
	return Replay(entries), nil
}
