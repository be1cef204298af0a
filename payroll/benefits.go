/*
benefits.go - Ancillary benefit processing

PURPOSE:
  Signing bonuses and termination/resignation benefits are one-off payouts
  that bypass the regular salary computation. Each has its own small review
  workflow and is posted to a run's pay line only once it is approved.

LIFECYCLE:
  PENDING ──approve──▶ APPROVED ──process(run)──▶ posted to pay line
     │
     └────reject─────▶ REJECTED (reason required)

POSTING RULES:
  - the benefit must be APPROVED              → ValidationError
  - the target run must not be LOCKED         → InvalidTransitionError
  - (employee, benefit, run) posts only once  → ValidationError "already_applied"

  Posting adds the given amount to the line's bonus (signing bonus) or
  benefit (termination, resignation) column and moves net pay by the same
  amount. The run's own status is not changed.
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
// TEMPLATES
// =============================================================================

// SaveBenefitTemplate registers or replaces a template.
func (s *Service) SaveBenefitTemplate(ctx context.Context, t BenefitTemplate) error {
	if err := validateTemplate(t); err != nil {
		return err
	}
	return s.Store.SaveBenefitTemplate(ctx, t)
}

func validateTemplate(t BenefitTemplate) error {
	switch {
	case t.ID == "":
		return generic.Required("id")
	case t.Name == "":
		return generic.Required("name")
	case !t.Kind.Valid():
		return &generic.ValidationError{Field: "kind", Code: "invalid", Message: "unknown benefit kind " + string(t.Kind)}
	case t.DefaultAmount.IsNegative():
		return &generic.ValidationError{Field: "default_amount", Code: "negative", Message: "must not be negative"}
	}
	return nil
}

func (s *Service) ListBenefitTemplates(ctx context.Context) ([]BenefitTemplate, error) {
	return s.Store.ListBenefitTemplates(ctx)
}

// =============================================================================
// CREATE
// =============================================================================

type CreateBenefitInput struct {
	EmployeeID EmployeeID
	TemplateID string
	// Amount overrides the template default when set.
	Amount *generic.Money
	Actor  generic.Actor
}

// CreateBenefit opens a PENDING benefit from a template.
func (s *Service) CreateBenefit(ctx context.Context, in CreateBenefitInput) (*AncillaryBenefit, error) {
	if err := s.authorize(OpCreateBenefit, in.Actor); err != nil {
		return nil, err
	}
	if in.EmployeeID == "" {
		return nil, generic.Required("employee_id")
	}
	if in.TemplateID == "" {
		return nil, generic.Required("template_id")
	}

	tmpl, err := s.Store.GetBenefitTemplate(ctx, in.TemplateID)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, &generic.NotFoundError{Kind: "benefit_template", ID: in.TemplateID}
	}
	amount := tmpl.DefaultAmount
	if in.Amount != nil {
		amount = *in.Amount
	}
	if !amount.IsPositive() {
		return nil, &generic.ValidationError{Field: "amount", Code: "not_positive", Message: "must be greater than zero"}
	}

	b := AncillaryBenefit{
		ID:         BenefitID(s.NewID()),
		EmployeeID: in.EmployeeID,
		TemplateID: tmpl.ID,
		Kind:       tmpl.Kind,
		Amount:     amount,
		State:      ReviewPending,
		CreatedBy:  in.Actor.ID,
		CreatedAt:  s.now(),
	}
	if err := s.Store.SaveBenefit(ctx, b); err != nil {
		return nil, err
	}
	s.Logger.Info("benefit created",
		zap.String("benefit_id", string(b.ID)),
		zap.String("employee_id", string(b.EmployeeID)),
		zap.String("kind", string(b.Kind)),
		zap.Stringer("amount", b.Amount),
	)
	return &b, nil
}

// =============================================================================
// REVIEW
// =============================================================================

// ReviewBenefit approves or rejects a PENDING benefit. Rejection needs a reason.
func (s *Service) ReviewBenefit(ctx context.Context, id BenefitID, actor generic.Actor, action ReviewAction, reason string) (*AncillaryBenefit, error) {
	if err := s.authorize(OpReviewBenefit, actor); err != nil {
		return nil, err
	}
	if _, ok := ParseReviewAction(string(action)); !ok {
		return nil, &generic.ValidationError{Field: "action", Code: "invalid", Message: "action must be APPROVE or REJECT"}
	}

	unlock := s.Locks.Lock("benefit:" + string(id))
	defer unlock()

	var reviewed AncillaryBenefit
	err := s.Store.WithTx(ctx, func(tx Store) error {
		b, err := tx.GetBenefit(ctx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return benefitNotFound(id)
		}
		next, err := benefitWorkflow.Next(b.State, action)
		if err != nil {
			var ite *generic.InvalidTransitionError
			if errors.As(err, &ite) {
				ite.Subject = "benefit " + string(id)
			}
			return err
		}
		reason = strings.TrimSpace(reason)
		if action == ReviewReject && reason == "" {
			return generic.Required("reason")
		}

		now := s.now()
		reviewed = *b
		reviewed.State = next
		reviewed.ReviewedBy = actor.ID
		reviewed.ReviewedAt = &now
		if action == ReviewReject {
			reviewed.RejectionReason = reason
		}
		return tx.SaveBenefit(ctx, reviewed)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("benefit reviewed",
		zap.String("benefit_id", string(id)),
		zap.String("state", string(reviewed.State)),
		zap.String("actor", actor.ID),
	)
	return &reviewed, nil
}

// =============================================================================
// PROCESS - Post an approved benefit to a run
// =============================================================================

type ProcessBenefitInput struct {
	EmployeeID  EmployeeID
	BenefitID   BenefitID
	RunID       RunID
	GivenAmount generic.Money
	Actor       generic.Actor
}

// PostingResult is the line after posting plus the recorded application.
type PostingResult struct {
	Line        PayLine
	Application BenefitApplication
}

// ProcessApprovedBenefit is the only way a benefit amount reaches a pay line.
func (s *Service) ProcessApprovedBenefit(ctx context.Context, in ProcessBenefitInput) (*PostingResult, error) {
	if err := s.authorize(OpProcessBenefit, in.Actor); err != nil {
		return nil, err
	}
	switch {
	case in.EmployeeID == "":
		return nil, generic.Required("employee_id")
	case in.BenefitID == "":
		return nil, generic.Required("benefit_id")
	case in.RunID == "":
		return nil, generic.Required("run_id")
	case !in.GivenAmount.IsPositive():
		return nil, &generic.ValidationError{Field: "given_amount", Code: "not_positive", Message: "must be greater than zero"}
	}

	unlock := s.lockRun(in.RunID)
	defer unlock()

	var result PostingResult
	err := s.Store.WithTx(ctx, func(tx Store) error {
		b, err := tx.GetBenefit(ctx, in.BenefitID)
		if err != nil {
			return err
		}
		if b == nil {
			return benefitNotFound(in.BenefitID)
		}
		if b.EmployeeID != in.EmployeeID {
			return &generic.ValidationError{Field: "employee_id", Code: "mismatch", Message: "benefit belongs to another employee"}
		}
		if b.State != ReviewApproved {
			return &generic.ValidationError{Field: "benefit_id", Code: "not_approved", Message: "benefit is " + string(b.State) + ", not APPROVED"}
		}

		run, err := getRun(ctx, tx, in.RunID)
		if err != nil {
			return err
		}
		if run.Status == StatusLocked {
			return &generic.InvalidTransitionError{Subject: "run " + string(run.ID), Current: string(run.Status), Action: "process benefit"}
		}

		applied, err := tx.HasApplication(ctx, in.EmployeeID, in.BenefitID, in.RunID)
		if err != nil {
			return err
		}
		if applied {
			return alreadyApplied()
		}

		line, err := tx.GetPayLine(ctx, in.RunID, in.EmployeeID)
		if err != nil {
			return err
		}
		if line == nil {
			return payLineNotFound(in.RunID, in.EmployeeID)
		}

		now := s.now()
		posted := postBenefit(*line, b.Kind.Field(), in.GivenAmount)
		posted.Exceptions = issueNotes(s.Engine.ScanLine(run.Entity, posted))
		posted.UpdatedAt = now

		app := BenefitApplication{
			EmployeeID: in.EmployeeID,
			BenefitID:  in.BenefitID,
			RunID:      in.RunID,
			Amount:     in.GivenAmount,
			Field:      b.Kind.Field(),
			AppliedBy:  in.Actor.ID,
			AppliedAt:  now,
		}
		if err := tx.RecordApplication(ctx, app); err != nil {
			if errors.Is(err, ErrAlreadyApplied) {
				return alreadyApplied()
			}
			return err
		}
		if err := tx.SavePayLine(ctx, posted); err != nil {
			return err
		}
		result = PostingResult{Line: posted, Application: app}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("benefit posted",
		zap.String("benefit_id", string(in.BenefitID)),
		zap.String("run_id", string(in.RunID)),
		zap.String("employee_id", string(in.EmployeeID)),
		zap.String("field", string(result.Application.Field)),
		zap.Stringer("amount", in.GivenAmount),
	)
	return &result, nil
}

// postBenefit adds amount to the column for field and to net pay.
func postBenefit(line PayLine, field PayField, amount generic.Money) PayLine {
	out := line.Clone()
	switch field {
	case FieldBonus:
		out.Bonus = out.Bonus.Add(amount)
	case FieldBenefit:
		out.Benefit = out.Benefit.Add(amount)
	}
	out.NetPay = out.NetPay.Add(amount)
	return out
}

func alreadyApplied() error {
	return &generic.ValidationError{Field: "benefit_id", Code: "already_applied", Message: "already applied"}
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) GetBenefit(ctx context.Context, id BenefitID) (*AncillaryBenefit, error) {
	b, err := s.Store.GetBenefit(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, benefitNotFound(id)
	}
	return b, nil
}

func (s *Service) ListBenefits(ctx context.Context, filter BenefitFilter) ([]AncillaryBenefit, error) {
	return s.Store.ListBenefits(ctx, filter)
}

// Applications lists the runs a benefit has been posted to.
func (s *Service) Applications(ctx context.Context, id BenefitID) ([]BenefitApplication, error) {
	if _, err := s.GetBenefit(ctx, id); err != nil {
		return nil, err
	}
	return s.Store.ListApplications(ctx, id)
}
