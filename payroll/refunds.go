package payroll

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// REFUNDS - Amounts owed back to an employee, settled through a run
// =============================================================================

type CreateRefundInput struct {
	EmployeeID  EmployeeID
	Amount      generic.Money
	Description string
	Actor       generic.Actor
}

func (s *Service) CreateRefund(ctx context.Context, in CreateRefundInput) (*Refund, error) {
	if err := s.authorize(OpCreateRefund, in.Actor); err != nil {
		return nil, err
	}
	if in.EmployeeID == "" {
		return nil, generic.Required("employee_id")
	}
	if !in.Amount.IsPositive() {
		return nil, &generic.ValidationError{Field: "amount", Code: "not_positive", Message: "must be greater than zero"}
	}

	r := Refund{
		ID:          RefundID(s.NewID()),
		EmployeeID:  in.EmployeeID,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Status:      RefundPending,
		CreatedBy:   in.Actor.ID,
		CreatedAt:   s.now(),
	}
	if err := s.Store.SaveRefund(ctx, r); err != nil {
		return nil, err
	}
	s.Logger.Info("refund created",
		zap.String("refund_id", string(r.ID)),
		zap.String("employee_id", string(r.EmployeeID)),
		zap.Stringer("amount", r.Amount),
	)
	return &r, nil
}

// MarkRefundPaid settles a PENDING refund in the given run.
func (s *Service) MarkRefundPaid(ctx context.Context, id RefundID, runID RunID, actor generic.Actor) (*Refund, error) {
	if err := s.authorize(OpMarkRefundPaid, actor); err != nil {
		return nil, err
	}
	if runID == "" {
		return nil, generic.Required("payroll_run_id")
	}

	unlock := s.lockRun(runID)
	defer unlock()

	var paid Refund
	err := s.Store.WithTx(ctx, func(tx Store) error {
		r, err := tx.GetRefund(ctx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return refundNotFound(id)
		}
		if r.Status != RefundPending {
			return &generic.InvalidTransitionError{Subject: "refund " + string(id), Current: string(r.Status), Action: "mark paid"}
		}
		if _, err := getRun(ctx, tx, runID); err != nil {
			return err
		}

		now := s.now()
		paid = *r
		paid.Status = RefundPaid
		paid.PaidInRun = runID
		paid.PaidAt = &now
		return tx.SaveRefund(ctx, paid)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("refund paid",
		zap.String("refund_id", string(id)),
		zap.String("run_id", string(runID)),
		zap.String("actor", actor.ID),
	)
	return &paid, nil
}

func (s *Service) GetRefund(ctx context.Context, id RefundID) (*Refund, error) {
	r, err := s.Store.GetRefund(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, refundNotFound(id)
	}
	return r, nil
}

func (s *Service) ListRefunds(ctx context.Context, employeeID EmployeeID) ([]Refund, error) {
	return s.Store.ListRefunds(ctx, employeeID)
}
