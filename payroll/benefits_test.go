package payroll_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

func withTemplates(t *testing.T, svc *payroll.Service) {
	t.Helper()
	for _, tmpl := range payroll.DefaultBenefitTemplates() {
		require.NoError(t, svc.SaveBenefitTemplate(context.Background(), tmpl))
	}
}

func approvedBenefit(t *testing.T, svc *payroll.Service, employee payroll.EmployeeID, template string) *payroll.AncillaryBenefit {
	t.Helper()
	ctx := context.Background()
	b, err := svc.CreateBenefit(ctx, payroll.CreateBenefitInput{EmployeeID: employee, TemplateID: template, Actor: specialist})
	require.NoError(t, err)
	b, err = svc.ReviewBenefit(ctx, b.ID, manager, payroll.ReviewApprove, "")
	require.NoError(t, err)
	return b
}

// =============================================================================
// CREATE & REVIEW
// =============================================================================

func TestCreateBenefit_FromTemplate(t *testing.T) {
	svc := newService(t)
	withTemplates(t, svc)

	b, err := svc.CreateBenefit(context.Background(), payroll.CreateBenefitInput{EmployeeID: "e-1", TemplateID: "signing-bonus", Actor: specialist})
	require.NoError(t, err)
	assert.Equal(t, payroll.ReviewPending, b.State)
	assert.Equal(t, payroll.KindSigningBonus, b.Kind)
	assert.Equal(t, "2000.00", b.Amount.String())
}

func TestCreateBenefit_AmountOverride(t *testing.T) {
	svc := newService(t)
	withTemplates(t, svc)
	ctx := context.Background()

	amount := generic.NewMoney(3500)
	b, err := svc.CreateBenefit(ctx, payroll.CreateBenefitInput{EmployeeID: "e-1", TemplateID: "termination", Amount: &amount, Actor: specialist})
	require.NoError(t, err)
	assert.Equal(t, "3500.00", b.Amount.String())

	zero := generic.ZeroMoney
	_, err = svc.CreateBenefit(ctx, payroll.CreateBenefitInput{EmployeeID: "e-1", TemplateID: "termination", Amount: &zero, Actor: specialist})
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestCreateBenefit_UnknownTemplate(t *testing.T) {
	svc := newService(t)
	_, err := svc.CreateBenefit(context.Background(), payroll.CreateBenefitInput{EmployeeID: "e-1", TemplateID: "pension", Actor: specialist})
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestReviewBenefit_RejectRequiresReason(t *testing.T) {
	// GIVEN: A PENDING benefit
	// WHEN: It is rejected without a reason, then with one
	// THEN: The first fails, the second records the reason
	svc := newService(t)
	withTemplates(t, svc)
	ctx := context.Background()
	b, err := svc.CreateBenefit(ctx, payroll.CreateBenefitInput{EmployeeID: "e-1", TemplateID: "resignation", Actor: specialist})
	require.NoError(t, err)

	_, err = svc.ReviewBenefit(ctx, b.ID, manager, payroll.ReviewReject, "")
	assert.ErrorIs(t, err, generic.ErrValidation)

	b, err = svc.ReviewBenefit(ctx, b.ID, manager, payroll.ReviewReject, "notice period not served")
	require.NoError(t, err)
	assert.Equal(t, payroll.ReviewRejected, b.State)
	assert.Equal(t, "notice period not served", b.RejectionReason)
	assert.Equal(t, "omar", b.ReviewedBy)
}

func TestReviewBenefit_OnlyFromPending(t *testing.T) {
	svc := newService(t)
	withTemplates(t, svc)
	b := approvedBenefit(t, svc, "e-1", "signing-bonus")

	_, err := svc.ReviewBenefit(context.Background(), b.ID, manager, payroll.ReviewReject, "changed mind")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
}

func TestReviewBenefit_RoleAndAction(t *testing.T) {
	svc := newService(t)
	withTemplates(t, svc)
	ctx := context.Background()
	b, err := svc.CreateBenefit(ctx, payroll.CreateBenefitInput{EmployeeID: "e-1", TemplateID: "signing-bonus", Actor: specialist})
	require.NoError(t, err)

	_, err = svc.ReviewBenefit(ctx, b.ID, finance, payroll.ReviewApprove, "")
	assert.ErrorIs(t, err, generic.ErrUnauthorized)

	_, err = svc.ReviewBenefit(ctx, b.ID, manager, "MAYBE", "")
	assert.ErrorIs(t, err, generic.ErrValidation)
}

// =============================================================================
// PROCESS
// =============================================================================

func TestProcessApprovedBenefit_PostsOnce(t *testing.T) {
	// GIVEN: An approved signing bonus and a DRAFT run with e-1's line
	// WHEN: It is processed twice for the same run
	// THEN: The first adds the amount to bonus and net pay; the second fails
	//       with "already applied" and the line is unchanged
	svc := newService(t)
	withTemplates(t, svc)
	ctx := context.Background()
	run := createRun(t, svc)
	_, err := svc.UpsertPayLines(ctx, run.ID, specialist, []payroll.PayLineInput{readyLine("e-1", 6000)})
	require.NoError(t, err)
	b := approvedBenefit(t, svc, "e-1", "signing-bonus")

	in := payroll.ProcessBenefitInput{EmployeeID: "e-1", BenefitID: b.ID, RunID: run.ID, GivenAmount: generic.NewMoney(2000), Actor: specialist}
	result, err := svc.ProcessApprovedBenefit(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "2000.00", result.Line.Bonus.String())
	assert.Equal(t, "8000.00", result.Line.NetPay.String())
	assert.Equal(t, payroll.FieldBonus, result.Application.Field)

	_, err = svc.ProcessApprovedBenefit(ctx, in)
	var ve *generic.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "already_applied", ve.Code)
	assert.Equal(t, "benefit_id: already applied", err.Error())

	line, err := svc.GetPayLine(ctx, run.ID, "e-1")
	require.NoError(t, err)
	assert.Equal(t, "2000.00", line.Bonus.String())
	assert.Equal(t, "8000.00", line.NetPay.String())

	apps, err := svc.Applications(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestProcessApprovedBenefit_TerminationGoesToBenefitColumn(t *testing.T) {
	svc := newService(t)
	withTemplates(t, svc)
	ctx := context.Background()
	run := createRun(t, svc)
	_, err := svc.UpsertPayLines(ctx, run.ID, specialist, []payroll.PayLineInput{readyLine("e-2", 6000)})
	require.NoError(t, err)
	b := approvedBenefit(t, svc, "e-2", "termination")

	result, err := svc.ProcessApprovedBenefit(ctx, payroll.ProcessBenefitInput{
		EmployeeID: "e-2", BenefitID: b.ID, RunID: run.ID, GivenAmount: generic.NewMoney(4200), Actor: specialist,
	})
	require.NoError(t, err)
	assert.Equal(t, "4200.00", result.Line.Benefit.String())
	assert.True(t, result.Line.Bonus.IsZero())
	assert.Equal(t, "10200.00", result.Line.NetPay.String())
}

func TestProcessApprovedBenefit_SameBenefitDifferentRuns(t *testing.T) {
	// GIVEN: One approved benefit and runs for March and April
	// THEN: It can be posted once to each run
	svc := newService(t)
	withTemplates(t, svc)
	ctx := context.Background()
	b := approvedBenefit(t, svc, "e-1", "signing-bonus")

	for _, period := range []generic.PayPeriod{march, generic.PeriodForMonth(2025, 4)} {
		run, err := svc.CreateRun(ctx, payroll.CreateRunInput{Entity: "acme", Period: period, Actor: specialist})
		require.NoError(t, err)
		_, err = svc.UpsertPayLines(ctx, run.ID, specialist, []payroll.PayLineInput{readyLine("e-1", 6000)})
		require.NoError(t, err)
		_, err = svc.ProcessApprovedBenefit(ctx, payroll.ProcessBenefitInput{
			EmployeeID: "e-1", BenefitID: b.ID, RunID: run.ID, GivenAmount: generic.NewMoney(1000), Actor: specialist,
		})
		require.NoError(t, err)
	}

	apps, err := svc.Applications(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, apps, 2)
}

func TestProcessApprovedBenefit_Refusals(t *testing.T) {
	svc := newService(t)
	withTemplates(t, svc)
	ctx := context.Background()
	run := createRun(t, svc)
	_, err := svc.UpsertPayLines(ctx, run.ID, specialist, []payroll.PayLineInput{readyLine("e-1", 6000)})
	require.NoError(t, err)

	pending, err := svc.CreateBenefit(ctx, payroll.CreateBenefitInput{EmployeeID: "e-1", TemplateID: "signing-bonus", Actor: specialist})
	require.NoError(t, err)
	approved := approvedBenefit(t, svc, "e-1", "signing-bonus")
	otherEmployee := approvedBenefit(t, svc, "e-9", "signing-bonus")

	base := payroll.ProcessBenefitInput{EmployeeID: "e-1", RunID: run.ID, GivenAmount: generic.NewMoney(500), Actor: specialist}

	t.Run("not approved", func(t *testing.T) {
		in := base
		in.BenefitID = pending.ID
		_, err := svc.ProcessApprovedBenefit(ctx, in)
		var ve *generic.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "not_approved", ve.Code)
	})
	t.Run("other employee", func(t *testing.T) {
		in := base
		in.BenefitID = otherEmployee.ID
		_, err := svc.ProcessApprovedBenefit(ctx, in)
		assert.ErrorIs(t, err, generic.ErrValidation)
	})
	t.Run("non-positive amount", func(t *testing.T) {
		in := base
		in.BenefitID = approved.ID
		in.GivenAmount = generic.ZeroMoney
		_, err := svc.ProcessApprovedBenefit(ctx, in)
		assert.ErrorIs(t, err, generic.ErrValidation)
	})
	t.Run("unknown run", func(t *testing.T) {
		in := base
		in.BenefitID = approved.ID
		in.RunID = "missing"
		_, err := svc.ProcessApprovedBenefit(ctx, in)
		assert.ErrorIs(t, err, generic.ErrNotFound)
	})
	t.Run("no pay line", func(t *testing.T) {
		b := approvedBenefit(t, svc, "e-5", "signing-bonus")
		in := base
		in.EmployeeID = "e-5"
		in.BenefitID = b.ID
		_, err := svc.ProcessApprovedBenefit(ctx, in)
		assert.ErrorIs(t, err, generic.ErrNotFound)
	})
	t.Run("wrong role", func(t *testing.T) {
		in := base
		in.BenefitID = approved.ID
		in.Actor = manager
		_, err := svc.ProcessApprovedBenefit(ctx, in)
		assert.ErrorIs(t, err, generic.ErrUnauthorized)
	})

	apps, err := svc.Applications(ctx, approved.ID)
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestProcessApprovedBenefit_LockedRun(t *testing.T) {
	svc := newService(t)
	withTemplates(t, svc)
	run := lockedRun(t, svc)
	b := approvedBenefit(t, svc, "e-1", "signing-bonus")

	_, err := svc.ProcessApprovedBenefit(context.Background(), payroll.ProcessBenefitInput{
		EmployeeID: "e-1", BenefitID: b.ID, RunID: run.ID, GivenAmount: generic.NewMoney(500), Actor: specialist,
	})
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
}

func TestProcessApprovedBenefit_RescansLine(t *testing.T) {
	// GIVEN: A line below the minimum wage (warning)
	// WHEN: A benefit lifts net pay over the minimum
	// THEN: The line's notes no longer carry the warning
	svc := newService(t)
	withTemplates(t, svc)
	ctx := context.Background()
	run := createRun(t, svc)
	lines, err := svc.UpsertPayLines(ctx, run.ID, specialist, []payroll.PayLineInput{readyLine("e-1", 4000)})
	require.NoError(t, err)
	require.Len(t, lines[0].Exceptions, 1)
	b := approvedBenefit(t, svc, "e-1", "signing-bonus")

	result, err := svc.ProcessApprovedBenefit(ctx, payroll.ProcessBenefitInput{
		EmployeeID: "e-1", BenefitID: b.ID, RunID: run.ID, GivenAmount: generic.NewMoney(2000), Actor: specialist,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Line.Exceptions)
}

func TestListBenefits_Filter(t *testing.T) {
	svc := newService(t)
	withTemplates(t, svc)
	ctx := context.Background()
	approvedBenefit(t, svc, "e-1", "signing-bonus")
	_, err := svc.CreateBenefit(ctx, payroll.CreateBenefitInput{EmployeeID: "e-1", TemplateID: "termination", Actor: specialist})
	require.NoError(t, err)
	_, err = svc.CreateBenefit(ctx, payroll.CreateBenefitInput{EmployeeID: "e-2", TemplateID: "termination", Actor: specialist})
	require.NoError(t, err)

	mine, err := svc.ListBenefits(ctx, payroll.BenefitFilter{EmployeeID: "e-1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	pending, err := svc.ListBenefits(ctx, payroll.BenefitFilter{State: payroll.ReviewPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

// =============================================================================
// REFUNDS
// =============================================================================

func TestMarkRefundPaid(t *testing.T) {
	// GIVEN: A PENDING refund and an existing run
	// WHEN: It is marked paid
	// THEN: It is PAID in that run; a second attempt is an invalid transition
	svc := newService(t)
	ctx := context.Background()
	run := createRun(t, svc)

	r, err := svc.CreateRefund(ctx, payroll.CreateRefundInput{EmployeeID: "e-1", Amount: generic.NewMoney(180), Description: " overcharged parking ", Actor: specialist})
	require.NoError(t, err)
	assert.Equal(t, payroll.RefundPending, r.Status)
	assert.Equal(t, "overcharged parking", r.Description)

	paid, err := svc.MarkRefundPaid(ctx, r.ID, run.ID, manager)
	require.NoError(t, err)
	assert.Equal(t, payroll.RefundPaid, paid.Status)
	assert.Equal(t, run.ID, paid.PaidInRun)
	require.NotNil(t, paid.PaidAt)

	_, err = svc.MarkRefundPaid(ctx, r.ID, run.ID, specialist)
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)

	stored, err := svc.GetRefund(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RefundPaid, stored.Status)
}

func TestMarkRefundPaid_Refusals(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	run := createRun(t, svc)
	r, err := svc.CreateRefund(ctx, payroll.CreateRefundInput{EmployeeID: "e-1", Amount: generic.NewMoney(50), Actor: specialist})
	require.NoError(t, err)

	_, err = svc.MarkRefundPaid(ctx, r.ID, "missing", specialist)
	assert.ErrorIs(t, err, generic.ErrNotFound)

	_, err = svc.MarkRefundPaid(ctx, r.ID, "", specialist)
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = svc.MarkRefundPaid(ctx, "nope", run.ID, specialist)
	assert.ErrorIs(t, err, generic.ErrNotFound)

	_, err = svc.MarkRefundPaid(ctx, r.ID, run.ID, finance)
	assert.ErrorIs(t, err, generic.ErrUnauthorized)

	stored, err := svc.GetRefund(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.RefundPending, stored.Status)
}

func TestCreateRefund_Validation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.CreateRefund(ctx, payroll.CreateRefundInput{EmployeeID: "e-1", Amount: generic.NewMoney(-5), Actor: specialist})
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = svc.CreateRefund(ctx, payroll.CreateRefundInput{Amount: generic.NewMoney(5), Actor: specialist})
	assert.ErrorIs(t, err, generic.ErrValidation)

	list, err := svc.ListRefunds(ctx, "e-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestEmployees(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveEmployee(ctx, payroll.Employee{ID: "e-1", Name: "Nadia Haddad", Entity: "acme"}))
	assert.ErrorIs(t, svc.SaveEmployee(ctx, payroll.Employee{ID: "e-2"}), generic.ErrValidation)

	e, err := svc.GetEmployee(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, "Nadia Haddad", e.Name)
	assert.False(t, e.CreatedAt.IsZero())

	_, err = svc.GetEmployee(ctx, "e-2")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}
