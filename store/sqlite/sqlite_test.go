package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

var (
	specialist = generic.Actor{ID: "sara", Role: generic.RoleSpecialist}
	manager    = generic.Actor{ID: "omar", Role: generic.RolePayrollManager}
	finance    = generic.Actor{ID: "lina", Role: generic.RoleFinanceStaff}

	march = generic.PeriodForMonth(2025, time.March)
	start = time.Date(2025, time.March, 25, 8, 0, 0, 0, time.UTC)
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newService(t *testing.T, store payroll.Store) *payroll.Service {
	t.Helper()
	var seq atomic.Int64
	return payroll.NewService(store,
		payroll.NewExceptionEngine(payroll.MinimumWagePolicy{Default: generic.NewMoney(5000)}),
		payroll.WithClock(generic.FixedClock(start)),
		payroll.WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }),
	)
}

func sampleRun(id string, period generic.PayPeriod) payroll.PayrollRun {
	return payroll.PayrollRun{
		ID:     payroll.RunID(id),
		Entity: "acme",
		Period: period,
		Roster: []payroll.EmployeeID{"e-1", "e-2"},
		RunState: payroll.RunState{
			Status:    payroll.StatusDraft,
			CreatedBy: payroll.Stamp{By: "sara", At: start},
		},
		Version:   1,
		CreatedAt: start,
		UpdatedAt: start,
	}
}

// =============================================================================
// RUNS
// =============================================================================

func TestRuns_RoundTrip(t *testing.T) {
	// GIVEN: A run with a roster and a creation stamp
	// WHEN: It is stored and read back
	// THEN: Every field survives, and unknown ids read as (nil, nil)
	ctx := context.Background()
	store := newStore(t)
	run := sampleRun("r-1", march)
	require.NoError(t, store.CreateRun(ctx, run))

	got, err := store.GetRun(ctx, "r-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "acme", got.Entity)
	assert.Equal(t, march.Key(), got.Period.Key())
	assert.Equal(t, march.Start.String(), got.Period.Start.String())
	assert.Equal(t, run.Roster, got.Roster)
	assert.True(t, got.RunState.Equal(run.RunState))
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, got.CreatedAt.Equal(start))

	found, err := store.FindRun(ctx, "acme", march)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, run.ID, found.ID)

	missing, err := store.GetRun(ctx, "r-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRuns_DuplicatePeriod(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.CreateRun(ctx, sampleRun("r-1", march)))

	err := store.CreateRun(ctx, sampleRun("r-2", march))
	assert.ErrorIs(t, err, payroll.ErrDuplicateRun)
}

func TestRuns_UpdateVersionCheck(t *testing.T) {
	// GIVEN: A stored run at version 1
	// WHEN: It is updated expecting version 1, then again expecting version 1
	// THEN: The first write lands; the second is a ConcurrencyError
	ctx := context.Background()
	store := newStore(t)
	run := sampleRun("r-1", march)
	require.NoError(t, store.CreateRun(ctx, run))

	run.Status = payroll.StatusUnderReview
	run.ReviewedBy = payroll.Stamp{By: "sara", At: start.Add(time.Minute)}
	run.Version = 2
	require.NoError(t, store.UpdateRun(ctx, run, 1))

	err := store.UpdateRun(ctx, run, 1)
	var ce *generic.ConcurrencyError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, int64(1), ce.ExpectedVersion)

	got, err := store.GetRun(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusUnderReview, got.Status)
	assert.Equal(t, "sara", got.ReviewedBy.By)
	assert.Equal(t, int64(2), got.Version)

	err = store.UpdateRun(ctx, sampleRun("r-404", march), 1)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestRuns_ListFilter(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.CreateRun(ctx, sampleRun("r-1", march)))
	april := sampleRun("r-2", generic.PeriodForMonth(2025, time.April))
	april.Status = payroll.StatusLocked
	require.NoError(t, store.CreateRun(ctx, april))

	all, err := store.ListRuns(ctx, payroll.RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, payroll.RunID("r-2"), all[0].ID, "newest period first")

	locked, err := store.ListRuns(ctx, payroll.RunFilter{Status: payroll.StatusLocked})
	require.NoError(t, err)
	require.Len(t, locked, 1)
	assert.Equal(t, payroll.RunID("r-2"), locked[0].ID)

	none, err := store.ListRuns(ctx, payroll.RunFilter{Entity: "globex"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

// =============================================================================
// LEDGER
// =============================================================================

func TestLedger_AppendAndOrder(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.CreateRun(ctx, sampleRun("r-1", march)))

	later := &generic.LedgerEntry{SubjectID: "r-1", ActorID: "sara", ActorRole: generic.RoleSpecialist, Action: "REVIEW", FromStatus: "DRAFT", ToStatus: "UNDER_REVIEW", At: start.Add(time.Hour)}
	earlier := &generic.LedgerEntry{SubjectID: "r-1", ActorID: "sara", ActorRole: generic.RoleSpecialist, Action: "CREATE", ToStatus: "DRAFT", At: start, Metadata: map[string]string{"source": "import"}}
	require.NoError(t, store.AppendEntry(ctx, later))
	require.NoError(t, store.AppendEntry(ctx, earlier))
	assert.Greater(t, earlier.Seq, later.Seq)

	entries, err := store.LoadEntries(ctx, "r-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "CREATE", entries[0].Action)
	assert.Equal(t, "import", entries[0].Metadata["source"])
	assert.Equal(t, "", entries[0].FromStatus)
	assert.Equal(t, "REVIEW", entries[1].Action)
	assert.True(t, entries[1].At.Equal(start.Add(time.Hour)))
}

func TestLedger_UnknownRun(t *testing.T) {
	store := newStore(t)
	err := store.AppendEntry(context.Background(), &generic.LedgerEntry{SubjectID: "r-404", ActorID: "sara", Action: "CREATE", ToStatus: "DRAFT", At: start})
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

// =============================================================================
// PAY LINES, BENEFITS, REFUNDS
// =============================================================================

func TestPayLines_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.CreateRun(ctx, sampleRun("r-1", march)))

	line := payroll.PayLine{
		RunID:             "r-1",
		EmployeeID:        "e-2",
		EmployeeName:      "Omar",
		BaseSalary:        generic.MoneyOrZero("5000.50"),
		Allowances:        generic.NewMoney(200),
		Deductions:        generic.NewMoney(100),
		Bonus:             generic.ZeroMoney,
		Benefit:           generic.ZeroMoney,
		NetPay:            generic.MoneyOrZero("5100.50"),
		BankStatus:        payroll.BankReady,
		BankAccountNumber: "GB29NWBK60161331926819",
		Exceptions:        []string{"warning: below minimum wage"},
		UpdatedAt:         start,
	}
	require.NoError(t, store.SavePayLine(ctx, line))
	require.NoError(t, store.SavePayLine(ctx, payroll.PayLine{RunID: "r-1", EmployeeID: "e-1", BankStatus: payroll.BankMissing, UpdatedAt: start}))

	got, err := store.GetPayLine(ctx, "r-1", "e-2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "5000.50", got.BaseSalary.String())
	assert.Equal(t, "5100.50", got.NetPay.String())
	assert.Equal(t, line.Exceptions, got.Exceptions)
	assert.Equal(t, payroll.BankReady, got.BankStatus)

	// Upsert replaces the row.
	line.NetPay = generic.NewMoney(6000)
	line.Exceptions = nil
	require.NoError(t, store.SavePayLine(ctx, line))

	lines, err := store.ListPayLines(ctx, "r-1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, payroll.EmployeeID("e-1"), lines[0].EmployeeID)
	assert.Equal(t, "6000.00", lines[1].NetPay.String())
	assert.Empty(t, lines[1].Exceptions)

	missing, err := store.GetPayLine(ctx, "r-1", "e-9")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestApplications_Unique(t *testing.T) {
	// GIVEN: A benefit applied to a run
	// WHEN: The same (employee, benefit, run) is recorded again
	// THEN: ErrAlreadyApplied
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.CreateRun(ctx, sampleRun("r-1", march)))
	require.NoError(t, store.SaveBenefit(ctx, payroll.AncillaryBenefit{
		ID: "b-1", EmployeeID: "e-1", TemplateID: "signing-bonus", Kind: payroll.KindSigningBonus,
		Amount: generic.NewMoney(2000), State: payroll.ReviewApproved, CreatedBy: "sara", CreatedAt: start,
	}))

	app := payroll.BenefitApplication{EmployeeID: "e-1", BenefitID: "b-1", RunID: "r-1", Amount: generic.NewMoney(2000), Field: payroll.FieldBonus, AppliedBy: "sara", AppliedAt: start}
	require.NoError(t, store.RecordApplication(ctx, app))
	assert.ErrorIs(t, store.RecordApplication(ctx, app), payroll.ErrAlreadyApplied)

	has, err := store.HasApplication(ctx, "e-1", "b-1", "r-1")
	require.NoError(t, err)
	assert.True(t, has)

	apps, err := store.ListApplications(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "2000.00", apps[0].Amount.String())
}

func TestBenefitsAndRefunds_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	for _, tmpl := range payroll.DefaultBenefitTemplates() {
		require.NoError(t, store.SaveBenefitTemplate(ctx, tmpl))
	}
	templates, err := store.ListBenefitTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, templates, 3)

	reviewedAt := start.Add(time.Hour)
	require.NoError(t, store.SaveBenefit(ctx, payroll.AncillaryBenefit{
		ID: "b-1", EmployeeID: "e-1", TemplateID: "termination", Kind: payroll.KindTermination,
		Amount: generic.NewMoney(5000), State: payroll.ReviewRejected, ReviewedBy: "omar", ReviewedAt: &reviewedAt,
		RejectionReason: "duplicate", CreatedBy: "sara", CreatedAt: start,
	}))
	b, err := store.GetBenefit(ctx, "b-1")
	require.NoError(t, err)
	require.NotNil(t, b.ReviewedAt)
	assert.True(t, b.ReviewedAt.Equal(reviewedAt))
	assert.Equal(t, "duplicate", b.RejectionReason)

	rejected, err := store.ListBenefits(ctx, payroll.BenefitFilter{State: payroll.ReviewRejected})
	require.NoError(t, err)
	assert.Len(t, rejected, 1)

	require.NoError(t, store.SaveRefund(ctx, payroll.Refund{
		ID: "rf-1", EmployeeID: "e-1", Amount: generic.NewMoney(180), Status: payroll.RefundPending, CreatedBy: "sara", CreatedAt: start,
	}))
	r, err := store.GetRefund(ctx, "rf-1")
	require.NoError(t, err)
	assert.Nil(t, r.PaidAt)
	assert.Equal(t, "180.00", r.Amount.String())
}

// =============================================================================
// TRANSACTIONS & RESET
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx payroll.Store) error {
		if err := tx.CreateRun(ctx, sampleRun("r-1", march)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetRun(ctx, "r-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.CreateRun(ctx, sampleRun("r-1", march)))
	require.NoError(t, store.SaveEmployee(ctx, payroll.Employee{ID: "e-1", Name: "Nadia", CreatedAt: start}))

	require.NoError(t, store.Reset(ctx))

	runs, err := store.ListRuns(ctx, payroll.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	employees, err := store.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Empty(t, employees)
}

// =============================================================================
// SERVICE ON SQLITE
// =============================================================================

func TestService_FullLifecycleOnSQLite(t *testing.T) {
	// GIVEN: The payroll service backed by SQLite
	// WHEN: A run goes from creation to lock, with a blocked publish fixed on the way
	// THEN: The stored run equals a replay of its stored ledger
	ctx := context.Background()
	svc := newService(t, newStore(t))

	run, err := svc.CreateRun(ctx, payroll.CreateRunInput{Entity: "acme", Period: march, Actor: specialist})
	require.NoError(t, err)
	_, err = svc.UpsertPayLines(ctx, run.ID, specialist, []payroll.PayLineInput{
		{EmployeeID: "e-1", BaseSalary: generic.NewMoney(4000)},
	})
	require.NoError(t, err)
	_, err = svc.Review(ctx, run.ID, specialist)
	require.NoError(t, err)

	_, err = svc.Publish(ctx, run.ID, specialist)
	require.ErrorIs(t, err, generic.ErrExceptionBlocked)

	account := "GB29NWBK60161331926819"
	net := generic.NewMoney(6000)
	_, err = svc.EditPayLine(ctx, payroll.EditPayLineInput{RunID: run.ID, EmployeeID: "e-1", Actor: specialist, BankAccountNumber: &account, NetPay: &net})
	require.NoError(t, err)

	_, err = svc.Publish(ctx, run.ID, specialist)
	require.NoError(t, err)
	_, err = svc.ManagerApprove(ctx, run.ID, manager)
	require.NoError(t, err)
	_, err = svc.FinanceApprove(ctx, run.ID, finance)
	require.NoError(t, err)
	run, err = svc.Lock(ctx, run.ID, manager)
	require.NoError(t, err)

	stored, err := svc.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusLocked, stored.Status)

	replayed, err := svc.ReplayRun(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, replayed.Equal(stored.RunState))

	history, err := svc.History(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, history, 6)

	_, err = svc.CreateRun(ctx, payroll.CreateRunInput{Entity: "acme", Period: march, Actor: specialist})
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestService_BenefitPostedOnceOnSQLite(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newStore(t))
	for _, tmpl := range payroll.DefaultBenefitTemplates() {
		require.NoError(t, svc.SaveBenefitTemplate(ctx, tmpl))
	}

	run, err := svc.CreateRun(ctx, payroll.CreateRunInput{Entity: "acme", Period: march, Actor: specialist})
	require.NoError(t, err)
	_, err = svc.UpsertPayLines(ctx, run.ID, specialist, []payroll.PayLineInput{
		{EmployeeID: "e-1", BaseSalary: generic.NewMoney(6000), BankAccountNumber: "GB29NWBK60161331926819"},
	})
	require.NoError(t, err)

	b, err := svc.CreateBenefit(ctx, payroll.CreateBenefitInput{EmployeeID: "e-1", TemplateID: "signing-bonus", Actor: specialist})
	require.NoError(t, err)
	_, err = svc.ReviewBenefit(ctx, b.ID, manager, payroll.ReviewApprove, "")
	require.NoError(t, err)

	in := payroll.ProcessBenefitInput{EmployeeID: "e-1", BenefitID: b.ID, RunID: run.ID, GivenAmount: generic.NewMoney(2000), Actor: specialist}
	_, err = svc.ProcessApprovedBenefit(ctx, in)
	require.NoError(t, err)
	_, err = svc.ProcessApprovedBenefit(ctx, in)
	assert.ErrorIs(t, err, generic.ErrValidation)

	line, err := svc.GetPayLine(ctx, run.ID, "e-1")
	require.NoError(t, err)
	assert.Equal(t, "8000.00", line.NetPay.String())
}
