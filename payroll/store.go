package payroll

import (
	"context"
	"errors"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// STORE SENTINELS
// =============================================================================

var (
	// ErrDuplicateRun is returned by CreateRun when (entity, period) is taken.
	ErrDuplicateRun = errors.New("run already exists for entity and period")

	// ErrAlreadyApplied is returned by RecordApplication for a repeated
	// (employee, benefit, run) triple.
	ErrAlreadyApplied = errors.New("benefit already applied to run")
)

// =============================================================================
// STORE - Persistence for runs, pay lines, benefits, refunds and the ledger
// =============================================================================

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	Entity string
	Status RunStatus
}

// BenefitFilter narrows ListBenefits.
type BenefitFilter struct {
	EmployeeID EmployeeID
	State      ReviewState
}

// Store is everything the payroll services persist. Getters return
// (nil, nil) when the record does not exist.
type Store interface {
	generic.LedgerStore

	// Runs
	CreateRun(ctx context.Context, run PayrollRun) error
	GetRun(ctx context.Context, id RunID) (*PayrollRun, error)
	FindRun(ctx context.Context, entity string, period generic.PayPeriod) (*PayrollRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]PayrollRun, error)

	// UpdateRun writes run if the stored version equals expectedVersion,
	// otherwise it returns a *generic.ConcurrencyError.
	UpdateRun(ctx context.Context, run PayrollRun, expectedVersion int64) error

	// Pay lines, keyed by (run, employee). ListPayLines orders by employee id.
	SavePayLine(ctx context.Context, line PayLine) error
	GetPayLine(ctx context.Context, runID RunID, employeeID EmployeeID) (*PayLine, error)
	ListPayLines(ctx context.Context, runID RunID) ([]PayLine, error)

	// Benefits
	SaveBenefitTemplate(ctx context.Context, t BenefitTemplate) error
	GetBenefitTemplate(ctx context.Context, id string) (*BenefitTemplate, error)
	ListBenefitTemplates(ctx context.Context) ([]BenefitTemplate, error)

	SaveBenefit(ctx context.Context, b AncillaryBenefit) error
	GetBenefit(ctx context.Context, id BenefitID) (*AncillaryBenefit, error)
	ListBenefits(ctx context.Context, filter BenefitFilter) ([]AncillaryBenefit, error)

	RecordApplication(ctx context.Context, app BenefitApplication) error
	HasApplication(ctx context.Context, employeeID EmployeeID, benefitID BenefitID, runID RunID) (bool, error)
	ListApplications(ctx context.Context, benefitID BenefitID) ([]BenefitApplication, error)

	// Refunds
	SaveRefund(ctx context.Context, r Refund) error
	GetRefund(ctx context.Context, id RefundID) (*Refund, error)
	ListRefunds(ctx context.Context, employeeID EmployeeID) ([]Refund, error)

	// Employees
	SaveEmployee(ctx context.Context, e Employee) error
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the Store passed to fn
	// is rolled back. If fn returns nil, they are committed together.
	WithTx(ctx context.Context, fn func(Store) error) error
}
