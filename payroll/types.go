// Package payroll implements the payroll run approval and exception workflow.
// It plugs payroll statuses, actions and roles into the generic engine.
package payroll

import (
	"time"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RunID string
type EmployeeID string
type BenefitID string
type RefundID string

// =============================================================================
// RUN STATUS - Closed set
// =============================================================================

type RunStatus string

const (
	StatusDraft           RunStatus = "DRAFT"
	StatusUnderReview     RunStatus = "UNDER_REVIEW"
	StatusPublished       RunStatus = "PUBLISHED"
	StatusManagerApproved RunStatus = "MANAGER_APPROVED"
	StatusManagerRejected RunStatus = "MANAGER_REJECTED"
	StatusFinanceApproved RunStatus = "FINANCE_APPROVED"
	StatusFinanceRejected RunStatus = "FINANCE_REJECTED"
	StatusLocked          RunStatus = "LOCKED"
)

// RunStatuses lists every status a run can be in.
var RunStatuses = []RunStatus{
	StatusDraft, StatusUnderReview, StatusPublished,
	StatusManagerApproved, StatusManagerRejected,
	StatusFinanceApproved, StatusFinanceRejected,
	StatusLocked,
}

func (s RunStatus) Valid() bool {
	for _, known := range RunStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Editable reports whether pay lines may be freely upserted.
func (s RunStatus) Editable() bool {
	return s == StatusDraft || s == StatusUnderReview
}

func ParseRunStatus(s string) (RunStatus, bool) {
	st := RunStatus(s)
	return st, st.Valid()
}

// =============================================================================
// BANK STATUS - Closed set
// =============================================================================

type BankStatus string

const (
	BankReady   BankStatus = "READY"
	BankMissing BankStatus = "MISSING"
	BankInvalid BankStatus = "INVALID"
)

func (b BankStatus) Valid() bool {
	switch b {
	case BankReady, BankMissing, BankInvalid:
		return true
	}
	return false
}

func ParseBankStatus(s string) (BankStatus, bool) {
	b := BankStatus(s)
	return b, b.Valid()
}

// =============================================================================
// PAYROLL RUN
// =============================================================================

// Stamp records who did something and when. The zero Stamp means "not yet".
type Stamp struct {
	By string
	At time.Time
}

func (s Stamp) IsZero() bool { return s.By == "" }

// RunState is the part of a run derived from its approval ledger. It is
// only ever produced by ApplyEntry, both for live transitions and replay.
type RunState struct {
	Status RunStatus

	CreatedBy         Stamp
	ReviewedBy        Stamp
	PublishedBy       Stamp
	ApprovedByManager Stamp
	ApprovedByFinance Stamp
	LockedBy          Stamp
	RejectedBy        Stamp
	UnlockedBy        Stamp

	RejectionReason string
	UnlockReason    string
}

// PayrollRun is one payroll cycle for one entity and period.
type PayrollRun struct {
	ID     RunID
	Entity string
	Period generic.PayPeriod

	// Roster lists the employees that must have a pay line before review.
	// Empty means "at least one line".
	Roster []EmployeeID

	RunState

	// Version increases on every status change (optimistic locking).
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// PAY LINE
// =============================================================================

// PayLine is one employee's computed pay within a run.
type PayLine struct {
	RunID        RunID
	EmployeeID   EmployeeID
	EmployeeName string

	BaseSalary generic.Money
	Allowances generic.Money
	Deductions generic.Money
	Bonus      generic.Money
	Benefit    generic.Money
	NetPay     generic.Money

	BankStatus        BankStatus
	BankAccountNumber string

	// Exceptions holds the engine's notes for this line; Notes is free text
	// entered by a specialist.
	Exceptions []string
	Notes      string

	UpdatedAt time.Time
}

// ComputedNetPay is base + allowances + bonus + benefit − deductions.
func (l PayLine) ComputedNetPay() generic.Money {
	return l.BaseSalary.Add(l.Allowances).Add(l.Bonus).Add(l.Benefit).Sub(l.Deductions)
}

// Clone returns a copy that shares no slices with l.
func (l PayLine) Clone() PayLine {
	l.Exceptions = append([]string(nil), l.Exceptions...)
	return l
}
