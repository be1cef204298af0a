package payroll

import (
	"context"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// BANK ACCOUNTS
// =============================================================================

// NormalizeBankAccount strips spaces and upper-cases the account number.
func NormalizeBankAccount(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// ValidBankAccount accepts 8 to 34 ASCII letters or digits (IBAN length range).
func ValidBankAccount(s string) bool {
	if len(s) < 8 || len(s) > 34 {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}

// bankStatusFor derives the transfer readiness of an account number.
func bankStatusFor(account string) BankStatus {
	switch {
	case account == "":
		return BankMissing
	case ValidBankAccount(account):
		return BankReady
	default:
		return BankInvalid
	}
}

// =============================================================================
// UPSERT - Lines delivered by the payroll calculation
// =============================================================================

// PayLineInput is one computed line. NetPay and BankStatus are derived when
// omitted.
type PayLineInput struct {
	EmployeeID        EmployeeID
	EmployeeName      string
	BaseSalary        generic.Money
	Allowances        generic.Money
	Deductions        generic.Money
	Bonus             generic.Money
	Benefit           generic.Money
	NetPay            *generic.Money
	BankAccountNumber string
	BankStatus        BankStatus
	Notes             string
}

func (in PayLineInput) validate() error {
	if in.EmployeeID == "" {
		return generic.Required("employee_id")
	}
	amounts := []struct {
		field string
		value generic.Money
	}{
		{"base_salary", in.BaseSalary},
		{"allowances", in.Allowances},
		{"deductions", in.Deductions},
		{"bonus", in.Bonus},
		{"benefit", in.Benefit},
	}
	for _, a := range amounts {
		if a.value.IsNegative() {
			return &generic.ValidationError{Field: a.field, Code: "negative", Message: "must not be negative"}
		}
	}
	if in.BankStatus != "" && !in.BankStatus.Valid() {
		return &generic.ValidationError{Field: "bank_status", Code: "invalid", Message: "unknown bank status " + string(in.BankStatus)}
	}
	return nil
}

// UpsertPayLines writes computed lines into a DRAFT or UNDER_REVIEW run. The
// engine's notes are attached to each line as it is stored.
func (s *Service) UpsertPayLines(ctx context.Context, runID RunID, actor generic.Actor, inputs []PayLineInput) ([]PayLine, error) {
	if err := s.authorize(OpUpsertPayLines, actor); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, generic.Required("lines")
	}
	seen := make(map[EmployeeID]bool, len(inputs))
	for _, in := range inputs {
		if err := in.validate(); err != nil {
			return nil, err
		}
		if seen[in.EmployeeID] {
			return nil, &generic.ValidationError{Field: "employee_id", Code: "duplicate", Message: "duplicate line for " + string(in.EmployeeID)}
		}
		seen[in.EmployeeID] = true
	}

	unlock := s.lockRun(runID)
	defer unlock()

	var saved []PayLine
	err := s.Store.WithTx(ctx, func(tx Store) error {
		run, err := getRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		if !run.Status.Editable() {
			return &generic.InvalidTransitionError{Subject: "run " + string(run.ID), Current: string(run.Status), Action: "upsert pay lines"}
		}

		now := s.now()
		saved = make([]PayLine, 0, len(inputs))
		for _, in := range inputs {
			line, err := s.buildLine(ctx, tx, run, in, now)
			if err != nil {
				return err
			}
			if err := tx.SavePayLine(ctx, line); err != nil {
				return err
			}
			saved = append(saved, line)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("pay lines upserted",
		zap.String("run_id", string(runID)),
		zap.Int("count", len(saved)),
		zap.String("actor", actor.ID),
	)
	return saved, nil
}

func (s *Service) buildLine(ctx context.Context, tx Store, run *PayrollRun, in PayLineInput, now time.Time) (PayLine, error) {
	account := NormalizeBankAccount(in.BankAccountNumber)
	line := PayLine{
		RunID:             run.ID,
		EmployeeID:        in.EmployeeID,
		EmployeeName:      strings.TrimSpace(in.EmployeeName),
		BaseSalary:        in.BaseSalary,
		Allowances:        in.Allowances,
		Deductions:        in.Deductions,
		Bonus:             in.Bonus,
		Benefit:           in.Benefit,
		BankAccountNumber: account,
		BankStatus:        in.BankStatus,
		Notes:             in.Notes,
		UpdatedAt:         now,
	}
	if line.BankStatus == "" {
		line.BankStatus = bankStatusFor(account)
	}
	if in.NetPay != nil {
		line.NetPay = *in.NetPay
	} else {
		line.NetPay = line.ComputedNetPay()
	}
	if line.EmployeeName == "" {
		emp, err := tx.GetEmployee(ctx, in.EmployeeID)
		if err != nil {
			return PayLine{}, err
		}
		if emp != nil {
			line.EmployeeName = emp.Name
		}
	}
	line.Exceptions = issueNotes(s.Engine.ScanLine(run.Entity, line))
	return line, nil
}

// =============================================================================
// EDIT - Corrective edit of a flagged line
// =============================================================================

// EditPayLineInput carries the two correctable fields. At least one is set.
type EditPayLineInput struct {
	RunID             RunID
	EmployeeID        EmployeeID
	Actor             generic.Actor
	BankAccountNumber *string
	NetPay            *generic.Money
}

// EditResult is the corrected line plus whatever the re-scan still reports.
type EditResult struct {
	Line   PayLine
	Issues []Issue
}

// EditPayLine corrects the bank account or net pay of a line that currently
// has an exception. Allowed in every status except LOCKED; once the run is
// published an edit may not add a critical issue. The line is re-scanned
// immediately so a fixed issue disappears from its notes.
func (s *Service) EditPayLine(ctx context.Context, in EditPayLineInput) (*EditResult, error) {
	if err := s.authorize(OpEditPayLine, in.Actor); err != nil {
		return nil, err
	}
	if in.BankAccountNumber == nil && in.NetPay == nil {
		return nil, &generic.ValidationError{Field: "fields", Code: "required", Message: "bank_account_number or net_pay is required"}
	}

	unlock := s.lockRun(in.RunID)
	defer unlock()

	var result EditResult
	err := s.Store.WithTx(ctx, func(tx Store) error {
		run, err := getRun(ctx, tx, in.RunID)
		if err != nil {
			return err
		}
		if run.Status == StatusLocked {
			return &generic.InvalidTransitionError{Subject: "run " + string(run.ID), Current: string(run.Status), Action: "edit pay line"}
		}
		current, err := tx.GetPayLine(ctx, in.RunID, in.EmployeeID)
		if err != nil {
			return err
		}
		if current == nil {
			return payLineNotFound(in.RunID, in.EmployeeID)
		}
		existing := s.Engine.ScanLine(run.Entity, *current)
		if len(existing) == 0 {
			return &generic.ValidationError{
				Field:   "employee_id",
				Code:    "no_exception",
				Message: "pay line for " + string(in.EmployeeID) + " has no active exception",
			}
		}

		line := current.Clone()
		if in.BankAccountNumber != nil {
			line.BankAccountNumber = NormalizeBankAccount(*in.BankAccountNumber)
			line.BankStatus = bankStatusFor(line.BankAccountNumber)
		}
		if in.NetPay != nil {
			line.NetPay = *in.NetPay
		}
		issues := s.Engine.ScanLine(run.Entity, line)
		// Past UNDER_REVIEW the Publish gate no longer runs, so an edit must
		// not bring in a critical issue the line did not already carry.
		if !run.Status.Editable() {
			if code, ok := newCritical(existing, issues); ok {
				return &generic.ValidationError{
					Field:   "employee_id",
					Code:    "introduces_critical",
					Message: "edit would add critical issue " + string(code) + " to a " + string(run.Status) + " run",
				}
			}
		}
		line.Exceptions = issueNotes(issues)
		line.UpdatedAt = s.now()
		if err := tx.SavePayLine(ctx, line); err != nil {
			return err
		}
		result = EditResult{Line: line, Issues: issues}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("pay line corrected",
		zap.String("run_id", string(in.RunID)),
		zap.String("employee_id", string(in.EmployeeID)),
		zap.Int("remaining_issues", len(result.Issues)),
		zap.String("actor", in.Actor.ID),
	)
	return &result, nil
}

// newCritical returns the first critical code in after that before lacks.
func newCritical(before, after []Issue) (IssueCode, bool) {
	had := make(map[IssueCode]bool, len(before))
	for _, is := range before {
		had[is.Code] = true
	}
	for _, is := range after {
		if is.Severity == SeverityCritical && !had[is.Code] {
			return is.Code, true
		}
	}
	return "", false
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) ListPayLines(ctx context.Context, runID RunID) ([]PayLine, error) {
	if _, err := getRun(ctx, s.Store, runID); err != nil {
		return nil, err
	}
	return s.Store.ListPayLines(ctx, runID)
}

func (s *Service) GetPayLine(ctx context.Context, runID RunID, employeeID EmployeeID) (*PayLine, error) {
	line, err := s.Store.GetPayLine(ctx, runID, employeeID)
	if err != nil {
		return nil, err
	}
	if line == nil {
		return nil, payLineNotFound(runID, employeeID)
	}
	return line, nil
}
