/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the payroll domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts are sent as decimal strings ("4000.00"). Requests accept either a
  JSON number or a decimal string; floats are never used for arithmetic.

TYPES:
  Runs:       RunDTO, StampDTO, CreateRunRequest, TransitionRequest
  Pay lines:  PayLineDTO, PayLineRequest, UpsertPayLinesRequest,
              EditPayLineRequest, EditResultDTO
  Exceptions: IssueDTO, ExceptionReportDTO
  Ledger:     LedgerEntryDTO, ReplayDTO
  Benefits:   BenefitDTO, ApplicationDTO, CreateBenefitRequest,
              ReviewBenefitRequest, ProcessBenefitRequest, PostingDTO
  Refunds:    RefundDTO, CreateRefundRequest, MarkRefundPaidRequest
  Employees:  EmployeeDTO, CreateEmployeeRequest
  Scenarios:  ScenarioDTO

VALIDATION:
  Validation is done by the payroll service, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/benefit.go: BenefitTemplateJSON
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// RUNS
// =============================================================================

// StampDTO is who did something and when.
type StampDTO struct {
	By string `json:"by"`
	At string `json:"at"`
}

// RunDTO represents a payroll run in API responses.
type RunDTO struct {
	ID     string   `json:"id"`
	Entity string   `json:"entity"`
	Period string   `json:"period"`
	Status string   `json:"status"`
	Roster []string `json:"roster,omitempty"`

	CreatedBy         *StampDTO `json:"created_by,omitempty"`
	ReviewedBy        *StampDTO `json:"reviewed_by,omitempty"`
	PublishedBy       *StampDTO `json:"published_by,omitempty"`
	ApprovedByManager *StampDTO `json:"approved_by_manager,omitempty"`
	ApprovedByFinance *StampDTO `json:"approved_by_finance,omitempty"`
	LockedBy          *StampDTO `json:"locked_by,omitempty"`
	RejectedBy        *StampDTO `json:"rejected_by,omitempty"`
	UnlockedBy        *StampDTO `json:"unlocked_by,omitempty"`
	RejectionReason   string    `json:"rejection_reason,omitempty"`
	UnlockReason      string    `json:"unlock_reason,omitempty"`

	Version   int64  `json:"version"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CreateRunRequest is the request to open a run.
type CreateRunRequest struct {
	Entity string   `json:"entity"`
	Period string   `json:"period"` // YYYY-MM or YYYY-MM-DD
	Roster []string `json:"roster,omitempty"`
}

// TransitionRequest is the optional body of a transition. Only rejections
// and unlock read the reason.
type TransitionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// =============================================================================
// PAY LINES
// =============================================================================

// PayLineDTO represents a pay line in API responses.
type PayLineDTO struct {
	RunID             string   `json:"run_id"`
	EmployeeID        string   `json:"employee_id"`
	EmployeeName      string   `json:"employee_name"`
	BaseSalary        string   `json:"base_salary"`
	Allowances        string   `json:"allowances"`
	Deductions        string   `json:"deductions"`
	Bonus             string   `json:"bonus"`
	Benefit           string   `json:"benefit"`
	NetPay            string   `json:"net_pay"`
	BankStatus        string   `json:"bank_status"`
	BankAccountNumber string   `json:"bank_account_number,omitempty"`
	Exceptions        []string `json:"exceptions"`
	Notes             string   `json:"notes,omitempty"`
	UpdatedAt         string   `json:"updated_at"`
}

// PayLineRequest is one line supplied by the payroll calculation.
type PayLineRequest struct {
	EmployeeID        string           `json:"employee_id"`
	EmployeeName      string           `json:"employee_name,omitempty"`
	BaseSalary        decimal.Decimal  `json:"base_salary"`
	Allowances        decimal.Decimal  `json:"allowances"`
	Deductions        decimal.Decimal  `json:"deductions"`
	Bonus             decimal.Decimal  `json:"bonus"`
	Benefit           decimal.Decimal  `json:"benefit"`
	NetPay            *decimal.Decimal `json:"net_pay,omitempty"` // computed when absent
	BankAccountNumber string           `json:"bank_account_number,omitempty"`
	BankStatus        string           `json:"bank_status,omitempty"`
	Notes             string           `json:"notes,omitempty"`
}

// UpsertPayLinesRequest replaces or adds lines of a run.
type UpsertPayLinesRequest struct {
	Lines []PayLineRequest `json:"lines"`
}

// EditPayLineRequest carries the two corrective fields. Omitted fields are
// left unchanged.
type EditPayLineRequest struct {
	BankAccountNumber *string          `json:"bank_account_number,omitempty"`
	NetPay            *decimal.Decimal `json:"net_pay,omitempty"`
}

// EditResultDTO is the corrected line and what is still wrong with it.
type EditResultDTO struct {
	Line   PayLineDTO `json:"line"`
	Issues []IssueDTO `json:"issues"`
}

// =============================================================================
// EXCEPTIONS
// =============================================================================

// IssueDTO is one exception on one line.
type IssueDTO struct {
	EmployeeID string `json:"employee_id"`
	Code       string `json:"code"`
	Issue      string `json:"issue"`
	Severity   string `json:"severity"`
}

// ExceptionReportDTO is the result of an exception scan.
type ExceptionReportDTO struct {
	Issues         []IssueDTO `json:"issues"`
	CriticalCount  int        `json:"critical_count"`
	WarningCount   int        `json:"warning_count"`
	TotalEmployees int        `json:"total_employees"`
	TotalNetPay    string     `json:"total_net_pay"`
	Blocking       bool       `json:"blocking"`
}

// =============================================================================
// LEDGER
// =============================================================================

// LedgerEntryDTO is one approval ledger entry.
type LedgerEntryDTO struct {
	Seq       int64  `json:"seq"`
	RunID     string `json:"run_id"`
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
	Action    string `json:"action"`
	From      string `json:"from,omitempty"`
	To        string `json:"to"`
	Reason    string `json:"reason,omitempty"`
	At        string `json:"at"`
}

// ReplayDTO is the run state rebuilt from the ledger, next to the stored
// run for comparison.
type ReplayDTO struct {
	Replayed RunDTO `json:"replayed"`
	Stored   RunDTO `json:"stored"`
	Matches  bool   `json:"matches"`
}

// =============================================================================
// BENEFITS
// =============================================================================

// BenefitDTO represents an ancillary benefit.
type BenefitDTO struct {
	ID              string `json:"id"`
	EmployeeID      string `json:"employee_id"`
	TemplateID      string `json:"template_id"`
	Kind            string `json:"kind"`
	Amount          string `json:"amount"`
	State           string `json:"state"`
	ReviewedBy      string `json:"reviewed_by,omitempty"`
	ReviewedAt      string `json:"reviewed_at,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	CreatedBy       string `json:"created_by"`
	CreatedAt       string `json:"created_at"`
}

// ApplicationDTO records a benefit posted to a run.
type ApplicationDTO struct {
	EmployeeID string `json:"employee_id"`
	BenefitID  string `json:"benefit_id"`
	RunID      string `json:"run_id"`
	Amount     string `json:"amount"`
	Field      string `json:"field"`
	AppliedBy  string `json:"applied_by"`
	AppliedAt  string `json:"applied_at"`
}

// CreateBenefitRequest opens a PENDING benefit. Amount defaults to the
// template's default amount.
type CreateBenefitRequest struct {
	EmployeeID string           `json:"employee_id"`
	TemplateID string           `json:"template_id"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
}

// ReviewBenefitRequest approves or rejects a benefit.
type ReviewBenefitRequest struct {
	Action string `json:"action"` // APPROVE or REJECT
	Reason string `json:"reason,omitempty"`
}

// ProcessBenefitRequest posts an approved benefit to a run.
type ProcessBenefitRequest struct {
	EmployeeID  string          `json:"employee_id"`
	RunID       string          `json:"run_id"`
	GivenAmount decimal.Decimal `json:"given_amount"`
}

// PostingDTO is the updated line and the recorded application.
type PostingDTO struct {
	Line        PayLineDTO     `json:"line"`
	Application ApplicationDTO `json:"application"`
}

// =============================================================================
// REFUNDS
// =============================================================================

// RefundDTO represents a refund owed to an employee.
type RefundDTO struct {
	ID          string `json:"id"`
	EmployeeID  string `json:"employee_id"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	PaidInRun   string `json:"paid_in_run,omitempty"`
	PaidAt      string `json:"paid_at,omitempty"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at"`
}

// CreateRefundRequest records a PENDING refund.
type CreateRefundRequest struct {
	EmployeeID  string          `json:"employee_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

// MarkRefundPaidRequest names the run the refund was paid in.
type MarkRefundPaidRequest struct {
	RunID string `json:"run_id"`
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Entity    string `json:"entity,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Entity string `json:"entity"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error     string     `json:"error"`
	Details   string     `json:"details,omitempty"`
	Field     string     `json:"field,omitempty"`
	Code      string     `json:"code,omitempty"`
	Retryable bool       `json:"retryable,omitempty"`
	Issues    []IssueDTO `json:"issues,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func toStampDTO(s payroll.Stamp) *StampDTO {
	if s.IsZero() {
		return nil
	}
	return &StampDTO{By: s.By, At: formatTime(s.At)}
}

func toRunDTO(run payroll.PayrollRun) RunDTO {
	dto := RunDTO{
		ID:        string(run.ID),
		Entity:    run.Entity,
		Period:    run.Period.Label(),
		Version:   run.Version,
		CreatedAt: formatTime(run.CreatedAt),
		UpdatedAt: formatTime(run.UpdatedAt),
	}
	for _, id := range run.Roster {
		dto.Roster = append(dto.Roster, string(id))
	}
	applyStateDTO(&dto, run.RunState)
	return dto
}

func applyStateDTO(dto *RunDTO, s payroll.RunState) {
	dto.Status = string(s.Status)
	dto.CreatedBy = toStampDTO(s.CreatedBy)
	dto.ReviewedBy = toStampDTO(s.ReviewedBy)
	dto.PublishedBy = toStampDTO(s.PublishedBy)
	dto.ApprovedByManager = toStampDTO(s.ApprovedByManager)
	dto.ApprovedByFinance = toStampDTO(s.ApprovedByFinance)
	dto.LockedBy = toStampDTO(s.LockedBy)
	dto.RejectedBy = toStampDTO(s.RejectedBy)
	dto.UnlockedBy = toStampDTO(s.UnlockedBy)
	dto.RejectionReason = s.RejectionReason
	dto.UnlockReason = s.UnlockReason
}

func toPayLineDTO(l payroll.PayLine) PayLineDTO {
	exceptions := l.Exceptions
	if exceptions == nil {
		exceptions = []string{}
	}
	return PayLineDTO{
		RunID:             string(l.RunID),
		EmployeeID:        string(l.EmployeeID),
		EmployeeName:      l.EmployeeName,
		BaseSalary:        l.BaseSalary.String(),
		Allowances:        l.Allowances.String(),
		Deductions:        l.Deductions.String(),
		Bonus:             l.Bonus.String(),
		Benefit:           l.Benefit.String(),
		NetPay:            l.NetPay.String(),
		BankStatus:        string(l.BankStatus),
		BankAccountNumber: l.BankAccountNumber,
		Exceptions:        exceptions,
		Notes:             l.Notes,
		UpdatedAt:         formatTime(l.UpdatedAt),
	}
}

func toPayLineDTOs(lines []payroll.PayLine) []PayLineDTO {
	out := make([]PayLineDTO, len(lines))
	for i, l := range lines {
		out[i] = toPayLineDTO(l)
	}
	return out
}

func (r PayLineRequest) toInput() payroll.PayLineInput {
	in := payroll.PayLineInput{
		EmployeeID:        payroll.EmployeeID(r.EmployeeID),
		EmployeeName:      r.EmployeeName,
		BaseSalary:        generic.MoneyOf(r.BaseSalary),
		Allowances:        generic.MoneyOf(r.Allowances),
		Deductions:        generic.MoneyOf(r.Deductions),
		Bonus:             generic.MoneyOf(r.Bonus),
		Benefit:           generic.MoneyOf(r.Benefit),
		BankAccountNumber: r.BankAccountNumber,
		BankStatus:        payroll.BankStatus(r.BankStatus),
		Notes:             r.Notes,
	}
	if r.NetPay != nil {
		net := generic.MoneyOf(*r.NetPay)
		in.NetPay = &net
	}
	return in
}

func toIssueDTOs(issues []payroll.Issue) []IssueDTO {
	out := make([]IssueDTO, len(issues))
	for i, is := range issues {
		out[i] = IssueDTO{
			EmployeeID: string(is.EmployeeID),
			Code:       string(is.Code),
			Issue:      is.Issue,
			Severity:   string(is.Severity),
		}
	}
	return out
}

func toReportDTO(r payroll.ExceptionReport) ExceptionReportDTO {
	return ExceptionReportDTO{
		Issues:         toIssueDTOs(r.Issues),
		CriticalCount:  r.CriticalCount,
		WarningCount:   r.WarningCount,
		TotalEmployees: r.TotalEmployees,
		TotalNetPay:    r.TotalNetPay.String(),
		Blocking:       r.Blocking(),
	}
}

func toLedgerDTO(e payroll.LedgerEntry) LedgerEntryDTO {
	return LedgerEntryDTO{
		Seq:       e.Seq,
		RunID:     string(e.RunID),
		ActorID:   e.ActorID,
		ActorRole: string(e.ActorRole),
		Action:    string(e.Action),
		From:      string(e.From),
		To:        string(e.To),
		Reason:    e.Reason,
		At:        formatTime(e.At),
	}
}

func toBenefitDTO(b payroll.AncillaryBenefit) BenefitDTO {
	return BenefitDTO{
		ID:              string(b.ID),
		EmployeeID:      string(b.EmployeeID),
		TemplateID:      b.TemplateID,
		Kind:            string(b.Kind),
		Amount:          b.Amount.String(),
		State:           string(b.State),
		ReviewedBy:      b.ReviewedBy,
		ReviewedAt:      formatTimePtr(b.ReviewedAt),
		RejectionReason: b.RejectionReason,
		CreatedBy:       b.CreatedBy,
		CreatedAt:       formatTime(b.CreatedAt),
	}
}

func toApplicationDTO(a payroll.BenefitApplication) ApplicationDTO {
	return ApplicationDTO{
		EmployeeID: string(a.EmployeeID),
		BenefitID:  string(a.BenefitID),
		RunID:      string(a.RunID),
		Amount:     a.Amount.String(),
		Field:      string(a.Field),
		AppliedBy:  a.AppliedBy,
		AppliedAt:  formatTime(a.AppliedAt),
	}
}

func toRefundDTO(r payroll.Refund) RefundDTO {
	return RefundDTO{
		ID:          string(r.ID),
		EmployeeID:  string(r.EmployeeID),
		Amount:      r.Amount.String(),
		Description: r.Description,
		Status:      string(r.Status),
		PaidInRun:   string(r.PaidInRun),
		PaidAt:      formatTimePtr(r.PaidAt),
		CreatedBy:   r.CreatedBy,
		CreatedAt:   formatTime(r.CreatedAt),
	}
}

func toEmployeeDTO(e payroll.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:        string(e.ID),
		Name:      e.Name,
		Email:     e.Email,
		Entity:    e.Entity,
		CreatedAt: formatTime(e.CreatedAt),
	}
}
