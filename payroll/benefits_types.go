package payroll

import (
	"time"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// BENEFIT TEMPLATES - Configuration-defined payouts
// =============================================================================

type BenefitKind string

const (
	KindSigningBonus BenefitKind = "SIGNING_BONUS"
	KindTermination  BenefitKind = "TERMINATION"
	KindResignation  BenefitKind = "RESIGNATION"
)

func (k BenefitKind) Valid() bool {
	switch k {
	case KindSigningBonus, KindTermination, KindResignation:
		return true
	}
	return false
}

// PayField is the pay line column a benefit kind posts into.
type PayField string

const (
	FieldBonus   PayField = "bonus"
	FieldBenefit PayField = "benefit"
)

// Field returns where the kind is posted: signing bonuses go to bonus,
// termination and resignation benefits go to benefit.
func (k BenefitKind) Field() PayField {
	if k == KindSigningBonus {
		return FieldBonus
	}
	return FieldBenefit
}

type BenefitTemplate struct {
	ID            string
	Name          string
	Kind          BenefitKind
	DefaultAmount generic.Money
	Description   string
}

// =============================================================================
// ANCILLARY BENEFIT - One payout instance with its own review
// =============================================================================

type ReviewState string

const (
	ReviewPending  ReviewState = "PENDING"
	ReviewApproved ReviewState = "APPROVED"
	ReviewRejected ReviewState = "REJECTED"
)

func (s ReviewState) Valid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return true
	}
	return false
}

type ReviewAction string

const (
	ReviewApprove ReviewAction = "APPROVE"
	ReviewReject  ReviewAction = "REJECT"
)

func ParseReviewAction(s string) (ReviewAction, bool) {
	switch a := ReviewAction(s); a {
	case ReviewApprove, ReviewReject:
		return a, true
	}
	return "", false
}

var benefitWorkflow = generic.NewWorkflow([]generic.Transition[ReviewState, ReviewAction]{
	{From: []ReviewState{ReviewPending}, Action: ReviewApprove, To: ReviewApproved},
	{From: []ReviewState{ReviewPending}, Action: ReviewReject, To: ReviewRejected},
})

type AncillaryBenefit struct {
	ID         BenefitID
	EmployeeID EmployeeID
	TemplateID string
	Kind       BenefitKind
	Amount     generic.Money

	State           ReviewState
	ReviewedBy      string
	ReviewedAt      *time.Time
	RejectionReason string

	CreatedBy string
	CreatedAt time.Time
}

// BenefitApplication records that a benefit was posted to a run. The triple
// (employee, benefit, run) is unique.
type BenefitApplication struct {
	EmployeeID EmployeeID
	BenefitID  BenefitID
	RunID      RunID
	Amount     generic.Money
	Field      PayField
	AppliedBy  string
	AppliedAt  time.Time
}

// =============================================================================
// REFUNDS
// =============================================================================

type RefundStatus string

const (
	RefundPending RefundStatus = "PENDING"
	RefundPaid    RefundStatus = "PAID"
)

type Refund struct {
	ID          RefundID
	EmployeeID  EmployeeID
	Amount      generic.Money
	Description string
	Status      RefundStatus

	PaidInRun RunID
	PaidAt    *time.Time

	CreatedBy string
	CreatedAt time.Time
}

// =============================================================================
// EMPLOYEES - Minimal directory used to label pay lines
// =============================================================================

type Employee struct {
	ID        EmployeeID
	Name      string
	Email     string
	Entity    string
	CreatedAt time.Time
}
