package payroll

import "github.com/warp/payroll-engine/generic"

// =============================================================================
// ACTIONS - What a ledger entry records
// =============================================================================

type Action string

const (
	ActionCreate         Action = "CREATE"
	ActionReview         Action = "REVIEW"
	ActionPublish        Action = "PUBLISH"
	ActionManagerApprove Action = "MANAGER_APPROVE"
	ActionManagerReject  Action = "MANAGER_REJECT"
	ActionFinanceApprove Action = "FINANCE_APPROVE"
	ActionFinanceReject  Action = "FINANCE_REJECT"
	ActionLock           Action = "LOCK"
	ActionUnlock         Action = "UNLOCK"
	ActionResubmit       Action = "RESUBMIT"
)

// RequiresReason reports whether the action must carry a reason.
func (a Action) RequiresReason() bool {
	switch a {
	case ActionManagerReject, ActionFinanceReject, ActionUnlock:
		return true
	}
	return false
}

// =============================================================================
// TRANSITIONS - The run lifecycle as data
// =============================================================================

// Happy path:
//
//	DRAFT → UNDER_REVIEW → PUBLISHED → MANAGER_APPROVED → FINANCE_APPROVED ⇄ LOCKED
//
// Rejections park the run in MANAGER_REJECTED / FINANCE_REJECTED until the
// specialist resubmits it, which returns it to DRAFT.
var runTransitions = []generic.Transition[RunStatus, Action]{
	{From: []RunStatus{StatusDraft}, Action: ActionReview, To: StatusUnderReview},
	{From: []RunStatus{StatusUnderReview}, Action: ActionPublish, To: StatusPublished},
	{From: []RunStatus{StatusPublished}, Action: ActionManagerApprove, To: StatusManagerApproved},
	{From: []RunStatus{StatusPublished}, Action: ActionManagerReject, To: StatusManagerRejected},
	{From: []RunStatus{StatusManagerApproved}, Action: ActionFinanceApprove, To: StatusFinanceApproved},
	{From: []RunStatus{StatusManagerApproved}, Action: ActionFinanceReject, To: StatusFinanceRejected},
	{From: []RunStatus{StatusFinanceApproved}, Action: ActionLock, To: StatusLocked},
	{From: []RunStatus{StatusLocked}, Action: ActionUnlock, To: StatusFinanceApproved},
	{From: []RunStatus{StatusManagerRejected, StatusFinanceRejected}, Action: ActionResubmit, To: StatusDraft},
}

// RunWorkflow is the run state machine.
var RunWorkflow = generic.NewWorkflow(runTransitions)

// =============================================================================
// OPERATIONS & CAPABILITIES - Who may do what
// =============================================================================

type Operation string

const (
	OpCreateRun      Operation = "create_run"
	OpReview         Operation = "review_run"
	OpPublish        Operation = "publish_run"
	OpManagerApprove Operation = "manager_approve_run"
	OpManagerReject  Operation = "manager_reject_run"
	OpFinanceApprove Operation = "finance_approve_run"
	OpFinanceReject  Operation = "finance_reject_run"
	OpLock           Operation = "lock_run"
	OpUnlock         Operation = "unlock_run"
	OpResubmit       Operation = "resubmit_run"

	OpUpsertPayLines Operation = "upsert_pay_lines"
	OpEditPayLine    Operation = "edit_pay_line"

	OpCreateBenefit  Operation = "create_benefit"
	OpReviewBenefit  Operation = "review_benefit"
	OpProcessBenefit Operation = "process_benefit"

	OpCreateRefund   Operation = "create_refund"
	OpMarkRefundPaid Operation = "mark_refund_paid"
)

var (
	specialistOnly  = []generic.Role{generic.RoleSpecialist}
	managerOnly     = []generic.Role{generic.RolePayrollManager}
	financeOnly     = []generic.Role{generic.RoleFinanceStaff}
	specialistOrMgr = []generic.Role{generic.RoleSpecialist, generic.RolePayrollManager}
)

// DefaultCapabilities is the role table for every payroll operation.
var DefaultCapabilities = generic.Capabilities[Operation]{
	OpCreateRun:      specialistOnly,
	OpReview:         specialistOnly,
	OpPublish:        specialistOnly,
	OpManagerApprove: managerOnly,
	OpManagerReject:  managerOnly,
	OpFinanceApprove: financeOnly,
	OpFinanceReject:  financeOnly,
	OpLock:           managerOnly,
	OpUnlock:         managerOnly,
	OpResubmit:       specialistOnly,

	OpUpsertPayLines: specialistOnly,
	OpEditPayLine:    specialistOnly,

	OpCreateBenefit:  specialistOnly,
	OpReviewBenefit:  specialistOrMgr,
	OpProcessBenefit: specialistOnly,

	OpCreateRefund:   specialistOnly,
	OpMarkRefundPaid: specialistOrMgr,
}

// actionOperations maps each run action to the capability it requires.
var actionOperations = map[Action]Operation{
	ActionCreate:         OpCreateRun,
	ActionReview:         OpReview,
	ActionPublish:        OpPublish,
	ActionManagerApprove: OpManagerApprove,
	ActionManagerReject:  OpManagerReject,
	ActionFinanceApprove: OpFinanceApprove,
	ActionFinanceReject:  OpFinanceReject,
	ActionLock:           OpLock,
	ActionUnlock:         OpUnlock,
	ActionResubmit:       OpResubmit,
}

// OperationFor returns the capability an action requires.
func OperationFor(a Action) Operation { return actionOperations[a] }
