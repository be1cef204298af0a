package payroll

import (
	"fmt"

	"github.com/warp/payroll-engine/generic"
)

// ExceptionBlockedError is returned by Publish while critical exceptions
// remain. Issues lists every exception found (critical and warning) so the
// caller can fix the lines and retry.
type ExceptionBlockedError struct {
	RunID  RunID
	Report ExceptionReport
}

func (e *ExceptionBlockedError) Error() string {
	return fmt.Sprintf("run %s has %d critical exception(s)", e.RunID, e.Report.CriticalCount)
}

func (e *ExceptionBlockedError) Unwrap() error { return generic.ErrExceptionBlocked }

// Issues returns the reported issues.
func (e *ExceptionBlockedError) Issues() []Issue { return e.Report.Issues }

func runNotFound(id RunID) error {
	return &generic.NotFoundError{Kind: "run", ID: string(id)}
}

func payLineNotFound(runID RunID, employeeID EmployeeID) error {
	return &generic.NotFoundError{Kind: "pay_line", ID: string(runID) + "/" + string(employeeID)}
}

func benefitNotFound(id BenefitID) error {
	return &generic.NotFoundError{Kind: "benefit", ID: string(id)}
}

func refundNotFound(id RefundID) error {
	return &generic.NotFoundError{Kind: "refund", ID: string(id)}
}
