package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// PAY PERIOD - One calendar month
// =============================================================================

// PayPeriod is the calendar month a payroll run covers. It is identified by
// its last day, which is how runs are keyed (entity + period end).
//
// Examples:
//   - "2025-03"    → March 2025, ends 2025-03-31
//   - "2025-02-28" → February 2025 (any date inside the month works)
type PayPeriod struct {
	Start TimePoint
	End   TimePoint
}

// PeriodForMonth returns the pay period of the given month.
func PeriodForMonth(year int, month time.Month) PayPeriod {
	return PayPeriod{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

// PeriodContaining returns the pay period whose month contains t.
func PeriodContaining(t time.Time) PayPeriod {
	return PeriodForMonth(t.Year(), t.Month())
}

// ParsePayPeriod accepts "YYYY-MM" or "YYYY-MM-DD".
func ParsePayPeriod(s string) (PayPeriod, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01", s); err == nil {
		return PeriodContaining(t), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return PeriodContaining(t), nil
	}
	return PayPeriod{}, fmt.Errorf("%w: %q (use YYYY-MM or YYYY-MM-DD)", ErrInvalidPeriod, s)
}

// Key is the canonical storage form of the period (its end date).
func (p PayPeriod) Key() string { return p.End.String() }

// Label is the human form, e.g. "2025-03".
func (p PayPeriod) Label() string { return p.End.Time.Format("2006-01") }

func (p PayPeriod) IsZero() bool { return p.End.IsZero() }

// Contains returns true if t falls inside the period.
func (p PayPeriod) Contains(t TimePoint) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

func (p PayPeriod) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
