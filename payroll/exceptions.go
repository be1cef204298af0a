/*
exceptions.go - Deterministic exception scan over pay lines

PURPOSE:
  The ExceptionEngine looks at a run's pay lines and reports the data
  problems a specialist must see before the run goes to managers. It is a
  pure function: no store access, no memory between calls. Re-running it
  after a correction is how a previously reported issue disappears.

RULES (applied per line, in this order):
  1. bank status is not READY        → critical  "bank details missing/invalid"
  2. net pay < 0                     → critical  "negative net pay"
  3. 0 <= net pay < minimum wage     → warning   "below minimum wage"

  Critical issues block Publish. Warnings are reported but never block.

DETERMINISM:
  Lines are scanned in ascending employee id order, so the report does not
  depend on the order the store returned them in.

EXAMPLE:
  engine := NewExceptionEngine(MinimumWagePolicy{Default: generic.NewMoney(5000)})
  report := engine.Scan("acme", lines)
  if report.Blocking() { ... }
*/
package payroll

import (
	"sort"
	"strings"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// ISSUES
// =============================================================================

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

type IssueCode string

const (
	IssueBankDetails      IssueCode = "bank_details"
	IssueNegativeNetPay   IssueCode = "negative_net_pay"
	IssueBelowMinimumWage IssueCode = "below_minimum_wage"
)

var issueText = map[IssueCode]string{
	IssueBankDetails:      "bank details missing/invalid",
	IssueNegativeNetPay:   "negative net pay",
	IssueBelowMinimumWage: "below minimum wage",
}

// Issue is one exception found on one pay line.
type Issue struct {
	EmployeeID EmployeeID
	Code       IssueCode
	Issue      string
	Severity   Severity
}

// ExceptionReport is the result of scanning a run.
type ExceptionReport struct {
	Issues         []Issue
	CriticalCount  int
	WarningCount   int
	TotalEmployees int
	TotalNetPay    generic.Money
}

// Blocking reports whether any critical issue remains.
func (r ExceptionReport) Blocking() bool { return r.CriticalCount > 0 }

// Critical returns only the critical issues.
func (r ExceptionReport) Critical() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity == SeverityCritical {
			out = append(out, is)
		}
	}
	return out
}

// For returns the issues of one employee.
func (r ExceptionReport) For(employeeID EmployeeID) []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.EmployeeID == employeeID {
			out = append(out, is)
		}
	}
	return out
}

// =============================================================================
// MINIMUM WAGE
// =============================================================================

// MinimumWagePolicy is the configured threshold. Entities may override the
// default; a zero threshold disables the warning.
type MinimumWagePolicy struct {
	Default   generic.Money
	PerEntity map[string]generic.Money
}

// For returns the threshold that applies to entity. Entity names match
// case-insensitively since config keys arrive lower-cased.
func (p MinimumWagePolicy) For(entity string) generic.Money {
	if m, ok := p.PerEntity[entity]; ok {
		return m
	}
	if m, ok := p.PerEntity[strings.ToLower(entity)]; ok {
		return m
	}
	return p.Default
}

// =============================================================================
// ENGINE
// =============================================================================

type ExceptionEngine struct {
	MinimumWage MinimumWagePolicy
}

func NewExceptionEngine(minimumWage MinimumWagePolicy) *ExceptionEngine {
	return &ExceptionEngine{MinimumWage: minimumWage}
}

// Scan checks every line of an entity's run.
func (e *ExceptionEngine) Scan(entity string, lines []PayLine) ExceptionReport {
	ordered := make([]PayLine, len(lines))
	copy(ordered, lines)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EmployeeID < ordered[j].EmployeeID
	})

	threshold := e.MinimumWage.For(entity)
	report := ExceptionReport{TotalNetPay: generic.ZeroMoney}
	for _, line := range ordered {
		report.TotalEmployees++
		report.TotalNetPay = report.TotalNetPay.Add(line.NetPay)
		for _, is := range scanLine(line, threshold) {
			switch is.Severity {
			case SeverityCritical:
				report.CriticalCount++
			case SeverityWarning:
				report.WarningCount++
			}
			report.Issues = append(report.Issues, is)
		}
	}
	return report
}

// ScanLine checks a single line.
func (e *ExceptionEngine) ScanLine(entity string, line PayLine) []Issue {
	return scanLine(line, e.MinimumWage.For(entity))
}

func scanLine(line PayLine, minimumWage generic.Money) []Issue {
	var issues []Issue
	if line.BankStatus != BankReady {
		issues = append(issues, newIssue(line.EmployeeID, IssueBankDetails, SeverityCritical))
	}
	if line.NetPay.IsNegative() {
		issues = append(issues, newIssue(line.EmployeeID, IssueNegativeNetPay, SeverityCritical))
	} else if line.NetPay.LessThan(minimumWage) {
		issues = append(issues, newIssue(line.EmployeeID, IssueBelowMinimumWage, SeverityWarning))
	}
	return issues
}

func newIssue(employeeID EmployeeID, code IssueCode, severity Severity) Issue {
	return Issue{EmployeeID: employeeID, Code: code, Issue: issueText[code], Severity: severity}
}

// issueNotes renders issues as the free-text notes stored on a pay line.
func issueNotes(issues []Issue) []string {
	if len(issues) == 0 {
		return nil
	}
	notes := make([]string, len(issues))
	for i, is := range issues {
		notes[i] = string(is.Severity) + ": " + is.Issue
	}
	return notes
}
