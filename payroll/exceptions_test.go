package payroll_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

func engineWithMinimum(amount int64) *payroll.ExceptionEngine {
	return payroll.NewExceptionEngine(payroll.MinimumWagePolicy{Default: generic.NewMoney(amount)})
}

func scanned(id string, bank payroll.BankStatus, net int64) payroll.PayLine {
	return payroll.PayLine{EmployeeID: payroll.EmployeeID(id), BankStatus: bank, NetPay: generic.NewMoney(net)}
}

// =============================================================================
// RULES
// =============================================================================

func TestScan_MissingBankAndBelowMinimum(t *testing.T) {
	// GIVEN: Minimum wage 5000 and a line {MISSING, 4000}
	// WHEN: The run is scanned
	// THEN: Two issues, one critical (bank), one warning (minimum wage)
	report := engineWithMinimum(5000).Scan("acme", []payroll.PayLine{scanned("e-1", payroll.BankMissing, 4000)})

	require.Len(t, report.Issues, 2)
	assert.Equal(t, 1, report.CriticalCount)
	assert.Equal(t, 1, report.WarningCount)
	assert.True(t, report.Blocking())

	assert.Equal(t, payroll.IssueBankDetails, report.Issues[0].Code)
	assert.Equal(t, payroll.SeverityCritical, report.Issues[0].Severity)
	assert.Equal(t, "bank details missing/invalid", report.Issues[0].Issue)
	assert.Equal(t, payroll.IssueBelowMinimumWage, report.Issues[1].Code)
	assert.Equal(t, payroll.SeverityWarning, report.Issues[1].Severity)
}

func TestScan_CleanLine(t *testing.T) {
	report := engineWithMinimum(5000).Scan("acme", []payroll.PayLine{scanned("e-1", payroll.BankReady, 6000)})

	assert.Empty(t, report.Issues)
	assert.False(t, report.Blocking())
	assert.Equal(t, 1, report.TotalEmployees)
	assert.Equal(t, "6000.00", report.TotalNetPay.String())
}

func TestScan_InvalidBankIsCritical(t *testing.T) {
	report := engineWithMinimum(0).Scan("acme", []payroll.PayLine{scanned("e-1", payroll.BankInvalid, 6000)})
	require.Len(t, report.Issues, 1)
	assert.Equal(t, payroll.IssueBankDetails, report.Issues[0].Code)
	assert.Equal(t, 1, report.CriticalCount)
}

func TestScan_NegativeNetPay_CriticalWithoutWageWarning(t *testing.T) {
	// GIVEN: A line with negative net pay under a positive minimum
	// THEN: Exactly one critical issue, no minimum-wage warning on top
	report := engineWithMinimum(5000).Scan("acme", []payroll.PayLine{scanned("e-1", payroll.BankReady, -250)})

	require.Len(t, report.Issues, 1)
	assert.Equal(t, payroll.IssueNegativeNetPay, report.Issues[0].Code)
	assert.Equal(t, payroll.SeverityCritical, report.Issues[0].Severity)
	assert.Equal(t, 0, report.WarningCount)
}

func TestScan_ZeroMinimumDisablesWarning(t *testing.T) {
	report := engineWithMinimum(0).Scan("acme", []payroll.PayLine{scanned("e-1", payroll.BankReady, 10)})
	assert.Empty(t, report.Issues)
}

func TestScan_ExactlyMinimumIsNotBelow(t *testing.T) {
	report := engineWithMinimum(5000).Scan("acme", []payroll.PayLine{scanned("e-1", payroll.BankReady, 5000)})
	assert.Empty(t, report.Issues)
}

func TestScan_WarningsDoNotBlock(t *testing.T) {
	report := engineWithMinimum(5000).Scan("acme", []payroll.PayLine{scanned("e-1", payroll.BankReady, 100)})
	assert.Equal(t, 1, report.WarningCount)
	assert.False(t, report.Blocking())
	assert.Empty(t, report.Critical())
}

// =============================================================================
// DETERMINISM
// =============================================================================

func TestScan_DeterministicAndOrderIndependent(t *testing.T) {
	// GIVEN: The same lines in two different orders
	// WHEN: Each order is scanned (twice)
	// THEN: The reports are identical and issues are ordered by employee
	engine := engineWithMinimum(5000)
	lines := []payroll.PayLine{
		scanned("e-3", payroll.BankInvalid, 4000),
		scanned("e-1", payroll.BankReady, -10),
		scanned("e-2", payroll.BankMissing, 7000),
		scanned("e-4", payroll.BankReady, 9000),
	}
	reversed := make([]payroll.PayLine, len(lines))
	for i := range lines {
		reversed[len(lines)-1-i] = lines[i]
	}

	first := engine.Scan("acme", lines)
	assert.Equal(t, first, engine.Scan("acme", lines))
	assert.Equal(t, first, engine.Scan("acme", reversed))

	var order []payroll.EmployeeID
	for _, is := range first.Issues {
		order = append(order, is.EmployeeID)
	}
	assert.Equal(t, []payroll.EmployeeID{"e-1", "e-2", "e-3", "e-3"}, order)
	assert.Equal(t, 3, first.CriticalCount)
	assert.Equal(t, 1, first.WarningCount)
	assert.Equal(t, 4, first.TotalEmployees)
}

func TestScan_DoesNotReorderCallerSlice(t *testing.T) {
	lines := []payroll.PayLine{scanned("e-2", payroll.BankReady, 6000), scanned("e-1", payroll.BankReady, 6000)}
	engineWithMinimum(0).Scan("acme", lines)
	assert.Equal(t, payroll.EmployeeID("e-2"), lines[0].EmployeeID)
}

func TestReport_For(t *testing.T) {
	report := engineWithMinimum(5000).Scan("acme", []payroll.PayLine{
		scanned("e-1", payroll.BankMissing, 4000),
		scanned("e-2", payroll.BankReady, 6000),
	})
	assert.Len(t, report.For("e-1"), 2)
	assert.Empty(t, report.For("e-2"))
}

// =============================================================================
// MINIMUM WAGE POLICY
// =============================================================================

func TestMinimumWagePolicy_PerEntityOverride(t *testing.T) {
	// GIVEN: Default 4000 and an override of 5000 for "acme" (lower-cased key)
	// THEN: "ACME" and "acme" use 5000, other entities the default
	policy := payroll.MinimumWagePolicy{
		Default:   generic.NewMoney(4000),
		PerEntity: map[string]generic.Money{"acme": generic.NewMoney(5000)},
	}
	assert.Equal(t, "5000.00", policy.For("acme").String())
	assert.Equal(t, "5000.00", policy.For("ACME").String())
	assert.Equal(t, "4000.00", policy.For("globex").String())

	engine := payroll.NewExceptionEngine(policy)
	line := scanned("e-1", payroll.BankReady, 4500)
	assert.Len(t, engine.ScanLine("ACME", line), 1)
	assert.Empty(t, engine.ScanLine("globex", line))
}

// =============================================================================
// BANK ACCOUNTS
// =============================================================================

func TestValidBankAccount(t *testing.T) {
	tests := []struct {
		account string
		valid   bool
	}{
		{"GB29NWBK60161331926819", true},
		{"12345678", true},
		{"1234567", false},
		{"GB29-NWBK-6016", false},
		{"ÄB29NWBK60161331926819", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, payroll.ValidBankAccount(tt.account), "account %q", tt.account)
	}
}

func TestNormalizeBankAccount(t *testing.T) {
	assert.Equal(t, "GB29NWBK60161331926819", payroll.NormalizeBankAccount(" gb29 nwbk 6016 1331 9268 19 "))
}
