/*
Package export writes the payroll register workbook.

PURPOSE:
  Finance signs off on a spreadsheet, not on JSON. WriteRegister renders a
  run as an XLSX workbook with two sheets:

    Register    one row per pay line, then a totals row
    Exceptions  the current exception scan, one row per issue

  Amounts are written as numbers with two decimals so the sheet sums them
  the same way the engine did.
*/
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

const (
	registerSheet   = "Register"
	exceptionsSheet = "Exceptions"
)

var registerHeader = []any{
	"Employee ID", "Employee", "Base Salary", "Allowances", "Deductions",
	"Bonus", "Benefit", "Net Pay", "Bank Status", "Bank Account", "Exceptions",
}

var exceptionsHeader = []any{"Employee ID", "Severity", "Issue"}

// WriteRegister renders run, its lines and report into w.
func WriteRegister(w io.Writer, run *payroll.PayrollRun, lines []payroll.PayLine, report payroll.ExceptionReport) error {
	f := excelize.NewFile()
	defer f.Close()

	// NewFile creates "Sheet1"; rename it instead of leaving an empty sheet.
	if err := f.SetSheetName("Sheet1", registerSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(exceptionsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	if err := writeRegisterSheet(f, run, lines); err != nil {
		return err
	}
	if err := writeExceptionsSheet(f, report); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRegisterSheet(f *excelize.File, run *payroll.PayrollRun, lines []payroll.PayLine) error {
	title := fmt.Sprintf("%s payroll %s (%s)", run.Entity, run.Period.Label(), run.Status)
	if err := f.SetCellValue(registerSheet, "A1", title); err != nil {
		return err
	}
	if err := setRow(f, registerSheet, 3, registerHeader); err != nil {
		return err
	}

	money := moneyStyle(f)
	totals := make([]generic.Money, 6)
	for i := range totals {
		totals[i] = generic.ZeroMoney
	}

	row := 4
	for _, l := range lines {
		amounts := []generic.Money{l.BaseSalary, l.Allowances, l.Deductions, l.Bonus, l.Benefit, l.NetPay}
		values := []any{string(l.EmployeeID), l.EmployeeName}
		for i, a := range amounts {
			values = append(values, a.InexactFloat64())
			totals[i] = totals[i].Add(a)
		}
		values = append(values, string(l.BankStatus), l.BankAccountNumber, joinNotes(l.Exceptions))
		if err := setRow(f, registerSheet, row, values); err != nil {
			return err
		}
		row++
	}

	totalRow := []any{"TOTAL", fmt.Sprintf("%d employees", len(lines))}
	for _, t := range totals {
		totalRow = append(totalRow, t.InexactFloat64())
	}
	if err := setRow(f, registerSheet, row, totalRow); err != nil {
		return err
	}

	if money != 0 {
		first, err := excelize.CoordinatesToCellName(3, 4)
		if err != nil {
			return err
		}
		last, err := excelize.CoordinatesToCellName(8, row)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(registerSheet, first, last, money); err != nil {
			return err
		}
	}
	return f.SetColWidth(registerSheet, "A", "K", 16)
}

func writeExceptionsSheet(f *excelize.File, report payroll.ExceptionReport) error {
	summary := fmt.Sprintf("%d critical, %d warning, %d employees",
		report.CriticalCount, report.WarningCount, report.TotalEmployees)
	if err := f.SetCellValue(exceptionsSheet, "A1", summary); err != nil {
		return err
	}
	if err := setRow(f, exceptionsSheet, 3, exceptionsHeader); err != nil {
		return err
	}
	for i, is := range report.Issues {
		values := []any{string(is.EmployeeID), string(is.Severity), is.Issue}
		if err := setRow(f, exceptionsSheet, 4+i, values); err != nil {
			return err
		}
	}
	return f.SetColWidth(exceptionsSheet, "A", "C", 24)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// moneyStyle returns a "#,##0.00" number style, or 0 if it cannot be made.
func moneyStyle(f *excelize.File) int {
	format := "#,##0.00"
	id, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return 0
	}
	return id
}

func joinNotes(notes []string) string {
	out := ""
	for i, n := range notes {
		if i > 0 {
			out += "; "
		}
		out += n
	}
	return out
}
