/*
Package generic provides the domain-agnostic workflow engine.

PURPOSE:
  This package contains the building blocks every approval workflow in the
  service is assembled from: money, pay periods, roles, a capability table,
  a transition table, and an append-only ledger. The payroll package plugs
  its own statuses and actions into these pieces; nothing here knows what
  a payroll run is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A decimal monetary amount (never float64)
  - Role: The capability class of a caller (specialist, manager, finance)
  - Actor: Who is calling (id + role)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Data over code: Role rules and transitions are tables, not if-chains
  3. Immutability: Ledger entries are never modified
  4. Type Safety: Statuses and actions are closed string types

USAGE:
  net := generic.NewMoney(4000)
  actor := generic.Actor{ID: "u-1", Role: generic.RoleSpecialist}

SEE ALSO:
  - capability.go: (operation, role) → allow/deny
  - workflow.go: (status, action) → status
  - ledger.go: Append-only audit trail
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal monetary amount
// =============================================================================

type Money struct {
	decimal.Decimal
}

var ZeroMoney = Money{Decimal: decimal.Zero}

func NewMoney(value int64) Money            { return Money{Decimal: decimal.NewFromInt(value)} }
func NewMoneyFromFloat(value float64) Money { return Money{Decimal: decimal.NewFromFloat(value)} }
func MoneyOf(d decimal.Decimal) Money       { return Money{Decimal: d} }

// ParseMoney parses a decimal string such as "4000" or "1250.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{Decimal: d}, nil
}

// MoneyOrZero parses s and returns zero when it is malformed.
func MoneyOrZero(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		return ZeroMoney
	}
	return m
}

func (m Money) Add(o Money) Money         { return Money{Decimal: m.Decimal.Add(o.Decimal)} }
func (m Money) Sub(o Money) Money         { return Money{Decimal: m.Decimal.Sub(o.Decimal)} }
func (m Money) Neg() Money                { return Money{Decimal: m.Decimal.Neg()} }
func (m Money) LessThan(o Money) bool     { return m.Decimal.LessThan(o.Decimal) }
func (m Money) GreaterThan(o Money) bool  { return m.Decimal.GreaterThan(o.Decimal) }
func (m Money) Equal(o Money) bool        { return m.Decimal.Equal(o.Decimal) }
func (m Money) String() string            { return m.Decimal.StringFixed(2) }

// =============================================================================
// ROLES AND ACTORS
// =============================================================================

// Role is a capability class, not an identity. Two specialists are
// interchangeable as far as the capability table is concerned.
type Role string

const (
	RoleSpecialist     Role = "payroll_specialist"
	RolePayrollManager Role = "payroll_manager"
	RoleFinanceStaff   Role = "finance_staff"
)

// Roles lists every known role.
var Roles = []Role{RoleSpecialist, RolePayrollManager, RoleFinanceStaff}

// ParseRole converts a wire value into a Role.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Actor is the caller of an operation.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) String() string { return a.ID + "(" + string(a.Role) + ")" }
