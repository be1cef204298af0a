/*
templates.go - Pre-built benefit templates

PURPOSE:
  Ready-to-use templates for the three ancillary payouts. Deployments that
  need other amounts load their own from JSON (see factory/benefit.go); these
  seed demos and tests.

AVAILABLE TEMPLATES:
  SigningBonusTemplate:  one-off joining bonus, posted to the bonus column
  TerminationTemplate:   end-of-service benefit on termination
  ResignationTemplate:   end-of-service benefit on resignation
*/
package payroll

import "github.com/warp/payroll-engine/generic"

func SigningBonusTemplate(id string, amount generic.Money) BenefitTemplate {
	return BenefitTemplate{
		ID:            id,
		Name:          "Signing Bonus",
		Kind:          KindSigningBonus,
		DefaultAmount: amount,
		Description:   "One-off bonus paid with the first payroll after joining",
	}
}

func TerminationTemplate(id string, amount generic.Money) BenefitTemplate {
	return BenefitTemplate{
		ID:            id,
		Name:          "Termination Benefit",
		Kind:          KindTermination,
		DefaultAmount: amount,
		Description:   "End-of-service benefit paid on termination",
	}
}

func ResignationTemplate(id string, amount generic.Money) BenefitTemplate {
	return BenefitTemplate{
		ID:            id,
		Name:          "Resignation Benefit",
		Kind:          KindResignation,
		DefaultAmount: amount,
		Description:   "End-of-service benefit paid on resignation",
	}
}

// DefaultBenefitTemplates is the preset catalog used when no file is configured.
func DefaultBenefitTemplates() []BenefitTemplate {
	return []BenefitTemplate{
		SigningBonusTemplate("signing-bonus", generic.NewMoney(2000)),
		TerminationTemplate("termination", generic.NewMoney(5000)),
		ResignationTemplate("resignation", generic.NewMoney(3000)),
	}
}
