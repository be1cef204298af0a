/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	payroll data. Each scenario drives the real service with demo actors, so
	every run it leaves behind has a genuine approval ledger.

AVAILABLE SCENARIOS:

	ready-to-publish:  Clean run under review, no critical exceptions
	blocked-publish:   Run under review with missing bank details and
	                   negative net pay; Publish is refused until corrected
	approval-chain:    Last month locked, this month awaiting finance
	rejected-run:      Run rejected by the payroll manager with a reason
	benefits-refunds:  Approved signing bonus, pending termination benefit,
	                   pending refund, all against a DRAFT run

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Seed benefit templates
 3. Create employees
 4. Create runs and upsert pay lines as the specialist
 5. Walk transitions as the role each step requires

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "blocked-publish"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Service-backed handlers
  - payroll/templates.go: Preset benefit templates
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "ready-to-publish",
		Name:        "Ready to Publish",
		Description: "Run under review with clean pay lines; publish succeeds",
	},
	{
		ID:          "blocked-publish",
		Name:        "Blocked Publish",
		Description: "Missing bank details and negative net pay block publication",
	},
	{
		ID:          "approval-chain",
		Name:        "Approval Chain",
		Description: "Previous month locked, current month approved by the manager",
	},
	{
		ID:          "rejected-run",
		Name:        "Rejected Run",
		Description: "Payroll manager rejected the run; specialist must resubmit",
	},
	{
		ID:          "benefits-refunds",
		Name:        "Benefits & Refunds",
		Description: "Signing bonus approved, termination benefit pending, refund owed",
	},
}

// Demo actors.
var (
	demoSpecialist = generic.Actor{ID: "sara.specialist", Role: generic.RoleSpecialist}
	demoManager    = generic.Actor{ID: "omar.manager", Role: generic.RolePayrollManager}
	demoFinance    = generic.Actor{ID: "lina.finance", Role: generic.RoleFinanceStaff}
)

const demoEntity = "acme"

// resetter is implemented by stores that can be wiped.
type resetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		if generic.IsClientError(err) || generic.IsNotFound(err) {
			writeServiceError(w, err)
			return
		}
		h.Logger.Error("scenario load failed", zap.String("scenario", req.ScenarioID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// ResetDatabase clears all data and re-seeds the benefit templates.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	loaders := map[string]func(context.Context) error{
		"ready-to-publish": h.loadReadyToPublish,
		"blocked-publish":  h.loadBlockedPublish,
		"approval-chain":   h.loadApprovalChain,
		"rejected-run":     h.loadRejectedRun,
		"benefits-refunds": h.loadBenefitsRefunds,
	}
	load, ok := loaders[id]
	if !ok {
		return &generic.ValidationError{Field: "scenario_id", Code: "unknown", Message: fmt.Sprintf("unknown scenario %q", id)}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.reset(ctx); err != nil {
		return err
	}
	if err := load(ctx); err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}
	h.currentScenario = id
	h.Logger.Info("scenario loaded", zap.String("scenario", id))
	return nil
}

func (h *Handler) reset(ctx context.Context) error {
	rs, ok := h.Service.Store.(resetter)
	if !ok {
		return fmt.Errorf("store does not support reset")
	}
	if err := rs.Reset(ctx); err != nil {
		return err
	}
	for _, t := range h.Templates {
		if err := h.Service.SaveBenefitTemplate(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SEED HELPERS
// =============================================================================

type demoLine struct {
	id, name     string
	base, allow  int64
	deduct       int64
	bankAccount  string
	netOverride  *int64
	bankOverride payroll.BankStatus
}

var demoStaff = []demoLine{
	{id: "e-100", name: "Aisha Rahman", base: 7200, allow: 800, deduct: 650, bankAccount: "SA0380000000608010167519"},
	{id: "e-101", name: "Daniel Okafor", base: 6100, allow: 500, deduct: 540, bankAccount: "GB29NWBK60161331926819"},
	{id: "e-102", name: "Mei Tanaka", base: 5400, allow: 400, deduct: 380, bankAccount: "DE89370400440532013000"},
	{id: "e-103", name: "Jonas Berg", base: 4300, allow: 200, deduct: 300, bankAccount: "NO9386011117947"},
}

func (h *Handler) seedEmployees(ctx context.Context, staff []demoLine) error {
	for _, s := range staff {
		emp := payroll.Employee{
			ID:     payroll.EmployeeID(s.id),
			Name:   s.name,
			Email:  s.id + "@acme.example",
			Entity: demoEntity,
		}
		if err := h.Service.SaveEmployee(ctx, emp); err != nil {
			return err
		}
	}
	return nil
}

func roster(staff []demoLine) []payroll.EmployeeID {
	out := make([]payroll.EmployeeID, len(staff))
	for i, s := range staff {
		out[i] = payroll.EmployeeID(s.id)
	}
	return out
}

func lineInputs(staff []demoLine) []payroll.PayLineInput {
	out := make([]payroll.PayLineInput, len(staff))
	for i, s := range staff {
		in := payroll.PayLineInput{
			EmployeeID:        payroll.EmployeeID(s.id),
			EmployeeName:      s.name,
			BaseSalary:        generic.NewMoney(s.base),
			Allowances:        generic.NewMoney(s.allow),
			Deductions:        generic.NewMoney(s.deduct),
			BankAccountNumber: s.bankAccount,
			BankStatus:        s.bankOverride,
		}
		if s.netOverride != nil {
			net := generic.NewMoney(*s.netOverride)
			in.NetPay = &net
		}
		out[i] = in
	}
	return out
}

// seedRun creates a run for period, fills its lines and walks it through
// the given steps.
func (h *Handler) seedRun(ctx context.Context, period generic.PayPeriod, staff []demoLine, steps ...func(payroll.RunID) error) (payroll.RunID, error) {
	run, err := h.Service.CreateRun(ctx, payroll.CreateRunInput{
		Entity: demoEntity,
		Period: period,
		Roster: roster(staff),
		Actor:  demoSpecialist,
	})
	if err != nil {
		return "", err
	}
	if _, err := h.Service.UpsertPayLines(ctx, run.ID, demoSpecialist, lineInputs(staff)); err != nil {
		return "", err
	}
	for _, step := range steps {
		if err := step(run.ID); err != nil {
			return "", err
		}
	}
	return run.ID, nil
}

func (h *Handler) step(ctx context.Context, action payroll.Action, actor generic.Actor, reason string) func(payroll.RunID) error {
	return func(id payroll.RunID) error {
		_, err := h.Service.Transition(ctx, payroll.TransitionInput{RunID: id, Action: action, Actor: actor, Reason: reason})
		return err
	}
}

func (h *Handler) currentPeriod() generic.PayPeriod {
	return generic.PeriodContaining(h.Service.Clock())
}

func (h *Handler) previousPeriod() generic.PayPeriod {
	now := h.Service.Clock()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return generic.PeriodContaining(first.AddDate(0, -1, 0))
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadReadyToPublish(ctx context.Context) error {
	if err := h.seedEmployees(ctx, demoStaff); err != nil {
		return err
	}
	_, err := h.seedRun(ctx, h.currentPeriod(), demoStaff,
		h.step(ctx, payroll.ActionReview, demoSpecialist, ""),
	)
	return err
}

func (h *Handler) loadBlockedPublish(ctx context.Context) error {
	negative := int64(-250)
	staff := append([]demoLine(nil), demoStaff...)
	staff[1].bankAccount = ""
	staff[3].netOverride = &negative

	if err := h.seedEmployees(ctx, staff); err != nil {
		return err
	}
	_, err := h.seedRun(ctx, h.currentPeriod(), staff,
		h.step(ctx, payroll.ActionReview, demoSpecialist, ""),
	)
	return err
}

func (h *Handler) loadApprovalChain(ctx context.Context) error {
	if err := h.seedEmployees(ctx, demoStaff); err != nil {
		return err
	}
	if _, err := h.seedRun(ctx, h.previousPeriod(), demoStaff,
		h.step(ctx, payroll.ActionReview, demoSpecialist, ""),
		h.step(ctx, payroll.ActionPublish, demoSpecialist, ""),
		h.step(ctx, payroll.ActionManagerApprove, demoManager, ""),
		h.step(ctx, payroll.ActionFinanceApprove, demoFinance, ""),
		h.step(ctx, payroll.ActionLock, demoManager, ""),
	); err != nil {
		return err
	}
	_, err := h.seedRun(ctx, h.currentPeriod(), demoStaff,
		h.step(ctx, payroll.ActionReview, demoSpecialist, ""),
		h.step(ctx, payroll.ActionPublish, demoSpecialist, ""),
		h.step(ctx, payroll.ActionManagerApprove, demoManager, ""),
	)
	return err
}

func (h *Handler) loadRejectedRun(ctx context.Context) error {
	if err := h.seedEmployees(ctx, demoStaff); err != nil {
		return err
	}
	_, err := h.seedRun(ctx, h.currentPeriod(), demoStaff,
		h.step(ctx, payroll.ActionReview, demoSpecialist, ""),
		h.step(ctx, payroll.ActionPublish, demoSpecialist, ""),
		h.step(ctx, payroll.ActionManagerReject, demoManager, "Overtime for e-101 missing from allowances"),
	)
	return err
}

func (h *Handler) loadBenefitsRefunds(ctx context.Context) error {
	if err := h.seedEmployees(ctx, demoStaff); err != nil {
		return err
	}
	runID, err := h.seedRun(ctx, h.currentPeriod(), demoStaff)
	if err != nil {
		return err
	}

	templates, err := h.Service.ListBenefitTemplates(ctx)
	if err != nil {
		return err
	}
	byKind := make(map[payroll.BenefitKind]string)
	for _, t := range templates {
		if _, seen := byKind[t.Kind]; !seen {
			byKind[t.Kind] = t.ID
		}
	}

	if id, ok := byKind[payroll.KindSigningBonus]; ok {
		bonus, err := h.Service.CreateBenefit(ctx, payroll.CreateBenefitInput{EmployeeID: "e-103", TemplateID: id, Actor: demoSpecialist})
		if err != nil {
			return err
		}
		if _, err := h.Service.ReviewBenefit(ctx, bonus.ID, demoManager, payroll.ReviewApprove, ""); err != nil {
			return err
		}
		if _, err := h.Service.ProcessApprovedBenefit(ctx, payroll.ProcessBenefitInput{
			EmployeeID:  "e-103",
			BenefitID:   bonus.ID,
			RunID:       runID,
			GivenAmount: bonus.Amount,
			Actor:       demoSpecialist,
		}); err != nil {
			return err
		}
	}
	if id, ok := byKind[payroll.KindTermination]; ok {
		if _, err := h.Service.CreateBenefit(ctx, payroll.CreateBenefitInput{EmployeeID: "e-102", TemplateID: id, Actor: demoSpecialist}); err != nil {
			return err
		}
	}

	_, err = h.Service.CreateRefund(ctx, payroll.CreateRefundInput{
		EmployeeID:  "e-101",
		Amount:      generic.NewMoney(180),
		Description: "Travel expense overcharged in previous payroll",
		Actor:       demoSpecialist,
	})
	return err
}
