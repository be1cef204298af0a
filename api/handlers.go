/*
handlers.go - HTTP API handlers for the payroll approval workflow

PURPOSE:
  Exposes the payroll service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every decision to payroll.Service.
  Handlers never check roles or statuses themselves.

ENDPOINTS:
  Runs:
    POST   /api/runs                          Create run (DRAFT)
    GET    /api/runs                          List runs (?entity=&status=)
    GET    /api/runs/{id}                     Get run
    PUT    /api/runs/{id}/lines               Upsert pay lines
    GET    /api/runs/{id}/lines               List pay lines
    PATCH  /api/runs/{id}/lines/{employeeId}  Correct a flagged line
    GET    /api/runs/{id}/exceptions          Exception scan
    POST   /api/runs/{id}/{action}            review, publish, lock, unlock,
                                              resubmit, manager/approve,
                                              manager/reject, finance/approve,
                                              finance/reject
    GET    /api/runs/{id}/history             Approval ledger
    GET    /api/runs/{id}/replay              Ledger replay vs stored run
    GET    /api/runs/{id}/register.xlsx       Payroll register workbook

  Benefits:
    POST   /api/benefits                      Create benefit (PENDING)
    GET    /api/benefits                      List (?employee_id=&state=)
    GET    /api/benefits/{id}                 Get benefit
    POST   /api/benefits/{id}/review          Approve / reject
    POST   /api/benefits/{id}/process         Post to a run
    GET    /api/benefit-templates             List templates
    POST   /api/benefit-templates             Save template (factory JSON)

  Refunds:
    POST   /api/refunds                       Create refund
    GET    /api/refunds                       List (?employee_id=)
    POST   /api/refunds/{id}/paid             Mark paid in a run

CALLER:
  X-Actor-ID and X-Actor-Role identify the caller. Credentials are issued
  and checked upstream; an unknown role simply has no capabilities.

CONCURRENCY:
  Transition requests may send If-Match with the run version they read.
  Run responses carry the current version as ETag.

ERROR HANDLING:
  writeServiceError maps service errors to HTTP status:
  - 400: ValidationError, malformed body or period
  - 403: AuthorizationError
  - 404: NotFoundError
  - 409: InvalidTransitionError, ConcurrencyError (retryable)
  - 422: ExceptionBlockedError (body lists the issues)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/export"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service         *payroll.Service
	TemplateFactory *factory.BenefitFactory
	Logger          *zap.Logger

	// Templates are re-seeded whenever a scenario resets the store.
	Templates []payroll.BenefitTemplate

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler around the service.
func NewHandler(svc *payroll.Service, templates []payroll.BenefitTemplate, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service:         svc,
		TemplateFactory: factory.NewBenefitFactory(),
		Logger:          logger,
		Templates:       templates,
	}
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

// actorFrom reads the caller from the request headers. An unknown role is
// left empty, which no capability allows.
func actorFrom(r *http.Request) generic.Actor {
	role, _ := generic.ParseRole(strings.TrimSpace(r.Header.Get("X-Actor-Role")))
	return generic.Actor{
		ID:   strings.TrimSpace(r.Header.Get("X-Actor-ID")),
		Role: role,
	}
}

// decodeJSON decodes the body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

// ifVersion parses If-Match. Both `3` and `"3"` are accepted; absent is 0.
func ifVersion(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return 0, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, &generic.ValidationError{Field: "If-Match", Code: "invalid", Message: "must be a run version"}
	}
	return v, nil
}

func runIDParam(r *http.Request) payroll.RunID {
	return payroll.RunID(chi.URLParam(r, "id"))
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// CreateRun opens a DRAFT run.
// POST /api/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	period, err := generic.ParsePayPeriod(req.Period)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	roster := make([]payroll.EmployeeID, len(req.Roster))
	for i, id := range req.Roster {
		roster[i] = payroll.EmployeeID(id)
	}

	run, err := h.Service.CreateRun(r.Context(), payroll.CreateRunInput{
		Entity: req.Entity,
		Period: period,
		Roster: roster,
		Actor:  actorFrom(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeRun(w, http.StatusCreated, *run)
}

// ListRuns returns runs, newest period first.
// GET /api/runs?entity=acme&status=PUBLISHED
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := payroll.RunFilter{Entity: r.URL.Query().Get("entity")}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := payroll.ParseRunStatus(strings.ToUpper(raw))
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown status", fmt.Errorf("%q", raw))
			return
		}
		filter.Status = status
	}

	runs, err := h.Service.ListRuns(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns a single run.
// GET /api/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Service.GetRun(r.Context(), runIDParam(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeRun(w, http.StatusOK, *run)
}

// Transition returns the handler for one workflow action.
// POST /api/runs/{id}/review, /publish, /manager/approve, ...
func (h *Handler) Transition(action payroll.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TransitionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		version, err := ifVersion(r)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		run, err := h.Service.Transition(r.Context(), payroll.TransitionInput{
			RunID:     runIDParam(r),
			Action:    action,
			Actor:     actorFrom(r),
			Reason:    req.Reason,
			IfVersion: version,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeRun(w, http.StatusOK, *run)
	}
}

// GetExceptions scans the run's current lines.
// GET /api/runs/{id}/exceptions
func (h *Handler) GetExceptions(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.GetExceptions(r.Context(), runIDParam(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// History returns the approval ledger of a run.
// GET /api/runs/{id}/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.History(r.Context(), runIDParam(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toLedgerDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Replay rebuilds the run from its ledger and compares it with the stored run.
// GET /api/runs/{id}/replay
func (h *Handler) Replay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := runIDParam(r)
	run, err := h.Service.GetRun(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	state, err := h.Service.ReplayRun(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	stored := toRunDTO(*run)
	replayed := stored
	applyStateDTO(&replayed, state)
	writeJSON(w, http.StatusOK, ReplayDTO{
		Replayed: replayed,
		Stored:   stored,
		Matches:  state.Equal(run.RunState),
	})
}

// ExportRegister streams the payroll register workbook.
// GET /api/runs/{id}/register.xlsx
func (h *Handler) ExportRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := runIDParam(r)
	run, err := h.Service.GetRun(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	lines, err := h.Service.ListPayLines(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	report, err := h.Service.GetExceptions(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Render first so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := export.WriteRegister(&buf, run, lines, report); err != nil {
		h.Logger.Error("register export failed", zap.String("run_id", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to export register", err)
		return
	}
	filename := fmt.Sprintf("register-%s-%s.xlsx", run.Entity, run.Period.Label())
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// =============================================================================
// PAY LINE HANDLERS
// =============================================================================

// UpsertPayLines stores computed lines.
// PUT /api/runs/{id}/lines
func (h *Handler) UpsertPayLines(w http.ResponseWriter, r *http.Request) {
	var req UpsertPayLinesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	inputs := make([]payroll.PayLineInput, len(req.Lines))
	for i, l := range req.Lines {
		inputs[i] = l.toInput()
	}

	lines, err := h.Service.UpsertPayLines(r.Context(), runIDParam(r), actorFrom(r), inputs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayLineDTOs(lines))
}

// ListPayLines returns the lines of a run.
// GET /api/runs/{id}/lines
func (h *Handler) ListPayLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.Service.ListPayLines(r.Context(), runIDParam(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayLineDTOs(lines))
}

// EditPayLine corrects the bank account or net pay of a flagged line.
// PATCH /api/runs/{id}/lines/{employeeId}
func (h *Handler) EditPayLine(w http.ResponseWriter, r *http.Request) {
	var req EditPayLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in := payroll.EditPayLineInput{
		RunID:             runIDParam(r),
		EmployeeID:        payroll.EmployeeID(chi.URLParam(r, "employeeId")),
		Actor:             actorFrom(r),
		BankAccountNumber: req.BankAccountNumber,
	}
	if req.NetPay != nil {
		net := generic.MoneyOf(*req.NetPay)
		in.NetPay = &net
	}

	res, err := h.Service.EditPayLine(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EditResultDTO{
		Line:   toPayLineDTO(res.Line),
		Issues: toIssueDTOs(res.Issues),
	})
}

// =============================================================================
// BENEFIT HANDLERS
// =============================================================================

// CreateBenefit opens a PENDING benefit.
// POST /api/benefits
func (h *Handler) CreateBenefit(w http.ResponseWriter, r *http.Request) {
	var req CreateBenefitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in := payroll.CreateBenefitInput{
		EmployeeID: payroll.EmployeeID(req.EmployeeID),
		TemplateID: req.TemplateID,
		Actor:      actorFrom(r),
	}
	if req.Amount != nil {
		amount := generic.MoneyOf(*req.Amount)
		in.Amount = &amount
	}

	b, err := h.Service.CreateBenefit(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBenefitDTO(*b))
}

// ListBenefits returns benefits.
// GET /api/benefits?employee_id=e-1&state=APPROVED
func (h *Handler) ListBenefits(w http.ResponseWriter, r *http.Request) {
	filter := payroll.BenefitFilter{
		EmployeeID: payroll.EmployeeID(r.URL.Query().Get("employee_id")),
		State:      payroll.ReviewState(strings.ToUpper(r.URL.Query().Get("state"))),
	}
	if filter.State != "" && !filter.State.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown state", fmt.Errorf("%q", filter.State))
		return
	}

	benefits, err := h.Service.ListBenefits(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]BenefitDTO, len(benefits))
	for i, b := range benefits {
		dtos[i] = toBenefitDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBenefit returns a benefit and where it has been applied.
// GET /api/benefits/{id}
func (h *Handler) GetBenefit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := payroll.BenefitID(chi.URLParam(r, "id"))
	b, err := h.Service.GetBenefit(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	apps, err := h.Service.Applications(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	appDTOs := make([]ApplicationDTO, len(apps))
	for i, a := range apps {
		appDTOs[i] = toApplicationDTO(a)
	}
	writeJSON(w, http.StatusOK, struct {
		BenefitDTO
		Applications []ApplicationDTO `json:"applications"`
	}{toBenefitDTO(*b), appDTOs})
}

// ReviewBenefit approves or rejects a PENDING benefit.
// POST /api/benefits/{id}/review
func (h *Handler) ReviewBenefit(w http.ResponseWriter, r *http.Request) {
	var req ReviewBenefitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	action, ok := payroll.ParseReviewAction(req.Action)
	if !ok {
		writeServiceError(w, &generic.ValidationError{Field: "action", Code: "invalid", Message: "must be APPROVE or REJECT"})
		return
	}

	b, err := h.Service.ReviewBenefit(r.Context(), payroll.BenefitID(chi.URLParam(r, "id")), actorFrom(r), action, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBenefitDTO(*b))
}

// ProcessBenefit posts an approved benefit to a pay line.
// POST /api/benefits/{id}/process
func (h *Handler) ProcessBenefit(w http.ResponseWriter, r *http.Request) {
	var req ProcessBenefitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Service.ProcessApprovedBenefit(r.Context(), payroll.ProcessBenefitInput{
		EmployeeID:  payroll.EmployeeID(req.EmployeeID),
		BenefitID:   payroll.BenefitID(chi.URLParam(r, "id")),
		RunID:       payroll.RunID(req.RunID),
		GivenAmount: generic.MoneyOf(req.GivenAmount),
		Actor:       actorFrom(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PostingDTO{
		Line:        toPayLineDTO(res.Line),
		Application: toApplicationDTO(res.Application),
	})
}

// ListBenefitTemplates returns the configured templates.
// GET /api/benefit-templates
func (h *Handler) ListBenefitTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.Service.ListBenefitTemplates(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]any, len(templates))
	for i, t := range templates {
		dtos[i] = h.TemplateFactory.ToJSON(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBenefitTemplate saves a template given in the catalog JSON format.
// POST /api/benefit-templates
func (h *Handler) CreateBenefitTemplate(w http.ResponseWriter, r *http.Request) {
	var req factory.BenefitTemplateJSON
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	t, err := h.TemplateFactory.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid benefit template", err)
		return
	}
	if err := h.Service.SaveBenefitTemplate(r.Context(), *t); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.TemplateFactory.ToJSON(*t))
}

// =============================================================================
// REFUND HANDLERS
// =============================================================================

// CreateRefund records a PENDING refund.
// POST /api/refunds
func (h *Handler) CreateRefund(w http.ResponseWriter, r *http.Request) {
	var req CreateRefundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	refund, err := h.Service.CreateRefund(r.Context(), payroll.CreateRefundInput{
		EmployeeID:  payroll.EmployeeID(req.EmployeeID),
		Amount:      generic.MoneyOf(req.Amount),
		Description: req.Description,
		Actor:       actorFrom(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRefundDTO(*refund))
}

// ListRefunds returns refunds.
// GET /api/refunds?employee_id=e-1
func (h *Handler) ListRefunds(w http.ResponseWriter, r *http.Request) {
	refunds, err := h.Service.ListRefunds(r.Context(), payroll.EmployeeID(r.URL.Query().Get("employee_id")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]RefundDTO, len(refunds))
	for i, rf := range refunds {
		dtos[i] = toRefundDTO(rf)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MarkRefundPaid settles a refund in a run.
// POST /api/refunds/{id}/paid
func (h *Handler) MarkRefundPaid(w http.ResponseWriter, r *http.Request) {
	var req MarkRefundPaidRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	refund, err := h.Service.MarkRefundPaid(r.Context(), payroll.RefundID(chi.URLParam(r, "id")), payroll.RunID(req.RunID), actorFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRefundDTO(*refund))
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Service.ListEmployees(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Service.GetEmployee(r.Context(), payroll.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee creates or replaces an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	emp := payroll.Employee{
		ID:     payroll.EmployeeID(req.ID),
		Name:   req.Name,
		Email:  req.Email,
		Entity: req.Entity,
	}
	if err := h.Service.SaveEmployee(r.Context(), emp); err != nil {
		writeServiceError(w, err)
		return
	}
	saved, err := h.Service.GetEmployee(r.Context(), emp.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(*saved))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeRun(w http.ResponseWriter, status int, run payroll.PayrollRun) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(run.Version, 10)))
	writeJSON(w, status, toRunDTO(run))
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps a service error to its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		blocked    *payroll.ExceptionBlockedError
		validation *generic.ValidationError
	)
	switch {
	case errors.As(err, &blocked):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "Blocked by critical exceptions",
			Details: err.Error(),
			Issues:  toIssueDTOs(blocked.Issues()),
		})
	case errors.Is(err, generic.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case errors.Is(err, generic.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Details: err.Error(),
			Field:   validation.Field,
			Code:    validation.Code,
		})
	case errors.Is(err, generic.ErrInvalidPeriod):
		writeError(w, http.StatusBadRequest, "Invalid period", err)
	case errors.Is(err, generic.ErrConcurrentModification):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:     "Concurrent modification",
			Details:   err.Error(),
			Retryable: true,
		})
	case errors.Is(err, generic.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "Invalid transition", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
