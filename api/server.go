/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from proxy headers
  3. Logger:     zap request logging (logging.Middleware)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/runs/*              Run lifecycle, pay lines, exceptions, ledger
  /api/benefits/*          Ancillary benefits
  /api/benefit-templates   Benefit template catalog
  /api/refunds/*           Refund settlement
  /api/employees/*         Employee directory
  /api/scenarios/*         Demo scenarios
  /health                  Liveness

SECURITY NOTE:
  The caller's identity comes from X-Actor-ID / X-Actor-Role, which an
  upstream gateway sets after authenticating the session.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/payroll-engine/logging"
	"github.com/warp/payroll-engine/payroll"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-Match", "X-Actor-ID", "X-Actor-Role"},
		ExposedHeaders:   []string{"ETag", "Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "payroll-engine",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Run routes
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Post("/", h.CreateRun)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetRun)
				r.Get("/lines", h.ListPayLines)
				r.Put("/lines", h.UpsertPayLines)
				r.Patch("/lines/{employeeId}", h.EditPayLine)
				r.Get("/exceptions", h.GetExceptions)
				r.Get("/history", h.History)
				r.Get("/replay", h.Replay)
				r.Get("/register.xlsx", h.ExportRegister)

				r.Post("/review", h.Transition(payroll.ActionReview))
				r.Post("/publish", h.Transition(payroll.ActionPublish))
				r.Post("/manager/approve", h.Transition(payroll.ActionManagerApprove))
				r.Post("/manager/reject", h.Transition(payroll.ActionManagerReject))
				r.Post("/finance/approve", h.Transition(payroll.ActionFinanceApprove))
				r.Post("/finance/reject", h.Transition(payroll.ActionFinanceReject))
				r.Post("/lock", h.Transition(payroll.ActionLock))
				r.Post("/unlock", h.Transition(payroll.ActionUnlock))
				r.Post("/resubmit", h.Transition(payroll.ActionResubmit))
			})
		})

		// Benefit routes
		r.Route("/benefits", func(r chi.Router) {
			r.Get("/", h.ListBenefits)
			r.Post("/", h.CreateBenefit)
			r.Get("/{id}", h.GetBenefit)
			r.Post("/{id}/review", h.ReviewBenefit)
			r.Post("/{id}/process", h.ProcessBenefit)
		})

		r.Get("/benefit-templates", h.ListBenefitTemplates)
		r.Post("/benefit-templates", h.CreateBenefitTemplate)

		// Refund routes
		r.Route("/refunds", func(r chi.Router) {
			r.Get("/", h.ListRefunds)
			r.Post("/", h.CreateRefund)
			r.Post("/{id}/paid", h.MarkRefundPaid)
		})

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
