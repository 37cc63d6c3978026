/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for internal panels

ROUTE GROUPS:
  /api/approvals/*   Approval workflow and reconciliation
  /api/employees/*   Canonical records and derived views
  /api/advisor/*     Advisory distribution commentary

SECURITY NOTE:
  Caller identity arrives in request bodies and is trusted as-is;
  authentication and role policy live outside this service.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/approvals", func(r chi.Router) {
			r.Get("/", h.ListApprovals)
			r.Post("/", h.SubmitApproval)
			r.Get("/{id}", h.GetApproval)
			r.Post("/{id}/team-decision", h.DecideTeam)
			r.Post("/{id}/hr-decision", h.DecideHR)
			r.Post("/{id}/skip-approve", h.SkipApprove)
			r.Post("/{id}/resubmit", h.Resubmit)
			r.Post("/{id}/read", h.MarkRead)
			r.Post("/{id}/apply", h.Apply)
		})

		r.Route("/employees/{id}/months/{month}", func(r chi.Router) {
			r.Get("/records", h.GetMonthRecords)
			r.Get("/work-rate", h.GetWorkRate)
			r.Get("/evaluation", h.GetEvaluation)
		})

		r.Route("/advisor", func(r chi.Router) {
			r.Post("/commentary", h.GetCommentary)
		})
	})

	return r
}
