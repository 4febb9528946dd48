package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/emprecords/emprecords/internal/audit"
	"github.com/emprecords/emprecords/internal/auth"
	"github.com/emprecords/emprecords/internal/employees"
	"github.com/emprecords/emprecords/internal/observability"
	"github.com/emprecords/emprecords/internal/platform/httpx"
	"github.com/emprecords/emprecords/internal/rbac"
	"github.com/emprecords/emprecords/internal/timesheet"
	"github.com/emprecords/emprecords/jobs"
)

// ReadinessCheck reports whether a backing dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	Gate           *auth.Gate
	RBACMiddleware rbac.Middleware

	AuthHandler      *auth.Handler
	EmployeeHandler  *employees.Handler
	TimesheetHandler *timesheet.Handler
	RolesHandler     *rbac.RolesHandler
	AuditHandler     *audit.Handler
	JobHandler       *jobs.Handler

	Checks map[string]ReadinessCheck
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthz(params.Checks, params.Logger))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	loginLimit := 0
	if params.Config != nil {
		loginLimit = params.Config.LoginRateLimit
	}
	admin := params.RBACMiddleware.RequireAny(auth.RoleAdmin)

	r.Route("/v1", func(r chi.Router) {
		r.Use(params.Gate.Middleware)
		r.NotFound(apiNotFound)
		r.MethodNotAllowed(apiMethodNotAllowed)

		r.Group(func(r chi.Router) {
			r.Use(LoginRateLimit(loginLimit))
			params.AuthHandler.MountPublicRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(admin)
			params.AuthHandler.MountAdminRoutes(r)
		})

		r.Route("/employee", params.EmployeeHandler.MountRoutes)
		r.Route("/times", params.TimesheetHandler.MountRoutes)

		if params.RolesHandler != nil {
			r.With(admin).Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.With(admin).Route("/audit", params.AuditHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.With(admin).Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}

// apiNotFound hides the route table from anonymous callers.
func apiNotFound(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.AuthenticatedFrom(r.Context()); !ok {
		httpx.ProblemFor(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	httpx.ProblemFor(w, r, http.StatusNotFound, "")
}

func apiMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.AuthenticatedFrom(r.Context()); !ok {
		httpx.ProblemFor(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	httpx.ProblemFor(w, r, http.StatusMethodNotAllowed, "")
}

func healthz(checks map[string]ReadinessCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		code := http.StatusOK
		for name, check := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			err := check(ctx)
			cancel()
			if err != nil {
				logger.Warn("readiness check failed", slog.String("check", name), slog.Any("error", err))
				status[name] = "down"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		body := map[string]any{"status": "ok"}
		if code != http.StatusOK {
			body["status"] = "degraded"
		}
		if len(status) > 0 {
			body["checks"] = status
		}
		httpx.JSON(w, code, body)
	}
}
