package rbac

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/emprecords/emprecords/internal/auth"
	"github.com/emprecords/emprecords/internal/platform/httpx"
)

// Middleware wires policy checks into chi routes. It relies on the Gate
// having run earlier in the chain.
type Middleware struct {
	Engine *Engine
	Logger *slog.Logger
}

// RequireAny ensures the caller holds at least one of roles.
func (m Middleware) RequireAny(roles ...auth.Role) func(http.Handler) http.Handler {
	return m.Require(RequireRoles(roles...))
}

// Require enforces a policy that needs no resource id.
func (m Middleware) Require(p Policy) func(http.Handler) http.Handler {
	return m.RequireFor(p, "")
}

// RequireFor enforces p using the chi URL parameter param as the resource id.
// It must be attached with chi's With or inside a route so the parameter is
// resolved before it runs.
func (m Middleware) RequireFor(p Policy, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := auth.AuthenticatedFrom(r.Context())
			if !ok {
				httpx.ProblemFor(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			var resourceID *int64
			if param != "" {
				id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, param)), 10, 64)
				if err != nil {
					httpx.ProblemFor(w, r, http.StatusBadRequest, param+" must be an integer")
					return
				}
				resourceID = &id
			}
			decision, err := m.Engine.Decide(r.Context(), ac, p, resourceID)
			if err != nil {
				m.logger().Error("rbac decide", slog.String("path", r.URL.Path), slog.Any("error", err))
				httpx.ProblemFor(w, r, http.StatusInternalServerError, "")
				return
			}
			if decision != Allow {
				m.logger().Debug("access denied", slog.String("username", ac.Username()), slog.String("path", r.URL.Path))
				httpx.ProblemFor(w, r, http.StatusForbidden, "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
