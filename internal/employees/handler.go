package employees

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/emprecords/emprecords/internal/auth"
	"github.com/emprecords/emprecords/internal/platform/httpx"
	"github.com/emprecords/emprecords/internal/rbac"
)

// Handler exposes employee records over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers employee routes with their policies.
func (h *Handler) MountRoutes(r chi.Router) {
	staff := h.rbac.RequireAny(auth.RoleAdmin, auth.RoleHRManager)
	admin := h.rbac.RequireAny(auth.RoleAdmin)

	r.With(staff).Get("/", h.list)
	r.With(staff).Get("/departments", h.listByDepartment)
	r.With(h.rbac.RequireFor(rbac.RequireRoles(auth.RoleAdmin, auth.RoleHRManager).OrSelf(), "emp_id")).
		Get("/{emp_id}", h.get)
	r.With(admin).Post("/add/{user_id}", h.add)
	r.With(admin).Put("/update", h.update)
	r.With(admin).Delete("/delete/{emp_id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, nonNil(out))
}

func (h *Handler) listByDepartment(w http.ResponseWriter, r *http.Request) {
	department := r.URL.Query().Get("departmentName")
	if department == "" {
		httpx.ProblemFor(w, r, http.StatusBadRequest, "departmentName is required")
		return
	}
	out, err := h.service.ListByDepartment(r.Context(), department)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, nonNil(out))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "emp_id")
	if !ok {
		return
	}
	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	var e Employee
	if !h.decode(w, r, &e) {
		return
	}
	created, err := h.service.Add(r.Context(), userID, e)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var e Employee
	if !h.decode(w, r, &e) {
		return
	}
	if e.ID <= 0 {
		httpx.ProblemFor(w, r, http.StatusBadRequest, "id is required")
		return
	}
	updated, err := h.service.Update(r.Context(), e)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "emp_id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, e *Employee) bool {
	if err := httpx.DecodeJSON(r, e); err != nil {
		httpx.ProblemFor(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validator.Struct(e); err != nil {
		httpx.ValidationProblem(w, r, err)
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) == http.StatusInternalServerError {
		h.logger.Error("employees request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, r, err)
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		httpx.ProblemFor(w, r, http.StatusBadRequest, param+" must be an integer")
		return 0, false
	}
	return id, true
}

func nonNil(list []Employee) []Employee {
	if list == nil {
		return []Employee{}
	}
	return list
}
