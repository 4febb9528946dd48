package timesheet

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/emprecords/emprecords/internal/auth"
	"github.com/emprecords/emprecords/internal/platform/httpx"
	"github.com/emprecords/emprecords/internal/rbac"
)

// Handler exposes time entries over HTTP.
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

// MountRoutes registers time entry routes with their policies.
func (h *Handler) MountRoutes(r chi.Router) {
	staff := rbac.RequireRoles(auth.RoleAdmin, auth.RoleHRManager)

	r.With(h.rbac.Require(staff)).Get("/", h.list)
	r.With(h.rbac.Require(staff)).Get("/departments", h.listByDepartment)
	r.With(h.rbac.RequireFor(staff.OrOwnerOf(h.service), "record_id")).Get("/{record_id}", h.get)
	r.With(h.rbac.RequireFor(staff.OrSelf(), "emp_id")).Get("/employee/{emp_id}", h.listByEmployee)
	r.With(h.rbac.RequireFor(rbac.SelfOnly(), "emp_id")).Post("/login/{emp_id}", h.clock(EntryLogin))
	r.With(h.rbac.RequireFor(rbac.SelfOnly(), "emp_id")).Post("/logout/{emp_id}", h.clock(EntryLogout))
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
	id, ok := pathID(w, r, "record_id")
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

func (h *Handler) listByEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "emp_id")
	if !ok {
		return
	}
	out, err := h.service.ListByEmployee(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, nonNil(out))
}

func (h *Handler) clock(kind EntryType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "emp_id")
		if !ok {
			return
		}
		var req ClockRequest
		if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			httpx.ProblemFor(w, r, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			httpx.ValidationProblem(w, r, err)
			return
		}
		var (
			entry TimeEntry
			err   error
		)
		if kind == EntryLogin {
			entry, err = h.service.ClockIn(r.Context(), id, req)
		} else {
			entry, err = h.service.ClockOut(r.Context(), id, req)
		}
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, entry)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) == http.StatusInternalServerError {
		h.logger.Error("timesheet request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
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

func nonNil(list []TimeEntry) []TimeEntry {
	if list == nil {
		return []TimeEntry{}
	}
	return list
}
