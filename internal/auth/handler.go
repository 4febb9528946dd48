package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/emprecords/emprecords/internal/audit"
	"github.com/emprecords/emprecords/internal/platform/httpx"
)

// Handler wires HTTP endpoints for authentication and principal administration.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: NewValidator(),
	}
}

// MountPublicRoutes registers routes reachable without a token.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Post("/authenticate", h.handleLogin)
}

// MountAdminRoutes registers principal administration routes. Callers must
// guard them with an ADMIN policy.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/register_user", h.handleRegister(RoleUser))
	r.Post("/register_hr_manager", h.handleRegister(RoleHRManager))
	r.Post("/register_admin", h.handleRegister(RoleAdmin))
	r.Route("/users/{user_id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Put("/roles", h.handleAssignRoles)
		r.Put("/disabled", h.handleSetDisabled)
		r.Delete("/", h.handleDelete)
	})
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ProblemFor(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, r, err)
		return
	}
	ctx := audit.WithRemoteAddr(r.Context(), r.RemoteAddr)
	tok, err := h.service.Login(ctx, req.Username, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tokenResponse{Token: tok.Value, ExpiresAt: tok.ExpiresAt})
}

func (h *Handler) handleRegister(role Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		if err := httpx.DecodeJSON(r, &creds); err != nil {
			httpx.ProblemFor(w, r, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.validator.Struct(creds); err != nil {
			httpx.ValidationProblem(w, r, err)
			return
		}
		ctx := audit.WithRemoteAddr(r.Context(), r.RemoteAddr)
		p, err := h.service.Register(ctx, role, creds)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, p)
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	p, err := h.service.PrincipalByID(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

type assignRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1,dive,required"`
}

func (h *Handler) handleAssignRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var req assignRolesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ProblemFor(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, r, err)
		return
	}
	roles := make([]Role, 0, len(req.Roles))
	for _, name := range req.Roles {
		role, err := ParseRole(name)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		roles = append(roles, role)
	}
	ctx := audit.WithRemoteAddr(r.Context(), r.RemoteAddr)
	p, err := h.service.AssignRoles(ctx, id, roles)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

type setDisabledRequest struct {
	Disabled *bool `json:"disabled" validate:"required"`
}

func (h *Handler) handleSetDisabled(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var req setDisabledRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ProblemFor(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, r, err)
		return
	}
	ctx := audit.WithRemoteAddr(r.Context(), r.RemoteAddr)
	p, err := h.service.SetDisabled(ctx, id, *req.Disabled)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	ctx := audit.WithRemoteAddr(r.Context(), r.RemoteAddr)
	if err := h.service.Delete(ctx, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusOf(err) == http.StatusInternalServerError {
		h.logger.Error("auth request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, r, err)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.ProblemFor(w, r, http.StatusBadRequest, "user_id must be a positive integer")
		return 0, false
	}
	return id, true
}
