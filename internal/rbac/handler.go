package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emprecords/emprecords/internal/auth"
	"github.com/emprecords/emprecords/internal/platform/httpx"
)

// RolesHandler lists the roles a principal can be assigned.
type RolesHandler struct{}

// NewRolesHandler builds a RolesHandler.
func NewRolesHandler() *RolesHandler {
	return &RolesHandler{}
}

// MountRoutes registers role routes.
func (h *RolesHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listRoles)
}

type roleView struct {
	Name string `json:"name"`
}

func (h *RolesHandler) listRoles(w http.ResponseWriter, _ *http.Request) {
	out := make([]roleView, 0, len(auth.KnownRoles))
	for _, role := range auth.KnownRoles {
		out = append(out, roleView{Name: string(role)})
	}
	httpx.JSON(w, http.StatusOK, out)
}
