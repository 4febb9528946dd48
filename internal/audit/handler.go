package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/emprecords/emprecords/internal/platform/httpx"
)

// Handler serves the audit timeline.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs an audit Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// MountRoutes registers the timeline route. Callers guard it with a policy.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.timeline)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := TimelineFilters{
		Actor:  q.Get("actor"),
		Action: q.Get("action"),
	}
	var err error
	if filters.From, err = parseTime(q.Get("from")); err != nil {
		httpx.ProblemFor(w, r, http.StatusBadRequest, "from must be RFC3339")
		return
	}
	if filters.To, err = parseTime(q.Get("to")); err != nil {
		httpx.ProblemFor(w, r, http.StatusBadRequest, "to must be RFC3339")
		return
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
