package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/armorlens/api/internal/app"
	"github.com/armorlens/api/pkg/logger"
	"github.com/armorlens/api/pkg/validator"
)

// maxTopProjects caps the top-projects limit parameter.
const maxTopProjects = 100

// AnalyticsHandler serves dashboard aggregates.
type AnalyticsHandler struct {
	service   *app.RuleService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(service *app.RuleService, v *validator.Validator, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service:   service,
		validator: v,
		logger:    log.With("handler", "analytics"),
	}
}

// Summary handles GET /analytics/summary. KPIs and distributions follow
// the same filters as the ledger.
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	p, err := parseRuleQuery(r, h.validator)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.Summary(r.Context(), p.filter()))
}

// TopProjects handles GET /analytics/top-projects?limit=. The ranking
// always covers the whole inventory.
func (h *AnalyticsHandler) TopProjects(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r.URL.Query().Get("limit"), 0)
	if limit < 0 || limit > maxTopProjects {
		writeError(w, r, h.logger, validator.ValidationErrors{{Field: "limit", Message: "must be between 1 and 100"}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": h.service.TopProjects(r.Context(), limit),
	})
}

// Projects handles GET /analytics/projects. Per-project rule lists are
// left out; fetch a single project for those.
func (h *AnalyticsHandler) Projects(w http.ResponseWriter, r *http.Request) {
	p, err := parseRuleQuery(r, h.validator)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": h.service.Projects(r.Context(), p.filter()),
	})
}

// Project handles GET /analytics/projects/{name}
func (h *AnalyticsHandler) Project(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		writeError(w, r, h.logger, validator.ValidationErrors{{Field: "name", Message: "is required"}})
		return
	}

	report, err := h.service.Project(r.Context(), name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Facets handles GET /analytics/facets
func (h *AnalyticsHandler) Facets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Facets(r.Context()))
}
