package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/armorlens/api/internal/app"
	"github.com/armorlens/api/pkg/domain/rule"
	"github.com/armorlens/api/pkg/logger"
	"github.com/armorlens/api/pkg/query"
	"github.com/armorlens/api/pkg/validator"
)

// exportFilename is the download name of the ledger export.
const exportFilename = "cloud-armor-rules.csv"

// RuleHandler serves the rule ledger.
type RuleHandler struct {
	service   *app.RuleService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewRuleHandler creates a new rule handler.
func NewRuleHandler(service *app.RuleService, v *validator.Validator, log *logger.Logger) *RuleHandler {
	return &RuleHandler{
		service:   service,
		validator: v,
		logger:    log.With("handler", "rule"),
	}
}

// List handles GET /rules
//
// Query parameters: projects, actions, adaptive, q, search, sort, order,
// page, pageSize.
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := parseRuleQuery(r, h.validator)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res := h.service.List(r.Context(), app.ListRulesInput{
		Filter:   p.filter(),
		Sort:     p.sort(),
		Page:     p.Page,
		PageSize: p.PageSize,
	})
	w.Header().Set("X-Total-Count", strconv.Itoa(res.TotalItems))
	writeJSON(w, http.StatusOK, NewListResponse[*rule.Rule](r, res))
}

// Export handles GET /rules/export. It downloads the filtered, sorted
// ledger as CSV; paging parameters are ignored.
func (h *RuleHandler) Export(w http.ResponseWriter, r *http.Request) {
	p, err := parseRuleQuery(r, h.validator)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	// Buffered so a write failure can still become an error response.
	var buf bytes.Buffer
	n, err := h.service.Export(r.Context(), p.filter(), p.sort(), &buf)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	w.Header().Set("X-Total-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// ParseQueryResponse shows how an advanced query is read.
type ParseQueryResponse struct {
	Query   string         `json:"query"`
	Clauses []query.Clause `json:"clauses"`
	Terms   []TermResponse `json:"terms"`
}

// TermResponse is one parsed predicate.
type TermResponse struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Negated bool   `json:"negated"`
}

// ParseQuery handles GET /rules/query?q=. It returns the clause split
// and parsed predicates without evaluating them.
func (h *RuleHandler) ParseQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get(paramQuery)
	if len(q) > 2000 {
		writeError(w, r, h.logger, validator.ValidationErrors{{Field: "q", Message: "must be at most 2000"}})
		return
	}

	clauses := query.Tokenize(q)
	if clauses == nil {
		clauses = []query.Clause{}
	}
	terms := make([]TermResponse, 0, len(clauses))
	for _, c := range clauses {
		t := query.ParseTerm(c.Term)
		terms = append(terms, TermResponse{Field: t.Field.String(), Value: t.Value, Negated: t.Negated})
	}

	writeJSON(w, http.StatusOK, ParseQueryResponse{Query: q, Clauses: clauses, Terms: terms})
}
