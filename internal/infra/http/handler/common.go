// Package handler implements the HTTP API over the rule query engine.
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/armorlens/api/pkg/domain/rule"
	"github.com/armorlens/api/pkg/pagination"
	"github.com/armorlens/api/pkg/query"
	"github.com/armorlens/api/pkg/validator"
)

// URL scheme constants
const (
	schemeHTTP  = "http"
	schemeHTTPS = "https"
)

// Query parameter names shared by the ledger and analytics endpoints.
const (
	paramProjects = "projects"
	paramActions  = "actions"
	paramAdaptive = "adaptive"
	paramQuery    = "q"
	paramSearch   = "search"
	paramSort     = "sort"
	paramOrder    = "order"
	paramPage     = "page"
	paramPageSize = "pageSize"
)

// PaginationLinks contains HATEOAS-style pagination links.
type PaginationLinks struct {
	Self  string `json:"self"`
	First string `json:"first,omitempty"`
	Prev  string `json:"prev,omitempty"`
	Next  string `json:"next,omitempty"`
	Last  string `json:"last,omitempty"`
}

// ListResponse is one page of a collection.
type ListResponse[T any] struct {
	Data        []T              `json:"data"`
	TotalPages  int              `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
	TotalItems  int              `json:"totalItems"`
	PageSize    int              `json:"pageSize"`
	Links       *PaginationLinks `json:"links,omitempty"`
}

// NewListResponse wraps a pagination result with links for r. An empty
// result has no links.
func NewListResponse[T any](r *http.Request, res pagination.Result[T]) ListResponse[T] {
	out := ListResponse[T]{
		Data:        res.Data,
		TotalPages:  res.TotalPages,
		CurrentPage: res.CurrentPage,
		TotalItems:  res.TotalItems,
		PageSize:    res.PageSize,
	}
	if res.TotalItems > 0 {
		out.Links = NewPaginationLinks(r, res.CurrentPage, res.PageSize, res.TotalPages)
	}
	return out
}

// NewPaginationLinks creates pagination links based on the current request.
// It preserves all existing query parameters while updating page number.
func NewPaginationLinks(r *http.Request, page, pageSize, totalPages int) *PaginationLinks {
	if totalPages == 0 {
		return nil
	}

	baseURL := buildBaseURL(r)
	q := r.URL.Query()

	links := &PaginationLinks{
		Self:  buildPageURL(baseURL, q, page, pageSize),
		First: buildPageURL(baseURL, q, 1, pageSize),
	}
	if page > 1 {
		links.Prev = buildPageURL(baseURL, q, page-1, pageSize)
	}
	if page < totalPages {
		links.Next = buildPageURL(baseURL, q, page+1, pageSize)
	}
	if totalPages > 1 {
		links.Last = buildPageURL(baseURL, q, totalPages, pageSize)
	}
	return links
}

// buildBaseURL constructs the base URL from the request.
func buildBaseURL(r *http.Request) string {
	scheme := schemeHTTPS
	if r.TLS == nil {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto == schemeHTTP || proto == schemeHTTPS {
			scheme = proto
		} else {
			scheme = schemeHTTP
		}
	}

	host := r.Host
	if fwdHost := r.Header.Get("X-Forwarded-Host"); fwdHost != "" {
		host = fwdHost
	}

	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.Path)
}

// buildPageURL builds a URL with the specified page number.
func buildPageURL(baseURL string, q url.Values, page, pageSize int) string {
	params := make(url.Values, len(q)+2)
	for k, v := range q {
		params[k] = v
	}
	params.Set(paramPage, strconv.Itoa(page))
	params.Set(paramPageSize, strconv.Itoa(pageSize))

	return baseURL + "?" + params.Encode()
}

// parseQueryArray collects a multi-valued parameter from repeated keys
// (?projects=a&projects=b). With split set each value is also read as a
// comma list (?actions=deny,allow). Project names may contain commas so
// they are never split. Blank entries are dropped; nil means not set.
func parseQueryArray(values url.Values, key string, split bool) []string {
	var out []string
	for _, raw := range values[key] {
		parts := []string{raw}
		if split {
			parts = strings.Split(raw, ",")
		}
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseQueryInt parses a query parameter as an integer.
// Returns defaultVal if the input is empty or invalid.
func parseQueryInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return val
}

// ruleQueryParams is the validated form of the ledger query string.
type ruleQueryParams struct {
	Projects []string `validate:"max=200,dive,max=256"`
	Actions  []string `validate:"max=16,dive,action_bucket"`
	Adaptive string   `validate:"adaptive_filter"`
	Query    string   `validate:"max=2000"`
	Search   string   `validate:"max=500"`
	Sort     string   `validate:"sort_field"`
	Order    string   `validate:"sort_order"`
	PageSize int      `validate:"min=0,max=500"`
	Page     int
}

func readRuleQueryParams(r *http.Request) ruleQueryParams {
	q := r.URL.Query()
	return ruleQueryParams{
		Projects: parseQueryArray(q, paramProjects, false),
		Actions:  parseQueryArray(q, paramActions, true),
		Adaptive: strings.TrimSpace(q.Get(paramAdaptive)),
		Query:    q.Get(paramQuery),
		Search:   q.Get(paramSearch),
		Sort:     strings.TrimSpace(q.Get(paramSort)),
		Order:    strings.TrimSpace(q.Get(paramOrder)),
		Page:     parseQueryInt(q.Get(paramPage), 1),
		PageSize: parseQueryInt(q.Get(paramPageSize), 0),
	}
}

func (p ruleQueryParams) filter() query.FilterState {
	actions := make([]rule.QuickAction, 0, len(p.Actions))
	for _, a := range p.Actions {
		actions = append(actions, rule.QuickAction(strings.ToLower(a)))
	}
	return query.FilterState{
		Projects: p.Projects,
		Actions:  actions,
		Adaptive: rule.AdaptiveFilter(strings.ToLower(p.Adaptive)),
		Query:    p.Query,
		Search:   p.Search,
	}
}

func (p ruleQueryParams) sort() pagination.SortState {
	return pagination.ParseSort(p.Sort, p.Order)
}

// parseRuleQuery reads and validates the ledger query string.
func parseRuleQuery(r *http.Request, v *validator.Validator) (ruleQueryParams, error) {
	p := readRuleQueryParams(r)
	if err := v.Validate(p); err != nil {
		return ruleQueryParams{}, err
	}
	return p, nil
}

// decodeJSON decodes a JSON request body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
