package app

import (
	"context"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/armorlens/api/internal/metrics"
	"github.com/armorlens/api/pkg/analytics"
	"github.com/armorlens/api/pkg/domain/rule"
	"github.com/armorlens/api/pkg/domain/shared"
	"github.com/armorlens/api/pkg/logger"
	"github.com/armorlens/api/pkg/pagination"
	"github.com/armorlens/api/pkg/parsers/cloudarmor"
	"github.com/armorlens/api/pkg/query"
)

// RuleSource supplies the active rule collection.
type RuleSource interface {
	Rules() []*rule.Rule
}

// RuleServiceConfig holds presentation defaults.
type RuleServiceConfig struct {
	PageSize    int
	TopProjects int
}

// RuleService answers read queries over the active rule collection: the
// filtered ledger, dashboard aggregates and exports. It never mutates rules.
type RuleService struct {
	source RuleSource
	cfg    RuleServiceConfig
	logger *logger.Logger
}

// NewRuleService creates a new RuleService.
func NewRuleService(source RuleSource, cfg RuleServiceConfig, log *logger.Logger) *RuleService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = pagination.DefaultPageSize
	}
	if cfg.TopProjects <= 0 {
		cfg.TopProjects = analytics.DefaultTopProjects
	}
	return &RuleService{
		source: source,
		cfg:    cfg,
		logger: log.With("service", "rule"),
	}
}

// =============================================================================
// Ledger
// =============================================================================

// ListRulesInput selects one page of the filtered, sorted ledger.
type ListRulesInput struct {
	Filter   query.FilterState
	Sort     pagination.SortState
	Page     int
	PageSize int
}

// List filters, sorts and pages the active collection.
func (s *RuleService) List(ctx context.Context, in ListRulesInput) pagination.Result[*rule.Rule] {
	rules := s.filter(ctx, "list", in.Filter)
	rules = pagination.SortRules(rules, in.Sort)

	size := in.PageSize
	if size <= 0 {
		size = s.cfg.PageSize
	}
	return pagination.Paginate(rules, in.Page, size)
}

// Export writes the filtered, sorted ledger as CSV.
func (s *RuleService) Export(ctx context.Context, filter query.FilterState, sort pagination.SortState, w io.Writer) (int, error) {
	rules := s.filter(ctx, "export", filter)
	rules = pagination.SortRules(rules, sort)
	if err := cloudarmor.Write(w, rules, cloudarmor.LedgerFields); err != nil {
		return 0, err
	}
	s.logger.Debug("ledger exported", "rules", len(rules))
	return len(rules), nil
}

// =============================================================================
// Aggregates
// =============================================================================

// Summary is the dashboard overview of a filtered collection.
type Summary struct {
	// KPIs is nil when the filtered collection is empty.
	KPIs          *rule.KPIMetrics              `json:"kpis"`
	AttackVectors []rule.AttackVectorData       `json:"attackVectors"`
	Actions       []rule.ActionDistributionData `json:"actions"`
}

// Summary computes KPIs and distributions over the filtered collection.
func (s *RuleService) Summary(ctx context.Context, filter query.FilterState) Summary {
	rules := s.filter(ctx, "summary", filter)

	out := Summary{
		AttackVectors: analytics.AttackVectorDistribution(rules),
		Actions:       analytics.ActionDistribution(rules),
	}
	if len(rules) > 0 {
		kpis := analytics.KPIs(rules)
		out.KPIs = &kpis
	}
	return out
}

// TopProjects ranks projects of the full collection by distinct policies.
// Filters do not apply. limit <= 0 uses the configured default.
func (s *RuleService) TopProjects(_ context.Context, limit int) []rule.ProjectPolicyCount {
	if limit <= 0 {
		limit = s.cfg.TopProjects
	}
	return analytics.TopProjectsByPolicyCount(s.source.Rules(), limit)
}

// ProjectReport is one project's analysis with its coverage figure.
type ProjectReport struct {
	Name                    string       `json:"name"`
	PolicyCount             int          `json:"policyCount"`
	RuleCount               int          `json:"ruleCount"`
	AdaptiveProtectionCount int          `json:"adaptiveProtectionCount"`
	WAFCoverage             int          `json:"wafCoverage"`
	DenyRules               int          `json:"denyRules"`
	AllowRules              int          `json:"allowRules"`
	ThrottleRules           int          `json:"throttleRules"`
	Policies                []string     `json:"policies"`
	Rules                   []*rule.Rule `json:"rules,omitempty"`
}

func newProjectReport(p rule.ProjectAnalysis, withRules bool) ProjectReport {
	r := ProjectReport{
		Name:                    p.Name,
		PolicyCount:             p.PolicyCount,
		RuleCount:               p.RuleCount,
		AdaptiveProtectionCount: p.AdaptiveProtectionCount,
		WAFCoverage:             p.WAFCoverage(),
		DenyRules:               p.DenyRules,
		AllowRules:              p.AllowRules,
		ThrottleRules:           p.ThrottleRules,
		Policies:                p.Policies,
	}
	if withRules {
		r.Rules = p.Rules
	}
	return r
}

// Projects analyzes every project in the filtered collection, largest
// first. Rule lists are omitted; use Project for the drill-down.
func (s *RuleService) Projects(ctx context.Context, filter query.FilterState) []ProjectReport {
	rules := s.filter(ctx, "projects", filter)
	analyses := analytics.ProjectAnalysis(rules)

	out := make([]ProjectReport, 0, len(analyses))
	for _, p := range analyses {
		out = append(out, newProjectReport(p, false))
	}
	return out
}

// Project returns one project's analysis, rules included, over the full
// collection.
func (s *RuleService) Project(_ context.Context, name string) (ProjectReport, error) {
	name = strings.TrimSpace(name)
	p, ok := analytics.FindProject(s.source.Rules(), name)
	if !ok {
		return ProjectReport{}, shared.NewNotFoundError("project", name)
	}
	return newProjectReport(p, true), nil
}

// Facets counts the full collection per quick-filter option.
func (s *RuleService) Facets(_ context.Context) analytics.Facets {
	return analytics.ComputeFacets(s.source.Rules())
}

// filter runs the pipeline and records timing under operation.
func (s *RuleService) filter(ctx context.Context, operation string, f query.FilterState) []*rule.Rule {
	all := s.source.Rules()
	_, span := startSpan(ctx, "RuleService.filter",
		attribute.String("operation", operation),
		attribute.Int("rules.in", len(all)),
	)

	start := time.Now()
	out := query.Apply(all, f)
	metrics.QueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	metrics.QueryResults.Observe(float64(len(out)))
	if strings.TrimSpace(f.Query) != "" {
		metrics.QueryTerms.Observe(float64(len(query.Tokenize(f.Query))))
	}

	span.SetAttributes(attribute.Int("rules.out", len(out)))
	endSpan(span, nil)
	return out
}
