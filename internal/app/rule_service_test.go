package app

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorlens/api/pkg/domain/rule"
	"github.com/armorlens/api/pkg/domain/shared"
	"github.com/armorlens/api/pkg/logger"
	"github.com/armorlens/api/pkg/pagination"
	"github.com/armorlens/api/pkg/query"
)

type staticRules []*rule.Rule

func (s staticRules) Rules() []*rule.Rule { return s }

func fixtureRules() staticRules {
	return staticRules{
		{ProjectName: "shop", PolicyName: "edge", AdaptiveProtection: true, Status: "deny(403)", MatchExpression: "evaluatePreconfiguredWaf('sqli-v33-stable')", Priority: 100},
		{ProjectName: "shop", PolicyName: "edge", AdaptiveProtection: true, Status: "allow", MatchExpression: "*", RuleDescription: "Default rule", Priority: rule.NoPriority},
		{ProjectName: "shop", PolicyName: "admin", Status: "deny(404)", MatchExpression: "evaluatePreconfiguredWaf('xss-v33-stable')", Priority: 200},
		{ProjectName: "billing", PolicyName: "api", Status: "throttle", MatchExpression: "origin.region_code == 'CN'", Priority: 5000},
		{ProjectName: "search", PolicyName: "edge", Status: "redirect", MatchExpression: "request.path.matches('/old')", Priority: 3000},
	}
}

func newTestRuleService(src RuleSource) *RuleService {
	return NewRuleService(src, RuleServiceConfig{PageSize: 2, TopProjects: 2}, logger.NewNop())
}

// =============================================================================
// Ledger Tests
// =============================================================================

func TestRuleService_List(t *testing.T) {
	rules := fixtureRules()
	svc := newTestRuleService(rules)

	t.Run("default page size", func(t *testing.T) {
		res := svc.List(context.Background(), ListRulesInput{})
		assert.Equal(t, 5, res.TotalItems)
		assert.Equal(t, 3, res.TotalPages)
		assert.Equal(t, 1, res.CurrentPage)
		assert.Equal(t, 2, res.PageSize)
		require.Len(t, res.Data, 2)
		assert.Same(t, rules[0], res.Data[0])
	})

	t.Run("filtered and sorted", func(t *testing.T) {
		res := svc.List(context.Background(), ListRulesInput{
			Filter:   query.FilterState{Projects: []string{"shop"}},
			Sort:     pagination.SortState{Field: rule.FieldPriority, Order: pagination.SortDesc},
			PageSize: 10,
		})
		require.Len(t, res.Data, 3)
		assert.Same(t, rules[1], res.Data[0])
		assert.Same(t, rules[2], res.Data[1])
		assert.Same(t, rules[0], res.Data[2])
	})

	t.Run("advanced query", func(t *testing.T) {
		res := svc.List(context.Background(), ListRulesInput{
			Filter:   query.FilterState{Query: "policy:edge AND status:deny"},
			PageSize: 10,
		})
		require.Len(t, res.Data, 1)
		assert.Same(t, rules[0], res.Data[0])
	})

	t.Run("page beyond range is clamped", func(t *testing.T) {
		res := svc.List(context.Background(), ListRulesInput{Page: 99})
		assert.Equal(t, 3, res.CurrentPage)
		assert.Len(t, res.Data, 1)
	})

	t.Run("empty source", func(t *testing.T) {
		res := newTestRuleService(staticRules{}).List(context.Background(), ListRulesInput{})
		assert.Equal(t, 1, res.TotalPages)
		assert.Equal(t, 0, res.TotalItems)
		assert.Empty(t, res.Data)
	})
}

func TestRuleService_Export(t *testing.T) {
	svc := newTestRuleService(fixtureRules())

	var buf bytes.Buffer
	n, err := svc.Export(context.Background(),
		query.FilterState{Projects: []string{"billing"}},
		pagination.SortState{},
		&buf,
	)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], `"Project","Policy"`))
	assert.True(t, strings.HasPrefix(lines[1], `"billing","api"`))
}

// =============================================================================
// Aggregate Tests
// =============================================================================

func TestRuleService_Summary(t *testing.T) {
	svc := newTestRuleService(fixtureRules())

	t.Run("full collection", func(t *testing.T) {
		sum := svc.Summary(context.Background(), query.FilterState{})
		require.NotNil(t, sum.KPIs)
		assert.Equal(t, 3, sum.KPIs.TotalProjects)
		assert.Equal(t, 3, sum.KPIs.TotalPolicies)
		assert.Equal(t, 33, sum.KPIs.WAFCoverage)
		assert.Equal(t, 2, sum.KPIs.CriticalRules)
		assert.Equal(t, 5, sum.KPIs.TotalRules)
		assert.NotEmpty(t, sum.AttackVectors)
		assert.NotEmpty(t, sum.Actions)
	})

	t.Run("no match", func(t *testing.T) {
		sum := svc.Summary(context.Background(), query.FilterState{Projects: []string{"nope"}})
		assert.Nil(t, sum.KPIs)
		assert.Empty(t, sum.AttackVectors)
		assert.Empty(t, sum.Actions)
	})
}

func TestRuleService_TopProjects(t *testing.T) {
	svc := newTestRuleService(fixtureRules())

	top := svc.TopProjects(context.Background(), 0)
	require.Len(t, top, 2)
	assert.Equal(t, rule.ProjectPolicyCount{Project: "shop", PolicyCount: 2}, top[0])

	top = svc.TopProjects(context.Background(), 10)
	assert.Len(t, top, 3)
}

func TestRuleService_Projects(t *testing.T) {
	svc := newTestRuleService(fixtureRules())

	reports := svc.Projects(context.Background(), query.FilterState{})
	require.Len(t, reports, 3)

	shop := reports[0]
	assert.Equal(t, "shop", shop.Name)
	assert.Equal(t, 2, shop.PolicyCount)
	assert.Equal(t, 3, shop.RuleCount)
	assert.Equal(t, 2, shop.DenyRules)
	assert.Equal(t, 1, shop.AllowRules)
	assert.Equal(t, []string{"edge", "admin"}, shop.Policies)
	assert.Equal(t, 50, shop.WAFCoverage)
	assert.Nil(t, shop.Rules)

	// "search" shares the adaptive "edge" policy name with "shop".
	var search ProjectReport
	for _, r := range reports {
		if r.Name == "search" {
			search = r
		}
	}
	assert.Equal(t, 1, search.AdaptiveProtectionCount)
	assert.Equal(t, 100, search.WAFCoverage)
}

func TestRuleService_Project(t *testing.T) {
	svc := newTestRuleService(fixtureRules())

	t.Run("found", func(t *testing.T) {
		p, err := svc.Project(context.Background(), " billing ")
		require.NoError(t, err)
		assert.Equal(t, "billing", p.Name)
		assert.Equal(t, 1, p.ThrottleRules)
		assert.Len(t, p.Rules, 1)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := svc.Project(context.Background(), "missing")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestRuleService_Facets(t *testing.T) {
	svc := newTestRuleService(fixtureRules())

	f := svc.Facets(context.Background())
	require.Len(t, f.Projects, 3)
	assert.Equal(t, "shop", f.Projects[0].Name)
	assert.Equal(t, 3, f.Projects[0].Count)
	assert.Equal(t, 2, f.Actions.Deny)
	assert.Equal(t, 1, f.Actions.Allow)
	assert.Equal(t, 1, f.Actions.Throttle)
	assert.Equal(t, 1, f.Actions.Other)
	assert.Equal(t, 2, f.Adaptive.Enabled)
	assert.Equal(t, 3, f.Adaptive.Disabled)
}
