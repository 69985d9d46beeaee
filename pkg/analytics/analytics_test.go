package analytics_test

import (
	"testing"

	"github.com/armorlens/api/pkg/analytics"
	"github.com/armorlens/api/pkg/domain/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKPIs(t *testing.T) {
	t.Run("empty collection", func(t *testing.T) {
		assert.Equal(t, rule.KPIMetrics{}, analytics.KPIs(nil))
	})

	t.Run("policy adaptive flag is global across projects", func(t *testing.T) {
		rules := []*rule.Rule{
			{ProjectName: "a", PolicyName: "p1", AdaptiveProtection: true},
			{ProjectName: "b", PolicyName: "p1", AdaptiveProtection: false},
		}
		got := analytics.KPIs(rules)
		assert.Equal(t, 100, got.WAFCoverage)
		assert.Equal(t, 2, got.TotalProjects)
		assert.Equal(t, 1, got.TotalPolicies)
		assert.Equal(t, 2, got.TotalRules)
	})

	t.Run("coverage rounds half up and excludes sentinel from critical", func(t *testing.T) {
		rules := []*rule.Rule{
			{ProjectName: "a", PolicyName: "p1", AdaptiveProtection: true, Priority: 999},
			{ProjectName: "a", PolicyName: "p2", Priority: 1000},
			{ProjectName: "a", PolicyName: "p3", Priority: rule.NoPriority},
			{ProjectName: "b", PolicyName: "p4", AdaptiveProtection: true, Priority: 0},
			{ProjectName: "b", PolicyName: "p5", Priority: 5},
			{ProjectName: "b", PolicyName: "p6", Priority: 5000},
			{ProjectName: "b", PolicyName: "p7", Priority: 5000},
			{ProjectName: "b", PolicyName: "p8", AdaptiveProtection: true, Priority: 5000},
		}
		got := analytics.KPIs(rules)
		// 3 of 8 policies = 37.5%
		assert.Equal(t, 38, got.WAFCoverage)
		assert.Equal(t, 3, got.CriticalRules)
		assert.Equal(t, 8, got.TotalPolicies)
	})
}

func TestAttackVectorDistribution(t *testing.T) {
	rules := []*rule.Rule{
		{MatchExpression: "evaluatePreconfiguredWaf('xss-v33-stable')"},
		{MatchExpression: "sqli scanner"},
		{MatchExpression: "evaluatePreconfiguredWaf('sqli-v33-stable')"},
		{MatchExpression: "origin.asn == 1"},
		{MatchExpression: "evaluatePreconfiguredWaf('xss-v33-stable')"},
	}

	got := analytics.AttackVectorDistribution(rules)
	require.Len(t, got, 3)
	assert.Equal(t, rule.AttackVectorData{Label: rule.CategoryXSS, Count: 2, Color: "#f97316"}, got[0])
	assert.Equal(t, rule.AttackVectorData{Label: rule.CategorySQLi, Count: 2, Color: "#ef4444"}, got[1])
	assert.Equal(t, rule.CategoryOther, got[2].Label)

	assert.Empty(t, analytics.AttackVectorDistribution(nil))
}

func TestNormalizeAction(t *testing.T) {
	tests := []struct {
		status string
		want   rule.ActionBucket
		ok     bool
	}{
		{"deny(403)", rule.ActionDeny403, true},
		{"deny(404)", rule.ActionDeny404, true},
		{"DENY(502)", rule.ActionDeny502, true},
		{"deny", rule.ActionDeny403, true},
		{"allow", rule.ActionAllow, true},
		{"throttle", rule.ActionThrottle, true},
		{"redirect", rule.ActionRedirect, true},
		{"rate_based_ban", rule.ActionRateBasedBan, true},
		{"custom", rule.ActionOther, true},
		{"   ", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got, ok := analytics.NormalizeAction(tt.status)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActionDistribution(t *testing.T) {
	rules := []*rule.Rule{
		{Status: "deny(404)"},
		{Status: "allow"},
		{Status: ""},
		{Status: "allow"},
		{Status: "deny(404)"},
		{Status: "deny(404)"},
	}

	got := analytics.ActionDistribution(rules)
	assert.Equal(t, []rule.ActionDistributionData{
		{Action: rule.ActionDeny404, Count: 3, Color: "#dc2626"},
		{Action: rule.ActionAllow, Count: 2, Color: "#22c55e"},
	}, got)
}

func TestTopProjectsByPolicyCount(t *testing.T) {
	rules := []*rule.Rule{
		{ProjectName: "a", PolicyName: "p1"},
		{ProjectName: "a", PolicyName: "p1"},
		{ProjectName: "b", PolicyName: "p1"},
		{ProjectName: "b", PolicyName: "p2"},
		{ProjectName: "c", PolicyName: "p1"},
	}

	got := analytics.TopProjectsByPolicyCount(rules, 2)
	assert.Equal(t, []rule.ProjectPolicyCount{
		{Project: "b", PolicyCount: 2},
		{Project: "a", PolicyCount: 1},
	}, got)

	assert.Len(t, analytics.TopProjectsByPolicyCount(rules, 0), 3)
}

func TestComputeFacets(t *testing.T) {
	rules := []*rule.Rule{
		{ProjectName: "a", Status: "deny allow", AdaptiveProtection: true},
		{ProjectName: "b", Status: "allow"},
		{ProjectName: "b", Status: "throttle"},
		{ProjectName: "b", Status: ""},
	}

	f := analytics.ComputeFacets(rules)
	assert.Equal(t, []analytics.ProjectCount{{Name: "b", Count: 3}, {Name: "a", Count: 1}}, f.Projects)
	assert.Equal(t, analytics.ActionCounts{Deny: 1, Allow: 1, Throttle: 1, Other: 1}, f.Actions)
	assert.Equal(t, analytics.AdaptiveCounts{Enabled: 1, Disabled: 3}, f.Adaptive)

	empty := analytics.ComputeFacets(nil)
	assert.NotNil(t, empty.Projects)
}
