package rule_test

import (
	"testing"

	"github.com/armorlens/api/pkg/domain/rule"
	"github.com/stretchr/testify/assert"
)

func sampleRules() []*rule.Rule {
	return []*rule.Rule{
		{ProjectName: "alpha", PolicyName: "edge", Status: "deny(403)", AdaptiveProtection: true, MatchExpression: "evaluatePreconfiguredWaf('sqli-v33-stable')", Priority: 100},
		{ProjectName: "alpha", PolicyName: "edge", Status: "allow", Priority: 2000},
		{ProjectName: "beta", PolicyName: "api", Status: "throttle", RuleDescription: "Rate limit login", Priority: 500},
		{ProjectName: "beta", PolicyName: "api", Status: "redirect", Priority: rule.NoPriority},
		{ProjectName: "gamma", PolicyName: "web", Status: "deny allow", Priority: 10},
	}
}

func TestFilterByProjects(t *testing.T) {
	rules := sampleRules()

	t.Run("empty selection passes through", func(t *testing.T) {
		got := rule.FilterByProjects(rules, nil)
		assert.Equal(t, rules, got)
	})

	t.Run("keeps selected projects in order", func(t *testing.T) {
		got := rule.FilterByProjects(rules, []string{"beta", "gamma"})
		assert.Equal(t, []*rule.Rule{rules[2], rules[3], rules[4]}, got)
	})

	t.Run("unknown project yields empty", func(t *testing.T) {
		got := rule.FilterByProjects(rules, []string{"zeta"})
		assert.Empty(t, got)
		assert.NotNil(t, got)
	})
}

func TestFilterByActions(t *testing.T) {
	rules := sampleRules()

	tests := []struct {
		name    string
		actions []rule.QuickAction
		want    []*rule.Rule
	}{
		{"empty passes", nil, rules},
		{"deny", []rule.QuickAction{rule.QuickActionDeny}, []*rule.Rule{rules[0], rules[4]}},
		{"allow also matches mixed status", []rule.QuickAction{rule.QuickActionAllow}, []*rule.Rule{rules[1], rules[4]}},
		{"throttle", []rule.QuickAction{rule.QuickActionThrottle}, []*rule.Rule{rules[2]}},
		{"other", []rule.QuickAction{rule.QuickActionOther}, []*rule.Rule{rules[3]}},
		{"union of buckets", []rule.QuickAction{rule.QuickActionThrottle, rule.QuickActionOther}, []*rule.Rule{rules[2], rules[3]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rule.FilterByActions(rules, tt.actions))
		})
	}
}

func TestFilterByAdaptive(t *testing.T) {
	rules := sampleRules()

	assert.Equal(t, rules, rule.FilterByAdaptive(rules, rule.AdaptiveAll))
	assert.Equal(t, rules, rule.FilterByAdaptive(rules, ""))
	assert.Equal(t, []*rule.Rule{rules[0]}, rule.FilterByAdaptive(rules, rule.AdaptiveEnabled))
	assert.Len(t, rule.FilterByAdaptive(rules, rule.AdaptiveDisabled), 4)
}

func TestAdaptiveFilter_IsValid(t *testing.T) {
	assert.True(t, rule.AdaptiveFilter("").IsValid())
	assert.True(t, rule.AdaptiveEnabled.IsValid())
	assert.False(t, rule.AdaptiveFilter("sometimes").IsValid())
}

func TestFilterBySearch(t *testing.T) {
	rules := sampleRules()

	t.Run("blank search passes through", func(t *testing.T) {
		assert.Equal(t, rules, rule.FilterBySearch(rules, "   "))
	})

	t.Run("case insensitive across text fields", func(t *testing.T) {
		assert.Equal(t, []*rule.Rule{rules[2]}, rule.FilterBySearch(rules, "RATE LIMIT"))
		assert.Equal(t, []*rule.Rule{rules[0]}, rule.FilterBySearch(rules, "SQLi"))
	})

	t.Run("priority is not searched", func(t *testing.T) {
		assert.Empty(t, rule.FilterBySearch(rules, "2000"))
	})

	t.Run("search string is not trimmed", func(t *testing.T) {
		assert.Empty(t, rule.FilterBySearch(rules, " alpha"))
	})
}

func TestQuickActionOf(t *testing.T) {
	assert.Equal(t, rule.QuickActionDeny, rule.QuickActionOf("DENY(404)"))
	assert.Equal(t, rule.QuickActionDeny, rule.QuickActionOf("deny allow"))
	assert.Equal(t, rule.QuickActionAllow, rule.QuickActionOf("allow"))
	assert.Equal(t, rule.QuickActionThrottle, rule.QuickActionOf("throttle"))
	assert.Equal(t, rule.QuickActionOther, rule.QuickActionOf("redirect"))
	assert.Equal(t, rule.QuickActionOther, rule.QuickActionOf(""))
}

func TestRule_IsCritical(t *testing.T) {
	assert.True(t, (&rule.Rule{Priority: 999}).IsCritical())
	assert.True(t, (&rule.Rule{Priority: 0}).IsCritical())
	assert.False(t, (&rule.Rule{Priority: 1000}).IsCritical())
	assert.False(t, (&rule.Rule{Priority: rule.NoPriority}).IsCritical())
}

func TestRule_Value(t *testing.T) {
	r := &rule.Rule{ProjectName: "alpha", AdaptiveProtection: true, Priority: 42, TargetCount: 3}

	assert.Equal(t, "alpha", r.Value(rule.FieldProjectName))
	assert.Equal(t, true, r.Value(rule.FieldAdaptiveProtection))
	assert.Equal(t, int64(42), r.Value(rule.FieldPriority))
	assert.Equal(t, int64(3), r.Value(rule.FieldTargetCount))

	f, ok := rule.ParseField("matchExpression")
	assert.True(t, ok)
	assert.Equal(t, rule.FieldMatchExpression, f)
	_, ok = rule.ParseField("nope")
	assert.False(t, ok)
}
