// Package analytics derives dashboard aggregates from a rule collection.
// Every function is pure and total: an empty input yields zero values.
package analytics

import (
	"slices"
	"strings"

	"github.com/armorlens/api/pkg/domain/rule"
)

// DefaultTopProjects is the default length of the top-projects ranking.
const DefaultTopProjects = 10

// tally counts keys in first-appearance order.
type tally[K comparable] struct {
	order  []K
	counts map[K]int
}

func newTally[K comparable]() *tally[K] {
	return &tally[K]{counts: make(map[K]int)}
}

func (t *tally[K]) add(k K) {
	if _, ok := t.counts[k]; !ok {
		t.order = append(t.order, k)
	}
	t.counts[k]++
}

// policyAdaptive maps each policy name to whether any rule with that name,
// in any project, has adaptive protection on.
func policyAdaptive(rules []*rule.Rule) map[string]bool {
	m := make(map[string]bool)
	for _, r := range rules {
		m[r.PolicyName] = m[r.PolicyName] || r.AdaptiveProtection
	}
	return m
}

// KPIs computes the headline metrics. Policies are counted by name across
// the whole collection, so two projects sharing a policy name contribute one
// policy, and that policy is adaptive if either project enabled it.
func KPIs(rules []*rule.Rule) rule.KPIMetrics {
	projects := make(map[string]struct{})
	critical := 0
	for _, r := range rules {
		projects[r.ProjectName] = struct{}{}
		if r.IsCritical() {
			critical++
		}
	}

	policies := policyAdaptive(rules)
	adaptive := 0
	for _, on := range policies {
		if on {
			adaptive++
		}
	}

	return rule.KPIMetrics{
		TotalProjects: len(projects),
		TotalPolicies: len(policies),
		WAFCoverage:   rule.Percent(adaptive, len(policies)),
		CriticalRules: critical,
		TotalRules:    len(rules),
	}
}

// AttackVectorDistribution classifies every rule and returns the non-empty
// categories by descending count. Ties keep first-appearance order.
func AttackVectorDistribution(rules []*rule.Rule) []rule.AttackVectorData {
	t := newTally[rule.AttackCategory]()
	for _, r := range rules {
		t.add(rule.Classify(r))
	}

	out := make([]rule.AttackVectorData, 0, len(t.order))
	for _, c := range t.order {
		out = append(out, rule.AttackVectorData{Label: c, Count: t.counts[c], Color: c.Color()})
	}
	slices.SortStableFunc(out, func(a, b rule.AttackVectorData) int {
		return b.Count - a.Count
	})
	return out
}

// NormalizeAction maps a raw status to its distribution bucket. It reports
// false for a blank status, which is left out of the distribution.
func NormalizeAction(status string) (rule.ActionBucket, bool) {
	s := strings.ToLower(strings.TrimSpace(status))
	switch {
	case s == "":
		return "", false
	case strings.Contains(s, "deny"):
		switch {
		case strings.Contains(s, "403"):
			return rule.ActionDeny403, true
		case strings.Contains(s, "404"):
			return rule.ActionDeny404, true
		case strings.Contains(s, "502"):
			return rule.ActionDeny502, true
		default:
			return rule.ActionDeny403, true
		}
	case strings.Contains(s, "allow"):
		return rule.ActionAllow, true
	case strings.Contains(s, "throttle"):
		return rule.ActionThrottle, true
	case strings.Contains(s, "redirect"):
		return rule.ActionRedirect, true
	case strings.Contains(s, "rate"):
		return rule.ActionRateBasedBan, true
	default:
		return rule.ActionOther, true
	}
}

// ActionDistribution counts rules per action bucket, descending.
func ActionDistribution(rules []*rule.Rule) []rule.ActionDistributionData {
	t := newTally[rule.ActionBucket]()
	for _, r := range rules {
		if bucket, ok := NormalizeAction(r.Status); ok {
			t.add(bucket)
		}
	}

	out := make([]rule.ActionDistributionData, 0, len(t.order))
	for _, a := range t.order {
		out = append(out, rule.ActionDistributionData{Action: a, Count: t.counts[a], Color: a.Color()})
	}
	slices.SortStableFunc(out, func(a, b rule.ActionDistributionData) int {
		return b.Count - a.Count
	})
	return out
}

// TopProjectsByPolicyCount ranks projects by distinct policy names and keeps
// the first limit entries. A non-positive limit means DefaultTopProjects.
func TopProjectsByPolicyCount(rules []*rule.Rule, limit int) []rule.ProjectPolicyCount {
	if limit <= 0 {
		limit = DefaultTopProjects
	}

	var order []string
	policies := make(map[string]map[string]struct{})
	for _, r := range rules {
		set, ok := policies[r.ProjectName]
		if !ok {
			set = make(map[string]struct{})
			policies[r.ProjectName] = set
			order = append(order, r.ProjectName)
		}
		set[r.PolicyName] = struct{}{}
	}

	out := make([]rule.ProjectPolicyCount, 0, len(order))
	for _, p := range order {
		out = append(out, rule.ProjectPolicyCount{Project: p, PolicyCount: len(policies[p])})
	}
	slices.SortStableFunc(out, func(a, b rule.ProjectPolicyCount) int {
		return b.PolicyCount - a.PolicyCount
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
