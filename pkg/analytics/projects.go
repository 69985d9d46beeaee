package analytics

import (
	"slices"
	"strings"

	"github.com/armorlens/api/pkg/domain/rule"
)

// ProjectAnalysis breaks the collection down per project, sorted by policy
// count descending with ties in first-appearance order.
//
// AdaptiveProtectionCount counts the project's policies whose name has an
// adaptive rule anywhere in the collection. A project can therefore report
// adaptive coverage it never enabled itself, as long as another project uses
// the same policy name with adaptive protection on. The dashboard KPIs
// count each policy name once across all projects instead, so per-project
// coverage figures do not add up to the dashboard's WAF coverage.
func ProjectAnalysis(rules []*rule.Rule) []rule.ProjectAnalysis {
	adaptive := policyAdaptive(rules)

	var order []string
	byName := make(map[string]*rule.ProjectAnalysis)
	seenPolicy := make(map[string]map[string]struct{})

	for _, r := range rules {
		p, ok := byName[r.ProjectName]
		if !ok {
			p = &rule.ProjectAnalysis{
				Name:     r.ProjectName,
				Policies: []string{},
				Rules:    []*rule.Rule{},
			}
			byName[r.ProjectName] = p
			seenPolicy[r.ProjectName] = make(map[string]struct{})
			order = append(order, r.ProjectName)
		}

		if _, dup := seenPolicy[r.ProjectName][r.PolicyName]; !dup {
			seenPolicy[r.ProjectName][r.PolicyName] = struct{}{}
			p.Policies = append(p.Policies, r.PolicyName)
			if adaptive[r.PolicyName] {
				p.AdaptiveProtectionCount++
			}
		}
		p.Rules = append(p.Rules, r)

		status := strings.ToLower(r.Status)
		switch {
		case strings.Contains(status, "deny"):
			p.DenyRules++
		case strings.Contains(status, "allow"):
			p.AllowRules++
		case strings.Contains(status, "throttle"):
			p.ThrottleRules++
		}
	}

	out := make([]rule.ProjectAnalysis, 0, len(order))
	for _, name := range order {
		p := byName[name]
		p.PolicyCount = len(p.Policies)
		p.RuleCount = len(p.Rules)
		out = append(out, *p)
	}
	slices.SortStableFunc(out, func(a, b rule.ProjectAnalysis) int {
		return b.PolicyCount - a.PolicyCount
	})
	return out
}

// FindProject returns the analysis of a single project.
func FindProject(rules []*rule.Rule, name string) (rule.ProjectAnalysis, bool) {
	for _, p := range ProjectAnalysis(rules) {
		if p.Name == name {
			return p, true
		}
	}
	return rule.ProjectAnalysis{}, false
}
