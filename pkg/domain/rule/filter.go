package rule

import "strings"

// AdaptiveFilter is the tri-state adaptive-protection quick filter.
type AdaptiveFilter string

const (
	AdaptiveAll      AdaptiveFilter = "all"
	AdaptiveEnabled  AdaptiveFilter = "enabled"
	AdaptiveDisabled AdaptiveFilter = "disabled"
)

// IsValid checks if the adaptive filter is valid. The empty value means all.
func (f AdaptiveFilter) IsValid() bool {
	switch f {
	case "", AdaptiveAll, AdaptiveEnabled, AdaptiveDisabled:
		return true
	}
	return false
}

// FilterByProjects keeps rules whose project is selected.
// An empty selection passes the input through untouched.
func FilterByProjects(rules []*Rule, projects []string) []*Rule {
	if len(projects) == 0 {
		return rules
	}
	selected := make(map[string]struct{}, len(projects))
	for _, p := range projects {
		selected[p] = struct{}{}
	}

	out := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		if _, ok := selected[r.ProjectName]; ok {
			out = append(out, r)
		}
	}
	return out
}

// FilterByActions keeps rules matching any selected quick action.
//
// Each selected bucket is tested on its own, so a status containing both
// "deny" and "allow" passes either selection. "other" selects statuses that
// contain none of deny, allow or throttle.
func FilterByActions(rules []*Rule, actions []QuickAction) []*Rule {
	if len(actions) == 0 {
		return rules
	}
	var deny, allow, throttle, other bool
	for _, a := range actions {
		switch a {
		case QuickActionDeny:
			deny = true
		case QuickActionAllow:
			allow = true
		case QuickActionThrottle:
			throttle = true
		case QuickActionOther:
			other = true
		}
	}

	out := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		status := strings.ToLower(r.Status)
		hasDeny := strings.Contains(status, "deny")
		hasAllow := strings.Contains(status, "allow")
		hasThrottle := strings.Contains(status, "throttle")

		if (deny && hasDeny) ||
			(allow && hasAllow) ||
			(throttle && hasThrottle) ||
			(other && !hasDeny && !hasAllow && !hasThrottle) {
			out = append(out, r)
		}
	}
	return out
}

// FilterByAdaptive applies the adaptive tri-state. "all" and the empty value
// pass everything.
func FilterByAdaptive(rules []*Rule, filter AdaptiveFilter) []*Rule {
	if filter == "" || filter == AdaptiveAll {
		return rules
	}
	want := filter == AdaptiveEnabled

	out := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		if r.AdaptiveProtection == want {
			out = append(out, r)
		}
	}
	return out
}

// FilterBySearch is the ledger's quick search: a case-insensitive substring
// test over project, policy, description, expression and status. Priority is
// not searched here, unlike free-text query terms.
func FilterBySearch(rules []*Rule, search string) []*Rule {
	if strings.TrimSpace(search) == "" {
		return rules
	}
	q := strings.ToLower(search)

	out := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		if strings.Contains(strings.ToLower(r.ProjectName), q) ||
			strings.Contains(strings.ToLower(r.PolicyName), q) ||
			strings.Contains(strings.ToLower(r.RuleDescription), q) ||
			strings.Contains(strings.ToLower(r.MatchExpression), q) ||
			strings.Contains(strings.ToLower(r.Status), q) {
			out = append(out, r)
		}
	}
	return out
}
