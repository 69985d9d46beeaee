package query

import (
	"strings"

	"github.com/armorlens/api/pkg/domain/rule"
)

// FilterState is the full set of user-controlled filters. Every zero value
// means "no filter".
type FilterState struct {
	Projects []string            `json:"projects,omitempty"`
	Actions  []rule.QuickAction  `json:"actions,omitempty"`
	Adaptive rule.AdaptiveFilter `json:"adaptive,omitempty"`
	Query    string              `json:"query,omitempty"`
	Search   string              `json:"search,omitempty"`
}

// IsEmpty reports whether no filter is active.
func (f FilterState) IsEmpty() bool {
	return len(f.Projects) == 0 &&
		len(f.Actions) == 0 &&
		(f.Adaptive == "" || f.Adaptive == rule.AdaptiveAll) &&
		strings.TrimSpace(f.Query) == "" &&
		strings.TrimSpace(f.Search) == ""
}

// Apply runs the filter pipeline in its fixed order: projects, actions,
// adaptive, advanced query, quick search. The advanced query evaluates every
// clause against the output of the adaptive stage, not the full collection.
func Apply(rules []*rule.Rule, f FilterState) []*rule.Rule {
	out := rule.FilterByProjects(rules, f.Projects)
	out = rule.FilterByActions(out, f.Actions)
	out = rule.FilterByAdaptive(out, f.Adaptive)
	if strings.TrimSpace(f.Query) != "" {
		out = Evaluate(out, f.Query)
	}
	return rule.FilterBySearch(out, f.Search)
}
