package analytics

import (
	"slices"

	"github.com/armorlens/api/pkg/domain/rule"
)

// ProjectCount is the number of rules in a project.
type ProjectCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ActionCounts tallies rules per quick action, first match wins.
type ActionCounts struct {
	Deny     int `json:"deny"`
	Allow    int `json:"allow"`
	Throttle int `json:"throttle"`
	Other    int `json:"other"`
}

// AdaptiveCounts splits rules by adaptive protection.
type AdaptiveCounts struct {
	Enabled  int `json:"enabled"`
	Disabled int `json:"disabled"`
}

// Facets holds the counts shown next to each quick filter.
type Facets struct {
	Projects []ProjectCount `json:"projects"`
	Actions  ActionCounts   `json:"actions"`
	Adaptive AdaptiveCounts `json:"adaptive"`
}

// ComputeFacets counts rules per project (descending), per quick action and
// per adaptive state.
func ComputeFacets(rules []*rule.Rule) Facets {
	t := newTally[string]()
	var f Facets

	for _, r := range rules {
		t.add(r.ProjectName)

		switch rule.QuickActionOf(r.Status) {
		case rule.QuickActionDeny:
			f.Actions.Deny++
		case rule.QuickActionAllow:
			f.Actions.Allow++
		case rule.QuickActionThrottle:
			f.Actions.Throttle++
		default:
			f.Actions.Other++
		}

		if r.AdaptiveProtection {
			f.Adaptive.Enabled++
		} else {
			f.Adaptive.Disabled++
		}
	}

	f.Projects = make([]ProjectCount, 0, len(t.order))
	for _, name := range t.order {
		f.Projects = append(f.Projects, ProjectCount{Name: name, Count: t.counts[name]})
	}
	slices.SortStableFunc(f.Projects, func(a, b ProjectCount) int {
		return b.Count - a.Count
	})
	return f
}
