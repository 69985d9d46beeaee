package query

import (
	"strconv"
	"strings"

	"github.com/armorlens/api/pkg/domain/rule"
)

// Matches reports whether the rule satisfies the raw term.
func Matches(r *rule.Rule, term string) bool {
	return ParseTerm(term).Matches(r)
}

// Matches reports whether the rule satisfies the parsed term.
func (t Term) Matches(r *rule.Rule) bool {
	var ok bool

	switch t.Field {
	case FieldProject:
		ok = containsFold(r.ProjectName, t.Value)
	case FieldPolicy:
		ok = containsFold(r.PolicyName, t.Value)
	case FieldStatus:
		ok = containsFold(r.Status, t.Value)
	case FieldPriority:
		ok = t.matchPriority(r.Priority)
	case FieldAdaptive:
		ok = r.AdaptiveProtection == (t.Value == "true")
	case FieldExpression:
		ok = containsFold(r.MatchExpression, t.Value)
	case FieldDescription:
		ok = containsFold(r.RuleDescription, t.Value)
	default:
		ok = searchAllFields(r, t.Value)
	}

	if t.Negated {
		return !ok
	}
	return ok
}

func (t Term) matchPriority(priority int32) bool {
	if !t.NumberOK {
		return false
	}
	p := float64(priority)
	switch t.Compare {
	case CompareLess:
		return p < t.Number
	case CompareGreater:
		return p > t.Number
	default:
		return p == t.Number
	}
}

// searchAllFields expects an already lower-cased needle.
func searchAllFields(r *rule.Rule, needle string) bool {
	return containsFold(r.ProjectName, needle) ||
		containsFold(r.PolicyName, needle) ||
		containsFold(r.RuleDescription, needle) ||
		containsFold(r.MatchExpression, needle) ||
		containsFold(r.Status, needle) ||
		strings.Contains(strconv.FormatInt(int64(r.Priority), 10), needle)
}

func containsFold(haystack, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(haystack), lowerNeedle)
}
