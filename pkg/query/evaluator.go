package query

import (
	"strings"

	"github.com/armorlens/api/pkg/domain/rule"
)

// Operator joins a clause to the running result.
type Operator string

const (
	OpStart Operator = "START"
	OpAnd   Operator = "AND"
	OpOr    Operator = "OR"
)

// Clause is one term of a query with the operator that precedes it.
type Clause struct {
	Term string   `json:"term"`
	Op   Operator `json:"operator"`
}

// Tokenize splits a query into clauses. Words equal to AND or OR (any case)
// end the current term; the first clause always carries OpStart. Operators
// with no term between them collapse into the last one seen.
func Tokenize(query string) []Clause {
	var (
		clauses []Clause
		buf     []string
		pending = OpStart
	)

	flush := func() {
		if len(buf) > 0 {
			clauses = append(clauses, Clause{Term: strings.Join(buf, " "), Op: pending})
		}
		buf = buf[:0]
	}

	for _, word := range strings.Fields(query) {
		switch strings.ToUpper(word) {
		case "AND":
			flush()
			pending = OpAnd
		case "OR":
			flush()
			pending = OpOr
		default:
			buf = append(buf, word)
		}
	}
	flush()

	return clauses
}

// Evaluate filters rules by the query.
//
// There is no precedence: clauses fold left to right. Every clause after the
// first is matched against the full input, then AND keeps the running rules
// that also matched, and OR appends newly matched rules in input order.
// Membership is by pointer identity. An empty query returns the input as is.
func Evaluate(rules []*rule.Rule, query string) []*rule.Rule {
	clauses := Tokenize(query)
	if len(clauses) == 0 {
		return rules
	}

	result := filter(rules, ParseTerm(clauses[0].Term))

	for _, c := range clauses[1:] {
		matched := filter(rules, ParseTerm(c.Term))

		switch c.Op {
		case OpAnd:
			set := identitySet(matched)
			narrowed := make([]*rule.Rule, 0, len(result))
			for _, r := range result {
				if _, ok := set[r]; ok {
					narrowed = append(narrowed, r)
				}
			}
			result = narrowed
		case OpOr:
			seen := identitySet(result)
			for _, r := range matched {
				if _, ok := seen[r]; !ok {
					seen[r] = struct{}{}
					result = append(result, r)
				}
			}
		}
	}

	return result
}

func filter(rules []*rule.Rule, t Term) []*rule.Rule {
	out := make([]*rule.Rule, 0, len(rules))
	for _, r := range rules {
		if t.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func identitySet(rules []*rule.Rule) map[*rule.Rule]struct{} {
	set := make(map[*rule.Rule]struct{}, len(rules))
	for _, r := range rules {
		set[r] = struct{}{}
	}
	return set
}
