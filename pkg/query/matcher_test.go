package query_test

import (
	"testing"

	"github.com/armorlens/api/pkg/domain/rule"
	"github.com/armorlens/api/pkg/query"
	"github.com/stretchr/testify/assert"
)

func TestParseTerm(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		negated bool
		field   query.FieldKey
		value   string
	}{
		{"free text", "SQLi", false, query.FieldAny, "sqli"},
		{"negated free text", "not sqli", true, query.FieldAny, "sqli"},
		{"field", "Project: Alpha ", false, query.FieldProject, "alpha"},
		{"action alias", "action:deny", false, query.FieldStatus, "deny"},
		{"match alias", "match:xss", false, query.FieldExpression, "xss"},
		{"desc alias", "desc:login", false, query.FieldDescription, "login"},
		{"second colon dropped", "match:a:b", false, query.FieldExpression, "a"},
		{"unknown key keeps value only", "owner:team-a", false, query.FieldAny, "team-a"},
		{"double NOT negates once", "NOT NOT x", true, query.FieldAny, "not x"},
		{"NOT without space is text", "NOTx", false, query.FieldAny, "notx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := query.ParseTerm(tt.raw)
			assert.Equal(t, tt.negated, term.Negated)
			assert.Equal(t, tt.field, term.Field)
			assert.Equal(t, tt.value, term.Value)
		})
	}
}

func TestMatches(t *testing.T) {
	r := &rule.Rule{
		ProjectName:        "prod-shop",
		PolicyName:         "edge-policy",
		Status:             "deny(403)",
		MatchExpression:    "evaluatePreconfiguredWaf('xss-v33-stable')",
		RuleDescription:    "Block cross-site scripting",
		AdaptiveProtection: true,
		Priority:           900,
	}

	tests := []struct {
		term string
		want bool
	}{
		{"project:shop", true},
		{"project:staging", false},
		{"policy:EDGE", true},
		{"status:deny", true},
		{"action:allow", false},
		{"priority:900", true},
		{"priority:<1000", true},
		{"priority:>1000", false},
		{"priority:> 899", true},
		{"priority:900abc", true},
		{"priority:<abc", false},
		{"priority:abc", false},
		{"NOT priority:<abc", true},
		{"adaptive:true", true},
		{"adaptive:false", false},
		{"adaptive:yes", false},
		{"expression:xss", true},
		{"match:xss:ignored", true},
		{"description:scripting", true},
		{"desc:sql", false},
		{"unknown:edge", true},
		{"XSS", true},
		{"90", true},
		{"NOT xss", false},
		{"not deny", false},
		{"NOT NOT xss", true},
		{"project:", true},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			assert.Equal(t, tt.want, query.Matches(r, tt.term))
		})
	}
}

func TestMatches_SentinelPriority(t *testing.T) {
	def := &rule.Rule{Priority: rule.NoPriority, Status: "allow"}

	assert.False(t, query.Matches(def, "priority:<1000"))
	assert.True(t, query.Matches(def, "priority:>1000"))
	assert.True(t, query.Matches(def, "priority:2147483647"))
}
