// Package query implements the advanced rule query language: field-qualified
// predicates, a single leading NOT, and a left-to-right AND/OR fold.
package query

import (
	"strconv"
	"strings"
	"unicode"
)

// FieldKey is the closed set of predicate targets a term can address.
type FieldKey int

const (
	// FieldAny is free text, also used for unrecognized field keys.
	FieldAny FieldKey = iota
	FieldProject
	FieldPolicy
	FieldStatus
	FieldPriority
	FieldAdaptive
	FieldExpression
	FieldDescription
)

var fieldKeys = map[string]FieldKey{
	"project":     FieldProject,
	"policy":      FieldPolicy,
	"action":      FieldStatus,
	"status":      FieldStatus,
	"priority":    FieldPriority,
	"adaptive":    FieldAdaptive,
	"expression":  FieldExpression,
	"match":       FieldExpression,
	"description": FieldDescription,
	"desc":        FieldDescription,
}

func (k FieldKey) String() string {
	switch k {
	case FieldProject:
		return "project"
	case FieldPolicy:
		return "policy"
	case FieldStatus:
		return "status"
	case FieldPriority:
		return "priority"
	case FieldAdaptive:
		return "adaptive"
	case FieldExpression:
		return "expression"
	case FieldDescription:
		return "description"
	default:
		return "any"
	}
}

// Comparison is the operator of a priority predicate.
type Comparison int

const (
	CompareEqual Comparison = iota
	CompareLess
	CompareGreater
)

// Term is a parsed query fragment. Parse once and match many rules.
type Term struct {
	Raw     string
	Negated bool
	Field   FieldKey
	// Value is lower-cased. For free text without a colon it is the whole
	// cleaned term, not trimmed.
	Value string

	// Priority predicate, only meaningful when Field is FieldPriority.
	// NumberOK is false when the operand is not a number, in which case the
	// predicate never holds.
	Compare  Comparison
	Number   float64
	NumberOK bool
}

// ParseTerm parses a single fragment (no AND/OR inside it).
//
// A leading "NOT " (any case) negates the term; only one is recognized, so
// "NOT NOT x" is the negation of the free-text term "not x". When the rest
// contains a colon, the text before the first colon is the field key and the
// text between the first and second colon is the value; anything after a
// second colon is dropped.
func ParseTerm(raw string) Term {
	t := Term{Raw: raw}

	clean := raw
	if len(raw) >= 4 && strings.EqualFold(raw[:4], "NOT ") {
		t.Negated = true
		clean = strings.TrimSpace(raw[4:])
	}

	if !strings.Contains(clean, ":") {
		t.Field = FieldAny
		t.Value = strings.ToLower(clean)
		return t
	}

	parts := strings.Split(clean, ":")
	key := strings.ToLower(strings.TrimSpace(parts[0]))
	t.Value = strings.ToLower(strings.TrimSpace(parts[1]))

	field, ok := fieldKeys[key]
	if !ok {
		t.Field = FieldAny
		return t
	}
	t.Field = field

	if field == FieldPriority {
		operand := t.Value
		switch {
		case strings.HasPrefix(operand, "<"):
			t.Compare = CompareLess
			operand = operand[1:]
		case strings.HasPrefix(operand, ">"):
			t.Compare = CompareGreater
			operand = operand[1:]
		default:
			t.Compare = CompareEqual
		}
		t.Number, t.NumberOK = parseLeadingInt(operand)
	}
	return t
}

// parseLeadingInt reads an optionally signed run of decimal digits after any
// leading whitespace and ignores whatever follows, so "12abc" is 12. It
// reports false when no digits are present.
func parseLeadingInt(s string) (float64, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}

	n, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
