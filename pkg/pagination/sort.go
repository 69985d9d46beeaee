package pagination

import (
	"cmp"
	"slices"
	"strings"

	"github.com/armorlens/api/pkg/domain/rule"
)

// SortOrder represents the sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortState is the ledger's current sort column. A zero value means
// unsorted.
type SortState struct {
	Field rule.Field `json:"field,omitempty"`
	Order SortOrder  `json:"order,omitempty"`
}

// ParseSort builds a SortState from request values. Unknown fields yield an
// unsorted state and anything but "desc" sorts ascending.
func ParseSort(field, order string) SortState {
	f, ok := rule.ParseField(strings.TrimSpace(field))
	if !ok {
		return SortState{}
	}
	if strings.EqualFold(strings.TrimSpace(order), string(SortDesc)) {
		return SortState{Field: f, Order: SortDesc}
	}
	return SortState{Field: f, Order: SortAsc}
}

// IsEmpty returns true if no sort column is selected.
func (s SortState) IsEmpty() bool {
	return s.Field == ""
}

// Toggle returns the state after a click on field: the same column flips
// direction, a new column starts ascending.
func (s SortState) Toggle(field rule.Field) SortState {
	if s.Field == field {
		if s.Order == SortAsc {
			return SortState{Field: field, Order: SortDesc}
		}
		return SortState{Field: field, Order: SortAsc}
	}
	return SortState{Field: field, Order: SortAsc}
}

// SortRules returns a sorted copy of rules. Strings compare case-insensitively,
// booleans as 0/1 and numbers numerically; ties keep their input order. An
// empty state returns the input unchanged.
func SortRules(rules []*rule.Rule, s SortState) []*rule.Rule {
	if s.IsEmpty() {
		return rules
	}

	out := slices.Clone(rules)
	slices.SortStableFunc(out, func(a, b *rule.Rule) int {
		c := compareValues(a.Value(s.Field), b.Value(s.Field))
		if s.Order == SortDesc {
			return -c
		}
		return c
	})
	return out
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		return strings.Compare(strings.ToLower(av), strings.ToLower(bv))
	case bool:
		bv, _ := b.(bool)
		return cmp.Compare(boolRank(av), boolRank(bv))
	case int64:
		bv, _ := b.(int64)
		return cmp.Compare(av, bv)
	}
	return 0
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
