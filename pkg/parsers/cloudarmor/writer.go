package cloudarmor

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/armorlens/api/pkg/domain/rule"
)

// LedgerFields are the columns the ledger shows by default, in order.
var LedgerFields = []rule.Field{
	rule.FieldProjectName,
	rule.FieldPolicyName,
	rule.FieldAdaptiveProtection,
	rule.FieldRuleDescription,
	rule.FieldMatchExpression,
	rule.FieldStatus,
	rule.FieldPriority,
}

var fieldLabels = map[rule.Field]string{
	rule.FieldProjectName:        "Project",
	rule.FieldPolicyName:         "Policy",
	rule.FieldTargetCount:        ColTargetCount,
	rule.FieldTargetList:         ColTargetList,
	rule.FieldAdaptiveProtection: "Adaptive",
	rule.FieldLogLevel:           ColLogLevel,
	rule.FieldJSONParsing:        ColJSONParsing,
	rule.FieldRulesActive:        ColRulesActive,
	rule.FieldStatus:             "Action",
	rule.FieldMatchExpression:    "Match Expression",
	rule.FieldRuleDescription:    "Description",
	rule.FieldPriority:           "Priority",
}

// Label returns the export header of a field.
func Label(f rule.Field) string {
	if l, ok := fieldLabels[f]; ok {
		return l
	}
	return string(f)
}

// Write exports rules as CSV with one column per field. Every cell is
// quoted, adaptive protection is written as Enabled or Disabled, and rows
// are separated by a bare newline with none after the last row. A nil or
// empty field list means LedgerFields.
func Write(w io.Writer, rules []*rule.Rule, fields []rule.Field) error {
	if len(fields) == 0 {
		fields = LedgerFields
	}

	bw := bufio.NewWriter(w)
	cells := make([]string, len(fields))

	for i, f := range fields {
		cells[i] = quote(Label(f))
	}
	if _, err := bw.WriteString(strings.Join(cells, ",")); err != nil {
		return err
	}

	for _, r := range rules {
		for i, f := range fields {
			cells[i] = quote(cellValue(r, f))
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
		if _, err := bw.WriteString(strings.Join(cells, ",")); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func cellValue(r *rule.Rule, f rule.Field) string {
	switch v := r.Value(f).(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if f == rule.FieldAdaptiveProtection {
			if v {
				return "Enabled"
			}
			return "Disabled"
		}
		return strconv.FormatBool(v)
	}
	return ""
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
