// Package rule holds the Cloud Armor rule record, the attack-category
// classifier and the quick-filter pipeline that narrows a rule collection.
package rule

import "strings"

// NoPriority is the priority Cloud Armor assigns to the implicit default rule.
// It compares like any other integer; only critical-rule counting excludes it.
const NoPriority = 2147483647

// Column defaults applied by ingestion when a cell is blank.
const (
	DefaultTargetList  = "None"
	DefaultLogLevel    = "Standard"
	DefaultJSONParsing = "Disabled"
	DefaultRulesActive = "Active"
)

// Rule is one security-policy match condition with its action and metadata.
//
// Rules are immutable once built. Collections are handled as []*Rule and the
// pointer is the rule's identity: two rows with equal fields are still two
// rules. Never mutate a *Rule in place; build a new one instead.
type Rule struct {
	ProjectName        string `json:"projectName"`
	PolicyName         string `json:"policyName"`
	TargetCount        int    `json:"targetCount"`
	TargetList         string `json:"targetList"`
	AdaptiveProtection bool   `json:"adaptiveProtection"`
	LogLevel           string `json:"logLevel"`
	JSONParsing        string `json:"jsonParsing"`
	RulesActive        string `json:"rulesActive"`
	Status             string `json:"status"`
	MatchExpression    string `json:"matchExpression"`
	RuleDescription    string `json:"ruleDescription"`
	Priority           int32  `json:"priority"`
}

// IsValid reports whether both identity components are present.
func (r *Rule) IsValid() bool {
	return strings.TrimSpace(r.ProjectName) != "" && strings.TrimSpace(r.PolicyName) != ""
}

// IsCritical reports whether the rule has an explicit priority below 1000.
func (r *Rule) IsCritical() bool {
	return r.Priority < 1000 && r.Priority != NoPriority
}

// QuickAction is the coarse action bucket used by quick filters and
// per-project tallies.
type QuickAction string

const (
	QuickActionDeny     QuickAction = "deny"
	QuickActionAllow    QuickAction = "allow"
	QuickActionThrottle QuickAction = "throttle"
	QuickActionOther    QuickAction = "other"
)

// IsValid checks if the quick action is one of the known buckets.
func (a QuickAction) IsValid() bool {
	switch a {
	case QuickActionDeny, QuickActionAllow, QuickActionThrottle, QuickActionOther:
		return true
	}
	return false
}

// QuickActionOf buckets the status by substring, deny before allow before
// throttle. A status matching none of them is "other".
func QuickActionOf(status string) QuickAction {
	s := strings.ToLower(status)
	switch {
	case strings.Contains(s, "deny"):
		return QuickActionDeny
	case strings.Contains(s, "allow"):
		return QuickActionAllow
	case strings.Contains(s, "throttle"):
		return QuickActionThrottle
	default:
		return QuickActionOther
	}
}

// Field names a sortable/exportable column of a rule.
type Field string

const (
	FieldProjectName        Field = "projectName"
	FieldPolicyName         Field = "policyName"
	FieldTargetCount        Field = "targetCount"
	FieldTargetList         Field = "targetList"
	FieldAdaptiveProtection Field = "adaptiveProtection"
	FieldLogLevel           Field = "logLevel"
	FieldJSONParsing        Field = "jsonParsing"
	FieldRulesActive        Field = "rulesActive"
	FieldStatus             Field = "status"
	FieldMatchExpression    Field = "matchExpression"
	FieldRuleDescription    Field = "ruleDescription"
	FieldPriority           Field = "priority"
)

// AllFields lists every column in ledger order.
var AllFields = []Field{
	FieldProjectName,
	FieldPolicyName,
	FieldTargetCount,
	FieldTargetList,
	FieldAdaptiveProtection,
	FieldLogLevel,
	FieldJSONParsing,
	FieldRulesActive,
	FieldStatus,
	FieldMatchExpression,
	FieldRuleDescription,
	FieldPriority,
}

// ParseField converts a column key to a Field.
func ParseField(s string) (Field, bool) {
	for _, f := range AllFields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Value returns the typed value of a column: string, bool or int64.
func (r *Rule) Value(f Field) any {
	switch f {
	case FieldProjectName:
		return r.ProjectName
	case FieldPolicyName:
		return r.PolicyName
	case FieldTargetCount:
		return int64(r.TargetCount)
	case FieldTargetList:
		return r.TargetList
	case FieldAdaptiveProtection:
		return r.AdaptiveProtection
	case FieldLogLevel:
		return r.LogLevel
	case FieldJSONParsing:
		return r.JSONParsing
	case FieldRulesActive:
		return r.RulesActive
	case FieldStatus:
		return r.Status
	case FieldMatchExpression:
		return r.MatchExpression
	case FieldRuleDescription:
		return r.RuleDescription
	case FieldPriority:
		return int64(r.Priority)
	}
	return nil
}
