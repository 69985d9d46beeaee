package rule

import "strings"

// AttackCategory is the attack-vector tag assigned to a rule by keyword heuristic.
type AttackCategory string

const (
	CategorySQLi              AttackCategory = "SQLi"
	CategoryXSS               AttackCategory = "XSS"
	CategoryLFI               AttackCategory = "LFI"
	CategoryRFI               AttackCategory = "RFI"
	CategoryRCE               AttackCategory = "RCE"
	CategoryPHPNode           AttackCategory = "PHP/Node.js"
	CategoryProtocolAttack    AttackCategory = "Protocol Attack"
	CategoryScanners          AttackCategory = "Scanners"
	CategorySessionFixation   AttackCategory = "Session Fixation"
	CategoryJava              AttackCategory = "Java"
	CategoryRateLimiting      AttackCategory = "Rate Limiting"
	CategoryIPLists           AttackCategory = "IP Lists"
	CategoryMethodEnforcement AttackCategory = "Method Enforcement"
	CategoryDefaultRule       AttackCategory = "Default Rule"
	CategoryOther             AttackCategory = "Other"
)

// AllCategories lists every category in classification order, Other last.
var AllCategories = []AttackCategory{
	CategorySQLi,
	CategoryXSS,
	CategoryLFI,
	CategoryRFI,
	CategoryRCE,
	CategoryPHPNode,
	CategoryProtocolAttack,
	CategoryScanners,
	CategorySessionFixation,
	CategoryJava,
	CategoryRateLimiting,
	CategoryIPLists,
	CategoryMethodEnforcement,
	CategoryDefaultRule,
	CategoryOther,
}

// IsValid checks if the category is one of the fifteen known tags.
func (c AttackCategory) IsValid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// categoryColors are the chart colors shipped with each category.
var categoryColors = map[AttackCategory]string{
	CategorySQLi:              "#ef4444",
	CategoryXSS:               "#f97316",
	CategoryLFI:               "#eab308",
	CategoryRFI:               "#84cc16",
	CategoryRCE:               "#dc2626",
	CategoryPHPNode:           "#8b5cf6",
	CategoryProtocolAttack:    "#06b6d4",
	CategoryScanners:          "#ec4899",
	CategorySessionFixation:   "#14b8a6",
	CategoryJava:              "#a855f7",
	CategoryRateLimiting:      "#f59e0b",
	CategoryIPLists:           "#3b82f6",
	CategoryMethodEnforcement: "#6366f1",
	CategoryDefaultRule:       "#9ca3af",
	CategoryOther:             "#6b7280",
}

// Color returns the chart color of the category.
func (c AttackCategory) Color() string {
	if color, ok := categoryColors[c]; ok {
		return color
	}
	return categoryColors[CategoryOther]
}

// categoryKeywords pairs a category with the substrings that select it.
// Expression keywords are tested against the lower-cased match expression,
// description keywords against the lower-cased rule description.
type categoryKeywords struct {
	category    AttackCategory
	expression  []string
	description []string
}

// classifierTable is evaluated top to bottom; the first hit wins, so the
// order is part of the contract (a "sqli scanner" expression is SQLi).
var classifierTable = []categoryKeywords{
	{CategorySQLi, []string{"sqli"}, []string{"sql injection", "sql"}},
	{CategoryXSS, []string{"xss"}, []string{"cross-site scripting", "xss"}},
	{CategoryLFI, []string{"lfi"}, []string{"local file inclusion"}},
	{CategoryRFI, []string{"rfi"}, []string{"remote file inclusion"}},
	{CategoryRCE, []string{"rce"}, []string{"remote code execution", "command injection"}},
	{CategoryPHPNode, []string{"php", "nodejs"}, []string{"php", "node"}},
	{CategoryProtocolAttack, []string{"protocol", "http"}, []string{"protocol"}},
	{CategoryScanners, []string{"scanner", "scannerdetection"}, []string{"scanner"}},
	{CategorySessionFixation, []string{"session"}, []string{"session fixation"}},
	{CategoryJava, []string{"java"}, []string{"java"}},
	{CategoryRateLimiting, []string{"contains", "region_code"}, []string{"rate limit", "throttle"}},
	{CategoryIPLists, []string{"src_ips", "addressgroup", "iplist", "threatintelligence"}, nil},
	{CategoryMethodEnforcement, []string{"method"}, []string{"method enforcement"}},
	{CategoryDefaultRule, nil, []string{"default"}},
}

// Classify returns the attack category of a rule. It never fails: rules
// matching no keyword are Other.
func Classify(r *Rule) AttackCategory {
	return ClassifyText(r.MatchExpression, r.RuleDescription)
}

// ClassifyText classifies a raw match expression and description pair.
func ClassifyText(matchExpression, ruleDescription string) AttackCategory {
	expr := strings.ToLower(matchExpression)
	desc := strings.ToLower(ruleDescription)

	for _, entry := range classifierTable {
		if containsAny(expr, entry.expression) || containsAny(desc, entry.description) {
			return entry.category
		}
	}
	return CategoryOther
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
