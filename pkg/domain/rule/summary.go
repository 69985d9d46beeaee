package rule

import "math"

// KPIMetrics is the headline summary of a rule collection.
type KPIMetrics struct {
	TotalProjects int `json:"totalProjects"`
	TotalPolicies int `json:"totalPolicies"`
	WAFCoverage   int `json:"wafCoverage"`
	CriticalRules int `json:"criticalRules"`
	TotalRules    int `json:"totalRules"`
}

// AttackVectorData is one slice of the attack-vector distribution.
type AttackVectorData struct {
	Label AttackCategory `json:"label"`
	Count int            `json:"count"`
	Color string         `json:"color"`
}

// ActionDistributionData is one slice of the action distribution.
type ActionDistributionData struct {
	Action ActionBucket `json:"action"`
	Count  int          `json:"count"`
	Color  string       `json:"color"`
}

// ProjectPolicyCount ranks a project by its number of distinct policies.
type ProjectPolicyCount struct {
	Project     string `json:"project"`
	PolicyCount int    `json:"policyCount"`
}

// ProjectAnalysis is the per-project breakdown.
type ProjectAnalysis struct {
	Name                    string   `json:"name"`
	PolicyCount             int      `json:"policyCount"`
	RuleCount               int      `json:"ruleCount"`
	AdaptiveProtectionCount int      `json:"adaptiveProtectionCount"`
	DenyRules               int      `json:"denyRules"`
	AllowRules              int      `json:"allowRules"`
	ThrottleRules           int      `json:"throttleRules"`
	Policies                []string `json:"policies"`
	Rules                   []*Rule  `json:"rules"`
}

// WAFCoverage is the share of the project's policies that are adaptive
// somewhere, as a rounded percentage.
func (p *ProjectAnalysis) WAFCoverage() int {
	return Percent(p.AdaptiveProtectionCount, p.PolicyCount)
}

// Percent returns round(part/whole*100), or 0 when whole is zero.
// The ratio is computed in float64 and halves round up, so results match
// the dashboard figures bit for bit.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	x := float64(part) / float64(whole) * 100
	r := math.Floor(x)
	if x-r >= 0.5 {
		r++
	}
	return int(r)
}

// ActionBucket is the normalized action name used by the action distribution.
type ActionBucket string

const (
	ActionDeny403      ActionBucket = "deny(403)"
	ActionDeny404      ActionBucket = "deny(404)"
	ActionDeny502      ActionBucket = "deny(502)"
	ActionAllow        ActionBucket = "allow"
	ActionThrottle     ActionBucket = "throttle"
	ActionRedirect     ActionBucket = "redirect"
	ActionRateBasedBan ActionBucket = "rate_based_ban"
	ActionOther        ActionBucket = "other"
)

var actionColors = map[ActionBucket]string{
	ActionDeny403:      "#ef4444",
	ActionDeny404:      "#dc2626",
	ActionDeny502:      "#b91c1c",
	ActionAllow:        "#22c55e",
	ActionThrottle:     "#f59e0b",
	ActionRateBasedBan: "#f97316",
	ActionRedirect:     "#3b82f6",
	ActionOther:        "#6b7280",
}

// Color returns the chart color of the bucket.
func (a ActionBucket) Color() string {
	if color, ok := actionColors[a]; ok {
		return color
	}
	return actionColors[ActionOther]
}
