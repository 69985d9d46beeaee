package rule_test

import (
	"testing"

	"github.com/armorlens/api/pkg/domain/rule"
	"github.com/stretchr/testify/assert"
)

func TestClassifyText(t *testing.T) {
	tests := []struct {
		name string
		expr string
		desc string
		want rule.AttackCategory
	}{
		{"sqli expression", "evaluatePreconfiguredWaf('sqli-v33-stable')", "", rule.CategorySQLi},
		{"sql in description", "", "Block SQL probes", rule.CategorySQLi},
		{"sqli wins over scanner", "sqli scanner", "", rule.CategorySQLi},
		{"xss", "evaluatePreconfiguredExpr('xss-stable')", "", rule.CategoryXSS},
		{"lfi", "evaluatePreconfiguredWaf('lfi-v33-stable')", "", rule.CategoryLFI},
		{"rfi description", "", "Remote File Inclusion", rule.CategoryRFI},
		{"rce command injection", "", "command injection guard", rule.CategoryRCE},
		{"php", "evaluatePreconfiguredWaf('php-v33-stable')", "", rule.CategoryPHPNode},
		{"node description", "", "NodeJS hardening", rule.CategoryPHPNode},
		{"http expression is protocol", "request.headers['host'] == 'http'", "", rule.CategoryProtocolAttack},
		{"scanner detection", "evaluatePreconfiguredWaf('scannerdetection-v33-stable')", "", rule.CategoryScanners},
		{"session", "evaluatePreconfiguredWaf('sessionfixation-v33-stable')", "", rule.CategorySessionFixation},
		{"java", "evaluatePreconfiguredWaf('java-v33-stable')", "", rule.CategoryJava},
		{"region code", "origin.region_code == 'CN'", "", rule.CategoryRateLimiting},
		{"throttle description", "", "throttle bursts", rule.CategoryRateLimiting},
		{"src ips", "inIpRange(origin.ip, '10.0.0.0/8') || src_ips", "", rule.CategoryIPLists},
		{"threat intelligence", "evaluateThreatIntelligence('iplist-tor-exit-nodes')", "", rule.CategoryIPLists},
		{"method", "request.method == 'TRACE'", "", rule.CategoryMethodEnforcement},
		{"default description", "*", "Default rule, higher priority overrides it", rule.CategoryDefaultRule},
		{"default in expression only", "default", "", rule.CategoryOther},
		{"nothing matches", "origin.asn == 1234", "custom", rule.CategoryOther},
		{"case insensitive", "EVALUATEPRECONFIGUREDWAF('XSS-V33')", "", rule.CategoryXSS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rule.ClassifyText(tt.expr, tt.desc))
		})
	}
}

func TestClassify_UsesRuleFields(t *testing.T) {
	r := &rule.Rule{MatchExpression: "sqli scanner", RuleDescription: "scanner"}
	assert.Equal(t, rule.CategorySQLi, rule.Classify(r))
}

func TestAttackCategory_Color(t *testing.T) {
	for _, c := range rule.AllCategories {
		assert.True(t, c.IsValid())
		assert.NotEmpty(t, c.Color(), c)
	}
	assert.Equal(t, "#ef4444", rule.CategorySQLi.Color())
	assert.Equal(t, "#6b7280", rule.AttackCategory("bogus").Color())
	assert.False(t, rule.AttackCategory("bogus").IsValid())
}
