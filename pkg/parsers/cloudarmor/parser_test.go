package cloudarmor

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/armorlens/api/pkg/domain/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inventoryCSV = `Project Name,Policy Name,Target Count,Target List (Pipe Separated),Adaptive Protection,Log Level,JSON Parsing,Rules active or in preview,Status,Match Expression,Rule Description,Priority
 prod-shop , edge-policy ,3,be-web|be-api,TRUE,VERBOSE,STANDARD,Active,deny(403),"evaluatePreconfiguredWaf('sqli-v33-stable', {'sensitivity': 1})",Block SQLi,1000
prod-shop,edge-policy,,,false,,,,allow,*,Default rule,2147483647

,orphan,1,,TRUE,,,,deny(404),x,y,5
staging,api-policy,abc,,true,,,Preview,throttle,"origin.region_code == ""CN""",Rate limit CN,  42 (custom)
`

func TestParse(t *testing.T) {
	rules, err := ParseText(inventoryCSV)
	require.NoError(t, err)
	require.Len(t, rules, 3)

	first := rules[0]
	assert.Equal(t, "prod-shop", first.ProjectName)
	assert.Equal(t, "edge-policy", first.PolicyName)
	assert.Equal(t, 3, first.TargetCount)
	assert.Equal(t, "be-web|be-api", first.TargetList)
	assert.True(t, first.AdaptiveProtection)
	assert.Equal(t, "VERBOSE", first.LogLevel)
	assert.Equal(t, "evaluatePreconfiguredWaf('sqli-v33-stable', {'sensitivity': 1})", first.MatchExpression)
	assert.Equal(t, int32(1000), first.Priority)

	def := rules[1]
	assert.False(t, def.AdaptiveProtection)
	assert.Equal(t, rule.DefaultTargetList, def.TargetList)
	assert.Equal(t, rule.DefaultLogLevel, def.LogLevel)
	assert.Equal(t, rule.DefaultJSONParsing, def.JSONParsing)
	assert.Equal(t, rule.DefaultRulesActive, def.RulesActive)
	assert.Equal(t, int32(rule.NoPriority), def.Priority)
	assert.Equal(t, 0, def.TargetCount)

	staging := rules[2]
	assert.True(t, staging.AdaptiveProtection)
	assert.Equal(t, "Preview", staging.RulesActive)
	assert.Equal(t, `origin.region_code == "CN"`, staging.MatchExpression)
	assert.Equal(t, int32(42), staging.Priority)
	assert.Equal(t, 0, staging.TargetCount)
}

func TestParse_HeaderOrderAndBOM(t *testing.T) {
	csv := "\ufeffStatus,Policy Name,Project Name\ndeny,p,a\n"

	rules, err := ParseText(csv)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "a", rules[0].ProjectName)
	assert.Equal(t, "deny", rules[0].Status)
	assert.Equal(t, int32(0), rules[0].Priority)
}

func TestParse_UTF16(t *testing.T) {
	src := "Project Name,Policy Name\na,p\n"
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFE})
	for _, r := range src {
		buf.WriteByte(byte(r))
		buf.WriteByte(0)
	}

	rules, err := Parse(&buf)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "p", rules[0].PolicyName)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"empty", "", ErrNoRules},
		{"header only", "Project Name,Policy Name\n", ErrNoRules},
		{"wrong headers", "project,policy\na,b\n", ErrNoRules},
		{"html page", "<!DOCTYPE html><html><body>Sign in</body></html>", ErrHTMLResponse},
		{"html fragment", "<html lang=\"en\">", ErrHTMLResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseText(tt.text)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.csv")
	require.NoError(t, os.WriteFile(path, []byte(inventoryCSV), 0o600))

	rules, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, rules, 3)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestLeadingInt(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"42", 42},
		{"  7", 7},
		{"-3", -3},
		{"12abc", 12},
		{"abc", 0},
		{"", 0},
		{"99999999999", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, leadingInt(tt.in, -2147483648, 2147483647), tt.in)
	}
}
