package cloudarmor

import (
	"bytes"
	"testing"

	"github.com/armorlens/api/pkg/domain/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	rules := []*rule.Rule{
		{ProjectName: "a", PolicyName: "p", AdaptiveProtection: true, RuleDescription: `say "hi"`, MatchExpression: "x, y", Status: "deny(403)", Priority: 10},
		{ProjectName: "b", PolicyName: "q", Status: "allow", Priority: rule.NoPriority},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rules, nil))

	want := `"Project","Policy","Adaptive","Description","Match Expression","Action","Priority"` + "\n" +
		`"a","p","Enabled","say ""hi""","x, y","deny(403)","10"` + "\n" +
		`"b","q","Disabled","","","allow","2147483647"`
	assert.Equal(t, want, buf.String())
}

func TestWrite_SelectedFields(t *testing.T) {
	rules := []*rule.Rule{{ProjectName: "a", TargetCount: 4, LogLevel: "VERBOSE"}}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rules, []rule.Field{rule.FieldTargetCount, rule.FieldLogLevel}))
	assert.Equal(t, `"Target Count","Log Level"`+"\n"+`"4","VERBOSE"`, buf.String())
}

func TestWrite_NoRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil, []rule.Field{rule.FieldProjectName}))
	assert.Equal(t, `"Project"`, buf.String())
}
