package cloudarmor

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/armorlens/api/pkg/domain/rule"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Parser errors.
var (
	ErrNoRules      = errors.New("no valid data found: check the column headers match Project Name, Policy Name, Status, Match Expression")
	ErrHTMLResponse = errors.New("received HTML instead of CSV: publish the sheet to the web as comma-separated values")
	ErrAccessDenied = errors.New("access denied: the sheet must be published to the web and visible to anyone with the link")
)

// Column headers of the inventory export.
const (
	ColProjectName        = "Project Name"
	ColPolicyName         = "Policy Name"
	ColTargetCount        = "Target Count"
	ColTargetList         = "Target List (Pipe Separated)"
	ColAdaptiveProtection = "Adaptive Protection"
	ColLogLevel           = "Log Level"
	ColJSONParsing        = "JSON Parsing"
	ColRulesActive        = "Rules active or in preview"
	ColStatus             = "Status"
	ColMatchExpression    = "Match Expression"
	ColRuleDescription    = "Rule Description"
	ColPriority           = "Priority"
)

// Columns lists the export's headers in file order.
var Columns = []string{
	ColProjectName,
	ColPolicyName,
	ColTargetCount,
	ColTargetList,
	ColAdaptiveProtection,
	ColLogLevel,
	ColJSONParsing,
	ColRulesActive,
	ColStatus,
	ColMatchExpression,
	ColRuleDescription,
	ColPriority,
}

// ParseFile parses an inventory CSV from the given path.
func ParseFile(path string) ([]*rule.Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// ParseText parses inventory CSV held in memory.
func ParseText(text string) ([]*rule.Rule, error) {
	return Parse(strings.NewReader(text))
}

// Parse reads an inventory CSV. A UTF-8 or UTF-16 byte order mark is
// honored. Rows without a project or policy name are dropped; if none
// remain the result is ErrNoRules. An HTML page yields ErrHTMLResponse.
func Parse(r io.Reader) ([]*rule.Rule, error) {
	decoded := transform.NewReader(r, xunicode.BOMOverride(xunicode.UTF8.NewDecoder()))
	data, err := io.ReadAll(decoded)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	if IsHTML(data) {
		return nil, ErrHTMLResponse
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoRules
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var rules []*rule.Rule
	line := 1
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if r := parseRecord(record, index); r != nil {
			rules = append(rules, r)
		}
	}

	if len(rules) == 0 {
		return nil, ErrNoRules
	}
	return rules, nil
}

// IsHTML reports whether a payload is an HTML page rather than CSV.
func IsHTML(data []byte) bool {
	return bytes.Contains(data, []byte("<!DOCTYPE html>")) || bytes.Contains(data, []byte("<html"))
}

func parseRecord(record []string, index map[string]int) *rule.Rule {
	cell := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}
	text := func(col, def string) string {
		if v := strings.TrimSpace(cell(col)); v != "" {
			return v
		}
		return def
	}

	r := &rule.Rule{
		ProjectName:        strings.TrimSpace(cell(ColProjectName)),
		PolicyName:         strings.TrimSpace(cell(ColPolicyName)),
		TargetCount:        int(leadingInt(cell(ColTargetCount), math.MinInt32, math.MaxInt32)),
		TargetList:         text(ColTargetList, rule.DefaultTargetList),
		AdaptiveProtection: strings.ToUpper(cell(ColAdaptiveProtection)) == "TRUE",
		LogLevel:           text(ColLogLevel, rule.DefaultLogLevel),
		JSONParsing:        text(ColJSONParsing, rule.DefaultJSONParsing),
		RulesActive:        text(ColRulesActive, rule.DefaultRulesActive),
		Status:             strings.TrimSpace(cell(ColStatus)),
		MatchExpression:    strings.TrimSpace(cell(ColMatchExpression)),
		RuleDescription:    strings.TrimSpace(cell(ColRuleDescription)),
		Priority:           int32(leadingInt(cell(ColPriority), math.MinInt32, math.MaxInt32)),
	}
	if !r.IsValid() {
		return nil
	}
	return r
}

// leadingInt parses the optionally signed decimal prefix of s after leading
// whitespace, so "1000 (custom)" is 1000. Blank, non-numeric and out of range
// input is 0.
func leadingInt(s string, lo, hi int64) int64 {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}

	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil || n < lo || n > hi {
		return 0
	}
	return n
}
