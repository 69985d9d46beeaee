package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/armorlens/api/pkg/domain/rule"
)

// Output format constants.
const (
	outputJSON = "json"
	outputYAML = "yaml"
	outputWide = "wide"
)

// printStructured writes v as JSON or YAML when requested and reports
// whether it did.
func printStructured(w io.Writer, v any) (bool, error) {
	switch flagOutput {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case outputYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return true, fmt.Errorf("marshal YAML: %w", err)
		}
		_, err = w.Write(data)
		return true, err
	}
	return false, nil
}

type tableWriter struct {
	w *tabwriter.Writer
}

func newTable(out io.Writer, headers ...string) *tableWriter {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	return &tableWriter{w: w}
}

func (t *tableWriter) AddRow(values ...string) {
	fmt.Fprintln(t.w, strings.Join(values, "\t"))
}

func (t *tableWriter) Flush() error {
	return t.w.Flush()
}

func printPagination(w io.Writer, total, page, perPage, totalPages int) {
	if total == 0 {
		fmt.Fprintln(w, "No rules found.")
		return
	}
	start := (page-1)*perPage + 1
	end := min(page*perPage, total)
	fmt.Fprintf(w, "\nShowing %d-%d of %d rules (page %d/%d)\n", start, end, total, page, totalPages)
}

func enabledStr(b bool) string {
	if b {
		return "Enabled"
	}
	return "Disabled"
}

func priorityStr(p int32) string {
	if p == rule.NoPriority {
		return "default"
	}
	return strconv.Itoa(int(p))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
