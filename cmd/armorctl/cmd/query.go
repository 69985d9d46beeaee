package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/armorlens/api/internal/app"
	"github.com/armorlens/api/pkg/domain/rule"
	"github.com/armorlens/api/pkg/pagination"
	"github.com/armorlens/api/pkg/query"
)

// filterFlags are the ledger filters shared by several commands.
type filterFlags struct {
	projects []string
	actions  []string
	adaptive string
	search   string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.projects, "project", "p", nil, "Only these projects (repeatable or comma separated)")
	cmd.Flags().StringSliceVarP(&f.actions, "action", "a", nil, "Only these action buckets: deny, allow, throttle, other")
	cmd.Flags().StringVar(&f.adaptive, "adaptive", "all", "Adaptive protection: all, enabled, disabled")
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "Case-insensitive quick search")
}

// state builds the filter for an optional advanced query.
func (f *filterFlags) state(q string) (query.FilterState, error) {
	adaptive := rule.AdaptiveFilter(strings.ToLower(f.adaptive))
	if !adaptive.IsValid() {
		return query.FilterState{}, fmt.Errorf("invalid --adaptive %q", f.adaptive)
	}
	actions := make([]rule.QuickAction, 0, len(f.actions))
	for _, a := range f.actions {
		qa := rule.QuickAction(strings.ToLower(strings.TrimSpace(a)))
		if !qa.IsValid() {
			return query.FilterState{}, fmt.Errorf("invalid --action %q", a)
		}
		actions = append(actions, qa)
	}
	return query.FilterState{
		Projects: f.projects,
		Actions:  actions,
		Adaptive: adaptive,
		Query:    q,
		Search:   f.search,
	}, nil
}

// sortFlags select the ledger sort column.
type sortFlags struct {
	field string
	order string
}

func (s *sortFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.field, "sort", "", "Sort column, e.g. priority, projectName, status")
	cmd.Flags().StringVar(&s.order, "order", "asc", "Sort order: asc, desc")
}

func (s *sortFlags) state() (pagination.SortState, error) {
	if s.field == "" {
		return pagination.SortState{}, nil
	}
	if _, ok := rule.ParseField(s.field); !ok {
		return pagination.SortState{}, fmt.Errorf("invalid --sort %q", s.field)
	}
	return pagination.ParseSort(s.field, s.order), nil
}

// =============================================================================
// query
// =============================================================================

var (
	queryFilters  filterFlags
	querySort     sortFlags
	queryPage     int
	queryPageSize int
)

var queryCmd = &cobra.Command{
	Use:   "query [QUERY]",
	Short: "List rules matching filters and an advanced query",
	Long: `List rules matching the filters and an optional advanced query.

Queries combine field:value terms with AND and OR, evaluated left to right
without precedence. A leading NOT negates a term.

  armorctl query -f rules.csv 'project:shop AND NOT status:allow'
  armorctl query -f rules.csv 'priority:<1000 OR sqli' --sort priority`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := queryFilters.state(strings.Join(args, " "))
		if err != nil {
			return err
		}
		sort, err := querySort.state()
		if err != nil {
			return err
		}
		svc, err := newRuleService(cmd)
		if err != nil {
			return err
		}

		res := svc.List(cmd.Context(), app.ListRulesInput{
			Filter:   filter,
			Sort:     sort,
			Page:     queryPage,
			PageSize: queryPageSize,
		})

		out := cmd.OutOrStdout()
		if ok, err := printStructured(out, res); ok {
			return err
		}
		if err := printRules(out, res.Data); err != nil {
			return err
		}
		printPagination(out, res.TotalItems, res.CurrentPage, res.PageSize, res.TotalPages)
		return nil
	},
}

func printRules(out io.Writer, rules []*rule.Rule) error {
	if flagOutput == outputWide {
		t := newTable(out, "PROJECT", "POLICY", "PRIORITY", "ACTION", "ADAPTIVE", "CATEGORY", "DESCRIPTION", "MATCH")
		for _, r := range rules {
			t.AddRow(r.ProjectName, r.PolicyName, priorityStr(r.Priority), r.Status,
				enabledStr(r.AdaptiveProtection), string(rule.Classify(r)), r.RuleDescription, r.MatchExpression)
		}
		return t.Flush()
	}

	t := newTable(out, "PROJECT", "POLICY", "PRIORITY", "ACTION", "ADAPTIVE", "DESCRIPTION")
	for _, r := range rules {
		t.AddRow(r.ProjectName, r.PolicyName, priorityStr(r.Priority), r.Status,
			enabledStr(r.AdaptiveProtection), truncate(r.RuleDescription, 48))
	}
	return t.Flush()
}

// =============================================================================
// parse
// =============================================================================

var parseCmd = &cobra.Command{
	Use:   "parse QUERY",
	Short: "Show how an advanced query is split and parsed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		type parsedTerm struct {
			Operator string `json:"operator" yaml:"operator"`
			Field    string `json:"field" yaml:"field"`
			Value    string `json:"value" yaml:"value"`
			Negated  bool   `json:"negated" yaml:"negated"`
		}

		clauses := query.Tokenize(args[0])
		terms := make([]parsedTerm, 0, len(clauses))
		for _, c := range clauses {
			t := query.ParseTerm(c.Term)
			terms = append(terms, parsedTerm{
				Operator: string(c.Op),
				Field:    t.Field.String(),
				Value:    t.Value,
				Negated:  t.Negated,
			})
		}

		out := cmd.OutOrStdout()
		if ok, err := printStructured(out, terms); ok {
			return err
		}
		t := newTable(out, "OP", "FIELD", "VALUE", "NEGATED")
		for _, pt := range terms {
			neg := ""
			if pt.Negated {
				neg = "yes"
			}
			t.AddRow(pt.Operator, pt.Field, pt.Value, neg)
		}
		return t.Flush()
	},
}

// =============================================================================
// export
// =============================================================================

var (
	exportFilters filterFlags
	exportSort    sortFlags
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export [QUERY]",
	Short: "Export the filtered ledger as CSV",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := exportFilters.state(strings.Join(args, " "))
		if err != nil {
			return err
		}
		sort, err := exportSort.state()
		if err != nil {
			return err
		}
		svc, err := newRuleService(cmd)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if exportOut != "" && exportOut != "-" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		n, err := svc.Export(cmd.Context(), filter, sort, out)
		if err != nil {
			return err
		}
		if exportOut != "" && exportOut != "-" {
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d rules to %s\n", n, exportOut)
		}
		return nil
	},
}

func init() {
	queryFilters.register(queryCmd)
	querySort.register(queryCmd)
	queryCmd.Flags().IntVar(&queryPage, "page", 1, "Page number")
	queryCmd.Flags().IntVar(&queryPageSize, "page-size", pagination.DefaultPageSize, "Rules per page")

	exportFilters.register(exportCmd)
	exportSort.register(exportCmd)
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Write to this file instead of stdout")
}
