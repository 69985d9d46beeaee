package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// =============================================================================
// summary
// =============================================================================

var summaryFilters filterFlags

var summaryCmd = &cobra.Command{
	Use:   "summary [QUERY]",
	Short: "Show KPIs, attack vectors and the action split",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := summaryFilters.state(strings.Join(args, " "))
		if err != nil {
			return err
		}
		svc, err := newRuleService(cmd)
		if err != nil {
			return err
		}
		s := svc.Summary(cmd.Context(), filter)

		out := cmd.OutOrStdout()
		if ok, err := printStructured(out, s); ok {
			return err
		}
		if s.KPIs == nil {
			fmt.Fprintln(out, "No rules found.")
			return nil
		}

		fmt.Fprintf(out, "Projects:        %d\n", s.KPIs.TotalProjects)
		fmt.Fprintf(out, "Policies:        %d\n", s.KPIs.TotalPolicies)
		fmt.Fprintf(out, "Rules:           %d\n", s.KPIs.TotalRules)
		fmt.Fprintf(out, "Critical rules:  %d\n", s.KPIs.CriticalRules)
		fmt.Fprintf(out, "WAF coverage:    %d%%\n\n", s.KPIs.WAFCoverage)

		t := newTable(out, "ATTACK VECTOR", "RULES")
		for _, v := range s.AttackVectors {
			t.AddRow(string(v.Label), strconv.Itoa(v.Count))
		}
		if err := t.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(out)

		t = newTable(out, "ACTION", "RULES")
		for _, a := range s.Actions {
			t.AddRow(string(a.Action), strconv.Itoa(a.Count))
		}
		return t.Flush()
	},
}

// =============================================================================
// top
// =============================================================================

var topLimit int

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Rank projects by number of security policies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if topLimit < 1 {
			return fmt.Errorf("invalid --limit %d", topLimit)
		}
		svc, err := newRuleService(cmd)
		if err != nil {
			return err
		}
		top := svc.TopProjects(cmd.Context(), topLimit)

		out := cmd.OutOrStdout()
		if ok, err := printStructured(out, top); ok {
			return err
		}
		t := newTable(out, "#", "PROJECT", "POLICIES")
		for i, p := range top {
			t.AddRow(strconv.Itoa(i+1), p.Project, strconv.Itoa(p.PolicyCount))
		}
		return t.Flush()
	},
}

// =============================================================================
// projects
// =============================================================================

var projectsFilters filterFlags

var projectsCmd = &cobra.Command{
	Use:   "projects [NAME]",
	Short: "Per-project security posture, or one project in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newRuleService(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			report, err := svc.Project(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ok, err := printStructured(out, report); ok {
				return err
			}
			fmt.Fprintf(out, "Project:        %s\n", report.Name)
			fmt.Fprintf(out, "Policies:       %s\n", strings.Join(report.Policies, ", "))
			fmt.Fprintf(out, "Rules:          %d (deny %d, allow %d, throttle %d)\n",
				report.RuleCount, report.DenyRules, report.AllowRules, report.ThrottleRules)
			fmt.Fprintf(out, "WAF coverage:   %d%%\n\n", report.WAFCoverage)
			return printRules(out, report.Rules)
		}

		filter, err := projectsFilters.state("")
		if err != nil {
			return err
		}
		reports := svc.Projects(cmd.Context(), filter)
		if ok, err := printStructured(out, reports); ok {
			return err
		}
		t := newTable(out, "PROJECT", "POLICIES", "RULES", "ADAPTIVE", "WAF", "DENY", "ALLOW", "THROTTLE")
		for _, p := range reports {
			t.AddRow(p.Name, strconv.Itoa(p.PolicyCount), strconv.Itoa(p.RuleCount),
				strconv.Itoa(p.AdaptiveProtectionCount), strconv.Itoa(p.WAFCoverage)+"%",
				strconv.Itoa(p.DenyRules), strconv.Itoa(p.AllowRules), strconv.Itoa(p.ThrottleRules))
		}
		return t.Flush()
	},
}

// =============================================================================
// facets
// =============================================================================

var facetsCmd = &cobra.Command{
	Use:   "facets",
	Short: "Show filter options with rule counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newRuleService(cmd)
		if err != nil {
			return err
		}
		f := svc.Facets(cmd.Context())

		out := cmd.OutOrStdout()
		if ok, err := printStructured(out, f); ok {
			return err
		}
		fmt.Fprintf(out, "Actions:   deny %d, allow %d, throttle %d, other %d\n",
			f.Actions.Deny, f.Actions.Allow, f.Actions.Throttle, f.Actions.Other)
		fmt.Fprintf(out, "Adaptive:  enabled %d, disabled %d\n\n", f.Adaptive.Enabled, f.Adaptive.Disabled)

		t := newTable(out, "PROJECT", "RULES")
		for _, p := range f.Projects {
			t.AddRow(p.Name, strconv.Itoa(p.Count))
		}
		return t.Flush()
	},
}

func init() {
	summaryFilters.register(summaryCmd)
	projectsFilters.register(projectsCmd)
	topCmd.Flags().IntVarP(&topLimit, "limit", "n", 10, "Number of projects to show")
}
