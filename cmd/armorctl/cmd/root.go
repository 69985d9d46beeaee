package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/armorlens/api/internal/app"
	"github.com/armorlens/api/internal/infra/fetchers"
	"github.com/armorlens/api/pkg/domain/rule"
	"github.com/armorlens/api/pkg/logger"
	"github.com/armorlens/api/pkg/parsers/cloudarmor"
)

var (
	version string

	// Global flags
	flagFile    string
	flagURL     string
	flagOutput  string
	flagTimeout time.Duration
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "armorctl",
	Short: "Query Cloud Armor rule inventories from the terminal",
	Long: `armorctl loads a Cloud Armor rule inventory and runs the same filter,
query and analytics engine as the API against it locally.

The inventory comes from a CSV file (--file, "-" for stdin), a published
Google Sheet (--url https://...) or an S3 object (--url s3://bucket/key).
ARMORCTL_FILE and ARMORCTL_URL set the defaults.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the CLI version from build flags.
func SetVersion(v string) {
	version = v
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&flagFile, "file", "f", "", "Inventory CSV file, - for stdin (env: ARMORCTL_FILE)")
	rootCmd.PersistentFlags().StringVarP(&flagURL, "url", "u", "", "Published sheet or s3:// URL (env: ARMORCTL_URL)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format: table, wide, json, yaml")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "Fetch timeout for remote inventories")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(facetsCmd)
}

func initConfig() {
	if flagFile == "" {
		flagFile = os.Getenv("ARMORCTL_FILE")
	}
	if flagURL == "" {
		flagURL = os.Getenv("ARMORCTL_URL")
	}
}

// staticRules serves a loaded inventory to the rule service.
type staticRules []*rule.Rule

func (s staticRules) Rules() []*rule.Rule { return s }

func newLogger() *logger.Logger {
	if flagVerbose {
		return logger.New(logger.Config{Level: "debug", Format: "text", Output: os.Stderr})
	}
	return logger.NewNop()
}

// loadRules reads the inventory named by the global flags.
func loadRules(ctx context.Context, stdin io.Reader) ([]*rule.Rule, error) {
	switch {
	case flagFile == "-":
		return cloudarmor.Parse(stdin)
	case flagFile != "":
		return cloudarmor.ParseFile(flagFile)
	case flagURL != "":
		return fetchRules(ctx)
	default:
		return nil, errors.New("no inventory: use --file, --url, ARMORCTL_FILE or ARMORCTL_URL")
	}
}

func fetchRules(ctx context.Context) ([]*rule.Rule, error) {
	ctx, cancel := context.WithTimeout(ctx, flagTimeout)
	defer cancel()

	var (
		f   fetchers.Fetcher
		err error
	)
	if strings.HasPrefix(flagURL, "s3://") {
		f, err = fetchers.NewObjectFetcher(ctx, fetchers.ObjectConfig{
			Region:    envOr("AWS_REGION", "us-east-1"),
			Endpoint:  os.Getenv("ARMORCTL_S3_ENDPOINT"),
			AccessKey: os.Getenv("ARMORCTL_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("ARMORCTL_S3_SECRET_KEY"),
		})
		if err != nil {
			return nil, err
		}
	} else {
		f = fetchers.NewSheetFetcher(fetchers.SheetConfig{Timeout: flagTimeout}, newLogger())
	}

	res, err := f.Fetch(ctx, flagURL)
	if err != nil {
		return nil, fmt.Errorf("fetch inventory: %w", err)
	}
	return cloudarmor.Parse(bytes.NewReader(res.Body))
}

// newRuleService loads the inventory and wraps it in the rule service.
func newRuleService(cmd *cobra.Command) (*app.RuleService, error) {
	rules, err := loadRules(cmd.Context(), cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	return app.NewRuleService(staticRules(rules), app.RuleServiceConfig{}, newLogger()), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "armorctl version %s\n", version)
		fmt.Fprintf(out, "  Go:       %s\n", runtime.Version())
		fmt.Fprintf(out, "  OS/Arch:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}
