package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sparkstar/conftest-actions/src/internal/runner"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command, parse args from CLI.
// Flag defaults come from GitHub Actions inputs (INPUT_*) and runner variables (GITHUB_*).
func newRootCmd() *cobra.Command {
	opts := &runner.Options{}

	cmd := &cobra.Command{
		Use:   "conftest-annotate",
		Short: "Run conftest and annotate findings on the offending YAML lines",
		Long: `conftest-annotate runs conftest against configuration files and reports every
warning and failure as a GitHub Actions annotation pointing at the line the
finding refers to. Findings are located from the selector that prefixes the
policy message, e.g. "spec.templates[0].container: should specify a 'name'".`,
		Version:       fmt.Sprintf("%s (built: %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	// Run mode
	cmd.Flags().StringVar(&opts.RunMode, "run-mode", envOr("INPUT_RUN_MODE", runner.RUN_MODE_GITHUB), "Run mode: github or local")
	cmd.Flags().BoolVar(&opts.Debug, "debug", envBool("RUNNER_DEBUG", false), "Debug mode")

	// Policy flags
	cmd.Flags().StringSliceVar(&opts.PolicyPaths, "policy", envList("INPUT_POLICY", []string{"policy"}),
		"Policy directories or files passed to conftest (comma-separated)")
	cmd.Flags().StringVar(&opts.DefaultPolicyPath, "default-policy", os.Getenv("INPUT_DEFAULT_POLICY"),
		"Policy directory used when a --policy path does not exist")
	cmd.Flags().StringSliceVar(&opts.Namespaces, "namespace", envList("INPUT_NAMESPACE", nil),
		"Policy namespaces to test (comma-separated, default: main)")
	cmd.Flags().BoolVar(&opts.AllNamespaces, "all-namespaces", envBool("INPUT_ALL_NAMESPACES", false), "Test all policy namespaces")
	cmd.Flags().BoolVar(&opts.SkipPolicyValidation, "skip-policy-validation", envBool("INPUT_SKIP_POLICY_VALIDATION", false),
		"Do not parse rego files before running conftest")

	// Conftest flags
	cmd.Flags().StringVar(&opts.ConftestBinary, "conftest-binary", envOr("INPUT_CONFTEST_BINARY", "conftest"), "conftest executable")
	cmd.Flags().StringSliceVar(&opts.ConftestArgs, "conftest-args", envList("INPUT_CONFTEST_ARGS", nil),
		"Extra arguments for 'conftest test' (comma-separated)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", envDuration("INPUT_TIMEOUT", 5*time.Minute), "Timeout for the conftest run")

	// Target flags
	cmd.Flags().StringVar(&opts.Workdir, "workdir", envOr("INPUT_WORKDIR", "."), "Working directory of conftest")
	cmd.Flags().StringVar(&opts.Target, "target", envOr("INPUT_TARGET", "."), "Directory or file to test, relative to --workdir")
	cmd.Flags().StringSliceVar(&opts.Files, "files", envList("INPUT_FILES", nil),
		"Glob patterns under --target selecting the files to test, supports ** (comma-separated)")

	// Output flags
	cmd.Flags().StringVar(&opts.GroupTitle, "group-title", os.Getenv("INPUT_GROUP_TITLE"), "Title of the annotation log group")
	cmd.Flags().StringVar(&opts.TemplatesPath, "templates-path", os.Getenv("INPUT_TEMPLATES_PATH"),
		"Directory with a custom summary.md.tmpl")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", envOr("INPUT_OUTPUT_DIR", "./output"),
		"Output directory in case the tool need to export files. In local mode, the tool will export the report to this directory.")
	cmd.Flags().BoolVar(&opts.EnableExportReport, "enable-export-report", envBool("INPUT_ENABLE_EXPORT_REPORT", false),
		"Enable export report (json file to output dir)")
	cmd.Flags().BoolVar(&opts.EnableExportPerformanceReport, "enable-export-performance-report", envBool("INPUT_ENABLE_EXPORT_PERFORMANCE_REPORT", false),
		"Enable export performance report (json file to output dir)")
	cmd.Flags().BoolVar(&opts.FailOnFailure, "fail-on-failure", envBool("INPUT_FAIL_ON_FAILURE", true),
		"Exit with an error when any policy failure is found")
	cmd.Flags().IntVar(&opts.PrefetchWorkers, "prefetch-workers", envInt("INPUT_PREFETCH_WORKERS", 4),
		"Number of files parsed concurrently before annotating")

	// GitHub mode flags
	cmd.Flags().StringVar(&opts.GhRepo, "gh-repo", os.Getenv("GITHUB_REPOSITORY"), "GitHub repository (e.g., org/repo) [github mode]")
	cmd.Flags().IntVar(&opts.GhPrNumber, "gh-pr-number", envInt("INPUT_PR_NUMBER", 0),
		"GitHub PR number, enables the check run and comment [github mode]")
	cmd.Flags().StringVar(&opts.GhSHA, "gh-sha", os.Getenv("GITHUB_SHA"), "Commit for the check run when the PR head is unknown [github mode]")
	cmd.Flags().StringVar(&opts.GhCheckName, "gh-check-name", envOr("INPUT_CHECK_NAME", runner.DEFAULT_CHECK_NAME), "Check run name [github mode]")
	cmd.Flags().BoolVar(&opts.GhComment, "gh-comment", envBool("INPUT_COMMENT", false), "Upsert a summary comment on the PR [github mode]")
	cmd.Flags().StringVar(&opts.GhServerURL, "gh-server-url", os.Getenv("GITHUB_SERVER_URL"), "GitHub server URL [github mode]")
	cmd.Flags().StringVar(&opts.GhRunID, "gh-run-id", os.Getenv("GITHUB_RUN_ID"), "Workflow run id [github mode]")
	cmd.Flags().StringVar(&opts.GhStepSummaryPath, "gh-step-summary", os.Getenv("GITHUB_STEP_SUMMARY"), "Step summary file [github mode]")
	cmd.Flags().StringVar(&opts.GhOutputPath, "gh-output", os.Getenv("GITHUB_OUTPUT"), "Step outputs file [github mode]")

	return cmd
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if v == "1" {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.WithField("env", key).WithField("value", v).Warn("Ignoring invalid boolean")
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.WithField("env", key).WithField("value", v).Warn("Ignoring invalid number")
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.WithField("env", key).WithField("value", v).Warn("Ignoring invalid duration")
		return fallback
	}
	return d
}

// envList splits a comma or newline separated input, action inputs are often multi-line
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '\n' }) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
