package main

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/sparkstar/conftest-actions/src/internal/runner"
	"github.com/sparkstar/conftest-actions/src/pkg/github"
	"github.com/sparkstar/conftest-actions/src/pkg/template"
	"github.com/sparkstar/conftest-actions/src/pkg/trace"
)

var logger *log.Entry = log.WithFields(log.Fields{
	"package": "run",
})

// Initialize creates and initializes the appropriate runner
func createRunner(ctx context.Context, opts *runner.Options) (runner.RunnerInterface, error) {
	logger.WithField("opts", opts).Debug("Creating runner..")

	renderer := template.NewRenderer(opts.TemplatesPath)

	switch opts.RunMode {
	case runner.RUN_MODE_GITHUB:
		var ghClient github.GitHubClient
		if opts.IsPullRequest() {
			client, err := github.NewClient()
			if err != nil {
				return nil, fmt.Errorf("GitHub authentication failed: %w", err)
			}
			ghClient = client
		}
		r, err := runner.NewRunnerGitHub(ctx, opts, ghClient, nil, renderer)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub runner: %w", err)
		}
		return r, nil
	case runner.RUN_MODE_LOCAL:
		r, err := runner.NewRunnerLocal(ctx, opts, nil, renderer)
		if err != nil {
			return nil, fmt.Errorf("failed to create Local runner: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("invalid run mode: %s", opts.RunMode)
	}
}

func initialize(ctx context.Context, opts *runner.Options) (runner.RunnerInterface, error) {
	r, err := createRunner(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}
	if err := r.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize runner: %w", err)
	}
	return r, nil
}

func run(ctx context.Context, opts *runner.Options) error {
	if opts.Debug {
		log.SetLevel(log.DebugLevel)
	}
	logger.WithField("opts", opts).Info("Running..")

	// Validate options
	if err := validateOptions(opts); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	// Initialize tracer
	shutdown, err := trace.InitTracer("conftest-annotate", opts.EnableExportPerformanceReport, opts.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer shutdown()

	// Initialize runner
	appRunner, err := initialize(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	if err := appRunner.Process(); err != nil {
		return fmt.Errorf("failed to process: %w", err)
	}

	return nil
}

func validateOptions(opts *runner.Options) error {
	// Validate run mode
	if opts.RunMode != runner.RUN_MODE_GITHUB && opts.RunMode != runner.RUN_MODE_LOCAL {
		return fmt.Errorf("run-mode must be 'github' or 'local', got: %s", opts.RunMode)
	}

	opts.PolicyPaths = trimAll(opts.PolicyPaths)
	if len(opts.PolicyPaths) == 0 {
		return fmt.Errorf("at least one --policy is required")
	}
	if opts.AllNamespaces && len(opts.Namespaces) > 0 {
		return fmt.Errorf("--all-namespaces cannot be combined with --namespace")
	}
	if opts.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive, got: %s", opts.Timeout)
	}
	if opts.PrefetchWorkers < 1 {
		return fmt.Errorf("--prefetch-workers must be at least 1, got: %d", opts.PrefetchWorkers)
	}
	if opts.GhPrNumber < 0 {
		return fmt.Errorf("--gh-pr-number must not be negative, got: %d", opts.GhPrNumber)
	}

	// Validate mode-specific options
	if opts.RunMode == runner.RUN_MODE_GITHUB && opts.IsPullRequest() {
		if opts.GhRepo == "" {
			return fmt.Errorf("github mode requires --gh-repo when --gh-pr-number is set")
		}
		if _, _, err := github.ParseOwnerRepo(opts.GhRepo); err != nil {
			return err
		}
	}
	if opts.RunMode == runner.RUN_MODE_LOCAL && opts.GhComment {
		return fmt.Errorf("--gh-comment is only supported in github mode")
	}

	return nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
