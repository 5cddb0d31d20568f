package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/sparkstar/conftest-actions/src/pkg/annotation"
	"github.com/sparkstar/conftest-actions/src/pkg/annotator"
	"github.com/sparkstar/conftest-actions/src/pkg/models"
	"github.com/sparkstar/conftest-actions/src/pkg/policy"
	"github.com/sparkstar/conftest-actions/src/pkg/targets"
	"github.com/sparkstar/conftest-actions/src/pkg/template"
	"github.com/sparkstar/conftest-actions/src/pkg/trace"
	"github.com/sparkstar/conftest-actions/src/pkg/yamldoc"
	"go.opentelemetry.io/otel/attribute"
)

var logger *log.Entry = log.WithFields(log.Fields{
	"package": "runner",
})

var (
	// ErrPolicyFailures is returned by Process when failures exist and FailOnFailure is set
	ErrPolicyFailures = errors.New("policy failures found")
)

const (
	FileNameReportJson     = "report.json"
	FileNameReportMarkdown = "report.md"
)

type RunnerBase struct {
	Context context.Context
	Options *Options

	RunMode string

	// Tester runs conftest. When nil, Initialize creates a conftest evaluator
	// for the resolved policy paths.
	Tester    policy.Tester
	Annotator *annotator.Annotator
	Renderer  *template.Renderer

	// Stdout receives the workflow commands
	Stdout io.Writer

	Instance RunnerInterface

	policyPaths []string
	batch       *annotator.Batch
	repoPrefix  string // workdir relative to the repository root
}

// make RunnerBase implement RunnerInterface
var _ RunnerInterface = (*RunnerBase)(nil)

func NewRunnerBase(
	ctx context.Context,
	options *Options,
	tester policy.Tester,
	renderer *template.Renderer,
) (*RunnerBase, error) {
	if options == nil {
		return nil, fmt.Errorf("options are required")
	}
	runner := &RunnerBase{
		Context:  ctx,
		Options:  options,
		RunMode:  options.RunMode,
		Tester:   tester,
		Renderer: renderer,
		Stdout:   os.Stdout,
	}
	runner.Instance = runner
	return runner, nil
}

func (r *RunnerBase) Initialize() error {
	logger.Info("Initializing runner: starting...")

	if r.Renderer == nil {
		return fmt.Errorf("renderer is required")
	}
	if len(r.Options.PolicyPaths) == 0 {
		return fmt.Errorf("at least one policy path is required")
	}

	paths := make([]string, 0, len(r.Options.PolicyPaths))
	for _, p := range r.Options.PolicyPaths {
		resolved, err := policy.ResolvePolicyPath(r.workdirPath(p), r.workdirPath(r.Options.DefaultPolicyPath))
		if err != nil {
			return err
		}
		paths = append(paths, resolved)
	}
	r.policyPaths = lo.Uniq(paths)

	if r.Options.SkipPolicyValidation {
		logger.Info("Initialize runner: policy validation was disabled")
	} else if _, err := policy.ValidatePolicies(r.policyPaths); err != nil {
		return fmt.Errorf("failed to validate policies: %w", err)
	}

	if r.Tester == nil {
		r.Tester = policy.NewEvaluator(policy.EvaluatorOptions{
			Binary:        r.Options.ConftestBinary,
			PolicyPaths:   r.policyPaths,
			Namespaces:    r.Options.Namespaces,
			AllNamespaces: r.Options.AllNamespaces,
			Workdir:       r.Options.Workdir,
			Timeout:       r.Options.Timeout,
			ExtraArgs:     r.Options.ConftestArgs,
		})
	}

	workdir := lo.Ternary(r.Options.Workdir == "", ".", r.Options.Workdir)
	loader, err := yamldoc.NewDirLoader(workdir)
	if err != nil {
		return fmt.Errorf("failed to open working directory: %w", err)
	}
	r.repoPrefix = repoRelativeDir(r.Options.Workdir)
	r.Annotator = annotator.NewAnnotator(loader, annotation.NewRenderer(r.Options.GroupTitle)).
		WithWorkers(r.Options.PrefetchWorkers).
		WithPathPrefix(r.repoPrefix)

	logger.WithField("policies", r.policyPaths).Info("Initialize runner: done.")
	return nil
}

// repoRelativeDir returns workdir relative to the current directory, the repository
// root in a workflow run. Empty when workdir is the root or lies outside it.
func repoRelativeDir(workdir string) string {
	if workdir == "" {
		return ""
	}
	rel := workdir
	if filepath.IsAbs(workdir) {
		cwd, err := os.Getwd()
		if err != nil {
			return ""
		}
		if rel, err = filepath.Rel(cwd, workdir); err != nil {
			return ""
		}
	}
	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return ""
	}
	return rel
}

// repoPath turns a file name reported by conftest into a repository path
func (r *RunnerBase) repoPath(file string) string {
	if r.repoPrefix == "" || filepath.IsAbs(file) {
		return file
	}
	return path.Join(r.repoPrefix, file)
}

// PolicyPaths returns the policy paths after fallback resolution
func (r *RunnerBase) PolicyPaths() []string {
	return r.policyPaths
}

// workdirPath resolves p against the working directory, absolute paths are kept
func (r *RunnerBase) workdirPath(p string) string {
	if p == "" || filepath.IsAbs(p) || r.Options.Workdir == "" {
		return p
	}
	return filepath.Join(r.Options.Workdir, p)
}

// Targets returns the conftest targets, relative to the working directory
func (r *RunnerBase) Targets() ([]string, error) {
	target := r.Options.Target
	if target == "" {
		target = "."
	}
	if len(r.Options.Files) == 0 {
		return []string{target}, nil
	}

	files, err := targets.Expand(r.workdirPath(target), r.Options.Files)
	if err != nil {
		return nil, err
	}
	if r.Options.Workdir == "" || filepath.IsAbs(target) {
		return files, nil
	}
	return lo.Map(files, func(f string, _ int) string {
		rel, err := filepath.Rel(r.Options.Workdir, f)
		if err != nil {
			return f
		}
		return rel
	}), nil
}

func (r *RunnerBase) Evaluate() ([]policy.CheckResult, error) {
	ctx, span := trace.StartSpan(r.Context, "Evaluate")
	defer span.End()
	logger.Info("Evaluate: starting...")

	if r.Tester == nil {
		return nil, fmt.Errorf("runner is not initialized")
	}

	files, err := r.Targets()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve targets: %w", err)
	}
	if len(files) == 0 {
		logger.WithField("patterns", r.Options.Files).Warn("Evaluate: no files matched, nothing to test")
		return []policy.CheckResult{}, nil
	}
	span.SetAttributes(attribute.Int("targets", len(files)))

	results, err := r.Tester.Test(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policies: %w", err)
	}

	logger.WithField("results", len(results)).Info("Evaluate: done.")
	return results, nil
}

func (r *RunnerBase) Annotate(results []policy.CheckResult) (*annotator.Batch, error) {
	_, span := trace.StartSpan(r.Context, "Annotate")
	defer span.End()

	if r.Annotator == nil {
		return nil, fmt.Errorf("runner is not initialized")
	}

	batch := r.Annotator.Run(results)
	for _, line := range batch.Lines {
		if _, err := fmt.Fprintln(r.Stdout, line); err != nil {
			return nil, fmt.Errorf("failed to write annotations: %w", err)
		}
	}
	span.SetAttributes(
		attribute.Int("annotations", len(batch.Annotations)),
		attribute.Int("unresolved", batch.Unresolved),
	)
	r.batch = batch
	return batch, nil
}

// Batch returns the batch of the last Annotate call
func (r *RunnerBase) Batch() *annotator.Batch {
	return r.batch
}

// Process runs Evaluate, Annotate and Output of the runner instance
func (r *RunnerBase) Process() error {
	_, span := trace.StartSpan(r.Context, "Process")
	defer span.End()
	logger.Info("Process: starting...")

	instance := r.Instance
	if instance == nil {
		instance = r
	}

	results, err := instance.Evaluate()
	if err != nil {
		return err
	}

	batch, err := instance.Annotate(results)
	if err != nil {
		return err
	}

	data := r.buildReportData(results, batch)
	if err := instance.Output(&data); err != nil {
		return err
	}
	span.SetAttributes(attribute.String("conclusion", data.Conclusion))

	if r.Options.FailOnFailure && data.Counts.Failures > 0 {
		return fmt.Errorf("%w: %d %s", ErrPolicyFailures, data.Counts.Failures, lo.Ternary(data.Counts.Failures == 1, "failure", "failures"))
	}
	logger.Info("Process: done.")
	return nil
}

func (r *RunnerBase) buildReportData(results []policy.CheckResult, batch *annotator.Batch) models.ReportData {
	files := lo.Map(results, func(cr policy.CheckResult, _ int) models.FileReport {
		return models.FileReport{
			File:       r.repoPath(cr.Filename),
			Successes:  cr.Successes,
			Warnings:   len(cr.Warnings),
			Failures:   len(cr.Failures),
			Exceptions: len(cr.Exceptions),
		}
	})

	return models.ReportData{
		Timestamp:   time.Now().UTC(),
		PolicyPaths: r.policyPaths,
		Conclusion:  batch.Conclusion(),
		Counts:      batch.Counts(),
		Files:       files,
		Annotations: batch.Annotations,
	}
}

func (r *RunnerBase) Output(data *models.ReportData) error {
	_, span := trace.StartSpan(r.Context, "Output")
	defer span.End()

	logger.Info("Output: starting...")
	if err := r.outputReportJson(data); err != nil {
		return err
	}
	logger.Info("Output: done.")
	return nil
}

// Exporting report json file to output directory if enabled
func (r *RunnerBase) outputReportJson(data *models.ReportData) error {
	if !r.Options.EnableExportReport {
		logger.Info("OutputJson: option was disabled")
		return nil
	}
	logger.Info("OutputJson: starting...")

	if err := os.MkdirAll(r.Options.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	resultsJson, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	filePath := filepath.Join(r.Options.OutputDir, FileNameReportJson)
	if err := os.WriteFile(filePath, resultsJson, 0644); err != nil {
		logger.WithField("filePath", filePath).WithField("error", err).Error("Failed to write report data to file")
		return err
	}
	logger.WithField("filePath", filePath).Info("Written report data to file")
	return nil
}

// renderSummary renders the markdown summary, signed when signature is not empty
func (r *RunnerBase) renderSummary(data *models.ReportData, signature string) (string, error) {
	markdown, err := r.Renderer.RenderSummary(models.ReportTemplateData{
		ReportData: *data,
		Signature:  signature,
	})
	if err != nil {
		logger.WithField("error", err).Error("Failed to render markdown template")
		return "", err
	}
	logger.WithField("renderedMarkdown", markdown).Debug("Rendered markdown")
	return markdown, nil
}
