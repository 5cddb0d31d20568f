package policy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "policy")

const (
	DEFAULT_CONFTEST_BINARY = "conftest"
	DEFAULT_TIMEOUT         = 5 * time.Minute
)

// Tester produces conftest results for a set of targets
type Tester interface {
	Test(ctx context.Context, targets []string) ([]CheckResult, error)
}

// EvaluatorOptions configures a conftest invocation
type EvaluatorOptions struct {
	Binary        string   // conftest executable, looked up on PATH
	PolicyPaths   []string // --policy, repeated
	Namespaces    []string // --namespace, repeated
	AllNamespaces bool     // --all-namespaces
	Workdir       string   // working directory for conftest, file names in results are relative to it
	Timeout       time.Duration
	ExtraArgs     []string
}

// Evaluator runs conftest and parses its findings
type Evaluator struct {
	opts EvaluatorOptions
}

// Ensure Evaluator implements Tester
var _ Tester = (*Evaluator)(nil)

func NewEvaluator(opts EvaluatorOptions) *Evaluator {
	if opts.Binary == "" {
		opts.Binary = DEFAULT_CONFTEST_BINARY
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DEFAULT_TIMEOUT
	}
	return &Evaluator{opts: opts}
}

// Args returns the conftest command line for targets
func (e *Evaluator) Args(targets []string) []string {
	args := []string{"test"}
	args = append(args, targets...)
	for _, p := range e.opts.PolicyPaths {
		args = append(args, "--policy", p)
	}
	if e.opts.AllNamespaces {
		args = append(args, "--all-namespaces")
	} else {
		for _, ns := range e.opts.Namespaces {
			args = append(args, "--namespace", ns)
		}
	}
	args = append(args, "--output", "json", "--no-color")
	args = append(args, e.opts.ExtraArgs...)
	return args
}

// Test runs conftest against targets.
// Conftest exits non-zero when policies fail; that is a normal outcome as long as
// it printed a JSON payload.
func (e *Evaluator) Test(ctx context.Context, targets []string) ([]CheckResult, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets to test")
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	args := e.Args(targets)
	cmd := exec.CommandContext(ctx, e.opts.Binary, args...)
	cmd.Dir = e.opts.Workdir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.WithField("cmd", cmd.String()).Info("Running conftest...")
	start := time.Now()
	err := cmd.Run()
	logger.WithField("duration", time.Since(start)).WithField("stderr", stderr.String()).Debug("conftest finished")

	if ctx.Err() != nil {
		return nil, fmt.Errorf("conftest did not finish: %w", ctx.Err())
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("failed to run conftest: %w", err)
	}

	results, parseErr := ParseResults(stdout.Bytes())
	if parseErr != nil {
		if err != nil {
			return nil, fmt.Errorf("conftest failed: %w\nStderr: %s", err, stderr.String())
		}
		return nil, parseErr
	}

	_, warnings, failures := Totals(results)
	logger.WithField("results", len(results)).WithField("warnings", warnings).WithField("failures", failures).Info("Parsed conftest output")
	return results, nil
}
