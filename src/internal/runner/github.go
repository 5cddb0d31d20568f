package runner

import (
	"context"
	"fmt"
	"os"

	"github.com/sourcegraph/conc/pool"
	"github.com/sparkstar/conftest-actions/src/pkg/github"
	"github.com/sparkstar/conftest-actions/src/pkg/models"
	"github.com/sparkstar/conftest-actions/src/pkg/policy"
	"github.com/sparkstar/conftest-actions/src/pkg/template"
	"github.com/sparkstar/conftest-actions/src/pkg/trace"
)

type RunnerGitHub struct {
	RunnerBase

	options  *Options
	ghclient github.GitHubClient

	prInfo        *models.PullRequest
	toolComment   *models.Comment
	signature     string
	runURL        string
	checkRunID    int64
	summaryOutput string
}

// make RunnerGitHub implement RunnerInterface
var _ RunnerInterface = (*RunnerGitHub)(nil)

func NewRunnerGitHub(
	ctx context.Context,
	options *Options,
	ghclient github.GitHubClient,
	tester policy.Tester,
	renderer *template.Renderer,
) (*RunnerGitHub, error) {
	if ghclient == nil && options != nil && options.IsPullRequest() {
		return nil, fmt.Errorf("GitHub client is not initialized")
	}
	baseRunner, err := NewRunnerBase(ctx, options, tester, renderer)
	if err != nil {
		return nil, err
	}
	runner := &RunnerGitHub{
		RunnerBase: *baseRunner,
		ghclient:   ghclient,
		options:    options,
	}
	runner.Instance = runner
	return runner, nil
}

func (r *RunnerGitHub) Initialize() error {
	lg := logger.WithField("func", "RunnerGitHub.Initialize()")
	lg.Info("Initializing runner: starting...")

	if r.options.GhCheckName == "" {
		r.options.GhCheckName = DEFAULT_CHECK_NAME
	}
	r.signature = template.Signature(r.options.GhCheckName)
	r.runURL = github.GetWorkflowRunUrl(r.options.GhServerURL, r.options.GhRepo, r.options.GhRunID)
	if r.runURL == "" {
		lg.Debug("GITHUB_RUN_ID or GITHUB_REPOSITORY is not set, reports will not link to the workflow run")
	}

	if r.options.IsPullRequest() {
		if err := r.fetchAndSetPullRequestInfo(); err != nil {
			return fmt.Errorf("failed to fetch pull request info: %w", err)
		}
	} else {
		lg.Info("No pull request context, check run and comment are skipped")
	}

	if err := r.RunnerBase.Initialize(); err != nil {
		return err
	}
	lg.Info("Initializing runner: done.")
	return nil
}

// Fetch pull request data and the existing tool comment in parallel
func (r *RunnerGitHub) fetchAndSetPullRequestInfo() error {
	p := pool.New().WithErrors().WithContext(r.Context)

	p.Go(func(ctx context.Context) error {
		pr, err := r.ghclient.GetPR(ctx, r.options.GhRepo, r.options.GhPrNumber)
		if err != nil {
			return fmt.Errorf("failed to get PR info: %w", err)
		}
		r.prInfo = pr
		return nil
	})

	if r.options.GhComment {
		p.Go(func(ctx context.Context) error {
			comment, err := r.ghclient.FindToolComment(ctx, r.options.GhRepo, r.options.GhPrNumber, r.signature)
			if err != nil {
				return fmt.Errorf("failed to get PR comments: %w", err)
			}
			r.toolComment = comment
			return nil
		})
	}

	return p.Wait()
}

// CheckRunID returns the id of the published check run, 0 when none was published
func (r *RunnerGitHub) CheckRunID() int64 {
	return r.checkRunID
}

// headSHA is the commit the check run is attached to
func (r *RunnerGitHub) headSHA() string {
	if r.prInfo != nil && r.prInfo.HeadSHA != "" {
		return r.prInfo.HeadSHA
	}
	return r.options.GhSHA
}

func (r *RunnerGitHub) Output(data *models.ReportData) error {
	ctx, span := trace.StartSpan(r.Context, "Output")
	defer span.End()

	logger.Info("Output: starting...")
	data.Repository = r.options.GhRepo
	data.HeadCommit = r.headSHA()
	data.RunURL = r.runURL

	if err := r.outputReportJson(data); err != nil {
		return err
	}
	if err := r.outputGitHubOutputs(data); err != nil {
		return err
	}
	if err := r.outputStepSummary(data); err != nil {
		return err
	}
	if r.options.IsPullRequest() {
		if err := r.outputCheckRun(ctx, data); err != nil {
			return err
		}
		if err := r.outputGitHubComment(ctx, data); err != nil {
			return err
		}
	}
	logger.Info("Output: done.")
	return nil
}

// Appending key=value outputs to $GITHUB_OUTPUT
func (r *RunnerGitHub) outputGitHubOutputs(data *models.ReportData) error {
	if r.options.GhOutputPath == "" {
		logger.Debug("OutputGitHubOutputs: GITHUB_OUTPUT is not set")
		return nil
	}

	content := fmt.Sprintf("warnings=%d\nfailures=%d\nunresolved=%d\nconclusion=%s\n",
		data.Counts.Warnings, data.Counts.Failures, data.Counts.Unresolved, data.Conclusion)
	if err := appendFile(r.options.GhOutputPath, content); err != nil {
		return fmt.Errorf("failed to write GitHub outputs: %w", err)
	}
	logger.WithField("filePath", r.options.GhOutputPath).Info("Written GitHub outputs")
	return nil
}

// Appending the markdown summary to $GITHUB_STEP_SUMMARY
func (r *RunnerGitHub) outputStepSummary(data *models.ReportData) error {
	if r.options.GhStepSummaryPath == "" {
		logger.Debug("OutputStepSummary: GITHUB_STEP_SUMMARY is not set")
		return nil
	}

	markdown, err := r.renderSummary(data, "")
	if err != nil {
		return err
	}
	r.summaryOutput = markdown
	if err := appendFile(r.options.GhStepSummaryPath, markdown+"\n"); err != nil {
		return fmt.Errorf("failed to write step summary: %w", err)
	}
	logger.WithField("filePath", r.options.GhStepSummaryPath).Info("Written step summary")
	return nil
}

// Publishing the annotations as a check run on the PR head
func (r *RunnerGitHub) outputCheckRun(ctx context.Context, data *models.ReportData) error {
	sha := r.headSHA()
	if sha == "" {
		logger.Warn("OutputCheckRun: head commit is unknown, skipping check run")
		return nil
	}

	summary := r.summaryOutput
	if summary == "" {
		markdown, err := r.renderSummary(data, "")
		if err != nil {
			return err
		}
		summary = markdown
	}

	title := fmt.Sprintf("%d %s, %d %s",
		data.Counts.Failures, template.Plural("failure", data.Counts.Failures),
		data.Counts.Warnings, template.Plural("warning", data.Counts.Warnings))
	id, err := r.ghclient.PublishCheckRun(ctx, r.options.GhRepo, github.CheckRun{
		Name:       r.options.GhCheckName,
		HeadSHA:    sha,
		Title:      title,
		Summary:    summary,
		Conclusion: data.Conclusion,
		DetailsURL: r.runURL,
	}, data.Annotations)
	if err != nil {
		return fmt.Errorf("failed to publish check run: %w", err)
	}
	r.checkRunID = id
	logger.WithField("checkRunID", id).WithField("sha", sha).Info("Published check run")
	return nil
}

// Post comment to GitHub PR
func (r *RunnerGitHub) outputGitHubComment(ctx context.Context, data *models.ReportData) error {
	if !r.options.GhComment {
		logger.Info("OutputGitHubComment: option was disabled")
		return nil
	}
	logger.Info("OutputGitHubComment: starting...")

	finalComment, err := r.renderSummary(data, r.signature)
	if err != nil {
		return err
	}

	if r.toolComment != nil {
		if err := r.ghclient.UpdateComment(ctx, r.options.GhRepo, r.toolComment.ID, finalComment); err != nil {
			logger.WithField("error", err).Error("Failed to update existing comment")
			return err
		}
		logger.Info("Updated existing GitHub comment")
		return nil
	}

	if _, err := r.ghclient.CreateComment(ctx, r.options.GhRepo, r.options.GhPrNumber, finalComment); err != nil {
		logger.WithField("error", err).Error("Failed to create new comment")
		return err
	}
	logger.Info("Created new GitHub comment")
	return nil
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return err
}
