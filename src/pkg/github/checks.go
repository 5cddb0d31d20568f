package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v66/github"
	"github.com/samber/lo"
	"github.com/sparkstar/conftest-actions/src/pkg/annotation"
)

const (
	// MAX_ANNOTATIONS_PER_REQUEST is the Checks API limit per create/update call
	MAX_ANNOTATIONS_PER_REQUEST = 50
	// MAX_SUMMARY_LENGTH is the Checks API limit for output.summary
	MAX_SUMMARY_LENGTH = 65535

	CheckStatusInProgress = "in_progress"
	CheckStatusCompleted  = "completed"
)

// CheckRun describes the check run to publish
type CheckRun struct {
	Name       string
	HeadSHA    string
	Title      string
	Summary    string
	Conclusion string // annotation.ConclusionSuccess or annotation.ConclusionFailure
	DetailsURL string
}

// CheckAnnotations converts annotations to Checks API annotations.
// The API requires a line, so unresolved annotations are attached to line 1.
func CheckAnnotations(annotations []annotation.Annotation) []*github.CheckRunAnnotation {
	return lo.Map(annotations, func(a annotation.Annotation, _ int) *github.CheckRunAnnotation {
		line := a.Line
		if !a.Resolved() {
			line = 1
		}
		ca := &github.CheckRunAnnotation{
			Path:            github.String(a.File),
			StartLine:       github.Int(line),
			EndLine:         github.Int(line),
			AnnotationLevel: github.String(annotationLevel(a.Severity)),
			Message:         github.String(a.Message),
		}
		if a.Selector != "" {
			ca.Title = github.String(a.Selector)
		}
		if a.Resolved() && a.Column > 0 {
			ca.StartColumn = github.Int(a.Column)
			ca.EndColumn = github.Int(a.Column)
		}
		return ca
	})
}

func annotationLevel(s annotation.Severity) string {
	if s == annotation.SeverityFailure {
		return "failure"
	}
	return "warning"
}

// PublishCheckRun creates the check run and attaches annotations in batches of
// MAX_ANNOTATIONS_PER_REQUEST. The run is completed with the last batch.
func (c *Client) PublishCheckRun(ctx context.Context, repo string, run CheckRun, annotations []annotation.Annotation) (int64, error) {
	owner, repo, err := ParseOwnerRepo(repo)
	if err != nil {
		return 0, fmt.Errorf("failed to parse repository: %w", err)
	}
	if run.HeadSHA == "" {
		return 0, fmt.Errorf("head SHA is required to publish a check run")
	}

	batches := lo.Chunk(CheckAnnotations(annotations), MAX_ANNOTATIONS_PER_REQUEST)
	if len(batches) == 0 {
		batches = [][]*github.CheckRunAnnotation{nil}
	}
	output := func(batch []*github.CheckRunAnnotation) *github.CheckRunOutput {
		return &github.CheckRunOutput{
			Title:       github.String(run.Title),
			Summary:     github.String(truncate(run.Summary, MAX_SUMMARY_LENGTH)),
			Annotations: batch,
		}
	}

	createOpts := github.CreateCheckRunOptions{
		Name:    run.Name,
		HeadSHA: run.HeadSHA,
		Output:  output(batches[0]),
	}
	if run.DetailsURL != "" {
		createOpts.DetailsURL = github.String(run.DetailsURL)
	}
	if len(batches) == 1 {
		createOpts.Status = github.String(CheckStatusCompleted)
		createOpts.Conclusion = github.String(run.Conclusion)
	} else {
		createOpts.Status = github.String(CheckStatusInProgress)
	}

	created, _, err := c.client.Checks.CreateCheckRun(ctx, owner, repo, createOpts)
	if err != nil {
		return 0, fmt.Errorf("failed to create check run: %w", err)
	}
	id := created.GetID()
	logger.WithField("checkRunID", id).WithField("batches", len(batches)).Info("Created check run")

	for i, batch := range batches[1:] {
		updateOpts := github.UpdateCheckRunOptions{
			Name:   run.Name,
			Output: output(batch),
		}
		if i == len(batches)-2 {
			updateOpts.Status = github.String(CheckStatusCompleted)
			updateOpts.Conclusion = github.String(run.Conclusion)
		}
		if _, _, err := c.client.Checks.UpdateCheckRun(ctx, owner, repo, id, updateOpts); err != nil {
			return id, fmt.Errorf("failed to add annotations to check run %d: %w", id, err)
		}
		logger.WithField("checkRunID", id).WithField("batch", i+2).Debug("Added annotations to check run")
	}

	return id, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	const marker = "\n\n... (truncated)"
	cut := limit - len(marker)
	// avoid splitting a multi-byte rune
	for cut > 0 && cut < len(s) && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + marker
}
