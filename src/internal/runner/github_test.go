package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/sparkstar/conftest-actions/src/pkg/annotation"
	"github.com/sparkstar/conftest-actions/src/pkg/github"
	"github.com/sparkstar/conftest-actions/src/pkg/models"
	"github.com/sparkstar/conftest-actions/src/pkg/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGitHubClient struct {
	mu sync.Mutex

	pr          *models.PullRequest
	prErr       error
	toolComment *models.Comment

	created   []string
	updated   map[int64]string
	checkRuns []github.CheckRun
	checkAnns [][]annotation.Annotation
}

var _ github.GitHubClient = (*fakeGitHubClient)(nil)

func (f *fakeGitHubClient) GetPR(_ context.Context, _ string, _ int) (*models.PullRequest, error) {
	return f.pr, f.prErr
}

func (f *fakeGitHubClient) CreateComment(_ context.Context, _ string, _ int, body string) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, body)
	return &models.Comment{ID: 99, Body: body}, nil
}

func (f *fakeGitHubClient) UpdateComment(_ context.Context, _ string, id int64, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updated == nil {
		f.updated = map[int64]string{}
	}
	f.updated[id] = body
	return nil
}

func (f *fakeGitHubClient) GetComments(_ context.Context, _ string, _ int) ([]*models.Comment, error) {
	if f.toolComment == nil {
		return nil, nil
	}
	return []*models.Comment{f.toolComment}, nil
}

func (f *fakeGitHubClient) FindToolComment(_ context.Context, _ string, _ int, _ string) (*models.Comment, error) {
	return f.toolComment, nil
}

func (f *fakeGitHubClient) PublishCheckRun(_ context.Context, _ string, run github.CheckRun, anns []annotation.Annotation) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkRuns = append(f.checkRuns, run)
	f.checkAnns = append(f.checkAnns, anns)
	return 7, nil
}

func githubOptions(dir string) *Options {
	opts := testOptions(dir)
	opts.RunMode = RUN_MODE_GITHUB
	opts.GhRepo = "o/r"
	opts.GhRunID = "123"
	opts.GhSHA = "push-sha"
	opts.GhOutputPath = filepath.Join(dir, "github_output")
	opts.GhStepSummaryPath = filepath.Join(dir, "step_summary")
	return opts
}

func TestRunnerGitHubPullRequest(t *testing.T) {
	dir := setupWorkdir(t)
	opts := githubOptions(dir)
	opts.GhPrNumber = 5
	opts.GhComment = true
	client := &fakeGitHubClient{pr: &models.PullRequest{Number: 5, HeadSHA: "head-sha"}}

	r, err := NewRunnerGitHub(context.Background(), opts, client, &fakeTester{results: podResults()}, template.NewRenderer(""))
	require.NoError(t, err)
	var stdout bytes.Buffer
	r.Stdout = &stdout

	require.NoError(t, r.Initialize())
	require.NoError(t, r.Process())

	assert.Contains(t, stdout.String(), "::error file=pod.yaml,line=2::kind: bare pods are not allowed")

	outputs, err := os.ReadFile(opts.GhOutputPath)
	require.NoError(t, err)
	assert.Equal(t, "warnings=1\nfailures=2\nunresolved=1\nconclusion=failure\n", string(outputs))

	summary, err := os.ReadFile(opts.GhStepSummaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Conftest: 2 failures, 1 warning")
	assert.Contains(t, string(summary), "https://github.com/o/r/actions/runs/123")

	require.Len(t, client.checkRuns, 1)
	run := client.checkRuns[0]
	assert.Equal(t, DEFAULT_CHECK_NAME, run.Name)
	assert.Equal(t, "head-sha", run.HeadSHA)
	assert.Equal(t, annotation.ConclusionFailure, run.Conclusion)
	assert.Equal(t, "2 failures, 1 warning", run.Title)
	assert.Len(t, client.checkAnns[0], 3)
	assert.Equal(t, int64(7), r.CheckRunID())

	require.Len(t, client.created, 1)
	assert.Contains(t, client.created[0], template.Signature(DEFAULT_CHECK_NAME))
	assert.Empty(t, client.updated)
}

func TestRunnerGitHubUpdatesExistingComment(t *testing.T) {
	dir := setupWorkdir(t)
	opts := githubOptions(dir)
	opts.GhPrNumber = 5
	opts.GhComment = true
	opts.GhCheckName = "policies"
	client := &fakeGitHubClient{
		pr:          &models.PullRequest{Number: 5, HeadSHA: "head-sha"},
		toolComment: &models.Comment{ID: 42, Body: template.Signature("policies") + "\nold"},
	}

	r, err := NewRunnerGitHub(context.Background(), opts, client, &fakeTester{results: podResults()}, template.NewRenderer(""))
	require.NoError(t, err)
	r.Stdout = &bytes.Buffer{}
	require.NoError(t, r.Initialize())
	require.NoError(t, r.Process())

	assert.Empty(t, client.created)
	require.Contains(t, client.updated, int64(42))
	assert.Contains(t, client.updated[42], template.Signature("policies"))
	assert.Equal(t, "policies", client.checkRuns[0].Name)
}

func TestRunnerGitHubWithoutPullRequest(t *testing.T) {
	dir := setupWorkdir(t)
	opts := githubOptions(dir)
	opts.GhComment = true
	client := &fakeGitHubClient{}

	r, err := NewRunnerGitHub(context.Background(), opts, client, &fakeTester{results: podResults()}, template.NewRenderer(""))
	require.NoError(t, err)
	r.Stdout = &bytes.Buffer{}
	require.NoError(t, r.Initialize())
	require.NoError(t, r.Process())

	assert.Empty(t, client.checkRuns)
	assert.Empty(t, client.created)
	assert.Equal(t, int64(0), r.CheckRunID())

	_, err = os.Stat(opts.GhOutputPath)
	assert.NoError(t, err)
}

func TestRunnerGitHubPullRequestErrors(t *testing.T) {
	dir := setupWorkdir(t)
	opts := githubOptions(dir)
	opts.GhPrNumber = 5

	_, err := NewRunnerGitHub(context.Background(), opts, nil, &fakeTester{}, template.NewRenderer(""))
	assert.Error(t, err)

	client := &fakeGitHubClient{prErr: errors.New("boom")}
	r, err := NewRunnerGitHub(context.Background(), opts, client, &fakeTester{}, template.NewRenderer(""))
	require.NoError(t, err)
	err = r.Initialize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunnerGitHubFallsBackToPushSHA(t *testing.T) {
	dir := setupWorkdir(t)
	opts := githubOptions(dir)
	opts.GhPrNumber = 5
	client := &fakeGitHubClient{pr: &models.PullRequest{Number: 5}}

	r, err := NewRunnerGitHub(context.Background(), opts, client, &fakeTester{results: podResults()}, template.NewRenderer(""))
	require.NoError(t, err)
	r.Stdout = &bytes.Buffer{}
	require.NoError(t, r.Initialize())
	require.NoError(t, r.Process())

	require.Len(t, client.checkRuns, 1)
	assert.Equal(t, "push-sha", client.checkRuns[0].HeadSHA)
	assert.Empty(t, client.created)
}

func TestRunnerGitHubInitializeLogsDoneLast(t *testing.T) {
	hook := test.NewLocal(logger.Logger)
	defer hook.Reset()

	doneMessages := func() []string {
		var msgs []string
		for _, e := range hook.AllEntries() {
			if e.Message == "Initializing runner: done." || e.Message == "Initialize runner: done." {
				msgs = append(msgs, e.Message)
			}
		}
		return msgs
	}

	t.Run("invalid policy", func(t *testing.T) {
		hook.Reset()
		dir := setupWorkdir(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "policy", "main.rego"), []byte("package main\n\ndeny[msg {\n"), 0644))

		r, err := NewRunnerGitHub(context.Background(), githubOptions(dir), &fakeGitHubClient{}, &fakeTester{}, template.NewRenderer(""))
		require.NoError(t, err)
		require.Error(t, r.Initialize())
		assert.Empty(t, doneMessages())
	})

	t.Run("valid policy", func(t *testing.T) {
		hook.Reset()
		dir := setupWorkdir(t)

		r, err := NewRunnerGitHub(context.Background(), githubOptions(dir), &fakeGitHubClient{}, &fakeTester{}, template.NewRenderer(""))
		require.NoError(t, err)
		require.NoError(t, r.Initialize())
		assert.Equal(t, []string{"Initialize runner: done.", "Initializing runner: done."}, doneMessages())
	})
}
