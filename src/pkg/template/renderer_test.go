package template

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sparkstar/conftest-actions/src/pkg/annotation"
	"github.com/sparkstar/conftest-actions/src/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() models.ReportTemplateData {
	anns := []annotation.Annotation{
		{File: "pod.yaml", Line: 2, Severity: annotation.SeverityWarning, Message: "kind: w1"},
		{File: "pod.yaml", Line: annotation.LineUnresolved, Severity: annotation.SeverityFailure, Message: "a | b\nc"},
	}
	return models.ReportTemplateData{
		ReportData: models.ReportData{
			Timestamp:  time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
			RunURL:     "https://github.com/o/r/actions/runs/1",
			Conclusion: annotation.Conclusion(anns),
			Counts:     annotation.CountOf(anns),
			Files: []models.FileReport{
				{File: "pod.yaml", Successes: 3, Warnings: 1, Failures: 1},
			},
			Annotations: anns,
		},
		Signature: Signature("conftest"),
	}
}

func TestSignature(t *testing.T) {
	assert.Equal(t,
		"<!-- conftest-annotate: policy-check - auto-generated comment, please do not remove -->",
		Signature("policy-check"))
}

func TestRenderSummary(t *testing.T) {
	out, err := NewRenderer("").RenderSummary(sampleData())
	require.NoError(t, err)

	assert.Contains(t, out, Signature("conftest")+"\n## :x: Conftest: 1 failure, 1 warning")
	assert.Contains(t, out, "| `pod.yaml` | 3 | 1 | 1 |")
	assert.Contains(t, out, "| WARNING | `pod.yaml:2` | kind: w1 |")
	assert.Contains(t, out, "| FAILURE | `pod.yaml` | a \\| b<br>c |")
	assert.Contains(t, out, "1 finding could not be located in the source and is reported without a line.")
	assert.Contains(t, out, "[Workflow run](https://github.com/o/r/actions/runs/1)")
	assert.Contains(t, out, "Generated at 2026-03-01 12:30:00 UTC")
}

func TestRenderSummaryNoFindings(t *testing.T) {
	data := models.ReportTemplateData{
		ReportData: models.ReportData{
			Timestamp:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			Conclusion: annotation.ConclusionSuccess,
		},
	}
	out, err := NewRenderer("").RenderSummary(data)
	require.NoError(t, err)

	assert.Contains(t, out, "## :white_check_mark: Conftest: 0 failures, 0 warnings")
	assert.Contains(t, out, "_No files were tested._")
	assert.NotContains(t, out, "<details>")
	assert.NotContains(t, out, "<!--")
}

func TestRenderSummaryCustomTemplate(t *testing.T) {
	dir := t.TempDir()
	custom := `{{ .Conclusion | upper }}: {{ len .Annotations }} findings`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileNameSummaryTemplate), []byte(custom), 0644))

	out, err := NewRenderer(dir).RenderSummary(sampleData())
	require.NoError(t, err)
	assert.Equal(t, "FAILURE: 2 findings", out)

	// a templates directory without the file falls back to the embedded default
	out, err = NewRenderer(t.TempDir()).RenderSummary(sampleData())
	require.NoError(t, err)
	assert.Contains(t, out, "Conftest: 1 failure, 1 warning")
}

func TestRenderSummaryBrokenTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileNameSummaryTemplate), []byte("{{ .Nope "), 0644))

	_, err := NewRenderer(dir).RenderSummary(sampleData())
	assert.Error(t, err)
}
