package runner

import (
	"github.com/sparkstar/conftest-actions/src/pkg/annotator"
	"github.com/sparkstar/conftest-actions/src/pkg/models"
	"github.com/sparkstar/conftest-actions/src/pkg/policy"
)

type RunnerInterface interface {
	// Initialize the runner with necessary context and data
	Initialize() error

	// Run conftest against the configured targets
	Evaluate() ([]policy.CheckResult, error)

	// Turn conftest results into annotations and print them as workflow commands
	Annotate(results []policy.CheckResult) (*annotator.Batch, error)

	// Main routine to process the runner
	Process() error

	// Handling the export
	Output(data *models.ReportData) error
}
