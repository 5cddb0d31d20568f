package runner

import "time"

const (
	RUN_MODE_GITHUB = "github"
	RUN_MODE_LOCAL  = "local"

	DEFAULT_CHECK_NAME = "conftest"
)

type Options struct {
	// Run mode
	RunMode string // "github" or "local"
	Debug   bool   // Debug mode

	// Policy options
	PolicyPaths          []string // conftest --policy, repeated
	DefaultPolicyPath    string   // used when a policy path does not exist
	Namespaces           []string
	AllNamespaces        bool
	SkipPolicyValidation bool // skip parsing rego files before running conftest

	// Conftest options
	ConftestBinary string
	ConftestArgs   []string // extra arguments appended to "conftest test"
	Timeout        time.Duration

	// Targets, relative to Workdir
	Workdir string   // conftest working directory, file names in findings are relative to it
	Target  string   // directory or file passed to conftest
	Files   []string // doublestar patterns under Target narrowing the files passed to conftest

	// Output options
	GroupTitle                    string
	TemplatesPath                 string
	OutputDir                     string
	EnableExportReport            bool
	EnableExportPerformanceReport bool
	FailOnFailure                 bool // return an error when any failure-severity finding exists
	PrefetchWorkers               int

	// GitHub mode options
	GhRepo            string
	GhPrNumber        int    // check run is published when > 0
	GhSHA             string // commit to attach the check run to when the PR head is unknown
	GhCheckName       string
	GhComment         bool // upsert a summary comment on the PR
	GhServerURL       string
	GhRunID           string
	GhStepSummaryPath string // $GITHUB_STEP_SUMMARY
	GhOutputPath      string // $GITHUB_OUTPUT
}

// IsPullRequest returns true when the run has a pull request context
func (o *Options) IsPullRequest() bool {
	return o.GhPrNumber > 0
}
