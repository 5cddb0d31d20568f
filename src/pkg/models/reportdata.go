package models

import (
	"time"

	"github.com/sparkstar/conftest-actions/src/pkg/annotation"
)

// ReportData represents the complete report data structure
type ReportData struct {
	Timestamp  time.Time `json:"timestamp"`
	Repository string    `json:"repository,omitempty"`
	HeadCommit string    `json:"headCommit,omitempty"`
	RunURL     string    `json:"runUrl,omitempty"`

	// PolicyPaths are the policy directories conftest was run with
	PolicyPaths []string `json:"policyPaths"`

	// Conclusion is "failure" when any failure-severity finding exists, "success" otherwise
	Conclusion string            `json:"conclusion"`
	Counts     annotation.Counts `json:"counts"`

	// Files holds per-file totals in conftest order
	Files []FileReport `json:"files"`

	// Annotations in output order: files in order, warnings before failures
	Annotations []annotation.Annotation `json:"annotations"`
}

// FileReport summarizes conftest results for a single file
type FileReport struct {
	File       string `json:"file"`
	Successes  int    `json:"successes"`
	Warnings   int    `json:"warnings"`
	Failures   int    `json:"failures"`
	Exceptions int    `json:"exceptions"`
}

// ReportTemplateData represents the data structure for template rendering
type ReportTemplateData struct {
	ReportData
	// Signature is the hidden marker used to find the tool comment on a pull request
	Signature string `json:"-"`
}
