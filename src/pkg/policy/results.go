package policy

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

var (
	// ErrNoResults indicates conftest produced an empty or missing payload
	ErrNoResults = errors.New("no results found in conftest output")
)

// Sample conftest output (-o json)
//
//	[
//	  {
//	    "filename": "workflows/hello.yaml",
//	    "namespace": "main",
//	    "successes": 2,
//	    "warnings": [
//	      { "msg": "spec.templates[0].container: should specify a 'name'" }
//	    ],
//	    "failures": [
//	      {
//	        "msg": "metadata.labels: must contain 'team'",
//	        "metadata": { "query": "data.main.deny" }
//	      }
//	    ]
//	  }
//	]

// CheckResult is the conftest result for one file and namespace
type CheckResult struct {
	Filename   string   `json:"filename"`
	Namespace  string   `json:"namespace,omitempty"`
	Successes  int      `json:"successes"`
	Warnings   []Result `json:"warnings,omitempty"`
	Failures   []Result `json:"failures,omitempty"`
	Exceptions []Result `json:"exceptions,omitempty"`
}

// Result is a single conftest finding
type Result struct {
	Message  string         `json:"msg"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Details are the well-known metadata keys of a finding.
// Rules returning an object such as {"msg": ..., "selector": "spec.replicas"}
// have their extra keys placed into metadata by conftest.
type Details struct {
	Selector string `mapstructure:"selector"`
	Query    string `mapstructure:"query"`
}

// Details decodes the finding metadata. Undecodable metadata yields empty details.
func (r Result) Details() Details {
	var d Details
	if len(r.Metadata) == 0 {
		return d
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &d,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Details{}
	}
	if err := dec.Decode(r.Metadata); err != nil {
		logger.WithField("metadata", r.Metadata).WithField("error", err).Debug("Failed to decode result metadata")
		return Details{}
	}
	return d
}

// ParseResults parses conftest JSON output
func ParseResults(data []byte) ([]CheckResult, error) {
	var results []CheckResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to parse conftest output: %w", err)
	}
	if results == nil {
		return nil, ErrNoResults
	}
	return results, nil
}

// Totals sums findings over all results
func Totals(results []CheckResult) (successes, warnings, failures int) {
	for _, r := range results {
		successes += r.Successes
		warnings += len(r.Warnings)
		failures += len(r.Failures)
	}
	return successes, warnings, failures
}
