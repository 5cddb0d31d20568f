package github

import (
	"fmt"
	"strings"
)

const DEFAULT_SERVER_URL = "https://github.com"

// ParseOwnerRepo splits "owner/repo"
func ParseOwnerRepo(repo string) (string, string, error) {
	owner, name, found := strings.Cut(repo, "/")
	if !found || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository %q, expected owner/repo", repo)
	}
	return owner, name, nil
}

// GetWorkflowRunUrl returns the URL of a workflow run, empty when repo or runID is unknown
func GetWorkflowRunUrl(serverURL, repo, runID string) string {
	if repo == "" || runID == "" {
		return ""
	}
	if serverURL == "" {
		serverURL = DEFAULT_SERVER_URL
	}
	return fmt.Sprintf("%s/%s/actions/runs/%s", strings.TrimSuffix(serverURL, "/"), repo, runID)
}
