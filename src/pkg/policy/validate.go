package policy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/open-policy-agent/opa/ast"
)

var (
	// ErrPolicyNotFound indicates neither the policy path nor its fallback exists
	ErrPolicyNotFound = errors.New("policy path not found")
)

const REGO_FILE_PATTERN = "**/*.rego"

// ResolvePolicyPath returns path if it exists, otherwise fallback when that exists
func ResolvePolicyPath(path, fallback string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if fallback == "" {
		return "", fmt.Errorf("%w: %s", ErrPolicyNotFound, path)
	}

	logger.WithField("policy", path).WithField("fallback", fallback).Warn("Policy path not found, falling back to default policy")
	if _, err := os.Stat(fallback); err != nil {
		return "", fmt.Errorf("%w: %s (fallback %s)", ErrPolicyNotFound, path, fallback)
	}
	return fallback, nil
}

// ValidatePolicies parses every rego module under paths and returns the number of modules.
// Test modules (*_test.rego) are parsed as well. A path may be a directory or a single file.
func ValidatePolicies(paths []string) (int, error) {
	logger.Info("ValidatePolicies: starting...")

	count := 0
	for _, p := range paths {
		files, err := regoFiles(p)
		if err != nil {
			return 0, err
		}
		for _, file := range files {
			content, err := os.ReadFile(file)
			if err != nil {
				return 0, fmt.Errorf("failed to read policy %s: %w", file, err)
			}
			module, err := ast.ParseModule(file, string(content))
			if err != nil {
				return 0, fmt.Errorf("invalid policy %s: %w", file, err)
			}
			logger.WithField("file", file).WithField("package", module.Package.Path.String()).Debug("Parsed policy")
			count++
		}
	}

	if count == 0 {
		return 0, fmt.Errorf("no rego policies found in %s", strings.Join(paths, ", "))
	}
	logger.Infof("ValidatePolicies: done, parsed %d modules.", count)
	return count, nil
}

func regoFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, path)
	}
	if !info.IsDir() {
		if filepath.Ext(path) != ".rego" {
			return nil, fmt.Errorf("policy %s: unsupported file extension (must be .rego)", path)
		}
		return []string{path}, nil
	}

	var files []string
	err = doublestar.GlobWalk(os.DirFS(path), REGO_FILE_PATTERN, func(name string, d fs.DirEntry) error {
		files = append(files, filepath.Join(path, filepath.FromSlash(name)))
		return nil
	}, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to list policies in %s: %w", path, err)
	}
	return files, nil
}
