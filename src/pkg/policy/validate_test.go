package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPolicy = `package main

deny[msg] {
  input.kind == "Pod"
  msg := "kind: bare pods are not allowed"
}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestValidatePolicies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.rego"), validPolicy)
	writeFile(t, filepath.Join(dir, "nested", "labels.rego"), "package labels\n\nwarn[msg] {\n  not input.metadata.labels.team\n  msg := \"metadata.labels: must contain 'team'\"\n}\n")
	writeFile(t, filepath.Join(dir, "README.md"), "# policies\n")

	count, err := ValidatePolicies([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestValidatePoliciesSingleFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "main.rego")
	writeFile(t, file, validPolicy)

	count, err := ValidatePolicies([]string{file})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestValidatePoliciesErrors(t *testing.T) {
	t.Run("syntax error", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "broken.rego"), "package main\n\ndeny[msg] {\n")
		_, err := ValidatePolicies([]string{dir})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken.rego")
	})

	t.Run("no policies", func(t *testing.T) {
		_, err := ValidatePolicies([]string{t.TempDir()})
		assert.Error(t, err)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := ValidatePolicies([]string{filepath.Join(t.TempDir(), "nope")})
		assert.ErrorIs(t, err, ErrPolicyNotFound)
	})

	t.Run("wrong extension", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "policy.txt")
		writeFile(t, file, validPolicy)
		_, err := ValidatePolicies([]string{file})
		assert.Error(t, err)
	})
}

func TestResolvePolicyPath(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "policy")
	fallback := filepath.Join(dir, "default_policy")
	require.NoError(t, os.MkdirAll(existing, 0755))
	require.NoError(t, os.MkdirAll(fallback, 0755))
	missing := filepath.Join(dir, "missing")

	got, err := ResolvePolicyPath(existing, fallback)
	require.NoError(t, err)
	assert.Equal(t, existing, got)

	got, err = ResolvePolicyPath(missing, fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, got)

	_, err = ResolvePolicyPath(missing, "")
	assert.ErrorIs(t, err, ErrPolicyNotFound)

	_, err = ResolvePolicyPath(missing, filepath.Join(dir, "also-missing"))
	assert.ErrorIs(t, err, ErrPolicyNotFound)
}
