package targets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range []string{
		"workflows/a.yaml",
		"workflows/b.yml",
		"workflows/nested/c.yaml",
		"README.md",
	} {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("kind: Workflow\n"), 0644))
	}
	return root
}

func TestExpand(t *testing.T) {
	root := setupTree(t)
	join := func(names ...string) []string {
		out := make([]string, 0, len(names))
		for _, n := range names {
			out = append(out, filepath.Join(root, filepath.FromSlash(n)))
		}
		return out
	}

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{
			name:     "no patterns targets root",
			patterns: nil,
			want:     []string{root},
		},
		{
			name:     "recursive yaml",
			patterns: []string{"**/*.yaml"},
			want:     join("workflows/a.yaml", "workflows/nested/c.yaml"),
		},
		{
			name:     "alternatives",
			patterns: []string{"workflows/*.{yaml,yml}"},
			want:     join("workflows/a.yaml", "workflows/b.yml"),
		},
		{
			name:     "overlapping patterns are de-duplicated",
			patterns: []string{"workflows/**", "**/a.yaml"},
			want:     join("workflows/a.yaml", "workflows/b.yml", "workflows/nested/c.yaml"),
		},
		{
			name:     "no match",
			patterns: []string{"charts/**/*.yaml"},
			want:     []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(root, tt.patterns)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandInvalidPattern(t *testing.T) {
	_, err := Expand(t.TempDir(), []string{"workflows/[a-"})
	assert.Error(t, err)
}
