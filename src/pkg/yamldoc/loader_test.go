package yamldoc

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/sparkstar/conftest-actions/src/pkg/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderCachesDocuments(t *testing.T) {
	fsys := fstest.MapFS{
		"deploy/app.yaml": {Data: []byte("kind: Deployment\n")},
	}
	loader := NewLoader(fsys)

	first, err := loader.Load("deploy/app.yaml")
	require.NoError(t, err)
	second, err := loader.Load("./deploy/app.yaml")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, loader.Cached())
}

func TestLoaderMissingFile(t *testing.T) {
	loader := NewLoader(fstest.MapFS{})

	_, err := loader.Load("missing.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoaderCachesParseFailure(t *testing.T) {
	fsys := fstest.MapFS{
		"bad.yaml": {Data: []byte("a: [b\n")},
	}
	loader := NewLoader(fsys)

	_, err1 := loader.Load("bad.yaml")
	_, err2 := loader.Load("bad.yaml")
	assert.ErrorIs(t, err1, ErrParse)
	assert.Equal(t, err1, err2)
}

func TestLoaderRejectsEscapingPaths(t *testing.T) {
	loader := NewLoader(fstest.MapFS{})

	_, err := loader.Load("../outside.yaml")
	assert.ErrorIs(t, err, fs.ErrInvalid)
}

func TestDirLoaderAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "svc.yaml")
	require.NoError(t, os.WriteFile(file, []byte("spec:\n  replicas: 2\n"), 0644))

	loader, err := NewDirLoader(dir)
	require.NoError(t, err)

	doc, err := loader.Load(file)
	require.NoError(t, err)

	line, ok := doc.ResolveLine(selector.Parse("spec.replicas"))
	require.True(t, ok)
	assert.Equal(t, 2, line)
}
