package yamldoc

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// Loader reads and parses documents from a filesystem, once per file.
// Parse failures are cached too, so a broken file is only reported once.
// Safe for concurrent use.
type Loader struct {
	fsys fs.FS
	root string // absolute root of fsys when backed by a directory, used to relativize absolute paths

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

type cacheEntry struct {
	once sync.Once
	doc  *Document
	err  error
}

// NewLoader creates a loader over fsys
func NewLoader(fsys fs.FS) *Loader {
	return &Loader{
		fsys:  fsys,
		cache: make(map[string]*cacheEntry),
	}
}

// NewDirLoader creates a loader rooted at a directory on disk
func NewDirLoader(dir string) (*Loader, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory %s: %w", dir, err)
	}
	l := NewLoader(os.DirFS(abs))
	l.root = abs
	return l, nil
}

// Load returns the parsed document for name, reading it on first use
func (l *Loader) Load(name string) (*Document, error) {
	key, err := l.normalize(name)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	entry, ok := l.cache[key]
	if !ok {
		entry = &cacheEntry{}
		l.cache[key] = entry
	}
	l.mu.Unlock()

	entry.once.Do(func() {
		entry.doc, entry.err = l.read(key)
	})
	return entry.doc, entry.err
}

// Cached reports how many distinct files have been requested
func (l *Loader) Cached() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cache)
}

func (l *Loader) read(name string) (*Document, error) {
	logger.WithField("file", name).Debug("Reading YAML source")
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return Parse(name, data)
}

// normalize turns conftest file names ("./a.yaml", "dir\\a.yaml", absolute paths)
// into fs.FS names
func (l *Loader) normalize(name string) (string, error) {
	if filepath.IsAbs(name) && l.root != "" {
		rel, err := filepath.Rel(l.root, name)
		if err != nil {
			return "", fmt.Errorf("failed to relativize %s: %w", name, err)
		}
		name = rel
	}
	name = path.Clean(filepath.ToSlash(name))
	name = strings.TrimPrefix(name, "./")
	if !fs.ValidPath(name) {
		return "", fmt.Errorf("invalid file name %q: %w", name, fs.ErrInvalid)
	}
	return name, nil
}
