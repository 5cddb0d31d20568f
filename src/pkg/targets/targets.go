package targets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "targets")

// Expand resolves glob patterns relative to root into a sorted, de-duplicated list of files.
// Without patterns the root itself is the only target and conftest walks it.
// Returned paths are joined with root.
func Expand(root string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return []string{root}, nil
	}

	fsys := os.DirFS(root)
	var matches []string
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid target pattern %q", p)
		}
		found, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("failed to expand pattern %q: %w", p, err)
		}
		if len(found) == 0 {
			logger.WithField("pattern", p).Warn("Pattern matched no files")
		}
		matches = append(matches, found...)
	}

	matches = lo.Uniq(matches)
	sort.Strings(matches)
	files := lo.Map(matches, func(m string, _ int) string {
		return filepath.Join(root, filepath.FromSlash(m))
	})

	logger.WithField("patterns", patterns).Debugf("Expanded to %d files", len(files))
	return files, nil
}
