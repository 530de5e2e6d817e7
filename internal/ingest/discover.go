package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultInclude is used when a directory is ingested without patterns.
var DefaultInclude = []string{"**/*.txt", "**/*.md"}

// Discover resolves input to the list of documents to ingest. A file is
// returned as-is. A directory is expanded with the doublestar patterns,
// which are relative to it. Results are sorted and unique.
func Discover(input string, patterns []string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, input)
		}
		return nil, fmt.Errorf("stat %s: %w", input, err)
	}
	if !info.IsDir() {
		return []string{input}, nil
	}

	if len(patterns) == 0 {
		patterns = DefaultInclude
	}
	fsys := os.DirFS(input)
	seen := make(map[string]struct{})
	var paths []string
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern: %q", pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, rel := range matches {
			if _, ok := seen[rel]; ok {
				continue
			}
			seen[rel] = struct{}{}
			paths = append(paths, filepath.Join(input, filepath.FromSlash(rel)))
		}
	}
	slices.Sort(paths)
	return paths, nil
}
