// SPDX-License-Identifier: MPL-2.0

package reconcile

import (
	"fmt"
	"os"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tsjunit/tsjunit/internal/modpath"
)

// Candidates expands the source patterns under baseDir and appends the extra
// files (typically the test files) that are not already listed. Matches of
// each pattern are sorted; patterns keep their order. Paths are relative to
// baseDir with forward slashes.
func Candidates(baseDir string, patterns, extra []string) ([]string, error) {
	fsys := os.DirFS(baseDir)

	var out []string
	seen := make(map[string]struct{})
	add := func(p string) {
		p = string(modpath.FromFile(p))
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("reconcile: invalid source pattern %q: %w", pattern, doublestar.ErrBadPattern)
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("reconcile: expand %q: %w", pattern, err)
		}
		slices.Sort(matches)
		for _, m := range matches {
			add(m)
		}
	}
	for _, f := range extra {
		add(f)
	}
	return out, nil
}
