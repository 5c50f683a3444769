// SPDX-License-Identifier: MPL-2.0

// Package dist discovers previously compiled modules in a distribution tree.
//
// Each compiled file becomes an Artifact whose segments are its relative path
// without the compiled extension. Artifacts can be flattened into the dotted
// naming scheme ("foo.bar" for foo/bar.js) that callers use as lookup keys.
package dist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tsjunit/tsjunit/internal/modpath"
)

// DefaultCompiledExts lists the extensions treated as compiled output.
var DefaultCompiledExts = []string{".js"}

// ErrNotDirectory is returned when the distribution root exists but is a file.
var ErrNotDirectory = errors.New("distribution root is not a directory")

// Artifact is a compiled module found beneath a distribution root.
type Artifact struct {
	// RelPath is the slash-separated path relative to the root, with extension.
	RelPath string
	// Segments is RelPath split on "/" with the extension removed from the last element.
	Segments []string
}

// Name returns the dotted logical name ("foo.bar" for foo/bar.js).
func (a Artifact) Name() string {
	return modpath.Dotted(a.Segments)
}

// Logical returns the slash-joined logical path ("foo/bar").
func (a Artifact) Logical() modpath.Path {
	return modpath.Join(a.Segments...)
}

// Scan walks root recursively and returns every file carrying one of exts,
// ordered by relative path. A missing root yields no artifacts.
func Scan(root string, exts []string) ([]Artifact, error) {
	if len(exts) == 0 {
		exts = DefaultCompiledExts
	}

	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dist: stat %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dist: %q: %w", root, ErrNotDirectory)
	}

	return ScanFS(os.DirFS(root), exts)
}

// ScanFS is Scan over an arbitrary filesystem.
func ScanFS(fsys fs.FS, exts []string) ([]Artifact, error) {
	seen := make(map[string]struct{})
	var artifacts []Artifact

	for _, ext := range exts {
		pattern := "**/*" + ext
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("dist: glob %q: %w", pattern, err)
		}
		for _, rel := range matches {
			if _, dup := seen[rel]; dup {
				continue
			}
			seen[rel] = struct{}{}
			artifacts = append(artifacts, newArtifact(rel, ext))
		}
	}

	slices.SortFunc(artifacts, func(a, b Artifact) int {
		return strings.Compare(a.RelPath, b.RelPath)
	})
	return artifacts, nil
}

func newArtifact(rel, ext string) Artifact {
	trimmed := strings.TrimSuffix(rel, ext)
	dir, file := path.Split(trimmed)
	var segments []string
	if dir != "" {
		segments = strings.Split(strings.TrimSuffix(dir, "/"), "/")
	}
	segments = append(segments, file)
	return Artifact{RelPath: rel, Segments: segments}
}

// Flatten returns the dotted names of artifacts in order.
func Flatten(artifacts []Artifact) []string {
	names := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		names = append(names, a.Name())
	}
	return names
}
