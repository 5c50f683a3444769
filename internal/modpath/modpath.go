// SPDX-License-Identifier: MPL-2.0

// Package modpath defines logical module paths: slash-separated identifiers
// derived from a file's location relative to a project root, independent of the
// host filesystem separator.
package modpath

import (
	"path/filepath"
	"strings"
)

const (
	// Separator delimits segments of a logical path.
	Separator = "/"

	// IndexSegment is the file name module loaders resolve for a package directory.
	IndexSegment = "index"

	// DottedSeparator joins segments in the flattened artifact naming scheme.
	DottedSeparator = "."
)

// Path is a logical module path such as "src/foo/bar".
type Path string

// FromFile converts a filesystem path to a logical path by normalising
// separators. No extension is stripped.
func FromFile(p string) Path {
	return Path(filepath.ToSlash(p))
}

// Join builds a logical path from segments, skipping empty ones.
func Join(segments ...string) Path {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return Path(strings.Join(parts, Separator))
}

// String returns the path text.
func (p Path) String() string {
	return string(p)
}

// Segments splits the path on Separator.
func (p Path) Segments() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), Separator)
}

// IsIndex reports whether the final segment is exactly "index".
func (p Path) IsIndex() bool {
	segs := p.Segments()
	return len(segs) > 0 && segs[len(segs)-1] == IndexSegment
}

// WithoutIndex strips a trailing "/index" segment ("src/index" -> "src").
func (p Path) WithoutIndex() Path {
	return Path(strings.TrimSuffix(string(p), Separator+IndexSegment))
}

// WithTrailingSeparator replaces a trailing "/index" segment with a
// separator ("src/index" -> "src/").
func (p Path) WithTrailingSeparator() Path {
	if !strings.HasSuffix(string(p), Separator+IndexSegment) {
		return p
	}
	return Path(strings.TrimSuffix(string(p), IndexSegment))
}

// WithExt appends a file extension such as ".ts".
func (p Path) WithExt(ext string) Path {
	return p + Path(ext)
}

// TrimExt removes ext when the path ends with it.
func (p Path) TrimExt(ext string) Path {
	return Path(strings.TrimSuffix(string(p), ext))
}

// After returns the part of the path following the first occurrence of
// segment+Separator, or "" when the segment does not occur.
func (p Path) After(segment string) string {
	_, rest, found := strings.Cut(string(p), segment+Separator)
	if !found {
		return ""
	}
	return rest
}

// Dotted renders segments in the flattened "a.b.c" form.
func Dotted(segments []string) string {
	return strings.Join(segments, DottedSeparator)
}
