// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"slices"

	"github.com/tsjunit/tsjunit/internal/modpath"
)

// ReplacementSet is the ordered set of logical paths whose module-load
// references are redirected into the distribution tree. It only grows.
type ReplacementSet struct {
	entries  []modpath.Path
	seen     map[modpath.Path]struct{}
	expanded bool
}

// NewReplacementSet builds a set from compiled-form logical paths.
func NewReplacementSet(paths ...string) *ReplacementSet {
	s := &ReplacementSet{seen: make(map[modpath.Path]struct{}, len(paths))}
	for _, p := range paths {
		s.Add(modpath.Path(p))
	}
	return s
}

// Add appends p unless it is empty or already present. It reports whether p
// was added.
func (s *ReplacementSet) Add(p modpath.Path) bool {
	if p == "" {
		return false
	}
	if s.seen == nil {
		s.seen = make(map[modpath.Path]struct{})
	}
	if _, ok := s.seen[p]; ok {
		return false
	}
	s.seen[p] = struct{}{}
	s.entries = append(s.entries, p)
	return true
}

// Expand appends, for every entry ending in "index", the variant with "/index"
// removed and the variant with "index" replaced by a trailing separator.
// Only the first call has an effect.
func (s *ReplacementSet) Expand() {
	if s.expanded {
		return
	}
	s.expanded = true

	var indexes []modpath.Path
	for _, e := range s.entries {
		if e.IsIndex() {
			indexes = append(indexes, e)
		}
	}
	for _, e := range indexes {
		s.Add(e.WithoutIndex())
	}
	for _, e := range indexes {
		s.Add(e.WithTrailingSeparator())
	}
}

// Expanded reports whether Expand has run.
func (s *ReplacementSet) Expanded() bool {
	return s.expanded
}

// Contains reports whether p is in the set.
func (s *ReplacementSet) Contains(p modpath.Path) bool {
	_, ok := s.seen[p]
	return ok
}

// Entries returns a copy of the entries in insertion order.
func (s *ReplacementSet) Entries() []modpath.Path {
	return slices.Clone(s.entries)
}

// Len returns the number of entries.
func (s *ReplacementSet) Len() int {
	return len(s.entries)
}
