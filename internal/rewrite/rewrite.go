// SPDX-License-Identifier: MPL-2.0

// Package rewrite patches module-load statements in emitted CommonJS text so
// that references to modules already built into the distribution tree resolve
// to absolute paths inside that tree.
//
// Rewriting is line oriented: for each line containing "require", the literal
// argument of the first require call is the target, and every ReplacementSet
// entry found on the line replaces that target with the computed
// distribution path.
package rewrite

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tsjunit/tsjunit/internal/modpath"
)

const (
	// DefaultAnchor is the directory name that roots the distribution tree.
	DefaultAnchor = "ts-junit"
	// DefaultDistSubdir is the distribution directory beneath the anchor.
	DefaultDistSubdir = "dist"
	// DefaultSourceSegment separates the project-relative part of an entry.
	DefaultSourceSegment = "src"

	// PolicyLenient leaves malformed require lines unchanged.
	PolicyLenient Policy = "lenient"
	// PolicyStrict fails the rewrite on a malformed require line.
	PolicyStrict Policy = "strict"

	requireMarker = "require"
)

var (
	// ErrMalformedRequire is the sentinel wrapped by MalformedRequireError.
	ErrMalformedRequire = errors.New("malformed require line")
	// ErrInvalidPolicy is returned when a Policy value is not recognized.
	ErrInvalidPolicy = errors.New("invalid rewrite policy")

	// requireCall captures the literal of a require call quoted with matching
	// single or double quotes.
	requireCall = regexp.MustCompile(`\brequire\s*\(\s*(?:'([^'"]+)'|"([^'"]+)")\s*\)`)

	lineBreak = regexp.MustCompile(`\r?\n`)
)

type (
	// Policy selects how lines that mention "require" without a call are handled.
	Policy string

	// MalformedRequireError reports a line containing "require" whose call
	// pattern could not be matched.
	MalformedRequireError struct {
		// Line is 1-based.
		Line int
		Text string
	}

	// Options configures a Rewriter. Zero fields fall back to the defaults.
	Options struct {
		Anchor        string
		DistSubdir    string
		SourceSegment string
		Policy        Policy
		// OnMalformed is called for every malformed line under PolicyLenient.
		OnMalformed func(line int, text string)
	}

	// Rewriter rewrites require targets. It holds no per-file state.
	Rewriter struct {
		anchor        string
		distSubdir    string
		sourceSegment string
		policy        Policy
		onMalformed   func(line int, text string)
	}
)

// Validate returns an error if the policy is not recognized. The zero
// value is valid and means lenient.
func (p Policy) Validate() error {
	switch p {
	case "", PolicyLenient, PolicyStrict:
		return nil
	default:
		return fmt.Errorf("%w: %q (valid: %s, %s)", ErrInvalidPolicy, p, PolicyLenient, PolicyStrict)
	}
}

// Error implements the error interface.
func (e *MalformedRequireError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, ErrMalformedRequire, strings.TrimSpace(e.Text))
}

// Unwrap returns ErrMalformedRequire for errors.Is compatibility.
func (e *MalformedRequireError) Unwrap() error {
	return ErrMalformedRequire
}

// New creates a Rewriter.
func New(opts Options) *Rewriter {
	r := &Rewriter{
		anchor:        opts.Anchor,
		distSubdir:    opts.DistSubdir,
		sourceSegment: opts.SourceSegment,
		policy:        opts.Policy,
		onMalformed:   opts.OnMalformed,
	}
	if r.anchor == "" {
		r.anchor = DefaultAnchor
	}
	if r.distSubdir == "" {
		r.distSubdir = DefaultDistSubdir
	}
	if r.sourceSegment == "" {
		r.sourceSegment = DefaultSourceSegment
	}
	if r.policy == "" {
		r.policy = PolicyLenient
	}
	return r
}

// Rewrite returns emittedText with require targets redirected for every
// entry of set found on the line. set is expanded with its index variants on
// first use. outputFilePath is the destination of the emitted file and
// determines the distribution root.
func (r *Rewriter) Rewrite(outputFilePath, emittedText string, set *ReplacementSet) (string, error) {
	set.Expand()
	entries := set.Entries()

	lines := lineBreak.Split(emittedText, -1)
	for i, line := range lines {
		if !strings.Contains(line, requireMarker) {
			continue
		}

		target, ok := requireTarget(line)
		if !ok {
			if r.policy == PolicyStrict {
				return "", &MalformedRequireError{Line: i + 1, Text: line}
			}
			if r.onMalformed != nil {
				r.onMalformed(i+1, line)
			}
			continue
		}

		for _, entry := range entries {
			if !strings.Contains(line, string(entry)) {
				continue
			}
			line = strings.Replace(line, target, r.distPath(outputFilePath, entry), 1)
		}
		lines[i] = line
	}

	return strings.Join(lines, "\n"), nil
}

// DistPath returns the absolute distribution path for entry as seen from
// outputFilePath.
func (r *Rewriter) DistPath(outputFilePath string, entry modpath.Path) string {
	return r.distPath(outputFilePath, entry)
}

func (r *Rewriter) distPath(outputFilePath string, entry modpath.Path) string {
	out := filepath.ToSlash(outputFilePath)
	prefix, _, _ := strings.Cut(out, r.anchor)
	return prefix + r.anchor + modpath.Separator + r.distSubdir + modpath.Separator + entry.After(r.sourceSegment)
}

// requireTarget extracts the literal of the first require call on line.
func requireTarget(line string) (string, bool) {
	m := requireCall.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return m[1], true
	}
	return m[2], true
}
