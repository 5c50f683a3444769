// SPDX-License-Identifier: MPL-2.0

// Package reconcile partitions the files intended for compilation into those
// that must be compiled fresh and those already present in a distribution tree,
// whose module-load references are redirected to the built artifact instead.
package reconcile

import (
	"fmt"
	"slices"

	"github.com/tsjunit/tsjunit/internal/dist"
	"github.com/tsjunit/tsjunit/internal/modpath"
)

const (
	// DefaultSourcePrefix is the logical root segment of source files.
	DefaultSourcePrefix = "src"
	// DefaultSourceExt is the extension of source files.
	DefaultSourceExt = ".ts"
)

type (
	// Options controls how an artifact maps back to its source file.
	Options struct {
		// SourcePrefix is prepended to artifact segments ("src" -> "src/foo/bar").
		// An empty prefix maps artifacts directly onto candidate paths.
		SourcePrefix string
		// SourceExt is appended to form the source file name.
		SourceExt string
	}

	// Result is a stable partition of the candidate list.
	Result struct {
		// ToCompile holds candidates with no matching artifact, in input order.
		ToCompile []string
		// Redirect holds compiled-form logical paths (no source extension) of
		// candidates that matched an artifact, in artifact order.
		Redirect []string
	}
)

// DefaultOptions returns the src/.ts convention.
func DefaultOptions() Options {
	return Options{SourcePrefix: DefaultSourcePrefix, SourceExt: DefaultSourceExt}
}

// Reconcile removes every candidate whose source form matches an artifact and
// records the matching compiled form in Redirect. Only the first occurrence of
// a candidate is removed; the input slice is not modified.
func Reconcile(candidates []string, artifacts []dist.Artifact, opts Options) Result {
	toCompile := make([]string, 0, len(candidates))
	for _, c := range candidates {
		toCompile = append(toCompile, string(modpath.FromFile(c)))
	}

	var redirect []string
	for _, a := range artifacts {
		compiled := modpath.Join(append([]string{opts.SourcePrefix}, a.Segments...)...)
		source := string(compiled.WithExt(opts.SourceExt))

		idx := slices.Index(toCompile, source)
		if idx < 0 {
			continue
		}
		toCompile = slices.Delete(toCompile, idx, idx+1)
		redirect = append(redirect, string(compiled))
	}

	return Result{ToCompile: toCompile, Redirect: redirect}
}

// ReconcileDir scans distRoot for compiled artifacts and reconciles against them.
func ReconcileDir(candidates []string, distRoot string, compiledExts []string, opts Options) (Result, error) {
	artifacts, err := dist.Scan(distRoot, compiledExts)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: %w", err)
	}
	return Reconcile(candidates, artifacts, opts), nil
}
