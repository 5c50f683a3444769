// SPDX-License-Identifier: MPL-2.0

// Package compiler defines the narrow contract between a watch session and an
// incremental compiler ("language service"), and provides a language service
// backed by an external transpile command.
//
// The session acts as the Host: it owns the list of files, their version
// numbers and their snapshots. The language service turns a file into emitted
// outputs and reports diagnostics when it cannot emit.
package compiler

import (
	"context"
	"errors"
)

const (
	// ModuleCommonJS is the only module format emitted.
	ModuleCommonJS ModuleKind = "commonjs"

	// CategoryError marks diagnostics that prevent emission.
	CategoryError Category = "error"
	// CategoryWarning marks informational diagnostics.
	CategoryWarning Category = "warning"
)

// ErrUnknownFile is returned by Emit for a file the Host does not list.
var ErrUnknownFile = errors.New("file is not part of the compilation")

type (
	// ModuleKind names the module format of emitted code.
	ModuleKind string

	// Category classifies a Diagnostic.
	Category string

	// Options are fixed compiler settings for a session.
	Options struct {
		Module ModuleKind
	}

	// Diagnostic is one compiler message. Line and Column are 1-based; zero
	// means the message is not attached to a position.
	Diagnostic struct {
		File     string
		Line     int
		Column   int
		Code     string
		Category Category
		Message  string
	}

	// OutputFile is one emitted file. Name is an absolute path.
	OutputFile struct {
		Name string
		Text string
	}

	// EmitOutput is the result of emitting one source file.
	EmitOutput struct {
		OutputFiles []OutputFile
		// EmitSkipped is true when diagnostics prevented emission.
		EmitSkipped bool
	}

	// Host supplies the language service with file names, versions and content.
	Host interface {
		// ScriptFileNames lists every file in the compilation.
		ScriptFileNames() []string
		// ScriptVersion returns an opaque version that changes when content changes.
		ScriptVersion(fileName string) string
		// ScriptSnapshot returns the current content; ok is false when the file
		// no longer exists.
		ScriptSnapshot(fileName string) (content []byte, ok bool)
		// CurrentDirectory is the root that relative file names resolve against.
		CurrentDirectory() string
	}

	// LanguageService emits files and reports diagnostics.
	LanguageService interface {
		Emit(ctx context.Context, fileName string) (EmitOutput, error)
		CompilerOptionsDiagnostics() []Diagnostic
		SyntacticDiagnostics(fileName string) []Diagnostic
		SemanticDiagnostics(fileName string) []Diagnostic
	}
)

// AllDiagnostics returns the global, syntactic and semantic diagnostics for
// fileName, in that order.
func AllDiagnostics(ls LanguageService, fileName string) []Diagnostic {
	var all []Diagnostic
	all = append(all, ls.CompilerOptionsDiagnostics()...)
	all = append(all, ls.SyntacticDiagnostics(fileName)...)
	all = append(all, ls.SemanticDiagnostics(fileName)...)
	return all
}
