// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/tsjunit/tsjunit/internal/shell"
)

// DefaultCommand transpiles one TypeScript file from stdin to CommonJS on stdout.
const DefaultCommand = `npx --no-install esbuild --format=cjs --loader=ts --log-level=error --sourcefile="$TSJ_FILE"`

// Environment variables exported to the compile command.
const (
	EnvFile   = "TSJ_FILE"
	EnvModule = "TSJ_MODULE"
)

var sourceExts = []string{".tsx", ".ts", ".mts", ".cts"}

type (
	// CommandOptions configures a CommandService.
	CommandOptions struct {
		// Command is the shell template. It receives the source on stdin and
		// must write the emitted JavaScript to stdout.
		Command string
		// Compiler holds fixed compiler settings.
		Compiler Options
		// OutputExt is the extension of emitted files. Defaults to ".js".
		OutputExt string
	}

	// CommandService is a LanguageService that runs an external command once
	// per file version and caches the result.
	CommandService struct {
		host      Host
		command   string
		module    ModuleKind
		outputExt string

		mu     sync.Mutex
		cache  map[string]cachedEmit
		global []Diagnostic
	}

	cachedEmit struct {
		version string
		output  EmitOutput
		diags   []Diagnostic
	}
)

// NewCommandService validates the command syntax and creates the service.
func NewCommandService(host Host, opts CommandOptions) (*CommandService, error) {
	command := opts.Command
	if command == "" {
		command = DefaultCommand
	}
	if _, err := shell.Parse(command, "compiler"); err != nil {
		return nil, fmt.Errorf("compiler: invalid command: %w", err)
	}

	module := opts.Compiler.Module
	if module == "" {
		module = ModuleCommonJS
	}
	outputExt := opts.OutputExt
	if outputExt == "" {
		outputExt = ".js"
	}

	return &CommandService{
		host:      host,
		command:   command,
		module:    module,
		outputExt: outputExt,
		cache:     make(map[string]cachedEmit),
	}, nil
}

// Emit compiles fileName unless the cached result matches its current version.
func (s *CommandService) Emit(ctx context.Context, fileName string) (EmitOutput, error) {
	if !slices.Contains(s.host.ScriptFileNames(), fileName) {
		return EmitOutput{}, fmt.Errorf("compiler: %q: %w", fileName, ErrUnknownFile)
	}

	version := s.host.ScriptVersion(fileName)

	s.mu.Lock()
	if c, ok := s.cache[fileName]; ok && c.version == version {
		s.mu.Unlock()
		return c.output, nil
	}
	s.mu.Unlock()

	entry := cachedEmit{version: version}

	content, ok := s.host.ScriptSnapshot(fileName)
	if !ok {
		entry.output = EmitOutput{EmitSkipped: true}
		entry.diags = []Diagnostic{{
			File:     fileName,
			Line:     1,
			Column:   1,
			Category: CategoryError,
			Message:  "File not found.",
		}}
		s.store(fileName, entry)
		return entry.output, nil
	}

	var stdout, stderr bytes.Buffer
	res := shell.Run(ctx, shell.Script{
		Source: s.command,
		Name:   "compiler",
		Dir:    s.host.CurrentDirectory(),
		Env: map[string]string{
			EnvFile:   fileName,
			EnvModule: string(s.module),
		},
		Stdin:  bytes.NewReader(content),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if res.Error != nil {
		return EmitOutput{}, fmt.Errorf("compiler: run command for %q: %w", fileName, res.Error)
	}

	diags := ParseDiagnostics(&stderr, res.ExitCode != 0)
	var global []Diagnostic
	for _, d := range diags {
		if d.File == "" {
			global = append(global, d)
		} else {
			entry.diags = append(entry.diags, d)
		}
	}

	if res.ExitCode != 0 {
		slog.Debug("compile command failed", "file", fileName, "exitCode", res.ExitCode)
		entry.output = EmitOutput{EmitSkipped: true}
	} else {
		entry.output = EmitOutput{OutputFiles: []OutputFile{{
			Name: s.outputName(fileName),
			Text: stdout.String(),
		}}}
	}

	s.mu.Lock()
	s.global = global
	s.mu.Unlock()
	s.store(fileName, entry)
	return entry.output, nil
}

// CompilerOptionsDiagnostics returns diagnostics not tied to a file from the
// most recent run.
func (s *CommandService) CompilerOptionsDiagnostics() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.global)
}

// SyntacticDiagnostics returns parse diagnostics from the last emit of fileName.
func (s *CommandService) SyntacticDiagnostics(fileName string) []Diagnostic {
	return s.fileDiagnostics(fileName, true)
}

// SemanticDiagnostics returns the remaining diagnostics from the last emit of fileName.
func (s *CommandService) SemanticDiagnostics(fileName string) []Diagnostic {
	return s.fileDiagnostics(fileName, false)
}

func (s *CommandService) fileDiagnostics(fileName string, syntactic bool) []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Diagnostic
	for _, d := range s.cache[fileName].diags {
		if d.IsSyntactic() == syntactic {
			out = append(out, d)
		}
	}
	return out
}

func (s *CommandService) store(fileName string, entry cachedEmit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[fileName] = entry
}

// outputName maps src/a.ts to <cwd>/src/a.js.
func (s *CommandService) outputName(fileName string) string {
	name := fileName
	for _, ext := range sourceExts {
		if strings.HasSuffix(name, ext) {
			name = strings.TrimSuffix(name, ext)
			break
		}
	}
	name += s.outputExt
	if !filepath.IsAbs(name) {
		name = filepath.Join(s.host.CurrentDirectory(), name)
	}
	return name
}
