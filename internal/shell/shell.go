// SPDX-License-Identifier: MPL-2.0

// Package shell runs user-configured command templates in the embedded
// mvdan/sh interpreter, so the same POSIX syntax works on every host.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ErrEmptyScript is returned when a script has no content.
var ErrEmptyScript = errors.New("script has no content to execute")

type (
	// Script describes one command invocation.
	Script struct {
		// Source is the shell text, e.g. `npx esbuild --format=cjs`.
		Source string
		// Name labels the script in parse errors.
		Name string
		// Dir is the working directory. Empty means the current directory.
		Dir string
		// Env is added on top of the inherited process environment.
		Env map[string]string

		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// Result holds the outcome of a script run.
	Result struct {
		// ExitCode is the script's exit status.
		ExitCode int
		// Error is set when the script could not run at all.
		Error error
	}
)

// Success reports whether the script ran and exited 0.
func (r Result) Success() bool {
	return r.ExitCode == 0 && r.Error == nil
}

// Parse checks the script syntax without running it.
func Parse(source, name string) (*syntax.File, error) {
	if strings.TrimSpace(source) == "" {
		return nil, ErrEmptyScript
	}
	if name == "" {
		name = "script"
	}
	prog, err := syntax.NewParser().Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, fmt.Errorf("script syntax error: %w", err)
	}
	return prog, nil
}

// Run executes s. A non-zero exit is reported through Result.ExitCode, not
// Result.Error.
func Run(ctx context.Context, s Script) Result {
	prog, err := Parse(s.Source, s.Name)
	if err != nil {
		return Result{ExitCode: 1, Error: err}
	}

	dir := s.Dir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return Result{ExitCode: 1, Error: fmt.Errorf("failed to determine working directory: %w", err)}
		}
	}

	stdout, stderr := s.Stdout, s.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(environ(s.Env)...)),
		interp.StdIO(s.Stdin, stdout, stderr),
	)
	if err != nil {
		return Result{ExitCode: 1, Error: fmt.Errorf("failed to create interpreter: %w", err)}
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return Result{ExitCode: int(exitStatus)}
		}
		return Result{ExitCode: 1, Error: fmt.Errorf("script execution failed: %w", err)}
	}
	return Result{}
}

// environ merges extra over the process environment, in a stable order.
func environ(extra map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
