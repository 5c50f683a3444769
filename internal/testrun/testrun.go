// SPDX-License-Identifier: MPL-2.0

// Package testrun is the point where a watch session hands over to the test
// suite: "run the tests now".
package testrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/tsjunit/tsjunit/internal/shell"
)

const (
	// DefaultCommand runs the suite against the patched output tree.
	DefaultCommand = "npx --no-install ts-junit"

	// EnvOutputDir carries the output tree to the test command.
	EnvOutputDir = "TSJ_OUTPUT_DIR"
	// EnvTestFiles carries the space-separated test files to the test command.
	EnvTestFiles = "TSJ_TEST_FILES"
)

// ErrTestsFailed is returned when the test command exits non-zero.
var ErrTestsFailed = errors.New("test command failed")

type (
	// Runner runs the test suite once per call. Calls may repeat.
	Runner interface {
		Run(ctx context.Context) error
	}

	// RunnerFunc adapts a function to Runner.
	RunnerFunc func(ctx context.Context) error

	// ShellOptions configures a ShellRunner.
	ShellOptions struct {
		Command   string
		Dir       string
		OutputDir string
		TestFiles []string
		Stdout    io.Writer
		Stderr    io.Writer
	}

	// ShellRunner runs the test command through the embedded shell.
	ShellRunner struct {
		opts ShellOptions
		runs atomic.Int64
	}

	// ExitError reports the exit code of a failed test run.
	ExitError struct {
		Code int
	}
)

// Run calls f(ctx).
func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s (exit code %d)", ErrTestsFailed, e.Code)
}

func (e *ExitError) Unwrap() error { return ErrTestsFailed }

// NewShellRunner validates the command syntax and creates the runner.
func NewShellRunner(opts ShellOptions) (*ShellRunner, error) {
	if opts.Command == "" {
		opts.Command = DefaultCommand
	}
	if _, err := shell.Parse(opts.Command, "test"); err != nil {
		return nil, fmt.Errorf("testrun: invalid command: %w", err)
	}
	return &ShellRunner{opts: opts}, nil
}

// Run executes the test command. A non-zero exit is returned as *ExitError.
func (r *ShellRunner) Run(ctx context.Context) error {
	n := r.runs.Add(1)
	slog.Debug("running tests", "run", n, "command", r.opts.Command)

	res := shell.Run(ctx, shell.Script{
		Source: r.opts.Command,
		Name:   "test",
		Dir:    r.opts.Dir,
		Env: map[string]string{
			EnvOutputDir: r.opts.OutputDir,
			EnvTestFiles: strings.Join(r.opts.TestFiles, " "),
		},
		Stdout: r.opts.Stdout,
		Stderr: r.opts.Stderr,
	})
	if res.Error != nil {
		return fmt.Errorf("testrun: %w", res.Error)
	}
	if res.ExitCode != 0 {
		return &ExitError{Code: res.ExitCode}
	}
	return nil
}

// Runs returns how many times Run was called.
func (r *ShellRunner) Runs() int64 {
	return r.runs.Load()
}

