// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/tsjunit/tsjunit/internal/config"
	"github.com/tsjunit/tsjunit/internal/issue"
)

// stubConfig returns a copy of cfg from every Load.
type stubConfig struct {
	cfg     *config.Config
	err     error
	sources []string

	mu   sync.Mutex
	opts []config.LoadOptions
}

func (s *stubConfig) Load(_ context.Context, opts config.LoadOptions) (*config.Config, error) {
	s.mu.Lock()
	s.opts = append(s.opts, opts)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	cp := *s.cfg
	return &cp, nil
}

func (s *stubConfig) Sources(config.LoadOptions) []string { return s.sources }

// syncBuffer is a bytes.Buffer safe for the concurrent writers of a session.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runCLI(t *testing.T, ctx context.Context, provider ConfigProvider, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut syncBuffer
	root := NewRootCommand(NewApp(Dependencies{Config: provider, Stdout: &out, Stderr: &errOut}))
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err = root.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version, Commit, BuildDate = "v0.3.0", "abc1234", "2026-01-02T03:04:05Z"
		want := "v0.3.0 (commit: abc1234, built: 2026-01-02T03:04:05Z)"
		if got := getVersionString(); got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got := getVersionString(); got != "dev (built from source)" {
			t.Errorf("getVersionString() = %q", got)
		}
	})
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	plain := errors.New("plain failure")
	if got := formatErrorForDisplay(plain, true); got != "plain failure" {
		t.Errorf("formatErrorForDisplay(plain) = %q", got)
	}

	ae := issue.NewErrorContext().
		WithOperation("load configuration").
		WithSuggestion("Check the file").
		Wrap(plain).
		BuildError()
	got := formatErrorForDisplay(ae, false)
	if !strings.Contains(got, "failed to load configuration: plain failure") || !strings.Contains(got, "• Check the file") {
		t.Errorf("formatErrorForDisplay(actionable) = %q", got)
	}
	if strings.Contains(got, "Error chain:") {
		t.Error("non-verbose output should omit the error chain")
	}
	if !strings.Contains(formatErrorForDisplay(ae, true), "Error chain:") {
		t.Error("verbose output should include the error chain")
	}
}

func TestRenderErrorShowsIssue(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := issue.NewErrorContext().WithOperation("watch files").WithIssue(issue.WatchLimitReachedId).BuildError()
	renderError(&buf, err, false, "notty")
	out := buf.String()
	if !strings.Contains(out, "failed to watch files") {
		t.Errorf("missing error line:\n%s", out)
	}
	if !strings.Contains(out, "max_user_watches") {
		t.Errorf("missing catalog entry:\n%s", out)
	}
}

func TestConfigDump(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.OutputDir = "build/test"
	provider := &stubConfig{cfg: cfg}

	stdout, _, err := runCLI(t, context.Background(), provider, "--config", "custom.cue", "config", "dump")
	if err != nil {
		t.Fatalf("config dump: %v", err)
	}
	if !strings.Contains(stdout, `output_dir: "build/test"`) {
		t.Errorf("dump output missing output_dir:\n%s", stdout)
	}
	if len(provider.opts) != 1 || provider.opts[0].ConfigFilePath != "custom.cue" {
		t.Errorf("Load options = %+v, want --config forwarded", provider.opts)
	}
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	provider := &stubConfig{cfg: config.DefaultConfig(), sources: []string{"/p/tsjunit.cue"}}
	stdout, _, err := runCLI(t, context.Background(), provider, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"Current Configuration", "/p/tsjunit.cue", "dist_dir", "src/**/*.ts", "lenient", "initial_delay_per_file", "100ms"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("show output missing %q:\n%s", want, stdout)
		}
	}
}

func TestConfigShowLoadError(t *testing.T) {
	t.Parallel()

	loadErr := issue.NewErrorContext().
		WithOperation("load configuration").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(errors.New("boom")).
		BuildError()
	_, stderr, err := runCLI(t, context.Background(), &stubConfig{err: loadErr}, "config", "show")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("err = %v, want ExitError code 1", err)
	}
	if !strings.Contains(stderr, "failed to load configuration: boom") {
		t.Errorf("stderr missing error:\n%s", stderr)
	}
}

func TestConfigPath(t *testing.T) {
	t.Parallel()

	stdout, _, err := runCLI(t, context.Background(), &stubConfig{cfg: config.DefaultConfig()}, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if !strings.Contains(stdout, "using defaults") {
		t.Errorf("path output without sources:\n%s", stdout)
	}

	stdout, _, err = runCLI(t, context.Background(), &stubConfig{cfg: config.DefaultConfig(), sources: []string{"a.cue", "b.cue"}}, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if !strings.Contains(stdout, "  - a.cue\n  - b.cue") {
		t.Errorf("path output with sources:\n%s", stdout)
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	inner := errors.New("inner")
	if got := (&ExitError{Code: 3, Err: inner}).Error(); got != "inner" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&ExitError{Code: 3}).Error(); got != "exit status 3" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(&ExitError{Code: 1, Err: inner}, inner) {
		t.Error("ExitError should unwrap to its cause")
	}
}

func TestSetupLoggingKeepsProcessDefault(t *testing.T) {
	t.Parallel()

	before := slog.Default()
	var stderr syncBuffer
	app := NewApp(Dependencies{Config: &stubConfig{cfg: config.DefaultConfig()}, Stdout: &syncBuffer{}, Stderr: &stderr})

	app.setupLogging(true)
	app.logger.Debug("reconciled sources", "compile", 2)

	if slog.Default() != before {
		t.Error("setupLogging replaced the process-wide slog default")
	}
	if !strings.Contains(stderr.String(), "reconciled sources") {
		t.Errorf("debug line missing from App stderr:\n%s", stderr.String())
	}
}
