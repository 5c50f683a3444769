// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/tsjunit/tsjunit/internal/config"
	"github.com/tsjunit/tsjunit/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlagValues holds the persistent flags shared by every subcommand.
type rootFlagValues struct {
	verbose    bool
	configPath string
}

func (f *rootFlagValues) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: f.configPath}
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "tsjunit",
		Short: "Run a TypeScript unit-test suite in watch mode",
		Long: TitleStyle.Render("tsjunit") + SubtitleStyle.Render(" - TypeScript unit tests in watch mode") + `

tsjunit compiles the given test files and the configured sources, rewrites
require() calls that point at modules already built into the distribution
directory, writes the result under the output directory and runs the test
suite. Every saved change is recompiled and the suite runs again.

` + SubtitleStyle.Render("Examples:") + `
  tsjunit watch test/calculator.test.ts   Watch one test file
  tsjunit config show                     Show the effective configuration
  tsjunit config dump > tsjunit.cue       Start a project configuration`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.setupLogging(flags.verbose)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging and full error chains")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is ./"+config.ProjectFileName+" over the user config)")

	rootCmd.AddCommand(newWatchCommand(app, flags))
	rootCmd.AddCommand(newConfigCommand(app, flags))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	app.installDefault = true
	rootCmd := NewRootCommand(app)
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// get their suggestions; verbose mode adds the error chain.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// renderError prints err followed by its linked catalog entry, if any. The
// returned error reports a catalog entry that could not be rendered.
func renderError(w io.Writer, err error, verbose bool, style string) error {
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))

	entry, ok := issue.IssueOf(err)
	if !ok {
		return nil
	}
	rendered, renderErr := entry.Render(style)
	if renderErr != nil {
		return fmt.Errorf("render issue %d: %w", entry.Id(), renderErr)
	}
	fmt.Fprint(w, rendered)
	return nil
}

// failCommand renders err once and returns an ExitError that cobra and
// fang will not print again.
func failCommand(cmd *cobra.Command, app *App, err error, verbose bool, style string) error {
	if renderErr := renderError(app.stderr, err, verbose, style); renderErr != nil {
		app.logger.Warn("failed to render issue catalog entry", "error", renderErr)
	}
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: 1, Err: err}
}
