// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"

	"github.com/tsjunit/tsjunit/internal/config"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives an App and reaches configuration and output through it.
	App struct {
		Config ConfigProvider
		stdout io.Writer
		stderr io.Writer
		logger *slog.Logger

		// installDefault makes setupLogging replace the process-wide slog
		// default as well. Only Execute sets it.
		installDefault bool
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
		Sources(opts config.LoadOptions) []string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	app := &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
	app.setupLogging(false)
	return app
}

// setupLogging replaces the App logger with a charm log handler on stderr.
func (a *App) setupLogging(verbose bool) {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(a.stderr, log.Options{
		Prefix:          config.AppName,
		Level:           level,
		ReportTimestamp: verbose,
	})
	a.logger = slog.New(logger)
	if a.installDefault {
		slog.SetDefault(a.logger)
	}
}
