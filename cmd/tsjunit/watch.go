// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/tsjunit/tsjunit/internal/compiler"
	"github.com/tsjunit/tsjunit/internal/config"
	"github.com/tsjunit/tsjunit/internal/issue"
	"github.com/tsjunit/tsjunit/internal/reconcile"
	"github.com/tsjunit/tsjunit/internal/rewrite"
	"github.com/tsjunit/tsjunit/internal/session"
	"github.com/tsjunit/tsjunit/internal/testrun"
	"github.com/tsjunit/tsjunit/internal/watch"
)

type (
	// watchFlagValues override configuration keys for one invocation.
	watchFlagValues struct {
		settle    bool
		strict    bool
		outputDir string
		distDir   string
	}

	// watchPlan is the file layout of a session, resolved before it starts.
	watchPlan struct {
		// BaseDir is absolute.
		BaseDir string
		// TestFiles are relative to BaseDir, slash separated.
		TestFiles []string
		// Units are the files to compile.
		Units []string
		// Redirect are compiled-form paths served from the distribution tree.
		Redirect []string
		// OutputDir is absolute.
		OutputDir string
	}
)

func newWatchCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &watchFlagValues{}

	cmd := &cobra.Command{
		Use:   "watch <test-file>...",
		Short: "Compile, patch and test on every change",
		Long: `Compile the test files and the configured sources, then run the test
suite after every recompilation until interrupted.

Sources that already exist as compiled modules in the distribution directory
are not recompiled; require() calls naming them are rewritten to point into
the distribution tree.`,
		Example: `  tsjunit watch test/calculator.test.ts
  tsjunit watch --settle --output-dir build/test test/*.test.ts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, app, rootFlags, flags, args)
		},
	}

	cmd.Flags().BoolVar(&flags.settle, "settle", false, "run the first test pass as soon as the initial compilation is done")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "do not write outputs that contain malformed require lines")
	cmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "override output_dir")
	cmd.Flags().StringVar(&flags.distDir, "dist-dir", "", "override dist_dir")

	return cmd
}

func runWatch(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, flags *watchFlagValues, args []string) error {
	ctx := cmd.Context()
	verbose := rootFlags.verbose
	style := string(config.ColorSchemeAuto)

	if len(args) == 0 {
		err := issue.NewErrorContext().
			WithOperation("start watch session").
			WithSuggestion("Pass at least one test file").
			WithIssue(issue.NoTestFilesId).
			Wrap(errors.New("no test files given")).
			BuildError()
		return failCommand(cmd, app, err, verbose, style)
	}

	cfg, err := app.Config.Load(ctx, rootFlags.loadOptions())
	if err != nil {
		return failCommand(cmd, app, err, verbose, style)
	}
	style = string(cfg.UI.ColorScheme)
	if cfg.UI.Verbose && !verbose {
		verbose = true
		app.setupLogging(true)
	}
	flags.apply(cfg)

	plan, err := planWatch(cfg, args)
	if err != nil {
		return failCommand(cmd, app, err, verbose, style)
	}

	app.logger.Debug("reconciled sources", "compile", len(plan.Units), "redirect", len(plan.Redirect))

	sess, err := newWatchSession(app, cfg, plan, style)
	if err != nil {
		return failCommand(cmd, app, err, verbose, style)
	}

	fmt.Fprintf(app.stdout, "%s Watching %d file(s), %d served from %s (Ctrl+C to stop)\n",
		CmdStyle.Render("→"), len(plan.Units), len(plan.Redirect), cfg.DistDir)

	if err := sess.Run(ctx); err != nil {
		return failCommand(cmd, app, watchError(err), verbose, style)
	}
	return nil
}

func (f *watchFlagValues) apply(cfg *config.Config) {
	if f.settle {
		cfg.Watch.SettleFirstRun = true
	}
	if f.strict {
		cfg.RewritePolicy = config.RewritePolicyStrict
	}
	if f.outputDir != "" {
		cfg.OutputDir = config.DirPath(f.outputDir)
	}
	if f.distDir != "" {
		cfg.DistDir = config.DirPath(f.distDir)
	}
}

// planWatch resolves the base directory, expands the sources and removes
// those already present in the distribution tree.
func planWatch(cfg *config.Config, testArgs []string) (watchPlan, error) {
	baseDir, err := absDir("", string(cfg.BaseDir))
	if err != nil {
		return watchPlan{}, err
	}

	testFiles := make([]string, 0, len(testArgs))
	for _, arg := range testArgs {
		abs, absErr := filepath.Abs(arg)
		if absErr != nil {
			return watchPlan{}, fmt.Errorf("resolve test file %q: %w", arg, absErr)
		}
		rel, relErr := filepath.Rel(baseDir, abs)
		if relErr != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			rel = abs
		}
		testFiles = append(testFiles, filepath.ToSlash(rel))
	}

	candidates, err := reconcile.Candidates(baseDir, globs(cfg.Sources), testFiles)
	if err != nil {
		return watchPlan{}, issue.NewErrorContext().
			WithOperation("expand sources").
			WithResource(baseDir).
			WithIssue(issue.ConfigInvalidId).
			Wrap(err).
			BuildError()
	}

	distRoot, err := absDir(baseDir, string(cfg.DistDir))
	if err != nil {
		return watchPlan{}, err
	}
	exts := make([]string, 0, len(cfg.CompiledExts))
	for _, x := range cfg.CompiledExts {
		exts = append(exts, string(x))
	}
	result, err := reconcile.ReconcileDir(candidates, distRoot, exts, reconcile.Options{
		SourcePrefix: cfg.SourcePrefix,
		SourceExt:    string(cfg.SourceExt),
	})
	if err != nil {
		return watchPlan{}, issue.NewErrorContext().
			WithOperation("scan distribution directory").
			WithResource(distRoot).
			WithIssue(issue.DistDirInvalidId).
			Wrap(err).
			BuildError()
	}
	outputDir, err := absDir(baseDir, string(cfg.OutputDir))
	if err != nil {
		return watchPlan{}, err
	}

	return watchPlan{
		BaseDir:   baseDir,
		TestFiles: testFiles,
		Units:     result.ToCompile,
		Redirect:  result.Redirect,
		OutputDir: outputDir,
	}, nil
}

// newWatchSession builds the session with the command language service, the
// shell test runner and the fsnotify watcher.
func newWatchSession(app *App, cfg *config.Config, plan watchPlan, style string) (*session.Session, error) {
	runner, err := testrun.NewShellRunner(testrun.ShellOptions{
		Command:   string(cfg.Test.Command),
		Dir:       plan.BaseDir,
		OutputDir: plan.OutputDir,
		TestFiles: plan.TestFiles,
		Stdout:    app.stdout,
		Stderr:    app.stderr,
	})
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("parse test.command").
			WithResource(string(cfg.Test.Command)).
			WithIssue(issue.TestCommandFailedId).
			Wrap(err).
			BuildError()
	}

	outputExt := ".js"
	if len(cfg.CompiledExts) > 0 {
		outputExt = string(cfg.CompiledExts[0])
	}
	newService := func(host compiler.Host) (compiler.LanguageService, error) {
		svc, svcErr := compiler.NewCommandService(host, compiler.CommandOptions{
			Command:   string(cfg.Compiler.Command),
			Compiler:  compiler.Options{Module: compiler.ModuleCommonJS},
			OutputExt: outputExt,
		})
		if svcErr != nil {
			return nil, issue.NewErrorContext().
				WithOperation("parse compiler.command").
				WithResource(string(cfg.Compiler.Command)).
				WithIssue(issue.CompilerCommandFailedId).
				Wrap(svcErr).
				BuildError()
		}
		return svc, nil
	}

	return session.New(session.Options{
		BaseDir:   plan.BaseDir,
		OutputDir: plan.OutputDir,
		Units:     plan.Units,
		Redirect:  plan.Redirect,
		Rewrite: rewrite.Options{
			Anchor:        cfg.Anchor,
			DistSubdir:    cfg.DistSubdir,
			SourceSegment: cfg.SourcePrefix,
			Policy:        rewrite.Policy(cfg.RewritePolicy),
			OnMalformed:   malformedReporter(app.stderr, style),
		},
		NewService:          newService,
		Runner:              runner,
		Watch:               watchFiles(plan.BaseDir, globs(cfg.Watch.Ignore), app.stderr),
		TestFileCount:       len(plan.TestFiles),
		InitialDelayPerFile: cfg.Watch.InitialDelayPerFile,
		SettleFirstRun:      cfg.Watch.SettleFirstRun,
		Stdout:              app.stdout,
		Logger:              app.logger,
	})
}

// watchFiles adapts watch.Watcher to session.WatchFunc.
func watchFiles(baseDir string, ignore []string, stderr io.Writer) session.WatchFunc {
	return func(ctx context.Context, units []string, onChange func(context.Context, string) error) error {
		w, err := watch.New(watch.Config{
			BaseDir:  baseDir,
			Files:    units,
			Ignore:   ignore,
			OnChange: onChange,
			Stderr:   stderr,
		})
		if err != nil {
			return err
		}
		return w.Run(ctx)
	}
}

// malformedReporter warns about every malformed require line and shows the
// catalog entry the first time.
func malformedReporter(stderr io.Writer, style string) func(line int, text string) {
	var once sync.Once
	return func(line int, text string) {
		fmt.Fprintf(stderr, "%s line %d: require left unchanged: %s\n",
			WarningStyle.Render("!"), line, strings.TrimSpace(text))
		once.Do(func() {
			if rendered, err := issue.Get(issue.MalformedRequireId).Render(style); err == nil {
				fmt.Fprint(stderr, rendered)
			}
		})
	}
}

// watchError links watcher failures to the catalog.
func watchError(err error) error {
	ctx := issue.NewErrorContext().WithOperation("watch files").Wrap(err)
	if errors.Is(err, watch.ErrResourceExhausted) {
		ctx.WithIssue(issue.WatchLimitReachedId)
	}
	return ctx.BuildError()
}

// absDir resolves dir against base. An empty dir means base itself, or the
// working directory when base is empty too.
func absDir(base, dir string) (string, error) {
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		base = wd
	}
	if dir == "" {
		return filepath.Clean(base), nil
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir), nil
	}
	return filepath.Join(base, dir), nil
}

func globs(patterns []config.GlobPattern) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, string(p))
	}
	return out
}
