// SPDX-License-Identifier: MPL-2.0

// Package session runs one watch session: it emits every compile unit once,
// recompiles units as they change, patches require targets in the emitted
// output, writes it under the output tree and re-runs the test suite after
// each recompilation.
//
// The session is the compiler.Host for its language service. All mutable
// state lives on the Session value.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tsjunit/tsjunit/internal/clock"
	"github.com/tsjunit/tsjunit/internal/compiler"
	"github.com/tsjunit/tsjunit/internal/events"
	"github.com/tsjunit/tsjunit/internal/rewrite"
	"github.com/tsjunit/tsjunit/internal/testrun"
)

// DefaultInitialDelayPerFile is the first-run delay per test file.
const DefaultInitialDelayPerFile = 100 * time.Millisecond

var (
	// ErrNoLanguageService is returned by New without a NewService factory.
	ErrNoLanguageService = errors.New("session: no language service configured")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("session: already started")
)

type (
	// ServiceFactory builds the language service for a host.
	ServiceFactory func(host compiler.Host) (compiler.LanguageService, error)

	// WatchFunc delivers change callbacks for units until ctx is cancelled.
	// Callbacks must be serial.
	WatchFunc func(ctx context.Context, units []string, onChange func(ctx context.Context, unit string) error) error

	// Options configures a Session.
	Options struct {
		// BaseDir is the current directory of the compilation. Emitted output
		// names are made relative to it. Empty means the working directory.
		BaseDir string
		// OutputDir is the root of the patched output tree, relative to
		// BaseDir unless absolute.
		OutputDir string

		// Units are the files to compile, in emission order.
		Units []string
		// Redirect are compiled-form logical paths that resolve into the
		// distribution tree.
		Redirect []string
		// Rewrite configures the require rewriter.
		Rewrite rewrite.Options

		// NewService builds the language service. Required.
		NewService ServiceFactory
		// Runner runs the test suite. nil disables test runs.
		Runner testrun.Runner
		// Watch registers change callbacks. nil means no watching.
		Watch WatchFunc

		// TestFileCount scales the first-run delay.
		TestFileCount int
		// InitialDelayPerFile defaults to DefaultInitialDelayPerFile.
		InitialDelayPerFile time.Duration
		// SettleFirstRun starts the first test run as soon as the initial
		// emission is complete instead of after the delay.
		SettleFirstRun bool

		Bus    *events.Bus
		Clock  clock.Clock
		Stdout io.Writer
		Logger *slog.Logger
	}

	// Session is one watch session.
	Session struct {
		baseDir       string
		outputDir     string
		units         []string
		set           *rewrite.ReplacementSet
		rewriter      *rewrite.Rewriter
		ls            compiler.LanguageService
		runner        testrun.Runner
		watch         WatchFunc
		bus           *events.Bus
		ownBus        bool
		clock         clock.Clock
		firstRunDelay time.Duration
		settle        bool
		stdout        io.Writer
		log           *slog.Logger

		mu       sync.Mutex
		versions map[string]int
		started  bool

		wg         sync.WaitGroup
		subscribed chan struct{}
		testRuns   int
	}
)

// New creates a session and its language service.
func New(opts Options) (*Session, error) {
	if opts.NewService == nil {
		return nil, ErrNoLanguageService
	}
	if err := opts.Rewrite.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	baseDir := opts.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("session: determine working directory: %w", err)
		}
		baseDir = wd
	}
	baseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("session: resolve base directory: %w", err)
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "output"
	}
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(baseDir, outputDir)
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	perFile := opts.InitialDelayPerFile
	if perFile <= 0 {
		perFile = DefaultInitialDelayPerFile
	}

	s := &Session{
		baseDir:       baseDir,
		outputDir:     outputDir,
		units:         slices.Clone(opts.Units),
		set:           rewrite.NewReplacementSet(opts.Redirect...),
		runner:        opts.Runner,
		watch:         opts.Watch,
		bus:           opts.Bus,
		clock:         clk,
		firstRunDelay: perFile * time.Duration(opts.TestFileCount),
		settle:        opts.SettleFirstRun,
		stdout:        stdout,
		log:           log,
		versions:      make(map[string]int, len(opts.Units)),
		subscribed:    make(chan struct{}),
	}
	if s.bus == nil {
		s.bus = events.NewBus(events.Options{})
		s.ownBus = true
	}
	for _, u := range s.units {
		s.versions[u] = 0
	}

	rwOpts := opts.Rewrite
	if rwOpts.OnMalformed == nil {
		rwOpts.OnMalformed = func(line int, text string) {
			log.Warn("require line left unchanged", "line", line, "text", strings.TrimSpace(text))
		}
	}
	s.rewriter = rewrite.New(rwOpts)

	ls, err := opts.NewService(s)
	if err != nil {
		return nil, fmt.Errorf("session: create language service: %w", err)
	}
	s.ls = ls

	return s, nil
}

// ScriptFileNames implements compiler.Host.
func (s *Session) ScriptFileNames() []string {
	return slices.Clone(s.units)
}

// ScriptVersion implements compiler.Host. Unknown files have an empty version.
func (s *Session) ScriptVersion(fileName string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[fileName]
	if !ok {
		return ""
	}
	return strconv.Itoa(v)
}

// ScriptSnapshot implements compiler.Host. A missing or unreadable file has no
// snapshot.
func (s *Session) ScriptSnapshot(fileName string) ([]byte, bool) {
	content, err := os.ReadFile(s.resolve(fileName))
	if err != nil {
		return nil, false
	}
	return content, true
}

// CurrentDirectory implements compiler.Host.
func (s *Session) CurrentDirectory() string {
	return s.baseDir
}

// Version returns the change counter of unit.
func (s *Session) Version(unit string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[unit]
}

// Replacements returns the set used by the rewriter.
func (s *Session) Replacements() *rewrite.ReplacementSet {
	return s.set
}

// Bus returns the session's event bus.
func (s *Session) Bus() *events.Bus {
	return s.bus
}

// Subscribed is closed once the first test run has finished and the session
// reacts to recompilations.
func (s *Session) Subscribed() <-chan struct{} {
	return s.subscribed
}

// TestRuns returns how many test runs were started.
func (s *Session) TestRuns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.testRuns
}

// Start emits every unit once and schedules the first test run. It returns
// once the initial emission is done; scheduling continues in the background
// until ctx is cancelled.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	for _, unit := range s.units {
		if err := s.emitFile(ctx, unit); err != nil {
			s.log.Error("initial emit failed", "file", unit, "error", err)
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.scheduleTests(ctx)
	}()
	return nil
}

// Run starts the session, watches the units and blocks until ctx is
// cancelled.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Wait()

	if s.watch == nil {
		<-ctx.Done()
		return nil
	}
	if err := s.watch(ctx, s.ScriptFileNames(), s.OnFileChanged); err != nil {
		return fmt.Errorf("session: watch: %w", err)
	}
	return nil
}

// Wait blocks until the background scheduler has exited, then closes a bus
// the session created itself.
func (s *Session) Wait() {
	s.wg.Wait()
	if s.ownBus {
		s.bus.Close()
	}
}

// OnFileChanged bumps the version of unit and recompiles it.
func (s *Session) OnFileChanged(ctx context.Context, unit string) error {
	s.mu.Lock()
	if _, ok := s.versions[unit]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("session: %q: %w", unit, compiler.ErrUnknownFile)
	}
	s.versions[unit]++
	s.mu.Unlock()

	return s.emitFile(ctx, unit)
}

// emitFile compiles one unit and writes its patched outputs. Skipped emission
// is reported on stdout and is not an error.
func (s *Session) emitFile(ctx context.Context, unit string) error {
	out, err := s.ls.Emit(ctx, unit)
	if err != nil {
		return fmt.Errorf("emit %s: %w", unit, err)
	}

	if out.EmitSkipped {
		fmt.Fprintf(s.stdout, "Emitting %s failed\n", unit)
		compiler.PrintDiagnostics(s.stdout, compiler.AllDiagnostics(s.ls, unit))
	} else {
		s.log.Debug("Emitting " + unit)
	}

	var (
		written []string
		errs    []error
	)
	for _, o := range out.OutputFiles {
		dest := s.destination(o.Name)
		s.log.Debug("destination = " + dest)

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			errs = append(errs, fmt.Errorf("create output directory: %w", err))
			continue
		}

		code, err := s.rewriter.Rewrite(dest, o.Text, s.set)
		if err != nil {
			errs = append(errs, fmt.Errorf("rewrite %s: %w", dest, err))
			continue
		}

		if err := os.WriteFile(dest, []byte(code), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("write output: %w", err))
			continue
		}
		written = append(written, dest)
	}

	if len(written) > 0 {
		s.bus.Publish(events.Event{
			Name:    events.Recompiled,
			Unit:    unit,
			Outputs: written,
			At:      s.clock.Now(),
		})
	}
	return errors.Join(errs...)
}

// scheduleTests performs the first test run after the configured delay, then
// subscribes and runs the suite once per recompiled event.
func (s *Session) scheduleTests(ctx context.Context) {
	if !s.settle {
		select {
		case <-s.clock.After(s.firstRunDelay):
		case <-ctx.Done():
			return
		}
	}

	s.runTests(ctx)

	ch, cancel := s.bus.Subscribe(events.Recompiled)
	defer cancel()
	close(s.subscribed)

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			s.log.Debug("recompiled", "unit", evt.Unit, "outputs", len(evt.Outputs))
			s.runTests(ctx)
		}
	}
}

func (s *Session) runTests(ctx context.Context) {
	s.mu.Lock()
	s.testRuns++
	s.mu.Unlock()

	if s.runner == nil {
		return
	}
	if err := s.runner.Run(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn("test run failed", "error", err)
	}
}

// destination maps an emitted file name to its place in the output tree.
func (s *Session) destination(name string) string {
	rel, err := filepath.Rel(s.baseDir, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = strings.TrimPrefix(name, filepath.VolumeName(name))
	}
	return filepath.Join(s.outputDir, rel)
}

func (s *Session) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.baseDir, name)
}
