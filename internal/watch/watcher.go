// SPDX-License-Identifier: MPL-2.0

// Package watch monitors a fixed set of files and invokes a callback, one file
// at a time, when a file's modification time moves forward.
//
// Parent directories are watched rather than the files themselves so that
// editors that save by renaming a temp file over the original keep being
// observed.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// defaultIgnores are never watched, whatever the configured file set says.
var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

var (
	// ErrAlreadyStarted is returned by a second call to Run.
	ErrAlreadyStarted = errors.New("watch: Run called more than once")
	// ErrResourceExhausted wraps fsnotify errors caused by the OS running out
	// of watches or file descriptors.
	ErrResourceExhausted = errors.New("watch: out of watch resources")
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// BaseDir resolves relative entries in Files. Empty means the working
		// directory.
		BaseDir string

		// Files is the fixed set of watched files. Files created after New are
		// not picked up.
		Files []string

		// Ignore are doublestar patterns, relative to BaseDir, for files that
		// are dropped from Files. They extend the built-in defaults.
		Ignore []string

		// OnChange receives a file exactly as it was listed in Files. Calls are
		// serial and happen on the Run goroutine. A nil callback is a no-op.
		OnChange func(ctx context.Context, file string) error

		// Stderr receives non-fatal watcher errors. Defaults to os.Stderr.
		Stderr io.Writer
	}

	// Watcher fires OnChange when a watched file's mtime is strictly greater
	// than the last one it recorded.
	Watcher struct {
		cfg     Config
		fsw     *fsnotify.Watcher
		baseDir string
		stderr  io.Writer
		started atomic.Bool

		// names maps absolute path to the name given in Config.Files.
		names map[string]string
		// mtimes is only touched by New and the Run goroutine.
		mtimes map[string]time.Time
	}
)

// New resolves the file set, records the current modification times and
// registers the parent directories with fsnotify.
func New(cfg Config) (*Watcher, error) {
	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("watch: determine working directory: %w", err)
		}
		baseDir = wd
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve base directory: %w", err)
	}

	if err := validatePatterns(cfg.Ignore); err != nil {
		return nil, err
	}
	ignores := slices.Concat(defaultIgnores, cfg.Ignore)

	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	w := &Watcher{
		cfg:     cfg,
		baseDir: absBase,
		stderr:  stderr,
		names:   make(map[string]string, len(cfg.Files)),
		mtimes:  make(map[string]time.Time, len(cfg.Files)),
	}

	var dirs []string
	for _, name := range cfg.Files {
		abs := name
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(absBase, name)
		}
		abs = filepath.Clean(abs)

		if isIgnored(ignores, w.rel(abs)) {
			continue
		}
		if _, dup := w.names[abs]; dup {
			continue
		}
		w.names[abs] = name
		w.mtimes[abs] = modTime(abs)

		if dir := filepath.Dir(abs); !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	slices.Sort(dirs)
	for _, dir := range dirs {
		if addErr := fsw.Add(dir); addErr != nil {
			fsw.Close() //nolint:errcheck // best-effort cleanup
			if isFatalFsnotifyError(addErr) {
				return nil, fmt.Errorf("watch: add directory %q: %w: %w", dir, ErrResourceExhausted, addErr)
			}
			return nil, fmt.Errorf("watch: add directory %q: %w", dir, addErr)
		}
	}
	w.fsw = fsw

	return w, nil
}

// Files returns the watched files, as listed in Config.Files, sorted.
func (w *Watcher) Files() []string {
	out := make([]string, 0, len(w.names))
	for _, name := range w.names {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Run blocks until ctx is cancelled. It returns nil on cancellation and an
// error when fsnotify fails in a way the watcher cannot recover from.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer func() {
		if closeErr := w.fsw.Close(); closeErr != nil {
			fmt.Fprintf(w.stderr, "watch: close fsnotify: %v\n", closeErr)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: fsnotify event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Remove) && !evt.Has(fsnotify.Create) {
				continue
			}
			w.check(ctx, filepath.Clean(evt.Name))

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("%w: %w", ErrResourceExhausted, err)
			}
			fmt.Fprintf(w.stderr, "watch: fsnotify error: %v\n", err)
		}
	}
}

// check applies the mtime gate to abs and dispatches the callback.
func (w *Watcher) check(ctx context.Context, abs string) {
	name, tracked := w.names[abs]
	if !tracked {
		return
	}

	current := modTime(abs)
	if !current.After(w.mtimes[abs]) {
		return
	}
	w.mtimes[abs] = current

	if w.cfg.OnChange == nil || ctx.Err() != nil {
		return
	}
	if err := w.cfg.OnChange(ctx, name); err != nil {
		fmt.Fprintf(w.stderr, "watch: callback error for %s: %v\n", name, err)
	}
}

func (w *Watcher) rel(abs string) string {
	rel, err := filepath.Rel(w.baseDir, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// modTime returns the zero time for files that cannot be stat'ed.
func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func isIgnored(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if matched, matchErr := doublestar.Match(pat, rel); matchErr == nil && matched {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

func validatePatterns(patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid ignore pattern %q: %w", pat, doublestar.ErrBadPattern)
		}
	}
	return nil
}
