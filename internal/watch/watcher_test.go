// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func setMtime(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestNewResolvesFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "a.ts"), "a")
	writeFile(t, filepath.Join(dir, "src", "b.ts"), "b")
	writeFile(t, filepath.Join(dir, "node_modules", "x", "c.ts"), "c")

	w, err := New(Config{
		BaseDir: dir,
		Files:   []string{"src/b.ts", "src/a.ts", "src/a.ts", "node_modules/x/c.ts", "src/skip.ts"},
		Ignore:  []string{"src/skip.ts"},
		Stderr:  &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = w.fsw.Close() })

	want := []string{"src/a.ts", "src/b.ts"}
	if got := w.Files(); !slices.Equal(got, want) {
		t.Errorf("Files() = %v, want %v", got, want)
	}
}

func TestNewRejectsBadIgnore(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{BaseDir: t.TempDir(), Ignore: []string{"[unclosed"}}); err == nil {
		t.Error("New() accepted an invalid ignore pattern")
	}
}

func TestNewMissingDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := New(Config{BaseDir: dir, Files: []string{"nope/a.ts"}, Stderr: &bytes.Buffer{}}); err == nil {
		t.Error("New() succeeded although the parent directory does not exist")
	}
}

func TestCheckMtimeGate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	writeFile(t, path, "one")
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	setMtime(t, path, base)

	var calls []string
	w, err := New(Config{
		BaseDir: dir,
		Files:   []string{"a.ts"},
		Stderr:  &bytes.Buffer{},
		OnChange: func(_ context.Context, file string) error {
			calls = append(calls, file)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = w.fsw.Close() })

	ctx := context.Background()
	abs := filepath.Clean(path)

	tests := []struct {
		name  string
		mtime time.Time
		calls int
	}{
		{"equal mtime", base, 0},
		{"older mtime", base.Add(-time.Minute), 0},
		{"newer mtime", base.Add(time.Second), 1},
		{"same newer mtime again", base.Add(time.Second), 1},
		{"newer still", base.Add(2 * time.Second), 2},
	}

	// Steps depend on each other, so they run in order.
	for _, tt := range tests {
		setMtime(t, path, tt.mtime)
		w.check(ctx, abs)
		if len(calls) != tt.calls {
			t.Fatalf("%s: %d callbacks, want %d", tt.name, len(calls), tt.calls)
		}
	}
	if calls[0] != "a.ts" {
		t.Errorf("callback file = %q, want %q", calls[0], "a.ts")
	}

	w.check(ctx, filepath.Join(dir, "untracked.ts"))
	if len(calls) != 2 {
		t.Errorf("untracked file triggered a callback")
	}
}

func TestCheckCallbackErrorIsReported(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	writeFile(t, path, "one")
	setMtime(t, path, time.Unix(1_000, 0))

	var stderr bytes.Buffer
	w, err := New(Config{
		BaseDir:  dir,
		Files:    []string{path},
		Stderr:   &stderr,
		OnChange: func(context.Context, string) error { return errors.New("boom") },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = w.fsw.Close() })

	setMtime(t, path, time.Unix(2_000, 0))
	w.check(context.Background(), filepath.Clean(path))

	if !bytes.Contains(stderr.Bytes(), []byte("boom")) {
		t.Errorf("stderr = %q, want callback error", stderr.String())
	}
}

func TestWatcherRunDetectsWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "src", "a.ts")
	writeFile(t, path, "one")
	setMtime(t, path, time.Now().Add(-time.Hour))

	changed := make(chan string, 4)
	w, err := New(Config{
		BaseDir: dir,
		Files:   []string{"src/a.ts"},
		Stderr:  &bytes.Buffer{},
		OnChange: func(_ context.Context, file string) error {
			changed <- file
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	// Give the event loop time to start.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, path, "two")

	select {
	case file := <-changed:
		if file != "src/a.ts" {
			t.Errorf("OnChange(%q), want %q", file, "src/a.ts")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestWatcherRunTwice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{BaseDir: t.TempDir(), Stderr: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Run(ctx); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if err := w.Run(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Run() = %v, want ErrAlreadyStarted", err)
	}
}

func TestDefaultIgnoresIsCopy(t *testing.T) {
	t.Parallel()

	got := DefaultIgnores()
	got[0] = "mutated"
	if DefaultIgnores()[0] == "mutated" {
		t.Error("DefaultIgnores() exposes the internal slice")
	}
}
