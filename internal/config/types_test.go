// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRewritePolicyIsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value RewritePolicy
		want  bool
	}{
		{RewritePolicyLenient, true},
		{RewritePolicyStrict, true},
		{"", false},
		{"Strict", false},
	}
	for _, tt := range tests {
		ok, errs := tt.value.IsValid()
		if ok != tt.want {
			t.Errorf("RewritePolicy(%q).IsValid() = %v, want %v", tt.value, ok, tt.want)
		}
		if !ok && !errors.Is(errs[0], ErrInvalidRewritePolicy) {
			t.Errorf("RewritePolicy(%q) error %v should wrap ErrInvalidRewritePolicy", tt.value, errs[0])
		}
	}
}

func TestColorSchemeIsValid(t *testing.T) {
	t.Parallel()

	for _, cs := range []ColorScheme{ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight} {
		if ok, _ := cs.IsValid(); !ok {
			t.Errorf("ColorScheme(%q) should be valid", cs)
		}
	}
	ok, errs := ColorScheme("neon").IsValid()
	if ok || !errors.Is(errs[0], ErrInvalidColorScheme) {
		t.Errorf("ColorScheme(neon).IsValid() = %v, %v", ok, errs)
	}
}

func TestGlobPatternIsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value GlobPattern
		want  bool
	}{
		{"src/**/*.ts", true},
		{"test/{a,b}.test.ts", true},
		{"  ", false},
		{"src/[*.ts", false},
	}
	for _, tt := range tests {
		ok, errs := tt.value.IsValid()
		if ok != tt.want {
			t.Errorf("GlobPattern(%q).IsValid() = %v, want %v", tt.value, ok, tt.want)
		}
		if !ok && !errors.Is(errs[0], ErrInvalidGlobPattern) {
			t.Errorf("GlobPattern(%q) error should wrap ErrInvalidGlobPattern", tt.value)
		}
	}
}

func TestFileExtensionIsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value FileExtension
		want  bool
	}{
		{".ts", true},
		{".d.ts", true},
		{"ts", false},
		{".", false},
		{".t s", false},
		{"./ts", false},
	}
	for _, tt := range tests {
		if ok, _ := tt.value.IsValid(); ok != tt.want {
			t.Errorf("FileExtension(%q).IsValid() = %v, want %v", tt.value, ok, tt.want)
		}
	}
}

func TestDirPathAndShellCommandIsValid(t *testing.T) {
	t.Parallel()

	if ok, _ := DirPath("").IsValid(); !ok {
		t.Error("empty DirPath means default and should be valid")
	}
	if ok, errs := DirPath(" \t").IsValid(); ok || !errors.Is(errs[0], ErrInvalidDirPath) {
		t.Errorf("whitespace DirPath.IsValid() = %v, %v", ok, errs)
	}
	if ok, errs := ShellCommand(" ").IsValid(); ok || !errors.Is(errs[0], ErrInvalidShellCommand) {
		t.Errorf("blank ShellCommand.IsValid() = %v, %v", ok, errs)
	}
	if ok, _ := ShellCommand("npx ts-junit").IsValid(); !ok {
		t.Error("ShellCommand(npx ts-junit) should be valid")
	}
}

func TestConfigIsValid(t *testing.T) {
	t.Parallel()

	if ok, errs := DefaultConfig().IsValid(); !ok {
		t.Fatalf("DefaultConfig().IsValid() = false: %v", errs)
	}

	cfg := DefaultConfig()
	cfg.SourceExt = "ts"
	cfg.CompiledExts = []FileExtension{".js", "cjs"}
	cfg.Anchor = " "
	cfg.Watch.InitialDelayPerFile = -time.Second
	cfg.Watch.Ignore = []GlobPattern{"[oops"}
	cfg.Test.Command = ""

	ok, errs := cfg.IsValid()
	if ok {
		t.Fatal("IsValid() = true, want false")
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrInvalidConfig) {
		t.Fatalf("IsValid() errors = %v, want one InvalidConfigError", errs)
	}

	var ice *InvalidConfigError
	if !errors.As(errs[0], &ice) {
		t.Fatalf("error %T is not *InvalidConfigError", errs[0])
	}

	wantFields := []string{"source_ext", "compiled_exts[1]", "anchor", "test.command", "watch.initial_delay_per_file", "watch.ignore[0]"}
	if len(ice.FieldErrors) != len(wantFields) {
		t.Fatalf("FieldErrors = %v, want %d entries", ice.FieldErrors, len(wantFields))
	}
	for i, fe := range ice.FieldErrors {
		var ive *InvalidValueError
		if !errors.As(fe, &ive) {
			t.Fatalf("FieldErrors[%d] = %T, want *InvalidValueError", i, fe)
		}
		if ive.Field != wantFields[i] {
			t.Errorf("FieldErrors[%d].Field = %q, want %q", i, ive.Field, wantFields[i])
		}
	}

	if !errors.Is(ice.FieldErrors[4], ErrInvalidDelay) {
		t.Errorf("delay error %v should wrap ErrInvalidDelay", ice.FieldErrors[4])
	}
	if !strings.Contains(ice.Error(), "watch.ignore[0]") {
		t.Errorf("Error() = %q, should list every field", ice.Error())
	}
}
