// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tsjunit/tsjunit/internal/compiler"
	"github.com/tsjunit/tsjunit/internal/testrun"
)

const (
	// RewritePolicyLenient leaves malformed require lines unchanged.
	RewritePolicyLenient RewritePolicy = "lenient"
	// RewritePolicyStrict skips writing outputs with malformed require lines.
	RewritePolicyStrict RewritePolicy = "strict"

	// ColorSchemeAuto detects the terminal background.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark styles.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light styles.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidRewritePolicy is returned when a RewritePolicy value is not recognized.
	ErrInvalidRewritePolicy = errors.New("invalid rewrite policy")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidGlobPattern is returned for patterns doublestar cannot parse.
	ErrInvalidGlobPattern = errors.New("invalid glob pattern")
	// ErrInvalidFileExtension is returned for extensions without a leading dot.
	ErrInvalidFileExtension = errors.New("invalid file extension")
	// ErrInvalidShellCommand is returned for blank command templates.
	ErrInvalidShellCommand = errors.New("invalid shell command")
	// ErrInvalidDirPath is returned for whitespace-only directory paths.
	ErrInvalidDirPath = errors.New("invalid directory path")
	// ErrInvalidDelay is returned for negative delays.
	ErrInvalidDelay = errors.New("invalid delay")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// RewritePolicy selects how malformed require lines are handled.
	RewritePolicy string

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// GlobPattern is a doublestar pattern relative to the base directory.
	GlobPattern string

	// FileExtension includes the leading dot, e.g. ".ts".
	FileExtension string

	// ShellCommand is a command template run by the embedded shell.
	ShellCommand string

	// DirPath is a directory, relative to the base directory unless absolute.
	// The zero value means "use the default".
	DirPath string

	// InvalidValueError reports one rejected field value. It unwraps to the
	// sentinel of the value's type.
	InvalidValueError struct {
		Field    string
		Value    string
		Reason   string
		sentinel error
	}

	// InvalidConfigError collects field errors from Config.IsValid.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// BaseDir is the project root. Empty means the working directory.
		BaseDir DirPath `json:"base_dir" mapstructure:"base_dir"`
		// DistDir holds previously built modules.
		DistDir DirPath `json:"dist_dir" mapstructure:"dist_dir"`
		// OutputDir receives patched compiler output.
		OutputDir DirPath `json:"output_dir" mapstructure:"output_dir"`
		// Sources select the files to compile besides the test files.
		Sources []GlobPattern `json:"sources" mapstructure:"sources"`
		// SourcePrefix is the logical root segment of sources.
		SourcePrefix string `json:"source_prefix" mapstructure:"source_prefix"`
		// SourceExt is the extension of sources.
		SourceExt FileExtension `json:"source_ext" mapstructure:"source_ext"`
		// CompiledExts are the artifact extensions in DistDir.
		CompiledExts []FileExtension `json:"compiled_exts" mapstructure:"compiled_exts"`
		// Anchor is the directory name rooting the distribution tree in
		// rewritten paths.
		Anchor string `json:"anchor" mapstructure:"anchor"`
		// DistSubdir is the distribution directory beneath Anchor.
		DistSubdir string `json:"dist_subdir" mapstructure:"dist_subdir"`
		// RewritePolicy is lenient or strict.
		RewritePolicy RewritePolicy `json:"rewrite_policy" mapstructure:"rewrite_policy"`

		Compiler CompilerConfig `json:"compiler" mapstructure:"compiler"`
		Test     TestConfig     `json:"test" mapstructure:"test"`
		Watch    WatchConfig    `json:"watch" mapstructure:"watch"`
		UI       UIConfig       `json:"ui" mapstructure:"ui"`
	}

	// CompilerConfig configures the transpile command.
	CompilerConfig struct {
		Command ShellCommand `json:"command" mapstructure:"command"`
	}

	// TestConfig configures the test command.
	TestConfig struct {
		Command ShellCommand `json:"command" mapstructure:"command"`
	}

	// WatchConfig configures watching and the first-run scheduler.
	WatchConfig struct {
		// InitialDelayPerFile is multiplied by the number of test files.
		InitialDelayPerFile time.Duration `json:"initial_delay_per_file" mapstructure:"initial_delay_per_file"`
		// SettleFirstRun runs the tests right after the initial emission.
		SettleFirstRun bool `json:"settle_first_run" mapstructure:"settle_first_run"`
		// Ignore drops matching files from the watch set.
		Ignore []GlobPattern `json:"ignore" mapstructure:"ignore"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
	}
)

// Error implements the error interface.
func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: %s %q: %s", e.Field, e.sentinel, e.Value, e.Reason)
}

// Unwrap returns the sentinel for errors.Is() compatibility.
func (e *InvalidValueError) Unwrap() error { return e.sentinel }

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		msgs = append(msgs, fe.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

func (p RewritePolicy) String() string { return string(p) }

// IsValid accepts lenient and strict.
func (p RewritePolicy) IsValid() (bool, []error) {
	switch p {
	case RewritePolicyLenient, RewritePolicyStrict:
		return true, nil
	default:
		return false, []error{invalid("rewrite_policy", string(p), "valid: lenient, strict", ErrInvalidRewritePolicy)}
	}
}

func (cs ColorScheme) String() string { return string(cs) }

// IsValid accepts auto, dark and light.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{invalid("ui.color_scheme", string(cs), "valid: auto, dark, light", ErrInvalidColorScheme)}
	}
}

func (g GlobPattern) String() string { return string(g) }

// IsValid reports whether doublestar can parse the pattern.
func (g GlobPattern) IsValid() (bool, []error) {
	if strings.TrimSpace(string(g)) == "" {
		return false, []error{invalid("pattern", string(g), "must be non-empty", ErrInvalidGlobPattern)}
	}
	if !doublestar.ValidatePattern(string(g)) {
		return false, []error{invalid("pattern", string(g), "malformed pattern", ErrInvalidGlobPattern)}
	}
	return true, nil
}

func (x FileExtension) String() string { return string(x) }

// IsValid requires a leading dot and at least one more character.
func (x FileExtension) IsValid() (bool, []error) {
	if len(x) < 2 || x[0] != '.' || strings.ContainsAny(string(x), "/\\ ") {
		return false, []error{invalid("extension", string(x), `must look like ".ts"`, ErrInvalidFileExtension)}
	}
	return true, nil
}

func (c ShellCommand) String() string { return string(c) }

// IsValid rejects blank commands.
func (c ShellCommand) IsValid() (bool, []error) {
	if strings.TrimSpace(string(c)) == "" {
		return false, []error{invalid("command", string(c), "must be non-empty", ErrInvalidShellCommand)}
	}
	return true, nil
}

func (d DirPath) String() string { return string(d) }

// IsValid accepts the zero value and any path that is not whitespace-only.
func (d DirPath) IsValid() (bool, []error) {
	if d != "" && strings.TrimSpace(string(d)) == "" {
		return false, []error{invalid("directory", string(d), "must not be whitespace-only", ErrInvalidDirPath)}
	}
	return true, nil
}

// IsValid returns whether every field holds an acceptable value.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	check := func(field string, v interface{ IsValid() (bool, []error) }) {
		if ok, fieldErrs := v.IsValid(); !ok {
			for _, fe := range fieldErrs {
				errs = append(errs, withField(fe, field))
			}
		}
	}

	check("base_dir", c.BaseDir)
	check("dist_dir", c.DistDir)
	check("output_dir", c.OutputDir)
	for i, s := range c.Sources {
		check(fmt.Sprintf("sources[%d]", i), s)
	}
	check("source_ext", c.SourceExt)
	for i, x := range c.CompiledExts {
		check(fmt.Sprintf("compiled_exts[%d]", i), x)
	}
	if strings.TrimSpace(c.Anchor) == "" {
		errs = append(errs, invalid("anchor", c.Anchor, "must be non-empty", ErrInvalidDirPath))
	}
	check("rewrite_policy", c.RewritePolicy)
	check("compiler.command", c.Compiler.Command)
	check("test.command", c.Test.Command)
	if c.Watch.InitialDelayPerFile < 0 {
		errs = append(errs, invalid("watch.initial_delay_per_file", c.Watch.InitialDelayPerFile.String(), "must not be negative", ErrInvalidDelay))
	}
	for i, g := range c.Watch.Ignore {
		check(fmt.Sprintf("watch.ignore[%d]", i), g)
	}
	check("ui.color_scheme", c.UI.ColorScheme)

	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

func invalid(field, value, reason string, sentinel error) *InvalidValueError {
	return &InvalidValueError{Field: field, Value: value, Reason: reason, sentinel: sentinel}
}

// withField pins the field name of a value error to where it appears.
func withField(err error, field string) error {
	var ive *InvalidValueError
	if errors.As(err, &ive) {
		cp := *ive
		cp.Field = field
		return &cp
	}
	return fmt.Errorf("%s: %w", field, err)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DistDir:       "dist",
		OutputDir:     "output",
		Sources:       []GlobPattern{"src/**/*.ts"},
		SourcePrefix:  "src",
		SourceExt:     ".ts",
		CompiledExts:  []FileExtension{".js"},
		Anchor:        "ts-junit",
		DistSubdir:    "dist",
		RewritePolicy: RewritePolicyLenient,
		Compiler: CompilerConfig{
			Command: ShellCommand(compiler.DefaultCommand),
		},
		Test: TestConfig{
			Command: ShellCommand(testrun.DefaultCommand),
		},
		Watch: WatchConfig{
			InitialDelayPerFile: 100 * time.Millisecond,
			Ignore:              []GlobPattern{},
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}
