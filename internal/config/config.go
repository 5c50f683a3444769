// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/tsjunit/tsjunit/internal/cueutil"
	"github.com/tsjunit/tsjunit/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "tsjunit"
	// ProjectFileName is the project config file looked up in the project directory.
	ProjectFileName = "tsjunit.cue"
	// UserFileName is the per-user config file inside UserConfigDir.
	UserFileName = "config.cue"
	// EnvPrefix prefixes environment overrides, e.g. TSJUNIT_WATCH_SETTLE_FIRST_RUN.
	EnvPrefix = "TSJUNIT"
)

//go:embed config_schema.cue
var configSchema []byte

// UserConfigDir returns <os.UserConfigDir>/tsjunit.
func UserConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine user config directory: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

// ResolvePath returns the config files that apply to opts, lowest precedence
// first. An explicit ConfigFilePath is returned alone, whether or not it exists.
func ResolvePath(opts LoadOptions) []string {
	if opts.ConfigFilePath != "" {
		return []string{opts.ConfigFilePath}
	}

	var paths []string
	userDir := opts.UserConfigDirPath
	if userDir == "" {
		if dir, err := UserConfigDir(); err == nil {
			userDir = dir
		}
	}
	if userDir != "" {
		if p := filepath.Join(userDir, UserFileName); fileExists(p) {
			paths = append(paths, p)
		}
	}

	projectDir := opts.ProjectDirPath
	if projectDir == "" {
		projectDir = "."
	}
	if p := filepath.Join(projectDir, ProjectFileName); fileExists(p) {
		paths = append(paths, p)
	}
	return paths
}

// loadWithOptions performs option-driven config loading and returns the
// config together with the files that were merged.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, []string, error) {
	select {
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFilePath != "" && !fileExists(opts.ConfigFilePath) {
		return nil, nil, issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(opts.ConfigFilePath).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Use 'tsjunit config dump' to print a starting configuration").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
			BuildError()
	}

	paths := ResolvePath(opts)
	for _, path := range paths {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("See 'tsjunit config --help' for configuration options").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Fix the listed fields or remove them to use the defaults").
			WithIssue(issue.ConfigInvalidId).
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, paths, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("base_dir", d.BaseDir)
	v.SetDefault("dist_dir", d.DistDir)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("sources", d.Sources)
	v.SetDefault("source_prefix", d.SourcePrefix)
	v.SetDefault("source_ext", d.SourceExt)
	v.SetDefault("compiled_exts", d.CompiledExts)
	v.SetDefault("anchor", d.Anchor)
	v.SetDefault("dist_subdir", d.DistSubdir)
	v.SetDefault("rewrite_policy", d.RewritePolicy)
	v.SetDefault("compiler.command", d.Compiler.Command)
	v.SetDefault("test.command", d.Test.Command)
	v.SetDefault("watch.initial_delay_per_file", d.Watch.InitialDelayPerFile)
	v.SetDefault("watch.settle_first_run", d.Watch.SettleFirstRun)
	v.SetDefault("watch.ignore", d.Watch.Ignore)
	v.SetDefault("ui.color_scheme", d.UI.ColorScheme)
	v.SetDefault("ui.verbose", d.UI.Verbose)
}

// loadCUEIntoViper validates a CUE file against #Config and merges it.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var configMap map[string]any
	if err := cueutil.Decode(configSchema, data, "#Config", &configMap, cueutil.WithFilename(path)); err != nil {
		return err
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// GenerateCUE renders cfg as a tsjunit.cue document.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// tsjunit configuration\n\n")

	if cfg.BaseDir != "" {
		fmt.Fprintf(&sb, "base_dir: %q\n", cfg.BaseDir)
	}
	fmt.Fprintf(&sb, "dist_dir: %q\n", cfg.DistDir)
	fmt.Fprintf(&sb, "output_dir: %q\n", cfg.OutputDir)
	fmt.Fprintf(&sb, "sources: %s\n", cueList(cfg.Sources))
	fmt.Fprintf(&sb, "source_prefix: %q\n", cfg.SourcePrefix)
	fmt.Fprintf(&sb, "source_ext: %q\n", cfg.SourceExt)
	fmt.Fprintf(&sb, "compiled_exts: %s\n", cueList(cfg.CompiledExts))
	fmt.Fprintf(&sb, "anchor: %q\n", cfg.Anchor)
	fmt.Fprintf(&sb, "dist_subdir: %q\n", cfg.DistSubdir)
	fmt.Fprintf(&sb, "rewrite_policy: %q\n", cfg.RewritePolicy)

	sb.WriteString("\ncompiler: {\n")
	fmt.Fprintf(&sb, "\tcommand: %q\n", cfg.Compiler.Command)
	sb.WriteString("}\n")

	sb.WriteString("\ntest: {\n")
	fmt.Fprintf(&sb, "\tcommand: %q\n", cfg.Test.Command)
	sb.WriteString("}\n")

	sb.WriteString("\nwatch: {\n")
	fmt.Fprintf(&sb, "\tinitial_delay_per_file: %q\n", cfg.Watch.InitialDelayPerFile.String())
	fmt.Fprintf(&sb, "\tsettle_first_run: %v\n", cfg.Watch.SettleFirstRun)
	fmt.Fprintf(&sb, "\tignore: %s\n", cueList(cfg.Watch.Ignore))
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

func cueList[T ~string](items []T) string {
	quoted := make([]string, 0, len(items))
	for _, it := range items {
		quoted = append(quoted, fmt.Sprintf("%q", it))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
