// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tsjunit/tsjunit/internal/config"
)

// newConfigCommand creates the `tsjunit config` command tree.
func newConfigCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect tsjunit configuration",
		Long: `Inspect tsjunit configuration.

Settings are merged from, lowest precedence first:
  - built-in defaults
  - the user config file (` + config.UserFileName + ` in the tsjunit user config directory)
  - ./` + config.ProjectFileName + `, or the file given with --config instead of both files
  - TSJUNIT_* environment variables, e.g. TSJUNIT_OUTPUT_DIR`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config.Load(cmd.Context(), rootFlags.loadOptions())
			if err != nil {
				return failCommand(cmd, app, err, rootFlags.verbose, string(config.ColorSchemeAuto))
			}
			showConfig(app.stdout, cfg, app.Config.Sources(rootFlags.loadOptions()))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config.Load(cmd.Context(), rootFlags.loadOptions())
			if err != nil {
				return failCommand(cmd, app, err, rootFlags.verbose, string(config.ColorSchemeAuto))
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration files that are merged",
		RunE: func(cmd *cobra.Command, args []string) error {
			showConfigPath(app.stdout, app.Config.Sources(rootFlags.loadOptions()))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config, sources []string) {
	key := CmdStyle.Render
	value := SuccessStyle.Render

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if len(sources) == 0 {
		fmt.Fprintf(w, "%s: %s\n", key("Config files"), SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(w, "%s: %s\n", key("Config files"), strings.Join(sources, ", "))
	}
	fmt.Fprintln(w)

	base := string(cfg.BaseDir)
	if base == "" {
		base = SubtitleStyle.Render("(working directory)")
	} else {
		base = value(base)
	}
	fmt.Fprintf(w, "%s: %s\n", key("base_dir"), base)
	fmt.Fprintf(w, "%s: %s\n", key("dist_dir"), value(string(cfg.DistDir)))
	fmt.Fprintf(w, "%s: %s\n", key("output_dir"), value(string(cfg.OutputDir)))
	fmt.Fprintf(w, "%s: %s\n", key("sources"), value(joinValues(cfg.Sources)))
	fmt.Fprintf(w, "%s: %s\n", key("source_prefix"), value(cfg.SourcePrefix))
	fmt.Fprintf(w, "%s: %s\n", key("source_ext"), value(string(cfg.SourceExt)))
	fmt.Fprintf(w, "%s: %s\n", key("compiled_exts"), value(joinValues(cfg.CompiledExts)))
	fmt.Fprintf(w, "%s: %s\n", key("anchor"), value(cfg.Anchor))
	fmt.Fprintf(w, "%s: %s\n", key("dist_subdir"), value(cfg.DistSubdir))
	fmt.Fprintf(w, "%s: %s\n", key("rewrite_policy"), value(string(cfg.RewritePolicy)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", key("compiler"))
	fmt.Fprintf(w, "  command: %s\n", value(string(cfg.Compiler.Command)))
	fmt.Fprintf(w, "%s:\n", key("test"))
	fmt.Fprintf(w, "  command: %s\n", value(string(cfg.Test.Command)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", key("watch"))
	fmt.Fprintf(w, "  initial_delay_per_file: %s\n", value(cfg.Watch.InitialDelayPerFile.String()))
	fmt.Fprintf(w, "  settle_first_run: %s\n", value(fmt.Sprintf("%v", cfg.Watch.SettleFirstRun)))
	if len(cfg.Watch.Ignore) == 0 {
		fmt.Fprintf(w, "  ignore: %s\n", SubtitleStyle.Render("(built-in defaults only)"))
	} else {
		fmt.Fprintf(w, "  ignore: %s\n", value(joinValues(cfg.Watch.Ignore)))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", key("ui"))
	fmt.Fprintf(w, "  color_scheme: %s\n", value(string(cfg.UI.ColorScheme)))
	fmt.Fprintf(w, "  verbose: %s\n", value(fmt.Sprintf("%v", cfg.UI.Verbose)))
}

func showConfigPath(w io.Writer, sources []string) {
	if dir, err := config.UserConfigDir(); err == nil {
		fmt.Fprintf(w, "User config file: %s\n", filepath.Join(dir, config.UserFileName))
	}
	fmt.Fprintf(w, "Project config file: %s\n", config.ProjectFileName)
	if len(sources) == 0 {
		fmt.Fprintln(w, "Merged: (none, using defaults)")
		return
	}
	fmt.Fprintln(w, "Merged:")
	for _, s := range sources {
		fmt.Fprintf(w, "  - %s\n", s)
	}
}

func joinValues[T ~string](items []T) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, string(it))
	}
	return strings.Join(parts, ", ")
}
