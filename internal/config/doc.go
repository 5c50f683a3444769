// SPDX-License-Identifier: MPL-2.0

// Package config loads tsjunit settings with Viper, using CUE as the file
// format.
//
// Settings come from, in increasing precedence: built-in defaults, the user
// file (<user config dir>/tsjunit/config.cue), the project file (tsjunit.cue
// in the project directory) or an explicit --config file, and TSJUNIT_*
// environment variables. Files are validated against the embedded
// config_schema.cue before they are merged.
package config
