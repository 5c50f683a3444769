// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the tsjunit CLI commands.
//
// The root command configures the App logger. "watch" runs a watch session
// over the given test files and the configured sources. "config" prints the
// effective configuration.
package cmd
