// SPDX-License-Identifier: MPL-2.0

// Package issue holds user-facing errors for the tsjunit CLI: ActionableError
// carries remediation hints, and the Issue catalog carries longer Markdown
// guidance rendered with glamour.
package issue
