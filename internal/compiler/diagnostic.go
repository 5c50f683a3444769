// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var (
	// tscDiagnostic matches "src/a.ts(3,7): error TS2304: Cannot find name 'x'."
	tscDiagnostic = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): (error|warning) (TS\d+): (.*)$`)
	// colonDiagnostic matches "src/a.ts:3:7: error: Expected ';'" (esbuild, swc, gcc style).
	colonDiagnostic = regexp.MustCompile(`^(.+?):(\d+):(\d+): (?i:(error|warning)): (.*)$`)
	// globalDiagnostic matches "error TS5023: Unknown compiler option 'x'."
	globalDiagnostic = regexp.MustCompile(`^(error|warning) (TS\d+): (.*)$`)
)

// String renders the diagnostic the way the watch loop prints it.
func (d Diagnostic) String() string {
	if d.File == "" {
		return fmt.Sprintf("  Error: %s", d.Message)
	}
	return fmt.Sprintf("  Error %s (%d,%d): %s", d.File, d.Line, d.Column, d.Message)
}

// IsSyntactic reports whether the diagnostic comes from parsing. TypeScript
// reserves the TS1xxx range for syntax errors; diagnostics without a TS code
// but with a position are treated as syntactic.
func (d Diagnostic) IsSyntactic() bool {
	if d.File == "" {
		return false
	}
	if !strings.HasPrefix(d.Code, "TS") {
		return true
	}
	return len(d.Code) == 6 && d.Code[2] == '1'
}

// PrintDiagnostics writes one line per diagnostic. Write errors are ignored.
func PrintDiagnostics(w io.Writer, diags []Diagnostic) {
	for _, d := range diags {
		fmt.Fprintln(w, d.String())
	}
}

// ParseDiagnostics extracts diagnostics from compiler output. Lines that do
// not match a known format are kept as positionless errors when
// keepUnmatched is set.
func ParseDiagnostics(r io.Reader, keepUnmatched bool) []Diagnostic {
	var diags []Diagnostic
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if d, ok := parseDiagnosticLine(line); ok {
			diags = append(diags, d)
			continue
		}
		if keepUnmatched {
			diags = append(diags, Diagnostic{Category: CategoryError, Message: strings.TrimSpace(line)})
		}
	}
	return diags
}

func parseDiagnosticLine(line string) (Diagnostic, bool) {
	if m := tscDiagnostic.FindStringSubmatch(line); m != nil {
		return Diagnostic{
			File:     m[1],
			Line:     atoi(m[2]),
			Column:   atoi(m[3]),
			Category: Category(m[4]),
			Code:     m[5],
			Message:  m[6],
		}, true
	}
	if m := colonDiagnostic.FindStringSubmatch(line); m != nil {
		return Diagnostic{
			File:     m[1],
			Line:     atoi(m[2]),
			Column:   atoi(m[3]),
			Category: Category(strings.ToLower(m[4])),
			Message:  m[5],
		}, true
	}
	if m := globalDiagnostic.FindStringSubmatch(line); m != nil {
		return Diagnostic{
			Category: Category(m[1]),
			Code:     m[2],
			Message:  m[3],
		}, true
	}
	return Diagnostic{}, false
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
