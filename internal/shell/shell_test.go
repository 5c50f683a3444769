// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRunSuccessWithEnvAndStdin(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	res := Run(context.Background(), Script{
		Source: `read line; echo "$GREETING $line"`,
		Env:    map[string]string{"GREETING": "hello"},
		Stdin:  strings.NewReader("world\n"),
		Stdout: &out,
	})

	if !res.Success() {
		t.Fatalf("Run() = %+v, want success", res)
	}
	if got := strings.TrimSpace(out.String()); got != "hello world" {
		t.Errorf("stdout = %q, want %q", got, "hello world")
	}
}

func TestRunExitCode(t *testing.T) {
	t.Parallel()

	var errOut bytes.Buffer
	res := Run(context.Background(), Script{Source: `echo boom >&2; exit 3`, Stderr: &errOut})

	if res.ExitCode != 3 || res.Error != nil {
		t.Errorf("Run() = %+v, want exit 3 without error", res)
	}
	if !strings.Contains(errOut.String(), "boom") {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestRunDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var out bytes.Buffer
	res := Run(context.Background(), Script{Source: `pwd`, Dir: dir, Stdout: &out})
	if !res.Success() {
		t.Fatalf("Run() = %+v", res)
	}
	if got := strings.TrimSpace(out.String()); got != dir {
		t.Errorf("pwd = %q, want %q", got, dir)
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	if _, err := Parse("   ", ""); !errors.Is(err, ErrEmptyScript) {
		t.Errorf("Parse(blank) = %v, want ErrEmptyScript", err)
	}
	if _, err := Parse("echo 'unterminated", "x"); err == nil {
		t.Error("Parse() accepted an unterminated quote")
	}
	if _, err := Parse("echo ok", ""); err != nil {
		t.Errorf("Parse(valid) = %v", err)
	}
}
