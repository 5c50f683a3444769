// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/tsjunit/tsjunit/internal/modpath"
)

const outputFile = "/home/dev/ts-junit/output/test/calc.test.js"

func TestRewriteIndexRequire(t *testing.T) {
	t.Parallel()

	r := New(Options{})
	set := NewReplacementSet("src/index")

	got, err := r.Rewrite(outputFile, `var index_1 = require("../../src/index");`, set)
	if err != nil {
		t.Fatalf("Rewrite() error: %v", err)
	}

	want := `var index_1 = require("/home/dev/ts-junit/dist/index");`
	if got != want {
		t.Errorf("Rewrite() = %q, want %q", got, want)
	}
}

func TestRewriteDerivedVariants(t *testing.T) {
	t.Parallel()

	r := New(Options{})
	set := NewReplacementSet("src/index")

	text := strings.Join([]string{
		`"use strict";`,
		`var a = require("../../src");`,
		`var b = require('../../src/');`,
	}, "\n")

	got, err := r.Rewrite(outputFile, text, set)
	if err != nil {
		t.Fatalf("Rewrite() error: %v", err)
	}

	for _, variant := range []string{"src", "src/"} {
		if !set.Contains(modpath.Path(variant)) {
			t.Errorf("expanded set missing %q: %v", variant, set.Entries())
		}
	}

	lines := strings.Split(got, "\n")
	if lines[0] != `"use strict";` {
		t.Errorf("line 1 changed: %q", lines[0])
	}
	if lines[1] != `var a = require("/home/dev/ts-junit/dist/");` {
		t.Errorf("line 2 = %q", lines[1])
	}
	if lines[2] != `var b = require('/home/dev/ts-junit/dist/');` {
		t.Errorf("line 3 = %q", lines[2])
	}
}

func TestRewriteExpandsOnce(t *testing.T) {
	t.Parallel()

	r := New(Options{})
	set := NewReplacementSet("src/index", "src/util/index", "src/calc")

	for range 3 {
		if _, err := r.Rewrite(outputFile, "module.exports = 1;", set); err != nil {
			t.Fatalf("Rewrite() error: %v", err)
		}
	}

	// 3 originals + 2 variants for each of the 2 index entries.
	if set.Len() != 7 {
		t.Errorf("Len() = %d, want 7: %v", set.Len(), set.Entries())
	}
}

func TestRewriteIndexUnderIndexPrefixedDirectory(t *testing.T) {
	t.Parallel()

	r := New(Options{})
	set := NewReplacementSet("src/indexer/index")

	got, err := r.Rewrite(outputFile, `var idx = require("../src/indexer");`, set)
	if err != nil {
		t.Fatalf("Rewrite() error: %v", err)
	}

	wantEntries := []modpath.Path{"src/indexer/index", "src/indexer", "src/indexer/"}
	if !reflect.DeepEqual(set.Entries(), wantEntries) {
		t.Errorf("Entries() = %v, want %v", set.Entries(), wantEntries)
	}
	want := `var idx = require("/home/dev/ts-junit/dist/indexer");`
	if got != want {
		t.Errorf("Rewrite() = %q, want %q", got, want)
	}
}

func TestRewriteLeavesUnrelatedLines(t *testing.T) {
	t.Parallel()

	r := New(Options{})
	set := NewReplacementSet("src/index")

	text := "var calculator_1 = require(\"../../calculator\");\r\nconsole.log(calculator_1);"
	got, err := r.Rewrite(outputFile, text, set)
	if err != nil {
		t.Fatalf("Rewrite() error: %v", err)
	}

	want := "var calculator_1 = require(\"../../calculator\");\nconsole.log(calculator_1);"
	if got != want {
		t.Errorf("Rewrite() = %q, want %q", got, want)
	}
}

func TestRewriteNestedEntry(t *testing.T) {
	t.Parallel()

	r := New(Options{})
	set := NewReplacementSet("src/util/strings")

	got, err := r.Rewrite(outputFile, `const s = require( '../../src/util/strings' ) ;`, set)
	if err != nil {
		t.Fatalf("Rewrite() error: %v", err)
	}

	want := `const s = require( '/home/dev/ts-junit/dist/util/strings' ) ;`
	if got != want {
		t.Errorf("Rewrite() = %q, want %q", got, want)
	}
}

func TestRewriteCustomAnchor(t *testing.T) {
	t.Parallel()

	r := New(Options{Anchor: "project", DistSubdir: "build"})
	set := NewReplacementSet("index")

	got, err := r.Rewrite("/work/project/output/a.test.js", `var i = require("../index");`, set)
	if err != nil {
		t.Fatalf("Rewrite() error: %v", err)
	}

	// "index" has no src segment, so only the dist root remains.
	want := `var i = require("/work/project/build/");`
	if got != want {
		t.Errorf("Rewrite() = %q, want %q", got, want)
	}
}

func TestRewriteWithoutAnchorInOutputPath(t *testing.T) {
	t.Parallel()

	r := New(Options{})
	got := r.DistPath("/tmp/out/a.test.js", "src/lib/util")

	want := "/tmp/out/a.test.jsts-junit/dist/lib/util"
	if got != want {
		t.Errorf("DistPath() = %q, want %q", got, want)
	}
}

func TestRewriteMixedQuotesDoNotMatch(t *testing.T) {
	t.Parallel()

	var malformed []int
	r := New(Options{OnMalformed: func(line int, _ string) { malformed = append(malformed, line) }})
	set := NewReplacementSet("src/index")

	text := `var x = require("../../src/index');`
	got, err := r.Rewrite(outputFile, text, set)
	if err != nil {
		t.Fatalf("Rewrite() error: %v", err)
	}
	if got != text {
		t.Errorf("Rewrite() = %q, want unchanged", got)
	}
	if len(malformed) != 1 || malformed[0] != 1 {
		t.Errorf("OnMalformed lines = %v, want [1]", malformed)
	}
}

func TestRewriteMalformedPolicy(t *testing.T) {
	t.Parallel()

	text := strings.Join([]string{
		`// requirements: none`,
		`var index_1 = require("../../src/index");`,
	}, "\n")

	t.Run("lenient passes the line through", func(t *testing.T) {
		t.Parallel()

		var reported []string
		r := New(Options{
			Policy:      PolicyLenient,
			OnMalformed: func(_ int, line string) { reported = append(reported, line) },
		})

		got, err := r.Rewrite(outputFile, text, NewReplacementSet("src/index"))
		if err != nil {
			t.Fatalf("Rewrite() error: %v", err)
		}
		lines := strings.Split(got, "\n")
		if lines[0] != `// requirements: none` {
			t.Errorf("comment line changed: %q", lines[0])
		}
		if lines[1] != `var index_1 = require("/home/dev/ts-junit/dist/index");` {
			t.Errorf("require line = %q", lines[1])
		}
		if len(reported) != 1 {
			t.Errorf("reported = %v, want one line", reported)
		}
	})

	t.Run("strict returns MalformedRequireError", func(t *testing.T) {
		t.Parallel()

		r := New(Options{Policy: PolicyStrict})
		_, err := r.Rewrite(outputFile, text, NewReplacementSet("src/index"))
		if !errors.Is(err, ErrMalformedRequire) {
			t.Fatalf("Rewrite() error = %v, want ErrMalformedRequire", err)
		}
		var mre *MalformedRequireError
		if !errors.As(err, &mre) || mre.Line != 1 {
			t.Errorf("MalformedRequireError = %+v, want Line 1", mre)
		}
	})

	t.Run("word inside a require call line is fine", func(t *testing.T) {
		t.Parallel()

		r := New(Options{Policy: PolicyStrict})
		line := `var req = require("./requirements"); // requirements`
		got, err := r.Rewrite(outputFile, line, NewReplacementSet("src/index"))
		if err != nil {
			t.Fatalf("Rewrite() error: %v", err)
		}
		if got != line {
			t.Errorf("Rewrite() = %q, want unchanged", got)
		}
	})
}

func TestPolicyValidate(t *testing.T) {
	t.Parallel()

	for _, p := range []Policy{"", PolicyLenient, PolicyStrict} {
		if err := p.Validate(); err != nil {
			t.Errorf("Policy(%q).Validate() = %v", p, err)
		}
	}
	if err := Policy("loose").Validate(); !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("Policy(loose).Validate() = %v, want ErrInvalidPolicy", err)
	}
}
