// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	ConfigInvalidId
	NoTestFilesId
	DistDirInvalidId
	CompilerCommandFailedId
	MalformedRequireId
	TestCommandFailedId
	WatchLimitReachedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the Markdown message, followed by a "See also" section when
// the issue has links. stylePath is a glamour style name or file.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if links := append(i.DocLinks(), i.extLinks...); len(links) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range links {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

tsjunit reads, in order: built-in defaults, the user config file, the
project's ` + "`tsjunit.cue`" + ` (or the file passed with ` + "`--config`" + `) and
` + "`TSJUNIT_*`" + ` environment variables.

## Things you can try:
- Check the file for CUE syntax errors
- Print a valid starting point and compare:
~~~
$ tsjunit config dump
~~~
- See which files are being merged:
~~~
$ tsjunit config path
~~~`,
	}

	configInvalidIssue = &Issue{
		id: ConfigInvalidId,
		mdMsg: `
# Invalid configuration value!

One of the settings was accepted by the schema but cannot be used.

## Things you can try:
- ` + "`rewrite_policy`" + ` must be ` + "`lenient`" + ` or ` + "`strict`" + `
- Extensions (` + "`source_ext`, `compiled_exts`" + `) need a leading dot, e.g. ` + "`.ts`" + `
- ` + "`sources` and `watch.ignore`" + ` are doublestar globs, e.g. ` + "`src/**/*.ts`" + `
- Remove the key to fall back to the default`,
	}

	noTestFilesIssue = &Issue{
		id: NoTestFilesId,
		mdMsg: `
# No test files given!

The watch loop needs at least one test file to run.

## Things you can try:
~~~
$ tsjunit watch test/calculator.test.ts
~~~`,
	}

	distDirInvalidIssue = &Issue{
		id: DistDirInvalidId,
		mdMsg: `
# The distribution directory cannot be scanned!

Modules already built into the distribution directory are not recompiled;
references to them are redirected into it instead.

## Things you can try:
- Make sure ` + "`dist_dir`" + ` points to a directory, not a file
- Build the project once so the directory exists, or remove the setting`,
	}

	compilerCommandFailedIssue = &Issue{
		id: CompilerCommandFailedId,
		mdMsg: `
# The compile command could not run!

Each changed file is piped to ` + "`compiler.command`" + ` on stdin; the command
must print CommonJS JavaScript on stdout. The file name is available as
` + "`$TSJ_FILE`" + `.

## Things you can try:
- Check that the compiler is installed:
~~~
$ npx esbuild --version
~~~
- Try the command by hand:
~~~
$ TSJ_FILE=src/index.ts npx esbuild --format=cjs --loader=ts < src/index.ts
~~~`,
	}

	malformedRequireIssue = &Issue{
		id: MalformedRequireId,
		mdMsg: `
# Malformed require line!

A line of the emitted output mentions ` + "`require`" + ` but no
` + "`require('...')`" + ` call could be found on it.

## Things you can try:
- Keep the default ` + "`rewrite_policy: \"lenient\"`" + ` to leave such lines untouched
- Rename identifiers or comments that contain the word ` + "`require`" + ``,
	}

	testCommandFailedIssue = &Issue{
		id: TestCommandFailedId,
		mdMsg: `
# The test command failed!

` + "`test.command`" + ` runs after every recompilation with
` + "`$TSJ_OUTPUT_DIR`" + ` and ` + "`$TSJ_TEST_FILES`" + ` set.

## Things you can try:
- Run the command by hand to see its full output
- Check that the test runner is installed in the project`,
	}

	watchLimitReachedIssue = &Issue{
		id: WatchLimitReachedId,
		mdMsg: `
# The file watcher ran out of resources!

The operating system refused to watch more files.

## Things you can try:
- On Linux, raise the inotify limit:
~~~
$ sudo sysctl fs.inotify.max_user_watches=524288
~~~
- Narrow ` + "`sources`" + ` or add ` + "`watch.ignore`" + ` patterns`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		configInvalidIssue.Id():         configInvalidIssue,
		noTestFilesIssue.Id():           noTestFilesIssue,
		distDirInvalidIssue.Id():        distDirInvalidIssue,
		compilerCommandFailedIssue.Id(): compilerCommandFailedIssue,
		malformedRequireIssue.Id():      malformedRequireIssue,
		testCommandFailedIssue.Id():     testCommandFailedIssue,
		watchLimitReachedIssue.Id():     watchLimitReachedIssue,
	}
)

// Values returns every issue sorted by Id.
func Values() []*Issue {
	out := maps.Values(issues)
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
