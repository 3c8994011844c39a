package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpress/internal/config"
	"git.home.luguber.info/inful/docpress/internal/docs"
	"git.home.luguber.info/inful/docpress/internal/report"
)

// fakeRunner records invocations and fabricates output files so the PDF
// phase (which walks real HTML outputs) can be exercised without the
// external tools.
type fakeRunner struct {
	mu       sync.Mutex
	commands []Command
	failOn   func(Command) bool
}

func (f *fakeRunner) Run(_ context.Context, cmd Command) error {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	if f.failOn != nil && f.failOn(cmd) {
		return &ExitError{Command: cmd, Stderr: "synthetic converter failure", Err: os.ErrInvalid}
	}
	if out := outputOf(cmd); out != "" {
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		return os.WriteFile(out, []byte("generated"), 0o644)
	}
	return nil
}

func (f *fakeRunner) recorded(name string) []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Command
	for _, c := range f.commands {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func outputOf(cmd Command) string {
	for _, a := range cmd.Args {
		if strings.HasPrefix(a, "--output=") {
			return strings.TrimPrefix(a, "--output=")
		}
	}
	if len(cmd.Args) > 0 {
		return cmd.Args[len(cmd.Args)-1]
	}
	return ""
}

type fixture struct {
	dispatcher *Dispatcher
	runner     *fakeRunner
	staging    string
	output     string
	build      *report.Build
}

func newFixture(t *testing.T, types map[string][]string, files map[string]string) *fixture {
	t.Helper()
	staging := t.TempDir()
	output := t.TempDir()

	set := docs.NewSet()
	for rel, content := range files {
		path := filepath.Join(staging, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		if strings.HasSuffix(rel, ".md") {
			c, err := docs.Classify(rel)
			require.NoError(t, err)
			require.NoError(t, set.Add(docs.Document{ID: c.ID, Type: c.Type, SourcePath: path}))
		}
	}

	registry, err := docs.NewTypeRegistry(types)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Templates.Directory = "/etc/docpress/templates"

	runner := &fakeRunner{}
	d := NewDispatcher(cfg, staging, output, set, registry).WithRunner(runner)
	return &fixture{dispatcher: d, runner: runner, staging: staging, output: output, build: report.New()}
}

var defaultTypes = map[string][]string{
	"articles":  {"html"},
	"tutorials": {"html", "ebook", "pdf"},
}

func TestRunHTMLDispatchesPerType(t *testing.T) {
	f := newFixture(t, defaultTypes, map[string]string{
		"articles/intro.md":      "# Intro",
		"tutorials/3.0/using.md": "# Using",
		"notes/scratch.md":       "# Scratch", // type absent from registry
		"styles/site.css":        "body {}",
	})

	f.dispatcher.WarnUnknownTypes(f.build)
	require.NoError(t, f.dispatcher.RunHTML(context.Background(), f.build))

	pandoc := f.runner.recorded("pandoc")
	require.Len(t, pandoc, 2)
	assert.Equal(t, 1, f.build.Unclassified)
	assert.Equal(t, 2, f.build.Succeeded())

	// Outputs mirror the id hierarchy.
	assert.FileExists(t, filepath.Join(f.output, "articles", "intro.html"))
	assert.FileExists(t, filepath.Join(f.output, "tutorials", "3.0", "using.html"))

	// Resources follow HTML into the output root.
	assert.FileExists(t, filepath.Join(f.output, "styles", "site.css"))
	// Markdown sources do not.
	assert.NoFileExists(t, filepath.Join(f.output, "articles", "intro.md"))
}

func TestHTMLCommandArguments(t *testing.T) {
	f := newFixture(t, defaultTypes, map[string]string{
		"tutorials/3.0/using.md": "# Using",
	})

	require.NoError(t, f.dispatcher.RunHTML(context.Background(), f.build))

	cmds := f.runner.recorded("pandoc")
	require.Len(t, cmds, 1)
	args := cmds[0].Args
	assert.Equal(t, "--write=html5", args[0])
	assert.Equal(t, "--template="+filepath.Join("/etc/docpress/templates", "tutorials.html"), args[1])
	assert.Equal(t, []string{"--toc", "--toc-depth=4", "--section-divs", "--no-highlight"}, args[2:6])
	assert.True(t, strings.HasPrefix(args[6], "--output="))
	assert.True(t, strings.HasSuffix(args[7], filepath.Join("tutorials", "3.0", "using.md")))
}

func TestRunEbookRendersEpubThenMobi(t *testing.T) {
	f := newFixture(t, defaultTypes, map[string]string{
		"tutorials/3.0/using.md": "# Using",
		"articles/intro.md":      "# Intro", // articles: html only
	})

	require.NoError(t, f.dispatcher.RunEbook(context.Background(), f.build))

	pandoc := f.runner.recorded("pandoc")
	require.Len(t, pandoc, 1)
	// EPUB rendering runs from the document's own directory.
	assert.Equal(t, filepath.Join(f.staging, "tutorials", "3.0"), pandoc[0].Dir)

	calibre := f.runner.recorded("ebook-convert")
	require.Len(t, calibre, 1)
	require.Len(t, calibre[0].Args, 2)
	assert.True(t, strings.HasSuffix(calibre[0].Args[0], ".epub"))
	assert.True(t, strings.HasSuffix(calibre[0].Args[1], ".mobi"))

	assert.FileExists(t, filepath.Join(f.output, "tutorials", "3.0", "using.epub"))
	assert.FileExists(t, filepath.Join(f.output, "tutorials", "3.0", "using.mobi"))
}

func TestEbookEpubFailureSkipsMobi(t *testing.T) {
	f := newFixture(t, defaultTypes, map[string]string{
		"tutorials/3.0/using.md": "# Using",
	})
	f.runner.failOn = func(cmd Command) bool { return cmd.Name == "pandoc" }

	require.NoError(t, f.dispatcher.RunEbook(context.Background(), f.build))

	assert.Empty(t, f.runner.recorded("ebook-convert"))
	assert.Equal(t, 1, f.build.Failed())
	assert.Equal(t, 1, f.build.Skipped())
}

func TestRunPDFRendersViaServerURL(t *testing.T) {
	f := newFixture(t, defaultTypes, map[string]string{
		"tutorials/3.0/using.md": "# Using",
		"articles/intro.md":      "# Intro",
	})

	require.NoError(t, f.dispatcher.RunHTML(context.Background(), f.build))
	require.NoError(t, f.dispatcher.RunPDF(context.Background(), f.build, func(id string) string {
		return "http://localhost:8993/docs/" + id + ".html"
	}))

	pdf := f.runner.recorded("wkhtmltopdf")
	require.Len(t, pdf, 1) // articles supports html only
	args := pdf[0].Args
	assert.Contains(t, args, "http://localhost:8993/docs/tutorials/3.0/using.html")
	assert.Contains(t, args, "--quiet")
	assert.Equal(t, "--print-media-type", args[0])
	assert.FileExists(t, filepath.Join(f.output, "tutorials", "3.0", "using.pdf"))
}

func TestRunPDFSkipsDocumentWithFailedHTML(t *testing.T) {
	f := newFixture(t, defaultTypes, map[string]string{
		"tutorials/3.0/using.md": "# Using",
	})
	// HTML conversion fails but leaves a stale output file behind.
	stale := filepath.Join(f.output, "tutorials", "3.0", "using.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))
	f.runner.failOn = func(cmd Command) bool { return cmd.Name == "pandoc" }

	require.NoError(t, f.dispatcher.RunHTML(context.Background(), f.build))
	require.NoError(t, f.dispatcher.RunPDF(context.Background(), f.build, func(id string) string { return "http://x/" + id }))

	assert.Empty(t, f.runner.recorded("wkhtmltopdf"), "stale PDF must never be rendered from failed HTML")
	skipped := false
	for _, r := range f.build.Results {
		if r.Format == "pdf" && r.Skipped && r.SkipReason == "html conversion failed" {
			skipped = true
		}
	}
	assert.True(t, skipped, "PDF skip must be reported explicitly")
}

func TestRunPDFIgnoresStrayHTML(t *testing.T) {
	f := newFixture(t, defaultTypes, map[string]string{
		"tutorials/3.0/using.md": "# Using",
	})
	require.NoError(t, f.dispatcher.RunHTML(context.Background(), f.build))

	stray := filepath.Join(f.output, "unknown", "page.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(stray), 0o755))
	require.NoError(t, os.WriteFile(stray, []byte("<html/>"), 0o644))

	require.NoError(t, f.dispatcher.RunPDF(context.Background(), f.build, func(id string) string { return "http://x/" + id }))
	require.Len(t, f.runner.recorded("wkhtmltopdf"), 1)
}

func TestIncrementalSkip(t *testing.T) {
	f := newFixture(t, defaultTypes, map[string]string{
		"tutorials/3.0/using.md": "# Using",
	})
	f.dispatcher.WithSkip(func(docs.Document) (bool, string) { return true, "unchanged" })

	require.NoError(t, f.dispatcher.RunHTML(context.Background(), f.build))
	require.NoError(t, f.dispatcher.RunEbook(context.Background(), f.build))
	require.NoError(t, f.dispatcher.RunPDF(context.Background(), f.build, func(id string) string { return "http://x/" + id }))

	assert.Empty(t, f.runner.commands)
	assert.Equal(t, 2, f.build.Skipped()) // html + ebook; no html output means no pdf walk hit
	assert.Equal(t, report.OutcomeSuccess, f.build.Outcome())
}

func TestConverterFailureCapturesStderr(t *testing.T) {
	f := newFixture(t, defaultTypes, map[string]string{
		"articles/intro.md": "# Intro",
	})
	f.runner.failOn = func(Command) bool { return true }

	require.NoError(t, f.dispatcher.RunHTML(context.Background(), f.build))

	require.Equal(t, 1, f.build.Failed())
	assert.Equal(t, "synthetic converter failure", f.build.Results[0].Stderr)
	assert.Equal(t, report.OutcomeFailure, f.build.Outcome())
}
