package pipeline

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpress/internal/config"
	"git.home.luguber.info/inful/docpress/internal/convert"
	"git.home.luguber.info/inful/docpress/internal/docs"
	"git.home.luguber.info/inful/docpress/internal/history"
)

// stubRunner pretends to be the external converters: it records every
// invocation and writes the expected output file.
type stubRunner struct {
	mu       sync.Mutex
	commands []convert.Command
	failOn   func(convert.Command) bool
}

func (r *stubRunner) Run(ctx context.Context, cmd convert.Command) error {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()

	if r.failOn != nil && r.failOn(cmd) {
		return &convert.ExitError{Command: cmd, Stderr: "stub failure", Err: errors.New("exit status 1")}
	}
	if out := outputOf(cmd); out != "" {
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		return os.WriteFile(out, []byte("rendered"), 0o644)
	}
	return nil
}

func outputOf(cmd convert.Command) string {
	for _, arg := range cmd.Args {
		if strings.HasPrefix(arg, "--output=") {
			return strings.TrimPrefix(arg, "--output=")
		}
	}
	if len(cmd.Args) > 0 {
		last := cmd.Args[len(cmd.Args)-1]
		switch strings.ToLower(filepath.Ext(last)) {
		case ".mobi", ".pdf":
			return last
		}
	}
	return ""
}

func (r *stubRunner) count(binary string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.commands {
		if c.Name == binary {
			n++
		}
	}
	return n
}

func testConfig(t *testing.T, sourceRoot, outputDir string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Source.Root = sourceRoot
	cfg.Output.Directory = outputDir
	cfg.Tokens = map[string]string{"documentVersion": "1.0", "projectVersion": "2.0"}
	cfg.Types = map[string][]string{
		"tutorials": {"html", "ebook", "pdf"},
		"articles":  {"html"},
	}
	cfg.Templates.Directory = t.TempDir()
	cfg.Server.Port = freePort(t)
	require.NoError(t, cfg.Validate())
	return cfg
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port
}

func writeSource(t *testing.T, root string) {
	t.Helper()
	files := map[string]string{
		"tutorials/using.md":  "# Using @documentVersion@\n",
		"articles/intro.md":   "# Intro\n",
		"tutorials/logo.png":  "png-bytes",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestRunFullBuild(t *testing.T) {
	source := t.TempDir()
	output := t.TempDir()
	writeSource(t, source)

	cfg := testConfig(t, source, output)
	runner := &stubRunner{}

	build, err := New(cfg).WithRunner(runner).Run(context.Background(), Options{})
	require.NoError(t, err)
	require.NotNil(t, build)

	assert.Equal(t, 2, build.Documents)
	assert.Equal(t, 1, build.Assets)
	assert.Equal(t, 0, build.Failed())

	// tutorials: html + epub + mobi + pdf, articles: html only.
	assert.FileExists(t, filepath.Join(output, "tutorials", "using.html"))
	assert.FileExists(t, filepath.Join(output, "tutorials", "using.epub"))
	assert.FileExists(t, filepath.Join(output, "tutorials", "using.mobi"))
	assert.FileExists(t, filepath.Join(output, "tutorials", "using.pdf"))
	assert.FileExists(t, filepath.Join(output, "articles", "intro.html"))
	assert.NoFileExists(t, filepath.Join(output, "articles", "intro.pdf"))

	// Resources are mirrored next to generated pages.
	assert.FileExists(t, filepath.Join(output, "tutorials", "logo.png"))

	// 2 html + 1 epub pandoc runs, 1 mobi, 1 pdf.
	assert.Equal(t, 3, runner.count("pandoc"))
	assert.Equal(t, 1, runner.count("ebook-convert"))
	assert.Equal(t, 1, runner.count("wkhtmltopdf"))
}

func TestRunReportsConverterFailures(t *testing.T) {
	source := t.TempDir()
	output := t.TempDir()
	writeSource(t, source)

	cfg := testConfig(t, source, output)
	runner := &stubRunner{failOn: func(cmd convert.Command) bool {
		return strings.Contains(cmd.String(), "intro.html")
	}}

	build, err := New(cfg).WithRunner(runner).Run(context.Background(), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBuildFailed)
	require.NotNil(t, build)
	assert.Equal(t, 1, build.Failed())
}

func TestCollect(t *testing.T) {
	source := t.TempDir()
	staging := t.TempDir()
	writeSource(t, source)

	cfg := testConfig(t, source, t.TempDir())
	cfg.Staging.Directory = staging
	runner := &stubRunner{}

	result, err := New(cfg).WithRunner(runner).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Documents)
	assert.Equal(t, 2, result.Set.Len())
	assert.Empty(t, runner.commands)
	assert.FileExists(t, filepath.Join(staging, "tutorials", "using.md"))

	staged, err := os.ReadFile(filepath.Join(staging, "tutorials", "using.md"))
	require.NoError(t, err)
	assert.Contains(t, string(staged), "1.0")
}

func TestRunHonorsFormatSubset(t *testing.T) {
	source := t.TempDir()
	output := t.TempDir()
	writeSource(t, source)

	cfg := testConfig(t, source, output)
	runner := &stubRunner{}

	_, err := New(cfg).WithRunner(runner).Run(context.Background(), Options{Formats: []docs.Format{docs.FormatHTML}})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(output, "tutorials", "using.html"))
	assert.NoFileExists(t, filepath.Join(output, "tutorials", "using.epub"))
	assert.NoFileExists(t, filepath.Join(output, "tutorials", "using.pdf"))
}

func TestRunIncrementalSkipsUnchanged(t *testing.T) {
	source := t.TempDir()
	output := t.TempDir()
	writeSource(t, source)

	cfg := testConfig(t, source, output)
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	runner := &stubRunner{}
	p := New(cfg).WithRunner(runner).WithHistory(store)

	first, err := p.Run(context.Background(), Options{Incremental: true})
	require.NoError(t, err)
	assert.Equal(t, 0, first.Skipped())

	second, err := p.Run(context.Background(), Options{Incremental: true})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Failed())
	assert.Greater(t, second.Skipped(), 0)

	records, err := store.RecentBuilds(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
