// Package convert dispatches conversion jobs to the external converters
// (pandoc, ebook-convert, wkhtmltopdf). It decides what to invoke with
// which arguments for which documents; the rendering itself is delegated.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/docpress/internal/config"
	"git.home.luguber.info/inful/docpress/internal/docs"
	"git.home.luguber.info/inful/docpress/internal/logfields"
	"git.home.luguber.info/inful/docpress/internal/metrics"
	"git.home.luguber.info/inful/docpress/internal/report"
)

// SkipFunc decides whether a document's conversions can be skipped this
// run (incremental mode: content fingerprint unchanged, outputs present).
type SkipFunc func(doc docs.Document) (bool, string)

// Dispatcher maps documents to conversion jobs and executes them.
//
// Failure policy: a converter invocation that exits non-zero is logged with
// its captured stderr and recorded in the build report; the batch continues
// (best-effort semantics, aggregate failure count decides the exit status).
type Dispatcher struct {
	converters   config.ConvertersConfig
	templatesDir string
	stagingDir   string
	outputRoot   string
	set          *docs.Set
	registry     *docs.TypeRegistry
	runner       Runner
	recorder     metrics.Recorder
	skip         SkipFunc

	mu       sync.Mutex
	htmlDone map[string]bool // id -> HTML conversion succeeded
	skipped  map[string]bool // id -> skipped as unchanged
}

// NewDispatcher creates a dispatcher over the collected document set.
func NewDispatcher(cfg *config.Config, stagingDir, outputRoot string, set *docs.Set, registry *docs.TypeRegistry) *Dispatcher {
	return &Dispatcher{
		converters:   cfg.Converters,
		templatesDir: cfg.Templates.Directory,
		stagingDir:   stagingDir,
		outputRoot:   outputRoot,
		set:          set,
		registry:     registry,
		runner:       ExecRunner{},
		recorder:     metrics.NoopRecorder{},
		htmlDone:     make(map[string]bool),
		skipped:      make(map[string]bool),
	}
}

// WithRunner replaces the subprocess runner (for tests).
func (d *Dispatcher) WithRunner(r Runner) *Dispatcher { d.runner = r; return d }

// WithRecorder installs a metrics recorder.
func (d *Dispatcher) WithRecorder(r metrics.Recorder) *Dispatcher { d.recorder = r; return d }

// WithSkip installs the incremental skip decision.
func (d *Dispatcher) WithSkip(s SkipFunc) *Dispatcher { d.skip = s; return d }

// WarnUnknownTypes reports documents whose type has no registry entry.
// Those documents produce no conversion jobs; silence here would hide a
// configuration bug, so each one is surfaced once per run.
func (d *Dispatcher) WarnUnknownTypes(build *report.Build) {
	for _, doc := range d.set.Documents() {
		if !d.registry.Known(doc.Type) {
			slog.Warn("Document type not in registry, no conversions dispatched",
				logfields.Document(doc.ID), logfields.Type(doc.Type))
			build.AddUnclassified()
		}
	}
}

// RunHTML converts every document whose type supports HTML, then copies
// non-Markdown resources into the output root so generated pages can
// reference images and styles by relative path.
func (d *Dispatcher) RunHTML(ctx context.Context, build *report.Build) error {
	for _, doc := range d.set.Documents() {
		if !d.registry.Supports(doc.Type, docs.FormatHTML) {
			continue
		}
		if d.trySkip(doc, docs.FormatHTML, build) {
			continue
		}

		if err := d.EnsureOutputDir(doc.ID); err != nil {
			return err
		}
		out := filepath.Join(d.outputRoot, filepath.FromSlash(doc.ID)+".html")
		cmd := htmlCommand(d.converters, d.templatesDir, doc.Type, doc.SourcePath, out)
		if err := d.execute(ctx, doc, docs.FormatHTML, cmd, build); err == nil {
			d.markHTMLDone(doc.ID)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if err := d.copyResources(ctx); err != nil {
		return fmt.Errorf("failed to copy resources into output root: %w", err)
	}
	return nil
}

// RunEbook renders EPUB and then MOBI for every document whose type
// supports e-books. It has no ordering dependency on the HTML or PDF
// phases and may run concurrently with either.
func (d *Dispatcher) RunEbook(ctx context.Context, build *report.Build) error {
	for _, doc := range d.set.Documents() {
		if !d.registry.Supports(doc.Type, docs.FormatEbook) {
			continue
		}
		if d.trySkip(doc, docs.FormatEbook, build) {
			continue
		}

		if err := d.EnsureOutputDir(doc.ID); err != nil {
			return err
		}
		base := filepath.Join(d.outputRoot, filepath.FromSlash(doc.ID))
		epub := base + ".epub"
		if err := d.execute(ctx, doc, docs.FormatEbook, epubCommand(d.converters, d.templatesDir, doc.Type, doc.SourcePath, epub), build); err != nil {
			// No EPUB, nothing to feed the MOBI converter.
			build.Add(report.JobResult{
				Document: doc.ID, Format: string(docs.FormatEbook),
				Skipped: true, SkipReason: "epub rendering failed, mobi conversion not attempted",
			})
			continue
		}
		_ = d.execute(ctx, doc, docs.FormatEbook, mobiCommand(d.converters, epub, base+".mobi"), build)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// RunPDF walks the generated HTML outputs, recovers document ids from the
// output paths, and renders each supported one via the server URL. Must
// only run after RunHTML has fully completed and the server is Ready.
func (d *Dispatcher) RunPDF(ctx context.Context, build *report.Build, urlFor func(id string) string) error {
	return filepath.WalkDir(d.outputRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(path), ".html") {
			return nil
		}

		rel, err := filepath.Rel(d.outputRoot, path)
		if err != nil {
			return err
		}
		id := docs.NormalizeID(strings.TrimSuffix(filepath.ToSlash(rel), ".html") + ".md")

		doc, ok := d.set.Get(id)
		if !ok {
			slog.Warn("HTML output without a collected document, skipping PDF", logfields.Document(id))
			return nil
		}
		if !d.registry.Supports(doc.Type, docs.FormatPDF) {
			return nil
		}
		if d.wasSkipped(id) {
			build.Add(report.JobResult{
				Document: id, Format: string(docs.FormatPDF),
				Skipped: true, SkipReason: "unchanged",
			})
			return nil
		}
		if !d.isHTMLDone(id) {
			// Never render a stale PDF from a failed HTML conversion.
			slog.Warn("Skipping PDF for document whose HTML conversion failed", logfields.Document(id))
			build.Add(report.JobResult{
				Document: id, Format: string(docs.FormatPDF),
				Skipped: true, SkipReason: "html conversion failed",
			})
			return nil
		}

		out := filepath.Join(d.outputRoot, filepath.FromSlash(id)+".pdf")
		_ = d.execute(ctx, doc, docs.FormatPDF, pdfCommand(d.converters, urlFor(id), out), build)
		return nil
	})
}

// execute runs one job, records the outcome and keeps the batch going on
// converter failure.
func (d *Dispatcher) execute(ctx context.Context, doc docs.Document, format docs.Format, cmd Command, build *report.Build) error {
	slog.Info("Converting document", logfields.Document(doc.ID), logfields.Format(string(format)))
	slog.Debug("Invoking converter", slog.String("command", cmd.String()))

	start := time.Now()
	err := d.runner.Run(ctx, cmd)
	elapsed := time.Since(start)

	result := report.JobResult{Document: doc.ID, Format: string(format), Duration: elapsed}
	if err != nil {
		result.Error = err.Error()
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			result.Stderr = exitErr.Stderr
		}
		slog.Error("Converter failed",
			logfields.Document(doc.ID),
			logfields.Format(string(format)),
			slog.String("stderr", result.Stderr),
			logfields.Error(err))
		d.recorder.RecordConversion(string(format), "failure", elapsed)
	} else {
		d.recorder.RecordConversion(string(format), "success", elapsed)
	}
	build.Add(result)
	return err
}

// trySkip applies the incremental skip decision for one job.
func (d *Dispatcher) trySkip(doc docs.Document, format docs.Format, build *report.Build) bool {
	if d.skip == nil {
		return false
	}
	skip, reason := d.skip(doc)
	if !skip {
		return false
	}
	d.mu.Lock()
	d.skipped[doc.ID] = true
	d.mu.Unlock()
	slog.Debug("Skipping conversion", logfields.Document(doc.ID), logfields.Format(string(format)), slog.String("reason", reason))
	build.Add(report.JobResult{Document: doc.ID, Format: string(format), Skipped: true, SkipReason: reason})
	return true
}

// copyResources mirrors every non-Markdown staged file into the output
// root. PDF rendering depends on these being resolvable via the server.
func (d *Dispatcher) copyResources(ctx context.Context) error {
	count := 0
	err := filepath.WalkDir(d.stagingDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() || strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		rel, err := filepath.Rel(d.stagingDir, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(d.outputRoot, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return err
		}
		count++
		return nil
	})
	if err == nil {
		slog.Info("Copied resources into output root", logfields.Count(count))
	}
	return err
}

// EnsureOutputDir creates the parent directory for a job's output file.
func (d *Dispatcher) EnsureOutputDir(id string) error {
	dir := filepath.Join(d.outputRoot, filepath.Dir(filepath.FromSlash(id)))
	return os.MkdirAll(dir, 0o750)
}

func (d *Dispatcher) markHTMLDone(id string) {
	d.mu.Lock()
	d.htmlDone[id] = true
	d.mu.Unlock()
}

func (d *Dispatcher) isHTMLDone(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.htmlDone[id]
}

func (d *Dispatcher) wasSkipped(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.skipped[id]
}
