// Package pipeline orchestrates a full documentation build: source
// acquisition, collection, conversion dispatch across formats, the PDF
// server session and post-run bookkeeping.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"git.home.luguber.info/inful/docpress/internal/collect"
	"git.home.luguber.info/inful/docpress/internal/config"
	"git.home.luguber.info/inful/docpress/internal/convert"
	"git.home.luguber.info/inful/docpress/internal/docs"
	"git.home.luguber.info/inful/docpress/internal/gitsource"
	"git.home.luguber.info/inful/docpress/internal/history"
	"git.home.luguber.info/inful/docpress/internal/incremental"
	"git.home.luguber.info/inful/docpress/internal/linkcheck"
	"git.home.luguber.info/inful/docpress/internal/logfields"
	"git.home.luguber.info/inful/docpress/internal/mdcheck"
	"git.home.luguber.info/inful/docpress/internal/metrics"
	"git.home.luguber.info/inful/docpress/internal/notify"
	"git.home.luguber.info/inful/docpress/internal/report"
	"git.home.luguber.info/inful/docpress/internal/server"
	"git.home.luguber.info/inful/docpress/internal/workspace"
)

// ErrBuildFailed signals that the run completed but at least one conversion
// job failed. Callers map it to a non-zero exit status.
var ErrBuildFailed = errors.New("docpress: build completed with failures")

// Options tune a single run.
type Options struct {
	Formats     []docs.Format // requested formats; empty means configured set
	OutputDir   string        // overrides output.directory when set
	Incremental bool          // skip unchanged documents via fingerprints
}

// Pipeline runs builds for one loaded configuration.
type Pipeline struct {
	cfg            *config.Config
	store          *history.Store
	recorder       metrics.Recorder
	metricsHandler http.Handler
	publisher      *notify.Publisher
	runner         convert.Runner
}

// New creates a pipeline. Optional collaborators (history store, metrics,
// notifications) are attached with the With methods.
func New(cfg *config.Config) *Pipeline {
	return &Pipeline{cfg: cfg, recorder: metrics.NoopRecorder{}}
}

// WithHistory attaches the build-history store.
func (p *Pipeline) WithHistory(s *history.Store) *Pipeline { p.store = s; return p }

// WithMetrics attaches a recorder and the handler served at /metrics while
// the PDF server session is up.
func (p *Pipeline) WithMetrics(r metrics.Recorder, h http.Handler) *Pipeline {
	p.recorder = r
	p.metricsHandler = h
	return p
}

// WithPublisher attaches the NATS build-report publisher.
func (p *Pipeline) WithPublisher(pub *notify.Publisher) *Pipeline { p.publisher = pub; return p }

// WithRunner replaces the converter subprocess runner (for tests).
func (p *Pipeline) WithRunner(r convert.Runner) *Pipeline { p.runner = r; return p }

// Collect runs source acquisition, collection and the asset check without
// converting anything. Meant for persistent staging directories; an
// ephemeral workspace would be removed before the caller could look at it.
func (p *Pipeline) Collect(ctx context.Context) (collect.Result, error) {
	manager := p.workspaceManager()
	if err := manager.Create(); err != nil {
		return collect.Result{}, err
	}
	defer func() {
		if err := manager.Cleanup(); err != nil {
			slog.Error("Workspace cleanup failed", logfields.Error(err))
		}
	}()

	sourceRoot, stagingDir, err := p.prepareSource(ctx, manager)
	if err != nil {
		return collect.Result{}, err
	}

	collected, err := collect.New(sourceRoot, stagingDir, p.cfg.Tokens).Run(ctx)
	if err != nil {
		return collect.Result{}, fmt.Errorf("collection failed: %w", err)
	}
	if _, err := mdcheck.CheckAssets(collected.Set); err != nil {
		slog.Error("Asset check failed", logfields.Error(err))
	}
	return collected, nil
}

// Run executes one build. The returned report is non-nil whenever
// collection succeeded, even if conversions failed.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*report.Build, error) {
	build := report.New()
	slog.Info("Build started", logfields.BuildID(build.ID))

	registry, err := p.cfg.TypeRegistry()
	if err != nil {
		return nil, err
	}
	formats, err := p.resolveFormats(opts)
	if err != nil {
		return nil, err
	}

	manager := p.workspaceManager()
	if err := manager.Create(); err != nil {
		return nil, err
	}
	defer func() {
		if err := manager.Cleanup(); err != nil {
			slog.Error("Workspace cleanup failed", logfields.Error(err))
		}
	}()

	sourceRoot, stagingDir, err := p.prepareSource(ctx, manager)
	if err != nil {
		return nil, err
	}

	collected, err := collect.New(sourceRoot, stagingDir, p.cfg.Tokens).Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("collection failed: %w", err)
	}
	build.Documents = collected.Documents
	build.Assets = collected.Assets
	p.recorder.RecordDocuments(collected.Documents)

	if _, err := mdcheck.CheckAssets(collected.Set); err != nil {
		slog.Error("Asset check failed", logfields.Error(err))
	}

	outputRoot, err := p.prepareOutput(opts)
	if err != nil {
		return nil, err
	}

	dispatcher := convert.NewDispatcher(p.cfg, stagingDir, outputRoot, collected.Set, registry).
		WithRecorder(p.recorder)
	if p.runner != nil {
		dispatcher.WithRunner(p.runner)
	}

	var decider *incremental.Decider
	if opts.Incremental && p.store != nil {
		decider = incremental.NewDecider(ctx, p.store, registry, outputRoot)
		dispatcher.WithSkip(decider.Skip)
	}

	dispatcher.WarnUnknownTypes(build)

	if err := p.dispatch(ctx, dispatcher, build, formats, outputRoot); err != nil {
		return build, err
	}

	build.Finish()
	p.recorder.RecordBuild(build.Outcome(), build.Duration)
	p.finishBookkeeping(ctx, build, decider)

	slog.Info("Build finished",
		logfields.BuildID(build.ID),
		slog.String("outcome", build.Outcome()),
		slog.Int("succeeded", build.Succeeded()),
		slog.Int("failed", build.Failed()),
		slog.Int("skipped", build.Skipped()),
		logfields.DurationMS(float64(build.Duration.Milliseconds())))

	if build.Failed() > 0 {
		return build, fmt.Errorf("%w: %d failed jobs", ErrBuildFailed, build.Failed())
	}
	return build, nil
}

// dispatch runs the three conversion phases. E-books render concurrently
// with the HTML phase; the PDF phase waits for HTML completion and runs
// against the server session, which is stopped on every exit path.
func (p *Pipeline) dispatch(ctx context.Context, d *convert.Dispatcher, build *report.Build, formats []docs.Format, outputRoot string) error {
	want := make(map[docs.Format]bool, len(formats))
	for _, f := range formats {
		want[f] = true
	}
	// PDF renders the generated HTML, so requesting it implies the HTML phase.
	runHTML := want[docs.FormatHTML] || want[docs.FormatPDF]

	ebookErr := make(chan error, 1)
	if want[docs.FormatEbook] {
		go func() { ebookErr <- d.RunEbook(ctx, build) }()
	} else {
		ebookErr <- nil
	}

	var htmlFailed error
	if runHTML {
		htmlFailed = d.RunHTML(ctx, build)
	}

	if err := <-ebookErr; err != nil {
		return fmt.Errorf("ebook phase failed: %w", err)
	}
	if htmlFailed != nil {
		return fmt.Errorf("html phase failed: %w", htmlFailed)
	}

	if runHTML {
		if _, err := linkcheck.CheckOutput(outputRoot); err != nil {
			slog.Error("Output link check failed", logfields.Error(err))
		}
	}

	if !want[docs.FormatPDF] {
		return nil
	}

	ctrl := server.NewController(p.cfg.Server.Port, p.cfg.Server.App, outputRoot, p.cfg.Server.ReadyTimeoutDuration())
	if p.metricsHandler != nil {
		ctrl.WithMetricsHandler(p.metricsHandler)
	}
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := ctrl.Stop(context.Background()); err != nil {
			slog.Error("Failed to stop document server", logfields.Error(err))
		}
	}()

	if err := d.RunPDF(ctx, build, ctrl.DocumentURL); err != nil {
		return fmt.Errorf("pdf phase failed: %w", err)
	}
	return nil
}

// finishBookkeeping records history, fingerprints and notifications. These
// are post-run conveniences; their failures are logged, never fatal.
func (p *Pipeline) finishBookkeeping(ctx context.Context, build *report.Build, decider *incremental.Decider) {
	if p.store != nil {
		if err := p.store.RecordBuild(ctx, build); err != nil {
			slog.Error("Failed to record build history", logfields.Error(err))
		}
	}
	if decider != nil {
		if err := decider.Commit(ctx, build.FailedDocuments()); err != nil {
			slog.Error("Failed to persist fingerprints", logfields.Error(err))
		}
	}
	if p.publisher != nil {
		if err := p.publisher.Publish(build); err != nil {
			slog.Error("Failed to publish build report", logfields.Error(err))
		}
	}
}

func (p *Pipeline) resolveFormats(opts Options) ([]docs.Format, error) {
	if len(opts.Formats) > 0 {
		return opts.Formats, nil
	}
	return p.cfg.RequestedFormats()
}

func (p *Pipeline) workspaceManager() *workspace.Manager {
	if p.cfg.Staging.Directory != "" {
		return workspace.NewPersistentManager(p.cfg.Staging.Directory)
	}
	return workspace.NewManager("")
}

// prepareSource resolves the source tree, cloning git sources into the
// workspace. Git checkouts get a separate staging subdirectory so the
// checkout itself is never staged.
func (p *Pipeline) prepareSource(ctx context.Context, manager *workspace.Manager) (sourceRoot, stagingDir string, err error) {
	stagingDir = manager.Path()
	sourceRoot = p.cfg.Source.Root

	if p.cfg.Source.Git != nil && p.cfg.Source.Git.URL != "" {
		sourceRoot, err = gitsource.Fetch(ctx, p.cfg.Source.Git, manager.Path())
		if err != nil {
			return "", "", err
		}
		stagingDir, err = manager.CreateSubdir("staging")
		if err != nil {
			return "", "", err
		}
	}
	return sourceRoot, stagingDir, nil
}

// prepareOutput resolves and prepares the output root. Cleaning is
// suppressed for incremental runs; previous outputs are what the skip
// decision checks against.
func (p *Pipeline) prepareOutput(opts Options) (string, error) {
	outputRoot := p.cfg.Output.Directory
	if opts.OutputDir != "" {
		outputRoot = opts.OutputDir
	}
	if p.cfg.Output.Clean && !opts.Incremental && opts.OutputDir == "" {
		if err := os.RemoveAll(outputRoot); err != nil {
			return "", fmt.Errorf("failed to clean output directory: %w", err)
		}
	}
	if err := os.MkdirAll(outputRoot, 0o750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return outputRoot, nil
}
