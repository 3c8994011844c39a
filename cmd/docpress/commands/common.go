package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docpress/internal/config"
	"git.home.luguber.info/inful/docpress/internal/history"
	"git.home.luguber.info/inful/docpress/internal/logfields"
	"git.home.luguber.info/inful/docpress/internal/metrics"
	"git.home.luguber.info/inful/docpress/internal/notify"
	"git.home.luguber.info/inful/docpress/internal/pipeline"
)

// Global context passed to subcommands if we need to share global state later.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"docpress.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Convert the documentation tree into the configured output formats"`
	Collect CollectCmd `cmd:"" help:"Collect and classify documents into the staging area without converting"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild automatically when the source tree changes"`
	History HistoryCmd `cmd:"" help:"Show recent builds from the history store"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// setupPipeline assembles a pipeline with the optional collaborators the
// configuration enables. The returned cleanup closes them.
func setupPipeline(cfg *config.Config) (*pipeline.Pipeline, func(), error) {
	p := pipeline.New(cfg)
	var closers []func()

	if cfg.History != nil && cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, nil, err
		}
		p.WithHistory(store)
		closers = append(closers, func() { _ = store.Close() })
	}

	if cfg.Metrics.Enabled {
		recorder := metrics.NewPrometheusRecorder(nil)
		p.WithMetrics(recorder, recorder.Handler())
	}

	if cfg.Notify != nil && cfg.Notify.NATSURL != "" {
		publisher, err := notify.NewPublisher(cfg.Notify)
		if err != nil {
			// Builds still run when the broker is down.
			slog.Warn("Notifications disabled", logfields.Error(err))
		} else {
			p.WithPublisher(publisher)
			closers = append(closers, publisher.Close)
		}
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return p, cleanup, nil
}
