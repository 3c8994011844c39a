package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/docpress/internal/config"
	"git.home.luguber.info/inful/docpress/internal/logfields"
	"git.home.luguber.info/inful/docpress/internal/pipeline"
	"git.home.luguber.info/inful/docpress/internal/watch"
)

// WatchCmd implements the 'watch' command: an initial build followed by
// automatic rebuilds on source changes until interrupted.
type WatchCmd struct {
	Every       time.Duration `help:"Also rebuild on a fixed interval (e.g. 30m)"`
	Debounce    time.Duration `help:"Quiet period after a change before rebuilding" default:"2s"`
	Incremental bool          `short:"i" help:"Skip documents whose content and outputs are unchanged"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Source.Root == "" {
		return fmt.Errorf("watch requires a local source.root (git sources have nothing to watch)")
	}

	p, cleanup, err := setupPipeline(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := pipeline.Options{Incremental: w.Incremental}
	rebuild := func(ctx context.Context) error {
		_, err := p.Run(ctx, opts)
		if errors.Is(err, pipeline.ErrBuildFailed) {
			// Failures are already logged per job; keep watching.
			return nil
		}
		return err
	}

	if err := rebuild(ctx); err != nil {
		return err
	}

	watcher, err := watch.NewWatcher(cfg.Source.Root, w.Debounce, rebuild)
	if err != nil {
		return err
	}
	if w.Every > 0 {
		if err := watcher.ScheduleEvery(w.Every); err != nil {
			return err
		}
		slog.Info("Scheduled interval rebuilds", slog.Duration("every", w.Every))
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	slog.Info("Watching for changes, press Ctrl-C to stop", logfields.Path(cfg.Source.Root))
	<-ctx.Done()
	slog.Info("Shutting down watcher")
	return nil
}
