package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docpress/internal/config"
	"git.home.luguber.info/inful/docpress/internal/docs"
	"git.home.luguber.info/inful/docpress/internal/pipeline"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output      string   `short:"o" help:"Output directory override"`
	Formats     []string `short:"f" help:"Formats to produce this run (html, ebook, pdf); default is the configured set"`
	Incremental bool     `short:"i" help:"Skip documents whose content and outputs are unchanged"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	formats := make([]docs.Format, 0, len(b.Formats))
	for _, name := range b.Formats {
		f, err := docs.ParseFormat(name)
		if err != nil {
			return err
		}
		formats = append(formats, f)
	}

	p, cleanup, err := setupPipeline(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_, err = p.Run(ctx, pipeline.Options{
		Formats:     formats,
		OutputDir:   b.Output,
		Incremental: b.Incremental,
	})
	return err
}
