package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docpress/internal/config"
)

// CollectCmd implements the 'collect' command: staging and classification
// only, no converters involved.
type CollectCmd struct {
	Dir string `short:"d" help:"Staging directory to collect into (kept after the run)"`
}

func (c *CollectCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.Dir != "" {
		cfg.Staging.Directory = c.Dir
	}
	if cfg.Staging.Directory == "" {
		return fmt.Errorf("collect needs a staging directory: set staging.directory or pass --dir")
	}

	p, cleanup, err := setupPipeline(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := p.Collect(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Collected %d documents and %d assets into %s\n", result.Documents, result.Assets, cfg.Staging.Directory)
	for _, doc := range result.Set.Documents() {
		fmt.Printf("  %-12s %s\n", doc.Type, doc.ID)
	}
	return nil
}
