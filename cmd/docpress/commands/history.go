package commands

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/docpress/internal/config"
	"git.home.luguber.info/inful/docpress/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int `short:"n" help:"Number of builds to show" default:"10"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.History == nil || cfg.History.Path == "" {
		return fmt.Errorf("history is not configured: set history.path")
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.RecentBuilds(context.Background(), h.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No builds recorded yet")
		return nil
	}

	fmt.Printf("%-36s  %-20s  %-8s  %5s  %5s  %5s  %7s  %s\n",
		"ID", "STARTED", "OUTCOME", "DOCS", "OK", "FAIL", "SKIPPED", "DURATION")
	for _, r := range records {
		fmt.Printf("%-36s  %-20s  %-8s  %5d  %5d  %5d  %7d  %s\n",
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Outcome,
			r.Documents,
			r.Succeeded,
			r.Failed,
			r.Skipped,
			r.Duration.Round(time.Millisecond))
	}
	return nil
}
