// Package gitsource clones a git-hosted documentation tree into the
// workspace when the source is configured as a repository URL instead of a
// local directory.
package gitsource

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/docpress/internal/config"
	"git.home.luguber.info/inful/docpress/internal/logfields"
)

// Fetch clones the configured repository into workspaceDir and returns the
// path of the checked-out tree. Any existing checkout is replaced.
func Fetch(ctx context.Context, src *config.GitSourceConfig, workspaceDir string) (string, error) {
	repoPath := filepath.Join(workspaceDir, "source")
	if err := os.RemoveAll(repoPath); err != nil {
		return "", fmt.Errorf("failed to remove existing checkout: %w", err)
	}

	opts := &git.CloneOptions{URL: src.URL, Depth: 1}
	if src.Branch != "" {
		opts.ReferenceName = plumbing.ReferenceName("refs/heads/" + src.Branch)
		opts.SingleBranch = true
	}

	slog.Debug("Cloning documentation source", logfields.URL(src.URL), slog.String("branch", src.Branch))
	repository, err := git.PlainCloneContext(ctx, repoPath, false, opts)
	if err != nil {
		return "", fmt.Errorf("failed to clone documentation source %s: %w", src.URL, err)
	}

	if ref, herr := repository.Head(); herr == nil {
		slog.Info("Documentation source cloned", logfields.URL(src.URL), slog.String("commit", ref.Hash().String()[:8]), logfields.Path(repoPath))
	} else {
		slog.Info("Documentation source cloned", logfields.URL(src.URL), logfields.Path(repoPath))
	}
	return repoPath, nil
}
