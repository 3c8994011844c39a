// Package collect walks the documentation source tree, copies it into the
// staging area and classifies Markdown files into the document set.
// Collection and classification happen in the same pass.
package collect

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docpress/internal/docs"
	"git.home.luguber.info/inful/docpress/internal/logfields"
)

// Result carries the outcome of a collection pass.
type Result struct {
	Set       *docs.Set
	Documents int // Markdown files collected and classified
	Assets    int // non-Markdown files copied (images, scripts, styles)
}

// Collector copies a source tree into staging while substituting tokens in
// Markdown files and building the document set.
type Collector struct {
	sourceRoot string
	stagingDir string
	tokens     map[string]string
}

// New creates a collector for the given source root and staging directory.
func New(sourceRoot, stagingDir string, tokens map[string]string) *Collector {
	return &Collector{sourceRoot: sourceRoot, stagingDir: stagingDir, tokens: tokens}
}

// Run performs the collection pass. Hidden files and directories (leading
// '.') are not part of the documentation tree and are skipped.
func (c *Collector) Run(ctx context.Context) (Result, error) {
	result := Result{Set: docs.NewSet()}

	if _, err := os.Stat(c.sourceRoot); err != nil {
		return result, fmt.Errorf("source root unreadable: %w", err)
	}

	err := filepath.WalkDir(c.sourceRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if strings.HasPrefix(entry.Name(), ".") && path != c.sourceRoot {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(c.sourceRoot, path)
		if err != nil {
			return fmt.Errorf("invalid relative path for %s: %w", path, err)
		}
		dst := filepath.Join(c.stagingDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return fmt.Errorf("failed to create staging directory for %s: %w", rel, err)
		}

		if strings.EqualFold(filepath.Ext(path), ".md") {
			if err := c.collectMarkdown(path, dst, rel, result.Set); err != nil {
				return err
			}
			result.Documents++
			return nil
		}

		if err := copyFile(path, dst); err != nil {
			return fmt.Errorf("failed to copy %s: %w", rel, err)
		}
		result.Assets++
		return nil
	})
	if err != nil {
		return result, err
	}

	slog.Info("Collection completed",
		slog.Int("documents", result.Documents),
		slog.Int("assets", result.Assets),
		logfields.Path(c.stagingDir))
	return result, nil
}

// collectMarkdown substitutes tokens, writes the staged copy and registers
// the classified document.
func (c *Collector) collectMarkdown(src, dst, rel string, set *docs.Set) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", rel, err)
	}

	substituted, err := SubstituteTokens(content, c.tokens)
	if err != nil {
		return fmt.Errorf("%s: %w", rel, err)
	}

	if err := os.WriteFile(dst, substituted, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}

	classification, err := docs.Classify(rel)
	if err != nil {
		return err
	}
	doc := docs.Document{
		ID:         classification.ID,
		Type:       classification.Type,
		SourcePath: dst,
	}
	if err := set.Add(doc); err != nil {
		return err
	}

	slog.Debug("Collected document",
		logfields.Document(doc.ID),
		logfields.Type(doc.Type),
		logfields.File(rel))
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
