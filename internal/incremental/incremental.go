// Package incremental decides which documents can skip conversion based on
// content fingerprints persisted in the history store.
package incremental

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/docpress/internal/docs"
	"git.home.luguber.info/inful/docpress/internal/history"
	"git.home.luguber.info/inful/docpress/internal/logfields"
)

// FileFingerprint computes the canonical content fingerprint of a staged
// Markdown file. Token substitution happens before staging, so a changed
// project version changes every fingerprint and forces reconversion.
func FileFingerprint(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return mdfp.CalculateFingerprintFromParts("", string(content)), nil
}

// Decider implements the dispatcher's skip decision. A document is skipped
// only when its fingerprint matches the stored one AND every expected
// output file already exists.
type Decider struct {
	ctx        context.Context
	store      *history.Store
	registry   *docs.TypeRegistry
	outputRoot string

	mu      sync.Mutex
	current map[string]string // id -> fingerprint computed this run
}

// NewDecider creates a decider bound to the run context.
func NewDecider(ctx context.Context, store *history.Store, registry *docs.TypeRegistry, outputRoot string) *Decider {
	return &Decider{
		ctx:        ctx,
		store:      store,
		registry:   registry,
		outputRoot: outputRoot,
		current:    make(map[string]string),
	}
}

// Skip reports whether the document's conversions can be skipped.
func (d *Decider) Skip(doc docs.Document) (bool, string) {
	fp, err := FileFingerprint(doc.SourcePath)
	if err != nil {
		slog.Warn("Failed to fingerprint document, converting anyway", logfields.Document(doc.ID), logfields.Error(err))
		return false, ""
	}

	d.mu.Lock()
	d.current[doc.ID] = fp
	d.mu.Unlock()

	stored, found, err := d.store.Fingerprint(d.ctx, doc.ID)
	if err != nil {
		slog.Warn("Fingerprint lookup failed, converting anyway", logfields.Document(doc.ID), logfields.Error(err))
		return false, ""
	}
	if !found || stored != fp {
		return false, ""
	}
	if !d.outputsPresent(doc) {
		return false, ""
	}
	return true, "unchanged"
}

// outputsPresent checks every output file the document's type implies.
func (d *Decider) outputsPresent(doc docs.Document) bool {
	base := filepath.Join(d.outputRoot, filepath.FromSlash(doc.ID))
	for _, f := range d.registry.Formats(doc.Type) {
		var paths []string
		switch f {
		case docs.FormatHTML:
			paths = []string{base + ".html"}
		case docs.FormatEbook:
			paths = []string{base + ".epub", base + ".mobi"}
		case docs.FormatPDF:
			paths = []string{base + ".pdf"}
		}
		for _, p := range paths {
			if _, err := os.Stat(p); err != nil {
				return false
			}
		}
	}
	return true
}

// Commit persists the fingerprints of documents that finished the run
// without failures, so the next run can skip them.
func (d *Decider) Commit(ctx context.Context, failedDocs map[string]bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, fp := range d.current {
		if failedDocs[id] {
			continue
		}
		if err := d.store.SetFingerprint(ctx, id, fp); err != nil {
			return err
		}
	}
	return nil
}
