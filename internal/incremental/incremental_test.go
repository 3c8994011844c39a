package incremental

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpress/internal/docs"
	"git.home.luguber.info/inful/docpress/internal/history"
)

func testRegistry(t *testing.T) *docs.TypeRegistry {
	t.Helper()
	reg, err := docs.NewTypeRegistry(map[string][]string{
		"tutorials": {"html", "pdf"},
	})
	require.NoError(t, err)
	return reg
}

func writeDoc(t *testing.T, dir, rel, content string) docs.Document {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	c, err := docs.Classify(rel)
	require.NoError(t, err)
	return docs.Document{ID: c.ID, Type: c.Type, SourcePath: path}
}

func writeOutputs(t *testing.T, outputRoot, id string, exts ...string) {
	t.Helper()
	base := filepath.Join(outputRoot, filepath.FromSlash(id))
	require.NoError(t, os.MkdirAll(filepath.Dir(base), 0o755))
	for _, ext := range exts {
		require.NoError(t, os.WriteFile(base+ext, []byte("out"), 0o644))
	}
}

func TestSkipRequiresStoredFingerprintAndOutputs(t *testing.T) {
	ctx := context.Background()
	staging := t.TempDir()
	output := t.TempDir()

	store, err := history.Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	doc := writeDoc(t, staging, "tutorials/using.md", "# Using\n")
	d := NewDecider(ctx, store, testRegistry(t), output)

	// First run: nothing stored yet.
	skip, _ := d.Skip(doc)
	assert.False(t, skip)

	require.NoError(t, d.Commit(ctx, nil))

	// Fingerprint stored but outputs missing.
	d2 := NewDecider(ctx, store, testRegistry(t), output)
	skip, _ = d2.Skip(doc)
	assert.False(t, skip)

	// Fingerprint stored and outputs present.
	writeOutputs(t, output, doc.ID, ".html", ".pdf")
	d3 := NewDecider(ctx, store, testRegistry(t), output)
	skip, reason := d3.Skip(doc)
	assert.True(t, skip)
	assert.Equal(t, "unchanged", reason)
}

func TestSkipDetectsContentChange(t *testing.T) {
	ctx := context.Background()
	staging := t.TempDir()
	output := t.TempDir()

	store, err := history.Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	doc := writeDoc(t, staging, "tutorials/using.md", "# Using\n")
	writeOutputs(t, output, doc.ID, ".html", ".pdf")

	d := NewDecider(ctx, store, testRegistry(t), output)
	d.Skip(doc)
	require.NoError(t, d.Commit(ctx, nil))

	changed := writeDoc(t, staging, "tutorials/using.md", "# Using, revised\n")
	d2 := NewDecider(ctx, store, testRegistry(t), output)
	skip, _ := d2.Skip(changed)
	assert.False(t, skip)
}

func TestCommitSkipsFailedDocuments(t *testing.T) {
	ctx := context.Background()
	staging := t.TempDir()
	output := t.TempDir()

	store, err := history.Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	doc := writeDoc(t, staging, "tutorials/using.md", "# Using\n")
	writeOutputs(t, output, doc.ID, ".html", ".pdf")

	d := NewDecider(ctx, store, testRegistry(t), output)
	d.Skip(doc)
	require.NoError(t, d.Commit(ctx, map[string]bool{doc.ID: true}))

	_, found, err := store.Fingerprint(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileFingerprintStable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.md")
	require.NoError(t, os.WriteFile(path, []byte("# A\n"), 0o644))

	fp1, err := FileFingerprint(path)
	require.NoError(t, err)
	fp2, err := FileFingerprint(path)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
	assert.NotEmpty(t, fp1)
}
