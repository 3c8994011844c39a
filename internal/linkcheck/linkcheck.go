// Package linkcheck scans generated HTML for local references that the
// ephemeral server will not be able to resolve during PDF rendering.
package linkcheck

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/docpress/internal/logfields"
)

// Issue is one local reference with no file behind it.
type Issue struct {
	File      string // HTML file relative to the output root
	Reference string // the reference as written
}

// CheckOutput walks the output root and reports href/src references that
// point at missing local files. Warnings only; PDF rendering proceeds.
func CheckOutput(outputRoot string) ([]Issue, error) {
	var issues []Issue

	err := filepath.Walk(outputRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.EqualFold(filepath.Ext(path), ".html") {
			return nil
		}

		rel, err := filepath.Rel(outputRoot, path)
		if err != nil {
			return err
		}

		refs, err := extractLocalRefs(path)
		if err != nil {
			slog.Warn("Failed to parse generated HTML", logfields.File(rel), logfields.Error(err))
			return nil
		}

		for _, ref := range refs {
			target := filepath.Join(filepath.Dir(path), filepath.FromSlash(ref))
			if _, err := os.Stat(target); err != nil {
				issues = append(issues, Issue{File: filepath.ToSlash(rel), Reference: ref})
				slog.Warn("Generated HTML references missing local file",
					logfields.File(filepath.ToSlash(rel)),
					slog.String("reference", ref))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("link check walk failed: %w", err)
	}
	return issues, nil
}

// extractLocalRefs parses one HTML file and collects relative href/src
// values. External URLs, anchors and absolute paths are skipped.
func extractLocalRefs(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return extractLocalRefsFromReader(f)
}

func extractLocalRefsFromReader(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var refs []string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key != "href" && attr.Key != "src" {
					continue
				}
				if isLocalRef(attr.Val) {
					refs = append(refs, stripQuery(attr.Val))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)
	return refs, nil
}

func isLocalRef(val string) bool {
	if val == "" || strings.HasPrefix(val, "#") || strings.HasPrefix(val, "/") {
		return false
	}
	if u, err := url.Parse(val); err == nil && (u.Scheme != "" || u.Host != "") {
		return false
	}
	return true
}

func stripQuery(val string) string {
	for _, sep := range []byte{'#', '?'} {
		if i := strings.IndexByte(val, sep); i >= 0 {
			val = val[:i]
		}
	}
	return val
}
