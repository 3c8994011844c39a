// Package mdcheck inspects staged Markdown for asset references that will
// not resolve after conversion. Issues are warnings; they never abort the
// run.
package mdcheck

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"git.home.luguber.info/inful/docpress/internal/docs"
	"git.home.luguber.info/inful/docpress/internal/logfields"
)

// Issue is one unresolvable relative reference.
type Issue struct {
	Document    string // document id
	Destination string // the reference as written
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: unresolved asset %q", i.Document, i.Destination)
}

// CheckAssets parses every staged document and reports relative image and
// link destinations that do not exist in the staging area. External URLs
// and fragment links are ignored.
func CheckAssets(set *docs.Set) ([]Issue, error) {
	var issues []Issue
	md := goldmark.New()

	for _, doc := range set.Documents() {
		body, err := os.ReadFile(doc.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read staged document %s: %w", doc.ID, err)
		}

		for _, dest := range extractDestinations(md, body) {
			if !isRelative(dest) {
				continue
			}
			target := filepath.Join(filepath.Dir(doc.SourcePath), filepath.FromSlash(stripFragment(dest)))
			if _, err := os.Stat(target); err != nil {
				issue := Issue{Document: doc.ID, Destination: dest}
				issues = append(issues, issue)
				slog.Warn("Unresolved asset reference",
					logfields.Document(doc.ID),
					slog.String("destination", dest))
			}
		}
	}

	return issues, nil
}

// extractDestinations walks the Goldmark AST collecting link and image
// destinations.
func extractDestinations(md goldmark.Markdown, body []byte) []string {
	root := md.Parser().Parse(text.NewReader(body))

	var dests []string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Image:
			dests = append(dests, string(node.Destination))
		case *gmast.Link:
			dests = append(dests, string(node.Destination))
		}
		return gmast.WalkContinue, nil
	})
	return dests
}

// isRelative reports whether the destination points into the staged tree.
func isRelative(dest string) bool {
	if dest == "" || strings.HasPrefix(dest, "#") || strings.HasPrefix(dest, "/") {
		return false
	}
	if u, err := url.Parse(dest); err == nil && u.Scheme != "" {
		return false
	}
	return true
}

func stripFragment(dest string) string {
	if i := strings.IndexByte(dest, '#'); i >= 0 {
		return dest[:i]
	}
	return dest
}
