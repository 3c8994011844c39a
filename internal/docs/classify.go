package docs

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Classification is the result of deriving a document id and type from a
// source path relative to the documentation root.
type Classification struct {
	ID   string
	Type string
}

// versionSegmentPattern matches version-numbered directory names such as
// "2.1", "3.0.4" or "2.1.x". Documentation for multiple product versions is
// organized as tutorials/2.1/..., tutorials/3.0/... and the type must be
// recovered regardless of version depth.
var versionSegmentPattern = regexp.MustCompile(`^\d+\.\d+(\.(\d+|x))?$`)

// IsVersionSegment reports whether a path segment is a version-number
// directory that must be skipped when inferring the document type.
func IsVersionSegment(name string) bool {
	return versionSegmentPattern.MatchString(name)
}

// NormalizeID converts a relative source path into a canonical document id:
// platform separators become '/', the trailing .md extension is stripped,
// and the result is NFC-normalized so ids are stable across filesystems
// that decompose Unicode filenames.
func NormalizeID(rel string) string {
	id := filepath.ToSlash(rel)
	id = strings.TrimSuffix(id, ".md")
	return norm.NFC.String(id)
}

// Classify derives the document id and type from a Markdown file's path
// relative to the source root.
//
// The type is the name of the immediate parent directory, unless that name
// is a version segment, in which case the grandparent directory is used. A
// file directly at the source root has no directory to derive a type from
// and is rejected rather than silently misclassified.
func Classify(rel string) (Classification, error) {
	id := NormalizeID(rel)

	dir := path.Dir(id)
	if dir == "." || dir == "/" {
		return Classification{}, fmt.Errorf("%w: %q has no parent directory", ErrUnclassifiable, rel)
	}

	parent := path.Base(dir)
	if IsVersionSegment(parent) {
		grand := path.Dir(dir)
		if grand == "." || grand == "/" {
			return Classification{}, fmt.Errorf("%w: %q has only a version directory above it", ErrUnclassifiable, rel)
		}
		parent = path.Base(grand)
	}

	return Classification{ID: id, Type: parent}, nil
}
