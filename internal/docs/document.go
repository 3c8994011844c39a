package docs

import (
	"fmt"
	"sort"
	"strings"
)

// Format enumerates the output formats a document type can support.
type Format string

const (
	FormatHTML  Format = "html"
	FormatEbook Format = "ebook"
	FormatPDF   Format = "pdf"
)

// AllFormats lists every supported format in dispatch order.
func AllFormats() []Format {
	return []Format{FormatHTML, FormatEbook, FormatPDF}
}

// ParseFormat converts user input (case-insensitive) into a typed Format.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(FormatHTML):
		return FormatHTML, nil
	case string(FormatEbook):
		return FormatEbook, nil
	case string(FormatPDF):
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
	}
}

// Document represents a collected Markdown document.
//
// ID is the relative source path with the .md extension stripped and
// separators normalized to '/'. It keys inputs to outputs across all
// formats. Documents are immutable once created.
type Document struct {
	ID         string // stable path-derived identifier
	Type       string // category governing supported formats
	SourcePath string // absolute path in the staging area
}

// TypeRegistry maps a document type name to the set of formats it supports.
// Static configuration, read-only during a run.
type TypeRegistry struct {
	formats map[string]map[Format]struct{}
}

// NewTypeRegistry builds a registry from a type name to format-name table.
func NewTypeRegistry(table map[string][]string) (*TypeRegistry, error) {
	reg := &TypeRegistry{formats: make(map[string]map[Format]struct{}, len(table))}
	for typ, names := range table {
		set := make(map[Format]struct{}, len(names))
		for _, name := range names {
			f, err := ParseFormat(name)
			if err != nil {
				return nil, fmt.Errorf("type %q: %w", typ, err)
			}
			set[f] = struct{}{}
		}
		reg.formats[typ] = set
	}
	return reg, nil
}

// Supports reports whether the given type produces the given format.
// Unknown types support nothing.
func (r *TypeRegistry) Supports(typ string, f Format) bool {
	set, ok := r.formats[typ]
	if !ok {
		return false
	}
	_, ok = set[f]
	return ok
}

// Known reports whether the type has a registry entry at all.
func (r *TypeRegistry) Known(typ string) bool {
	_, ok := r.formats[typ]
	return ok
}

// Formats returns the supported formats for a type in dispatch order.
func (r *TypeRegistry) Formats(typ string) []Format {
	set, ok := r.formats[typ]
	if !ok {
		return nil
	}
	out := make([]Format, 0, len(set))
	for _, f := range AllFormats() {
		if _, ok := set[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Types returns all registered type names, sorted.
func (r *TypeRegistry) Types() []string {
	out := make([]string, 0, len(r.formats))
	for typ := range r.formats {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}
