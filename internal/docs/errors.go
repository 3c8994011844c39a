package docs

import "errors"

// Sentinel errors used to classify document-model failures.
// They should always be wrapped with contextual information at the call site.
var (
	// ErrUnclassifiable indicates a document path that has no parent directory
	// to derive a type from (file directly at the source root).
	ErrUnclassifiable = errors.New("docpress: document not classifiable")

	// ErrDuplicateID indicates two source files mapped to the same document id.
	ErrDuplicateID = errors.New("docpress: duplicate document id")

	// ErrUnknownFormat indicates a format name outside html/ebook/pdf.
	ErrUnknownFormat = errors.New("docpress: unknown output format")
)
