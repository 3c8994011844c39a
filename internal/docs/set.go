package docs

import "fmt"

// Set is the document registry built during collection and read-only
// afterwards. It preserves insertion order so dispatch output is stable.
type Set struct {
	docs []Document
	byID map[string]int
}

// NewSet returns an empty document set.
func NewSet() *Set {
	return &Set{byID: make(map[string]int)}
}

// Add appends a document, rejecting duplicate ids. Two source files mapping
// to the same id would otherwise silently overwrite each other's outputs.
func (s *Set) Add(doc Document) error {
	if _, exists := s.byID[doc.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, doc.ID)
	}
	s.byID[doc.ID] = len(s.docs)
	s.docs = append(s.docs, doc)
	return nil
}

// Get looks up a document by id.
func (s *Set) Get(id string) (Document, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Document{}, false
	}
	return s.docs[i], true
}

// Documents returns all documents in insertion order. The returned slice
// must not be mutated.
func (s *Set) Documents() []Document {
	return s.docs
}

// Len returns the number of documents in the set.
func (s *Set) Len() int {
	return len(s.docs)
}
