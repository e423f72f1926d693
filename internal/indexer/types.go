package indexer

import "notesearch/internal/document"

// Chunk is a retrievable slice of one document.
type Chunk struct {
	ChunkID     string        // Deterministic UUID derived from doc id and heading path
	DocID       string        // Source document id
	Kind        document.Kind // Content kind copied from the document
	Title       string        // Document title (bookmark title for bookmark items)
	URL         string        // Optional link
	TopHeading  string        // First heading in HeadingPath, or Title when the path is empty
	HeadingPath []string      // Enclosing H2/H3 headings, or [category] for bookmarks
	Text        string        // Chunk body
	ContentHash string        // sha256 of Text, hex encoded
}
