package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_store.go -package=mocks notesearch/internal/vectorstore Store

import "context"

// Payload fields stored alongside every vector.
const (
	FieldKind        = "kind"
	FieldTopHeading  = "top_heading"
	FieldDocID       = "doc_id"
	FieldChunkID     = "chunk_id"
	FieldTitle       = "title"
	FieldURL         = "url"
	FieldHeadingPath = "heading_path"
	FieldText        = "text"
	FieldContentHash = "content_hash"
)

// Payload is the metadata persisted with a vector.
type Payload struct {
	Kind        string   `json:"kind"`
	TopHeading  string   `json:"top_heading"`
	DocID       string   `json:"doc_id"`
	ChunkID     string   `json:"chunk_id"`
	Title       string   `json:"title"`
	URL         string   `json:"url,omitempty"`
	HeadingPath []string `json:"heading_path"`
	Text        string   `json:"text"`
	ContentHash string   `json:"content_hash"`
}

// Map converts the payload to a generic map. heading_path is []any so every
// backend can serialize it.
func (p Payload) Map() map[string]any {
	path := make([]any, len(p.HeadingPath))
	for i, h := range p.HeadingPath {
		path[i] = h
	}
	m := map[string]any{
		FieldKind:        p.Kind,
		FieldTopHeading:  p.TopHeading,
		FieldDocID:       p.DocID,
		FieldChunkID:     p.ChunkID,
		FieldTitle:       p.Title,
		FieldHeadingPath: path,
		FieldText:        p.Text,
		FieldContentHash: p.ContentHash,
	}
	if p.URL != "" {
		m[FieldURL] = p.URL
	}
	return m
}

// Point is a vector with its id and payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Hit is one nearest-neighbor result. Payload is returned raw so callers can
// decide how to handle missing or malformed fields.
type Hit struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Filter restricts a query by payload fields. Empty fields do not filter.
type Filter struct {
	Kinds   []string
	Heading string
}

// IsEmpty reports whether the filter matches everything.
func (f *Filter) IsEmpty() bool {
	return f == nil || (len(f.Kinds) == 0 && f.Heading == "")
}

// Matches applies the filter to a raw payload.
func (f *Filter) Matches(payload map[string]any) bool {
	if f.IsEmpty() {
		return true
	}
	if len(f.Kinds) > 0 {
		kind, _ := payload[FieldKind].(string)
		found := false
		for _, k := range f.Kinds {
			if k == kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Heading != "" {
		heading, _ := payload[FieldTopHeading].(string)
		if heading != f.Heading {
			return false
		}
	}
	return true
}

// Store is a vector index holding one collection.
type Store interface {
	// EnsureSchema creates the collection if missing and validates its
	// dimensionality. A mismatch is a service.ConfigurationError.
	EnsureSchema(ctx context.Context, dims int) error
	// Upsert inserts or replaces points by id.
	Upsert(ctx context.Context, points []Point) error
	// Query returns up to topK nearest points by cosine similarity.
	Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Hit, error)
	// ContentHashes returns the stored content_hash for each id that exists.
	ContentHashes(ctx context.Context, ids []string) (map[string]string, error)
}
