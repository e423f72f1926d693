package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks notesearch/internal/llm Embedder

import "context"

// Mode selects the asymmetric encoding prefix.
type Mode int

const (
	// ModePassage encodes indexed content.
	ModePassage Mode = iota
	// ModeQuery encodes search queries.
	ModeQuery
)

func (m Mode) String() string {
	if m == ModeQuery {
		return "query"
	}
	return "passage"
}

// ModeFor maps the isQuery flag used on the wire to a Mode.
func ModeFor(isQuery bool) Mode {
	if isQuery {
		return ModeQuery
	}
	return ModePassage
}

// Prefixes are prepended to raw text before encoding.
type Prefixes struct {
	Query   string
	Passage string
}

// DefaultPrefixes are the E5-family conventions.
func DefaultPrefixes() Prefixes {
	return Prefixes{Query: "query: ", Passage: "passage: "}
}

// Apply returns text with the prefix for mode.
func (p Prefixes) Apply(text string, mode Mode) string {
	if mode == ModeQuery {
		return p.Query + text
	}
	return p.Passage + text
}

// Embedder turns text into unit-length vectors.
type Embedder interface {
	// Embed encodes a single text.
	Embed(ctx context.Context, text string, mode Mode) ([]float32, error)
	// EmbedBatch encodes texts in one call. The result is 1:1 and in order
	// with texts; any invalid text fails the whole batch.
	EmbedBatch(ctx context.Context, texts []string, mode Mode) ([][]float32, error)
}
