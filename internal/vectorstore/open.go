package vectorstore

import (
	"context"
	"fmt"

	"notesearch/internal/contextutil"
	"notesearch/internal/service"
)

// Backend names accepted by Open.
const (
	BackendQdrant   = "qdrant"
	BackendPgVector = "pgvector"
	BackendMemory   = "memory"
)

// OpenOptions selects and configures a backend.
type OpenOptions struct {
	Backend      string
	QdrantURL    string
	QdrantAPIKey string
	PgVectorDSN  string
	Collection   string
}

// Open connects to the configured backend. The returned close function
// releases its connections and is never nil.
func Open(ctx context.Context, opts OpenOptions) (Store, func(), error) {
	logger := contextutil.LoggerFromContext(ctx)

	switch opts.Backend {
	case BackendQdrant:
		store, err := NewQdrantStore(opts.QdrantURL, opts.QdrantAPIKey, opts.Collection)
		if err != nil {
			return nil, nil, err
		}
		logger.InfoContext(ctx, "vector store opened", "backend", opts.Backend, "url", opts.QdrantURL, "collection", opts.Collection)
		return store, func() { _ = store.Close() }, nil
	case BackendPgVector:
		store, err := NewPgVectorStore(ctx, opts.PgVectorDSN, opts.Collection)
		if err != nil {
			return nil, nil, err
		}
		logger.InfoContext(ctx, "vector store opened", "backend", opts.Backend, "collection", opts.Collection)
		return store, store.Close, nil
	case BackendMemory:
		logger.WarnContext(ctx, "using in-memory vector store; nothing is persisted")
		return NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, &service.ConfigurationError{
			Setting: "VECTOR_BACKEND",
			Message: fmt.Sprintf("unknown backend %q", opts.Backend),
		}
	}
}
