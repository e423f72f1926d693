// Package search answers natural-language queries against the vector index
// and shapes the hits into typed, grouped results.
package search

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks notesearch/internal/search Engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"notesearch/internal/contextutil"
	"notesearch/internal/document"
	"notesearch/internal/llm"
	"notesearch/internal/retry"
	"notesearch/internal/service"
	"notesearch/internal/vectorstore"
)

const (
	// DefaultTopK is used when neither the request nor the engine sets one.
	DefaultTopK = 20
	// MaxTopK bounds any request.
	MaxTopK = 50
)

// Engine runs searches.
type Engine interface {
	// Search embeds the query, retrieves nearest chunks and groups them by kind.
	Search(ctx context.Context, req Request) (Response, error)
}

// Querier is the nearest-neighbor lookup used by the engine.
type Querier interface {
	Query(ctx context.Context, vector []float32, topK int, filter *vectorstore.Filter) ([]vectorstore.Hit, error)
}

// searchEngine implements the Engine interface.
type searchEngine struct {
	embedder    llm.Embedder
	store       Querier
	defaultTopK int
	retry       retry.Policy
}

// NewEngine creates a search engine. A non-positive defaultTopK selects DefaultTopK.
// policy applies to the query embedding call; store retries belong to the Querier.
func NewEngine(embedder llm.Embedder, store Querier, defaultTopK int, policy retry.Policy) Engine {
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &searchEngine{
		embedder:    embedder,
		store:       store,
		defaultTopK: min(defaultTopK, MaxTopK),
		retry:       policy,
	}
}

// Search implements Engine.
func (e *searchEngine) Search(ctx context.Context, req Request) (Response, error) {
	logger := contextutil.LoggerFromContext(ctx)

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Response{}, &service.ValidationError{Field: "query", Message: "must not be empty"}
	}

	topK := req.TopK
	if topK == 0 {
		topK = e.defaultTopK
	}
	if topK < 1 || topK > MaxTopK {
		return Response{}, &service.ValidationError{Field: "topK", Message: fmt.Sprintf("must be between 1 and %d", MaxTopK)}
	}

	kinds, err := requestedKinds(req)
	if err != nil {
		return Response{}, err
	}
	filter := &vectorstore.Filter{Kinds: kinds, Heading: strings.TrimSpace(req.Heading)}

	logger.InfoContext(ctx, "search started", "query_length", len(query), "top_k", topK, "kinds", kinds, "heading", filter.Heading)

	vector, err := retry.DoValue(ctx, e.retry, "embed query", func(ctx context.Context) ([]float32, error) {
		return e.embedder.Embed(ctx, query, llm.ModeQuery)
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed query", "error", err)
		return Response{}, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := e.store.Query(ctx, vector, topK, filter)
	if err != nil {
		logger.ErrorContext(ctx, "failed to query vector store", "error", err)
		return Response{}, fmt.Errorf("failed to query vector store: %w", err)
	}

	results := make([]Result, 0, min(len(hits), topK))
	for _, hit := range hits {
		if len(results) == topK {
			break
		}
		r, err := resultFromHit(hit)
		if err != nil {
			logger.WarnContext(ctx, "skipping malformed hit", "id", hit.ID, "error", err)
			continue
		}
		if len(kinds) > 0 && !slices.Contains(kinds, r.Kind) {
			logger.WarnContext(ctx, "skipping hit outside kind filter", "id", hit.ID, "kind", r.Kind)
			continue
		}
		results = append(results, r)
	}

	logger.InfoContext(ctx, "search completed", "hits", len(hits), "results", len(results))

	return Response{
		Results:      results,
		Groups:       groupResults(results),
		Query:        query,
		TotalResults: len(results),
	}, nil
}

// requestedKinds merges Kind and Kinds, validating and de-duplicating them.
func requestedKinds(req Request) ([]string, error) {
	var raw []string
	if req.Kind != "" {
		raw = append(raw, req.Kind)
	}
	raw = append(raw, req.Kinds...)

	var kinds []string
	for _, k := range raw {
		kind, err := document.ParseKind(k)
		if err != nil {
			return nil, &service.ValidationError{Field: "kind", Message: err.Error()}
		}
		if !slices.Contains(kinds, string(kind)) {
			kinds = append(kinds, string(kind))
		}
	}
	return kinds, nil
}
