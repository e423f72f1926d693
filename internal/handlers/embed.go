package handlers

import (
	"net/http"

	"notesearch/internal/contextutil"
	"notesearch/internal/llm"
)

// Generator is the embedding model as seen by the HTTP layer.
type Generator interface {
	llm.Embedder
	Dimensions() int
}

// EmbedHandler handles POST /embed.
type EmbedHandler struct {
	generator Generator
}

// NewEmbedHandler creates a new EmbedHandler.
func NewEmbedHandler(generator Generator) *EmbedHandler {
	return &EmbedHandler{generator: generator}
}

// ServeHTTP embeds one text.
//
// swagger:route POST /embed embed
//
// Returns a unit-length vector. 503 while the model is loading.
func (h *EmbedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req llm.EmbedRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	vec, err := h.generator.Embed(ctx, req.Text, llm.ModeFor(req.IsQuery))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to generate embedding")
		return
	}

	logger.DebugContext(ctx, "embedded text", "length", len(req.Text), "is_query", req.IsQuery)
	writeJSON(w, http.StatusOK, llm.EmbedResponse{Vector: vec, Dimensions: len(vec)})
}

// EmbedBatchHandler handles POST /embed-batch.
type EmbedBatchHandler struct {
	generator Generator
}

// NewEmbedBatchHandler creates a new EmbedBatchHandler.
func NewEmbedBatchHandler(generator Generator) *EmbedBatchHandler {
	return &EmbedBatchHandler{generator: generator}
}

// ServeHTTP embeds a batch of texts. Any invalid text fails the whole batch.
func (h *EmbedBatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req llm.EmbedBatchRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	vectors, err := h.generator.EmbedBatch(ctx, req.Texts, llm.ModeFor(req.IsQuery))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to generate embeddings")
		return
	}

	logger.InfoContext(ctx, "embedded batch", "count", len(vectors), "is_query", req.IsQuery)
	writeJSON(w, http.StatusOK, llm.EmbedBatchResponse{Vectors: vectors, Dimensions: h.generator.Dimensions()})
}
