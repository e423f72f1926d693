package handlers

import (
	"net/http"

	"notesearch/internal/contextutil"
	"notesearch/internal/search"
)

// SearchHandler handles POST /search.
type SearchHandler struct {
	engine search.Engine
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(engine search.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// ServeHTTP runs a semantic search.
//
// swagger:route POST /search search
//
// Returns results in relevance order plus the same results grouped by kind.
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req search.Request
	if !decodeRequest(w, r, &req) {
		return
	}

	resp, err := h.engine.Search(ctx, req)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to search")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
