package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"notesearch/internal/handlers"
	"notesearch/internal/search"
)

// EmbedDeps holds dependencies for the embedding service router.
type EmbedDeps struct {
	Generator handlers.Generator
	Status    handlers.StatusReporter
	APIToken  string
}

// SearchDeps holds dependencies for the search service router.
type SearchDeps struct {
	Engine   search.Engine
	APIToken string
}

// NewEmbedRouter creates the embedding service router.
func NewEmbedRouter(deps *EmbedDeps) http.Handler {
	r := newBaseRouter(deps.APIToken)

	r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(deps.Status))
	r.Method(http.MethodPost, "/embed", handlers.NewEmbedHandler(deps.Generator))
	r.Method(http.MethodPost, "/embed-batch", handlers.NewEmbedBatchHandler(deps.Generator))

	return r
}

// NewSearchRouter creates the search service router.
func NewSearchRouter(deps *SearchDeps) http.Handler {
	r := newBaseRouter(deps.APIToken)

	r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(nil))
	r.Method(http.MethodPost, "/search", handlers.NewSearchHandler(deps.Engine))

	return r
}

// newBaseRouter installs the middleware shared by both services.
func newBaseRouter(apiToken string) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)
	r.Use(Auth(apiToken))

	return r
}
