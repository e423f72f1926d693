package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notesearch/internal/config"
	"notesearch/internal/http"
	"notesearch/internal/llm"
	"notesearch/internal/search"
	"notesearch/internal/vectorstore"
)

// Search service.
//
// Serves POST /search and GET /health. Query vectors come from the embedding
// service; results come from the configured vector backend.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireAPIToken(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := vectorstore.Open(ctx, cfg.StoreOptions())
	if err != nil {
		log.Fatalf("Failed to open vector store: %v", err)
	}
	defer closeStore()

	sync := vectorstore.NewSynchronizer(store, vectorstore.SyncConfig{
		BatchSize: cfg.UpsertBatchSize,
		Retry:     cfg.RetryPolicy(),
	})

	// Ensure the collection exists with the configured vector size (fail-fast on mismatch)
	if err := sync.EnsureSchema(ctx, cfg.EmbeddingDimensions); err != nil {
		log.Fatalf("Failed to ensure vector schema: %v", err)
	}
	slog.Info("Vector schema ready", "collection", cfg.Collection, "vector_size", cfg.EmbeddingDimensions)

	embedder := llm.NewEmbeddingsClient(cfg.EmbedServiceURL, cfg.APIToken, cfg.EmbeddingDimensions)
	engine := search.NewEngine(embedder, sync, cfg.SearchDefaultTopK, cfg.RetryPolicy())

	router := http.NewSearchRouter(&http.SearchDeps{
		Engine:   engine,
		APIToken: cfg.APIToken,
	})

	srv := &nethttp.Server{
		Addr:              ":" + cfg.SearchAPIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down search API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Starting search API server", "addr", srv.Addr, "embed_service", cfg.EmbedServiceURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		log.Fatalf("API server failed: %v", err)
	}
}
