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
)

// Embedding service.
//
// Serves POST /embed, POST /embed-batch and GET /health. The model loads in
// the background; until it is ready /health answers 503 {"status":"loading"}
// and embedding requests answer 503. A failed load exits the process.
func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireAPIToken(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := llm.NewModelLoader(cfg.LlamaBaseURL)
	encoder := llm.NewLlamaEncoder(cfg.LlamaBaseURL, cfg.EmbeddingModelName, loader)
	generator := llm.NewGenerator(encoder, cfg.Prefixes(), cfg.EmbeddingDimensions)

	router := http.NewEmbedRouter(&http.EmbedDeps{
		Generator: generator,
		Status:    generator,
		APIToken:  cfg.APIToken,
	})

	srv := &nethttp.Server{
		Addr:              ":" + cfg.EmbedAPIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting embedding API server", "addr", srv.Addr, "model", cfg.EmbeddingModelName)
		serveErr <- srv.ListenAndServe()
	}()

	loadErr := generator.Start(ctx)

	for {
		select {
		case err := <-loadErr:
			if err != nil {
				slog.Error("Embedding model failed to load", "error", err)
				shutdown(srv)
				os.Exit(1)
			}
			loadErr = nil
		case err := <-serveErr:
			if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				log.Fatalf("API server failed: %v", err)
			}
			return
		case <-ctx.Done():
			slog.Info("Shutting down embedding API server")
			shutdown(srv)
			return
		}
	}
}

func shutdown(srv *nethttp.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
}
