package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"notesearch/internal/config"
	"notesearch/internal/contextutil"
	"notesearch/internal/indexer"
	"notesearch/internal/llm"
	"notesearch/internal/storage"
	"notesearch/internal/vault"
	"notesearch/internal/vectorstore"
)

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion pass",
	Long: `Loads every source document, chunks it and compares chunk content hashes
with the stored ones. Only new or edited chunks are embedded and upserted.
With --dry-run nothing is embedded or written.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without embedding or writing")
	rootCmd.AddCommand(runCmd)
}

// runner is satisfied by *indexer.Pipeline.
type runner interface {
	Run(ctx context.Context, dryRun bool) (*indexer.RunStats, error)
}

// newRunner builds the pipeline; tests replace it.
var newRunner = buildPipeline

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := contextutil.WithLogger(cmd.Context(), slog.Default())

	r, cleanup, err := newRunner(ctx, cfg)
	if err != nil {
		return fmt.Errorf("ingest setup failed: %w", err)
	}
	defer cleanup()

	stats, err := r.Run(ctx, dryRun)
	if stats != nil {
		printStats(cmd, stats)
	}
	if err != nil {
		return fmt.Errorf("ingestion aborted: %w", err)
	}
	return nil
}

func printStats(cmd *cobra.Command, s *indexer.RunStats) {
	if s.DryRun {
		cmd.Println("Dry run: nothing was embedded or written.")
	}
	cmd.Printf("Documents: %d processed, %d failed, %d without chunks\n",
		s.DocsProcessed, s.DocsFailed, s.DocsWith0Chunks)
	cmd.Printf("Chunks:    %d candidates, %d changed, %d unchanged\n",
		s.ChunksCandidate, s.ChunksChanged, s.ChunksUnchanged)
	if !s.DryRun {
		cmd.Printf("Written:   %d embedded, %d upserted in %d batches\n",
			s.ChunksEmbedded, s.ChunksUpserted, s.Batches)
	}
	if s.ChunksCandidate > 0 {
		cmd.Printf("Length:    min %d, max %d, mean %.0f, p95 %d (%d oversize)\n",
			s.ChunkLength.Min, s.ChunkLength.Max, s.ChunkLength.Mean, s.ChunkLength.P95, s.Oversize)
	}
	cmd.Printf("Index version: %s\n", s.IndexVersion)
}

// buildPipeline wires the sources, vector store, embedding client and
// optional hash cache. On error everything opened so far is closed.
func buildPipeline(ctx context.Context, cfg *config.Config) (runner, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	manager, err := vault.NewManager(cfg.ContentRoot)
	if err != nil {
		return nil, nil, err
	}
	var source vault.Source = manager
	if cfg.RecordsDSN != "" {
		records, err := vault.NewRecordSource(ctx, cfg.RecordsDSN)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, records.Close)
		source = vault.MultiSource{manager, records}
	}

	store, closeStore, err := vectorstore.Open(ctx, cfg.StoreOptions())
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, closeStore)

	sync := vectorstore.NewSynchronizer(store, vectorstore.SyncConfig{
		BatchSize:  cfg.UpsertBatchSize,
		BatchDelay: cfg.BatchDelay,
		Retry:      cfg.RetryPolicy(),
	})
	if err := sync.EnsureSchema(ctx, cfg.EmbeddingDimensions); err != nil {
		cleanup()
		return nil, nil, err
	}

	opts := indexer.Options{
		Retry:     cfg.RetryPolicy(),
		ModelName: cfg.EmbeddingModelName,
	}
	if cfg.HashCache == config.HashCacheSQLite {
		repo, closeDB, err := openHashRepo(cfg.DBPath)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, closeDB)
		opts.Cache = repo
	}

	embedder := llm.NewEmbeddingsClient(cfg.EmbedServiceURL, cfg.APIToken, cfg.EmbeddingDimensions)
	chunker := indexer.NewGoldmarkChunker(cfg.MaxChunkLength)

	return indexer.NewPipeline(source, chunker, embedder, sync, opts), cleanup, nil
}

func openHashRepo(path string) (*storage.HashRepo, func(), error) {
	db, err := storage.New(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open hash cache: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to migrate hash cache: %w", err)
	}
	return storage.NewHashRepo(db), func() { _ = db.Close() }, nil
}
