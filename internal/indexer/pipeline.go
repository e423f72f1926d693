package indexer

import (
	"context"
	"fmt"

	"notesearch/internal/contextutil"
	"notesearch/internal/llm"
	"notesearch/internal/retry"
	"notesearch/internal/service"
	"notesearch/internal/storage"
	"notesearch/internal/vault"
	"notesearch/internal/vectorstore"
)

// Options configures a Pipeline.
type Options struct {
	// Cache, when set, is the change-detection source of truth and is
	// updated after every successful upsert. Otherwise the index payload is used.
	Cache storage.HashStore
	// Retry applies to embedding calls. Store calls are retried by the Synchronizer.
	Retry retry.Policy
	// ModelName feeds the index version fingerprint.
	ModelName string
}

// Pipeline runs ingestion: load, chunk, detect changes, embed, upsert.
type Pipeline struct {
	source   vault.Source
	chunker  *GoldmarkChunker
	detector *ChangeDetector
	embedder llm.Embedder
	sync     *vectorstore.Synchronizer
	cache    storage.HashStore
	retry    retry.Policy
	model    string
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	source vault.Source,
	chunker *GoldmarkChunker,
	embedder llm.Embedder,
	sync *vectorstore.Synchronizer,
	opts Options,
) *Pipeline {
	var lookup HashLookup = sync
	if opts.Cache != nil {
		lookup = HashLookupFunc(opts.Cache.Get)
	}

	return &Pipeline{
		source:   source,
		chunker:  chunker,
		detector: NewChangeDetector(lookup),
		embedder: embedder,
		sync:     sync,
		cache:    opts.Cache,
		retry:    opts.Retry,
		model:    opts.ModelName,
	}
}

// Run performs one ingestion run. Per-document parse failures are logged and
// counted; embedding or store failures abort the run after retries.
// With dryRun set, nothing is embedded or written.
func (p *Pipeline) Run(ctx context.Context, dryRun bool) (*RunStats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	stats := &RunStats{
		DryRun:         dryRun,
		ChunkerVersion: ChunkerVersion,
		IndexVersion:   IndexVersion(p.model, p.chunker.MaxChunkLength()),
	}

	loaded, err := p.source.Load(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to load documents: %w", err)
	}

	logger.InfoContext(ctx, "starting ingestion", "documents", len(loaded), "dry_run", dryRun)

	candidates, err := p.chunkAll(ctx, loaded, stats)
	if err != nil {
		return stats, err
	}
	stats.ChunksCandidate = len(candidates)
	stats.observeChunks(candidates, p.chunker.MaxChunkLength())

	changed, unchanged, err := p.detector.Partition(ctx, candidates)
	if err != nil {
		return stats, err
	}
	stats.ChunksChanged = len(changed)
	stats.ChunksUnchanged = len(unchanged)

	if dryRun {
		for docID, n := range countByDoc(changed) {
			logger.InfoContext(ctx, "would re-embed", "doc_id", docID, "chunks", n)
		}
		logger.InfoContext(ctx, "dry run completed", "changed", len(changed), "unchanged", len(unchanged))
		return stats, nil
	}

	if err := p.writeChanged(ctx, changed, stats); err != nil {
		return stats, err
	}

	logger.InfoContext(ctx, "ingestion completed",
		"docs_processed", stats.DocsProcessed,
		"docs_failed", stats.DocsFailed,
		"chunks_changed", stats.ChunksChanged,
		"chunks_unchanged", stats.ChunksUnchanged,
		"chunks_upserted", stats.ChunksUpserted,
		"batches", stats.Batches,
		"index_version", stats.IndexVersion,
	)
	return stats, nil
}

// chunkAll chunks every loaded document, skipping the ones that failed.
func (p *Pipeline) chunkAll(ctx context.Context, loaded []vault.Loaded, stats *RunStats) ([]Chunk, error) {
	logger := contextutil.LoggerFromContext(ctx)

	var candidates []Chunk
	for _, l := range loaded {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if l.Err != nil {
			stats.DocsFailed++
			logger.WarnContext(ctx, "skipping document", "doc_id", l.DocID, "error", l.Err)
			continue
		}

		chunks, err := p.chunker.Chunk(l.Doc)
		if err != nil {
			stats.DocsFailed++
			logger.WarnContext(ctx, "skipping document", "doc_id", l.DocID,
				"error", &service.ParseError{DocID: l.DocID, Err: err})
			continue
		}

		stats.DocsProcessed++
		if len(chunks) == 0 {
			stats.DocsWith0Chunks++
			logger.DebugContext(ctx, "no chunks generated", "doc_id", l.DocID)
		}
		candidates = append(candidates, chunks...)
	}
	return candidates, nil
}

// writeChanged embeds and upserts changed chunks one batch at a time. A
// batch is embedded fully before it is written, so a failed embedding
// leaves the index untouched for that batch.
func (p *Pipeline) writeChanged(ctx context.Context, changed []Chunk, stats *RunStats) error {
	logger := contextutil.LoggerFromContext(ctx)
	batchSize := p.sync.BatchSize()

	for start := 0; start < len(changed); start += batchSize {
		end := min(start+batchSize, len(changed))
		batch := changed[start:end]
		batchNum := start/batchSize + 1

		if start > 0 {
			if err := p.sync.Throttle(ctx); err != nil {
				return err
			}
		}

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := retry.DoValue(ctx, p.retry, "embed batch", func(ctx context.Context) ([][]float32, error) {
			return p.embedder.EmbedBatch(ctx, texts, llm.ModePassage)
		})
		if err != nil {
			return fmt.Errorf("batch %d: failed to generate embeddings: %w", batchNum, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("batch %d: embedding count mismatch: expected %d, got %d", batchNum, len(batch), len(vectors))
		}
		stats.ChunksEmbedded += len(vectors)

		points := make([]vectorstore.Point, len(batch))
		for i, c := range batch {
			points[i] = vectorstore.Point{ID: c.ChunkID, Vector: vectors[i], Payload: payloadFor(c)}
		}
		if err := p.sync.Upsert(ctx, points); err != nil {
			return fmt.Errorf("batch %d: failed to upsert vectors: %w", batchNum, err)
		}
		stats.ChunksUpserted += len(points)
		stats.Batches++

		if p.cache != nil {
			if err := p.cache.Set(ctx, hashEntries(batch)); err != nil {
				return fmt.Errorf("batch %d: failed to update hash cache: %w", batchNum, err)
			}
		}

		logger.InfoContext(ctx, "upserted batch", "batch", batchNum, "points", len(points))
	}
	return nil
}

func payloadFor(c Chunk) vectorstore.Payload {
	return vectorstore.Payload{
		Kind:        string(c.Kind),
		TopHeading:  c.TopHeading,
		DocID:       c.DocID,
		ChunkID:     c.ChunkID,
		Title:       c.Title,
		URL:         c.URL,
		HeadingPath: c.HeadingPath,
		Text:        c.Text,
		ContentHash: c.ContentHash,
	}
}

func hashEntries(chunks []Chunk) []storage.HashEntry {
	entries := make([]storage.HashEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = storage.HashEntry{ChunkID: c.ChunkID, DocID: c.DocID, ContentHash: c.ContentHash}
	}
	return entries
}

func countByDoc(chunks []Chunk) map[string]int {
	counts := make(map[string]int)
	for _, c := range chunks {
		counts[c.DocID]++
	}
	return counts
}
