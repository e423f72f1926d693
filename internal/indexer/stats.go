package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

const (
	// ChunkerVersion identifies the chunking rules. Bump it when chunk
	// boundaries or ids change so the index version changes too.
	ChunkerVersion = "v2.0"
	// TokensPerRune is an approximation for token counting (4 chars per token).
	TokensPerRune = 4.0
)

// RunStats summarizes one ingestion run.
type RunStats struct {
	DocsProcessed   int `json:"docs_processed"`
	DocsFailed      int `json:"docs_failed"`
	DocsWith0Chunks int `json:"docs_with_0_chunks"`

	ChunksCandidate int `json:"chunks_candidate"`
	ChunksChanged   int `json:"chunks_changed"`
	ChunksUnchanged int `json:"chunks_unchanged"`
	ChunksEmbedded  int `json:"chunks_embedded"`
	ChunksUpserted  int `json:"chunks_upserted"`
	Batches         int `json:"batches"`

	// Oversize counts chunks longer than the configured bound.
	Oversize int `json:"oversize"`

	ChunkLength ChunkLengthStats `json:"chunk_length"`
	// ChunkTokens estimates tokens per chunk from rune counts.
	ChunkTokens ChunkLengthStats `json:"chunk_tokens"`

	DryRun         bool   `json:"dry_run"`
	ChunkerVersion string `json:"chunker_version"`
	IndexVersion   string `json:"index_version"`
}

// ChunkLengthStats holds min, max, mean and p95 of a distribution.
type ChunkLengthStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// IndexVersion fingerprints the chunker, embedding model and chunking params.
func IndexVersion(embeddingModelName string, maxChunkLength int) string {
	input := fmt.Sprintf("%s|%s|maxChunkLength=%d", ChunkerVersion, embeddingModelName, maxChunkLength)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}

// observeChunks fills the length statistics from the candidate chunks.
func (s *RunStats) observeChunks(chunks []Chunk, maxChunkLength int) {
	if len(chunks) == 0 {
		return
	}
	lengths := make([]int, 0, len(chunks))
	tokens := make([]int, 0, len(chunks))
	for _, c := range chunks {
		n := utf8.RuneCountInString(c.Text)
		if n > maxChunkLength {
			s.Oversize++
		}
		lengths = append(lengths, n)
		tokenCount := int(math.Round(float64(n) / TokensPerRune))
		if tokenCount < 1 {
			tokenCount = 1
		}
		tokens = append(tokens, tokenCount)
	}
	s.ChunkLength = computeLengthStats(lengths)
	s.ChunkTokens = computeLengthStats(tokens)
}

// computeLengthStats computes min, max, mean, and p95 from counts.
func computeLengthStats(counts []int) ChunkLengthStats {
	if len(counts) == 0 {
		return ChunkLengthStats{}
	}

	sorted := make([]int, len(counts))
	copy(sorted, counts)
	sort.Ints(sorted)

	sum := 0
	for _, count := range counts {
		sum += count
	}
	mean := float64(sum) / float64(len(counts))

	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}

	return ChunkLengthStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100,
		P95:  sorted[p95Index],
	}
}
