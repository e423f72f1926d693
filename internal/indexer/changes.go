package indexer

import (
	"context"
	"fmt"

	"notesearch/internal/contextutil"
)

// HashLookup returns the indexed content hash for each known chunk id.
// Ids that are not indexed are absent from the result.
type HashLookup interface {
	ContentHashes(ctx context.Context, ids []string) (map[string]string, error)
}

// HashLookupFunc adapts a function to HashLookup.
type HashLookupFunc func(ctx context.Context, ids []string) (map[string]string, error)

// ContentHashes calls f.
func (f HashLookupFunc) ContentHashes(ctx context.Context, ids []string) (map[string]string, error) {
	return f(ctx, ids)
}

// ChangeDetector splits candidate chunks by whether their content already
// matches what is indexed. Index entries missing from the candidates are ignored.
type ChangeDetector struct {
	lookup HashLookup
}

// NewChangeDetector creates a detector backed by lookup.
func NewChangeDetector(lookup HashLookup) *ChangeDetector {
	return &ChangeDetector{lookup: lookup}
}

// Partition returns candidates whose hash is missing or different as changed,
// and exact matches as unchanged. Input order is kept in both slices.
func (d *ChangeDetector) Partition(ctx context.Context, candidates []Chunk) (changed, unchanged []Chunk, err error) {
	if len(candidates) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ChunkID
	}

	stored, err := d.lookup.ContentHashes(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up indexed hashes: %w", err)
	}

	for _, c := range candidates {
		if hash, ok := stored[c.ChunkID]; ok && hash == c.ContentHash {
			unchanged = append(unchanged, c)
			continue
		}
		changed = append(changed, c)
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "partitioned chunks",
		"candidates", len(candidates),
		"changed", len(changed),
		"unchanged", len(unchanged),
	)
	return changed, unchanged, nil
}
