package vectorstore

import (
	"context"
	"time"

	"notesearch/internal/retry"
)

const (
	// DefaultBatchSize bounds how many points go into one upsert.
	DefaultBatchSize = 20
	// hashLookupSize bounds ids per ContentHashes call.
	hashLookupSize = 256
)

// SyncConfig configures a Synchronizer.
type SyncConfig struct {
	BatchSize  int
	BatchDelay time.Duration
	Retry      retry.Policy
}

// Synchronizer owns the index lifecycle on top of a Store: retries
// transient failures and spaces out successive batch writes.
// It satisfies Store itself.
type Synchronizer struct {
	store     Store
	policy    retry.Policy
	batchSize int
	delay     time.Duration
}

// NewSynchronizer wraps store.
func NewSynchronizer(store Store, cfg SyncConfig) *Synchronizer {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Synchronizer{
		store:     store,
		policy:    cfg.Retry,
		batchSize: batchSize,
		delay:     max(cfg.BatchDelay, 0),
	}
}

// BatchSize returns the maximum number of points per upsert call.
func (s *Synchronizer) BatchSize() int {
	return s.batchSize
}

// Throttle waits the configured batch delay. Callers invoke it after a
// batch completes and before the next one starts, so every pair of
// successive batches is separated by at least the full delay.
func (s *Synchronizer) Throttle(ctx context.Context) error {
	if s.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// EnsureSchema validates or creates the destination collection.
// Configuration errors are returned immediately.
func (s *Synchronizer) EnsureSchema(ctx context.Context, dims int) error {
	return s.policy.Do(ctx, "ensure schema", func(ctx context.Context) error {
		return s.store.EnsureSchema(ctx, dims)
	})
}

// Upsert writes points in batches of at most BatchSize, each retried
// independently. Upserts are idempotent so retrying a batch is safe.
func (s *Synchronizer) Upsert(ctx context.Context, points []Point) error {
	for start := 0; start < len(points); start += s.batchSize {
		end := min(start+s.batchSize, len(points))
		batch := points[start:end]
		if start > 0 {
			if err := s.Throttle(ctx); err != nil {
				return err
			}
		}
		err := s.policy.Do(ctx, "upsert", func(ctx context.Context) error {
			return s.store.Upsert(ctx, batch)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Query runs a nearest-neighbor search with retries.
func (s *Synchronizer) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Hit, error) {
	return retry.DoValue(ctx, s.policy, "query", func(ctx context.Context) ([]Hit, error) {
		return s.store.Query(ctx, vector, topK, filter)
	})
}

// ContentHashes looks hashes up in bounded slices, retrying each.
func (s *Synchronizer) ContentHashes(ctx context.Context, ids []string) (map[string]string, error) {
	hashes := make(map[string]string, len(ids))
	for start := 0; start < len(ids); start += hashLookupSize {
		end := min(start+hashLookupSize, len(ids))
		part, err := retry.DoValue(ctx, s.policy, "content hashes", func(ctx context.Context) (map[string]string, error) {
			return s.store.ContentHashes(ctx, ids[start:end])
		})
		if err != nil {
			return nil, err
		}
		for id, h := range part {
			hashes[id] = h
		}
	}
	return hashes, nil
}
