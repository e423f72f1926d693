package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"notesearch/internal/service"
)

// MemoryStore is an in-memory vector store for development and testing.
// It ranks by brute-force cosine similarity.
type MemoryStore struct {
	mu     sync.RWMutex
	dims   int
	points map[string]memoryPoint

	upserts int
}

type memoryPoint struct {
	vector  []float32
	payload map[string]any
}

// NewMemoryStore creates a new in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		points: make(map[string]memoryPoint),
	}
}

// EnsureSchema records the dimensionality on first call and validates it afterwards.
func (s *MemoryStore) EnsureSchema(ctx context.Context, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dims <= 0 {
		return &service.ConfigurationError{Setting: "EMBEDDING_DIMENSIONS", Message: "must be greater than 0"}
	}
	if s.dims == 0 {
		s.dims = dims
		return nil
	}
	return validateSchema(s.dims, true, dims)
}

// Upsert stores points, replacing existing ones by id.
func (s *MemoryStore) Upsert(ctx context.Context, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if s.dims != 0 && len(p.Vector) != s.dims {
			return fmt.Errorf("point %s has %d dimensions, want %d", p.ID, len(p.Vector), s.dims)
		}
	}
	for _, p := range points {
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		s.points[p.ID] = memoryPoint{vector: vec, payload: p.Payload.Map()}
	}
	s.upserts += len(points)
	return nil
}

// Query returns the topK most similar points that match filter.
func (s *MemoryStore) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Hit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be greater than 0")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]Hit, 0, len(s.points))
	for id, p := range s.points {
		if !filter.Matches(p.payload) {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: CosineSimilarity(vector, p.vector), Payload: p.payload})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].ID < hits[j].ID
		}
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// ContentHashes returns stored hashes for the ids present in the store.
func (s *MemoryStore) ContentHashes(ctx context.Context, ids []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hashes := make(map[string]string, len(ids))
	for _, id := range ids {
		if p, ok := s.points[id]; ok {
			if h, ok := p.payload[FieldContentHash].(string); ok {
				hashes[id] = h
			}
		}
	}
	return hashes, nil
}

// Count returns the number of points in the store.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// Upserts returns how many points have been written since creation.
func (s *MemoryStore) Upserts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upserts
}
