package vectorstore

import (
	"context"
	"math"
	"testing"

	"notesearch/internal/service"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{name: "identical", a: []float32{1, 0}, b: []float32{1, 0}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 0}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemoryStore_EnsureSchema(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.EnsureSchema(ctx, 3); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := s.EnsureSchema(ctx, 3); err != nil {
		t.Errorf("EnsureSchema() second call error = %v", err)
	}
	if err := s.EnsureSchema(ctx, 4); !service.IsConfiguration(err) {
		t.Errorf("EnsureSchema() mismatch error = %v, want ConfigurationError", err)
	}
	if err := NewMemoryStore().EnsureSchema(ctx, 0); !service.IsConfiguration(err) {
		t.Errorf("EnsureSchema(0) error = %v, want ConfigurationError", err)
	}
}

func TestMemoryStore_QueryAndFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.EnsureSchema(ctx, 2)

	points := []Point{
		{ID: "n1", Vector: []float32{1, 0}, Payload: Payload{Kind: "notes", TopHeading: "Intro", ContentHash: "h1"}},
		{ID: "b1", Vector: []float32{0.9, 0.1}, Payload: Payload{Kind: "books", TopHeading: "Intro", ContentHash: "h2"}},
		{ID: "a1", Vector: []float32{0, 1}, Payload: Payload{Kind: "articles", TopHeading: "Other", ContentHash: "h3"}},
	}
	if err := s.Upsert(ctx, points); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	hits, err := s.Query(ctx, []float32{1, 0}, 10, nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(hits) != 3 || hits[0].ID != "n1" || hits[2].ID != "a1" {
		t.Errorf("Query() order = %v", hits)
	}

	hits, _ = s.Query(ctx, []float32{1, 0}, 1, nil)
	if len(hits) != 1 {
		t.Errorf("Query(topK=1) returned %d hits", len(hits))
	}

	hits, _ = s.Query(ctx, []float32{1, 0}, 10, &Filter{Kinds: []string{"notes"}})
	for _, h := range hits {
		if h.Payload[FieldKind] != "notes" {
			t.Errorf("kind filter returned %v", h.Payload[FieldKind])
		}
	}
	if len(hits) != 1 {
		t.Errorf("kind filter returned %d hits, want 1", len(hits))
	}

	hits, _ = s.Query(ctx, []float32{1, 0}, 10, &Filter{Heading: "Intro"})
	if len(hits) != 2 {
		t.Errorf("heading filter returned %d hits, want 2", len(hits))
	}

	if _, err := s.Query(ctx, []float32{1, 0}, 0, nil); err == nil {
		t.Error("Query(topK=0) expected error")
	}
}

func TestMemoryStore_UpsertReplacesAndHashes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.Upsert(ctx, []Point{{ID: "x", Vector: []float32{1}, Payload: Payload{ContentHash: "old"}}})
	_ = s.Upsert(ctx, []Point{{ID: "x", Vector: []float32{1}, Payload: Payload{ContentHash: "new"}}})

	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
	if s.Upserts() != 2 {
		t.Errorf("Upserts() = %d, want 2", s.Upserts())
	}

	hashes, err := s.ContentHashes(ctx, []string{"x", "missing"})
	if err != nil {
		t.Fatalf("ContentHashes() error = %v", err)
	}
	if hashes["x"] != "new" {
		t.Errorf("hash = %q, want new", hashes["x"])
	}
	if _, ok := hashes["missing"]; ok {
		t.Error("missing id should not be present")
	}
}

func TestMemoryStore_UpsertRejectsWrongDimensions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.EnsureSchema(ctx, 2)

	err := s.Upsert(ctx, []Point{{ID: "x", Vector: []float32{1, 2, 3}}})
	if err == nil {
		t.Error("Upsert() expected dimension error")
	}
	if s.Count() != 0 {
		t.Error("failed upsert should not store points")
	}
}

func TestFilter_Matches(t *testing.T) {
	payload := map[string]any{FieldKind: "books", FieldTopHeading: "Ch 1"}

	tests := []struct {
		name   string
		filter *Filter
		want   bool
	}{
		{name: "nil", filter: nil, want: true},
		{name: "empty", filter: &Filter{}, want: true},
		{name: "kind match", filter: &Filter{Kinds: []string{"notes", "books"}}, want: true},
		{name: "kind miss", filter: &Filter{Kinds: []string{"notes"}}, want: false},
		{name: "heading match", filter: &Filter{Heading: "Ch 1"}, want: true},
		{name: "heading miss", filter: &Filter{Heading: "Ch 2"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(payload); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
