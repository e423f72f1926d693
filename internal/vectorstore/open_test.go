package vectorstore

import (
	"context"
	"testing"

	"notesearch/internal/service"
)

func TestOpen_Memory(t *testing.T) {
	store, closeFn, err := Open(context.Background(), OpenOptions{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer closeFn()

	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("Open() store = %T, want *MemoryStore", store)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, _, err := Open(context.Background(), OpenOptions{Backend: "faiss"})
	if !service.IsConfiguration(err) {
		t.Errorf("Open() error = %v, want ConfigurationError", err)
	}
}
