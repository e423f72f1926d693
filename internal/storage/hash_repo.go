package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_hash_store.go -package=mocks notesearch/internal/storage HashStore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
)

// maxSQLParams keeps IN clauses under SQLite's bound-parameter limit.
const maxSQLParams = 500

// HashStore is a chunk_id to content_hash map.
type HashStore interface {
	// Get returns the stored hash for each known id. Unknown ids are absent from the result.
	Get(ctx context.Context, ids []string) (map[string]string, error)
	// Set inserts or replaces entries.
	Set(ctx context.Context, entries []HashEntry) error
	// Diff returns the ids in candidates whose stored hash is missing or different, in no particular order.
	Diff(ctx context.Context, candidates map[string]string) ([]string, error)
}

// HashRepo is the SQLite HashStore.
type HashRepo struct {
	db *sql.DB
}

// NewHashRepo creates a new HashRepo.
func NewHashRepo(db *sql.DB) *HashRepo {
	return &HashRepo{db: db}
}

// Get returns stored hashes for ids, querying in chunks of maxSQLParams.
func (r *HashRepo) Get(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))

	for start := 0; start < len(ids); start += maxSQLParams {
		end := min(start+maxSQLParams, len(ids))
		part := ids[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(part)), ",")
		args := make([]any, len(part))
		for i, id := range part {
			args[i] = id
		}

		rows, err := r.db.QueryContext(ctx,
			"SELECT chunk_id, content_hash FROM chunk_hashes WHERE chunk_id IN ("+placeholders+")",
			args...,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to query chunk hashes: %w", err)
		}

		for rows.Next() {
			var id, hash string
			if err := rows.Scan(&id, &hash); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to scan chunk hash: %w", err)
			}
			out[id] = hash
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to iterate chunk hashes: %w", err)
		}
		_ = rows.Close()
	}

	return out, nil
}

// Set upserts entries in a single transaction.
func (r *HashRepo) Set(ctx context.Context, entries []HashEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunk_hashes (chunk_id, doc_id, content_hash, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(chunk_id) DO UPDATE SET
			doc_id = excluded.doc_id,
			content_hash = excluded.content_hash,
			updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ChunkID, e.DocID, e.ContentHash); err != nil {
			return fmt.Errorf("failed to upsert chunk hash %s: %w", e.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk hashes: %w", err)
	}
	return nil
}

// Diff returns candidate ids whose stored hash is missing or different.
func (r *HashRepo) Diff(ctx context.Context, candidates map[string]string) ([]string, error) {
	return diff(ctx, r, candidates)
}

// ListByDoc returns every entry recorded for docID, ordered by chunk id.
func (r *HashRepo) ListByDoc(ctx context.Context, docID string) ([]HashEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT chunk_id, doc_id, content_hash, updated_at FROM chunk_hashes WHERE doc_id = ? ORDER BY chunk_id",
		docID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk hashes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []HashEntry
	for rows.Next() {
		var e HashEntry
		if err := rows.Scan(&e.ChunkID, &e.DocID, &e.ContentHash, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk hash: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MemoryHashStore is an in-process HashStore.
type MemoryHashStore struct {
	mu      sync.RWMutex
	entries map[string]HashEntry
}

// NewMemoryHashStore creates an empty store.
func NewMemoryHashStore() *MemoryHashStore {
	return &MemoryHashStore{entries: make(map[string]HashEntry)}
}

func (m *MemoryHashStore) Get(ctx context.Context, ids []string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if e, ok := m.entries[id]; ok {
			out[id] = e.ContentHash
		}
	}
	return out, nil
}

func (m *MemoryHashStore) Set(ctx context.Context, entries []HashEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		m.entries[e.ChunkID] = e
	}
	return nil
}

func (m *MemoryHashStore) Diff(ctx context.Context, candidates map[string]string) ([]string, error) {
	return diff(ctx, m, candidates)
}

// Len returns the number of stored entries.
func (m *MemoryHashStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

type hashGetter interface {
	Get(ctx context.Context, ids []string) (map[string]string, error)
}

func diff(ctx context.Context, store hashGetter, candidates map[string]string) ([]string, error) {
	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}

	stored, err := store.Get(ctx, ids)
	if err != nil {
		return nil, err
	}

	var changed []string
	for _, id := range ids {
		if hash, ok := stored[id]; !ok || hash != candidates[id] {
			changed = append(changed, id)
		}
	}
	return changed, nil
}
