package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"notesearch/internal/contextutil"
	"notesearch/internal/service"
)

// PgVectorStore is a PostgreSQL-backed Store using the pgvector extension.
// Each collection is one table.
type PgVectorStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPgVectorStore connects to PostgreSQL and verifies the connection.
func NewPgVectorStore(ctx context.Context, dsn, collection string) (*PgVectorStore, error) {
	if dsn == "" {
		return nil, &service.ConfigurationError{Setting: "PGVECTOR_DSN", Message: "is required for the pgvector backend"}
	}
	if collection == "" {
		return nil, &service.ConfigurationError{Setting: "COLLECTION", Message: "collection name is required"}
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pgvector pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, classifyPg("ping", fmt.Errorf("ping pgvector: %w", err))
	}

	return &PgVectorStore{
		pool:  pool,
		table: pgx.Identifier{collection}.Sanitize(),
	}, nil
}

// Close closes the connection pool.
func (s *PgVectorStore) Close() {
	s.pool.Close()
}

// EnsureSchema creates the extension, table and HNSW cosine index, then
// checks the stored dimensionality of the embedding column.
func (s *PgVectorStore) EnsureSchema(ctx context.Context, dims int) error {
	logger := contextutil.LoggerFromContext(ctx)

	if dims <= 0 {
		return &service.ConfigurationError{Setting: "EMBEDDING_DIMENSIONS", Message: "must be greater than 0"}
	}

	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			kind TEXT NOT NULL,
			top_heading TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			payload JSONB NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`, s.table, dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pgx.Identifier{s.indexName("embedding")}.Sanitize(), s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (kind)`,
			pgx.Identifier{s.indexName("kind")}.Sanitize(), s.table),
	}
	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return classifyPg("migrate", fmt.Errorf("execute migration: %w", err))
		}
	}

	var actual int
	err := s.pool.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute WHERE attrelid = $1::regclass AND attname = 'embedding'`,
		s.table,
	).Scan(&actual)
	if err != nil {
		return classifyPg("schema", fmt.Errorf("read embedding dimension: %w", err))
	}
	if err := validateSchema(actual, true, dims); err != nil {
		return err
	}

	logger.InfoContext(ctx, "pgvector table validated", "table", s.table, "vector_size", dims)
	return nil
}

func (s *PgVectorStore) indexName(suffix string) string {
	name := s.table
	if len(name) >= 2 && name[0] == '"' {
		name = name[1 : len(name)-1]
	}
	return name + "_" + suffix + "_idx"
}

// Upsert writes all points in one batch round trip.
func (s *PgVectorStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, kind, top_heading, content_hash, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			kind = EXCLUDED.kind,
			top_heading = EXCLUDED.top_heading,
			content_hash = EXCLUDED.content_hash,
			payload = EXCLUDED.payload,
			updated_at = NOW()`, s.table)

	batch := &pgx.Batch{}
	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload for %s: %w", p.ID, err)
		}
		batch.Queue(query, p.ID, pgvector.NewVector(p.Vector), p.Payload.Kind, p.Payload.TopHeading, p.Payload.ContentHash, payload)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return classifyPg("upsert", fmt.Errorf("upsert points: %w", err))
	}
	return nil
}

// Query orders by cosine distance; score is 1 - distance.
func (s *PgVectorStore) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Hit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be greater than 0")
	}

	var kinds []string
	var heading string
	if filter != nil {
		kinds = filter.Kinds
		heading = filter.Heading
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, 1 - (embedding <=> $1) AS score, payload
		FROM %s
		WHERE ($2::text[] IS NULL OR kind = ANY($2::text[]))
		  AND ($3::text = '' OR top_heading = $3::text)
		ORDER BY embedding <=> $1
		LIMIT $4`, s.table),
		pgvector.NewVector(vector), kinds, heading, topK,
	)
	if err != nil {
		return nil, classifyPg("query", fmt.Errorf("query: %w", err))
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			id      string
			score   float64
			payload []byte
		)
		if err := rows.Scan(&id, &score, &payload); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		meta := make(map[string]any)
		if err := json.Unmarshal(payload, &meta); err != nil {
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "skipping row with unreadable payload", "id", id, "error", err)
			continue
		}
		hits = append(hits, Hit{ID: id, Score: float32(score), Payload: meta})
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPg("query", fmt.Errorf("row iteration error: %w", err))
	}
	return hits, nil
}

// ContentHashes reads content_hash for the given ids.
func (s *PgVectorStore) ContentHashes(ctx context.Context, ids []string) (map[string]string, error) {
	hashes := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return hashes, nil
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT id, content_hash FROM %s WHERE id = ANY($1::text[])`, s.table), ids)
	if err != nil {
		return nil, classifyPg("content hashes", fmt.Errorf("query hashes: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		hashes[id] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPg("content hashes", fmt.Errorf("row iteration error: %w", err))
	}
	return hashes, nil
}

// classifyPg marks connection failures and retryable server states as transient.
func classifyPg(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return service.Transient(op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08": // connection exception
			return service.Transient(op, err)
		case pgErr.Code == "40001", pgErr.Code == "40P01": // serialization failure, deadlock
			return service.Transient(op, err)
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "53": // insufficient resources
			return service.Transient(op, err)
		case pgErr.Code == "57P01", pgErr.Code == "57P03": // admin shutdown, cannot connect now
			return service.Transient(op, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return service.Transient(op, err)
	}
	return err
}
