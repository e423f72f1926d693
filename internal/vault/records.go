package vault

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"notesearch/internal/document"
	"notesearch/internal/service"
)

const recordsQuery = `SELECT id::text, kind, title, COALESCE(body, ''), COALESCE(url, ''), COALESCE(category, '')
FROM records
ORDER BY kind, id`

// RecordSource reads exported CRUD records from Postgres. Every record is
// treated as a structured markdown document.
type RecordSource struct {
	pool *pgxpool.Pool
}

// NewRecordSource connects to dsn and verifies the connection.
func NewRecordSource(ctx context.Context, dsn string) (*RecordSource, error) {
	if dsn == "" {
		return nil, &service.ConfigurationError{Setting: "RECORDS_DSN", Message: "must be set"}
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, &service.ConfigurationError{Setting: "RECORDS_DSN", Message: err.Error()}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to records database: %w", err)
	}
	return &RecordSource{pool: pool}, nil
}

// Close releases the pool.
func (s *RecordSource) Close() {
	s.pool.Close()
}

// record is one row of the records table.
type record struct {
	ID       string
	Kind     string
	Title    string
	Body     string
	URL      string
	Category string
}

// Load reads all records.
func (s *RecordSource) Load(ctx context.Context) ([]Loaded, error) {
	rows, err := s.pool.Query(ctx, recordsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	recs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[record])
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	loaded := make([]Loaded, 0, len(recs))
	for _, rec := range recs {
		doc, err := recordDocument(rec)
		loaded = append(loaded, Loaded{DocID: doc.DocID, Doc: doc, Err: err})
	}
	return loaded, nil
}

// recordDocument maps a row to a document. Unknown kinds are parse errors.
func recordDocument(rec record) (document.Document, error) {
	docID := fmt.Sprintf("db:%s/%s", rec.Kind, rec.ID)

	kind, err := document.ParseKind(rec.Kind)
	if err != nil {
		return document.Document{DocID: docID}, &service.ParseError{DocID: docID, Err: err}
	}

	return document.Document{
		DocID:    docID,
		Format:   document.Structured,
		Kind:     kind,
		Title:    rec.Title,
		Body:     []byte(rec.Body),
		URL:      rec.URL,
		Category: rec.Category,
	}, nil
}
