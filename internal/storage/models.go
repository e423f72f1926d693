package storage

import "time"

// HashEntry records the content hash last written to the index for a chunk.
type HashEntry struct {
	ChunkID     string
	DocID       string
	ContentHash string
	UpdatedAt   time.Time
}
