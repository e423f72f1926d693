package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"notesearch/internal/config"
	"notesearch/internal/indexer"
	"notesearch/internal/vault"
)

var chunkCmd = &cobra.Command{
	Use:   "chunk FILE",
	Short: "Print the chunks of one document",
	Long: `Chunks a single source file the way an ingestion run would and prints
each chunk with its heading path, length and content hash. With
HASH_CACHE=sqlite each chunk is also marked new, changed or unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func init() {
	rootCmd.AddCommand(chunkCmd)
}

func runChunk(cmd *cobra.Command, args []string) error {
	manager, err := vault.NewManager(cfg.ContentRoot)
	if err != nil {
		return err
	}
	file, err := manager.ScanFile(args[0])
	if err != nil {
		return err
	}
	doc, err := manager.ReadDocument(file)
	if err != nil {
		return err
	}

	chunks, err := indexer.NewGoldmarkChunker(cfg.MaxChunkLength).Chunk(doc)
	if err != nil {
		return fmt.Errorf("failed to chunk %s: %w", file.RelPath, err)
	}

	cached, err := cachedHashes(cmd, file.DocID())
	if err != nil {
		return err
	}

	cmd.Printf("%s (%s, %s)\n", file.DocID(), file.Kind, doc.Title)
	for i, c := range chunks {
		cmd.Printf("\n[%d] %s  %d chars  %s%s\n", i+1, strings.Join(c.HeadingPath, " > "),
			len([]rune(c.Text)), c.ContentHash[:12], chunkStatus(cached, c))
		for _, line := range strings.Split(c.Text, "\n") {
			cmd.Printf("    %s\n", line)
		}
	}
	cmd.Printf("\n%d chunks\n", len(chunks))
	return nil
}

// cachedHashes returns the stored hashes of docID keyed by chunk id, or nil
// when no SQLite cache is configured or it does not exist yet.
func cachedHashes(cmd *cobra.Command, docID string) (map[string]string, error) {
	if cfg.HashCache != config.HashCacheSQLite {
		return nil, nil
	}
	if _, err := os.Stat(cfg.DBPath); err != nil {
		return nil, nil
	}

	repo, closeDB, err := openHashRepo(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	defer closeDB()

	entries, err := repo.ListByDoc(cmd.Context(), docID)
	if err != nil {
		return nil, err
	}
	hashes := make(map[string]string, len(entries))
	for _, e := range entries {
		hashes[e.ChunkID] = e.ContentHash
	}
	return hashes, nil
}

func chunkStatus(cached map[string]string, c indexer.Chunk) string {
	if cached == nil {
		return ""
	}
	stored, ok := cached[c.ChunkID]
	switch {
	case !ok:
		return "  new"
	case stored != c.ContentHash:
		return "  changed"
	default:
		return "  unchanged"
	}
}
