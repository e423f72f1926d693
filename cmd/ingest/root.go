package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"notesearch/internal/config"
)

var (
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index the content root into the vector store",
	Long: `Reads notes, books and bookmark lists from the content root, splits them
into heading-scoped chunks and writes embeddings for new or edited chunks
to the vector store.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "content root (overrides CONTENT_ROOT)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	if rootDir != "" {
		c.ContentRoot = rootDir
	}

	slog.SetDefault(c.NewLogger(cmd.ErrOrStderr()))
	cfg = c
	return nil
}
