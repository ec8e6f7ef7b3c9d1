package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	indexStats bool
	indexJSON  bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the search index from chunk-form files",
	Long: `Rebuilds the hybrid search index from every chunk-form file in
results/chunk-form. Chunks are indexed for keyword (BM25) search and, when an
embedding provider is configured, embedded for semantic search.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexStats, "stats", false, "show index size without rebuilding")
	indexCmd.Flags().BoolVar(&indexJSON, "json", false, "output statistics as JSON")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}
	ctx := commandContext(cmd)

	if indexStats {
		stats, err := indexService.Stats(ctx)
		if err != nil {
			return fmt.Errorf("failed to read index: %w", err)
		}
		if indexJSON {
			return printJSON(cmd, stats)
		}
		cmd.Printf("Index: %d chunks from %d files, %d embedded\n", stats.Chunks, stats.Files, stats.Embedded)
		return nil
	}

	cmd.Println("Rebuilding search index...")
	stats, err := indexService.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}
	if indexJSON {
		return printJSON(cmd, stats)
	}
	cmd.Printf("Indexed %d chunks from %d files (%d embedded).\n", stats.Chunks, stats.Files, stats.Embedded)
	if stats.Chunks > 0 && stats.Embedded == 0 {
		cmd.Println(mutedStyle.Render("No embeddings were created; search will use keywords only."))
	}
	return nil
}
