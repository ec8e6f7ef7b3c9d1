package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/services"
)

var (
	searchLimit int
	searchMode  string
	searchJSON  bool
	searchRaw   bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search parsed document chunks",
	Long: `Performs hybrid search across all indexed chunks.
Combines keyword (BM25) and semantic (vector) search with reciprocal rank
fusion. Falls back to keyword search when no embedding provider is set up.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", domain.DefaultSearchLimit, "maximum number of results")
	searchCmd.Flags().StringVar(&searchMode, "mode", "", "search mode: hybrid or text_only (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchRaw, "agent-format", false, "print results as the agent's search tool returns them")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	opts := domain.SearchOptions{Limit: searchLimit}
	if searchMode != "" {
		mode := domain.SearchMode(searchMode)
		if !mode.IsValid() {
			return fmt.Errorf("%w: search mode %q", domain.ErrInvalidInput, searchMode)
		}
		opts.Mode = mode
	}

	results, err := searchService.Search(commandContext(cmd), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	switch {
	case searchJSON:
		if results == nil {
			results = []domain.SearchResult{}
		}
		return printJSON(cmd, results)
	case searchRaw:
		cmd.Println(services.FormatSearchResults(results))
		return nil
	}
	return outputSearchTable(cmd, results)
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		c := results[i].Chunk
		cmd.Printf("  [%d] %s %s p.%d-%d (%.4f)\n", i+1,
			headingStyle.Render(c.ChunkID), c.FileName, c.StartPage, c.EndPage, results[i].Score)

		snippet := oneLine(c.Text, 160)
		if len(results[i].Highlights) > 0 {
			snippet = oneLine(results[i].Highlights[0], 160)
		}
		if snippet != "" {
			cmd.Printf("      %s\n", snippet)
		}
		cmd.Println()
	}
	return nil
}
