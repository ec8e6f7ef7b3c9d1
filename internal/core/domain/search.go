package domain

// DefaultSearchLimit is the number of chunks returned when no limit is given.
const DefaultSearchLimit = 5

// SearchOptions configures a search query.
type SearchOptions struct {
	// Limit is the maximum number of results.
	Limit int

	// Offset is the number of results to skip.
	Offset int

	// Mode overrides the configured search mode when set.
	Mode SearchMode
}

// SearchResult represents a single search hit.
type SearchResult struct {
	// Chunk is the matched chunk.
	Chunk Chunk `json:"chunk"`

	// Score is the relevance score (higher is better).
	Score float64 `json:"score"`

	// Highlights contains snippets with matched terms.
	Highlights []string `json:"highlights,omitempty"`
}
