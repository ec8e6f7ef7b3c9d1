package driven

import "context"

// SearchEngine ranks chunks by keyword relevance. The SQLite store answers
// it from an FTS5 table with bm25.
type SearchEngine interface {
	// Search returns at most limit hits, best first.
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
}

// SearchHit is a keyword match. Higher scores rank first.
type SearchHit struct {
	ChunkID string
	Score   float64
}

// VectorIndex ranks chunks by cosine similarity to a query embedding.
type VectorIndex interface {
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)
}

// VectorHit is a nearest-neighbour match with its cosine similarity.
type VectorHit struct {
	ChunkID    string
	Similarity float64
}
