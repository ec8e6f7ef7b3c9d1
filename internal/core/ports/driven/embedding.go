package driven

import "context"

// EmbeddingService turns text into vectors for semantic search and chunk
// indexing. A nil EmbeddingService means quarry runs keyword-only.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector width the index is built with.
	Dimensions() int
	ModelName() string

	// Ping sends the smallest request the provider accepts.
	Ping(ctx context.Context) error
	Close() error
}
