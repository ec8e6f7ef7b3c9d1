package driven

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// IndexedChunk is a chunk with its optional embedding.
type IndexedChunk struct {
	Chunk     domain.Chunk
	Embedding []float32
}

// ChunkStore persists the indexed chunk set.
type ChunkStore interface {
	// ReplaceAll swaps the whole chunk set in one transaction.
	ReplaceAll(ctx context.Context, chunks []IndexedChunk) error

	// GetChunk retrieves a chunk by ID.
	GetChunk(ctx context.Context, chunkID string) (*domain.Chunk, error)

	// ListChunks returns chunks of one file in sequence order.
	ListChunks(ctx context.Context, fileName string) ([]domain.Chunk, error)

	// Stats returns the number of chunks and of chunks with embeddings.
	Stats(ctx context.Context) (chunks, embedded int, err error)
}
