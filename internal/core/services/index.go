package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

const (
	embedBatchSize   = 64
	embedConcurrency = 4
)

// IndexService loads chunk-form files into the search index.
type IndexService struct {
	artifacts        driven.ArtifactStore
	chunkStore       driven.ChunkStore
	embeddingService driven.EmbeddingService
}

// NewIndexService creates a new index service.
// The embeddingService is optional; without it only keyword search is indexed.
func NewIndexService(
	artifacts driven.ArtifactStore,
	chunkStore driven.ChunkStore,
	embeddingService driven.EmbeddingService,
) *IndexService {
	return &IndexService{
		artifacts:        artifacts,
		chunkStore:       chunkStore,
		embeddingService: embeddingService,
	}
}

// Rebuild replaces the index with every chunk in the chunk-form directory.
// The existing index is untouched if any file is invalid, any chunk ID
// repeats, or embedding fails.
func (s *IndexService) Rebuild(ctx context.Context) (*driving.IndexStats, error) {
	logger.Section("Index Rebuild")

	forms, err := s.artifacts.ReadChunkForms(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chunk forms: %w", err)
	}

	paths := make([]string, 0, len(forms))
	for p := range forms {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	owner := make(map[string]string)
	var (
		chunks     []driven.IndexedChunk
		duplicates []string
	)
	for _, p := range paths {
		for _, c := range forms[p] {
			if err := c.Validate(); err != nil {
				return nil, fmt.Errorf("%s: %w", p, err)
			}
			if prev, ok := owner[c.ChunkID]; ok {
				duplicates = append(duplicates, fmt.Sprintf("%s (%s, %s)", c.ChunkID, prev, p))
				continue
			}
			owner[c.ChunkID] = p
			chunks = append(chunks, driven.IndexedChunk{Chunk: c})
		}
	}
	if len(duplicates) > 0 {
		return nil, fmt.Errorf("%w: duplicate chunk ids: %s", domain.ErrInvalidInput, strings.Join(duplicates, "; "))
	}
	logger.Info("Loaded %d chunks from %d file(s)", len(chunks), len(paths))

	if err := s.embed(ctx, chunks); err != nil {
		return nil, err
	}

	if err := s.chunkStore.ReplaceAll(ctx, chunks); err != nil {
		return nil, fmt.Errorf("replace index: %w", err)
	}

	stats := &driving.IndexStats{Files: len(paths), Chunks: len(chunks)}
	if s.embeddingService != nil {
		stats.Embedded = len(chunks)
	}
	return stats, nil
}

// Stats reports the current index size.
func (s *IndexService) Stats(ctx context.Context) (*driving.IndexStats, error) {
	n, embedded, err := s.chunkStore.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &driving.IndexStats{Chunks: n, Embedded: embedded}, nil
}

// embed fills in embeddings batch by batch with bounded concurrency.
func (s *IndexService) embed(ctx context.Context, chunks []driven.IndexedChunk) error {
	if s.embeddingService == nil {
		logger.Debug("Embedding service not configured, indexing keywords only")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, c.Chunk.Text)
			}
			vectors, err := s.embeddingService.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
			}
			if len(vectors) != len(texts) {
				return fmt.Errorf("embed chunks %d-%d: got %d vectors for %d texts", start, end, len(vectors), len(texts))
			}
			for i, v := range vectors {
				chunks[start+i].Embedding = v
			}
			logger.Debug("Embedded chunks %d-%d", start, end)
			return nil
		})
	}

	return g.Wait()
}
