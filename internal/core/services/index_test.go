package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/quarry/internal/core/domain"
)

func chunkForm(tag, file string, n int) []domain.Chunk {
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ChunkID:   fmt.Sprintf("%s%03d", tag, i+1),
			Text:      fmt.Sprintf("%s chunk %d", file, i+1),
			FileName:  file,
			StartPage: i + 1,
			EndPage:   i + 1,
		}
	}
	return chunks
}

func TestIndexService_Rebuild(t *testing.T) {
	ctx := context.Background()
	artifacts := newMockArtifactStore()
	artifacts.chunkForms["chunks/c-a.json"] = chunkForm("AAA", "a.pdf", 70)
	artifacts.chunkForms["chunks/c-b.json"] = chunkForm("BBB", "b.pdf", 3)
	store := memory.NewChunkStore()
	embedder := &mockEmbeddingService{embedding: []float32{1, 0}}

	svc := NewIndexService(artifacts, store, embedder)
	stats, err := svc.Rebuild(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 73, stats.Chunks)
	assert.Equal(t, 73, stats.Embedded)
	assert.Equal(t, 2, embedder.batches)

	chunk, err := store.GetChunk(ctx, "BBB002")
	require.NoError(t, err)
	assert.Equal(t, "b.pdf", chunk.FileName)

	current, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 73, current.Chunks)
	assert.Equal(t, 73, current.Embedded)
}

func TestIndexService_Rebuild_ReplacesPreviousIndex(t *testing.T) {
	ctx := context.Background()
	artifacts := newMockArtifactStore()
	artifacts.chunkForms["chunks/c-a.json"] = chunkForm("AAA", "a.pdf", 2)
	store := memory.NewChunkStore()
	svc := NewIndexService(artifacts, store, nil)

	_, err := svc.Rebuild(ctx)
	require.NoError(t, err)

	delete(artifacts.chunkForms, "chunks/c-a.json")
	artifacts.chunkForms["chunks/c-b.json"] = chunkForm("BBB", "b.pdf", 1)
	stats, err := svc.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Chunks)
	assert.Zero(t, stats.Embedded)

	_, err = store.GetChunk(ctx, "AAA001")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexService_Rebuild_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate chunk ids keep old index", func(t *testing.T) {
		artifacts := newMockArtifactStore()
		artifacts.chunkForms["chunks/c-a.json"] = chunkForm("AAA", "a.pdf", 1)
		store := memory.NewChunkStore()
		svc := NewIndexService(artifacts, store, nil)
		_, err := svc.Rebuild(ctx)
		require.NoError(t, err)

		artifacts.chunkForms["chunks/c-copy.json"] = chunkForm("AAA", "copy.pdf", 1)
		_, err = svc.Rebuild(ctx)

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Contains(t, err.Error(), "AAA001")
		n, _, _ := store.Stats(ctx)
		assert.Equal(t, 1, n)
	})

	t.Run("malformed chunk", func(t *testing.T) {
		artifacts := newMockArtifactStore()
		artifacts.chunkForms["chunks/c-bad.json"] = []domain.Chunk{{ChunkID: "bad", FileName: "x.pdf", StartPage: 1, EndPage: 1}}
		_, err := NewIndexService(artifacts, memory.NewChunkStore(), nil).Rebuild(ctx)
		require.Error(t, err)
	})

	t.Run("embedding failure", func(t *testing.T) {
		artifacts := newMockArtifactStore()
		artifacts.chunkForms["chunks/c-a.json"] = chunkForm("AAA", "a.pdf", 2)
		store := memory.NewChunkStore()
		_, err := NewIndexService(artifacts, store, &mockEmbeddingService{embedErr: errors.New("quota")}).Rebuild(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota")
		n, _, _ := store.Stats(ctx)
		assert.Zero(t, n)
	})
}
