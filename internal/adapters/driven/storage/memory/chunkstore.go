package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

// Ensure ChunkStore implements the interfaces.
var (
	_ driven.ChunkStore   = (*ChunkStore)(nil)
	_ driven.SearchEngine = (*ChunkStore)(nil)
	_ driven.VectorIndex  = vectorView{}
)

// ChunkStore is an in-memory chunk store with naive term-count keyword
// search and brute-force cosine vector search, for testing.
type ChunkStore struct {
	mu     sync.RWMutex
	chunks map[string]driven.IndexedChunk
}

// NewChunkStore creates an empty store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{chunks: make(map[string]driven.IndexedChunk)}
}

// ReplaceAll swaps the chunk set.
func (s *ChunkStore) ReplaceAll(_ context.Context, chunks []driven.IndexedChunk) error {
	next := make(map[string]driven.IndexedChunk, len(chunks))
	for _, c := range chunks {
		next[c.Chunk.ChunkID] = c
	}
	s.mu.Lock()
	s.chunks = next
	s.mu.Unlock()
	return nil
}

// GetChunk retrieves a chunk by ID.
func (s *ChunkStore) GetChunk(_ context.Context, chunkID string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[chunkID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	chunk := c.Chunk
	return &chunk, nil
}

// ListChunks returns the chunks of one file in ID order.
func (s *ChunkStore) ListChunks(_ context.Context, fileName string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Chunk
	for _, c := range s.chunks {
		if c.Chunk.FileName == fileName {
			out = append(out, c.Chunk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkID < out[j].ChunkID })
	return out, nil
}

// Stats counts chunks and embedded chunks.
func (s *ChunkStore) Stats(_ context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	embedded := 0
	for _, c := range s.chunks {
		if len(c.Embedding) > 0 {
			embedded++
		}
	}
	return len(s.chunks), embedded, nil
}

// Search scores chunks by how many query terms their text contains.
func (s *ChunkStore) Search(_ context.Context, query string, limit int) ([]driven.SearchHit, error) {
	terms := strings.Fields(strings.ToLower(query))
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []driven.SearchHit
	for id, c := range s.chunks {
		text := strings.ToLower(c.Chunk.Text)
		score := 0.0
		for _, term := range terms {
			score += float64(strings.Count(text, term))
		}
		if score > 0 {
			hits = append(hits, driven.SearchHit{ChunkID: id, Score: score})
		}
	}
	sortHits(hits, func(i int) float64 { return hits[i].Score }, func(i int) string { return hits[i].ChunkID })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// VectorIndex returns a cosine-similarity view over stored embeddings.
func (s *ChunkStore) VectorIndex() driven.VectorIndex {
	return vectorView{s}
}

type vectorView struct{ s *ChunkStore }

func (v vectorView) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	return v.s.nearest(ctx, query, k)
}

func (s *ChunkStore) nearest(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var hits []driven.VectorHit
	for id, c := range s.chunks {
		if len(c.Embedding) != len(query) || len(query) == 0 {
			continue
		}
		hits = append(hits, driven.VectorHit{ChunkID: id, Similarity: cosine(query, c.Embedding)})
	}
	sortHits(hits, func(i int) float64 { return hits[i].Similarity }, func(i int) string { return hits[i].ChunkID })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func sortHits[T any](hits []T, score func(int) float64, id func(int) string) {
	sort.SliceStable(hits, func(i, j int) bool {
		if score(i) != score(j) {
			return score(i) > score(j)
		}
		return id(i) < id(j)
	})
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
