package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
	"github.com/custodia-labs/quarry/internal/logger"
)

var _ driving.SearchService = (*SearchService)(nil)

// rrfK damps the weight of top ranks in reciprocal rank fusion.
const rrfK = 60

// oversample widens the candidate pool each retriever returns so fusion and
// stale-hit filtering still leave enough results for the requested page.
const oversample = 2

type scoredChunk struct {
	chunkID string
	score   float64
}

// retriever is one ranked source of candidate chunks.
type retriever struct {
	name string
	run  func(ctx context.Context, query string, limit int) ([]scoredChunk, error)
}

// SearchService ranks indexed chunks by keyword match, vector similarity,
// or both fused with RRF.
type SearchService struct {
	chunks      driven.ChunkStore
	keywords    driven.SearchEngine
	vectors     driven.VectorIndex
	embedder    driven.EmbeddingService
	defaultMode domain.SearchMode
}

// NewSearchService wires the search backends. vectors and embedder may be
// nil, in which case hybrid requests run keyword-only.
func NewSearchService(
	chunks driven.ChunkStore,
	keywords driven.SearchEngine,
	vectors driven.VectorIndex,
	embedder driven.EmbeddingService,
	defaultMode domain.SearchMode,
) *SearchService {
	return &SearchService{
		chunks:      chunks,
		keywords:    keywords,
		vectors:     vectors,
		embedder:    embedder,
		defaultMode: defaultMode,
	}
}

// Search returns one page of results for query. A blank query matches nothing.
func (s *SearchService) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.SearchResult{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = domain.DefaultSearchLimit
	}
	mode := s.resolveMode(opts.Mode)
	pool := (opts.Offset + limit) * oversample

	logger.Section("Search")
	logger.Debug("query=%q mode=%s limit=%d offset=%d pool=%d", query, mode, limit, opts.Offset, pool)

	ranked, err := s.retrieve(ctx, s.retrieversFor(mode), query, pool)
	if err != nil {
		logger.Warn("Search failed: %v", err)
		return nil, fmt.Errorf("search: %w", err)
	}

	results, err := s.hydrate(ctx, ranked, query)
	if err != nil {
		return nil, fmt.Errorf("hydrate results: %w", err)
	}
	page := paginate(results, opts.Offset, limit)
	logger.Info("Search %q: %d candidates, %d returned", query, len(ranked), len(page))
	return page, nil
}

// resolveMode applies the configured default and downgrades hybrid when no
// vector backend is wired.
func (s *SearchService) resolveMode(requested domain.SearchMode) domain.SearchMode {
	mode := requested
	if !mode.IsValid() {
		mode = s.defaultMode
	}
	if !mode.IsValid() {
		return domain.SearchModeTextOnly
	}
	if mode == domain.SearchModeHybrid && !s.vectorsReady() {
		logger.Debug("No vector backend, using keyword search")
		return domain.SearchModeTextOnly
	}
	return mode
}

func (s *SearchService) vectorsReady() bool {
	return s.vectors != nil && s.embedder != nil
}

func (s *SearchService) retrieversFor(mode domain.SearchMode) []retriever {
	keyword := retriever{name: "keyword", run: s.keywordHits}
	if mode == domain.SearchModeHybrid {
		return []retriever{keyword, {name: "vector", run: s.vectorHits}}
	}
	return []retriever{keyword}
}

// retrieve runs the retrievers concurrently. A single retriever's ranking is
// returned as is; several are fused. Retrievers that fail are dropped as long
// as one succeeds.
func (s *SearchService) retrieve(ctx context.Context, rs []retriever, query string, limit int) ([]scoredChunk, error) {
	lists := make([][]scoredChunk, len(rs))
	errs := make([]error, len(rs))

	var wg sync.WaitGroup
	for i, r := range rs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lists[i], errs[i] = r.run(ctx, query, limit)
		}()
	}
	wg.Wait()

	var ok [][]scoredChunk
	for i, r := range rs {
		if errs[i] != nil {
			if len(rs) > 1 {
				logger.Warn("%s search failed, continuing without it: %v", r.name, errs[i])
			}
			continue
		}
		logger.Debug("%s search: %d hits", r.name, len(lists[i]))
		ok = append(ok, lists[i])
	}

	switch len(ok) {
	case 0:
		return nil, errors.Join(errs...)
	case 1:
		return ok[0], nil
	default:
		return reciprocalRankFusion(rrfK, ok...), nil
	}
}

func (s *SearchService) keywordHits(ctx context.Context, query string, limit int) ([]scoredChunk, error) {
	if s.keywords == nil {
		return nil, domain.ErrSearchUnavailable
	}
	hits, err := s.keywords.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	out := make([]scoredChunk, len(hits))
	for i, h := range hits {
		out[i] = scoredChunk{chunkID: h.ChunkID, score: h.Score}
	}
	return out, nil
}

func (s *SearchService) vectorHits(ctx context.Context, query string, limit int) ([]scoredChunk, error) {
	if !s.vectorsReady() {
		return nil, domain.ErrEmbeddingUnavailable
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.vectors.Search(ctx, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	out := make([]scoredChunk, len(hits))
	for i, h := range hits {
		out[i] = scoredChunk{chunkID: h.ChunkID, score: h.Similarity}
	}
	return out, nil
}

// reciprocalRankFusion scores each chunk by the sum of 1/(k+rank) over the
// lists it appears in. Ties go to the smaller chunk ID.
func reciprocalRankFusion(k int, lists ...[]scoredChunk) []scoredChunk {
	fused := make(map[string]float64)
	for _, list := range lists {
		for rank, c := range list {
			fused[c.chunkID] += 1 / float64(k+rank+1)
		}
	}

	out := make([]scoredChunk, 0, len(fused))
	for id, score := range fused {
		out = append(out, scoredChunk{chunkID: id, score: score})
	}
	slices.SortFunc(out, func(a, b scoredChunk) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return strings.Compare(a.chunkID, b.chunkID)
	})
	return out
}

// hydrate loads each ranked chunk. IDs no longer in the store are skipped:
// the index can be rebuilt between ranking and loading.
func (s *SearchService) hydrate(ctx context.Context, ranked []scoredChunk, query string) ([]domain.SearchResult, error) {
	if s.chunks == nil {
		return nil, errors.New("chunk store unavailable")
	}
	terms := strings.Fields(strings.ToLower(query))

	out := make([]domain.SearchResult, 0, len(ranked))
	for _, r := range ranked {
		chunk, err := s.chunks.GetChunk(ctx, r.chunkID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get chunk %s: %w", r.chunkID, err)
		}
		out = append(out, domain.SearchResult{
			Chunk:      *chunk,
			Score:      r.score,
			Highlights: highlight(chunk.Text, terms),
		})
	}
	return out, nil
}

func paginate(results []domain.SearchResult, offset, limit int) []domain.SearchResult {
	if offset >= len(results) {
		return []domain.SearchResult{}
	}
	return results[offset:min(offset+limit, len(results))]
}

const (
	maxHighlights   = 3
	highlightRunes  = 200
	formattedRunes  = 500
	sentenceEndings = ".!?\n"
)

// highlight returns up to maxHighlights sentences of text containing any of
// the lower-cased terms.
func highlight(text string, terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	var out []string
	for _, sentence := range sentences(text) {
		lower := strings.ToLower(sentence)
		if slices.ContainsFunc(terms, func(t string) bool { return strings.Contains(lower, t) }) {
			out = append(out, truncateRunes(sentence, highlightRunes))
			if len(out) == maxHighlights {
				break
			}
		}
	}
	return out
}

// sentences splits after each terminator or newline, trimming whitespace and
// dropping empty pieces.
func sentences(text string) []string {
	var out []string
	for text != "" {
		end := strings.IndexAny(text, sentenceEndings) + 1
		if end == 0 {
			end = len(text)
		}
		if s := strings.TrimSpace(text[:end]); s != "" {
			out = append(out, s)
		}
		text = text[end:]
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// FormatSearchResults renders results as the agent's search tool returns
// them to the model.
func FormatSearchResults(results []domain.SearchResult) string {
	if len(results) == 0 {
		return "No relevant documents found for this query."
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		c := r.Chunk
		fmt.Fprintf(&b, "[CHUNK_ID: %s]\nSource: %s (pages %d-%d)\nRelevance: %.4f\nContent:\n%s\n",
			c.ChunkID, c.FileName, c.StartPage, c.EndPage, r.Score, truncateRunes(c.Text, formattedRunes))
	}
	return b.String()
}
