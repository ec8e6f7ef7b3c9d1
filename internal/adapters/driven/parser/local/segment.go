package local

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

const paragraphSep = "\n\n"

// segmentVariable packs whole paragraphs into segments of at most limit
// runes. A paragraph longer than limit is split on separators by the
// recursive character splitter and each piece stands alone.
func segmentVariable(paras []paragraph, limit int) ([]domain.Segment, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(limit),
		textsplitter.WithChunkOverlap(0),
	)

	var (
		segments []domain.Segment
		buf      []string
		pages    []int
		size     int
	)
	flush := func() {
		if len(buf) == 0 {
			return
		}
		segments = append(segments, domain.Segment{
			Content: strings.Join(buf, paragraphSep),
			Pages:   uniquePages(pages),
		})
		buf, pages, size = nil, nil, 0
	}

	for _, p := range paras {
		n := utf8.RuneCountInString(p.Text)
		if n > limit {
			flush()
			pieces, err := splitter.SplitText(p.Text)
			if err != nil {
				return nil, err
			}
			for _, piece := range pieces {
				if piece = strings.TrimSpace(piece); piece != "" {
					segments = append(segments, domain.Segment{Content: piece, Pages: []int{p.Page}})
				}
			}
			continue
		}

		sepLen := 0
		if len(buf) > 0 {
			sepLen = len(paragraphSep)
		}
		if size+sepLen+n > limit {
			flush()
			sepLen = 0
		}
		buf = append(buf, p.Text)
		pages = append(pages, p.Page)
		size += sepLen + n
	}
	flush()
	return segments, nil
}

// segmentFixed cuts the joined text into windows of exactly limit runes
// (the last may be shorter). Each window lists every page whose text it
// overlaps; separators between paragraphs belong to no page.
func segmentFixed(paras []paragraph, limit int) []domain.Segment {
	var (
		text     []rune
		pageAt   []int // page of each rune, 0 for separators
		segments []domain.Segment
	)
	for i, p := range paras {
		if i > 0 {
			for range paragraphSep {
				text = append(text, '\n')
				pageAt = append(pageAt, 0)
			}
		}
		for _, r := range p.Text {
			text = append(text, r)
			pageAt = append(pageAt, p.Page)
		}
	}

	for start := 0; start < len(text); start += limit {
		end := min(start+limit, len(text))
		content := strings.TrimSpace(string(text[start:end]))
		if content == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Content: content,
			Pages:   uniquePages(pageAt[start:end]),
		})
	}
	return segments
}

func uniquePages(pages []int) []int {
	seen := make(map[int]bool, len(pages))
	var out []int
	for _, p := range pages {
		if p > 0 && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}
