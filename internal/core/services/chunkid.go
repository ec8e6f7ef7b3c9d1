package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/logger"
)

// maxTagDraws bounds redraws when a drawn tag was already issued.
const maxTagDraws = 64

// TagSource draws candidate document tags.
type TagSource func() string

// RandomTag draws three uniformly random uppercase letters.
func RandomTag() string {
	var b [domain.TagLength]byte
	for i := range b {
		b[i] = byte('A' + rand.IntN(26))
	}
	return string(b[:])
}

// ChunkIDAssigner gives each document a fresh tag and numbers its segments.
type ChunkIDAssigner struct {
	ledger driven.TagLedger
	draw   TagSource
}

// NewChunkIDAssigner creates an assigner backed by the given ledger.
// A nil draw uses RandomTag.
func NewChunkIDAssigner(ledger driven.TagLedger, draw TagSource) *ChunkIDAssigner {
	if draw == nil {
		draw = RandomTag
	}
	return &ChunkIDAssigner{ledger: ledger, draw: draw}
}

// Assign reserves a tag for fileName and turns segments into chunks numbered
// 001..N in order. Documents with more segments than a sequence can number
// fail before any tag is reserved.
func (a *ChunkIDAssigner) Assign(
	ctx context.Context, fileName, runID string, segments []domain.Segment,
) ([]domain.Chunk, error) {
	if len(segments) > domain.MaxSequence {
		return nil, fmt.Errorf("%w: %s has %d segments, limit is %d",
			domain.ErrSequenceOverflow, fileName, len(segments), domain.MaxSequence)
	}

	tag, err := a.reserveTag(ctx, fileName, runID)
	if err != nil {
		return nil, err
	}
	logger.Debug("Assigned tag %s to %s", tag, fileName)

	chunks := make([]domain.Chunk, len(segments))
	prevEnd := 1
	for i, seg := range segments {
		id, err := domain.FormatChunkID(tag, i+1)
		if err != nil {
			return nil, err
		}

		start, end := prevEnd, prevEnd
		if seg.HasPages() {
			start, end = seg.StartPage(), seg.EndPage()
		}
		if start < 1 {
			start = 1
		}
		if end < start {
			end = start
		}
		prevEnd = end

		chunks[i] = domain.Chunk{
			ChunkID:   id,
			Text:      seg.Content,
			FileName:  fileName,
			StartPage: start,
			EndPage:   end,
		}
	}
	return chunks, nil
}

// Release returns a reserved tag when the document's output was never written.
func (a *ChunkIDAssigner) Release(ctx context.Context, tag string) {
	if err := a.ledger.Release(ctx, tag); err != nil {
		logger.Warn("Releasing tag %s: %v", tag, err)
	}
}

func (a *ChunkIDAssigner) reserveTag(ctx context.Context, fileName, runID string) (string, error) {
	for attempt := 0; attempt < maxTagDraws; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tag := a.draw()
		if !domain.ValidTag(tag) {
			return "", fmt.Errorf("%w: drawn tag %q", domain.ErrInvalidInput, tag)
		}
		err := a.ledger.Reserve(ctx, domain.IssuedTag{Tag: tag, FileName: fileName, RunID: runID})
		if err == nil {
			return tag, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return "", fmt.Errorf("reserve tag: %w", err)
		}
		logger.Debug("Tag %s already issued, drawing again", tag)
	}
	return "", fmt.Errorf("%w: %d draws for %s all collided", domain.ErrTagSpaceExhausted, maxTagDraws, fileName)
}
