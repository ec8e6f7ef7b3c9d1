package driven

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// TagLedger is the persisted set of every document tag ever issued.
// It outlives a single run so tags never repeat across runs.
type TagLedger interface {
	// Reserve records tag as issued. It returns domain.ErrAlreadyExists
	// if the tag was issued before, by this run or any earlier one.
	Reserve(ctx context.Context, issued domain.IssuedTag) error

	// Release forgets a tag whose document produced no output.
	Release(ctx context.Context, tag string) error

	// Lookup returns the issue record for a tag.
	Lookup(ctx context.Context, tag string) (*domain.IssuedTag, error)

	// Count returns the number of issued tags.
	Count(ctx context.Context) (int, error)
}
