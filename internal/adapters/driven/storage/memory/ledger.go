package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

// Ensure TagLedger implements the interface.
var _ driven.TagLedger = (*TagLedger)(nil)

// TagLedger is an in-memory implementation of driven.TagLedger for testing.
type TagLedger struct {
	mu   sync.Mutex
	tags map[string]domain.IssuedTag
}

// NewTagLedger creates a ledger pre-seeded with already issued tags.
func NewTagLedger(issued ...string) *TagLedger {
	l := &TagLedger{tags: make(map[string]domain.IssuedTag)}
	for _, tag := range issued {
		l.tags[tag] = domain.IssuedTag{Tag: tag}
	}
	return l
}

// Reserve records a tag, failing if it was issued before.
func (l *TagLedger) Reserve(_ context.Context, issued domain.IssuedTag) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tags[issued.Tag]; ok {
		return domain.ErrAlreadyExists
	}
	l.tags[issued.Tag] = issued
	return nil
}

// Release forgets a tag.
func (l *TagLedger) Release(_ context.Context, tag string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.tags, tag)
	return nil
}

// Lookup returns the record for a tag.
func (l *TagLedger) Lookup(_ context.Context, tag string) (*domain.IssuedTag, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.tags[tag]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

// Count returns the number of issued tags.
func (l *TagLedger) Count(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tags), nil
}
