package driving

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// DocumentIngestService turns inbox documents into chunk-form files.
type DocumentIngestService interface {
	// ProcessInbox parses every supported document in the docs inbox.
	// A failing document is reported and skipped; the rest proceed.
	ProcessInbox(ctx context.Context) (*domain.BatchReport, error)

	// ProcessFile parses a single document.
	ProcessFile(ctx context.Context, path string) domain.ItemResult
}

// TabularService turns inbox tabular files into relational stores.
type TabularService interface {
	// ConvertInbox converts every supported file in the data inbox.
	ConvertInbox(ctx context.Context) (*domain.BatchReport, error)

	// ConvertFile converts a single file.
	ConvertFile(ctx context.Context, path string) domain.ItemResult
}

// IndexStats summarises an index rebuild.
type IndexStats struct {
	Files    int `json:"files"`
	Chunks   int `json:"chunks"`
	Embedded int `json:"embedded"`
}

// IndexService builds the search index from chunk-form files.
type IndexService interface {
	// Rebuild replaces the index with every chunk-form file's chunks.
	Rebuild(ctx context.Context) (*IndexStats, error)

	// Stats reports the current index size.
	Stats(ctx context.Context) (*IndexStats, error)
}
