package driven

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// DocumentParser turns a PDF or DOCX file into ordered segments.
// The hosted parsing API and the local extractor both implement it.
type DocumentParser interface {
	// Parse reads the file at path and segments it with the given options.
	// Failures of a remote service wrap domain.ErrUpstream or domain.ErrRateLimited.
	Parse(ctx context.Context, path string, opts domain.ChunkingOptions) (*domain.ParsedDocument, error)

	// SupportedExtensions lists the lower-case extensions (with dot) it accepts.
	SupportedExtensions() []string

	// Name identifies the backend in logs and reports.
	Name() string
}
