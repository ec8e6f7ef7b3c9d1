package driven

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// ArtifactStore persists pipeline outputs on the filesystem.
// All writes are atomic: a reader never sees a partially written file.
type ArtifactStore interface {
	// WriteRawForm stores the parser's raw response for a document stem.
	WriteRawForm(ctx context.Context, stem string, raw []byte) (string, error)

	// WriteChunkForm stores the chunk list for a document stem.
	WriteChunkForm(ctx context.Context, stem string, chunks []domain.Chunk) (string, error)

	// ChunkFormOwner returns the file name recorded in the chunk form for
	// stem, or "" when there is none.
	ChunkFormOwner(ctx context.Context, stem string) (string, error)

	// ReadChunkForms loads every chunk-form file, keyed by file path.
	ReadChunkForms(ctx context.Context) (map[string][]domain.Chunk, error)

	// ListInbox returns files in dir whose extension is in exts.
	ListInbox(ctx context.Context, dir string, exts []string) ([]string, error)

	// FindStem returns the base names of files in dir whose name without
	// extension matches stem, ignoring case. A missing dir has none.
	FindStem(ctx context.Context, dir, stem string) ([]string, error)

	// MoveTo moves path into dir, keeping its base name.
	MoveTo(ctx context.Context, path, dir string) (string, error)
}
