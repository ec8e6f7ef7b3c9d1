package driven

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// TabularReader reads a tabular file into sheets of raw cell text.
type TabularReader interface {
	// Read loads the file. Unsupported formats return domain.ErrUnsupportedType.
	Read(ctx context.Context, path string) (*domain.Workbook, error)

	// SupportedExtensions lists the lower-case extensions (with dot) it accepts.
	SupportedExtensions() []string
}

// RelationalStore manages one SQLite store per tabular source.
type RelationalStore interface {
	// Publish replaces each given relation in the store at path.
	// Relations not named are left untouched. The live store is swapped
	// in only after every relation was written.
	Publish(ctx context.Context, path string, relations []domain.Relation) error

	// Describe lists the relations in the store with columns and row counts.
	Describe(ctx context.Context, path string) ([]domain.RelationInfo, error)

	// Query runs a single read-only statement, returning at most maxRows rows.
	Query(ctx context.Context, path, sql string, maxRows int) (*domain.QueryResult, error)
}

// RegistryStore loads and saves the registry document.
type RegistryStore interface {
	// Load returns the registry. A missing file is an empty registry.
	Load(ctx context.Context) (*domain.Registry, error)

	// Save writes the registry atomically.
	Save(ctx context.Context, reg *domain.Registry) error

	// Path returns the registry file path.
	Path() string
}
