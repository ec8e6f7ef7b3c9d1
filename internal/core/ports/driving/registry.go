package driving

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// RegistryService manages the catalogue of relational stores.
type RegistryService interface {
	// List returns every registry entry in ID order.
	List(ctx context.Context) ([]domain.DatabaseEntry, error)

	// Get returns the entry for a database name.
	Get(ctx context.Context, name string) (*domain.DatabaseEntry, error)

	// Add validates and appends an entry. An empty DatabaseID is assigned
	// the next free one. Entries with error issues are refused unless force is set.
	Add(ctx context.Context, entry domain.DatabaseEntry, force bool) (*domain.DatabaseEntry, []domain.RegistryIssue, error)

	// Remove deletes the entry for a database name.
	Remove(ctx context.Context, name string) error

	// Validate checks every entry structurally and against its live store.
	Validate(ctx context.Context) ([]domain.RegistryIssue, error)

	// Scaffold drafts an entry from a published store.
	Scaffold(ctx context.Context, sourceFile string) (*domain.DatabaseEntry, error)

	// RenderPrompt renders the registry as markdown for the agent.
	RenderPrompt(ctx context.Context) (string, error)
}
