package driving

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// SearchService provides hybrid search over indexed chunks.
type SearchService interface {
	// Search performs a search query and returns matching chunks.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}

// QueryService runs read-only SQL against registered stores.
type QueryService interface {
	// Execute runs sql against the named database. An empty name selects
	// the only registered database when there is exactly one.
	Execute(ctx context.Context, database, sql string) (*domain.QueryResult, error)

	// Databases lists the names of queryable databases.
	Databases(ctx context.Context) ([]string, error)
}

// AgentService answers questions using document search and SQL tools.
type AgentService interface {
	// Ask answers a single question.
	Ask(ctx context.Context, question string) (*domain.AgentResult, error)

	// AskAll answers several questions; one failure does not stop the rest.
	AskAll(ctx context.Context, questions []string) []domain.AgentResult
}
