package mcp

import (
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
type Ports struct {
	// Search provides hybrid search over chunks.
	Search driving.SearchService

	// Query runs read-only SQL.
	Query driving.QueryService

	// Registry describes the databases. Optional; without it the
	// registry resources are empty.
	Registry driving.RegistryService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
