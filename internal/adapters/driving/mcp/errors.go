// Package mcp provides an MCP (Model Context Protocol) server adapter for quarry.
// It exposes document search and SQL over the registered databases to
// MCP-compatible assistants.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")
