package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// SearchInput is the input schema for the hybrid_search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"what to look for in the parsed documents"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of chunks to return (default 5)"`
}

// SearchOutput is the output schema for the hybrid_search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single matching chunk.
type SearchResultOutput struct {
	ChunkID    string   `json:"chunk_id"`
	FileName   string   `json:"file_name"`
	StartPage  int      `json:"start_page"`
	EndPage    int      `json:"end_page"`
	Score      float64  `json:"score"`
	Highlights []string `json:"highlights,omitempty"`
	Text       string   `json:"text"`
}

// SQLInput is the input schema for the sql_query tool.
type SQLInput struct {
	Database string `json:"database,omitempty" jsonschema:"database name from list_databases; may be omitted when only one is registered"`
	SQL      string `json:"sql" jsonschema:"a single read-only SELECT statement"`
}

// SQLOutput is the output schema for the sql_query tool.
type SQLOutput struct {
	Database  string   `json:"database"`
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated,omitempty"`
}

// ListDatabasesInput takes no arguments.
type ListDatabasesInput struct{}

// ListDatabasesOutput is the output schema for the list_databases tool.
type ListDatabasesOutput struct {
	Databases []DatabaseOutput `json:"databases"`
}

// DatabaseOutput summarises one registered database.
type DatabaseOutput struct {
	DatabaseID   string   `json:"database_id,omitempty"`
	DatabaseName string   `json:"database_name"`
	SourceFile   string   `json:"source_file,omitempty"`
	Description  string   `json:"description,omitempty"`
	Tables       []string `json:"tables,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "hybrid_search",
		Description: "Search the parsed document collection with combined keyword and semantic search",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sql_query",
		Description: "Run one read-only SELECT statement against a registered database",
	}, s.handleSQL)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_databases",
		Description: "List the registered databases and their tables",
	}, s.handleListDatabases)
}

// handleSearch handles the hybrid_search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = domain.DefaultSearchLimit
	}

	results, err := s.ports.Search.Search(ctx, input.Query, domain.SearchOptions{Limit: limit})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		c := results[i].Chunk
		output.Results[i] = SearchResultOutput{
			ChunkID:    c.ChunkID,
			FileName:   c.FileName,
			StartPage:  c.StartPage,
			EndPage:    c.EndPage,
			Score:      results[i].Score,
			Highlights: results[i].Highlights,
			Text:       c.Text,
		}
	}

	return nil, output, nil
}

// handleSQL handles the sql_query tool invocation.
func (s *Server) handleSQL(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SQLInput,
) (*mcp.CallToolResult, SQLOutput, error) {
	res, err := s.ports.Query.Execute(ctx, input.Database, input.SQL)
	if err != nil {
		return nil, SQLOutput{}, err
	}

	rows := res.Rows
	if rows == nil {
		rows = [][]any{}
	}
	return nil, SQLOutput{
		Database:  res.Database,
		Columns:   res.Columns,
		Rows:      rows,
		RowCount:  len(rows),
		Truncated: res.Truncated,
	}, nil
}

// handleListDatabases handles the list_databases tool invocation.
func (s *Server) handleListDatabases(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListDatabasesInput,
) (*mcp.CallToolResult, ListDatabasesOutput, error) {
	output := ListDatabasesOutput{Databases: []DatabaseOutput{}}

	if s.ports.Registry != nil {
		entries, err := s.ports.Registry.List(ctx)
		if err != nil {
			return nil, ListDatabasesOutput{}, err
		}
		for i := range entries {
			output.Databases = append(output.Databases, databaseOutput(&entries[i]))
		}
		return nil, output, nil
	}

	names, err := s.ports.Query.Databases(ctx)
	if err != nil {
		return nil, ListDatabasesOutput{}, err
	}
	for _, name := range names {
		output.Databases = append(output.Databases, DatabaseOutput{DatabaseName: name})
	}
	return nil, output, nil
}

func databaseOutput(e *domain.DatabaseEntry) DatabaseOutput {
	tables := make([]string, len(e.Tables))
	for i, t := range e.Tables {
		tables[i] = t.TableName
	}
	return DatabaseOutput{
		DatabaseID:   e.DatabaseID,
		DatabaseName: e.DatabaseName,
		SourceFile:   e.SourceFile,
		Description:  e.Text,
		Tables:       tables,
	}
}
