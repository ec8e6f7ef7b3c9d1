package mcp

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results   []domain.SearchResult
	err       error
	lastQuery string
	lastOpts  domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	query string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.lastQuery = query
	m.lastOpts = opts
	return m.results, m.err
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	result    *domain.QueryResult
	databases []string
	err       error
	lastDB    string
	lastSQL   string
}

func (m *mockQueryService) Execute(_ context.Context, database, sql string) (*domain.QueryResult, error) {
	m.lastDB = database
	m.lastSQL = sql
	return m.result, m.err
}

func (m *mockQueryService) Databases(_ context.Context) ([]string, error) {
	return m.databases, m.err
}

// mockRegistryService is a mock implementation of driving.RegistryService.
type mockRegistryService struct {
	entries []domain.DatabaseEntry
	prompt  string
	err     error
}

func (m *mockRegistryService) List(_ context.Context) ([]domain.DatabaseEntry, error) {
	return m.entries, m.err
}

func (m *mockRegistryService) Get(_ context.Context, name string) (*domain.DatabaseEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.entries {
		if m.entries[i].DatabaseName == name {
			return &m.entries[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockRegistryService) Add(
	_ context.Context, entry domain.DatabaseEntry, _ bool,
) (*domain.DatabaseEntry, []domain.RegistryIssue, error) {
	return &entry, nil, m.err
}

func (m *mockRegistryService) Remove(_ context.Context, _ string) error {
	return m.err
}

func (m *mockRegistryService) Validate(_ context.Context) ([]domain.RegistryIssue, error) {
	return nil, m.err
}

func (m *mockRegistryService) Scaffold(_ context.Context, _ string) (*domain.DatabaseEntry, error) {
	return nil, m.err
}

func (m *mockRegistryService) RenderPrompt(_ context.Context) (string, error) {
	return m.prompt, m.err
}

func financialsEntry() domain.DatabaseEntry {
	return domain.DatabaseEntry{
		DatabaseID:   "DB001",
		DatabaseName: "financials",
		SourceFile:   "financials.xlsx",
		Text:         "Quarterly figures",
		Tables: []domain.TableDescriptor{
			{TableName: "Revenue", SheetName: "Revenue"},
			{TableName: "Expenses", SheetName: "Expenses"},
		},
	}
}
