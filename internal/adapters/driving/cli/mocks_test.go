package cli

import (
	"context"
	"errors"
	"sync"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
)

// mockIngestService implements driving.DocumentIngestService for testing.
type mockIngestService struct {
	mu     sync.Mutex
	report *domain.BatchReport
	err    error
	files  []string
	failOn string
}

func (m *mockIngestService) ProcessInbox(_ context.Context) (*domain.BatchReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.report == nil {
		return &domain.BatchReport{Operation: "documents"}, nil
	}
	return m.report, nil
}

func (m *mockIngestService) ProcessFile(_ context.Context, path string) domain.ItemResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, path)
	if path == m.failOn {
		return domain.ItemResult{Item: path, Err: domain.ErrUnsupportedType}
	}
	return domain.ItemResult{Item: path, Details: []string{"12 chunks (ABC001-ABC012)"}}
}

func (m *mockIngestService) processed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.files...)
}

// mockTabularService implements driving.TabularService for testing.
type mockTabularService struct {
	mu     sync.Mutex
	report *domain.BatchReport
	err    error
	files  []string
}

func (m *mockTabularService) ConvertInbox(_ context.Context) (*domain.BatchReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.report == nil {
		return &domain.BatchReport{Operation: "data"}, nil
	}
	return m.report, nil
}

func (m *mockTabularService) ConvertFile(_ context.Context, path string) domain.ItemResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, path)
	return domain.ItemResult{Item: path, Details: []string{"1 table"}}
}

func (m *mockTabularService) converted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.files...)
}

// mockIndexService implements driving.IndexService for testing.
type mockIndexService struct {
	stats    driving.IndexStats
	err      error
	rebuilds int
}

func (m *mockIndexService) Rebuild(_ context.Context) (*driving.IndexStats, error) {
	m.rebuilds++
	if m.err != nil {
		return nil, m.err
	}
	s := m.stats
	return &s, nil
}

func (m *mockIndexService) Stats(_ context.Context) (*driving.IndexStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := m.stats
	return &s, nil
}

// mockRegistryService implements driving.RegistryService for testing.
type mockRegistryService struct {
	entries  []domain.DatabaseEntry
	issues   []domain.RegistryIssue
	addErr   error
	added    []domain.DatabaseEntry
	removed  []string
	rendered string
}

func (m *mockRegistryService) List(_ context.Context) ([]domain.DatabaseEntry, error) {
	return m.entries, nil
}

func (m *mockRegistryService) Get(_ context.Context, name string) (*domain.DatabaseEntry, error) {
	for i := range m.entries {
		if m.entries[i].DatabaseName == name {
			return &m.entries[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockRegistryService) Add(
	_ context.Context, entry domain.DatabaseEntry, force bool,
) (*domain.DatabaseEntry, []domain.RegistryIssue, error) {
	if m.addErr != nil && !force {
		return nil, m.issues, m.addErr
	}
	if entry.DatabaseID == "" {
		entry.DatabaseID = domain.FormatDatabaseID(len(m.entries) + 1)
	}
	m.added = append(m.added, entry)
	return &entry, m.issues, nil
}

func (m *mockRegistryService) Remove(_ context.Context, name string) error {
	if _, err := m.Get(context.Background(), name); err != nil {
		return err
	}
	m.removed = append(m.removed, name)
	return nil
}

func (m *mockRegistryService) Validate(_ context.Context) ([]domain.RegistryIssue, error) {
	return m.issues, nil
}

func (m *mockRegistryService) Scaffold(_ context.Context, sourceFile string) (*domain.DatabaseEntry, error) {
	if sourceFile != "sales.csv" {
		return nil, domain.ErrNotFound
	}
	return &domain.DatabaseEntry{
		DatabaseName: "sales",
		SourceFile:   "sales.csv",
		Tables: []domain.TableDescriptor{{
			TableName: "data",
			Schema: domain.TableSchema{Columns: []domain.ColumnSchema{
				{Name: "region", Type: domain.ColumnTypeText},
				{Name: "amount", Type: domain.ColumnTypeReal},
			}},
		}},
	}, nil
}

func (m *mockRegistryService) RenderPrompt(_ context.Context) (string, error) {
	return m.rendered, nil
}

// mockSearchService implements driving.SearchService for testing.
type mockSearchService struct {
	results  []domain.SearchResult
	err      error
	lastOpts domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, _ string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.lastOpts = opts
	return m.results, m.err
}

// mockQueryService implements driving.QueryService for testing.
type mockQueryService struct {
	result  *domain.QueryResult
	err     error
	names   []string
	lastDB  string
	lastSQL string
}

func (m *mockQueryService) Execute(_ context.Context, database, sql string) (*domain.QueryResult, error) {
	m.lastDB, m.lastSQL = database, sql
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockQueryService) Databases(_ context.Context) ([]string, error) {
	return m.names, nil
}

// mockAgentService implements driving.AgentService for testing.
type mockAgentService struct {
	asked []string
}

func (m *mockAgentService) answer(question string) domain.AgentResult {
	m.asked = append(m.asked, question)
	if question == "fail" {
		return domain.AgentResult{Question: question, Error: "model unavailable"}
	}
	return domain.AgentResult{
		Question: question,
		Answer: &domain.AgentResponse{
			Response:    "Revenue was 4.2M.",
			Citations:   []string{"ABC003"},
			DataSummary: "SUM(amount) over Revenue",
		},
		Trace: domain.AgentTrace{Steps: 2, ToolCalls: []string{"hybrid_search"}},
	}
}

func (m *mockAgentService) Ask(_ context.Context, question string) (*domain.AgentResult, error) {
	r := m.answer(question)
	if !r.OK() {
		return nil, errors.New(r.Error)
	}
	return &r, nil
}

func (m *mockAgentService) AskAll(_ context.Context, questions []string) []domain.AgentResult {
	out := make([]domain.AgentResult, len(questions))
	for i, q := range questions {
		out[i] = m.answer(q)
	}
	return out
}

// mockSettingsService implements driving.SettingsService for testing.
type mockSettingsService struct {
	values map[string]string
	setErr error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	return &domain.AppSettings{}, nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *mockSettingsService) Keys() map[string]string {
	return m.values
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	ingest   *mockIngestService
	tabular  *mockTabularService
	index    *mockIndexService
	registry *mockRegistryService
	search   *mockSearchService
	query    *mockQueryService
	agent    *mockAgentService
	settings *mockSettingsService
}

func newTestServices(root string) (*testServices, *Services) {
	ts := &testServices{
		ingest:   &mockIngestService{},
		tabular:  &mockTabularService{},
		index:    &mockIndexService{},
		registry: &mockRegistryService{},
		search:   &mockSearchService{},
		query:    &mockQueryService{},
		agent:    &mockAgentService{},
		settings: &mockSettingsService{values: map[string]string{}},
	}
	return ts, &Services{
		Ingest:    ts.ingest,
		Tabular:   ts.tabular,
		Index:     ts.index,
		Registry:  ts.registry,
		Search:    ts.search,
		Query:     ts.query,
		Agent:     ts.agent,
		Settings:  ts.settings,
		Workspace: domain.WorkspaceSettings{Root: root},
	}
}
