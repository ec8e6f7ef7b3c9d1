package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

// mockSearchEngine implements driven.SearchEngine for testing.
type mockSearchEngine struct {
	hits      []driven.SearchHit
	searchErr error
}

func (m *mockSearchEngine) Search(_ context.Context, _ string, limit int) ([]driven.SearchHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if limit > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:limit], nil
}

// mockVectorIndex implements driven.VectorIndex for testing.
type mockVectorIndex struct {
	hits      []driven.VectorHit
	searchErr error
}

func (m *mockVectorIndex) Search(_ context.Context, _ []float32, k int) ([]driven.VectorHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if k > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:k], nil
}

// mockEmbeddingService implements driven.EmbeddingService for testing.
type mockEmbeddingService struct {
	embedding []float32
	embedErr  error
	dims      int

	mu      sync.Mutex
	batches int
}

func (m *mockEmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.embedding, nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batches++
	m.mu.Unlock()
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = m.embedding
	}
	return result, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return 512
}

func (m *mockEmbeddingService) ModelName() string           { return "mock-embed" }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                 { return nil }

// mockParser implements driven.DocumentParser with canned documents per file name.
type mockParser struct {
	docs map[string]*domain.ParsedDocument
	errs map[string]error
}

func (m *mockParser) Parse(_ context.Context, path string, _ domain.ChunkingOptions) (*domain.ParsedDocument, error) {
	name := filepath.Base(path)
	if err := m.errs[name]; err != nil {
		return nil, err
	}
	if doc, ok := m.docs[name]; ok {
		return doc, nil
	}
	return nil, errors.New("no canned document for " + name)
}

func (m *mockParser) SupportedExtensions() []string { return []string{".pdf", ".docx"} }
func (m *mockParser) Name() string                  { return "mock" }

// mockArtifactStore implements driven.ArtifactStore in memory. Inbox files
// are plain names; MoveTo records the move.
type mockArtifactStore struct {
	mu         sync.Mutex
	inbox      map[string][]string
	rawForms   map[string][]byte
	chunkForms map[string][]domain.Chunk
	moved      map[string]string

	chunkFormErr map[string]error
	moveErr      error
}

func newMockArtifactStore() *mockArtifactStore {
	return &mockArtifactStore{
		inbox:        make(map[string][]string),
		rawForms:     make(map[string][]byte),
		chunkForms:   make(map[string][]domain.Chunk),
		moved:        make(map[string]string),
		chunkFormErr: make(map[string]error),
	}
}

func (m *mockArtifactStore) WriteRawForm(_ context.Context, stem string, raw []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rawForms[stem] = raw
	return "raw/" + stem + ".json", nil
}

func (m *mockArtifactStore) WriteChunkForm(_ context.Context, stem string, chunks []domain.Chunk) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.chunkFormErr[stem]; err != nil {
		return "", err
	}
	path := "chunks/c-" + stem + ".json"
	m.chunkForms[path] = chunks
	return path, nil
}

func (m *mockArtifactStore) ChunkFormOwner(_ context.Context, stem string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chunks := m.chunkForms["chunks/c-"+stem+".json"]
	if len(chunks) == 0 {
		return "", nil
	}
	return chunks[0].FileName, nil
}

func (m *mockArtifactStore) FindStem(_ context.Context, dir, stem string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name, dest := range m.moved {
		if filepath.Dir(dest) == dir && strings.EqualFold(fileStem(name), stem) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *mockArtifactStore) ReadChunkForms(_ context.Context) (map[string][]domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]domain.Chunk, len(m.chunkForms))
	for k, v := range m.chunkForms {
		out[k] = v
	}
	return out, nil
}

func (m *mockArtifactStore) ListInbox(_ context.Context, dir string, exts []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, name := range m.inbox[dir] {
		if hasExtension(name, exts) {
			out = append(out, filepath.Join(dir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockArtifactStore) MoveTo(_ context.Context, path, dir string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.moveErr != nil {
		return "", m.moveErr
	}
	dest := filepath.Join(dir, filepath.Base(path))
	m.moved[filepath.Base(path)] = dest
	return dest, nil
}

// mockTabularReader implements driven.TabularReader with canned workbooks.
type mockTabularReader struct {
	books map[string]*domain.Workbook
}

func (m *mockTabularReader) Read(_ context.Context, path string) (*domain.Workbook, error) {
	name := filepath.Base(path)
	wb, ok := m.books[name]
	if !ok {
		return nil, domain.ErrUnsupportedType
	}
	return wb, nil
}

func (m *mockTabularReader) SupportedExtensions() []string { return []string{".csv", ".xlsx"} }

// mockRelationalStore implements driven.RelationalStore in memory. Publish
// creates an empty file at the path so existence checks see it.
type mockRelationalStore struct {
	mu         sync.Mutex
	stores     map[string]map[string]domain.Relation
	publishErr error
	queryErr   error
	result     *domain.QueryResult
	queries    []string
}

func newMockRelationalStore() *mockRelationalStore {
	return &mockRelationalStore{stores: make(map[string]map[string]domain.Relation)}
}

func (m *mockRelationalStore) Publish(_ context.Context, path string, relations []domain.Relation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		return err
	}
	store, ok := m.stores[path]
	if !ok {
		store = make(map[string]domain.Relation)
		m.stores[path] = store
	}
	for _, r := range relations {
		store[strings.ToLower(r.Name)] = r
	}
	return nil
}

func (m *mockRelationalStore) Describe(_ context.Context, path string) ([]domain.RelationInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	store, ok := m.stores[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	infos := make([]domain.RelationInfo, 0, len(store))
	for _, r := range store {
		infos = append(infos, domain.RelationInfo{Name: r.Name, Columns: r.Columns, RowCount: int64(len(r.Rows))})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (m *mockRelationalStore) Query(_ context.Context, path, sql string, _ int) (*domain.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, path+": "+sql)
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if m.result != nil {
		res := *m.result
		res.SQL = sql
		return &res, nil
	}
	return &domain.QueryResult{SQL: sql}, nil
}

// mockRegistryStore implements driven.RegistryStore in memory.
type mockRegistryStore struct {
	reg   domain.Registry
	saves int
}

func (m *mockRegistryStore) Load(_ context.Context) (*domain.Registry, error) {
	copied := domain.Registry{Databases: append([]domain.DatabaseEntry{}, m.reg.Databases...)}
	return &copied, nil
}

func (m *mockRegistryStore) Save(_ context.Context, reg *domain.Registry) error {
	m.reg = domain.Registry{Databases: append([]domain.DatabaseEntry{}, reg.Databases...)}
	m.saves++
	return nil
}

func (m *mockRegistryStore) Path() string { return "registry.json" }

// mockChatModel implements driven.ChatModel by replaying scripted replies.
type mockChatModel struct {
	replies []domain.Message
	err     error

	calls    int
	received [][]domain.Message
	tools    [][]domain.ToolSpec
}

func (m *mockChatModel) Complete(_ context.Context, messages []domain.Message, tools []domain.ToolSpec) (*domain.Completion, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.received = append(m.received, append([]domain.Message{}, messages...))
	m.tools = append(m.tools, tools)
	reply := domain.Message{Role: domain.RoleAssistant, Content: `{"response": "out of script"}`}
	if m.calls < len(m.replies) {
		reply = m.replies[m.calls]
	}
	m.calls++
	return &domain.Completion{Message: reply}, nil
}

func (m *mockChatModel) ModelName() string           { return "mock-chat" }
func (m *mockChatModel) Ping(_ context.Context) error { return nil }
func (m *mockChatModel) Close() error                 { return nil }

// mockPromptStore implements driven.PromptStore from a map.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	text, ok := m.prompts[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return text, nil
}

func (m *mockPromptStore) Reload() {}
