package domain

import "path/filepath"

const unknownDescription = "Unknown"

// SearchMode defines how search operations combine different retrieval methods.
type SearchMode string

// Available search modes.
const (
	// SearchModeTextOnly uses only keyword/full-text search.
	SearchModeTextOnly SearchMode = "text_only"

	// SearchModeHybrid combines text and semantic (vector) search.
	SearchModeHybrid SearchMode = "hybrid"
)

// IsValid returns true if the search mode is recognised.
func (m SearchMode) IsValid() bool {
	return m == SearchModeTextOnly || m == SearchModeHybrid
}

// RequiresEmbedding returns true if this mode needs an embedding provider.
func (m SearchMode) RequiresEmbedding() bool {
	return m == SearchModeHybrid
}

// String returns the string representation.
func (m SearchMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m SearchMode) Description() string {
	switch m {
	case SearchModeTextOnly:
		return "Text Only (keyword search)"
	case SearchModeHybrid:
		return "Hybrid (text + semantic search)"
	default:
		return unknownDescription
	}
}

// ParserBackend selects the document parser implementation.
type ParserBackend string

// Available parser backends.
const (
	// ParserBackendReducto is the hosted parsing API.
	ParserBackendReducto ParserBackend = "reducto"

	// ParserBackendLocal extracts text on this machine.
	ParserBackendLocal ParserBackend = "local"
)

// IsValid returns true if the backend is recognised.
func (b ParserBackend) IsValid() bool {
	return b == ParserBackendReducto || b == ParserBackendLocal
}

// Description returns a human-readable description of the backend.
func (b ParserBackend) Description() string {
	switch b {
	case ParserBackendReducto:
		return "Reducto (hosted parsing API)"
	case ParserBackendLocal:
		return "Local (docx/pdf/text extraction)"
	default:
		return unknownDescription
	}
}

// WorkspaceSettings locates the pipeline's directories.
type WorkspaceSettings struct {
	// Root is the directory every other path is resolved against.
	Root string
}

// DocsInbox is where unprocessed documents are dropped.
func (w WorkspaceSettings) DocsInbox() string { return filepath.Join(w.Root, "docs", "unprocessed") }

// DocsProcessed receives documents after their chunk form is written.
func (w WorkspaceSettings) DocsProcessed() string { return filepath.Join(w.Root, "docs", "processed") }

// RawFormDir holds the parser's raw responses.
func (w WorkspaceSettings) RawFormDir() string { return filepath.Join(w.Root, "results", "raw-form") }

// ChunkFormDir holds the chunk-form JSON files.
func (w WorkspaceSettings) ChunkFormDir() string { return filepath.Join(w.Root, "results", "chunk-form") }

// DataInbox is where unprocessed tabular files are dropped.
func (w WorkspaceSettings) DataInbox() string { return filepath.Join(w.Root, "data", "unprocessed") }

// DataProcessed receives tabular files after publishing.
func (w WorkspaceSettings) DataProcessed() string { return filepath.Join(w.Root, "data", "processed") }

// DatabasesDir holds one relational store per tabular source.
func (w WorkspaceSettings) DatabasesDir() string { return filepath.Join(w.Root, "databases") }

// RegistryPath is the registry file.
func (w WorkspaceSettings) RegistryPath() string { return filepath.Join(w.Root, "registry.json") }

// IndexDir holds the search index and tag ledger.
func (w WorkspaceSettings) IndexDir() string { return filepath.Join(w.Root, ".quarry") }

// Dirs lists every directory the pipeline writes to.
func (w WorkspaceSettings) Dirs() []string {
	return []string{
		w.DocsInbox(), w.DocsProcessed(), w.RawFormDir(), w.ChunkFormDir(),
		w.DataInbox(), w.DataProcessed(), w.DatabasesDir(), w.IndexDir(),
	}
}

// ParserSettings configures document parsing.
type ParserSettings struct {
	Backend       ParserBackend
	BaseURL       string
	APIKey        string
	ChunkMode     ChunkMode
	ChunkSize     int
	MaxWorkers    int
	RatePerSecond float64
	TableSummary  bool
	FigureSummary bool
}

// ChunkingOptions returns the segmentation options for parse requests.
func (p ParserSettings) ChunkingOptions() ChunkingOptions {
	return ChunkingOptions{
		Mode:          p.ChunkMode,
		SizeLimit:     p.ChunkSize,
		TableSummary:  p.TableSummary,
		FigureSummary: p.FigureSummary,
	}
}

// IsConfigured returns true if the parser can run.
func (p ParserSettings) IsConfigured() bool {
	if p.Backend == ParserBackendReducto {
		return p.APIKey != ""
	}
	return p.Backend.IsValid()
}

// LLMSettings holds chat model configuration.
type LLMSettings struct {
	Model   string
	BaseURL string
	APIKey  string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	return l.APIKey != "" && l.Model != ""
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	Model      string
	Dimensions int
	BaseURL    string
	APIKey     string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	return e.APIKey != "" && e.Model != ""
}

// SearchSettings holds search behaviour configuration.
type SearchSettings struct {
	Mode  SearchMode
	Limit int
}

// AgentSettings bounds the agent's tool loop.
type AgentSettings struct {
	MaxSteps   int
	MaxSQLRows int
}

// AppSettings aggregates all application settings.
type AppSettings struct {
	Workspace WorkspaceSettings
	Parser    ParserSettings
	LLM       LLMSettings
	Embedding EmbeddingSettings
	Search    SearchSettings
	Agent     AgentSettings
}

// Default settings values.
const (
	DefaultParserBaseURL   = "https://platform.reducto.ai"
	DefaultMaxWorkers      = 5
	DefaultRatePerSecond   = 2.0
	DefaultLLMModel        = "gpt-5-nano"
	DefaultEmbeddingModel  = "text-embedding-3-small"
	DefaultEmbeddingDims   = 512
	DefaultAgentMaxSteps   = 8
	DefaultAgentMaxSQLRows = 200
)

// DefaultAppSettings returns the settings used when nothing is configured.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Workspace: WorkspaceSettings{Root: "."},
		Parser: ParserSettings{
			Backend:       ParserBackendReducto,
			BaseURL:       DefaultParserBaseURL,
			ChunkMode:     ChunkModeVariable,
			ChunkSize:     DefaultChunkSize,
			MaxWorkers:    DefaultMaxWorkers,
			RatePerSecond: DefaultRatePerSecond,
			TableSummary:  true,
			FigureSummary: true,
		},
		LLM: LLMSettings{Model: DefaultLLMModel},
		Embedding: EmbeddingSettings{
			Model:      DefaultEmbeddingModel,
			Dimensions: DefaultEmbeddingDims,
		},
		Search: SearchSettings{Mode: SearchModeHybrid, Limit: DefaultSearchLimit},
		Agent:  AgentSettings{MaxSteps: DefaultAgentMaxSteps, MaxSQLRows: DefaultAgentMaxSQLRows},
	}
}
