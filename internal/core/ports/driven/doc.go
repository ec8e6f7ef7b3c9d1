// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentParser: Splits a document into ordered, page-tagged segments
//   - TagLedger: Persisted set of every document tag ever issued
//   - ArtifactStore: Raw-form and chunk-form files, inbox moves
//   - TabularReader: Reads CSV and workbook files into sheets
//   - RelationalStore: Publishes, describes and queries per-source stores
//   - RegistryStore: Registry persistence
//   - ChunkStore: Indexed chunk persistence
//   - SearchEngine: Full-text search (SQLite FTS5). Keyword search is always available.
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - VectorIndex: Vector storage/search. Only enabled when EmbeddingService is configured.
//   - EmbeddingService: Generates vector embeddings. Without it, VectorIndex is also disabled.
//   - ChatModel: Language model with tool calling. Without it, the agent is disabled.
//   - PromptStore: Customisable prompt templates. Built-in defaults are used otherwise.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
