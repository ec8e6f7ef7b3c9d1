// Package sqlite provides the SQLite-backed search index and tag ledger.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements several driven ports
// through a single database connection:
//
//   - ChunkStore: chunk persistence, replaced wholesale on each rebuild
//   - SearchEngine: keyword search over an FTS5 table ranked by bm25
//   - VectorIndex: cosine similarity over stored embeddings
//   - TagLedger: every document tag ever issued
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// The database lives at <workspace>/.quarry/index.db.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
