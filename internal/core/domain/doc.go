// Package domain defines the core business entities for Quarry.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A retrieval-ready unit of document text with a stable ID
//   - Registry: The catalogue of relational stores the agent may query
//   - Workbook and Relation: Tabular input and its relational mapping
//   - BatchReport: Per-item outcome of a batch operation
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
