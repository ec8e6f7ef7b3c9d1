package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a file format no reader or parser handles.
	ErrUnsupportedType = errors.New("unsupported type")

	// Identity Errors.

	// ErrSequenceOverflow indicates a document produced more segments than
	// a three-digit sequence can number.
	ErrSequenceOverflow = errors.New("chunk sequence overflow")

	// ErrTagSpaceExhausted indicates no unissued document tag could be drawn.
	ErrTagSpaceExhausted = errors.New("document tag space exhausted")

	// ErrInvalidIdentifier indicates a relation or column name cannot be
	// used as an SQL identifier.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// Query Errors.

	// ErrReadOnlyViolation indicates a statement other than a single
	// read-only query was submitted to a relational store.
	ErrReadOnlyViolation = errors.New("only SELECT queries are allowed")

	// ErrSchemaMismatch indicates a registry entry disagrees with the live store.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// Collaborator Errors.

	// ErrUpstream indicates the external parsing service failed.
	ErrUpstream = errors.New("upstream service failure")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrParserUnavailable indicates no document parser is configured.
	ErrParserUnavailable = errors.New("document parser unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// The agent is disabled without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Vector/semantic search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrSearchUnavailable indicates the search engine is not configured.
	// Full-text/keyword search is disabled.
	ErrSearchUnavailable = errors.New("search engine unavailable")
)
