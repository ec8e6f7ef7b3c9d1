package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/quarry/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

// DBFileName is the index database file inside the data directory.
const DBFileName = "index.db"

// Store is a unified SQLite-based storage that provides access to
// the index and ledger interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in the specified data directory.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("%w: data directory is required", domain.ErrInvalidInput)
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFileName)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// ChunkStore returns the chunk store. It also serves keyword search.
func (s *Store) ChunkStore() *ChunkStore {
	return &ChunkStore{store: s}
}

// VectorIndex returns a VectorIndex interface backed by this store.
func (s *Store) VectorIndex() driven.VectorIndex {
	return &vectorIndex{store: s}
}

// TagLedger returns a TagLedger interface backed by this store.
func (s *Store) TagLedger() driven.TagLedger {
	return &tagLedger{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Chunk Store ====================

// ChunkStore implements driven.ChunkStore and driven.SearchEngine.
type ChunkStore struct {
	store *Store
}

var (
	_ driven.ChunkStore   = (*ChunkStore)(nil)
	_ driven.SearchEngine = (*ChunkStore)(nil)
)

// ReplaceAll swaps the whole chunk set in one transaction. The FTS table
// follows through triggers on chunks.
func (s *ChunkStore) ReplaceAll(ctx context.Context, chunks []driven.IndexedChunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}

	insertChunk, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (chunk_id, file_name, content, start_page, end_page, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer insertChunk.Close()

	for _, ic := range chunks {
		c := ic.Chunk
		if _, err := insertChunk.ExecContext(ctx, c.ChunkID, c.FileName, c.Text,
			c.StartPage, c.EndPage, embeddingValue(ic.Embedding)); err != nil {
			return fmt.Errorf("saving chunk %s: %w", c.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetChunk retrieves a chunk by ID.
func (s *ChunkStore) GetChunk(ctx context.Context, chunkID string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT chunk_id, file_name, content, start_page, end_page
		FROM chunks WHERE chunk_id = ?
	`, chunkID)

	var c domain.Chunk
	if err := row.Scan(&c.ChunkID, &c.FileName, &c.Text, &c.StartPage, &c.EndPage); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	return &c, nil
}

// ListChunks returns the chunks of one file in ID order.
func (s *ChunkStore) ListChunks(ctx context.Context, fileName string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT chunk_id, file_name, content, start_page, end_page
		FROM chunks WHERE file_name = ?
		ORDER BY chunk_id
	`, fileName)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ChunkID, &c.FileName, &c.Text, &c.StartPage, &c.EndPage); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// Stats returns the number of chunks and of chunks with embeddings.
func (s *ChunkStore) Stats(ctx context.Context) (int, int, error) {
	var total, embedded int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(embedding) FROM chunks").Scan(&total, &embedded)
	if err != nil {
		return 0, 0, fmt.Errorf("counting chunks: %w", err)
	}
	return total, embedded, nil
}

// Search runs a bm25-ranked full-text query. Every query word is matched
// as a literal term, so FTS5 operators in user input have no effect.
func (s *ChunkStore) Search(ctx context.Context, query string, limit int) ([]driven.SearchHit, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT chunk_id, bm25(chunks_fts) AS rank
		FROM chunks_fts WHERE chunks_fts MATCH ?
		ORDER BY rank, chunk_id
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	defer rows.Close()

	var hits []driven.SearchHit
	for rows.Next() {
		var hit driven.SearchHit
		var rank float64
		if err := rows.Scan(&hit.ChunkID, &rank); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		// bm25 is lower-is-better
		hit.Score = -rank
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hits: %w", err)
	}
	return hits, nil
}

// ftsQuery turns free text into an FTS5 OR-query of quoted terms.
func ftsQuery(query string) string {
	words := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))
	seen := make(map[string]bool)
	for _, w := range words {
		w = strings.ToLower(w)
		if seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}

// ==================== Vector Index ====================

// vectorIndex implements driven.VectorIndex with a linear scan.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Search returns the k chunks most similar to the query vector.
func (v *vectorIndex) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if len(query) == 0 || k <= 0 {
		return nil, nil
	}

	rows, err := v.store.db.QueryContext(ctx,
		"SELECT chunk_id, embedding FROM chunks WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		vec := bytesToFloat32Slice(blob)
		if len(vec) != len(query) {
			continue
		}
		hits = append(hits, driven.VectorHit{ChunkID: id, Similarity: cosine(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// ==================== Tag Ledger ====================

// tagLedger implements driven.TagLedger.
type tagLedger struct {
	store *Store
}

var _ driven.TagLedger = (*tagLedger)(nil)

// Reserve records a tag, failing if it was ever issued before.
func (l *tagLedger) Reserve(ctx context.Context, issued domain.IssuedTag) error {
	res, err := l.store.db.ExecContext(ctx, `
		INSERT INTO tag_ledger (tag, file_name, run_id) VALUES (?, ?, ?)
		ON CONFLICT(tag) DO NOTHING
	`, issued.Tag, issued.FileName, issued.RunID)
	if err != nil {
		return fmt.Errorf("reserving tag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserving tag: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("tag %s: %w", issued.Tag, domain.ErrAlreadyExists)
	}
	return nil
}

// Release forgets a tag.
func (l *tagLedger) Release(ctx context.Context, tag string) error {
	if _, err := l.store.db.ExecContext(ctx, "DELETE FROM tag_ledger WHERE tag = ?", tag); err != nil {
		return fmt.Errorf("releasing tag: %w", err)
	}
	return nil
}

// Lookup returns the issue record for a tag.
func (l *tagLedger) Lookup(ctx context.Context, tag string) (*domain.IssuedTag, error) {
	var issued domain.IssuedTag
	err := l.store.db.QueryRowContext(ctx,
		"SELECT tag, file_name, run_id FROM tag_ledger WHERE tag = ?", tag,
	).Scan(&issued.Tag, &issued.FileName, &issued.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("looking up tag: %w", err)
	}
	return &issued, nil
}

// Count returns the number of issued tags.
func (l *tagLedger) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tag_ledger").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tags: %w", err)
	}
	return n, nil
}

// ==================== Helper Functions ====================

// embeddingValue binds a missing embedding as NULL.
func embeddingValue(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return float32SliceToBytes(v)
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
