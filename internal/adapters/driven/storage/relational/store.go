// Package relational publishes relations into per-source SQLite stores
// and runs read-only queries against them.
//
// A store is rebuilt in a staging file next to the live one and renamed
// into place only after every relation was written, so readers never see
// a half-written store.
package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/logger"
)

// stagingSuffix marks a store that is still being written.
const stagingSuffix = ".staging"

// insertBatch is the number of rows per insert transaction chunk.
const insertBatch = 500

// Store implements driven.RelationalStore on SQLite files.
type Store struct{}

var _ driven.RelationalStore = (*Store)(nil)

// NewStore creates a relational store.
func NewStore() *Store {
	return &Store{}
}

// Publish replaces the given relations in the store at path. Relations
// already in the store and not named are carried over.
func (s *Store) Publish(ctx context.Context, path string, relations []domain.Relation) error {
	for _, rel := range relations {
		if err := domain.ValidateRelationName(rel.Name); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	staging := path + stagingSuffix
	if err := os.Remove(staging); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing stale staging file: %w", err)
	}
	if err := copyFile(path, staging); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("copying live store: %w", err)
	}

	if err := writeRelations(ctx, staging, relations); err != nil {
		os.Remove(staging)
		return err
	}

	if err := os.Rename(staging, path); err != nil {
		os.Remove(staging)
		return fmt.Errorf("swapping in store: %w", err)
	}
	logger.Debug("Published %d relation(s) to %s", len(relations), path)
	return nil
}

func writeRelations(ctx context.Context, path string, relations []domain.Relation) error {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("opening staging store: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rel := range relations {
		if err := writeRelation(ctx, tx, rel); err != nil {
			return fmt.Errorf("table %s: %w", rel.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func writeRelation(ctx context.Context, tx *sql.Tx, rel domain.Relation) error {
	table := domain.QuoteIdentifier(rel.Name)
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("dropping table: %w", err)
	}

	defs := make([]string, len(rel.Columns))
	marks := make([]string, len(rel.Columns))
	for i, c := range rel.Columns {
		defs[i] = domain.QuoteIdentifier(c.Name) + " " + string(c.Type)
		marks[i] = "?"
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("creating table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rel.Rows {
		if i%insertBatch == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if len(row) != len(rel.Columns) {
			return fmt.Errorf("%w: row %d has %d values for %d columns", domain.ErrInvalidInput, i+1, len(row), len(rel.Columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("inserting row %d: %w", i+1, err)
		}
	}
	return nil
}

// Describe lists the relations in the store with columns and row counts.
func (s *Store) Describe(ctx context.Context, path string) ([]domain.RelationInfo, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tables: %w", err)
	}

	infos := make([]domain.RelationInfo, 0, len(names))
	for _, name := range names {
		info, err := describeTable(ctx, db, name)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func describeTable(ctx context.Context, db *sql.DB, name string) (domain.RelationInfo, error) {
	info := domain.RelationInfo{Name: name}
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", domain.QuoteIdentifier(name)))
	if err != nil {
		return info, fmt.Errorf("reading columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			col, decl string
			notNull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &col, &decl, &notNull, &dflt, &pk); err != nil {
			return info, fmt.Errorf("scanning column: %w", err)
		}
		info.Columns = append(info.Columns, domain.Column{Name: col, Type: domain.NormaliseColumnType(decl)})
	}
	if err := rows.Err(); err != nil {
		return info, fmt.Errorf("iterating columns: %w", err)
	}

	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+domain.QuoteIdentifier(name)).Scan(&info.RowCount); err != nil {
		return info, fmt.Errorf("counting rows: %w", err)
	}
	return info, nil
}

// Query runs a single statement on a read-only connection and returns at
// most maxRows rows. Attempts to write fail in SQLite itself.
func (s *Store) Query(ctx context.Context, path, query string, maxRows int) (*domain.QueryResult, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	result := &domain.QueryResult{SQL: query, Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		if maxRows > 0 && len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return result, nil
}

func openReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("store %s: %w", path, domain.ErrNotFound)
	}
	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path)+"?mode=ro&_pragma=query_only(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return db, nil
}

// classify maps SQLite's read-only refusals to domain.ErrReadOnlyViolation.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "readonly") || strings.Contains(msg, "read-only") || strings.Contains(msg, "query_only") {
		return fmt.Errorf("%w: %v", domain.ErrReadOnlyViolation, err)
	}
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
